package hashkernel

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"testing"
)

// TestKnownAnswerZeroHeader is scenario S1: 80 zero bytes hashed once
// should match the standard SHA-256 test vector, and double-hashing it
// must agree across every kernel variant.
func TestKnownAnswerZeroHeader(t *testing.T) {
	var zero [80]byte

	h1 := sha256.Sum256(zero[:])
	wantH1Prefix := "5b6fb58e61fa4759"
	if got := hex.EncodeToString(h1[:8]); got != wantH1Prefix {
		t.Fatalf("first SHA-256 of zero header = %s..., want prefix %s", got, wantH1Prefix)
	}

	want := scalarSha256d(zero[:])

	for _, k := range []*Kernel{NewScalar(), NewW8(), NewW16()} {
		var headers [BatchSize][HeaderSize]byte
		var out [BatchSize][32]byte
		k.Hash(&headers, 1, &out)
		if out[0] != want {
			t.Errorf("%s: digest of zero header = %x, want %x", k.Variant, out[0], want)
		}
	}
}

// TestVariantsAgreeOnRandomHeaders is Testable Property 1: for any header
// and nonce, every kernel implementation agrees bit-for-bit with the
// scalar reference.
func TestVariantsAgreeOnRandomHeaders(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	var headers [BatchSize][HeaderSize]byte
	for i := range headers {
		rng.Read(headers[i][:])
	}

	var want [BatchSize][32]byte
	scalarBatch(&headers, BatchSize, &want)

	for _, k := range []*Kernel{NewScalar(), NewW8(), NewW16()} {
		var out [BatchSize][32]byte
		k.Hash(&headers, BatchSize, &out)
		for i := range headers {
			if out[i] != want[i] {
				t.Errorf("%s lane %d disagrees with scalar: %x != %x",
					k.Variant, i, out[i], want[i])
			}
		}
	}
}

// TestPartialBatch exercises n < BatchSize, as happens on the final
// partial group before a nonce range is exhausted.
func TestPartialBatch(t *testing.T) {
	var headers [BatchSize][HeaderSize]byte
	for i := 0; i < 3; i++ {
		headers[i][79] = byte(i)
	}

	var out [BatchSize][32]byte
	k := NewScalar()
	k.Hash(&headers, 3, &out)

	for i := 0; i < 3; i++ {
		want := scalarSha256d(headers[i][:])
		if out[i] != want {
			t.Errorf("lane %d = %x, want %x", i, out[i], want)
		}
	}
	// Lanes beyond n must be left untouched (still zero).
	var zero [32]byte
	if out[3] != zero {
		t.Errorf("lane 3 should be untouched, got %x", out[3])
	}
}

func TestProbeReturnsUsableKernel(t *testing.T) {
	k := Probe()
	if k == nil || k.Hash == nil {
		t.Fatal("Probe() returned an unusable kernel")
	}
	switch k.Variant {
	case Scalar, W8, W16:
	default:
		t.Errorf("unexpected variant %q", k.Variant)
	}

	var headers [BatchSize][HeaderSize]byte
	var out [BatchSize][32]byte
	k.Hash(&headers, BatchSize, &out)
	if bytes.Equal(out[0][:], make([]byte, 32)) {
		t.Error("probe-bound kernel produced an all-zero digest for a real header")
	}
}
