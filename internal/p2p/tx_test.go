package p2p

import (
	"encoding/hex"
	"testing"

	"github.com/boomstarternetwork/btcminer/internal/hashkernel"
)

// buildRawTx constructs a minimal transaction (no inputs, one output per
// amount, each with a zero-length script) carrying the given satoshi
// amounts.
func buildRawTx(t *testing.T, amounts ...uint64) []byte {
	t.Helper()
	buf := []byte{0x01, 0x00, 0x00, 0x00} // version
	buf = append(buf, 0x00)               // input count = 0
	buf = append(buf, byte(len(amounts))) // output count

	for _, a := range amounts {
		var v [8]byte
		for i := 0; i < 8; i++ {
			v[i] = byte(a >> (8 * i))
		}
		buf = append(buf, v[:]...)
		buf = append(buf, 0x00) // script_len = 0
	}
	return buf
}

// TestWhaleDetectionSumExceedsThreshold is scenario S6: two outputs of
// 0.6 BTC and 0.5 BTC (sum 1.1 BTC) trigger a whale event.
func TestWhaleDetectionSumExceedsThreshold(t *testing.T) {
	raw := buildRawTx(t, 60_000_000, 50_000_000)

	event, err := evaluateWhale(raw)
	if err != nil {
		t.Fatal(err)
	}
	if event == nil {
		t.Fatal("expected a whale event for 1.1 BTC total")
	}
	if event.AmountSatoshi != 110_000_000 {
		t.Errorf("AmountSatoshi = %d, want 110000000", event.AmountSatoshi)
	}

	want := hashkernelSha256dReverseHex(t, raw)
	if event.TxID != want {
		t.Errorf("TxID = %s, want %s", event.TxID, want)
	}
}

// TestWhaleDetectionBelowThreshold is the negative half of scenario S6:
// 0.9 BTC total does not trigger a whale event.
func TestWhaleDetectionBelowThreshold(t *testing.T) {
	raw := buildRawTx(t, 90_000_000)

	event, err := evaluateWhale(raw)
	if err != nil {
		t.Fatal(err)
	}
	if event != nil {
		t.Fatalf("expected no whale event for 0.9 BTC total, got %+v", event)
	}
}

func TestParseTxRejectsTruncatedBuffer(t *testing.T) {
	raw := buildRawTx(t, 1_000_000)
	truncated := raw[:len(raw)-2]

	if _, err := parseTx(truncated); err == nil {
		t.Error("expected error parsing truncated transaction")
	}
}

func hashkernelSha256dReverseHex(t *testing.T, raw []byte) string {
	t.Helper()
	digest := hashkernel.Sha256d(raw)
	var reversed [32]byte
	for i := range digest {
		reversed[i] = digest[31-i]
	}
	return hex.EncodeToString(reversed[:])
}
