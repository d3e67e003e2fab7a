package hashkernel

import (
	"sync"

	sha256simd "github.com/minio/sha256-simd"
)

// sha256dSIMD computes double-SHA256 using sha256-simd's best
// auto-selected single-lane implementation (SHA-NI, AVX2, or generic,
// whichever the library picks for this CPU).
func sha256dSIMD(data []byte) [32]byte {
	h1 := sha256simd.Sum256(data)
	h2 := sha256simd.Sum256(h1[:])
	return h2
}

// w8Batch fans the batch out over 8 goroutines, each driving an
// accelerated single-lane hash. This is the "8-way acceptable" tier: it
// does not fold lanes into one SIMD instruction the way the AVX512
// server does, but it keeps up to 8 cores busy with accelerated hashing
// when AVX512 is unavailable.
func w8Batch(headers *[BatchSize][HeaderSize]byte, n int, out *[BatchSize][32]byte) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, 8)
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			out[i] = sha256dSIMD(headers[i][:])
		}(i)
	}
	wg.Wait()
}

// NewW8 returns the 8-way kernel.
func NewW8() *Kernel {
	return &Kernel{Variant: W8, Hash: w8Batch}
}

// avx512Kernel batches lanes through a single shared Avx512Server: each
// lane is a normal hash.Hash obtained from sha256simd.NewAvx512(server),
// and writing/summing 16 of them concurrently lets the server's internal
// scheduler fold the independent messages into genuine AVX512 multi-buffer
// SHA-256 instructions.
type avx512Kernel struct {
	server *sha256simd.Avx512Server
}

func newAVX512Kernel() *avx512Kernel {
	return &avx512Kernel{server: sha256simd.NewAvx512Server()}
}

func (k *avx512Kernel) hashOne(data []byte) [32]byte {
	h := sha256simd.NewAvx512(k.server)
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func (k *avx512Kernel) batch(headers *[BatchSize][HeaderSize]byte, n int, out *[BatchSize][32]byte) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h1 := k.hashOne(headers[i][:])
			out[i] = k.hashOne(h1[:])
		}(i)
	}
	wg.Wait()
}

// NewW16 returns the 16-way AVX512 batched kernel. The server degrades to
// a correct software fallback on hardware without AVX512, so this kernel
// is always safe to construct; the capability probe (probe.go) only binds
// it as the default when AVX512F is actually present.
func NewW16() *Kernel {
	k := newAVX512Kernel()
	return &Kernel{Variant: W16, Hash: k.batch}
}
