// Package hashkernel implements the batched SHA-256d compute kernel: the
// hot loop that brute-forces the block header nonce. Three implementations
// exist (scalar, w8, w16); a runtime capability probe binds the widest one
// available once at startup (see probe.go).
package hashkernel

// BatchSize is the mandated width of the hot-path hash kernel: 16
// candidate headers, differing only in the nonce field, hashed per call.
const BatchSize = 16

// HeaderSize is the length of a Bitcoin block header.
const HeaderSize = 80

// Variant names the bound kernel implementation, published as the
// kernel_variant counter in §6.
type Variant string

const (
	Scalar Variant = "scalar"
	W8     Variant = "w8"
	W16    Variant = "w16"
)

// BatchFunc computes double-SHA256 digests for the first n headers of the
// batch. Both headers and out are caller-owned fixed-size arrays; no
// allocation of the batch buffers happens inside a BatchFunc.
type BatchFunc func(headers *[BatchSize][HeaderSize]byte, n int, out *[BatchSize][32]byte)

// Kernel is the bound hash kernel: a variant tag plus its batch function.
type Kernel struct {
	Variant Variant
	Hash    BatchFunc
}

// Sha256d computes double-SHA256 over data using the stdlib implementation.
// It is the reference used by the scalar kernel and by correctness tests
// that must agree bit-for-bit with every accelerated variant.
func Sha256d(data []byte) [32]byte {
	return scalarSha256d(data)
}
