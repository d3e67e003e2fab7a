package hashkernel

import "github.com/klauspost/cpuid/v2"

// Probe binds the widest hash kernel the running CPU supports: 16-way
// AVX512 preferred, 8-way acceptable, scalar as the last resort. It
// matches the "global compile-time selection of SIMD width becomes a
// runtime capability probe" design note: detection happens once, and the
// returned Kernel's Hash field never branches per call afterward.
func Probe() *Kernel {
	switch {
	case cpuid.CPU.Has(cpuid.AVX512F):
		return NewW16()
	case cpuid.CPU.Has(cpuid.AVX2), cpuid.CPU.Has(cpuid.SHA):
		return NewW8()
	default:
		return NewScalar()
	}
}
