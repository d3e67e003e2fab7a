// Package target implements the share validator: translating pool
// difficulty into a 256-bit comparison target and checking digests
// against it, grounded on the difficulty/target conversions found
// throughout the retrieval pack's sharechain utilities.
package target

import "math/big"

// Diff1 is the canonical Bitcoin difficulty-1 target.
var Diff1 = func() *big.Int {
	t, _ := new(big.Int).SetString("00000000ffff0000000000000000000000000000000000000000000000000000", 16)
	return t
}()

// FromDifficulty derives a 256-bit target from a pool difficulty, per
// spec.md §4.2: target = floor(Diff1 / d).
func FromDifficulty(d float64) *big.Int {
	if d <= 0 {
		return new(big.Int).Set(Diff1)
	}

	// target = floor(Diff1 / d); compute in big.Float for the division,
	// then truncate to big.Int.
	diff1f := new(big.Float).SetInt(Diff1)
	df := new(big.Float).SetFloat64(d)
	tf := new(big.Float).Quo(diff1f, df)

	t, _ := tf.Int(nil)
	return t
}

// Bytes32 renders a target as a fixed 32-byte big-endian array, matching
// the internal byte order used for digest comparison.
func Bytes32(t *big.Int) [32]byte {
	var out [32]byte
	b := t.Bytes()
	copy(out[32-len(b):], b)
	return out
}

// MeetsTarget reports whether digest (as produced by the hash kernel, in
// its natural internal byte order) meets target once byte-reversed and
// interpreted as a big-endian unsigned integer. This is constant-work and
// performs no allocation beyond the local reversal buffer.
func MeetsTarget(digest [32]byte, target [32]byte) bool {
	var rev [32]byte
	for i := range digest {
		rev[i] = digest[31-i]
	}
	for i := 0; i < 32; i++ {
		switch {
		case rev[i] < target[i]:
			return true
		case rev[i] > target[i]:
			return false
		}
	}
	return true
}
