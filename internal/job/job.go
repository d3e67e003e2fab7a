// Package job implements the Job data model (an immutable snapshot of
// pool-supplied work) and the merkle-root/coinbase construction shared by
// the dispatcher and the worker pool.
package job

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/boomstarternetwork/btcminer/internal/hashkernel"
)

// Params carries the raw mining.notify fields plus the session fields
// (extranonce1/size, target) needed to build a Job.
type Params struct {
	JobID             string
	PrevHash          string
	Coinb1            string
	Coinb2            string
	MerkleBranch      []string
	Version           string
	Nbits             string
	Ntime             string
	CleanJobs         bool
	ExtraNonce1       []byte
	ExtraNonce2Size   uint
	Target            [32]byte
}

// Job is an immutable snapshot of pool-supplied work. Once published it is
// never mutated; a new mining.notify produces a new Job.
type Job struct {
	ID               string
	PrevHash         []byte // 32 bytes, internal byte order
	Coinb1           []byte
	Coinb2           []byte
	MerkleBranch     [][]byte // ordered 32-byte hashes
	Version          []byte   // 4 bytes, internal byte order
	Nbits            []byte   // 4 bytes, internal byte order
	Ntime            []byte   // 4 bytes, internal byte order
	CleanJobs        bool
	ExtraNonce1      []byte
	ExtraNonce2Size  uint
	Target           [32]byte
}

// New decodes Params into a Job. It returns an error on any malformed hex
// field or inconsistent merkle branch entry — callers (the Stratum Client)
// are expected to log and discard the Job on error, per spec §7.
func New(p Params) (*Job, error) {
	j := &Job{
		ID:              p.JobID,
		CleanJobs:       p.CleanJobs,
		ExtraNonce1:     p.ExtraNonce1,
		ExtraNonce2Size: p.ExtraNonce2Size,
		Target:          p.Target,
	}

	var err error

	prevHash, err := hex.DecodeString(p.PrevHash)
	if err != nil {
		return nil, fmt.Errorf("decode prevHash: %w", err)
	}
	if len(prevHash) != 32 {
		return nil, errors.New("prevHash must be 32 bytes")
	}
	j.PrevHash = reverseBytes(restoreWordOrder(prevHash))

	j.Coinb1, err = hex.DecodeString(p.Coinb1)
	if err != nil {
		return nil, fmt.Errorf("decode coinb1: %w", err)
	}

	j.Coinb2, err = hex.DecodeString(p.Coinb2)
	if err != nil {
		return nil, fmt.Errorf("decode coinb2: %w", err)
	}

	for i, mbHex := range p.MerkleBranch {
		mb, err := hex.DecodeString(mbHex)
		if err != nil {
			return nil, fmt.Errorf("decode merkle branch %d: %w", i, err)
		}
		if len(mb) != 32 {
			return nil, fmt.Errorf("merkle branch %d must be 32 bytes, got %d", i, len(mb))
		}
		j.MerkleBranch = append(j.MerkleBranch, mb)
	}

	j.Version, err = hex.DecodeString(p.Version)
	if err != nil || len(j.Version) != 4 {
		return nil, fmt.Errorf("decode version: %w", err)
	}
	reverseInPlace(j.Version)

	j.Nbits, err = hex.DecodeString(p.Nbits)
	if err != nil || len(j.Nbits) != 4 {
		return nil, fmt.Errorf("decode nbits: %w", err)
	}
	reverseInPlace(j.Nbits)

	j.Ntime, err = hex.DecodeString(p.Ntime)
	if err != nil || len(j.Ntime) != 4 {
		return nil, fmt.Errorf("decode ntime: %w", err)
	}
	reverseInPlace(j.Ntime)

	return j, nil
}

// ExtraNonce2 renders counter as a little-endian byte string of the job's
// extranonce2 size.
func (j *Job) ExtraNonce2(counter uint64) []byte {
	b := make([]byte, j.ExtraNonce2Size)
	for i := uint(0); i < j.ExtraNonce2Size; i++ {
		b[i] = byte(counter >> (8 * i))
	}
	return b
}

// Coinbase builds coinbase1 ∥ extranonce1 ∥ extranonce2 ∥ coinbase2.
func (j *Job) Coinbase(extraNonce2 []byte) []byte {
	cb := make([]byte, 0, len(j.Coinb1)+len(j.ExtraNonce1)+len(extraNonce2)+len(j.Coinb2))
	cb = append(cb, j.Coinb1...)
	cb = append(cb, j.ExtraNonce1...)
	cb = append(cb, extraNonce2...)
	cb = append(cb, j.Coinb2...)
	return cb
}

// MerkleRoot computes the merkle root for a given extranonce2: the
// coinbase hash, folded left across the merkle branch. For an empty
// merkle_branch the root is exactly double-SHA256(coinbase) (Testable
// Property 3).
func (j *Job) MerkleRoot(extraNonce2 []byte) [32]byte {
	h := hashkernel.Sha256d(j.Coinbase(extraNonce2))
	for _, branch := range j.MerkleBranch {
		buf := make([]byte, 0, 64)
		buf = append(buf, h[:]...)
		buf = append(buf, branch...)
		h = hashkernel.Sha256d(buf)
	}
	return h
}

// HeaderPrefix builds the first 76 bytes of the block header (everything
// but the nonce) for a given extranonce2: version ∥ prev_hash ∥
// merkle_root ∥ ntime ∥ nbits.
func (j *Job) HeaderPrefix(extraNonce2 []byte) [76]byte {
	var prefix [76]byte
	off := 0
	off += copy(prefix[off:], j.Version)
	off += copy(prefix[off:], j.PrevHash)
	root := j.MerkleRoot(extraNonce2)
	off += copy(prefix[off:], root[:])
	off += copy(prefix[off:], j.Ntime)
	copy(prefix[off:], j.Nbits)
	return prefix
}

// Header builds the full 80-byte header for a given extranonce2 and nonce.
func (j *Job) Header(extraNonce2 []byte, nonce uint32) [80]byte {
	prefix := j.HeaderPrefix(extraNonce2)
	var header [80]byte
	copy(header[:76], prefix[:])
	binary.LittleEndian.PutUint32(header[76:], nonce)
	return header
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

func reverseInPlace(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// restoreWordOrder un-swaps the 4-byte little-endian words the pool sends
// prev_hash in, matching the Stratum convention (the hash is transmitted
// as a sequence of 4-byte LE words, not as one big-endian blob).
func restoreWordOrder(b []byte) []byte {
	out := make([]byte, len(b))
	for i := 0; i < len(b); i += 4 {
		copy(out[len(b)-i-4:len(b)-i], b[i:i+4])
	}
	return out
}
