// Package varint implements the canonical Bitcoin variable-length integer
// encoding used by the P2P listener's message parsing. The job package's
// coinbase builder does not use it: it concatenates the pool-supplied
// coinbase parts and extranonces as raw bytes.
package varint

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned when a read runs past the end of the slice.
var ErrShortBuffer = errors.New("varint: short buffer")

// Write returns the minimal-width Bitcoin varint encoding of v.
func Write(v uint64) []byte {
	switch {
	case v < 0xfd:
		return []byte{byte(v)}
	case v <= 0xffff:
		b := make([]byte, 3)
		b[0] = 0xfd
		binary.LittleEndian.PutUint16(b[1:], uint16(v))
		return b
	case v <= 0xffffffff:
		b := make([]byte, 5)
		b[0] = 0xfe
		binary.LittleEndian.PutUint32(b[1:], uint32(v))
		return b
	default:
		b := make([]byte, 9)
		b[0] = 0xff
		binary.LittleEndian.PutUint64(b[1:], v)
		return b
	}
}

// Read decodes a Bitcoin varint starting at data[0] and returns the value
// plus the number of bytes consumed. It never reads past len(data).
func Read(data []byte) (uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, ErrShortBuffer
	}

	switch data[0] {
	case 0xfd:
		if len(data) < 3 {
			return 0, 0, ErrShortBuffer
		}
		return uint64(binary.LittleEndian.Uint16(data[1:3])), 3, nil
	case 0xfe:
		if len(data) < 5 {
			return 0, 0, ErrShortBuffer
		}
		return uint64(binary.LittleEndian.Uint32(data[1:5])), 5, nil
	case 0xff:
		if len(data) < 9 {
			return 0, 0, ErrShortBuffer
		}
		return binary.LittleEndian.Uint64(data[1:9]), 9, nil
	default:
		return uint64(data[0]), 1, nil
	}
}

// Cursor wraps a byte slice with a read position, used by the P2P parser
// to walk a payload while bounds-checking every field read.
type Cursor struct {
	data []byte
	pos  int
}

// NewCursor creates a Cursor over data starting at position 0.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.data) - c.pos
}

// ReadVarInt reads a varint at the current position and advances the cursor.
func (c *Cursor) ReadVarInt() (uint64, error) {
	v, n, err := Read(c.data[c.pos:])
	if err != nil {
		return 0, err
	}
	c.pos += n
	return v, nil
}

// ReadBytes reads exactly n bytes and advances the cursor.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 || c.Remaining() < n {
		return nil, ErrShortBuffer
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// ReadUint32LE reads a 4-byte little-endian integer and advances the cursor.
func (c *Cursor) ReadUint32LE() (uint32, error) {
	b, err := c.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadUint64LE reads an 8-byte little-endian integer and advances the cursor.
func (c *Cursor) ReadUint64LE() (uint64, error) {
	b, err := c.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadInt64LE reads a signed 8-byte little-endian integer (used for
// transaction output values) and advances the cursor.
func (c *Cursor) ReadInt64LE() (int64, error) {
	v, err := c.ReadUint64LE()
	return int64(v), err
}
