// Package p2p implements the passive Bitcoin P2P listener: outbound
// handshake, ping/pong liveness, inv-driven transaction fetch, and the
// whale-transaction parser.
package p2p

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/boomstarternetwork/btcminer/internal/hashkernel"
)

// magicMainnet is the Bitcoin mainnet network magic.
const magicMainnet uint32 = 0xD9B4BEF9

// maxPayload is the 32 MiB frame cap; frames declaring a larger payload
// are dropped and the connection is closed (spec §3 P2P invariant).
const maxPayload = 32 * 1024 * 1024

var (
	errBadMagic    = errors.New("p2p: bad magic")
	errOversize    = errors.New("p2p: payload exceeds 32 MiB cap")
	errBadChecksum = errors.New("p2p: checksum mismatch")
)

// frame is one decoded P2P message: a 12-byte NUL-padded ASCII command
// plus its payload.
type frame struct {
	command string
	payload []byte
}

// checksum4 returns the first 4 bytes of double-SHA256(payload), the
// Bitcoin frame checksum.
func checksum4(payload []byte) [4]byte {
	h := hashkernel.Sha256d(payload)
	var out [4]byte
	copy(out[:], h[:4])
	return out
}

// encodeFrame builds magic ∥ command(12, NUL-padded) ∥ length(4 LE) ∥
// checksum(4) ∥ payload.
func encodeFrame(command string, payload []byte) []byte {
	if len(command) > 12 {
		panic("p2p: command name too long")
	}

	buf := make([]byte, 0, 24+len(payload))

	var magicBytes [4]byte
	binary.LittleEndian.PutUint32(magicBytes[:], magicMainnet)
	buf = append(buf, magicBytes[:]...)

	var cmd [12]byte
	copy(cmd[:], command)
	buf = append(buf, cmd[:]...)

	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(payload)))
	buf = append(buf, length[:]...)

	sum := checksum4(payload)
	buf = append(buf, sum[:]...)

	buf = append(buf, payload...)
	return buf
}

// readFrame reads and validates one frame from r: magic, declared
// length against the 32 MiB cap, and the checksum against the actual
// payload bytes.
func readFrame(r io.Reader) (frame, error) {
	var header [24]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return frame{}, err
	}

	magic := binary.LittleEndian.Uint32(header[0:4])
	if magic != magicMainnet {
		return frame{}, errBadMagic
	}

	command := string(bytes.TrimRight(header[4:16], "\x00"))
	length := binary.LittleEndian.Uint32(header[16:20])
	if length > maxPayload {
		return frame{}, fmt.Errorf("%w: command=%s length=%d", errOversize, command, length)
	}

	var wantChecksum [4]byte
	copy(wantChecksum[:], header[20:24])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return frame{}, err
	}

	if checksum4(payload) != wantChecksum {
		return frame{}, fmt.Errorf("%w: command=%s", errBadChecksum, command)
	}

	return frame{command: command, payload: payload}, nil
}
