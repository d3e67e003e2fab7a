package p2p

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/boomstarternetwork/btcminer/internal/varint"
)

// protocolVersion is the minimum protocol version this listener speaks
// (spec §4.6 handshake requirement: protocol >= 70015).
const protocolVersion int32 = 70015

// nodeNetwork is the NODE_NETWORK service bit.
const nodeNetwork uint64 = 1

// buildVersionPayload builds the version message payload. The nonce is
// a uniformly random 64-bit value read from crypto/rand — the source
// this spec was distilled from used the current timestamp instead,
// which the design notes call out as a bug, not a contract.
func buildVersionPayload(peerAddr, fromAddr [26]byte) ([]byte, uint64, error) {
	var nonceBuf [8]byte
	if _, err := rand.Read(nonceBuf[:]); err != nil {
		return nil, 0, fmt.Errorf("generate version nonce: %w", err)
	}
	nonce := binary.LittleEndian.Uint64(nonceBuf[:])

	buf := make([]byte, 0, 86)

	var v [4]byte
	binary.LittleEndian.PutUint32(v[:], uint32(protocolVersion))
	buf = append(buf, v[:]...)

	var services [8]byte
	binary.LittleEndian.PutUint64(services[:], nodeNetwork)
	buf = append(buf, services[:]...)

	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(time.Now().Unix()))
	buf = append(buf, ts[:]...)

	buf = append(buf, peerAddr[:]...)
	buf = append(buf, fromAddr[:]...)

	buf = append(buf, nonceBuf[:]...)

	// empty user-agent varstring: varint(0) with no following bytes
	buf = append(buf, varint.Write(0)...)

	var startHeight [4]byte
	binary.LittleEndian.PutUint32(startHeight[:], 0)
	buf = append(buf, startHeight[:]...)

	buf = append(buf, 1) // relay = true

	return buf, nonce, nil
}

// netAddr builds the 26-byte (services 8 + ip 16 + port 2) address
// field used inside version, with services fixed to NODE_NETWORK and
// an IPv4-mapped IPv6 address (::ffff:0:0 when the peer's real address
// is not tracked, since this listener never advertises reachability).
func netAddr() [26]byte {
	var a [26]byte
	binary.LittleEndian.PutUint64(a[0:8], nodeNetwork)
	a[18] = 0xff
	a[19] = 0xff
	return a
}

// peerVersion is the subset of the peer's version message this
// listener inspects.
type peerVersion struct {
	protocolVersion int32
	services        uint64
	userAgent       string
	startHeight     int32
}

func parseVersion(payload []byte) (peerVersion, error) {
	c := varint.NewCursor(payload)

	versionBytes, err := c.ReadBytes(4)
	if err != nil {
		return peerVersion{}, err
	}
	services, err := c.ReadUint64LE()
	if err != nil {
		return peerVersion{}, err
	}
	if _, err := c.ReadBytes(8); err != nil { // timestamp
		return peerVersion{}, err
	}
	if _, err := c.ReadBytes(26); err != nil { // addr_recv
		return peerVersion{}, err
	}
	if _, err := c.ReadBytes(26); err != nil { // addr_from
		return peerVersion{}, err
	}
	if _, err := c.ReadBytes(8); err != nil { // nonce
		return peerVersion{}, err
	}

	uaLen, err := c.ReadVarInt()
	if err != nil {
		return peerVersion{}, err
	}
	uaBytes, err := c.ReadBytes(int(uaLen))
	if err != nil {
		return peerVersion{}, err
	}

	startHeightBytes, err := c.ReadBytes(4)
	if err != nil {
		return peerVersion{}, err
	}

	return peerVersion{
		protocolVersion: int32(binary.LittleEndian.Uint32(versionBytes)),
		services:        services,
		userAgent:       string(uaBytes),
		startHeight:     int32(binary.LittleEndian.Uint32(startHeightBytes)),
	}, nil
}
