package p2p

import (
	"encoding/hex"
	"fmt"

	"github.com/boomstarternetwork/btcminer/internal/hashkernel"
	"github.com/boomstarternetwork/btcminer/internal/varint"
)

// whaleThresholdSatoshis is the 1 BTC whale criterion from spec §4.6.
const whaleThresholdSatoshis = 100_000_000

// WhaleEvent is emitted when a parsed transaction's total output value
// exceeds the whale threshold.
type WhaleEvent struct {
	TxID          string
	AmountSatoshi uint64
}

// parseTx parses a raw transaction and returns the total output value.
// Every field read is bounds-checked via varint.Cursor; a short or
// malformed buffer aborts parsing of this transaction only (spec §4.6
// safety requirement), never the connection.
func parseTx(raw []byte) (uint64, error) {
	c := varint.NewCursor(raw)

	if _, err := c.ReadBytes(4); err != nil { // version
		return 0, fmt.Errorf("read version: %w", err)
	}

	inputCount, err := c.ReadVarInt()
	if err != nil {
		return 0, fmt.Errorf("read input count: %w", err)
	}

	for i := uint64(0); i < inputCount; i++ {
		if _, err := c.ReadBytes(36); err != nil { // prev_out
			return 0, fmt.Errorf("read input %d prev_out: %w", i, err)
		}
		scriptLen, err := c.ReadVarInt()
		if err != nil {
			return 0, fmt.Errorf("read input %d script_len: %w", i, err)
		}
		if _, err := c.ReadBytes(int(scriptLen)); err != nil {
			return 0, fmt.Errorf("read input %d script: %w", i, err)
		}
		if _, err := c.ReadBytes(4); err != nil { // sequence
			return 0, fmt.Errorf("read input %d sequence: %w", i, err)
		}
	}

	outputCount, err := c.ReadVarInt()
	if err != nil {
		return 0, fmt.Errorf("read output count: %w", err)
	}

	var total uint64
	for i := uint64(0); i < outputCount; i++ {
		value, err := c.ReadInt64LE()
		if err != nil {
			return 0, fmt.Errorf("read output %d value: %w", i, err)
		}
		if value > 0 {
			total += uint64(value)
		}
		scriptLen, err := c.ReadVarInt()
		if err != nil {
			return 0, fmt.Errorf("read output %d script_len: %w", i, err)
		}
		if _, err := c.ReadBytes(int(scriptLen)); err != nil {
			return 0, fmt.Errorf("read output %d script: %w", i, err)
		}
	}

	return total, nil
}

// evaluateWhale parses raw and, if its total output value exceeds the
// whale threshold, returns a WhaleEvent whose txid is
// reverse_bytes(double-SHA256(raw)) per spec §4.6.
func evaluateWhale(raw []byte) (*WhaleEvent, error) {
	total, err := parseTx(raw)
	if err != nil {
		return nil, err
	}
	if total <= whaleThresholdSatoshis {
		return nil, nil
	}

	digest := hashkernel.Sha256d(raw)
	var reversed [32]byte
	for i := range digest {
		reversed[i] = digest[31-i]
	}

	return &WhaleEvent{
		TxID:          hex.EncodeToString(reversed[:]),
		AmountSatoshi: total,
	}, nil
}
