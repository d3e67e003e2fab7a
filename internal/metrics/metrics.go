// Package metrics implements the sharded atomic counters published to
// the out-of-scope observability consumer: hashes attempted, shares
// found/accepted/rejected, current difficulty, kernel variant, and
// whale events.
package metrics

import (
	"math"
	"sync/atomic"

	"github.com/boomstarternetwork/btcminer/internal/hashkernel"
)

// cachelinePad is sized so a WorkerCounters' hot atomic does not share a
// cache line with its neighbors in a []WorkerCounters slice.
const cachelinePad = 64 - 8

// WorkerCounters holds one worker's hash counter, padded to a full cache
// line. The teacher's BTCMiner kept a bare []uint64 slice of counters
// updated via sync/atomic; this generalizes that to one padded counter
// per worker to avoid false sharing under concurrent increment.
type WorkerCounters struct {
	hashes atomic.Uint64
	_      [cachelinePad]byte

	sharesFound atomic.Uint64
	_           [cachelinePad]byte
}

// AddHashes adds n to this worker's hash counter.
func (w *WorkerCounters) AddHashes(n uint64) {
	w.hashes.Add(n)
}

// AddSharesFound adds n to this worker's shares-found counter.
func (w *WorkerCounters) AddSharesFound(n uint64) {
	w.sharesFound.Add(n)
}

// Snapshot is the published-counters shape from spec §6.
type Snapshot struct {
	HashesTotal         uint64
	SharesFound         uint64
	SharesAccepted      uint64
	SharesRejectedStale uint64
	SharesRejectedOther uint64
	CurrentDifficulty   float64
	KernelVariant       hashkernel.Variant
	WhaleEventsTotal    uint64
}

// Counters is the process-wide counter set: per-worker shards plus
// atomics for everything that has exactly one writer (the Stratum
// Client for shares/difficulty, the P2P Listener for whale events).
type Counters struct {
	workers []WorkerCounters

	sharesAccepted      atomic.Uint64
	sharesRejectedStale atomic.Uint64
	sharesRejectedOther atomic.Uint64
	whaleEventsTotal    atomic.Uint64
	currentDifficulty   atomic.Uint64 // math.Float64bits

	variant atomic.Value // hashkernel.Variant
}

// New allocates a Counters set for the given worker count.
func New(workers int) *Counters {
	return &Counters{workers: make([]WorkerCounters, workers)}
}

// Worker returns the shard for worker index i. i must be in range; the
// caller (main, wiring up workers at startup) owns that invariant.
func (c *Counters) Worker(i int) *WorkerCounters {
	return &c.workers[i]
}

// SetKernelVariant records the kernel variant bound at startup.
func (c *Counters) SetKernelVariant(v hashkernel.Variant) {
	c.variant.Store(v)
}

// SetDifficulty records the pool's current difficulty.
func (c *Counters) SetDifficulty(d float64) {
	c.currentDifficulty.Store(math.Float64bits(d))
}

// AddShareAccepted records one accepted share.
func (c *Counters) AddShareAccepted() {
	c.sharesAccepted.Add(1)
}

// AddShareRejectedStale records one stale-rejected share.
func (c *Counters) AddShareRejectedStale() {
	c.sharesRejectedStale.Add(1)
}

// AddShareRejectedOther records one non-stale-rejected share.
func (c *Counters) AddShareRejectedOther() {
	c.sharesRejectedOther.Add(1)
}

// AddWhaleEvent records one observed whale transaction.
func (c *Counters) AddWhaleEvent() {
	c.whaleEventsTotal.Add(1)
}

// Snapshot sums the per-worker shards and returns the full published
// counter set.
func (c *Counters) Snapshot() Snapshot {
	var hashes, found uint64
	for i := range c.workers {
		hashes += c.workers[i].hashes.Load()
		found += c.workers[i].sharesFound.Load()
	}

	variant, _ := c.variant.Load().(hashkernel.Variant)

	return Snapshot{
		HashesTotal:         hashes,
		SharesFound:         found,
		SharesAccepted:      c.sharesAccepted.Load(),
		SharesRejectedStale: c.sharesRejectedStale.Load(),
		SharesRejectedOther: c.sharesRejectedOther.Load(),
		CurrentDifficulty:   math.Float64frombits(c.currentDifficulty.Load()),
		KernelVariant:       variant,
		WhaleEventsTotal:    c.whaleEventsTotal.Load(),
	}
}
