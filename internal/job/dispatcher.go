package job

import (
	"sync/atomic"
)

// NonceAssignment is a half-open range [Start, End) of u32 nonces handed
// to one worker for the current Job. Both bounds are held as uint64 so
// the last worker's exclusive End can be exactly 2^32.
type NonceAssignment struct {
	Start uint64
	End   uint64 // exclusive; at most 2^32
}

// Partition splits [0, 2^32) evenly across n workers. Worker i gets
// [i*floor(2^32/n), (i+1)*floor(2^32/n)); the last worker absorbs the
// remainder so the union is exactly [0, 2^32) and ranges are disjoint
// (Testable Property 6).
func Partition(n int) []NonceAssignment {
	if n <= 0 {
		return nil
	}

	const space = uint64(1) << 32
	share := space / uint64(n)

	out := make([]NonceAssignment, n)
	for i := 0; i < n; i++ {
		start := uint64(i) * share
		end := start + share
		if i == n-1 {
			end = space
		}
		out[i] = NonceAssignment{Start: start, End: end}
	}
	return out
}

// Snapshot is what a Worker reads: the current Job plus the generation it
// was published under.
type Snapshot struct {
	Job        *Job
	Generation uint64
}

// Dispatcher owns the single "current job" slot and the atomic generation
// counter. Publication follows a read-copy-update discipline: writers
// atomically swap a pointer to an immutable snapshot; readers take the
// pointer and the generation tag with it. This mirrors the
// atomic.Value-based job managers found in pool-side Stratum
// implementations, adapted here to a single-writer consumer instead of a
// timer-driven template refresh.
type Dispatcher struct {
	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
	workers    int
}

// NewDispatcher creates a Dispatcher for workers worker goroutines.
func NewDispatcher(workers int) *Dispatcher {
	d := &Dispatcher{workers: workers}
	d.current.Store(&Snapshot{})
	return d
}

// Publish stores j as the current Job. Every publish, whatever
// j.CleanJobs says, bumps the generation and then swaps in a new
// Snapshot carrying it. Workers compare the snapshot's generation between
// 16-wide batches, so they drop the old Job and pick up j at their next
// check; a batch already in flight completes and its shares are still
// forwarded. CleanJobs does not change this path.
func (d *Dispatcher) Publish(j *Job) uint64 {
	gen := d.generation.Add(1)
	d.current.Store(&Snapshot{Job: j, Generation: gen})
	return gen
}

// Clear removes the current Job (used on Stratum reconnect, since the
// session's extranonce1 no longer applies once the handshake reruns).
func (d *Dispatcher) Clear() {
	d.generation.Add(1)
	d.current.Store(&Snapshot{})
}

// Current returns the latest published Snapshot.
func (d *Dispatcher) Current() Snapshot {
	return *d.current.Load()
}

// Assignments returns the nonce-space partition for the dispatcher's
// worker count, recomputed fresh on every publish per spec §4.4 step 3.
func (d *Dispatcher) Assignments() []NonceAssignment {
	return Partition(d.workers)
}
