// Package worker implements the CPU-bound mining loop: consume the
// current Job, iterate a disjoint nonce range in 16-wide groups, drive
// the hash kernel, and emit ShareCandidates.
package worker

import (
	"encoding/hex"

	"github.com/sirupsen/logrus"

	"github.com/boomstarternetwork/btcminer/internal/hashkernel"
	"github.com/boomstarternetwork/btcminer/internal/job"
	"github.com/boomstarternetwork/btcminer/internal/metrics"
	"github.com/boomstarternetwork/btcminer/internal/target"
)

// ShareCandidate is emitted by a Worker and consumed once by the Stratum
// Client, which submits it and records the outcome.
type ShareCandidate struct {
	JobID       string
	ExtraNonce2 []byte
	Ntime       []byte
	Nonce       uint32
	Digest      [32]byte
}

// Worker drives one mining goroutine over one disjoint nonce range.
type Worker struct {
	id         int
	dispatcher *job.Dispatcher
	kernel     *hashkernel.Kernel
	shares     chan<- ShareCandidate
	counters   *metrics.WorkerCounters
	stop       <-chan struct{}
}

// New creates a Worker. shares is the bounded MPSC queue toward the
// Stratum Client; stop is closed on process shutdown.
func New(id int, d *job.Dispatcher, k *hashkernel.Kernel, shares chan<- ShareCandidate,
	counters *metrics.WorkerCounters, stop <-chan struct{}) *Worker {
	return &Worker{id: id, dispatcher: d, kernel: k, shares: shares, counters: counters, stop: stop}
}

// Run is the worker's CPU-bound loop. It never blocks on I/O: the only
// suspension is the (non-blocking, buffered) send on the shares channel
// and the stop-channel poll between batches.
func (w *Worker) Run() {
	for {
		select {
		case <-w.stop:
			return
		default:
		}

		snap := w.dispatcher.Current()
		if snap.Job == nil {
			// No job yet; nothing to do until mining.notify arrives.
			continue
		}

		w.mineJob(snap)
	}
}

// mineJob iterates this worker's nonce assignment against one Job,
// abandoning as soon as the dispatcher's generation advances past the
// one snap was observed at.
func (w *Worker) mineJob(snap job.Snapshot) {
	assignments := w.dispatcher.Assignments()
	if w.id >= len(assignments) {
		logrus.WithField("worker", w.id).Error("no nonce assignment for worker index")
		return
	}
	assignment := assignments[w.id]

	var extraNonce2Counter uint64

	for {
		extraNonce2 := snap.Job.ExtraNonce2(extraNonce2Counter)
		prefix := snap.Job.HeaderPrefix(extraNonce2)

		nonce := uint64(assignment.Start)
		end := uint64(assignment.End)

		for nonce < end {
			select {
			case <-w.stop:
				return
			default:
			}

			if w.dispatcher.Current().Generation != snap.Generation {
				return
			}

			var headers [hashkernel.BatchSize][hashkernel.HeaderSize]byte
			n := 0
			for ; n < hashkernel.BatchSize && nonce+uint64(n) < end; n++ {
				var h [80]byte
				copy(h[:76], prefix[:])
				putUint32LE(h[76:], uint32(nonce)+uint32(n))
				headers[n] = h
			}

			var digests [hashkernel.BatchSize][32]byte
			w.kernel.Hash(&headers, n, &digests)
			w.counters.AddHashes(uint64(n))

			for i := 0; i < n; i++ {
				if target.MeetsTarget(digests[i], snap.Job.Target) {
					candidate := ShareCandidate{
						JobID:       snap.Job.ID,
						ExtraNonce2: extraNonce2,
						Ntime:       snap.Job.Ntime,
						Nonce:       uint32(nonce) + uint32(i),
						Digest:      digests[i],
					}
					w.emit(candidate)
				}
			}

			nonce += uint64(n)
		}

		extraNonce2Counter++
	}
}

// emit enqueues a ShareCandidate without blocking the hash loop: if the
// bounded queue is full, the oldest candidate is dropped (shares that
// stale are not worth a submit anyway, per §5 ordering guarantees).
func (w *Worker) emit(c ShareCandidate) {
	w.counters.AddSharesFound(1)
	select {
	case w.shares <- c:
	default:
		select {
		case <-w.shares:
		default:
		}
		select {
		case w.shares <- c:
		default:
			logrus.WithFields(logrus.Fields{
				"worker": w.id,
				"jobID":  c.JobID,
				"nonce":  hex.EncodeToString(uint32ToBytesLE(c.Nonce)),
			}).Warn("share queue saturated, dropping candidate")
		}
	}
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func uint32ToBytesLE(v uint32) []byte {
	b := make([]byte, 4)
	putUint32LE(b, v)
	return b
}
