package worker

import (
	"testing"
	"time"

	"github.com/boomstarternetwork/btcminer/internal/hashkernel"
	"github.com/boomstarternetwork/btcminer/internal/job"
	"github.com/boomstarternetwork/btcminer/internal/metrics"
)

// alwaysMeetsTargetBytes is a target every digest satisfies (target
// bytes all 0xff), so a worker mining against it emits a candidate on
// essentially every hashed header — deterministic, not luck-based.
func alwaysMeetsTargetBytes() [32]byte {
	var t [32]byte
	for i := range t {
		t[i] = 0xff
	}
	return t
}

func testJobParams(id string, cleanJobs bool) job.Params {
	return job.Params{
		JobID:           id,
		PrevHash:        "0000000000000000000000000000000000000000000000000000000000000000",
		Coinb1:          "01000000010000000000000000000000000000000000000000000000000000000000000000ffffffff20",
		Coinb2:          "ffffffff0100f2052a010000001976a914000000000000000000000000000000000000000088ac00000000",
		Version:         "00000001",
		Nbits:           "1d00ffff",
		Ntime:           "4dd7f5c7",
		ExtraNonce1:     []byte{0x08, 0x00, 0x00, 0x02},
		ExtraNonce2Size: 4,
		CleanJobs:       cleanJobs,
		Target:          alwaysMeetsTargetBytes(),
	}
}

// TestCleanJobsPreemptionStopsStaleCandidates is Scenario S4 / Testable
// Property 5: once a clean_jobs publish supersedes a Job, the worker
// must stop emitting candidates referencing the superseded job_id
// within one batch interval.
func TestCleanJobsPreemptionStopsStaleCandidates(t *testing.T) {
	d := job.NewDispatcher(1)
	counters := metrics.New(1)
	shares := make(chan ShareCandidate, 4096)
	stop := make(chan struct{})
	defer close(stop)

	w := New(0, d, hashkernel.NewScalar(), shares, counters.Worker(0), stop)
	go w.Run()

	jobA, err := job.New(testJobParams("A", false))
	if err != nil {
		t.Fatal(err)
	}
	d.Publish(jobA)

	if !waitForJobID(shares, "A", 2*time.Second) {
		t.Fatal("worker never emitted a candidate for job A")
	}

	jobB, err := job.New(testJobParams("B", true))
	if err != nil {
		t.Fatal(err)
	}
	d.Publish(jobB)

	// The in-flight batch at the moment of publish is allowed to finish
	// and its shares still get forwarded (spec §4.4 freshness rule), so
	// give that one batch a grace window before asserting.
	time.Sleep(20 * time.Millisecond)

	drainFor(shares, 200*time.Millisecond, func(c ShareCandidate) {
		if c.JobID == "A" {
			t.Fatalf("worker emitted a candidate for superseded job A after a clean_jobs publish of job B")
		}
	})
}

func waitForJobID(shares <-chan ShareCandidate, id string, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		select {
		case c := <-shares:
			if c.JobID == id {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

func drainFor(shares <-chan ShareCandidate, d time.Duration, fn func(ShareCandidate)) {
	deadline := time.After(d)
	for {
		select {
		case c := <-shares:
			fn(c)
		case <-deadline:
			return
		}
	}
}
