// Command btcminer connects to a Stratum V1 pool, mines shares with a
// batched SHA-256d worker pool, and optionally watches a Bitcoin P2P
// peer for whale transactions.
package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/boomstarternetwork/btcminer/internal/config"
	"github.com/boomstarternetwork/btcminer/internal/hashkernel"
	"github.com/boomstarternetwork/btcminer/internal/job"
	"github.com/boomstarternetwork/btcminer/internal/metrics"
	"github.com/boomstarternetwork/btcminer/internal/p2p"
	"github.com/boomstarternetwork/btcminer/internal/stratum"
	"github.com/boomstarternetwork/btcminer/internal/worker"
)

const shareQueueCapacity = 64

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "usage: btcminer <stratum+tcp://host:port> <worker> <password> [p2p_host:port]")
		fmt.Fprintln(os.Stderr, "       btcminer --benchmark")
		os.Exit(1)
	}

	kernel := hashkernel.Probe()
	logrus.WithField("kernel_variant", kernel.Variant).Info("bound hash kernel")

	if cfg.Benchmark {
		runBenchmark(kernel)
		os.Exit(0)
	}

	numWorkers := runtime.NumCPU() - 2
	if numWorkers < 1 {
		numWorkers = 1
	}

	stop := make(chan struct{})
	counters := metrics.New(numWorkers)
	counters.SetKernelVariant(kernel.Variant)

	dispatcher := job.NewDispatcher(numWorkers)
	shares := make(chan worker.ShareCandidate, shareQueueCapacity)

	for i := 0; i < numWorkers; i++ {
		w := worker.New(i, dispatcher, kernel, shares, counters.Worker(i), stop)
		go w.Run()
	}
	logrus.WithField("workers", numWorkers).Info("started worker pool")

	client := stratum.New(stratum.Config{
		Addr:     cfg.StratumAddr,
		Worker:   cfg.Worker,
		Password: cfg.Password,
	}, dispatcher, counters, shares, stop)

	if cfg.P2PAddr != "" {
		whales := make(chan p2p.WhaleEvent, 16)
		listener := p2p.New(cfg.P2PAddr, counters, whales, stop)
		go listener.Run()
		go drainWhaleEvents(whales, stop)
	}

	if err := client.Run(); err != nil {
		if errors.Is(err, stratum.ErrAuthFailed) {
			logrus.WithError(err).Error("pool rejected authorization, exiting")
			os.Exit(2)
		}
		logrus.WithError(err).Error("stratum client exited")
		os.Exit(1)
	}
}

// drainWhaleEvents logs whale events; the real out-of-scope consumer
// (dashboard/metrics exporter) would subscribe here instead.
func drainWhaleEvents(whales <-chan p2p.WhaleEvent, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case w, ok := <-whales:
			if !ok {
				return
			}
			logrus.WithFields(logrus.Fields{
				"txid":   w.TxID,
				"amount": w.AmountSatoshi,
			}).Info("whale event")
		}
	}
}

// runBenchmark drives the bound kernel against a synthetic header for a
// few seconds and reports throughput, serving the --benchmark CLI flag.
func runBenchmark(kernel *hashkernel.Kernel) {
	var headers [hashkernel.BatchSize][hashkernel.HeaderSize]byte
	var out [hashkernel.BatchSize][32]byte

	const duration = 3 * time.Second
	start := time.Now()
	var batches uint64

	for time.Since(start) < duration {
		headers[0][79]++
		kernel.Hash(&headers, hashkernel.BatchSize, &out)
		batches++
	}

	elapsed := time.Since(start).Seconds()
	hashes := float64(batches) * hashkernel.BatchSize
	fmt.Printf("kernel=%s  %.4f MH/s\n", kernel.Variant, hashes/elapsed/1e6)
}
