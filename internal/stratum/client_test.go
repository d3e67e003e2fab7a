package stratum

import (
	"encoding/hex"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/boomstarternetwork/btcminer/internal/job"
	"github.com/boomstarternetwork/btcminer/internal/metrics"
	"github.com/boomstarternetwork/btcminer/internal/worker"
)

// TestScriptedHandshakeReachesReady is Scenario S3: scripted subscribe
// and authorize responses must drive the Client from Subscribing through
// Authorizing to Ready, with the subscribed extranonce1/extranonce2_size
// recorded on the session.
func TestScriptedHandshakeReachesReady(t *testing.T) {
	clientConn, poolConn := net.Pipe()
	defer clientConn.Close()
	defer poolConn.Close()

	dispatcher := job.NewDispatcher(1)
	counters := metrics.New(1)
	shares := make(chan worker.ShareCandidate, 1)
	stop := make(chan struct{})
	defer close(stop)

	c := New(Config{Addr: "unused", Worker: "rig1", Password: "x"},
		dispatcher, counters, shares, stop)
	c.conn = clientConn

	// Drain whatever the client writes (subscribe/authorize requests) so
	// its Write calls never block on the pipe.
	go io.Copy(io.Discard, poolConn)

	readErrCh := make(chan error, 1)
	go func() { readErrCh <- c.readLoop(clientConn) }()

	// Pin the request ID counter so the subscribe request gets id 1,
	// matching the scripted response below, the way the real pool
	// session would line them up.
	c.session.nextRequestID = 1
	if err := c.send(methodSubscribe, kindSubscribe, "", 0, "btcminer/1.0"); err != nil {
		t.Fatalf("send subscribe: %v", err)
	}

	lines := []string{
		`{"id":1,"result":[[["mining.notify","x"]],"08000002",4],"error":null}` + "\n",
		`{"id":2,"result":true,"error":null}` + "\n",
	}
	for _, line := range lines {
		if _, err := poolConn.Write([]byte(line)); err != nil {
			t.Fatalf("write scripted response: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for !c.IsReady() {
		if time.Now().After(deadline) {
			t.Fatal("client never reached Ready")
		}
		time.Sleep(time.Millisecond)
	}

	extraNonce1, extraNonce2Size := c.session.subscription()
	if hex.EncodeToString(extraNonce1) != "08000002" {
		t.Errorf("extranonce1 = %x, want 08000002", extraNonce1)
	}
	if extraNonce2Size != 4 {
		t.Errorf("extranonce2_size = %d, want 4", extraNonce2Size)
	}
}

// TestAuthorizeRejectionIsTerminal is the negative half of the Authorizing
// state: a false authorize result must surface as ErrAuthFailed, not as a
// generic error Run would retry on.
func TestAuthorizeRejectionIsTerminal(t *testing.T) {
	clientConn, poolConn := net.Pipe()
	defer clientConn.Close()
	defer poolConn.Close()

	dispatcher := job.NewDispatcher(1)
	counters := metrics.New(1)
	shares := make(chan worker.ShareCandidate, 1)
	stop := make(chan struct{})
	defer close(stop)

	c := New(Config{Addr: "unused", Worker: "rig1", Password: "x"},
		dispatcher, counters, shares, stop)
	c.conn = clientConn

	go io.Copy(io.Discard, poolConn)

	readErrCh := make(chan error, 1)
	go func() { readErrCh <- c.readLoop(clientConn) }()

	c.session.nextRequestID = 1
	if err := c.send(methodAuthorize, kindAuthorize, "", 0, "rig1", "x"); err != nil {
		t.Fatalf("send authorize: %v", err)
	}

	if _, err := poolConn.Write([]byte(`{"id":1,"result":false,"error":null}` + "\n")); err != nil {
		t.Fatalf("write scripted response: %v", err)
	}

	select {
	case err := <-readErrCh:
		if err == nil {
			t.Fatal("readLoop returned nil, want ErrAuthFailed")
		}
		if !errors.Is(err, ErrAuthFailed) {
			t.Fatalf("readLoop error = %v, want ErrAuthFailed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("readLoop never returned after authorize rejection")
	}

	if c.IsReady() {
		t.Error("client should not be ready after a rejected authorization")
	}
}
