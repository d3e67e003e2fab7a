// Package stratum implements the Stratum V1 pool client: a stateful
// JSON-RPC-over-TCP peer performing subscribe/authorize/notify/submit,
// reconnecting with backoff on any socket fault.
package stratum

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/boomstarternetwork/btcminer/internal/job"
	"github.com/boomstarternetwork/btcminer/internal/metrics"
	"github.com/boomstarternetwork/btcminer/internal/target"
	"github.com/boomstarternetwork/btcminer/internal/worker"
)

// errCodeJobNotFound is the pool error code for "submit referenced a job
// the pool no longer recognizes" (treated as rejected-stale).
const errCodeJobNotFound = 21

const (
	idleReadTimeout = 30 * time.Second
	maxBackoff      = 30 * time.Second
)

// ErrAuthFailed is returned when the pool rejects mining.authorize. Per
// spec §4.5 this is a terminal condition — Authorizing has no retry edge
// on authorize result = false — so Run returns it instead of reconnecting.
var ErrAuthFailed = errors.New("stratum: pool rejected authorization")

// Config carries everything the Client needs to run one pool session.
type Config struct {
	Addr     string // host:port, without the stratum+tcp:// scheme
	Worker   string
	Password string
}

// Client is the Stratum V1 pool peer. One Client drives exactly one
// Dispatcher; reconnects clear the Dispatcher since extranonce1 no
// longer applies to the new session (spec §4.5 reconnect policy).
type Client struct {
	cfg        Config
	dispatcher *job.Dispatcher
	counters   *metrics.Counters
	shares     <-chan worker.ShareCandidate
	stop       <-chan struct{}

	session *session

	mu      sync.Mutex
	conn    net.Conn
	pending map[uint64]pendingRequest
}

// New creates a Client. shares is the MPSC queue workers publish
// ShareCandidates on; stop is closed on process shutdown.
func New(cfg Config, d *job.Dispatcher, counters *metrics.Counters,
	shares <-chan worker.ShareCandidate, stop <-chan struct{}) *Client {
	return &Client{
		cfg:        cfg,
		dispatcher: d,
		counters:   counters,
		shares:     shares,
		stop:       stop,
		session:    &session{},
		pending:    map[uint64]pendingRequest{},
	}
}

// Run connects and reconnects forever (until stop closes), performing
// the Dial→Subscribing→Authorizing→Ready handshake on each connection. It
// returns nil on a clean stop and ErrAuthFailed if the pool ever rejects
// authorization — that condition is terminal, per spec §4.5, and the
// caller (main) is expected to exit(2) on it rather than restart Run.
func (c *Client) Run() error {
	backoff := time.Second

	for {
		select {
		case <-c.stop:
			return nil
		default:
		}

		err := c.runOnce()
		if errors.Is(err, ErrAuthFailed) {
			return err
		}
		if err != nil {
			logrus.WithError(err).Warn("stratum session ended, reconnecting")
		}

		c.dispatcher.Clear()
		c.session.reset()

		select {
		case <-c.stop:
			return nil
		case <-time.After(jitter(backoff)):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func jitter(d time.Duration) time.Duration {
	return d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
}

// runOnce owns one TCP connection end to end: connect, handshake, then
// the read loop plus the submit-forwarding loop, until either fails.
func (c *Client) runOnce() error {
	conn, err := net.Dial("tcp", c.cfg.Addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	logrus.WithField("addr", c.cfg.Addr).Info("connected to pool")

	if err := c.send(methodSubscribe, kindSubscribe, "", 0,
		"btcminer/1.0"); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	// connDone scopes forwardShares to this connection's lifetime so a
	// reconnect can't leave a stale forwardShares goroutine racing the
	// next connection's over the shared shares channel.
	connDone := make(chan struct{})
	errCh := make(chan error, 1)

	go func() { errCh <- c.readLoop(conn) }()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.forwardShares(connDone)
	}()

	var result error
	select {
	case result = <-errCh:
	case <-c.stop:
		result = nil
	}

	close(connDone)
	wg.Wait()

	return result
}

// forwardShares drains the worker-share queue and submits each one,
// until done closes (this connection's runOnce is returning), c.stop
// closes, the shares channel closes, or a submit fails.
func (c *Client) forwardShares(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-c.stop:
			return
		case s, ok := <-c.shares:
			if !ok {
				return
			}
			if err := c.submit(s); err != nil {
				return
			}
		}
	}
}

// readLoop reads LF-delimited JSON lines until the socket errors or
// idles past idleReadTimeout.
func (c *Client) readLoop(conn net.Conn) error {
	r := bufio.NewReader(conn)
	for {
		conn.SetReadDeadline(time.Now().Add(idleReadTimeout))

		line, err := r.ReadBytes('\n')
		if err != nil {
			return err
		}
		if len(line) == 0 {
			continue
		}

		if err := c.handleLine(line); err != nil {
			if errors.Is(err, ErrAuthFailed) {
				return err
			}
			logrus.WithError(err).Error("failed to handle stratum line")
		}
	}
}

// handleLine parses one JSON-RPC line and routes it as either a
// server-initiated request (method != "") or a response to one of our
// outstanding requests.
func (c *Client) handleLine(line []byte) error {
	var req request
	if err := json.Unmarshal(line, &req); err == nil && req.Method != "" {
		return c.handleNotification(req)
	}

	var res response
	if err := json.Unmarshal(line, &res); err != nil {
		return fmt.Errorf("unmarshal line: %w", err)
	}

	c.mu.Lock()
	pend, ok := c.pending[res.ID]
	if ok {
		delete(c.pending, res.ID)
	}
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("response for unknown request id %d", res.ID)
	}

	switch pend.kind {
	case kindSubscribe:
		return c.handleSubscribeResult(res)
	case kindAuthorize:
		return c.handleAuthorizeResult(res)
	case kindSubmit:
		c.handleSubmitResult(res, pend)
	}
	return nil
}

func (c *Client) handleSubscribeResult(res response) error {
	if res.Error != nil {
		return errors.New("subscribe error: " + res.Error.Message)
	}

	result, ok := res.Result.([]interface{})
	if !ok || len(result) != 3 {
		return errors.New("malformed subscribe result")
	}

	extraNonce1Hex, ok := result[1].(string)
	if !ok {
		return errors.New("malformed extranonce1 in subscribe result")
	}
	extraNonce1, err := hex.DecodeString(extraNonce1Hex)
	if err != nil {
		return fmt.Errorf("decode extranonce1: %w", err)
	}

	sizeF, ok := result[2].(float64)
	if !ok {
		return errors.New("malformed extranonce2_size in subscribe result")
	}

	c.session.setSubscription(extraNonce1, uint(sizeF))

	logrus.WithFields(logrus.Fields{
		"extranonce1":      extraNonce1Hex,
		"extranonce2_size": uint(sizeF),
	}).Info("subscribed")

	return c.send(methodAuthorize, kindAuthorize, "", 0, c.cfg.Worker, c.cfg.Password)
}

func (c *Client) handleAuthorizeResult(res response) error {
	if res.Error != nil {
		return fmt.Errorf("%w: %s", ErrAuthFailed, res.Error.Message)
	}
	ok, _ := res.Result.(bool)
	if !ok {
		return ErrAuthFailed
	}

	c.session.setAuthorized(true)
	logrus.Info("authorized, session ready")
	return nil
}

func (c *Client) handleSubmitResult(res response, pend pendingRequest) {
	if res.Error != nil {
		if res.Error.Code == errCodeJobNotFound {
			c.counters.AddShareRejectedStale()
		} else {
			c.counters.AddShareRejectedOther()
		}
		logrus.WithFields(logrus.Fields{
			"jobID":   pend.jobID,
			"nonce":   pend.nonce,
			"errCode": res.Error.Code,
			"err":     res.Error.Message,
		}).Warn("share rejected")
		return
	}

	accepted, _ := res.Result.(bool)
	if accepted {
		c.counters.AddShareAccepted()
	} else {
		c.counters.AddShareRejectedOther()
	}
}

// handleNotification routes server-initiated calls (id == null):
// mining.set_difficulty and mining.notify.
func (c *Client) handleNotification(req request) error {
	switch req.Method {
	case methodSetDifficulty:
		if len(req.Params) != 1 {
			return errors.New("set_difficulty: expected 1 param")
		}
		d, ok := req.Params[0].(float64)
		if !ok {
			return errors.New("set_difficulty: malformed difficulty")
		}
		c.session.setDifficulty(d)
		c.counters.SetDifficulty(d)
		return nil

	case methodNotify:
		return c.handleNotify(req)

	default:
		logrus.WithField("method", req.Method).Warn("unsupported notification")
		return nil
	}
}

func (c *Client) handleNotify(req request) error {
	if len(req.Params) != 9 {
		return errors.New("notify: expected 9 params")
	}

	get := func(i int) (string, bool) { s, ok := req.Params[i].(string); return s, ok }

	jobID, ok := get(0)
	if !ok {
		return errors.New("notify: malformed job_id")
	}
	prevHash, ok := get(1)
	if !ok {
		return errors.New("notify: malformed prev_hash")
	}
	coinb1, ok := get(2)
	if !ok {
		return errors.New("notify: malformed coinb1")
	}
	coinb2, ok := get(3)
	if !ok {
		return errors.New("notify: malformed coinb2")
	}

	branchesRaw, ok := req.Params[4].([]interface{})
	if !ok {
		return errors.New("notify: malformed merkle_branch")
	}
	var branches []string
	for _, b := range branchesRaw {
		s, ok := b.(string)
		if !ok {
			return errors.New("notify: malformed merkle_branch entry")
		}
		branches = append(branches, s)
	}

	version, ok := get(5)
	if !ok {
		return errors.New("notify: malformed version")
	}
	nbits, ok := get(6)
	if !ok {
		return errors.New("notify: malformed nbits")
	}
	ntime, ok := get(7)
	if !ok {
		return errors.New("notify: malformed ntime")
	}
	cleanJobs, ok := req.Params[8].(bool)
	if !ok {
		return errors.New("notify: malformed clean_jobs")
	}

	extraNonce1, extraNonce2Size := c.session.subscription()

	params := job.Params{
		JobID:           jobID,
		PrevHash:        prevHash,
		Coinb1:          coinb1,
		Coinb2:          coinb2,
		MerkleBranch:    branches,
		Version:         version,
		Nbits:           nbits,
		Ntime:           ntime,
		CleanJobs:       cleanJobs,
		ExtraNonce1:     extraNonce1,
		ExtraNonce2Size: extraNonce2Size,
		Target:          target.Bytes32(target.FromDifficulty(c.session.currentDifficulty())),
	}

	j, err := job.New(params)
	if err != nil {
		// Malformed Job: log and keep the connection, per spec §7 — the
		// Dispatcher keeps serving whatever Job it already had.
		logrus.WithError(err).Error("malformed job from pool, ignoring")
		return nil
	}

	gen := c.dispatcher.Publish(j)
	logrus.WithFields(logrus.Fields{
		"jobID":      jobID,
		"generation": gen,
		"cleanJobs":  cleanJobs,
	}).Info("published job")
	return nil
}

// submit sends mining.submit for one ShareCandidate.
func (c *Client) submit(s worker.ShareCandidate) error {
	return c.send(methodSubmit, kindSubmit, s.JobID, s.Nonce,
		c.cfg.Worker, s.JobID,
		hex.EncodeToString(s.ExtraNonce2),
		hex.EncodeToString(s.Ntime),
		hex.EncodeToString(uint32LE(s.Nonce)))
}

func uint32LE(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// send marshals and writes one JSON-RPC request, recording it in the
// pending table under a freshly allocated ID so the response can be
// routed back to kind.
func (c *Client) send(method string, kind requestKind, jobID string, nonce uint32, params ...interface{}) error {
	id := c.session.allocateRequestID()

	req := struct {
		ID     uint64        `json:"id"`
		Method string        `json:"method"`
		Params []interface{} `json:"params"`
	}{ID: id, Method: method, Params: params}

	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')

	c.mu.Lock()
	conn := c.conn
	c.pending[id] = pendingRequest{kind: kind, jobID: jobID, nonce: nonce}
	c.mu.Unlock()

	if conn == nil {
		return errors.New("not connected")
	}

	logrus.WithFields(logrus.Fields{"method": method, "id": id}).Debug("sending rpc call")

	written := 0
	for written < len(payload) {
		n, err := conn.Write(payload[written:])
		if err != nil {
			return err
		}
		written += n
	}
	return nil
}

// IsReady reports whether the session has completed authorization.
func (c *Client) IsReady() bool {
	return c.session.isAuthorized()
}
