package p2p

import (
	"encoding/binary"
	"errors"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/boomstarternetwork/btcminer/internal/metrics"
	"github.com/boomstarternetwork/btcminer/internal/varint"
)

// idleTimeout is the 120 s idle-read timeout that triggers a reconnect
// (spec §5).
const idleTimeout = 120 * time.Second

// handshakePhase tracks a P2P Peer State's handshake progress (spec §3).
type handshakePhase string

const (
	phaseSentVersion handshakePhase = "sent_version"
	phaseGotVersion  handshakePhase = "got_version"
	phaseVerackSent  handshakePhase = "verack_sent"
	phaseReady       handshakePhase = "ready"
)

// Listener is the passive P2P peer: it dials one Bitcoin node, performs
// the handshake, and surfaces whale events, reconnecting on any socket
// fault or idle timeout.
type Listener struct {
	addr     string
	counters *metrics.Counters
	whales   chan<- WhaleEvent
	stop     <-chan struct{}

	phase handshakePhase
}

// New creates a Listener. whales is a caller-owned channel the Listener
// sends WhaleEvents on (non-blocking; a full channel drops the event
// and logs it, since this is a passive observer, not a queue of
// record).
func New(addr string, counters *metrics.Counters, whales chan<- WhaleEvent, stop <-chan struct{}) *Listener {
	return &Listener{addr: addr, counters: counters, whales: whales, stop: stop}
}

// Run connects and reconnects forever (until stop closes).
func (l *Listener) Run() {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-l.stop:
			return
		default:
		}

		if err := l.runOnce(); err != nil {
			logrus.WithError(err).Warn("p2p session ended, reconnecting")
		}

		select {
		case <-l.stop:
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (l *Listener) runOnce() error {
	conn, err := net.Dial("tcp", l.addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	logrus.WithField("addr", l.addr).Info("connected to p2p peer")
	l.phase = phaseSentVersion

	payload, _, err := buildVersionPayload(netAddr(), netAddr())
	if err != nil {
		return err
	}
	if _, err := conn.Write(encodeFrame("version", payload)); err != nil {
		return err
	}

	for {
		select {
		case <-l.stop:
			return nil
		default:
		}

		conn.SetReadDeadline(time.Now().Add(idleTimeout))

		f, err := readFrame(conn)
		if err != nil {
			return err
		}

		if err := l.handleFrame(conn, f); err != nil {
			logrus.WithError(err).WithField("command", f.command).
				Error("failed to handle p2p message, dropping frame")
		}
	}
}

func (l *Listener) handleFrame(conn net.Conn, f frame) error {
	switch f.command {
	case "version":
		pv, err := parseVersion(f.payload)
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"protocolVersion": pv.protocolVersion,
			"userAgent":       pv.userAgent,
			"startHeight":     pv.startHeight,
		}).Info("received peer version")
		l.phase = phaseGotVersion
		if _, err := conn.Write(encodeFrame("verack", nil)); err != nil {
			return err
		}
		l.phase = phaseVerackSent
		return nil

	case "verack":
		l.phase = phaseReady
		logrus.Info("p2p handshake complete")
		return nil

	case "ping":
		return l.handlePing(conn, f.payload)

	case "inv":
		return l.handleInv(conn, f.payload)

	case "tx":
		return l.handleTx(f.payload)

	default:
		return nil
	}
}

func (l *Listener) handlePing(conn net.Conn, payload []byte) error {
	if len(payload) != 8 {
		return errShortPing
	}
	_, err := conn.Write(encodeFrame("pong", payload))
	return err
}

var errShortPing = errors.New("p2p: ping payload must be 8 bytes")

const invTypeTx = 1

func (l *Listener) handleInv(conn net.Conn, payload []byte) error {
	c := varint.NewCursor(payload)
	count, err := c.ReadVarInt()
	if err != nil {
		return err
	}

	for i := uint64(0); i < count; i++ {
		typ, err := c.ReadUint32LE()
		if err != nil {
			return err
		}
		hash, err := c.ReadBytes(32)
		if err != nil {
			return err
		}
		if typ != invTypeTx {
			continue
		}

		getdata := make([]byte, 0, len(varint.Write(1))+36)
		getdata = append(getdata, varint.Write(1)...)
		var typBuf [4]byte
		binary.LittleEndian.PutUint32(typBuf[:], invTypeTx)
		getdata = append(getdata, typBuf[:]...)
		getdata = append(getdata, hash...)

		if _, err := conn.Write(encodeFrame("getdata", getdata)); err != nil {
			return err
		}
	}
	return nil
}

func (l *Listener) handleTx(payload []byte) error {
	event, err := evaluateWhale(payload)
	if err != nil {
		return err
	}
	if event == nil {
		return nil
	}

	l.counters.AddWhaleEvent()
	logrus.WithFields(logrus.Fields{
		"txid":   event.TxID,
		"amount": event.AmountSatoshi,
	}).Info("whale transaction observed")

	select {
	case l.whales <- *event:
	default:
		logrus.WithField("txid", event.TxID).Warn("whale event channel full, dropping")
	}
	return nil
}
