// Package peerd is the server shell that wires internal/transport and
// internal/fsm together into one running peering session: dial or
// accept the TCP connection, reassemble and decode frames, translate
// them into FSM events, and feed decoded UPDATEs and transition
// telemetry to the RIB sink and telemetry publisher (spec.md §4.6).
// Grounded on cmd/rib-ingester/main.go's runServe pipeline-wiring shape
// (construct collaborators, launch goroutines, wait, shut down), here
// collapsed from two Kafka pipelines to one transport/FSM pair.
package peerd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/route-beacon/bgp-speaker/internal/bgp"
	"github.com/route-beacon/bgp-speaker/internal/bgperr"
	"github.com/route-beacon/bgp-speaker/internal/fsm"
	"github.com/route-beacon/bgp-speaker/internal/metrics"
	"github.com/route-beacon/bgp-speaker/internal/rib"
	"github.com/route-beacon/bgp-speaker/internal/telemetry"
	"github.com/route-beacon/bgp-speaker/internal/transport"
)

// Config carries everything Session needs beyond the fsm.Config the
// caller has already built (fields Session itself must fill in:
// Send/ReinitiateConnection/DropConnection/DeliverUpdate/OnTransition).
type Config struct {
	PeerID      string
	ListenAddr  string
	RemoteAddr  string
	Passive     bool
	DialTimeout time.Duration
}

// Session owns one peer's live TCP connection and its fsm.Peer.
type Session struct {
	cfg    Config
	peer   *fsm.Peer
	sink   rib.Sink
	pub    telemetry.Publisher
	logger *zap.Logger

	mu   sync.Mutex
	conn net.Conn
	tr   *transport.TCPTransport

	listener net.Listener
}

// New builds a Session, completing fsmCfg's collaborator callbacks
// before constructing the underlying fsm.Peer.
func New(cfg Config, fsmCfg fsm.Config, sink rib.Sink, pub telemetry.Publisher, logger *zap.Logger) *Session {
	s := &Session{cfg: cfg, sink: sink, pub: pub, logger: logger}

	fsmCfg.Send = s.send
	fsmCfg.ReinitiateConnection = s.reinitiateConnection
	fsmCfg.DropConnection = s.dropConnection
	fsmCfg.DeliverUpdate = s.deliverUpdate
	fsmCfg.OnTransition = s.onTransition
	fsmCfg.Logger = logger

	s.peer = fsm.NewPeer(fsmCfg)
	return s
}

func (s *Session) Peer() *fsm.Peer { return s.peer }

// Run drives the peer's dispatch loop and, for a passive peer, the
// listener accept loop, until ctx is cancelled. On return the
// connection and listener are closed and the peer's timers are stopped
// (the latter inside Peer.Run's own deferred cleanup).
func (s *Session) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.peer.Run(gctx)
		return nil
	})

	if s.cfg.Passive {
		ln, err := net.Listen("tcp", s.cfg.ListenAddr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
		}
		s.listener = ln
		g.Go(func() error { return s.acceptLoop(gctx) })
	}

	<-gctx.Done()
	s.closeListener()
	s.dropConnection()

	_ = g.Wait()
	return ctx.Err()
}

func (s *Session) closeListener() {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
	}
}

// acceptLoop accepts inbound connections for a passive peer. Each
// accepted connection becomes the session's active transport and is
// posted to the FSM as EventTCPConnectionConfirmed; a second inbound
// connection while one is already active is rejected outright, since
// collision detection (spec.md §4.4) is out of scope for this
// single-listener shell (fsm.Peer.DetectCollision documents the same
// simplification).
func (s *Session) acceptLoop(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.mu.Lock()
		already := s.conn != nil
		s.mu.Unlock()
		if already {
			conn.Close()
			continue
		}

		s.adopt(conn)
		s.peer.Post(fsm.Event{Kind: fsm.EventTCPConnectionConfirmed})
		go s.readLoop(ctx, conn)
	}
}

// reinitiateConnection is the fsm.Config.ReinitiateConnection callback
// for an active (non-passive) peer: dial out, then post the transport
// event the FSM is waiting on. A successful dial is this side acting as
// the TCP initiator, so it is posted as EventTCPConnectionRequestAcked
// rather than EventTCPConnectionConfirmed, which acceptLoop reserves
// for the listener side of the handshake.
func (s *Session) reinitiateConnection() error {
	if s.cfg.Passive {
		return nil
	}

	go func() {
		dialer := net.Dialer{Timeout: s.cfg.DialTimeout}
		conn, err := dialer.Dial("tcp", s.cfg.RemoteAddr)
		if err != nil {
			s.logger.Warn("dial failed", zap.String("remote_addr", s.cfg.RemoteAddr), zap.Error(err))
			s.peer.Post(fsm.Event{Kind: fsm.EventTCPConnectionFails})
			return
		}
		s.adopt(conn)
		s.peer.Post(fsm.Event{Kind: fsm.EventTCPConnectionRequestAcked})
		go s.readLoop(context.Background(), conn)
	}()
	return nil
}

func (s *Session) adopt(conn net.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.tr = transport.NewTCPTransport(conn)
	s.mu.Unlock()
}

func (s *Session) dropConnection() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.tr = nil
	s.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (s *Session) send(frame []byte) error {
	s.mu.Lock()
	tr := s.tr
	s.mu.Unlock()
	if tr == nil {
		return errors.New("peerd: send with no active connection")
	}
	return tr.Send(frame)
}

// readLoop reassembles and decodes frames off conn, translating each
// into an fsm.Event, until the connection closes or fails. A header
// decode failure from the FrameReader is posted as the matching error
// event; any other read error is posted as EventTCPConnectionFails.
func (s *Session) readLoop(ctx context.Context, conn net.Conn) {
	fr := transport.NewFrameReader(conn)
	for {
		frame, err := fr.ReadFrame()
		if err != nil {
			s.mu.Lock()
			stillCurrent := s.conn == conn
			s.mu.Unlock()
			if stillCurrent {
				var notifErr *bgperr.NotificationError
				if errors.As(err, &notifErr) {
					s.postDecodeError(notifErr)
				} else {
					s.peer.Post(fsm.Event{Kind: fsm.EventTCPConnectionFails})
				}
			}
			return
		}

		msg, err := bgp.Decode(frame)
		if err != nil {
			s.postDecodeError(err)
			continue
		}

		switch m := msg.(type) {
		case *bgp.OpenMessage:
			metrics.MessagesReceivedTotal.WithLabelValues("open").Inc()
			s.peer.Post(fsm.Event{Kind: s.peer.ClassifyOpenEvent(), Open: m})
		case *bgp.UpdateMessage:
			metrics.MessagesReceivedTotal.WithLabelValues("update").Inc()
			s.peer.Post(fsm.Event{Kind: fsm.EventUpdateReceived, Update: m})
		case *bgp.KeepaliveMessage:
			metrics.MessagesReceivedTotal.WithLabelValues("keepalive").Inc()
			s.peer.Post(fsm.Event{Kind: fsm.EventKeepaliveReceived})
		case *bgp.NotificationMessage:
			metrics.MessagesReceivedTotal.WithLabelValues("notification").Inc()
			notifErr := m.AsNotificationError()
			metrics.NotificationsTotal.WithLabelValues("received", notifErr.NotifCode.String(), fmt.Sprintf("%d", notifErr.NotifSubcode)).Inc()
			if notifErr.IsVersionError() {
				s.peer.Post(fsm.Event{Kind: fsm.EventNotificationVersionError, Err: notifErr})
			} else {
				s.peer.Post(fsm.Event{Kind: fsm.EventNotificationReceived, Err: notifErr})
			}
		default:
			// RouteRefresh and anything else this speaker does not act
			// on; accepted and otherwise ignored.
		}
	}
}

func (s *Session) postDecodeError(err error) {
	notifErr, ok := err.(*bgperr.NotificationError)
	if !ok {
		notifErr = bgperr.New(bgperr.CodeMessageHeader, bgperr.MessageHeaderUnspecific)
	}
	metrics.CodecErrorsTotal.WithLabelValues("decode", notifErr.NotifCode.String()).Inc()

	switch notifErr.NotifCode {
	case bgperr.CodeMessageHeader:
		s.peer.Post(fsm.Event{Kind: fsm.EventHeaderError, Err: notifErr})
	case bgperr.CodeOpenMessage:
		s.peer.Post(fsm.Event{Kind: fsm.EventOpenMessageError, Err: notifErr})
	case bgperr.CodeUpdateMessage:
		s.peer.Post(fsm.Event{Kind: fsm.EventUpdateMessageError, Err: notifErr})
	default:
		s.peer.Post(fsm.Event{Kind: fsm.EventHeaderError, Err: notifErr})
	}
}

// deliverUpdate hands a decoded UPDATE's route events to the RIB sink.
// Delivery failures are logged, not raised back to the FSM — a RIB
// write failure is not a session-ending condition. RouteEventsFromUpdate
// works directly off the already-decoded message instead of
// re-encoding it back to wire bytes only to reparse them.
func (s *Session) deliverUpdate(upd *bgp.UpdateMessage) {
	if s.sink == nil {
		return
	}
	// hasAddPath is hardcoded false: Add-Path (RFC 7911) capability
	// negotiation is not wired into this session shell, so inbound
	// UPDATEs are never interpreted as carrying a path identifier on
	// top-level NLRI.
	events, err := bgp.RouteEventsFromUpdate(upd, false)
	if err != nil {
		s.logger.Warn("update summary derivation failed", zap.Error(err))
		return
	}
	if err := s.sink.Deliver(context.Background(), s.cfg.PeerID, events); err != nil {
		s.logger.Warn("rib delivery failed", zap.String("peer_id", s.cfg.PeerID), zap.Error(err))
	}
}

// onTransition is the fsm.Config.OnTransition callback: records the
// FSM-transition metric and, if a telemetry publisher is configured,
// emits one event per transition.
func (s *Session) onTransition(from, to fsm.State, ev fsm.EventKind) {
	metrics.FSMTransitionsTotal.WithLabelValues(from.String(), to.String(), ev.String()).Inc()
	metrics.ConnectRetryCounter.Set(float64(s.peer.ConnectRetryCounter()))

	if s.pub == nil {
		return
	}
	go func() {
		if err := s.pub.Publish(context.Background(), telemetry.Event{
			Timestamp: time.Now(),
			PeerID:    s.cfg.PeerID,
			FromState: from.String(),
			ToState:   to.String(),
			EventKind: ev.String(),
		}); err != nil {
			s.logger.Warn("telemetry publish failed", zap.Error(err))
		}
	}()
}
