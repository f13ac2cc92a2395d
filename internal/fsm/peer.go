package fsm

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/route-beacon/bgp-speaker/internal/bgp"
	"github.com/route-beacon/bgp-speaker/internal/bgperr"
	"github.com/route-beacon/bgp-speaker/internal/timer"
)

// Event is one FSM input: a raw EventKind plus whatever payload the
// message layer parsed (Open/Update) or the codec/FSM itself detected
// (Err, for HeaderError/OpenMessageError/NotificationVersionError/
// NotificationReceived/UpdateMessageError).
type Event struct {
	Kind   EventKind
	Open   *bgp.OpenMessage
	Update *bgp.UpdateMessage
	Err    *bgperr.NotificationError
}

// TimerSet holds the seven per-peer timer initial values (spec.md §4.3).
type TimerSet struct {
	ConnectRetry           time.Duration
	Hold                   time.Duration
	Keepalive              time.Duration
	MinASOriginationInterval time.Duration
	MinRouteAdvertisement  time.Duration
	DelayOpen              time.Duration
	IdleHold               time.Duration
}

// Config carries everything Peer needs at construction: session
// identity, behavioral flags, timer initial values, the locally
// supported capability set, and the collaborator hooks the server
// shell (internal/peerd) wires in.
type Config struct {
	LocalIP, RemoteIP             netip.Addr
	LocalASN, RemoteASN           uint16
	LocalRouterID, RemoteRouterID netip.Addr
	Attributes                    SessionAttributeFlags
	Timers                        TimerSet
	Jitter                        bool
	Capabilities                  []bgp.Capability

	// Send enqueues a complete framed message for the peer. Required.
	Send func([]byte) error
	// ReinitiateConnection actively opens the TCP connection (Connect
	// state). Nil if this peer only ever accepts inbound connections.
	ReinitiateConnection func() error
	// DropConnection tears down the current TCP connection.
	DropConnection func() error
	// DeliverUpdate hands a decoded UPDATE to the RIB collaborator.
	// Routing decisions are out of scope; this is purely a delivery hook.
	DeliverUpdate func(*bgp.UpdateMessage)
	// OnTransition observes every state change, for telemetry/metrics.
	OnTransition func(from, to State, event EventKind)

	Logger *zap.Logger
}

// Peer is one BGP session's finite state machine. All mutation happens
// on the single goroutine running Run; external callers only call Post
// and the read-only accessors (State, ConnectRetryCounter,
// ClassifyOpenEvent).
type Peer struct {
	cfg Config

	mu    sync.RWMutex
	state State

	connectRetryCounter int
	negotiatedCaps       []bgp.Capability
	pendingStart         *EventKind

	holdTimeInitial      time.Duration
	keepaliveTimeInitial time.Duration
	negotiatedHoldTime   uint16

	connectRetryTimer    *timer.Timer
	holdTimer            *timer.Timer
	keepaliveTimer       *timer.Timer
	minASOriginationTimer *timer.Timer
	minRouteAdvTimer     *timer.Timer
	delayOpenTimer       *timer.Timer
	idleHoldTimer        *timer.Timer

	events      chan Event
	timerEvents chan timer.Expiry
}

// NewPeer constructs a Peer in the Idle state with all timers disarmed.
func NewPeer(cfg Config) *Peer {
	p := &Peer{
		cfg:                  cfg,
		state:                Idle,
		holdTimeInitial:      cfg.Timers.Hold,
		keepaliveTimeInitial: cfg.Timers.Keepalive,
		events:               make(chan Event, 32),
		timerEvents:          make(chan timer.Expiry, 8),
	}
	p.connectRetryTimer = timer.New(timer.KindConnectRetry, p.timerEvents, cfg.Jitter)
	p.holdTimer = timer.New(timer.KindHold, p.timerEvents, cfg.Jitter)
	p.keepaliveTimer = timer.New(timer.KindKeepalive, p.timerEvents, cfg.Jitter)
	p.minASOriginationTimer = timer.New(timer.KindMinASOriginationInterval, p.timerEvents, cfg.Jitter)
	p.minRouteAdvTimer = timer.New(timer.KindMinRouteAdvertisementInterval, p.timerEvents, cfg.Jitter)
	p.delayOpenTimer = timer.New(timer.KindDelayOpen, p.timerEvents, cfg.Jitter)
	p.idleHoldTimer = timer.New(timer.KindIdleHold, p.timerEvents, cfg.Jitter)

	p.connectRetryTimer.Reset(cfg.Timers.ConnectRetry)
	p.holdTimer.Reset(cfg.Timers.Hold)
	p.keepaliveTimer.Reset(cfg.Timers.Keepalive)
	p.minASOriginationTimer.Reset(cfg.Timers.MinASOriginationInterval)
	p.minRouteAdvTimer.Reset(cfg.Timers.MinRouteAdvertisement)
	p.delayOpenTimer.Reset(cfg.Timers.DelayOpen)
	p.idleHoldTimer.Reset(cfg.Timers.IdleHold)

	return p
}

// State reports the current FSM state. Safe to call concurrently with
// Run/Post (e.g. from internal/httpd's readiness handler).
func (p *Peer) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// ConnectRetryCounter reports the current retry counter, for metrics.
func (p *Peer) ConnectRetryCounter() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connectRetryCounter
}

// Post enqueues ev for processing by Run's dispatch goroutine. Message-
// derived events and administrative/transport events both go through
// this single entry point, so ordering within one caller is preserved.
func (p *Peer) Post(ev Event) {
	p.events <- ev
}

// Run is the FSM's single dispatch goroutine: it serializes every event
// — external (Post) and timer-synthesized — through one select loop, so
// at most one handler ever executes at a time (spec.md §5). It returns
// when ctx is cancelled, after stopping every timer.
func (p *Peer) Run(ctx context.Context) {
	defer p.stopAllTimers()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.events:
			p.dispatch(ev)
		case exp := <-p.timerEvents:
			p.dispatch(Event{Kind: timerExpiryEventKind(exp.Kind)})
		}
	}
}

func timerExpiryEventKind(k timer.Kind) EventKind {
	switch k {
	case timer.KindConnectRetry:
		return EventConnectRetryTimerExpires
	case timer.KindHold:
		return EventHoldTimerExpires
	case timer.KindKeepalive:
		return EventKeepaliveTimerExpires
	case timer.KindDelayOpen:
		return EventDelayOpenTimerExpires
	case timer.KindIdleHold:
		return EventIdleHoldTimerExpires
	default:
		return EventUnknown
	}
}

func (p *Peer) dispatch(ev Event) {
	if p.cfg.Logger != nil {
		p.cfg.Logger.Debug("fsm event",
			zap.String("state", p.State().String()),
			zap.String("event", ev.Kind.String()))
	}
	switch p.State() {
	case Idle:
		p.handleIdle(ev)
	case Connect:
		p.handleConnect(ev)
	case Active:
		p.handleActive(ev)
	case OpenSent:
		p.handleOpenSent(ev)
	case OpenConfirm:
		p.handleOpenConfirm(ev)
	case Established:
		p.handleEstablished(ev)
	}
}

// setState performs a state transition, applying the retry-counter and
// idle-hold tie-break rules from spec.md §4.4 uniformly rather than
// repeating them in every handler:
//
//   - any transition into Idle increments connect_retry_counter, except
//     via ManualStop (which resets it to zero) or NotificationVersionError
//     (which leaves it unchanged);
//   - entering Idle stops every running timer;
//   - if DampPeerOscillations is set and the transition into Idle was not
//     a deliberate ManualStop, the idle-hold timer is (re)armed to gate
//     the next start event rather than allowing immediate re-entry.
func (p *Peer) setState(next State, ev EventKind) {
	p.mu.Lock()
	prev := p.state
	p.state = next
	p.mu.Unlock()

	if next == Idle {
		p.stopAllTimers()
		switch ev {
		case EventManualStop:
			p.connectRetryCounter = 0
		case EventNotificationVersionError:
			// counter unchanged
		default:
			p.connectRetryCounter++
		}
		if ev != EventManualStop && p.cfg.Attributes.Has(DampPeerOscillations) {
			p.idleHoldTimer.Restart()
		}
	}

	if p.cfg.OnTransition != nil {
		p.cfg.OnTransition(prev, next, ev)
	}
	if p.cfg.Logger != nil {
		p.cfg.Logger.Info("fsm transition",
			zap.String("from", prev.String()),
			zap.String("to", next.String()),
			zap.String("event", ev.String()))
	}
}

func (p *Peer) stopAllTimers() {
	for _, t := range p.allTimers() {
		t.Stop()
	}
}

func (p *Peer) allTimers() []*timer.Timer {
	return []*timer.Timer{
		p.connectRetryTimer, p.holdTimer, p.keepaliveTimer,
		p.minASOriginationTimer, p.minRouteAdvTimer, p.delayOpenTimer, p.idleHoldTimer,
	}
}

func (p *Peer) send(frame []byte) {
	if p.cfg.Send == nil {
		return
	}
	if err := p.cfg.Send(frame); err != nil && p.cfg.Logger != nil {
		p.cfg.Logger.Warn("send failed", zap.Error(err))
	}
}

func (p *Peer) sendOpen() {
	open := bgp.OpenMessage{
		MyAS:         p.cfg.LocalASN,
		HoldTime:     uint16(p.holdTimeInitial / time.Second),
		RouterID:     p.cfg.LocalRouterID,
		Capabilities: p.cfg.Capabilities,
	}
	p.send(open.Encode())
}

func (p *Peer) sendKeepalive() {
	p.send(bgp.KeepaliveMessage{}.Encode())
}

func (p *Peer) sendNotification(err *bgperr.NotificationError) {
	p.send(bgp.FromError(err).Encode())
}

func (p *Peer) sendNotificationAndIdle(err *bgperr.NotificationError, ev EventKind) {
	p.sendNotification(err)
	p.setState(Idle, ev)
}

func (p *Peer) sendCeaseAndIdle(subcode uint8, ev EventKind) {
	p.sendNotificationAndIdle(bgperr.New(bgperr.CodeCease, subcode), ev)
}

// sendIfAllowed emits a NOTIFICATION for a pre-OPEN header/open error
// only when SendNotificationWithoutOpen is set, per spec.md §4.4's
// Connect/Active behavior.
func (p *Peer) sendIfAllowed(err *bgperr.NotificationError) {
	if p.cfg.Attributes.Has(SendNotificationWithoutOpen) {
		p.sendNotification(err)
	}
}

func (p *Peer) reinitiateConnection() {
	if p.cfg.ReinitiateConnection != nil {
		if err := p.cfg.ReinitiateConnection(); err != nil && p.cfg.Logger != nil {
			p.cfg.Logger.Warn("reinitiate connection failed", zap.Error(err))
		}
	}
}

func (p *Peer) dropConnection() {
	if p.cfg.DropConnection != nil {
		if err := p.cfg.DropConnection(); err != nil && p.cfg.Logger != nil {
			p.cfg.Logger.Warn("drop connection failed", zap.Error(err))
		}
	}
}

// DetectCollision reports whether the current session should be dumped
// in favor of an incoming duplicate connection attempt
// (CollisionDetectEstablishedState, spec.md §4.4). This server shell
// (internal/peerd) accepts exactly one inbound connection per
// configured peer, so a collision can never arise; this always returns
// false and exists so a future multi-listener shell has a hook to
// override.
func (p *Peer) DetectCollision() bool {
	return false
}

// ClassifyOpenEvent tells the caller which EventKind a just-decoded OPEN
// should be posted as: EventOpenWithDelayOpenTimerRunning while the
// delay-open timer is armed (Connect/Active are waiting out DelayOpen
// before sending their own OPEN), EventOpenReceived otherwise.
func (p *Peer) ClassifyOpenEvent() EventKind {
	if p.delayOpenTimer.Active() {
		return EventOpenWithDelayOpenTimerRunning
	}
	return EventOpenReceived
}

func isStartEvent(k EventKind) bool {
	switch k {
	case EventManualStart, EventAutomaticStart, EventManualStartWithPassiveTCP,
		EventAutomaticStartWithPassiveTCP, EventAutomaticStartWithDampPeerOscillations,
		EventAutomaticStartWithDampPeerOscillationsAndPassiveTCP:
		return true
	default:
		return false
	}
}

// largeHoldTime is RFC 4271 §8's "large value" armed on the pre-
// negotiation hold timer between TCP confirmation and OPEN exchange, so
// a peer that completes the handshake but never sends OPEN is reaped.
const largeHoldTime = 65535 * time.Second

// completeOpenNegotiation finishes BGP session negotiation once the
// peer's OPEN has been received: it intersects capability sets, picks
// the lower of the two advertised hold times, arms (or disables, if
// negotiated to zero) the hold and keepalive timers accordingly, and
// transitions to next (OpenConfirm in every caller).
func (p *Peer) completeOpenNegotiation(ev Event, next State) {
	p.negotiatedCaps = bgp.Intersect(p.cfg.Capabilities, ev.Open.Capabilities)
	negotiated := p.negotiateHoldTime(ev.Open.HoldTime)
	p.negotiatedHoldTime = negotiated
	if negotiated > 0 {
		p.holdTimer.RestartWith(time.Duration(negotiated) * time.Second)
		p.keepaliveTimer.RestartWith(time.Duration(negotiated) * time.Second / 3)
	} else {
		p.holdTimer.Stop()
		p.keepaliveTimer.Stop()
	}
	p.setState(next, ev.Kind)
}

func (p *Peer) negotiateHoldTime(peerHold uint16) uint16 {
	local := uint16(p.holdTimeInitial / time.Second)
	if peerHold < local {
		return peerHold
	}
	return local
}

func isPassiveStart(k EventKind, attrs SessionAttributeFlags) bool {
	switch k {
	case EventManualStartWithPassiveTCP, EventAutomaticStartWithPassiveTCP,
		EventAutomaticStartWithDampPeerOscillationsAndPassiveTCP:
		return true
	default:
		return attrs.Has(PassiveTCPEstablishment)
	}
}
