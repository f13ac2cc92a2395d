// Package fsm implements the peer session state machine (spec.md §4.4):
// six states, roughly thirty event kinds spanning administrative, timer,
// transport and message categories, and the per-state transition
// behavior RFC 4271 §8 describes. The machine is not reentrant; Peer
// serializes every event through a single dispatch goroutine rather
// than holding a lock across handlers (its mutex only guards the state
// value for concurrent State readers), generalizing the single-consumer
// select loop the teacher uses to drive its Kafka pipeline
// (internal/state/pipeline.go) onto FSM event dispatch instead of
// record batching.
package fsm

// State is one of the six BGP peer session states (RFC 4271 §8).
type State int

const (
	Idle State = iota
	Connect
	Active
	OpenSent
	OpenConfirm
	Established
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Connect:
		return "Connect"
	case Active:
		return "Active"
	case OpenSent:
		return "OpenSent"
	case OpenConfirm:
		return "OpenConfirm"
	case Established:
		return "Established"
	default:
		return "InvalidState"
	}
}

// EventKind is one event the FSM can consume, spanning the four
// categories spec.md §4.4 names: administrative, timer, transport and
// message.
type EventKind int

const (
	EventUnknown EventKind = iota

	// Administrative events.
	EventManualStart
	EventManualStop
	EventAutomaticStart
	EventManualStartWithPassiveTCP
	EventAutomaticStartWithPassiveTCP
	EventAutomaticStartWithDampPeerOscillations
	EventAutomaticStartWithDampPeerOscillationsAndPassiveTCP
	EventAutomaticStop

	// Timer events.
	EventConnectRetryTimerExpires
	EventHoldTimerExpires
	EventKeepaliveTimerExpires
	EventDelayOpenTimerExpires
	EventIdleHoldTimerExpires

	// Transport events.
	EventTCPConnectionValid
	EventTCPConnectionRequestInvalid
	EventTCPConnectionRequestAcked
	EventTCPConnectionConfirmed
	EventTCPConnectionFails

	// Message events.
	EventOpenReceived
	EventOpenWithDelayOpenTimerRunning
	EventHeaderError
	EventOpenMessageError
	EventOpenCollisionDump
	EventNotificationVersionError
	EventNotificationReceived
	EventKeepaliveReceived
	EventUpdateReceived
	EventUpdateMessageError
)

func (e EventKind) String() string {
	switch e {
	case EventManualStart:
		return "ManualStart"
	case EventManualStop:
		return "ManualStop"
	case EventAutomaticStart:
		return "AutomaticStart"
	case EventManualStartWithPassiveTCP:
		return "ManualStartWithPassiveTcpEstablishment"
	case EventAutomaticStartWithPassiveTCP:
		return "AutomaticStartWithPassiveTcpEstablishment"
	case EventAutomaticStartWithDampPeerOscillations:
		return "AutomaticStartWithDampPeerOscillations"
	case EventAutomaticStartWithDampPeerOscillationsAndPassiveTCP:
		return "AutomaticStartWithDampPeerOscillationsAndPassiveTcpEstablishment"
	case EventAutomaticStop:
		return "AutomaticStop"
	case EventConnectRetryTimerExpires:
		return "ConnectRetryTimerExpires"
	case EventHoldTimerExpires:
		return "HoldTimerExpires"
	case EventKeepaliveTimerExpires:
		return "KeepaliveTimerExpires"
	case EventDelayOpenTimerExpires:
		return "DelayOpenTimerExpires"
	case EventIdleHoldTimerExpires:
		return "IdleHoldTimerExpires"
	case EventTCPConnectionValid:
		return "TcpConnectionValid"
	case EventTCPConnectionRequestInvalid:
		return "TcpConnectionRequestInvalid"
	case EventTCPConnectionRequestAcked:
		return "TcpConnectionRequestAcked"
	case EventTCPConnectionConfirmed:
		return "TcpConnectionConfirmed"
	case EventTCPConnectionFails:
		return "TcpConnectionFails"
	case EventOpenReceived:
		return "BgpOpenMessageReceived"
	case EventOpenWithDelayOpenTimerRunning:
		return "BgpOpenWithDelayOpenTimerRunning"
	case EventHeaderError:
		return "BgpHeaderError"
	case EventOpenMessageError:
		return "BgpOpenMessageError"
	case EventOpenCollisionDump:
		return "BgpOpenCollisionDump"
	case EventNotificationVersionError:
		return "BgpNotificationMessageVersionError"
	case EventNotificationReceived:
		return "BgpNotificationMessageReceived"
	case EventKeepaliveReceived:
		return "BgpKeepaliveMessageReceived"
	case EventUpdateReceived:
		return "BgpUpdateMessageReceived"
	case EventUpdateMessageError:
		return "BgpUpdateMessageError"
	default:
		return "UnknownFsmEventType"
	}
}

// SessionAttributeFlags is the per-peer bitset configuring optional FSM
// behavior (spec.md §4.4, original_source/FiniteStateMachine.h).
type SessionAttributeFlags uint16

const (
	AcceptConnectionsUnconfiguredPeers SessionAttributeFlags = 1 << iota
	AllowAutomaticStart
	AllowAutomaticStop
	CollisionDetectEstablishedState
	DampPeerOscillations
	DelayOpenAttr
	PassiveTCPEstablishment
	SendNotificationWithoutOpen
	TrackTCPState
)

// Has reports whether flag is set.
func (f SessionAttributeFlags) Has(flag SessionAttributeFlags) bool {
	return f&flag != 0
}
