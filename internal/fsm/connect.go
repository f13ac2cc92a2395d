package fsm

import "github.com/route-beacon/bgp-speaker/internal/bgperr"

// handleConnect implements spec.md §4.4's Connect behavior. Per the
// resolution to Open Question 1 (spec.md §9, DESIGN.md), the two events
// that end the TCP dial race — TcpConnectionConfirmed and
// TcpConnectionFails — are modeled as two disjoint cases below, never a
// single fallthrough branch, because they lead to entirely different
// next states (OpenSent/Connect vs. Active/Idle) and partially disjoint
// side effects (arming DelayOpenTimer vs. tearing it down).
func (p *Peer) handleConnect(ev Event) {
	switch ev.Kind {
	case EventManualStop:
		p.dropConnection()
		p.setState(Idle, ev.Kind)

	case EventConnectRetryTimerExpires:
		p.dropConnection()
		p.connectRetryTimer.Restart()
		p.reinitiateConnection()
		// remains in Connect

	case EventDelayOpenTimerExpires:
		p.sendOpen()
		p.holdTimer.RestartWith(largeHoldTime)
		p.setState(OpenSent, ev.Kind)

	case EventTCPConnectionValid, EventTCPConnectionRequestInvalid:
		// no-op: optional peer validation hook, not implemented by this
		// single-listener server shell.

	case EventTCPConnectionRequestAcked, EventTCPConnectionConfirmed:
		if p.cfg.Attributes.Has(DelayOpenAttr) {
			p.delayOpenTimer.Restart()
			return
		}
		p.connectRetryTimer.Stop()
		p.sendOpen()
		p.holdTimer.RestartWith(largeHoldTime)
		p.setState(OpenSent, ev.Kind)

	case EventTCPConnectionFails:
		if p.delayOpenTimer.Active() {
			p.delayOpenTimer.Stop()
			p.connectRetryTimer.Restart()
			p.setState(Active, ev.Kind)
			return
		}
		p.connectRetryTimer.Stop()
		p.setState(Idle, ev.Kind)

	case EventOpenWithDelayOpenTimerRunning:
		p.connectRetryTimer.Stop()
		p.delayOpenTimer.Stop()
		p.sendOpen()
		p.sendKeepalive()
		p.completeOpenNegotiation(ev, OpenConfirm)

	case EventNotificationVersionError:
		p.connectRetryTimer.Stop()
		p.dropConnection()
		p.setState(Idle, ev.Kind)

	case EventAutomaticStop:
		if p.cfg.Attributes.Has(AllowAutomaticStop) {
			p.dropConnection()
			p.setState(Idle, ev.Kind)
		}

	case EventHeaderError, EventOpenMessageError:
		p.sendIfAllowed(ev.Err)
		p.dropConnection()
		p.setState(Idle, ev.Kind)

	default:
		p.sendNotificationAndIdle(bgperr.New(bgperr.CodeFSM, bgperr.FSMUnspecified), ev.Kind)
	}
}
