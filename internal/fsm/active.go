package fsm

import "github.com/route-beacon/bgp-speaker/internal/bgperr"

// handleActive implements spec.md §4.4's Active behavior: the passive
// counterpart to Connect, waiting for an inbound TCP connection instead
// of dialing out. As in Connect, TcpConnectionConfirmed and
// TcpConnectionFails are modeled as disjoint cases (Open Question 1).
func (p *Peer) handleActive(ev Event) {
	switch ev.Kind {
	case EventManualStop:
		p.dropConnection()
		p.setState(Idle, ev.Kind)

	case EventConnectRetryTimerExpires:
		p.connectRetryTimer.Restart()
		p.reinitiateConnection()
		p.setState(Connect, ev.Kind)

	case EventDelayOpenTimerExpires:
		p.sendOpen()
		p.holdTimer.RestartWith(largeHoldTime)
		p.setState(OpenSent, ev.Kind)

	case EventTCPConnectionValid, EventTCPConnectionRequestInvalid:
		// no-op

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
		p.delayOpenTimer.Stop()
		p.connectRetryTimer.Restart()
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
