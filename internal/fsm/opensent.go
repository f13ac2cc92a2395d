package fsm

import "github.com/route-beacon/bgp-speaker/internal/bgperr"

// handleOpenSent implements spec.md §4.4's OpenSent behavior: our OPEN
// has gone out and we're waiting for the peer's.
func (p *Peer) handleOpenSent(ev Event) {
	switch ev.Kind {
	case EventManualStop:
		p.sendCeaseAndIdle(bgperr.CeaseAdministrativeShutdown, ev.Kind)
		p.dropConnection()

	case EventAutomaticStop:
		if p.cfg.Attributes.Has(AllowAutomaticStop) {
			p.sendCeaseAndIdle(bgperr.CeaseAdministrativeShutdown, ev.Kind)
			p.dropConnection()
		}

	case EventHoldTimerExpires:
		p.sendNotificationAndIdle(bgperr.New(bgperr.CodeHoldTimerExpired, 0), ev.Kind)
		p.dropConnection()

	case EventTCPConnectionFails:
		p.connectRetryTimer.Restart()
		p.setState(Active, ev.Kind)

	case EventOpenReceived:
		p.connectRetryTimer.Stop()
		p.sendKeepalive()
		p.completeOpenNegotiation(ev, OpenConfirm)

	// Unlike Connect/Active, OpenSent sends the NOTIFICATION
	// unconditionally — SendNotificationWithoutOpen does not gate it
	// here, since our OPEN has already gone out.
	case EventHeaderError, EventOpenMessageError:
		p.connectRetryTimer.Stop()
		p.sendNotificationAndIdle(ev.Err, ev.Kind)
		p.dropConnection()

	case EventNotificationVersionError:
		p.connectRetryTimer.Stop()
		p.dropConnection()
		p.setState(Idle, ev.Kind)

	case EventNotificationReceived:
		p.connectRetryTimer.Stop()
		p.dropConnection()
		p.setState(Idle, ev.Kind)

	case EventTCPConnectionValid, EventTCPConnectionRequestInvalid:
		// no-op

	default:
		p.sendNotificationAndIdle(bgperr.New(bgperr.CodeFSM, bgperr.FSMUnexpectedMessageInOpenSent), ev.Kind)
		p.dropConnection()
	}
}
