package fsm

import "github.com/route-beacon/bgp-speaker/internal/bgperr"

// handleEstablished implements spec.md §4.4's Established behavior: the
// only state in which UPDATE messages are accepted and handed to the
// RIB collaborator.
func (p *Peer) handleEstablished(ev Event) {
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

	case EventKeepaliveTimerExpires:
		p.sendKeepalive()
		p.keepaliveTimer.Restart()

	case EventTCPConnectionFails:
		p.dropConnection()
		p.setState(Idle, ev.Kind)

	case EventNotificationReceived:
		p.dropConnection()
		p.setState(Idle, ev.Kind)

	case EventKeepaliveReceived:
		if p.negotiatedHoldTime > 0 {
			p.holdTimer.Restart()
		}

	case EventUpdateReceived:
		if p.negotiatedHoldTime > 0 {
			p.holdTimer.Restart()
		}
		if p.cfg.DeliverUpdate != nil && ev.Update != nil {
			p.cfg.DeliverUpdate(ev.Update)
		}

	case EventUpdateMessageError:
		p.sendNotificationAndIdle(ev.Err, ev.Kind)
		p.dropConnection()

	case EventOpenReceived:
		// See the identical comment in openconfirm.go: collision
		// detection never fires against this single-connection shell.
		if p.DetectCollision() {
			p.sendCeaseAndIdle(bgperr.CeaseConnectionCollisionResolution, EventOpenCollisionDump)
			p.dropConnection()
		}

	case EventTCPConnectionValid, EventTCPConnectionRequestInvalid:
		// no-op

	default:
		p.sendNotificationAndIdle(bgperr.New(bgperr.CodeFSM, bgperr.FSMUnexpectedMessageInEstablished), ev.Kind)
		p.dropConnection()
	}
}
