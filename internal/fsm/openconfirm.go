package fsm

import "github.com/route-beacon/bgp-speaker/internal/bgperr"

// handleOpenConfirm implements spec.md §4.4's OpenConfirm behavior:
// both OPENs have been exchanged, the session holds here until the
// first KEEPALIVE arrives.
func (p *Peer) handleOpenConfirm(ev Event) {
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

	case EventNotificationVersionError:
		p.dropConnection()
		p.setState(Idle, ev.Kind)

	case EventKeepaliveReceived:
		if p.negotiatedHoldTime > 0 {
			p.holdTimer.Restart()
		}
		p.setState(Established, ev.Kind)

	case EventOpenReceived:
		// A second OPEN on an already-confirmed session would normally
		// invoke collision detection (CollisionDetectEstablishedState).
		// This server shell never holds two connections for one peer
		// (DetectCollision always false), so there is nothing to dump.
		if p.DetectCollision() {
			p.sendCeaseAndIdle(bgperr.CeaseConnectionCollisionResolution, EventOpenCollisionDump)
			p.dropConnection()
		}

	case EventTCPConnectionValid, EventTCPConnectionRequestInvalid:
		// no-op

	default:
		p.sendNotificationAndIdle(bgperr.New(bgperr.CodeFSM, bgperr.FSMUnexpectedMessageInOpenConfirm), ev.Kind)
		p.dropConnection()
	}
}
