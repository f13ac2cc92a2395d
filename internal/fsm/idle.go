package fsm

// handleIdle implements spec.md §4.4's Idle behavior: every start event
// resets the connect-retry counter and begins either Connect (active
// open) or Active (passive, awaiting an inbound connection), unless
// DampPeerOscillations gates re-entry behind the idle-hold timer. All
// other events are ignored.
func (p *Peer) handleIdle(ev Event) {
	if isStartEvent(ev.Kind) {
		p.connectRetryCounter = 0
		if p.cfg.Attributes.Has(DampPeerOscillations) && p.idleHoldTimer.Active() {
			kind := ev.Kind
			p.pendingStart = &kind
			return
		}
		p.beginFromIdle(ev.Kind)
		return
	}

	if ev.Kind == EventIdleHoldTimerExpires && p.pendingStart != nil {
		kind := *p.pendingStart
		p.pendingStart = nil
		p.beginFromIdle(kind)
	}
}

func (p *Peer) beginFromIdle(kind EventKind) {
	p.connectRetryTimer.Restart()
	if isPassiveStart(kind, p.cfg.Attributes) {
		p.setState(Active, kind)
		return
	}
	p.reinitiateConnection()
	p.setState(Connect, kind)
}
