// Package timer implements the peer session's per-timer countdown
// lifecycle (spec.md §4.3): start, stop, restart, restart-with-new-
// initial-value, and reset. Each Timer owns a send handle onto a single
// FSM event channel rather than a back-reference to its owning FSM —
// the message-passing resolution spec.md §9 calls for in place of the
// original design's weak back-pointer — so cancellation is just stopping
// a pending runtime timer (no goroutine runs until it fires), never
// joining a shared mutable peer struct.
package timer

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Kind names one of the seven timers a peer session carries.
type Kind int

const (
	KindConnectRetry Kind = iota
	KindHold
	KindKeepalive
	KindMinASOriginationInterval
	KindMinRouteAdvertisementInterval
	KindDelayOpen
	KindIdleHold
)

func (k Kind) String() string {
	switch k {
	case KindConnectRetry:
		return "ConnectRetryTimer"
	case KindHold:
		return "HoldTimer"
	case KindKeepalive:
		return "KeepaliveTimer"
	case KindMinASOriginationInterval:
		return "MinASOriginationIntervalTimer"
	case KindMinRouteAdvertisementInterval:
		return "MinRouteAdvertisementIntervalTimer"
	case KindDelayOpen:
		return "DelayOpenTimer"
	case KindIdleHold:
		return "IdleHoldTimer"
	default:
		return "UnknownTimer"
	}
}

// Expiry is the synthetic event a Timer publishes onto its owning FSM's
// event channel exactly once per active period.
type Expiry struct {
	Kind Kind
}

// Timer is a one-shot countdown with the start/stop/restart/reset
// lifecycle spec.md §4.3 describes. While active it is backed by a
// monotonic deadline rather than a literal per-second decrement loop;
// Remaining reconstructs "seconds left" from that deadline for test
// harnesses that need to inspect it, without a ticking goroutine per
// timer.
type Timer struct {
	kind   Kind
	out    chan<- Expiry
	jitter bool

	mu       sync.Mutex
	initial  time.Duration
	active   bool
	gen      uint64
	deadline time.Time
	stopFn   func() bool
}

// New constructs a Timer that publishes Expiry{Kind: kind} onto out when
// it fires. When jitter is true, every (re)start multiplies the initial
// value by a uniform random factor in [0.75, 1.00], per spec.md §4.3 —
// observable only by callers that inspect Remaining/deadlines.
func New(kind Kind, out chan<- Expiry, jitter bool) *Timer {
	return &Timer{kind: kind, out: out, jitter: jitter}
}

// Kind reports the timer's identity.
func (t *Timer) Kind() Kind {
	return t.kind
}

// Start arms the timer with its current initial value. A zero or
// negative initial value leaves the timer inactive.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armLocked(t.initial)
}

// Stop disarms the timer. Stopping an already-inactive timer, including
// one that has already expired, is a no-op.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disarmLocked()
}

// Restart stops the timer, then starts it again with its existing
// initial value.
func (t *Timer) Restart() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disarmLocked()
	t.armLocked(t.initial)
}

// RestartWith changes the initial value, then restarts.
func (t *Timer) RestartWith(v time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.initial = v
	t.disarmLocked()
	t.armLocked(v)
}

// Reset stops the timer and sets its initial value without starting it.
// For any v, Reset(v) followed by Reset(v) again leaves the timer with
// initial == v and active == false (spec.md §8's Idempotence of Reset).
func (t *Timer) Reset(v time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.initial = v
	t.disarmLocked()
}

// Active reports whether the timer is currently counting down.
func (t *Timer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Remaining reports the time left before expiry, or zero if inactive.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return 0
	}
	return time.Until(t.deadline)
}

func (t *Timer) armLocked(v time.Duration) {
	if t.active || v <= 0 {
		return
	}
	delay := v
	if t.jitter {
		factor := 0.75 + rand.Float64()*0.25
		delay = time.Duration(float64(v) * factor)
	}

	t.active = true
	t.gen++
	gen := t.gen
	t.deadline = time.Now().Add(delay)

	fireTimer := time.AfterFunc(delay, func() {
		t.mu.Lock()
		fire := t.active && t.gen == gen
		if fire {
			t.active = false
		}
		t.mu.Unlock()
		if fire {
			t.out <- Expiry{Kind: t.kind}
		}
	})
	t.stopFn = fireTimer.Stop
}

func (t *Timer) disarmLocked() {
	if !t.active {
		return
	}
	t.active = false
	t.gen++
	if t.stopFn != nil {
		t.stopFn()
	}
}
