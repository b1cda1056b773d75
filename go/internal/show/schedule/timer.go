package schedule

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a cancellable one-shot timer. Arming replaces any pending action;
// Cancel drops it. A callback that already left the clock but was superseded
// before it ran is discarded, so a cancelled action never executes.
type Timer struct {
	clock clockwork.Clock

	mu      sync.Mutex
	pending clockwork.Timer
	gen     uint64
}

// NewTimer creates an idle timer on clock.
func NewTimer(clock clockwork.Clock) *Timer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Timer{clock: clock}
}

// Arm schedules fn after d, cancelling whatever was pending.
func (t *Timer) Arm(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.gen++
	gen := t.gen
	t.pending = t.clock.AfterFunc(d, func() {
		t.mu.Lock()
		if t.gen != gen {
			t.mu.Unlock()
			return
		}
		t.pending = nil
		t.mu.Unlock()
		fn()
	})
}

// Cancel drops the pending action. It reports whether one was pending.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	wasPending := t.pending != nil
	t.stopLocked()
	t.gen++
	return wasPending
}

// Pending reports whether an action is armed.
func (t *Timer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

func (t *Timer) stopLocked() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}
