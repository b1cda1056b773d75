package schedule

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Throttle coalesces triggers per key: the first trigger fires and any repeat
// within the window after it is dropped.
type Throttle struct {
	clock  clockwork.Clock
	window time.Duration

	mu        sync.Mutex
	lastFired map[string]time.Time
}

// NewThrottle creates a throttle with the given window.
func NewThrottle(clock clockwork.Clock, window time.Duration) *Throttle {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Throttle{
		clock:     clock,
		window:    window,
		lastFired: make(map[string]time.Time),
	}
}

// Allow reports whether key may fire now and, if so, records the firing.
func (th *Throttle) Allow(key string) bool {
	now := th.clock.Now()

	th.mu.Lock()
	defer th.mu.Unlock()

	if last, ok := th.lastFired[key]; ok && now.Sub(last) < th.window {
		return false
	}
	th.lastFired[key] = now
	return true
}

// Reset forgets every key.
func (th *Throttle) Reset() {
	th.mu.Lock()
	defer th.mu.Unlock()
	th.lastFired = make(map[string]time.Time)
}
