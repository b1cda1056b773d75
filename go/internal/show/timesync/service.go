package timesync

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Service tracks the offset between the local clock and the show server's
// clock. Countdowns read Now instead of trusting local drift.
type Service struct {
	clock clockwork.Clock

	mu        sync.RWMutex
	offset    time.Duration
	source    string
	updatedAt time.Time
}

// New creates a service with a zero offset.
func New(clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{clock: clock}
}

// UpdateFromServerTime records serverTime-localTime. The last writer wins; a
// zero server time carries no information and is ignored.
func (s *Service) UpdateFromServerTime(serverTime time.Time, source string) {
	if serverTime.IsZero() {
		return
	}
	local := s.clock.Now()
	offset := serverTime.Sub(local)

	s.mu.Lock()
	s.offset = offset
	s.source = source
	s.updatedAt = local
	s.mu.Unlock()

	log.Debug().
		Dur("offset", offset).
		Str("source", source).
		Msg("server clock offset updated")
}

// Now returns the local clock shifted by the known offset.
func (s *Service) Now() time.Time {
	s.mu.RLock()
	offset := s.offset
	s.mu.RUnlock()
	return s.clock.Now().Add(offset)
}

// Offset returns the current serverTime-localTime estimate.
func (s *Service) Offset() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset
}

// Source names the event that last refreshed the offset.
func (s *Service) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// LocalTime converts a server-clock instant into the local clock, which is
// what timers run on.
func (s *Service) LocalTime(server time.Time) time.Time {
	return server.Add(-s.Offset())
}
