package room

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveshow/go/internal/show/schedule"
)

// DefaultLeaveDelay absorbs an unmount/remount cycle of a room view.
const DefaultLeaveDelay = 300 * time.Millisecond

// Emitter sends room membership requests to the realtime connection.
type Emitter interface {
	JoinRoom(roomID string) error
	LeaveRoom(roomID string) error
}

// Manager tracks which room the viewer is in and turns view enter/exit
// signals into join and leave requests. Switching rooms leaves the old room
// immediately; exiting the view leaves after a short delay that a re-entry
// cancels.
type Manager struct {
	emitter Emitter
	delay   time.Duration

	mu           sync.Mutex
	current      string
	leaving      bool
	pendingLeave *schedule.Timer
}

// NewManager creates a manager that emits through emitter.
func NewManager(emitter Emitter, clock clockwork.Clock, delay time.Duration) *Manager {
	if delay <= 0 {
		delay = DefaultLeaveDelay
	}
	return &Manager{
		emitter:      emitter,
		delay:        delay,
		pendingLeave: schedule.NewTimer(clock),
	}
}

// Enter is called every time the room view is (re)entered with roomID. An
// empty id is treated as an exit.
func (m *Manager) Enter(roomID string) {
	if roomID == "" {
		m.Teardown()
		return
	}

	m.mu.Lock()
	m.pendingLeave.Cancel()
	m.leaving = false

	previous := m.current
	if previous == roomID {
		m.mu.Unlock()
		return
	}
	m.current = roomID
	m.mu.Unlock()

	if previous != "" {
		m.leave(previous)
	}
	m.join(roomID)
}

// Teardown schedules the leave of the current room. Until it fires the
// manager reports Leaving so a reconnect does not rejoin.
func (m *Manager) Teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == "" {
		return
	}
	roomID := m.current
	m.leaving = true
	m.pendingLeave.Arm(m.delay, func() {
		m.mu.Lock()
		if m.current != roomID || !m.leaving {
			m.mu.Unlock()
			return
		}
		m.current = ""
		m.leaving = false
		m.mu.Unlock()

		m.leave(roomID)
	})
}

// LeaveNow leaves the current room without waiting. Used on shutdown.
func (m *Manager) LeaveNow() {
	m.mu.Lock()
	m.pendingLeave.Cancel()
	roomID := m.current
	m.current = ""
	m.leaving = false
	m.mu.Unlock()

	if roomID != "" {
		m.leave(roomID)
	}
}

// OnReconnect rejoins the current room after the connection was
// re-established, unless a leave is pending.
func (m *Manager) OnReconnect() {
	m.mu.Lock()
	roomID, leaving := m.current, m.leaving
	m.mu.Unlock()

	if roomID == "" || leaving {
		log.Debug().Str("room_id", roomID).Bool("leaving", leaving).Msg("Skipping rejoin after reconnect")
		return
	}
	m.join(roomID)
}

// Current returns the room the viewer is in.
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Leaving reports whether a debounced leave is pending.
func (m *Manager) Leaving() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaving
}

func (m *Manager) join(roomID string) {
	if err := m.emitter.JoinRoom(roomID); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("Failed to join room")
		return
	}
	log.Info().Str("room_id", roomID).Msg("Joined room")
}

func (m *Manager) leave(roomID string) {
	if err := m.emitter.LeaveRoom(roomID); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("Failed to leave room")
		return
	}
	log.Info().Str("room_id", roomID).Msg("Left room")
}
