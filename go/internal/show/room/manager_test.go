package room

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

type recordingEmitter struct {
	mu    sync.Mutex
	calls []string
}

func (e *recordingEmitter) JoinRoom(roomID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, "join:"+roomID)
	return nil
}

func (e *recordingEmitter) LeaveRoom(roomID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, "leave:"+roomID)
	return nil
}

func (e *recordingEmitter) snapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func newManager() (*Manager, *recordingEmitter, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	emitter := &recordingEmitter{}
	return NewManager(emitter, clock, DefaultLeaveDelay), emitter, clock
}

func TestManager_ReentryCancelsPendingLeave(t *testing.T) {
	m, emitter, clock := newManager()

	m.Enter("x")
	m.Teardown()
	require.True(t, m.Leaving())

	clock.Advance(100 * time.Millisecond)
	m.Enter("x")
	require.False(t, m.Leaving())

	clock.Advance(time.Second)
	require.Never(t, func() bool { return len(emitter.snapshot()) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	require.Equal(t, []string{"join:x"}, emitter.snapshot())
	require.Equal(t, "x", m.Current())
}

func TestManager_TeardownLeavesAfterDelay(t *testing.T) {
	m, emitter, clock := newManager()

	m.Enter("x")
	m.Teardown()

	clock.Advance(299 * time.Millisecond)
	require.Never(t, func() bool { return len(emitter.snapshot()) > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool {
		calls := emitter.snapshot()
		return len(calls) == 2 && calls[1] == "leave:x"
	}, time.Second, 5*time.Millisecond)
	require.Empty(t, m.Current())
	require.False(t, m.Leaving())
}

func TestManager_RoomSwitchLeavesImmediately(t *testing.T) {
	m, emitter, _ := newManager()

	m.Enter("x")
	m.Enter("y")

	require.Equal(t, []string{"join:x", "leave:x", "join:y"}, emitter.snapshot())
	require.Equal(t, "y", m.Current())
}

func TestManager_SwitchDuringPendingLeave(t *testing.T) {
	m, emitter, clock := newManager()

	m.Enter("x")
	m.Teardown()
	m.Enter("y")

	clock.Advance(time.Second)
	require.Never(t, func() bool { return len(emitter.snapshot()) > 3 }, 50*time.Millisecond, 5*time.Millisecond)
	require.Equal(t, []string{"join:x", "leave:x", "join:y"}, emitter.snapshot())
}

func TestManager_ReconnectRejoinsUnlessLeaving(t *testing.T) {
	m, emitter, _ := newManager()

	m.Enter("x")
	m.OnReconnect()
	require.Equal(t, []string{"join:x", "join:x"}, emitter.snapshot())

	m.Teardown()
	m.OnReconnect()
	require.Equal(t, []string{"join:x", "join:x"}, emitter.snapshot())
}

func TestManager_LeaveNow(t *testing.T) {
	m, emitter, _ := newManager()

	m.Enter("x")
	m.Teardown()
	m.LeaveNow()

	require.Equal(t, []string{"join:x", "leave:x"}, emitter.snapshot())
	require.Empty(t, m.Current())
}
