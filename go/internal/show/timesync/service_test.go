package timesync

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestService_UpdateFromServerTime(t *testing.T) {
	local := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(local)
	s := New(clock)

	require.Equal(t, local, s.Now())

	s.UpdateFromServerTime(local.Add(3*time.Second), "auction-started")
	require.Equal(t, 3*time.Second, s.Offset())
	require.Equal(t, "auction-started", s.Source())
	require.Equal(t, local.Add(3*time.Second), s.Now())

	clock.Advance(time.Second)
	require.Equal(t, local.Add(4*time.Second), s.Now())
}

func TestService_LastWriterWins(t *testing.T) {
	local := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := New(clockwork.NewFakeClockAt(local))

	s.UpdateFromServerTime(local.Add(10*time.Second), "a")
	s.UpdateFromServerTime(local.Add(-2*time.Second), "b")

	require.Equal(t, -2*time.Second, s.Offset())
	require.Equal(t, "b", s.Source())
}

func TestService_IgnoresZeroServerTime(t *testing.T) {
	local := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := New(clockwork.NewFakeClockAt(local))

	s.UpdateFromServerTime(local.Add(5*time.Second), "a")
	s.UpdateFromServerTime(time.Time{}, "b")

	require.Equal(t, 5*time.Second, s.Offset())
}

func TestService_LocalTime(t *testing.T) {
	local := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := New(clockwork.NewFakeClockAt(local))
	s.UpdateFromServerTime(local.Add(time.Minute), "a")

	server := local.Add(2 * time.Minute)
	require.Equal(t, local.Add(time.Minute), s.LocalTime(server))
}
