package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestTimer_FiresAfterDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := NewTimer(clock)

	var fired atomic.Int32
	timer.Arm(300*time.Millisecond, func() { fired.Add(1) })
	require.True(t, timer.Pending())

	clock.Advance(299 * time.Millisecond)
	require.Never(t, func() bool { return fired.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.False(t, timer.Pending())
}

func TestTimer_CancelPreventsAction(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := NewTimer(clock)

	var fired atomic.Int32
	timer.Arm(300*time.Millisecond, func() { fired.Add(1) })
	require.True(t, timer.Cancel())
	require.False(t, timer.Cancel())

	clock.Advance(time.Second)
	require.Never(t, func() bool { return fired.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestTimer_ArmReplacesPending(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := NewTimer(clock)

	var first, second atomic.Int32
	timer.Arm(100*time.Millisecond, func() { first.Add(1) })
	timer.Arm(200*time.Millisecond, func() { second.Add(1) })

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, int32(0), first.Load())
}

func TestThrottle_Allow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	th := NewThrottle(clock, 500*time.Millisecond)

	require.True(t, th.Allow("auctions"))
	require.False(t, th.Allow("auctions"))
	require.True(t, th.Allow("giveaways"), "keys are independent")

	clock.Advance(499 * time.Millisecond)
	require.False(t, th.Allow("auctions"))

	clock.Advance(time.Millisecond)
	require.True(t, th.Allow("auctions"))

	th.Reset()
	require.True(t, th.Allow("auctions"))
}
