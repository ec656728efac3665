package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLive_NowAdvancesWithWallClock(t *testing.T) {
	c := New(Live)
	a := c.Now()
	time.Sleep(2 * time.Millisecond)
	b := c.Now()
	assert.True(t, b.After(a))
}

func TestBacktest_SetTimeAndAdvanceTimeAreExplicit(t *testing.T) {
	c := New(Backtest)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.SetTime(base)
	assert.Equal(t, base, c.Now())

	c.AdvanceTime(time.Hour)
	assert.Equal(t, base.Add(time.Hour), c.Now())
}

func TestLive_SetTimeAndAdvanceTimeAreNoOps(t *testing.T) {
	c := New(Live)
	before := c.Now()
	c.SetTime(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC))
	c.AdvanceTime(time.Hour)
	after := c.Now()
	assert.True(t, after.After(before) || after.Equal(before))
	assert.False(t, after.Year() == 1999)
}

func TestBacktest_AdvanceTimeFiresDueOnceCallback(t *testing.T) {
	c := New(Backtest)
	c.SetTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	var fired atomic.Int32
	c.ScheduleOnce(time.Minute, func() { fired.Add(1) })

	c.AdvanceTime(30 * time.Second)
	assert.Equal(t, int32(0), fired.Load())

	c.AdvanceTime(time.Minute)
	assert.Equal(t, int32(1), fired.Load())

	c.AdvanceTime(time.Hour)
	assert.Equal(t, int32(1), fired.Load(), "once-callback must not re-fire")
}

func TestBacktest_RecurringCallbackCoalescesMissedDeliveries(t *testing.T) {
	c := New(Backtest)
	c.SetTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	var fired atomic.Int32
	c.ScheduleRecurring(time.Second, func() { fired.Add(1) })

	// Jump far enough ahead to have missed many deliveries; coalescing
	// means exactly one delivery fires for this jump, not ten.
	c.AdvanceTime(10 * time.Second)
	assert.Equal(t, int32(1), fired.Load())

	c.AdvanceTime(time.Second)
	assert.Equal(t, int32(2), fired.Load())
}

func TestLiveDispatcher_FiresScheduledOnceCallback(t *testing.T) {
	c := New(Live)
	c.Start()
	defer c.Stop()

	done := make(chan struct{})
	c.ScheduleOnce(5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}
}

func TestStartStop_Idempotent(t *testing.T) {
	c := New(Live)
	c.Start()
	c.Start()
	assert.True(t, c.IsRunning())
	c.Stop()
	c.Stop()
	assert.False(t, c.IsRunning())
}

func TestBacktestStart_HasNoDispatcherGoroutine(t *testing.T) {
	c := New(Backtest)
	c.Start()
	assert.True(t, c.IsRunning())
	c.Stop()
	assert.False(t, c.IsRunning())
}

func TestPanickingCallback_DoesNotStopDispatch(t *testing.T) {
	c := New(Backtest)
	c.SetTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	var secondFired atomic.Bool
	c.ScheduleOnce(time.Second, func() { panic("boom") })
	c.ScheduleOnce(time.Second, func() { secondFired.Store(true) })

	c.AdvanceTime(2 * time.Second)
	assert.True(t, secondFired.Load())
}

func TestDefaultClock_LazyInitAndOverride(t *testing.T) {
	ResetDefault()
	defer ResetDefault()

	d := Default()
	assert.NotNil(t, d)
	assert.Equal(t, Live, d.Mode())

	custom := New(Backtest)
	SetDefault(custom)
	assert.Same(t, custom, Default())
}

func TestDurationHelpers_RoundTrip(t *testing.T) {
	ts := FromMilliseconds(1_700_000_000_123)
	assert.Equal(t, int64(1_700_000_000_123), ToMilliseconds(ts))
	assert.Equal(t, time.Millisecond, Milliseconds(1))
	assert.Equal(t, time.Microsecond, Microseconds(1))
	assert.Equal(t, time.Nanosecond, Nanoseconds(1))
}
