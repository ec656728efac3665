// Package clock provides the engine's virtual time source: a real-time
// clock for live trading, a fully controlled clock for backtests, and an
// auto-advancing clock for simulation, plus a scheduler of delayed and
// recurring callbacks.
//
// The dispatcher loop and its "catch failing callbacks, keep going"
// discipline follow the teacher's internal/net/server.go worker loop; the
// scheduled-event queue is a min-heap over container/heap, adapted from
// the teacher's internal/book/buy_book.go and sell_book.go (which
// implement heap.Interface for price-time ordering of resting orders —
// here the same shape orders events by time instead of price).
package clock

import (
	"container/heap"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// Timestamp is an opaque monotonic point produced by a Clock. Ordering is
// total within one Clock instance; comparing timestamps taken from two
// different Clock instances is undefined.
type Timestamp = time.Time

// Duration is a span between two Timestamps.
type Duration = time.Duration

// Callback is a scheduled event body. A panicking Callback is caught and
// dropped by the dispatcher; it never stops the dispatcher and a
// recurring Callback that keeps panicking keeps being rescheduled.
type Callback func()

// Mode selects how a Clock's now() advances.
type Mode int

const (
	// Live reports real monotonic wall-clock time.
	Live Mode = iota
	// Backtest reports a virtual time advanced only by explicit
	// SetTime/AdvanceTime calls.
	Backtest
	// Simulated reports a virtual time advanced automatically by the
	// dispatcher at a configurable rate relative to wall-clock time.
	Simulated
)

// pollInterval is the dispatcher's discretization, matching the 100µs
// figure the design calls out for both the Clock dispatcher and
// TradingCore's event processor.
const pollInterval = 100 * time.Microsecond

// Option configures a Clock at construction time.
type Option func(*Clock)

// WithRate sets the SIMULATED mode's ratio of virtual time advanced per
// unit of wall-clock time. A rate of 1.0 (the default) means virtual time
// tracks wall-clock time one-for-one; 10.0 means ten seconds of virtual
// time pass per second of wall-clock time. Ignored outside Simulated mode.
func WithRate(rate float64) Option {
	return func(c *Clock) {
		if rate > 0 {
			c.rate = rate
		}
	}
}

type scheduledEvent struct {
	at        time.Time
	callback  Callback
	recurring bool
	interval  time.Duration
	index     int
}

// eventHeap is a min-heap of scheduledEvent ordered by due time, the
// same heap.Interface shape as the teacher's BuyBook/SellBook.
type eventHeap []*scheduledEvent

func (h eventHeap) Len() int            { return len(h) }
func (h eventHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	e := x.(*scheduledEvent)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[0 : n-1]
	return e
}

// Clock is the engine's time source and scheduler.
type Clock struct {
	mode Mode
	rate float64

	mu      sync.Mutex
	current time.Time
	events  eventHeap
	running bool

	t        *tomb.Tomb
	lastTick time.Time
}

// New constructs a Clock in the given mode.
func New(mode Mode, opts ...Option) *Clock {
	c := &Clock{
		mode:    mode,
		rate:    1.0,
		current: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	heap.Init(&c.events)
	return c
}

// Now returns the current timestamp.
func (c *Clock) Now() Timestamp {
	if c.mode == Live {
		return time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// ScheduleOnce delivers callback no earlier than Now()+delay.
func (c *Clock) ScheduleOnce(delay time.Duration, callback Callback) {
	c.mu.Lock()
	heap.Push(&c.events, &scheduledEvent{
		at:       c.nowLocked().Add(delay),
		callback: callback,
	})
	c.mu.Unlock()
}

// ScheduleRecurring delivers callback first at Now()+interval, then at
// subsequent monotonic interval steps regardless of how long any one
// delivery took. Missed deliveries (the dispatcher having fallen behind)
// are coalesced: at most one catch-up delivery fires per poll.
func (c *Clock) ScheduleRecurring(interval time.Duration, callback Callback) {
	c.mu.Lock()
	heap.Push(&c.events, &scheduledEvent{
		at:        c.nowLocked().Add(interval),
		callback:  callback,
		recurring: true,
		interval:  interval,
	})
	c.mu.Unlock()
}

// nowLocked is Now() for callers that already hold c.mu; it must not be
// called while mode == Live holds c.mu (Live never touches c.current), so
// it is always safe.
func (c *Clock) nowLocked() time.Time {
	if c.mode == Live {
		return time.Now()
	}
	return c.current
}

// SetTime sets the current virtual time. Permitted only in Backtest or
// Simulated mode; a call in Live mode is a silent no-op.
func (c *Clock) SetTime(t Timestamp) {
	if c.mode == Live {
		return
	}
	c.mu.Lock()
	c.current = t
	due := c.popDue()
	c.mu.Unlock()
	fireAll(due)
}

// AdvanceTime advances the current virtual time by d. Permitted only in
// Backtest or Simulated mode; a call in Live mode is a silent no-op.
func (c *Clock) AdvanceTime(d Duration) {
	if c.mode == Live {
		return
	}
	c.mu.Lock()
	c.current = c.current.Add(d)
	due := c.popDue()
	c.mu.Unlock()
	fireAll(due)
}

// Mode reports the clock's mode.
func (c *Clock) Mode() Mode { return c.mode }

// IsRunning reports whether Start has been called without a matching Stop.
func (c *Clock) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Start is idempotent. In Live and Simulated mode it spawns a dispatcher
// goroutine that polls for due events (and, in Simulated mode, advances
// virtual time). In Backtest mode there is no dispatcher; due events fire
// synchronously from SetTime/AdvanceTime.
func (c *Clock) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	needsDispatcher := c.mode != Backtest
	c.lastTick = time.Now()
	c.mu.Unlock()

	if !needsDispatcher {
		return
	}
	c.t = new(tomb.Tomb)
	c.t.Go(c.dispatch)
}

// Stop is idempotent: it signals the dispatcher to exit and joins it.
// Callbacks already dequeued when Stop is called MAY still run to
// completion; no callback is preempted mid-execution.
func (c *Clock) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	t := c.t
	c.mu.Unlock()

	if t != nil {
		t.Kill(nil)
		_ = t.Wait()
	}
}

func (c *Clock) dispatch() error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.t.Dying():
			return nil
		case now := <-ticker.C:
			if c.mode == Simulated {
				c.advanceSimulated(now)
			}
			due := c.popDueLocking()
			fireAll(due)
		}
	}
}

func (c *Clock) advanceSimulated(wallNow time.Time) {
	c.mu.Lock()
	elapsed := wallNow.Sub(c.lastTick)
	c.lastTick = wallNow
	if elapsed > 0 {
		c.current = c.current.Add(time.Duration(float64(elapsed) * c.rate))
	}
	c.mu.Unlock()
}

func (c *Clock) popDueLocking() []*scheduledEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.popDue()
}

// popDue pops and returns every event due at or before the current time,
// rescheduling recurring events with missed-delivery coalescing. Callers
// must hold c.mu.
func (c *Clock) popDue() []*scheduledEvent {
	now := c.nowLocked()
	var due []*scheduledEvent
	for c.events.Len() > 0 {
		top := c.events[0]
		if top.at.After(now) {
			break
		}
		heap.Pop(&c.events)
		due = append(due, top)

		if top.recurring {
			next := top.at.Add(top.interval)
			for !next.After(now) {
				next = next.Add(top.interval)
			}
			heap.Push(&c.events, &scheduledEvent{
				at:        next,
				callback:  top.callback,
				recurring: true,
				interval:  top.interval,
			})
		}
	}
	return due
}

func fireAll(events []*scheduledEvent) {
	for _, e := range events {
		fireOne(e.callback)
	}
}

func fireOne(cb Callback) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("clock: scheduled callback panicked, dropping")
		}
	}()
	cb()
}

// --- Ambient convenience accessor -------------------------------------
//
// Per spec.md §9, a process-wide default Clock is offered purely as a
// convenience for call sites (order construction) that don't have one
// explicitly threaded through; it is never required state, and anything
// that cares about determinism (backtests, tests) should pass a Clock
// explicitly instead.

var (
	defaultMu    sync.RWMutex
	defaultClock *Clock
)

// SetDefault installs the process-wide ambient Clock.
func SetDefault(c *Clock) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultClock = c
}

// Default returns the process-wide ambient Clock, lazily creating a Live
// one if none has been installed.
func Default() *Clock {
	defaultMu.RLock()
	c := defaultClock
	defaultMu.RUnlock()
	if c != nil {
		return c
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClock == nil {
		defaultClock = New(Live)
	}
	return defaultClock
}

// ResetDefault tears down the ambient Clock, used by tests that need a
// clean slate between runs.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultClock = nil
}

// --- Duration/Timestamp helpers, carried from the original's
// Clock::milliseconds/from_milliseconds family -------------------------

func Milliseconds(ms int64) Duration { return time.Duration(ms) * time.Millisecond }
func Microseconds(us int64) Duration { return time.Duration(us) * time.Microsecond }
func Nanoseconds(ns int64) Duration  { return time.Duration(ns) }

func FromMilliseconds(ms int64) Timestamp {
	return time.UnixMilli(ms).UTC()
}

func ToMilliseconds(ts Timestamp) int64 {
	return ts.UnixMilli()
}
