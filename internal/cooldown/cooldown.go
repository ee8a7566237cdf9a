package cooldown

import (
	"sync"
	"time"
)

const (
	// DefaultSeconds is the resend window started after a code is sent.
	DefaultSeconds = 15

	// DefaultInterval is the time between two decrements.
	DefaultInterval = time.Second
)

// Stopper cancels a scheduled callback. Stop reports whether the call
// prevented the callback from running.
type Stopper interface {
	Stop() bool
}

// Clock schedules callbacks. Tests swap in a manual clock so that a tick is
// an explicit step rather than a real second.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Stopper
}

type realClock struct{}

// RealClock returns a Clock backed by the time package.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now().UTC() }

func (realClock) AfterFunc(d time.Duration, f func()) Stopper { return time.AfterFunc(d, f) }

// Timer is a countdown in whole seconds. It owns at most one scheduled
// callback at a time: every Start or tick replaces the previous handle.
type Timer struct {
	mu        sync.Mutex
	clock     Clock
	interval  time.Duration
	remaining int
	handle    Stopper
	gen       uint64
	onTick    func(remaining int)
}

// Option is a function that configures a Timer.
type Option func(*Timer)

// WithInterval overrides the time between decrements.
func WithInterval(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithOnTick registers a callback invoked with the remaining seconds after
// every decrement, including the final one that reaches zero. It is called
// without the timer's lock held.
func WithOnTick(f func(remaining int)) Option {
	return func(t *Timer) {
		t.onTick = f
	}
}

// New creates a stopped timer. A nil clock selects RealClock.
func New(clock Clock, opts ...Option) *Timer {
	if clock == nil {
		clock = RealClock()
	}
	t := &Timer{
		clock:    clock,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start arms the countdown at seconds, discarding any pending tick.
// Non-positive values simply stop the timer.
func (t *Timer) Start(seconds int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked()
	if seconds <= 0 {
		t.remaining = 0
		return
	}
	t.remaining = seconds
	t.scheduleLocked()
}

// Stop discards the pending tick and zeroes the countdown.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked()
	t.remaining = 0
}

// Remaining returns the seconds left. It never goes below zero.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Active reports whether the countdown is still running.
func (t *Timer) Active() bool {
	return t.Remaining() > 0
}

// Pending reports whether a tick is currently scheduled.
func (t *Timer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handle != nil
}

func (t *Timer) cancelLocked() {
	t.gen++
	if t.handle != nil {
		t.handle.Stop()
		t.handle = nil
	}
}

func (t *Timer) scheduleLocked() {
	gen := t.gen
	t.handle = t.clock.AfterFunc(t.interval, func() { t.tick(gen) })
}

func (t *Timer) tick(gen uint64) {
	t.mu.Lock()
	// A tick that lost a race with Start or Stop belongs to a discarded handle.
	if gen != t.gen || t.remaining == 0 {
		t.mu.Unlock()
		return
	}
	t.handle = nil
	t.remaining--
	if t.remaining > 0 {
		t.scheduleLocked()
	}
	remaining := t.remaining
	onTick := t.onTick
	t.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}
}
