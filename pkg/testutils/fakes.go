package testutils

import (
	"sync"
	"time"
)

// FakeClock is a manually advanced utils.IClock. Sleep advances the clock
// instead of blocking.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Sleep(d time.Duration) {
	c.Advance(d)
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// FakeTicker is a utils.ITicker that only fires when Tick is called
type FakeTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func NewFakeTicker() *FakeTicker {
	return &FakeTicker{
		ch:      make(chan time.Time),
		stopped: make(chan struct{}),
	}
}

func (f *FakeTicker) C() <-chan time.Time {
	return f.ch
}

// Tick delivers a tick and blocks until the consumer has received it.
// It returns false if the ticker was stopped first.
func (f *FakeTicker) Tick(at time.Time) bool {
	select {
	case f.ch <- at:
		return true
	case <-f.stopped:
		return false
	}
}

func (f *FakeTicker) Stop() {
	f.once.Do(func() { close(f.stopped) })
}
