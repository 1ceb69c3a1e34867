package chat

import (
	"sync"
	"time"
)

// Clock abstracts the monotonic millisecond time source the pending queue,
// presence engine, and dedupe/replay logic are driven by. Injecting it lets
// tests advance virtual time deterministically instead of sleeping on a
// real clock.
type Clock interface {
	// NowMS returns the current monotonic time in milliseconds. The epoch
	// is unspecified; only differences between calls are meaningful.
	NowMS() int64
}

// SystemClock is a Clock backed by the real monotonic runtime clock.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a SystemClock anchored to the current time.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// NowMS implements Clock.
func (c *SystemClock) NowMS() int64 {
	return time.Since(c.start).Milliseconds()
}

// VirtualClock is a Clock a test can advance explicitly, with no
// relationship to wall time.
type VirtualClock struct {
	mu  sync.Mutex
	now int64
}

// NewVirtualClock returns a VirtualClock starting at the given time.
func NewVirtualClock(startMS int64) *VirtualClock {
	return &VirtualClock{now: startMS}
}

// NowMS implements Clock.
func (c *VirtualClock) NowMS() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the virtual clock forward by delta milliseconds.
func (c *VirtualClock) Advance(deltaMS int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += deltaMS
}

// Set pins the virtual clock to an absolute time.
func (c *VirtualClock) Set(nowMS int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = nowMS
}
