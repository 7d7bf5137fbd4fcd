package clock

import (
	"errors"
	"sync"
	"time"
)

// ErrInvalidSpeed indicates a speed factor of zero or less.
var ErrInvalidSpeed = errors.New("speed factor must be positive")

// Clock is a pausable, speed-adjustable elapsed-time source.
//
// All mutable state (anchor, accumulated base, paused flag, speed) is
// guarded by one mutex so a consumer reading Elapsed never races a
// host-input thread calling Pause, Resume, or SetSpeed.
type Clock struct {
	mu sync.Mutex
	tp TimeProvider

	// base is the elapsed time accumulated up to the last rebase;
	// anchor is the wall instant of that rebase. While running,
	// Elapsed = base + (now - anchor) * speed. While paused,
	// Elapsed = base.
	base   time.Duration
	anchor time.Time
	speed  float64
	paused bool
}

// New creates a running clock anchored at the current instant, with
// speed 1.0. A nil TimeProvider falls back to system time.
func New(tp TimeProvider) *Clock {
	if tp == nil {
		tp = DefaultTimeProvider{}
	}
	return &Clock{
		tp:     tp,
		anchor: tp.Now(),
		speed:  1.0,
	}
}

// Elapsed returns the current reading of the playback timeline.
// The reading is non-decreasing while running and constant while paused.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsedLocked()
}

// Seconds returns Elapsed as a float64 second count, the unit frame
// presentation timestamps are compared against.
func (c *Clock) Seconds() float64 {
	return c.Elapsed().Seconds()
}

// Pause freezes the clock at its current reading. Pausing an already
// paused clock is a no-op.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused {
		return
	}
	c.base = c.elapsedLocked()
	c.paused = true
}

// Resume continues the clock seamlessly from the frozen reading.
// Resuming a running clock is a no-op.
func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.paused {
		return
	}
	c.anchor = c.tp.Now()
	c.paused = false
}

// SetSpeed changes the rate at which future time accumulates. The
// instantaneous reading is preserved at the moment of the call, so a
// speed change never produces a discontinuity.
func (c *Clock) SetSpeed(factor float64) error {
	if factor <= 0 {
		return ErrInvalidSpeed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.base = c.elapsedLocked()
	c.anchor = c.tp.Now()
	c.speed = factor
	return nil
}

// Speed returns the current speed multiplier.
func (c *Clock) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// IsPaused reports whether the clock is paused.
func (c *Clock) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Reset rebases the clock to zero at the current instant, clearing the
// paused flag. The speed multiplier is retained.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.base = 0
	c.anchor = c.tp.Now()
	c.paused = false
}

func (c *Clock) elapsedLocked() time.Duration {
	if c.paused {
		return c.base
	}
	return c.base + time.Duration(float64(c.tp.Now().Sub(c.anchor))*c.speed)
}
