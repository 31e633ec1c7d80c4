// Package countdown implements the timed snapshot countdown.
package countdown

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrFinished is returned when Run is called on a countdown that already
// reached zero.
var ErrFinished = errors.New("countdown: already finished")

// Countdown decrements a counter from a start value to zero, one step per
// interval.
type Countdown struct {
	start    int
	interval time.Duration

	mu        sync.Mutex
	remaining int
	running   bool
}

// New creates a countdown of start ticks. start < 1 is clamped to 1.
func New(start int, interval time.Duration) *Countdown {
	if start < 1 {
		start = 1
	}
	return &Countdown{start: start, interval: interval, remaining: start}
}

// Run calls onTick with the start value immediately, then once per interval
// with each lower value down to and including 0. It returns nil after the
// zero tick, or ctx.Err() when cancelled. onTick runs on the caller's
// goroutine and may be nil.
func (c *Countdown) Run(ctx context.Context, onTick func(remaining int)) error {
	c.mu.Lock()
	if c.remaining == 0 {
		c.mu.Unlock()
		return ErrFinished
	}
	if c.running {
		c.mu.Unlock()
		return errors.New("countdown: already running")
	}
	c.running = true
	n := c.remaining
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	if onTick != nil {
		onTick(n)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for n > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		n = c.decrement()
		if onTick != nil {
			onTick(n)
		}
	}
	return nil
}

func (c *Countdown) decrement() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remaining > 0 {
		c.remaining--
	}
	return c.remaining
}

// Remaining returns the current counter value.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Start returns the initial value.
func (c *Countdown) Start() int { return c.start }

// Reset rearms the countdown at its start value.
func (c *Countdown) Reset() {
	c.mu.Lock()
	c.remaining = c.start
	c.mu.Unlock()
}
