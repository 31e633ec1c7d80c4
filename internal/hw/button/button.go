// Package button turns a GPIO push button into snapshot triggers.
package button

import (
	"context"
	"errors"
	"time"

	"github.com/fraxinas/photobooth/internal/debug"
	"github.com/fraxinas/photobooth/internal/hw/gpio"
)

// Button polls an active-low input (button between pin and GND, internal
// pull-up enabled) and fires once per debounced press.
type Button struct {
	gpio     gpio.Driver
	pin      int
	poll     time.Duration
	debounce time.Duration
	edges    gpio.EdgeDetector // nil = level polling
}

// ErrNoEdgeDetection is returned by UseEdges for drivers without an edge latch.
var ErrNoEdgeDetection = errors.New("button: driver has no edge detection")

// New configures pin as a pulled-up input.
func New(g gpio.Driver, pin int, poll, debounce time.Duration) (*Button, error) {
	if err := g.SetupPin(pin, gpio.InputPullUp); err != nil {
		return nil, err
	}
	if poll <= 0 {
		poll = 20 * time.Millisecond
	}
	return &Button{gpio: g, pin: pin, poll: poll, debounce: debounce}, nil
}

// UseEdges switches to the driver's falling edge latch: every latched edge
// fires, except edges within the debounce time of the previous press.
func (b *Button) UseEdges() error {
	ed, ok := b.gpio.(gpio.EdgeDetector)
	if !ok {
		return ErrNoEdgeDetection
	}
	if err := ed.WatchFalling(b.pin); err != nil {
		return err
	}
	b.edges = ed
	return nil
}

// Run polls until ctx is done, calling onPress for every press. A press is
// reported when the pin has been Low for at least the debounce time; the
// button has to be released before it can fire again.
func (b *Button) Run(ctx context.Context, onPress func()) error {
	if b.edges != nil {
		return b.runEdges(ctx, onPress)
	}
	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	var (
		lowSince time.Time
		fired    bool
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			level, err := b.gpio.ReadPin(b.pin)
			if err != nil {
				return err
			}
			if level == gpio.High {
				lowSince = time.Time{}
				fired = false
				continue
			}
			if lowSince.IsZero() {
				lowSince = now
			}
			if !fired && now.Sub(lowSince) >= b.debounce {
				fired = true
				debug.Live("Button on pin %d pressed", b.pin)
				onPress()
			}
		}
	}
}

func (b *Button) runEdges(ctx context.Context, onPress func()) error {
	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if !b.edges.FallingEdge(b.pin) {
				continue
			}
			if !last.IsZero() && now.Sub(last) < b.debounce {
				debug.Trace("Button on pin %d: bounce ignored", b.pin)
				continue
			}
			last = now
			debug.Live("Button on pin %d pressed", b.pin)
			onPress()
		}
	}
}
