package gpio

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/fraxinas/photobooth/internal/debug"
)

// RPiDriver drives the pins through go-rpio's /dev/gpiomem mapping. The
// button poller and the lamp call it from different goroutines.
type RPiDriver struct {
	mu      sync.Mutex
	pins    map[int]rpio.Pin
	watched map[int]bool
}

// OpenRPi maps the GPIO registers. It needs /dev/gpiomem or root.
func OpenRPi() (*RPiDriver, error) {
	debug.Info("Initializing real GPIO driver (go-rpio)")
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open GPIO: %w (not a Raspberry Pi?)", err)
	}
	return &RPiDriver{
		pins:    make(map[int]rpio.Pin),
		watched: make(map[int]bool),
	}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.configureLocked(pin, mode)
	return err
}

func (r *RPiDriver) configureLocked(pin int, mode PinMode) (rpio.Pin, error) {
	debug.GPIO("SetupPin", pin, mode)
	p := rpio.Pin(pin)
	switch mode {
	case Output:
		p.Output()
	case Input:
		p.Input()
		p.PullOff()
	case InputPullUp:
		p.Input()
		p.PullUp()
	default:
		return p, fmt.Errorf("gpio: unknown pin mode %d", mode)
	}
	r.pins[pin] = p
	return p, nil
}

// pinLocked returns the configured pin, configuring it with mode on first use.
func (r *RPiDriver) pinLocked(pin int, mode PinMode) (rpio.Pin, error) {
	if p, ok := r.pins[pin]; ok {
		return p, nil
	}
	return r.configureLocked(pin, mode)
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.pinLocked(pin, Output)
	if err != nil {
		return err
	}
	debug.GPIO("WritePin", pin, level)
	if level == High {
		p.High()
	} else {
		p.Low()
	}
	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.pinLocked(pin, Input)
	if err != nil {
		return Low, err
	}
	level := Level(p.Read() == rpio.High)
	debug.GPIO("ReadPin", pin, level)
	return level, nil
}

// WatchFalling enables the SoC's falling edge latch on pin.
func (r *RPiDriver) WatchFalling(pin int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.pinLocked(pin, InputPullUp)
	if err != nil {
		return err
	}
	p.Detect(rpio.FallEdge)
	r.watched[pin] = true
	return nil
}

func (r *RPiDriver) FallingEdge(pin int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pins[pin]
	if !ok || !r.watched[pin] {
		return false
	}
	return p.EdgeDetected()
}

// Close disables edge detection and leaves every used pin as a floating
// input before unmapping.
func (r *RPiDriver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	debug.Trace("GPIO Close (real driver)")
	for pin, p := range r.pins {
		if r.watched[pin] {
			p.Detect(rpio.NoEdge)
		}
		p.Input()
		p.PullOff()
	}
	return rpio.Close()
}
