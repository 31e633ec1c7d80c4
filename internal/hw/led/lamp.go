package led

import (
	"time"

	"github.com/fraxinas/photobooth/internal/hw/gpio"
)

// Lamp is a single light on a GPIO output: on during the countdown and
// while printing, pulsed for the flash.
type Lamp struct {
	gpio  gpio.Driver
	pin   int
	pulse time.Duration
}

// NewLamp configures pin as an output and switches it off.
func NewLamp(g gpio.Driver, pin int) (*Lamp, error) {
	if err := g.SetupPin(pin, gpio.Output); err != nil {
		return nil, err
	}
	l := &Lamp{gpio: g, pin: pin, pulse: 150 * time.Millisecond}
	return l, l.Black()
}

func (l *Lamp) Black() error        { return l.gpio.WritePin(l.pin, gpio.Low) }
func (l *Lamp) Countdown(int) error { return l.gpio.WritePin(l.pin, gpio.High) }
func (l *Lamp) Printer(int) error   { return l.gpio.WritePin(l.pin, gpio.High) }

func (l *Lamp) Flash() error {
	if err := l.gpio.WritePin(l.pin, gpio.High); err != nil {
		return err
	}
	time.Sleep(l.pulse)
	return l.gpio.WritePin(l.pin, gpio.Low)
}

func (l *Lamp) Close() error { return l.Black() }
