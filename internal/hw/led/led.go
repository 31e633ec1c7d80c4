// Package led drives the booth's LED feedback: a serial LED controller
// announcing itself as "Photobooth-LED ready", a single lamp on a GPIO pin,
// or nothing at all.
package led

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fraxinas/photobooth/internal/debug"
)

// Serial protocol commands.
const (
	CmdBlack     = 'b'
	CmdCountdown = 'c'
	CmdFlash     = 'f'
	CmdPrint     = 'p'
)

// Greeting is the banner the controller sends after the port is opened.
const Greeting = "Photobooth-LED ready"

// ErrWrongDevice is returned when a serial device does not greet as an LED controller.
var ErrWrongDevice = errors.New("led: wrong device")

// Strip is the LED feedback used by the booth.
type Strip interface {
	Black() error
	Countdown(seconds int) error
	Flash() error
	Printer(copies int) error
	Close() error
}

// Nop is a Strip that does nothing.
type Nop struct{}

func (Nop) Black() error        { return nil }
func (Nop) Countdown(int) error { return nil }
func (Nop) Flash() error        { return nil }
func (Nop) Printer(int) error   { return nil }
func (Nop) Close() error        { return nil }

// Controller speaks the serial LED protocol over an already configured port.
type Controller struct {
	mu   sync.Mutex
	port io.ReadWriteCloser
}

// NewController performs the greeting handshake on port and switches the
// LEDs off. The port is closed when the handshake fails.
func NewController(port io.ReadWriteCloser) (*Controller, error) {
	if d, ok := port.(interface{ SetReadDeadline(time.Time) error }); ok {
		_ = d.SetReadDeadline(time.Now().Add(2 * time.Second))
		defer d.SetReadDeadline(time.Time{})
	}

	buf := make([]byte, 31)
	n, err := port.Read(buf)
	if err != nil && n == 0 {
		port.Close()
		return nil, fmt.Errorf("led: read greeting: %w", err)
	}
	got := string(buf[:n])
	debug.Trace("LED greeting: %q", got)
	if len(got) < len(Greeting) || !strings.EqualFold(got[:len(Greeting)], Greeting) {
		port.Close()
		return nil, fmt.Errorf("%w: greeting %q", ErrWrongDevice, strings.TrimSpace(got))
	}

	c := &Controller{port: port}
	if err := c.Black(); err != nil {
		port.Close()
		return nil, err
	}
	debug.Info("LED controller initialized")
	return c, nil
}

func (c *Controller) send(cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	debug.Trace("LED command %q", cmd)
	if _, err := io.WriteString(c.port, cmd); err != nil {
		return fmt.Errorf("led: write %q: %w", cmd, err)
	}
	return nil
}

// Black turns all LEDs off.
func (c *Controller) Black() error { return c.send(string(rune(CmdBlack))) }

// Countdown starts the controller's countdown animation.
func (c *Controller) Countdown(seconds int) error {
	debug.Verbose("LED countdown %d seconds", seconds)
	return c.send(string(rune(CmdCountdown)))
}

// Flash fires the flash LEDs.
func (c *Controller) Flash() error { return c.send(string(rune(CmdFlash))) }

// Printer lights the printer LEDs for the given number of copies.
func (c *Controller) Printer(copies int) error {
	return c.send(fmt.Sprintf("%c%d", CmdPrint, copies))
}

// Close switches the LEDs off and closes the port.
func (c *Controller) Close() error {
	berr := c.Black()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.port.Close(); err != nil {
		return err
	}
	return berr
}
