package led

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/fraxinas/photobooth/internal/hw/gpio"
)

// fakePort is an in-memory serial port.
type fakePort struct {
	mu      sync.Mutex
	in      *bytes.Reader
	written bytes.Buffer
	closed  bool
}

func newFakePort(greeting string) *fakePort {
	return &fakePort{in: bytes.NewReader([]byte(greeting))}
}

func (p *fakePort) Read(b []byte) (int, error) { return p.in.Read(b) }

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) output() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

func TestController_HandshakeAndCommands(t *testing.T) {
	port := newFakePort("Photobooth-LED ready\n")
	c, err := NewController(port)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	if err := c.Countdown(3); err != nil {
		t.Fatal(err)
	}
	if err := c.Flash(); err != nil {
		t.Fatal(err)
	}
	if err := c.Printer(2); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	// black on init, countdown, flash, printer with copies, black on close
	if got, want := port.output(), "bcfp2b"; got != want {
		t.Errorf("written = %q, want %q", got, want)
	}
	if !port.closed {
		t.Error("port should be closed")
	}
}

func TestController_GreetingCaseInsensitive(t *testing.T) {
	if _, err := NewController(newFakePort("PHOTOBOOTH-LED READY")); err != nil {
		t.Errorf("uppercase greeting should be accepted: %v", err)
	}
}

func TestController_WrongDevice(t *testing.T) {
	port := newFakePort("Arduino Uno ready\n")
	_, err := NewController(port)
	if !errors.Is(err, ErrWrongDevice) {
		t.Fatalf("err = %v, want ErrWrongDevice", err)
	}
	if !port.closed {
		t.Error("port should be closed after failed handshake")
	}
	if port.output() != "" {
		t.Errorf("nothing should be written to a wrong device, got %q", port.output())
	}
}

func TestController_NoGreeting(t *testing.T) {
	if _, err := NewController(newFakePort("")); err == nil {
		t.Error("expected error when the device stays silent")
	}
}

func TestLamp(t *testing.T) {
	drv := &gpio.MockDriver{}
	l, err := NewLamp(drv, 18)
	if err != nil {
		t.Fatalf("NewLamp: %v", err)
	}
	l.pulse = 0

	if lvl, _ := drv.ReadPin(18); lvl != gpio.Low {
		t.Error("lamp should start off")
	}
	_ = l.Countdown(3)
	if lvl, _ := drv.ReadPin(18); lvl != gpio.High {
		t.Error("lamp should be on during countdown")
	}
	_ = l.Flash()
	if lvl, _ := drv.ReadPin(18); lvl != gpio.Low {
		t.Error("lamp should be off after flash pulse")
	}
	_ = l.Printer(1)
	_ = l.Close()
	if lvl, _ := drv.ReadPin(18); lvl != gpio.Low {
		t.Error("lamp should be off after close")
	}
}

func TestNopImplementsStrip(t *testing.T) {
	var s Strip = Nop{}
	if err := s.Countdown(3); err != nil {
		t.Error(err)
	}
	var _ Strip = (*Controller)(nil)
	var _ Strip = (*Lamp)(nil)
}
