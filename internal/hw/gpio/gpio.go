// Package gpio abstracts the Raspberry Pi pins used by the booth: the
// snapshot button and the optional GPIO lamp.
package gpio

import (
	"sync"

	"github.com/fraxinas/photobooth/internal/debug"
)

// Level is the logical state of a pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode is the direction of a pin.
type PinMode int

const (
	Input PinMode = iota
	Output
	InputPullUp // button wired between the pin and GND
)

// Driver controls pins. RPiDriver talks to the hardware, MockDriver keeps
// levels in memory for development on a PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// EdgeDetector is implemented by drivers that latch falling edges, so a
// press shorter than the poll interval is not lost.
type EdgeDetector interface {
	WatchFalling(pin int) error
	// FallingEdge reports and clears the latched edge of pin.
	FallingEdge(pin int) bool
}

// NewDriver returns a MockDriver when mock is set, the go-rpio driver otherwise.
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return &MockDriver{}, nil
	}
	return OpenRPi()
}

// MockDriver logs pin operations and keeps levels in memory. Inputs read
// High (released) unless set otherwise.
type MockDriver struct {
	mu      sync.Mutex
	levels  map[int]Level
	watched map[int]bool
	edges   map[int]bool
}

func (m *MockDriver) levelLocked(pin int) Level {
	if level, ok := m.levels[pin]; ok {
		return level
	}
	return High
}

// SetLevel forces the level read back from pin. A High to Low change on a
// watched pin latches a falling edge.
func (m *MockDriver) SetLevel(pin int, level Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.levels == nil {
		m.levels = make(map[int]Level)
		m.edges = make(map[int]bool)
	}
	if m.watched[pin] && m.levelLocked(pin) == High && level == Low {
		m.edges[pin] = true
	}
	m.levels[pin] = level
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.SetLevel(pin, level)
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	level := m.levelLocked(pin)
	debug.GPIO("ReadPin", pin, level)
	return level, nil
}

func (m *MockDriver) WatchFalling(pin int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watched == nil {
		m.watched = make(map[int]bool)
	}
	m.watched[pin] = true
	return nil
}

func (m *MockDriver) FallingEdge(pin int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	hit := m.edges[pin]
	delete(m.edges, pin)
	return hit
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}
