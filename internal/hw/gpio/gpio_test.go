package gpio

import "testing"

func TestMockDriver_InputsDefaultHigh(t *testing.T) {
	d := &MockDriver{}
	if err := d.SetupPin(23, InputPullUp); err != nil {
		t.Fatalf("SetupPin: %v", err)
	}
	level, err := d.ReadPin(23)
	if err != nil {
		t.Fatalf("ReadPin: %v", err)
	}
	if level != High {
		t.Errorf("unset pin should read High (pull-up), got %v", level)
	}
}

func TestMockDriver_WriteReadBack(t *testing.T) {
	d := &MockDriver{}
	if err := d.WritePin(18, Low); err != nil {
		t.Fatalf("WritePin: %v", err)
	}
	if level, _ := d.ReadPin(18); level != Low {
		t.Errorf("ReadPin after WritePin(Low) = %v", level)
	}
	d.SetLevel(18, High)
	if level, _ := d.ReadPin(18); level != High {
		t.Errorf("ReadPin after SetLevel(High) = %v", level)
	}
}

func TestNewDriver_Mock(t *testing.T) {
	d, err := NewDriver(true)
	if err != nil {
		t.Fatalf("NewDriver(mock): %v", err)
	}
	if _, ok := d.(*MockDriver); !ok {
		t.Errorf("got %T, want *MockDriver", d)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestMockDriver_LatchesFallingEdge(t *testing.T) {
	d := &MockDriver{}
	d.SetLevel(23, Low)
	d.SetLevel(23, High)
	if d.FallingEdge(23) {
		t.Error("unwatched pin should not latch edges")
	}

	if err := d.WatchFalling(23); err != nil {
		t.Fatal(err)
	}
	d.SetLevel(23, Low)
	d.SetLevel(23, Low)
	d.SetLevel(23, High)
	if !d.FallingEdge(23) {
		t.Error("short press should be latched")
	}
	if d.FallingEdge(23) {
		t.Error("reading the edge should clear it")
	}
}

var _ EdgeDetector = (*MockDriver)(nil)
var _ EdgeDetector = (*RPiDriver)(nil)
