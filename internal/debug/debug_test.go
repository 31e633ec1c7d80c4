package debug

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func withOutput(t *testing.T, lvl int) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	Init(lvl)
	t.Cleanup(func() {
		Init(LevelOff)
		SetOutput(os.Stdout)
	})
	return &buf
}

func TestLevelGating(t *testing.T) {
	buf := withOutput(t, LevelInfo)

	Info("started %d", 1)
	Live("hidden")
	Verbose("hidden too")

	out := buf.String()
	if !strings.Contains(out, "[INFO] started 1") {
		t.Errorf("missing info line in %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("level 1 should not print live/verbose lines: %q", out)
	}
}

func TestOffPrintsNothing(t *testing.T) {
	buf := withOutput(t, LevelOff)
	Info("nope")
	Error(nil)
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
	if IsEnabled(LevelInfo) {
		t.Error("IsEnabled should be false when disabled")
	}
}

func TestPrefixAndHelpers(t *testing.T) {
	buf := withOutput(t, LevelTrace)

	State("idle", "preview")
	Tick(3)
	Command("gphoto2", []string{"--capture-movie", "--stdout"})
	GPIO("WritePin", 17, true)

	out := buf.String()
	for _, want := range []string{
		"[photobooth] ",
		"State idle -> preview",
		"Countdown: 3",
		"[EXEC] gphoto2 --capture-movie --stdout",
		"[GPIO] WritePin pin=17 value=true",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
