package audio

import (
	"context"
	"testing"

	"github.com/fraxinas/photobooth/internal/proc"
)

func newTestPlayer(rec *proc.Recorder, enabled bool) *Player {
	return NewPlayer(rec, Options{
		Enabled: enabled,
		Args:    []string{"-q"},
		Files: map[Cue]string{
			Countdown: "beep.wav",
			Shutter:   "shutter.wav",
		},
	})
}

func TestPlay_StartsPlayer(t *testing.T) {
	rec := &proc.Recorder{}
	p := newTestPlayer(rec, true)

	if err := p.Play(context.Background(), Countdown); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if got := rec.Commands(); len(got) != 1 || got[0] != "aplay -q beep.wav" {
		t.Errorf("commands = %v", got)
	}
}

func TestPlay_StopsPreviousCue(t *testing.T) {
	rec := &proc.Recorder{}
	p := newTestPlayer(rec, true)
	ctx := context.Background()

	_ = p.Play(ctx, Countdown)
	_ = p.Play(ctx, Shutter)

	procs := rec.Processes()
	if len(procs) != 2 {
		t.Fatalf("processes = %d, want 2", len(procs))
	}
	if !procs[0].Terminated() {
		t.Error("first cue should be stopped before the second starts")
	}
	if procs[1].Terminated() {
		t.Error("second cue should still be playing")
	}

	p.Stop()
	if !procs[1].Terminated() {
		t.Error("Stop should end the running cue")
	}
}

func TestPlay_Disabled(t *testing.T) {
	rec := &proc.Recorder{}
	p := newTestPlayer(rec, false)
	if err := p.Play(context.Background(), Shutter); err != nil {
		t.Errorf("disabled Play: %v", err)
	}
	if len(rec.Calls()) != 0 {
		t.Error("disabled player must not start processes")
	}
}

func TestPlay_UnknownCue(t *testing.T) {
	p := newTestPlayer(&proc.Recorder{}, true)
	if err := p.Play(context.Background(), Cue("fanfare")); err == nil {
		t.Error("expected error for unknown cue")
	}
}
