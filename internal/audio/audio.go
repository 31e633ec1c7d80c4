// Package audio plays the booth's sound cues through an external player.
package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fraxinas/photobooth/internal/debug"
	"github.com/fraxinas/photobooth/internal/proc"
)

// Cue names a sound.
type Cue string

const (
	Countdown Cue = "countdown"
	Shutter   Cue = "shutter"
)

// Player plays one cue at a time. Starting a cue stops the previous one.
type Player struct {
	runner  proc.Runner
	command string
	args    []string
	files   map[Cue]string
	enabled bool

	mu      sync.Mutex
	current proc.Process
}

// Options configures a Player.
type Options struct {
	Enabled bool
	Command string   // default "aplay"
	Args    []string // placed before the file
	Files   map[Cue]string
}

// NewPlayer returns a player. A disabled player is silent.
func NewPlayer(r proc.Runner, opts Options) *Player {
	if opts.Command == "" {
		opts.Command = "aplay"
	}
	return &Player{
		runner:  r,
		command: opts.Command,
		args:    opts.Args,
		files:   opts.Files,
		enabled: opts.Enabled,
	}
}

// Play starts cue without waiting for it to finish.
func (p *Player) Play(ctx context.Context, cue Cue) error {
	if !p.enabled {
		return nil
	}
	file, ok := p.files[cue]
	if !ok || file == "" {
		return fmt.Errorf("audio: no file for cue %q", cue)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()

	args := append(append([]string(nil), p.args...), file)
	cmd, err := p.runner.Start(ctx, io.Discard, p.command, args...)
	if err != nil {
		return fmt.Errorf("audio: play %s: %w", cue, err)
	}
	p.current = cmd
	debug.Verbose("Audio: playing %s (%s)", cue, file)
	return nil
}

// Stop ends the running cue, if any.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	if p.current == nil {
		return
	}
	_ = p.current.Terminate(200 * time.Millisecond)
	p.current = nil
}
