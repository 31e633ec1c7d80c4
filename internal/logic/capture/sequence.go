package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/fraxinas/photobooth/internal/audio"
	"github.com/fraxinas/photobooth/internal/debug"
	"github.com/fraxinas/photobooth/internal/hw/camera"
	"github.com/fraxinas/photobooth/internal/hw/led"
	"github.com/fraxinas/photobooth/internal/imaging"
)

// Sounder plays a sound cue.
type Sounder interface {
	Play(ctx context.Context, cue audio.Cue) error
}

// Photo is one processed capture.
type Photo struct {
	ID        string    `json:"id"`
	RawPath   string    `json:"-"`
	PrintPath string    `json:"-"`
	TakenAt   time.Time `json:"taken_at"`
}

// ShortIDLen is the length of the id prefix used in shared photo links.
const ShortIDLen = 8

// ShortID returns the id prefix used in shared photo links.
func (p Photo) ShortID() string {
	if len(p.ID) <= ShortIDLen {
		return p.ID
	}
	return p.ID[:ShortIDLen]
}

// Durations records how long each step took.
type Durations struct {
	Capture   time.Duration `json:"capture"`
	Resize    time.Duration `json:"resize"`
	Composite time.Duration `json:"composite"`
	Total     time.Duration `json:"total"`
}

// Result is the outcome of a successful sequence.
type Result struct {
	Photo     Photo
	Durations Durations
}

// Params controls file names and print geometry.
type Params struct {
	OutputDir       string
	CaptureFilename string          // raw still, overwritten on every capture
	PrintWidth      int
	PrintHeight     int
	Layers          []imaging.Layer // overlay and masks, drawn in order
}

// Sequence contains the capture logic: still, resize, composite.
type Sequence struct {
	camera camera.Camera
	images imaging.Compositor
	strip  led.Strip
	sound  Sounder
	params Params
	now    func() time.Time
}

// NewSequence wires the capture steps. strip and sound may be nil.
func NewSequence(c camera.Camera, img imaging.Compositor, strip led.Strip, sound Sounder, p Params) *Sequence {
	if strip == nil {
		strip = led.Nop{}
	}
	if p.CaptureFilename == "" {
		p.CaptureFilename = "capt0000.jpg"
	}
	return &Sequence{
		camera: c,
		images: img,
		strip:  strip,
		sound:  sound,
		params: p,
		now:    time.Now,
	}
}

// Run takes one photo. The camera stops its preview before the still is
// taken. Any failed step aborts the sequence and the error names the step.
func (s *Sequence) Run(ctx context.Context) (*Result, error) {
	debug.Section("Capture")
	start := s.now()

	if err := os.MkdirAll(s.params.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("capture: output dir: %w", err)
	}

	id := uuid.NewString()
	raw := filepath.Join(s.params.OutputDir, s.params.CaptureFilename)
	printPath := filepath.Join(s.params.OutputDir, "print-"+id+".jpg")
	var d Durations

	if err := s.strip.Flash(); err != nil {
		debug.Warn("capture: led flash: %v", err)
	}
	if s.sound != nil {
		if err := s.sound.Play(ctx, audio.Shutter); err != nil {
			debug.Warn("capture: shutter sound: %v", err)
		}
	}

	debug.Step(1, "capture still")
	t := s.now()
	if err := s.camera.Capture(ctx, raw); err != nil {
		s.black()
		return nil, fmt.Errorf("capture: %w", err)
	}
	d.Capture = s.now().Sub(t)
	s.black()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	debug.Step(2, "resize")
	t = s.now()
	if err := s.images.Resize(ctx, raw, s.params.PrintWidth, s.params.PrintHeight); err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	d.Resize = s.now().Sub(t)

	debug.Step(3, "composite")
	t = s.now()
	if err := s.images.Composite(ctx, raw, printPath, s.params.Layers); err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	d.Composite = s.now().Sub(t)
	d.Total = s.now().Sub(start)

	debug.Info("Photo %s ready (%v)", id, d.Total.Round(time.Millisecond))
	return &Result{
		Photo: Photo{
			ID:        id,
			RawPath:   raw,
			PrintPath: printPath,
			TakenAt:   start,
		},
		Durations: d,
	}, nil
}

func (s *Sequence) black() {
	if err := s.strip.Black(); err != nil {
		debug.Warn("capture: led black: %v", err)
	}
}
