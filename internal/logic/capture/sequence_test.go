package capture

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fraxinas/photobooth/internal/audio"
	"github.com/fraxinas/photobooth/internal/hw/camera"
	"github.com/fraxinas/photobooth/internal/imaging"
	"github.com/fraxinas/photobooth/internal/proc"
)

// recorder collects the order of steps across the fakes.
type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.steps = append(r.steps, s)
	r.mu.Unlock()
}

func (r *recorder) joined() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.steps, ",")
}

type fakeCamera struct {
	rec *recorder
	err error
}

func (c *fakeCamera) Configure(context.Context) error                { return nil }
func (c *fakeCamera) StartPreview(context.Context) (io.Reader, error) { return nil, nil }
func (c *fakeCamera) StopPreview() error                             { return nil }
func (c *fakeCamera) Close() error                                   { return nil }
func (c *fakeCamera) Capture(_ context.Context, path string) error {
	c.rec.add("capture")
	if c.err != nil {
		return c.err
	}
	return os.WriteFile(path, []byte("raw"), 0o644)
}

var _ camera.Camera = (*fakeCamera)(nil)

type fakeStrip struct{ rec *recorder }

func (s fakeStrip) Black() error        { s.rec.add("black"); return nil }
func (s fakeStrip) Countdown(int) error { s.rec.add("countdown"); return nil }
func (s fakeStrip) Flash() error        { s.rec.add("flash"); return nil }
func (s fakeStrip) Printer(int) error   { s.rec.add("printer"); return nil }
func (s fakeStrip) Close() error        { return nil }

type fakeSound struct{ rec *recorder }

func (f fakeSound) Play(_ context.Context, cue audio.Cue) error {
	f.rec.add("sound:" + string(cue))
	return nil
}

func newTestSequence(t *testing.T, cam camera.Camera, img imaging.Compositor, rec *recorder) (*Sequence, string) {
	t.Helper()
	dir := t.TempDir()
	seq := NewSequence(cam, img, fakeStrip{rec}, fakeSound{rec}, Params{
		OutputDir:   dir,
		PrintWidth:  2152,
		PrintHeight: 1417,
		Layers:      []imaging.Layer{{File: "overlay_print.png"}},
	})
	return seq, dir
}

func TestRun_StepsInOrder(t *testing.T) {
	rec := &recorder{}
	gm := &proc.Recorder{}
	seq, dir := newTestSequence(t, &fakeCamera{rec: rec}, imaging.NewGraphicsMagick(gm, "gm"), rec)

	res, err := seq.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got, want := rec.joined(), "flash,sound:shutter,capture,black"; got != want {
		t.Errorf("steps = %q, want %q", got, want)
	}

	raw := filepath.Join(dir, "capt0000.jpg")
	if res.Photo.RawPath != raw {
		t.Errorf("RawPath = %q, want %q", res.Photo.RawPath, raw)
	}
	if res.Photo.ID == "" || !strings.Contains(res.Photo.PrintPath, res.Photo.ID) {
		t.Errorf("print path %q should contain id %q", res.Photo.PrintPath, res.Photo.ID)
	}

	cmds := gm.Commands()
	if len(cmds) != 2 {
		t.Fatalf("gm commands = %v", cmds)
	}
	if cmds[0] != "gm mogrify -resize 2152x1417! "+raw {
		t.Errorf("resize = %q", cmds[0])
	}
	if cmds[1] != "gm composite -compose Over overlay_print.png "+raw+" "+res.Photo.PrintPath {
		t.Errorf("composite = %q", cmds[1])
	}
}

func TestRun_CaptureFailureAborts(t *testing.T) {
	rec := &recorder{}
	gm := &proc.Recorder{}
	cam := &fakeCamera{rec: rec, err: errors.New("camera busy")}
	seq, _ := newTestSequence(t, cam, imaging.NewGraphicsMagick(gm, "gm"), rec)

	if _, err := seq.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "camera busy") {
		t.Fatalf("err = %v, want camera busy", err)
	}
	if len(gm.Calls()) != 0 {
		t.Error("post-processing must not run after a failed capture")
	}
	if !strings.HasSuffix(rec.joined(), "black") {
		t.Errorf("LEDs should be switched off after a failure, steps = %q", rec.joined())
	}
}

func TestRun_CompositeFailure(t *testing.T) {
	rec := &recorder{}
	gm := &proc.Recorder{OnRun: func(c proc.Call) ([]byte, error) {
		if c.Args[0] == "composite" {
			return nil, &proc.ExitError{Command: c.String(), ExitCode: 1, Output: "unable to open overlay"}
		}
		return nil, nil
	}}
	seq, _ := newTestSequence(t, &fakeCamera{rec: rec}, imaging.NewGraphicsMagick(gm, "gm"), rec)

	_, err := seq.Run(context.Background())
	var ee *proc.ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want wrapped *proc.ExitError", err)
	}
}

func TestRun_UniquePrintPerCapture(t *testing.T) {
	rec := &recorder{}
	seq, _ := newTestSequence(t, &fakeCamera{rec: rec}, imaging.NewGraphicsMagick(&proc.Recorder{}, "gm"), rec)

	a, err := seq.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	b, err := seq.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if a.Photo.ID == b.Photo.ID || a.Photo.PrintPath == b.Photo.PrintPath {
		t.Error("each capture needs its own id and print file")
	}
	if a.Photo.RawPath != b.Photo.RawPath {
		t.Error("the raw still is overwritten on every capture")
	}
}
