package camera

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fraxinas/photobooth/internal/debug"
	"github.com/fraxinas/photobooth/internal/proc"
)

// GPhoto2Options configures the gphoto2 CLI camera.
type GPhoto2Options struct {
	Binary      string        // default "gphoto2"
	Settings    []string      // applied with --set-config at startup
	FIFO        string        // optional named pipe for the movie stream
	StopTimeout time.Duration // grace period before the movie process is killed
}

// GPhoto2 drives a camera through the gphoto2 command line tool:
//   - live view:  gphoto2 --capture-movie --stdout
//   - still:      gphoto2 --capture-image-and-download --force-overwrite
//
// gphoto2 can only talk to the camera from one process at a time, so the
// movie process is always terminated before a still is taken.
type GPhoto2 struct {
	runner proc.Runner
	opts   GPhoto2Options

	mu        sync.Mutex
	movie     proc.Process
	pipe      *os.File // open FIFO while the preview runs
	capturing bool
}

// NewGPhoto2 creates the camera. Nothing is executed until Configure.
func NewGPhoto2(r proc.Runner, opts GPhoto2Options) *GPhoto2 {
	if opts.Binary == "" {
		opts.Binary = "gphoto2"
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 2 * time.Second
	}
	return &GPhoto2{runner: r, opts: opts}
}

// Configure runs gphoto2 --set-config for every configured setting.
func (g *GPhoto2) Configure(ctx context.Context) error {
	for _, s := range g.opts.Settings {
		debug.Verbose("Camera: set-config %s", s)
		if _, err := g.runner.Run(ctx, g.opts.Binary, "--set-config="+s); err != nil {
			return fmt.Errorf("configure camera (%s): %w", s, err)
		}
	}
	return nil
}

// StartPreview starts the movie capture process.
func (g *GPhoto2) StartPreview(ctx context.Context) (io.Reader, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.movie != nil {
		return nil, ErrPreviewRunning
	}
	if g.capturing {
		return nil, ErrCaptureInProgress
	}

	args := []string{"--capture-movie", "--stdout"}

	if g.opts.FIFO == "" {
		p, err := g.runner.Start(ctx, nil, g.opts.Binary, args...)
		if err != nil {
			return nil, fmt.Errorf("start preview: %w", err)
		}
		g.movie = p
		debug.Live("Camera: preview started")
		return p.Stdout(), nil
	}

	if err := ensureFIFO(g.opts.FIFO); err != nil {
		return nil, err
	}
	// Opening read-write never blocks on a FIFO and keeps it open for
	// both the writer (gphoto2) and the reader (the preview pump).
	f, err := os.OpenFile(g.opts.FIFO, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open preview fifo: %w", err)
	}
	p, err := g.runner.Start(ctx, f, g.opts.Binary, args...)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("start preview: %w", err)
	}
	g.movie = p
	g.pipe = f
	debug.Live("Camera: preview started (fifo %s)", g.opts.FIFO)
	return f, nil
}

// StopPreview terminates the movie process and discards unread frames.
func (g *GPhoto2) StopPreview() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopLocked()
}

func (g *GPhoto2) stopLocked() error {
	if g.movie == nil {
		return nil
	}
	err := g.movie.Terminate(g.opts.StopTimeout)
	g.movie = nil
	if g.pipe != nil {
		g.pipe.Close()
		g.pipe = nil
	}
	debug.Live("Camera: preview stopped")
	if err != nil {
		return fmt.Errorf("stop preview: %w", err)
	}
	return nil
}

// Capture takes a still and downloads it to path. A running preview is
// stopped first.
func (g *GPhoto2) Capture(ctx context.Context, path string) error {
	g.mu.Lock()
	if g.capturing {
		g.mu.Unlock()
		return ErrCaptureInProgress
	}
	g.capturing = true
	stopErr := g.stopLocked()
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.capturing = false
		g.mu.Unlock()
	}()

	if stopErr != nil {
		return stopErr
	}

	debug.Verbose("Camera: capturing still to %s", path)
	_, err := g.runner.Run(ctx, g.opts.Binary,
		"--capture-image-and-download",
		"--force-overwrite",
		"--filename", path,
	)
	if err != nil {
		return fmt.Errorf("capture still: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("capture still: %w", err)
	}
	return nil
}

// Close stops the preview and removes the FIFO.
func (g *GPhoto2) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	err := g.stopLocked()
	if g.opts.FIFO != "" {
		if rerr := os.Remove(g.opts.FIFO); rerr != nil && !os.IsNotExist(rerr) && err == nil {
			err = rerr
		}
	}
	return err
}
