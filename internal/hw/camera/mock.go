package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/fraxinas/photobooth/internal/debug"
)

// Mock is a camera that renders synthetic frames. It is used for
// development without a camera attached and in tests.
type Mock struct {
	Width, Height int
	FPS           int

	mu       sync.Mutex
	pw       *io.PipeWriter
	stop     chan struct{}
	done     chan struct{}
	captures int
}

// NewMock returns a mock camera producing width x height frames at fps.
func NewMock(width, height, fps int) *Mock {
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 424
	}
	if fps <= 0 {
		fps = 25
	}
	return &Mock{Width: width, Height: height, FPS: fps}
}

func (m *Mock) Configure(ctx context.Context) error {
	debug.Verbose("Camera [MOCK]: configured %dx%d @ %d fps", m.Width, m.Height, m.FPS)
	return ctx.Err()
}

// StartPreview streams numbered frames until StopPreview or ctx is done.
func (m *Mock) StartPreview(ctx context.Context) (io.Reader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pw != nil {
		return nil, ErrPreviewRunning
	}

	pr, pw := io.Pipe()
	m.pw = pw
	m.stop = make(chan struct{})
	m.done = make(chan struct{})

	go m.stream(ctx, pw, m.stop, m.done)
	debug.Live("Camera [MOCK]: preview started")
	return pr, nil
}

func (m *Mock) stream(ctx context.Context, pw *io.PipeWriter, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(time.Second / time.Duration(m.FPS))
	defer ticker.Stop()

	for n := 1; ; n++ {
		img := m.frame(fmt.Sprintf("LIVE %06d", n), color.RGBA{0x20, 0x30, 0x40, 0xff})
		if err := jpeg.Encode(pw, img, &jpeg.Options{Quality: 70}); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			pw.CloseWithError(ctx.Err())
			return
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

func (m *Mock) StopPreview() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	return nil
}

func (m *Mock) stopLocked() {
	if m.pw == nil {
		return
	}
	close(m.stop)
	// Closing the writer unblocks a pending Encode.
	m.pw.Close()
	<-m.done
	m.pw = nil
	debug.Live("Camera [MOCK]: preview stopped")
}

// Capture writes a synthetic still to path.
func (m *Mock) Capture(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.stopLocked()
	m.captures++
	n := m.captures
	m.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("capture still: %w", err)
	}
	img := m.frame(fmt.Sprintf("PHOTO %d", n), color.RGBA{0x80, 0x60, 0x30, 0xff})
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		f.Close()
		return fmt.Errorf("encode still: %w", err)
	}
	debug.Verbose("Camera [MOCK]: still %d written to %s", n, path)
	return f.Close()
}

// Captures returns how many stills were taken.
func (m *Mock) Captures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captures
}

func (m *Mock) Close() error {
	return m.StopPreview()
}

func (m *Mock) frame(label string, bg color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			img.SetRGBA(x, y, bg)
		}
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(10 * 64), Y: fixed.Int26_6(20 * 64)},
	}
	d.DrawString(label)
	return img
}
