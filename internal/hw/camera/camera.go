package camera

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrPreviewRunning is returned by StartPreview while a preview is active.
	ErrPreviewRunning = errors.New("camera: preview already running")

	// ErrCaptureInProgress is returned when a second capture is requested
	// before the first one finished.
	ErrCaptureInProgress = errors.New("camera: capture in progress")
)

// Camera is the high-level interface used by the rest of the application.
// It represents an abstract "camera", regardless of how it's controlled
// (gphoto2 CLI, synthetic frames for development, etc.).
type Camera interface {
	// Configure applies the startup settings (image quality etc.).
	Configure(ctx context.Context) error

	// StartPreview starts the live view and returns a stream of
	// concatenated JPEG frames. The stream ends after StopPreview.
	StartPreview(ctx context.Context) (io.Reader, error)

	// StopPreview terminates the live view. It is a no-op when no preview runs.
	StopPreview() error

	// Capture takes a still and stores it at path.
	Capture(ctx context.Context, path string) error

	// Close stops the preview and releases resources (named pipe etc.).
	Close() error
}
