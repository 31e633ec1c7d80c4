// Package preview turns the camera's motion-JPEG output into an HTTP
// MJPEG stream for the kiosk page.
package preview

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/mattn/go-mjpeg"

	"github.com/fraxinas/photobooth/internal/debug"
)

// ErrClosed is returned by Freeze after Close.
var ErrClosed = errors.New("preview: hub closed")

// Hub fans frames out to every connected viewer. Live frames are throttled
// to the configured rate. While frozen, live frames are dropped and the
// frozen still is shown instead (review after a capture).
type Hub struct {
	stream   *mjpeg.Stream
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	last    time.Time
	frozen  bool
	current []byte
	frames  uint64
	dropped uint64
	closed  bool
}

// NewHub creates a hub publishing at most fps frames per second.
func NewHub(fps int) *Hub {
	if fps <= 0 {
		fps = 25
	}
	interval := time.Second / time.Duration(fps)
	return &Hub{
		stream:   mjpeg.NewStreamWithInterval(interval),
		interval: interval,
		now:      time.Now,
	}
}

// Publish offers a live frame. It reports whether the frame was sent.
func (h *Hub) Publish(frame []byte) bool {
	h.mu.Lock()
	now := h.now()
	if h.closed || h.frozen || (!h.last.IsZero() && now.Sub(h.last) < h.interval) {
		h.dropped++
		h.mu.Unlock()
		return false
	}
	h.last = now
	h.frames++
	b := append([]byte(nil), frame...)
	h.current = b
	h.mu.Unlock()

	if err := h.stream.Update(b); err != nil {
		debug.Warn("preview: update stream: %v", err)
		return false
	}
	return true
}

// Freeze shows a still until Unfreeze.
func (h *Hub) Freeze(still []byte) error {
	b := append([]byte(nil), still...)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	h.frozen = true
	h.current = b
	h.mu.Unlock()
	debug.Verbose("preview: frozen on %d byte still", len(b))
	return h.stream.Update(b)
}

// Unfreeze resumes live frames.
func (h *Hub) Unfreeze() {
	h.mu.Lock()
	h.frozen = false
	h.last = time.Time{}
	h.mu.Unlock()
}

// Frozen reports whether a still is shown.
func (h *Hub) Frozen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frozen
}

// Snapshot returns a copy of the frame last sent to viewers, or nil.
func (h *Hub) Snapshot() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return nil
	}
	return append([]byte(nil), h.current...)
}

// Frames returns the number of live frames published.
func (h *Hub) Frames() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frames
}

// Dropped returns the number of live frames discarded by throttling or freeze.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// ServeHTTP streams multipart/x-mixed-replace to the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.stream.ServeHTTP(w, r)
}

// Close disconnects every viewer. Later frames are dropped.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()
	return h.stream.Close()
}
