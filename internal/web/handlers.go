package web

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/fraxinas/photobooth/internal/booth"
	"github.com/fraxinas/photobooth/internal/debug"
	"github.com/fraxinas/photobooth/internal/logic/capture"
	"github.com/fraxinas/photobooth/internal/printer"
)

// maxBodyBytes limits every request body.
const maxBodyBytes = 1 << 20

// Booth is the controller driven by the kiosk page.
type Booth interface {
	StartPreview() error
	StopPreview() error
	Toggle() (booth.State, error)
	Snap() error
	Print(copies int) error
	Status() booth.Status
	Latest() (capture.Photo, error)
	Photo(id string) (capture.Photo, error)
}

// UIConfig is returned by GET /config for the kiosk page.
type UIConfig struct {
	CountdownSeconds int      `json:"countdown_seconds"`
	FPS              int      `json:"fps"`
	PrintEnabled     bool     `json:"print_enabled"`
	MaxCopies        int      `json:"max_copies"`
	OverlayURL       string   `json:"overlay_url"`
	StylesheetURL    string   `json:"stylesheet_url"`
	PreviewURL       string   `json:"preview_url"`
	Masks            []UIMask `json:"masks"`
}

// UIMask is a mask the page positions over the live preview. X and Y are
// preview pixels.
type UIMask struct {
	URL string `json:"url"`
	X   int    `json:"x"`
	Y   int    `json:"y"`
}

// Assets are the files served next to the embedded page.
type Assets struct {
	OverlayPath string   // PNG layered over the live preview
	MaskPaths   []string // served as /masks/{index}
	Stylesheet  []byte   // loaded at startup
}

// PrintRequest is the body of POST /print.
type PrintRequest struct {
	Copies int `json:"copies"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Booth       Booth
	Preview     http.Handler
	UI          UIConfig
	Assets      Assets
	staticFS    fs.FS
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(broadcaster *StatusBroadcaster, b Booth, preview http.Handler, ui UIConfig, assets Assets, staticFS fs.FS) *Handlers {
	if ui.OverlayURL == "" {
		ui.OverlayURL = "/overlay.png"
	}
	if ui.StylesheetURL == "" {
		ui.StylesheetURL = "/photobooth.css"
	}
	if ui.PreviewURL == "" {
		ui.PreviewURL = "/preview.mjpg"
	}
	if ui.Masks == nil {
		ui.Masks = []UIMask{}
	}
	for i := range ui.Masks {
		if ui.Masks[i].URL == "" {
			ui.Masks[i].URL = "/masks/" + strconv.Itoa(i)
		}
	}
	return &Handlers{
		Broadcaster: broadcaster,
		Booth:       b,
		Preview:     preview,
		UI:          ui,
		Assets:      assets,
		staticFS:    staticFS,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps booth errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, booth.ErrBusy),
		errors.Is(err, booth.ErrNotPreviewing),
		errors.Is(err, booth.ErrNotReviewing):
		status = http.StatusConflict
	case errors.Is(err, printer.ErrInvalidCopies):
		status = http.StatusBadRequest
	case errors.Is(err, booth.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, booth.ErrPrintDisabled),
		errors.Is(err, booth.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		debug.Warn("web: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// ServeIndex serves the kiosk page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleConfig returns the UI settings as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.UI)
}

// HandleState returns the booth status.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Booth.Status())
}

// HandlePreviewStart handles POST /preview/start.
func (h *Handlers) HandlePreviewStart(w http.ResponseWriter, r *http.Request) {
	if err := h.Booth.StartPreview(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Booth.Status())
}

// HandlePreviewStop handles POST /preview/stop.
func (h *Handlers) HandlePreviewStop(w http.ResponseWriter, r *http.Request) {
	if err := h.Booth.StopPreview(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Booth.Status())
}

// HandlePreviewToggle handles POST /preview/toggle.
func (h *Handlers) HandlePreviewToggle(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Booth.Toggle(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Booth.Status())
}

// HandleSnap handles POST /snap. The countdown runs in the background.
func (h *Handlers) HandleSnap(w http.ResponseWriter, r *http.Request) {
	if err := h.Booth.Snap(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "countdown"})
}

// HandlePrint handles POST /print with {"copies": n}.
func (h *Handlers) HandlePrint(w http.ResponseWriter, r *http.Request) {
	var req PrintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := ValidatePrint(req, h.UI.MaxCopies); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.Booth.Print(req.Copies); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "printing", "copies": req.Copies})
}

// ValidatePrint checks the requested copy count.
func ValidatePrint(req PrintRequest, maxCopies int) error {
	if req.Copies < 1 {
		return errors.New("copies must be at least 1")
	}
	if maxCopies > 0 && req.Copies > maxCopies {
		return errors.New("too many copies")
	}
	return nil
}

// HandleLatestPhoto serves the most recent print.
func (h *Handlers) HandleLatestPhoto(w http.ResponseWriter, r *http.Request) {
	p, err := h.Booth.Latest()
	if err != nil {
		writeError(w, err)
		return
	}
	servePhoto(w, r, p)
}

// HandlePhoto serves GET /photos/{id} and the short GET /p/{id}.
func (h *Handlers) HandlePhoto(w http.ResponseWriter, r *http.Request) {
	p, err := h.Booth.Photo(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	servePhoto(w, r, p)
}

func servePhoto(w http.ResponseWriter, r *http.Request, p capture.Photo) {
	f, err := os.Open(p.PrintPath)
	if err != nil {
		http.Error(w, "photo file missing", http.StatusNotFound)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, p.ID+".jpg", p.TakenAt, f)
}

// HandleOverlay serves the preview overlay PNG.
func (h *Handlers) HandleOverlay(w http.ResponseWriter, r *http.Request) {
	if h.Assets.OverlayPath == "" {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(h.Assets.OverlayPath)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "image/png")
	http.ServeContent(w, r, "overlay.png", time.Time{}, f)
}

// HandleMask serves GET /masks/{index}.
func (h *Handlers) HandleMask(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || i < 0 || i >= len(h.Assets.MaskPaths) {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(h.Assets.MaskPaths[i])
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "image/png")
	http.ServeContent(w, r, "mask.png", time.Time{}, f)
}

// HandleStylesheet serves the stylesheet loaded at startup.
func (h *Handlers) HandleStylesheet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Write(h.Assets.Stylesheet)
}

// HandlePreviewStream serves the MJPEG live view.
func (h *Handlers) HandlePreviewStream(w http.ResponseWriter, r *http.Request) {
	if h.Preview == nil {
		http.Error(w, "preview not configured", http.StatusServiceUnavailable)
		return
	}
	h.Preview.ServeHTTP(w, r)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
