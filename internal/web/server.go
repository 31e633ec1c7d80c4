package web

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net"
	"net/http"
	"time"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
}

// NewServer creates a server for the kiosk page and API.
func NewServer(addr string, broadcaster *StatusBroadcaster, b Booth, preview http.Handler, ui UIConfig, assets Assets) *Server {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("web: failed to sub static fs: %v", err)
	}
	return &Server{
		addr:     addr,
		handlers: NewHandlers(broadcaster, b, preview, ui, assets, subFS),
	}
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	h := s.handlers
	mux := http.NewServeMux()

	mux.HandleFunc("GET /config", h.HandleConfig)
	mux.HandleFunc("GET /state", h.HandleState)
	mux.HandleFunc("POST /preview/start", h.HandlePreviewStart)
	mux.HandleFunc("POST /preview/stop", h.HandlePreviewStop)
	mux.HandleFunc("POST /preview/toggle", h.HandlePreviewToggle)
	mux.HandleFunc("POST /snap", h.HandleSnap)
	mux.HandleFunc("POST /print", h.HandlePrint)
	mux.HandleFunc("GET /preview.mjpg", h.HandlePreviewStream)
	mux.HandleFunc("GET /photos/latest", h.HandleLatestPhoto)
	mux.HandleFunc("GET /photos/{id}", h.HandlePhoto)
	mux.HandleFunc("GET /p/{id}", h.HandlePhoto)
	mux.HandleFunc("GET /overlay.png", h.HandleOverlay)
	mux.HandleFunc("GET /masks/{index}", h.HandleMask)
	mux.HandleFunc("GET /photobooth.css", h.HandleStylesheet)
	mux.HandleFunc("GET /status/stream", h.HandleStatusStream)
	mux.HandleFunc("GET /status/ws", h.HandleStatusWS)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(h.staticFS))))
	mux.HandleFunc("GET /{$}", h.ServeIndex) // exact match for root only

	return limitBody(mux)
}

// limitBody caps request bodies at maxBodyBytes.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// gracefully. Streaming clients are disconnected first.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("web server listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		s.handlers.Broadcaster.Close()
		if c, ok := s.handlers.Preview.(interface{ Close() error }); ok {
			_ = c.Close()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
