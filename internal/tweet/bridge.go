package tweet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fraxinas/photobooth/internal/debug"
)

// BridgeOptions configures a Bridge.
type BridgeOptions struct {
	MaxURLBytes     int           // default 64
	ReadTimeout     time.Duration // per connection, default 5s
	DownloadTimeout time.Duration // default 30s
	MaxImageBytes   int64         // default 5 MiB
	TempFile        string        // downloaded image, removed before each accept
	Status          string        // text of every post
}

// Bridge accepts one connection at a time, reads a photo URL, downloads
// the image and posts it. Each connection gets a one-line reply: "ok" or
// "error: <reason>".
type Bridge struct {
	poster Poster
	opts   BridgeOptions
	client *http.Client
}

// NewBridge returns a bridge posting through p.
func NewBridge(p Poster, opts BridgeOptions) *Bridge {
	if opts.MaxURLBytes <= 0 {
		opts.MaxURLBytes = 64
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = 30 * time.Second
	}
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = 5 << 20
	}
	return &Bridge{poster: p, opts: opts, client: &http.Client{}}
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (b *Bridge) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("bridge listen %s: %w", addr, err)
	}
	debug.Info("Tweet bridge listening on %s", ln.Addr())
	return b.Serve(ctx, ln)
}

// Serve handles connections from ln serially until ctx is cancelled.
func (b *Bridge) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		b.removeTemp()
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("bridge accept: %w", err)
		}
		b.serveConn(ctx, conn)
	}
}

func (b *Bridge) removeTemp() {
	if b.opts.TempFile == "" {
		return
	}
	if err := os.Remove(b.opts.TempFile); err != nil && !os.IsNotExist(err) {
		debug.Warn("bridge: remove %s: %v", b.opts.TempFile, err)
	}
}

func (b *Bridge) serveConn(ctx context.Context, conn net.Conn) {
	defer lingerClose(conn)

	raw, err := b.readURL(conn)
	if err == nil && raw == "" {
		return
	}
	if err == nil {
		debug.Live("bridge: %s from %s", raw, conn.RemoteAddr())
		err = b.Handle(ctx, raw)
	}

	reply := "ok\n"
	if err != nil {
		debug.Warn("bridge: %v", err)
		reply = "error: " + err.Error() + "\n"
	}
	_ = conn.SetWriteDeadline(time.Now().Add(b.opts.ReadTimeout))
	_, _ = io.WriteString(conn, reply)
}

// lingerClose half-closes conn and drains what the client still sends so
// the reply is not lost to a reset.
func lingerClose(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		_, _ = io.Copy(io.Discard, io.LimitReader(conn, 64<<10))
	}
	conn.Close()
}

// readURL reads until a newline, EOF or the read deadline.
func (b *Bridge) readURL(conn net.Conn) (string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(b.opts.ReadTimeout))
	buf := make([]byte, 0, b.opts.MaxURLBytes+1)
	chunk := make([]byte, b.opts.MaxURLBytes+1)

	for len(buf) <= b.opts.MaxURLBytes {
		n, err := conn.Read(chunk[:b.opts.MaxURLBytes+1-len(buf)])
		buf = append(buf, chunk[:n]...)
		if bytes.IndexByte(buf, '\n') >= 0 {
			break
		}
		if err != nil {
			var ne net.Error
			if errors.Is(err, io.EOF) || (errors.As(err, &ne) && ne.Timeout() && len(buf) > 0) {
				break
			}
			return "", fmt.Errorf("read url: %w", err)
		}
	}
	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		buf = buf[:i]
	}
	if len(buf) > b.opts.MaxURLBytes {
		return "", fmt.Errorf("url longer than %d bytes", b.opts.MaxURLBytes)
	}
	return strings.TrimSpace(string(buf)), nil
}

// Handle downloads rawURL and posts it.
func (b *Bridge) Handle(ctx context.Context, rawURL string) error {
	if err := validateURL(rawURL); err != nil {
		return err
	}
	image, mediaType, err := b.download(ctx, rawURL)
	if err != nil {
		return err
	}
	if b.opts.TempFile != "" {
		if err := os.WriteFile(b.opts.TempFile, image, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", b.opts.TempFile, err)
		}
	}
	id, err := b.poster.Post(ctx, b.opts.Status, image, mediaType)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	debug.Info("bridge: posted %s as %s", rawURL, id)
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", raw)
	}
	return nil
}

func (b *Bridge) download(ctx context.Context, rawURL string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.opts.DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download: %s", resp.Status)
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return nil, "", fmt.Errorf("download: content type %q is not an image", resp.Header.Get("Content-Type"))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, b.opts.MaxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("download: %w", err)
	}
	if int64(len(data)) > b.opts.MaxImageBytes {
		return nil, "", fmt.Errorf("download: image larger than %d bytes", b.opts.MaxImageBytes)
	}
	return data, mediaType, nil
}
