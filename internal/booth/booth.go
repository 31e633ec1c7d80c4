// Package booth coordinates the photo booth: live preview, countdown,
// capture, review and printing.
package booth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fraxinas/photobooth/internal/audio"
	"github.com/fraxinas/photobooth/internal/debug"
	"github.com/fraxinas/photobooth/internal/hw/camera"
	"github.com/fraxinas/photobooth/internal/hw/led"
	"github.com/fraxinas/photobooth/internal/imaging"
	"github.com/fraxinas/photobooth/internal/logic/capture"
	"github.com/fraxinas/photobooth/internal/logic/countdown"
	"github.com/fraxinas/photobooth/internal/preview"
	"github.com/fraxinas/photobooth/internal/printer"
)

// State is the booth state.
type State string

const (
	StateIdle      State = "idle"
	StatePreview   State = "preview"
	StateCountdown State = "countdown"
	StateCapturing State = "capturing"
	StateReview    State = "review"
)

var (
	ErrBusy          = errors.New("booth: busy")
	ErrNotPreviewing = errors.New("booth: preview not running")
	ErrNotReviewing  = errors.New("booth: no photo under review")
	ErrPrintDisabled = errors.New("booth: printing disabled")
	ErrNotFound      = errors.New("booth: photo not found")
	ErrClosed        = errors.New("booth: closed")
)

// Notifier receives status events ({"t","l","msg"} on the web side).
type Notifier interface {
	Broadcast(level, msg string)
}

// Capturer runs the capture sequence.
type Capturer interface {
	Run(ctx context.Context) (*capture.Result, error)
}

// Printer prints a file.
type Printer interface {
	Print(ctx context.Context, path string, copies int) (string, error)
	MaxCopies() int
}

// TweetFunc hands a photo URL to the tweet bridge.
type TweetFunc func(ctx context.Context, url string) error

// Deps are the collaborators of the controller. Strip, Sound, Printer,
// Notify and Tweet may be nil.
type Deps struct {
	Camera  camera.Camera
	Hub     *preview.Hub
	Capture Capturer
	Strip   led.Strip
	Sound   capture.Sounder
	Printer Printer
	Notify  Notifier
	Tweet   TweetFunc
}

// Options are the controller's timings and sizes.
type Options struct {
	CountdownStart int
	Tick           time.Duration
	ReviewWidth    int
	ReviewHeight   int
	ReviewDuration time.Duration // 0 = stay in review until the next start
	PublicBaseURL  string        // base for photo URLs handed to Tweet
	TweetTimeout   time.Duration
	MaxRecent      int
}

// Status is a snapshot of the controller for the UI.
type Status struct {
	State     State          `json:"state"`
	Remaining int            `json:"remaining,omitempty"`
	Label     string         `json:"label,omitempty"`
	Photo     *capture.Photo `json:"photo,omitempty"`
	Printing  bool           `json:"printing"`
	CanPrint  bool           `json:"can_print"`
	MaxCopies int            `json:"max_copies,omitempty"`
	Error     string         `json:"error,omitempty"`
	Frames    uint64         `json:"frames"`
}

// Controller owns the booth state. One background goroutine runs the
// countdown and capture; all other operations return immediately.
type Controller struct {
	deps Deps
	opts Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	state     State
	remaining int
	latest    *capture.Photo
	recent    []capture.Photo
	printing  bool
	lastErr   string
	review    *time.Timer
	closed    bool
}

// New creates a controller in the idle state.
func New(ctx context.Context, deps Deps, opts Options) *Controller {
	if deps.Strip == nil {
		deps.Strip = led.Nop{}
	}
	if opts.CountdownStart < 1 {
		opts.CountdownStart = 3
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.MaxRecent <= 0 {
		opts.MaxRecent = 20
	}
	if opts.TweetTimeout <= 0 {
		opts.TweetTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Controller{
		deps:   deps,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		state:  StateIdle,
	}
}

// Label returns the countdown text for remaining.
func Label(remaining int) string {
	if remaining > 0 {
		return fmt.Sprintf("SNAP IN %d", remaining)
	}
	return "SAY CHEESE!"
}

func (c *Controller) notify(level, format string, args ...any) {
	if c.deps.Notify != nil {
		c.deps.Notify.Broadcast(level, fmt.Sprintf(format, args...))
	}
}

// setStateLocked must be called with c.mu held.
func (c *Controller) setStateLocked(to State) {
	if c.state == to {
		return
	}
	debug.State(string(c.state), string(to))
	c.state = to
	c.notify("state", "%s", to)
}

// StartPreview starts the live view. Starting from review drops the
// frozen print.
func (c *Controller) StartPreview() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startPreviewLocked()
}

func (c *Controller) startPreviewLocked() error {
	switch {
	case c.closed:
		return ErrClosed
	case c.state == StatePreview:
		return nil
	case c.state == StateCountdown || c.state == StateCapturing:
		return ErrBusy
	}
	c.stopReviewTimerLocked()

	r, err := c.deps.Camera.StartPreview(c.ctx)
	if err != nil {
		c.lastErr = err.Error()
		c.notify("error", "Preview failed: %v", err)
		return fmt.Errorf("start preview: %w", err)
	}
	c.deps.Hub.Unfreeze()
	c.lastErr = ""
	c.setStateLocked(StatePreview)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		n, err := preview.Pump(c.ctx, r, c.deps.Hub)
		debug.Live("Preview stream ended after %d frames", n)
		if err != nil && !errors.Is(err, context.Canceled) {
			debug.Warn("preview: %v", err)
			c.notify("warn", "Preview stream ended: %v", err)
		}
	}()
	return nil
}

// StopPreview stops the live view.
func (c *Controller) StopPreview() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateIdle:
		return nil
	case StateCountdown, StateCapturing:
		return ErrBusy
	}
	c.stopReviewTimerLocked()
	if err := c.deps.Camera.StopPreview(); err != nil {
		c.notify("error", "Stopping preview failed: %v", err)
		return fmt.Errorf("stop preview: %w", err)
	}
	c.deps.Hub.Unfreeze()
	c.setStateLocked(StateIdle)
	return nil
}

// Toggle switches between idle and preview, like the Start/Stop button.
func (c *Controller) Toggle() (State, error) {
	c.mu.Lock()
	running := c.state == StatePreview
	c.mu.Unlock()

	var err error
	if running {
		err = c.StopPreview()
	} else {
		err = c.StartPreview()
	}
	return c.State(), err
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snap starts the countdown. It is only accepted while the preview runs.
func (c *Controller) Snap() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return ErrClosed
	case c.state == StateCountdown || c.state == StateCapturing:
		return ErrBusy
	case c.state != StatePreview:
		return ErrNotPreviewing
	}
	c.remaining = c.opts.CountdownStart
	c.setStateLocked(StateCountdown)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runSnap()
	}()
	return nil
}

func (c *Controller) runSnap() {
	ctx := c.ctx
	if c.deps.Sound != nil {
		if err := c.deps.Sound.Play(ctx, audio.Countdown); err != nil {
			debug.Warn("countdown sound: %v", err)
		}
	}
	if err := c.deps.Strip.Countdown(c.opts.CountdownStart); err != nil {
		debug.Warn("led countdown: %v", err)
	}

	cd := countdown.New(c.opts.CountdownStart, c.opts.Tick)
	err := cd.Run(ctx, func(n int) {
		debug.Tick(n)
		c.mu.Lock()
		c.remaining = n
		c.mu.Unlock()
		c.notify("countdown", "%s", Label(n))
	})
	if err != nil {
		c.fail(fmt.Errorf("countdown: %w", err))
		return
	}

	c.mu.Lock()
	c.setStateLocked(StateCapturing)
	c.mu.Unlock()

	res, err := c.deps.Capture.Run(ctx)
	if err != nil {
		c.fail(err)
		return
	}
	c.finishCapture(res)
}

func (c *Controller) fail(err error) {
	debug.Error(err)
	_ = c.deps.Strip.Black()
	_ = c.deps.Camera.StopPreview()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err.Error()
	c.remaining = 0
	if !c.closed {
		c.notify("error", "Capture failed: %v", err)
	}
	c.setStateLocked(StateIdle)
}

func (c *Controller) finishCapture(res *capture.Result) {
	photo := res.Photo

	if still, err := imaging.Thumbnail(photo.PrintPath, c.opts.ReviewWidth, c.opts.ReviewHeight); err != nil {
		debug.Warn("review frame: %v", err)
	} else if err := c.deps.Hub.Freeze(still); err != nil {
		debug.Warn("review freeze: %v", err)
	}

	c.mu.Lock()
	c.latest = &photo
	c.recent = append([]capture.Photo{photo}, c.recent...)
	if len(c.recent) > c.opts.MaxRecent {
		c.recent = c.recent[:c.opts.MaxRecent]
	}
	c.remaining = 0
	c.lastErr = ""
	c.setStateLocked(StateReview)
	if c.opts.ReviewDuration > 0 {
		c.review = time.AfterFunc(c.opts.ReviewDuration, c.endReview)
	}
	c.mu.Unlock()

	c.notify("photo", "%s", photo.ID)
	debug.Summary(fmt.Sprintf("Photo %s (capture %v, resize %v, composite %v)",
		photo.ID, res.Durations.Capture, res.Durations.Resize, res.Durations.Composite))

	if c.deps.Tweet != nil && c.opts.PublicBaseURL != "" {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.tweet(photo)
		}()
	}
}

func (c *Controller) tweet(photo capture.Photo) {
	url := ShareURL(c.opts.PublicBaseURL, photo)
	ctx, cancel := context.WithTimeout(c.ctx, c.opts.TweetTimeout)
	defer cancel()
	if err := c.deps.Tweet(ctx, url); err != nil {
		debug.Warn("tweet %s: %v", url, err)
		c.notify("warn", "Posting photo failed: %v", err)
		return
	}
	c.notify("info", "Photo posted")
}

func (c *Controller) endReview() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.review = nil
	if c.state != StateReview || c.closed {
		return
	}
	if err := c.startPreviewLocked(); err != nil {
		debug.Warn("restart preview after review: %v", err)
	}
}

func (c *Controller) stopReviewTimerLocked() {
	if c.review != nil {
		c.review.Stop()
		c.review = nil
	}
}

// Print prints the photo under review. It returns once the job is
// submitted to the background goroutine.
func (c *Controller) Print(copies int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.deps.Printer == nil {
		return ErrPrintDisabled
	}
	if c.state != StateReview || c.latest == nil {
		return ErrNotReviewing
	}
	if limit := c.deps.Printer.MaxCopies(); copies < 1 || (limit > 0 && copies > limit) {
		return fmt.Errorf("%w: %d", printer.ErrInvalidCopies, copies)
	}
	if c.printing {
		return ErrBusy
	}
	c.printing = true
	path := c.latest.PrintPath

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.deps.Strip.Printer(copies); err != nil {
			debug.Warn("led printer: %v", err)
		}
		job, err := c.deps.Printer.Print(c.ctx, path, copies)

		c.mu.Lock()
		c.printing = false
		c.mu.Unlock()
		_ = c.deps.Strip.Black()

		if err != nil {
			debug.Error(err)
			c.notify("error", "Printing failed: %v", err)
			return
		}
		c.notify("print", "Printing %d copies (job %s)", copies, job)
	}()
	return nil
}

// Status returns a snapshot for the UI.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{
		State:    c.state,
		Printing: c.printing,
		Error:    c.lastErr,
		Frames:   c.deps.Hub.Frames(),
	}
	if c.state == StateCountdown {
		s.Remaining = c.remaining
		s.Label = Label(c.remaining)
	}
	if c.latest != nil {
		p := *c.latest
		s.Photo = &p
	}
	if c.deps.Printer != nil {
		s.CanPrint = c.state == StateReview && !c.printing
		s.MaxCopies = c.deps.Printer.MaxCopies()
	}
	return s
}

// Latest returns the most recent photo.
func (c *Controller) Latest() (capture.Photo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil {
		return capture.Photo{}, ErrNotFound
	}
	return *c.latest, nil
}

// ShareURL is the link handed to the tweet bridge. It uses the short
// /p/ route so it fits the bridge's URL limit.
func ShareURL(base string, p capture.Photo) string {
	return strings.TrimRight(base, "/") + "/p/" + p.ShortID()
}

// Photo looks up a recent photo by its id or short id.
func (c *Controller) Photo(id string) (capture.Photo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.recent {
		if p.ID == id || p.ShortID() == id {
			return p, nil
		}
	}
	return capture.Photo{}, ErrNotFound
}

// Recent returns the recent photos, newest first.
func (c *Controller) Recent() []capture.Photo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]capture.Photo(nil), c.recent...)
}

// Close cancels running work, waits for it and releases the hardware.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.stopReviewTimerLocked()
	c.mu.Unlock()

	c.cancel()
	// The pump only ends once the camera closes its stream.
	camErr := c.deps.Camera.Close()
	c.wg.Wait()

	return errors.Join(camErr, c.deps.Strip.Close(), c.deps.Hub.Close())
}
