package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/fraxinas/photobooth/internal/audio"
	"github.com/fraxinas/photobooth/internal/booth"
	"github.com/fraxinas/photobooth/internal/config"
	"github.com/fraxinas/photobooth/internal/debug"
	"github.com/fraxinas/photobooth/internal/hw/button"
	"github.com/fraxinas/photobooth/internal/hw/camera"
	"github.com/fraxinas/photobooth/internal/hw/gpio"
	"github.com/fraxinas/photobooth/internal/hw/led"
	"github.com/fraxinas/photobooth/internal/imaging"
	"github.com/fraxinas/photobooth/internal/logic/capture"
	"github.com/fraxinas/photobooth/internal/preview"
	"github.com/fraxinas/photobooth/internal/printer"
	"github.com/fraxinas/photobooth/internal/proc"
	"github.com/fraxinas/photobooth/internal/tweet"
	"github.com/fraxinas/photobooth/internal/web"
)

// overrides are the CLI values replacing config entries. Zero means "use config".
type overrides struct {
	Port      int
	Countdown int
	FPS       int
	Mock      bool
}

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "override the web port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "photobooth.yaml"), "path to config file")
	countdownSec := flag.Int("countdown", 0, "override countdown seconds (1-60)")
	fps := flag.Int("fps", 0, "override preview frames per second (1-60)")
	mock := flag.Bool("mock", false, "use the mock camera and mock GPIO")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	if err := validateCLIOverrides(*countdownSec, *fps); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, overrides{
		Port:      webPort.port(),
		Countdown: *countdownSec,
		FPS:       *fps,
		Mock:      *mock,
	})

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("photobooth: %v", err)
	}
}

// run wires the hardware, the booth controller and the web server, and
// blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	broadcaster := web.NewStatusBroadcaster()
	debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

	runner := &proc.Exec{}

	var gpioDriver gpio.Driver
	if needsGPIO(cfg) {
		debug.Step(1, "Initializing GPIO driver")
		debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
		g, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
		if err != nil {
			return fmt.Errorf("init GPIO: %w", err)
		}
		defer func() {
			if err := g.Close(); err != nil {
				log.Printf("closing GPIO driver failed: %v", err)
			}
		}()
		gpioDriver = g
	}

	debug.Step(2, "Initializing LED feedback")
	strip, err := newStripFromConfig(gpioDriver, cfg)
	if err != nil {
		return fmt.Errorf("init LED: %w", err)
	}
	debug.Value("LED type", cfg.LED.Type)

	debug.Step(3, "Initializing camera")
	cam, err := newCameraFromConfig(runner, cfg)
	if err != nil {
		return fmt.Errorf("init camera: %w", err)
	}
	debug.Value("Camera type", cfg.Camera.Type)
	debug.PrintStruct("Camera config", cfg.Camera)
	if err := cam.Configure(ctx); err != nil {
		_ = cam.Close()
		_ = strip.Close()
		return fmt.Errorf("configure camera: %w", err)
	}

	debug.Step(4, "Creating capture sequence")
	compositor, err := newCompositorFromConfig(runner, cfg)
	if err != nil {
		return err
	}
	debug.Value("Imaging engine", cfg.Imaging.Engine)
	player := audio.NewPlayer(runner, audio.Options{
		Enabled: cfg.Audio.Enabled,
		Command: cfg.Audio.Player,
		Args:    cfg.Audio.Args,
		Files: map[audio.Cue]string{
			audio.Countdown: cfg.Audio.Countdown,
			audio.Shutter:   cfg.Audio.Shutter,
		},
	})
	defer player.Stop()
	seq := capture.NewSequence(cam, compositor, strip, player, capture.Params{
		OutputDir:       cfg.Imaging.OutputDir,
		CaptureFilename: cfg.Camera.CaptureFilename,
		PrintWidth:      cfg.Imaging.PrintWidth,
		PrintHeight:     cfg.Imaging.PrintHeight,
		Layers:          printLayers(cfg),
	})

	debug.Step(5, "Creating booth controller")
	hub := preview.NewHub(cfg.Preview.FPS)
	ctrl := booth.New(ctx, booth.Deps{
		Camera:  cam,
		Hub:     hub,
		Capture: seq,
		Strip:   strip,
		Sound:   player,
		Printer: newPrinterFromConfig(runner, cfg),
		Notify:  broadcaster,
		Tweet:   newTweetFunc(cfg),
	}, booth.Options{
		CountdownStart: cfg.Countdown.Seconds,
		Tick:           cfg.CountdownTick(),
		ReviewWidth:    cfg.Imaging.ReviewWidth,
		ReviewHeight:   cfg.Imaging.ReviewHeight,
		ReviewDuration: cfg.ReviewDuration(),
		PublicBaseURL:  cfg.Web.PublicBaseURL,
		TweetTimeout:   cfg.TweetTimeout(),
	})
	defer func() {
		if err := ctrl.Close(); err != nil {
			log.Printf("closing booth failed: %v", err)
		}
	}()

	if cfg.Button.Pin > 0 {
		debug.Step(6, "Initializing snapshot button")
		debug.Value("Button pin", cfg.Button.Pin)
		btn, err := button.New(gpioDriver, cfg.Button.Pin, cfg.ButtonPoll(), cfg.ButtonDebounce())
		if err != nil {
			return fmt.Errorf("init button: %w", err)
		}
		if cfg.Button.Edge {
			if err := btn.UseEdges(); err != nil {
				debug.Warn("button edge detection: %v, polling levels", err)
			}
		}
		go func() {
			err := btn.Run(ctx, func() {
				if err := press(ctrl); err != nil {
					debug.Warn("button: %v", err)
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				debug.Warn("button stopped: %v", err)
			}
		}()
	}

	if cfg.Preview.Autostart {
		if err := ctrl.StartPreview(); err != nil {
			debug.Warn("autostart preview: %v", err)
		}
	}

	srv := web.NewServer(cfg.Web.Addr, broadcaster, ctrl, hub, uiConfig(cfg), loadAssets(cfg))
	debug.Section("Booth ready")
	return srv.Run(ctx)
}

// snapper is the part of the booth the push button drives.
type snapper interface {
	State() booth.State
	StartPreview() error
	Snap() error
}

// press starts the countdown, starting the preview first when needed.
func press(b snapper) error {
	if b.State() != booth.StatePreview {
		if err := b.StartPreview(); err != nil {
			return err
		}
	}
	return b.Snap()
}

func needsGPIO(cfg *config.Config) bool {
	return cfg.LED.Type == "gpio" || cfg.Button.Pin > 0
}

// printLayers is the print overlay followed by the masks, moved from
// preview to print pixels.
func printLayers(cfg *config.Config) []imaging.Layer {
	var layers []imaging.Layer
	if overlay := cfg.PrintOverlay(); overlay != "" {
		layers = append(layers, imaging.Layer{File: overlay})
	}
	s := cfg.Imaging.MaskScale
	for _, m := range cfg.Imaging.Masks {
		layers = append(layers, imaging.Layer{
			File:  m.File,
			X:     int(float64(m.OffsetX)*s + 0.5),
			Y:     int(float64(m.OffsetY)*s + 0.5),
			Scale: s,
		})
	}
	return layers
}

func uiConfig(cfg *config.Config) web.UIConfig {
	ui := web.UIConfig{
		CountdownSeconds: cfg.Countdown.Seconds,
		FPS:              cfg.Preview.FPS,
		PrintEnabled:     cfg.Printer.Enabled,
		MaxCopies:        cfg.Printer.MaxCopies,
	}
	for _, m := range cfg.Imaging.Masks {
		ui.Masks = append(ui.Masks, web.UIMask{X: m.OffsetX, Y: m.OffsetY})
	}
	return ui
}

// loadAssets reads the stylesheet once. A missing stylesheet or overlay
// only costs the styling, so it is logged and skipped.
func loadAssets(cfg *config.Config) web.Assets {
	var assets web.Assets
	if css, err := os.ReadFile(cfg.Web.Stylesheet); err != nil {
		debug.Warn("stylesheet: %v", err)
	} else {
		assets.Stylesheet = css
	}
	if overlay := cfg.PreviewOverlay(); overlay != "" {
		if _, err := os.Stat(overlay); err != nil {
			debug.Warn("preview overlay: %v", err)
		} else {
			assets.OverlayPath = overlay
		}
	}
	for _, m := range cfg.Imaging.Masks {
		if _, err := os.Stat(m.File); err != nil {
			debug.Warn("mask: %v", err)
		}
		assets.MaskPaths = append(assets.MaskPaths, m.File)
	}
	return assets
}

// validateCLIOverrides checks that non-zero CLI overrides are within valid ranges.
// Zero values are ignored (they mean "use config default").
func validateCLIOverrides(countdownSec, fps int) error {
	if countdownSec < 0 || countdownSec > 60 {
		return fmt.Errorf("countdown must be between 1 and 60, got %d", countdownSec)
	}
	if fps < 0 || fps > 60 {
		return fmt.Errorf("fps must be between 1 and 60, got %d", fps)
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero override values are applied.
func applyOverrides(cfg *config.Config, o overrides) {
	if o.Port > 0 {
		cfg.Web.Addr = fmt.Sprintf(":%d", o.Port)
	}
	if o.Countdown > 0 {
		cfg.Countdown.Seconds = o.Countdown
	}
	if o.FPS > 0 {
		cfg.Preview.FPS = o.FPS
	}
	if o.Mock {
		cfg.Camera.Type = "mock"
		cfg.Defaults.MockGPIO = true
	}
}

// webPortFlag implements flag.Value for -web: 0 = use config, -web= → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }

// newCameraFromConfig selects a camera implementation based on configuration.
func newCameraFromConfig(r proc.Runner, cfg *config.Config) (camera.Camera, error) {
	switch cfg.Camera.Type {
	case "gphoto2":
		return camera.NewGPhoto2(r, camera.GPhoto2Options{
			Binary:      cfg.Camera.Binary,
			Settings:    cfg.Camera.Settings,
			FIFO:        cfg.Preview.FIFO,
			StopTimeout: cfg.StopTimeout(),
		}), nil
	case "mock":
		return camera.NewMock(cfg.Imaging.ReviewWidth/2, cfg.Imaging.ReviewHeight/2, cfg.Preview.FPS), nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}

// newCompositorFromConfig selects the resize/composite engine.
func newCompositorFromConfig(r proc.Runner, cfg *config.Config) (imaging.Compositor, error) {
	switch cfg.Imaging.Engine {
	case "gm":
		return imaging.NewGraphicsMagick(r, cfg.Imaging.Binary), nil
	case "native":
		return imaging.NewNative(cfg.Imaging.JPEGQuality, cfg.Imaging.Caption), nil
	default:
		return nil, fmt.Errorf("unsupported imaging engine: %s", cfg.Imaging.Engine)
	}
}

// newStripFromConfig selects the LED feedback device.
func newStripFromConfig(g gpio.Driver, cfg *config.Config) (led.Strip, error) {
	switch cfg.LED.Type {
	case "none":
		return led.Nop{}, nil
	case "serial":
		return led.OpenSerial(cfg.LED.DevicePrefix)
	case "gpio":
		if g == nil {
			return nil, errors.New("gpio lamp needs a GPIO driver")
		}
		return led.NewLamp(g, cfg.LED.Pin)
	default:
		return nil, fmt.Errorf("unsupported led type: %s", cfg.LED.Type)
	}
}

// newPrinterFromConfig returns nil when printing is disabled.
func newPrinterFromConfig(r proc.Runner, cfg *config.Config) booth.Printer {
	if !cfg.Printer.Enabled {
		return nil
	}
	return printer.New(r, cfg.Printer.Command, cfg.Printer.Name, cfg.Printer.MaxCopies)
}

// newTweetFunc hands photo URLs to the bridge; nil when no bridge is set.
func newTweetFunc(cfg *config.Config) booth.TweetFunc {
	addr := cfg.Tweet.BridgeAddr
	if addr == "" {
		return nil
	}
	return func(ctx context.Context, url string) error {
		return tweet.Send(ctx, addr, url)
	}
}
