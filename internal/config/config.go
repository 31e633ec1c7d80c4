package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CameraConfig describes how to drive the camera.
// Type selects a concrete implementation ("gphoto2" or "mock").
type CameraConfig struct {
	Type            string   `yaml:"type"`             // "gphoto2" or "mock"
	Binary          string   `yaml:"binary"`           // camera CLI, default "gphoto2"
	Settings        []string `yaml:"settings"`         // --set-config values applied at startup
	CaptureFilename string   `yaml:"capture_filename"` // raw still name inside the output dir
	StopTimeoutMs   int      `yaml:"stop_timeout_ms"`  // grace period before the movie process is killed
}

// PreviewConfig controls the live MJPEG preview.
type PreviewConfig struct {
	FPS       int    `yaml:"fps"`       // max frames per second published to viewers
	FIFO      string `yaml:"fifo"`      // optional named pipe between camera and preview
	Autostart bool   `yaml:"autostart"` // start the preview at boot
	ReviewMs  int    `yaml:"review_ms"` // how long the print stays on screen, 0 = until next start
}

// CountdownConfig controls the snapshot countdown.
type CountdownConfig struct {
	Seconds int `yaml:"seconds"`
	TickMs  int `yaml:"tick_ms"`
}

// ImagingConfig describes post-processing of the captured still.
type ImagingConfig struct {
	Engine       string `yaml:"engine"`        // "gm" or "native"
	Binary       string `yaml:"binary"`        // GraphicsMagick binary, default "gm"
	PrintWidth   int    `yaml:"print_width"`   // resize target width (pixels)
	PrintHeight  int    `yaml:"print_height"`  // resize target height (pixels)
	Overlay      string `yaml:"overlay"`       // PNG composited over the print, "none" = no overlay
	OutputDir    string `yaml:"output_dir"`    // directory for raw and print files
	JPEGQuality  int    `yaml:"jpeg_quality"`  // native engine only
	Caption      string `yaml:"caption"`       // native engine only, empty = none
	ReviewWidth  int    `yaml:"review_width"`  // review frame size on the preview stream
	ReviewHeight int    `yaml:"review_height"` // review frame size on the preview stream

	Masks     []MaskConfig `yaml:"masks"`
	MaskScale float64      `yaml:"mask_scale"` // preview to print pixels, default print_width/review_width
}

// MaskConfig places a PNG over the live preview and the print. Offsets are
// preview pixels.
type MaskConfig struct {
	File    string `yaml:"file"`
	OffsetX int    `yaml:"offset_x"`
	OffsetY int    `yaml:"offset_y"`
}

// NoOverlay disables imaging.overlay or web.overlay.
const NoOverlay = "none"

// AudioConfig holds the sound cue files.
type AudioConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Player    string   `yaml:"player"`
	Args      []string `yaml:"args"`
	Countdown string   `yaml:"countdown"`
	Shutter   string   `yaml:"shutter"`
}

// LEDConfig selects the LED feedback device.
type LEDConfig struct {
	Type         string `yaml:"type"`          // "none", "serial" or "gpio"
	DevicePrefix string `yaml:"device_prefix"` // serial: probed as prefix0..prefix9
	Pin          int    `yaml:"pin"`           // gpio: lamp output pin (BCM)
}

// ButtonConfig is the optional physical snapshot button.
type ButtonConfig struct {
	Pin        int  `yaml:"pin"` // BCM pin, 0 = no button
	PollMs     int  `yaml:"poll_ms"`
	DebounceMs int  `yaml:"debounce_ms"`
	Edge       bool `yaml:"edge"` // latch falling edges instead of polling levels
}

// PrinterConfig describes printing through CUPS.
type PrinterConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Command   string `yaml:"command"` // default "lp"
	Name      string `yaml:"name"`    // CUPS destination, empty = default printer
	MaxCopies int    `yaml:"max_copies"`
}

// WebConfig configures the kiosk UI server.
type WebConfig struct {
	Addr          string `yaml:"addr"`
	Overlay       string `yaml:"overlay"`         // PNG layered over the live preview, "none" = no overlay
	Stylesheet    string `yaml:"stylesheet"`      // CSS loaded at startup
	PublicBaseURL string `yaml:"public_base_url"` // used to build photo URLs for the tweet bridge
}

// TweetConfig links the booth to a tweet bridge.
type TweetConfig struct {
	BridgeAddr string `yaml:"bridge_addr"` // empty = do not post
	TimeoutMs  int    `yaml:"timeout_ms"`
}

// TwitterCredentials are the OAuth1 user credentials of the posting account.
type TwitterCredentials struct {
	ConsumerKey       string `yaml:"consumer_key"`
	ConsumerSecret    string `yaml:"consumer_secret"`
	AccessToken       string `yaml:"access_token"`
	AccessTokenSecret string `yaml:"access_token_secret"`
}

// Complete reports whether all four credentials are set.
func (c TwitterCredentials) Complete() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != "" && c.AccessToken != "" && c.AccessTokenSecret != ""
}

// BridgeConfig configures the socket-to-Twitter bridge.
type BridgeConfig struct {
	Listen            string             `yaml:"listen"`
	MaxURLBytes       int                `yaml:"max_url_bytes"`
	ReadTimeoutMs     int                `yaml:"read_timeout_ms"`
	DownloadTimeoutMs int                `yaml:"download_timeout_ms"`
	MaxImageBytes     int64              `yaml:"max_image_bytes"`
	TempFile          string             `yaml:"temp_file"`
	Status            string             `yaml:"status"`
	DryRun            bool               `yaml:"dry_run"`
	Credentials       TwitterCredentials `yaml:"credentials"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Camera    CameraConfig    `yaml:"camera"`
	Preview   PreviewConfig   `yaml:"preview"`
	Countdown CountdownConfig `yaml:"countdown"`
	Imaging   ImagingConfig   `yaml:"imaging"`
	Audio     AudioConfig     `yaml:"audio"`
	LED       LEDConfig       `yaml:"led"`
	Button    ButtonConfig    `yaml:"button"`
	Printer   PrinterConfig   `yaml:"printer"`
	Web       WebConfig       `yaml:"web"`
	Tweet     TweetConfig     `yaml:"tweet"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
}

// Environment variables overriding the bridge credentials.
const (
	EnvConsumerKey       = "PHOTOBOOTH_TWITTER_CONSUMER_KEY"
	EnvConsumerSecret    = "PHOTOBOOTH_TWITTER_CONSUMER_SECRET"
	EnvAccessToken       = "PHOTOBOOTH_TWITTER_ACCESS_TOKEN"
	EnvAccessTokenSecret = "PHOTOBOOTH_TWITTER_ACCESS_TOKEN_SECRET"
)

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML data, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Camera.Type == "" {
		c.Camera.Type = "gphoto2"
	}
	if c.Camera.Binary == "" {
		c.Camera.Binary = "gphoto2"
	}
	if c.Camera.Settings == nil {
		c.Camera.Settings = []string{"/main/capturesettings/imagequality=1"}
	}
	if c.Camera.CaptureFilename == "" {
		c.Camera.CaptureFilename = "capt0000.jpg"
	}
	if c.Camera.StopTimeoutMs <= 0 {
		c.Camera.StopTimeoutMs = 2000
	}

	if c.Preview.FPS <= 0 {
		c.Preview.FPS = 25
	}

	if c.Countdown.Seconds <= 0 {
		c.Countdown.Seconds = 3
	}
	if c.Countdown.TickMs <= 0 {
		c.Countdown.TickMs = 1000
	}

	if c.Imaging.Engine == "" {
		c.Imaging.Engine = "gm"
	}
	if c.Imaging.Binary == "" {
		c.Imaging.Binary = "gm"
	}
	if c.Imaging.PrintWidth <= 0 {
		c.Imaging.PrintWidth = 2152
	}
	if c.Imaging.PrintHeight <= 0 {
		c.Imaging.PrintHeight = 1417
	}
	if c.Imaging.Overlay == "" {
		c.Imaging.Overlay = "overlay_print.png"
	}
	if c.Imaging.OutputDir == "" {
		c.Imaging.OutputDir = "captures"
	}
	if c.Imaging.JPEGQuality <= 0 {
		c.Imaging.JPEGQuality = 92
	}
	if c.Imaging.ReviewWidth <= 0 {
		c.Imaging.ReviewWidth = 1076
	}
	if c.Imaging.ReviewHeight <= 0 {
		c.Imaging.ReviewHeight = 708
	}
	if c.Imaging.MaskScale <= 0 {
		c.Imaging.MaskScale = float64(c.Imaging.PrintWidth) / float64(c.Imaging.ReviewWidth)
	}

	if c.Audio.Player == "" {
		c.Audio.Player = "aplay"
	}
	if c.Audio.Args == nil {
		c.Audio.Args = []string{"-q"}
	}
	if c.Audio.Countdown == "" {
		c.Audio.Countdown = "beep.wav"
	}
	if c.Audio.Shutter == "" {
		c.Audio.Shutter = "shutter.wav"
	}

	if c.LED.Type == "" {
		c.LED.Type = "none"
	}
	if c.LED.DevicePrefix == "" {
		c.LED.DevicePrefix = "/dev/ttyACM"
	}

	if c.Button.PollMs <= 0 {
		c.Button.PollMs = 20
	}
	if c.Button.DebounceMs <= 0 {
		c.Button.DebounceMs = 50
	}

	if c.Printer.Command == "" {
		c.Printer.Command = "lp"
	}
	if c.Printer.MaxCopies <= 0 {
		c.Printer.MaxCopies = 5
	}

	if c.Web.Addr == "" {
		c.Web.Addr = ":8080"
	}
	if c.Web.Overlay == "" {
		c.Web.Overlay = "overlay.png"
	}
	if c.Web.Stylesheet == "" {
		c.Web.Stylesheet = "photobooth.css"
	}

	if c.Tweet.TimeoutMs <= 0 {
		c.Tweet.TimeoutMs = 5000
	}

	if c.Bridge.Listen == "" {
		c.Bridge.Listen = "127.0.0.1:3000"
	}
	if c.Bridge.MaxURLBytes <= 0 {
		c.Bridge.MaxURLBytes = 64
	}
	if c.Bridge.ReadTimeoutMs <= 0 {
		c.Bridge.ReadTimeoutMs = 5000
	}
	if c.Bridge.DownloadTimeoutMs <= 0 {
		c.Bridge.DownloadTimeoutMs = 30000
	}
	if c.Bridge.MaxImageBytes <= 0 {
		c.Bridge.MaxImageBytes = 5 << 20 // Twitter's still image limit
	}
	if c.Bridge.TempFile == "" {
		c.Bridge.TempFile = "temp.jpg"
	}
	if c.Bridge.Status == "" {
		c.Bridge.Status = "Insert text to post here"
	}
}

func (c *Config) applyEnv(getenv func(string) string) {
	creds := &c.Bridge.Credentials
	for env, dst := range map[string]*string{
		EnvConsumerKey:       &creds.ConsumerKey,
		EnvConsumerSecret:    &creds.ConsumerSecret,
		EnvAccessToken:       &creds.AccessToken,
		EnvAccessTokenSecret: &creds.AccessTokenSecret,
	} {
		if v := strings.TrimSpace(getenv(env)); v != "" {
			*dst = v
		}
	}
}

// ShareLinkOverhead is what the booth appends to web.public_base_url for a
// tweeted photo: "/p/" and an 8 character short id.
const ShareLinkOverhead = len("/p/") + 8

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Camera.Type {
	case "gphoto2", "mock":
	default:
		return fmt.Errorf("camera.type must be gphoto2 or mock, got %q", c.Camera.Type)
	}
	switch c.Imaging.Engine {
	case "gm", "native":
	default:
		return fmt.Errorf("imaging.engine must be gm or native, got %q", c.Imaging.Engine)
	}
	switch c.LED.Type {
	case "none", "serial", "gpio":
	default:
		return fmt.Errorf("led.type must be none, serial or gpio, got %q", c.LED.Type)
	}
	if c.LED.Type == "gpio" && c.LED.Pin <= 0 {
		return fmt.Errorf("led.pin is required for led.type gpio")
	}
	if c.Countdown.Seconds > 60 {
		return fmt.Errorf("countdown.seconds must be <= 60, got %d", c.Countdown.Seconds)
	}
	if c.Preview.FPS > 60 {
		return fmt.Errorf("preview.fps must be <= 60, got %d", c.Preview.FPS)
	}
	if c.Imaging.JPEGQuality > 100 {
		return fmt.Errorf("imaging.jpeg_quality must be <= 100, got %d", c.Imaging.JPEGQuality)
	}
	for i, m := range c.Imaging.Masks {
		if m.File == "" {
			return fmt.Errorf("imaging.masks[%d].file is required", i)
		}
	}
	if c.Imaging.MaskScale > 16 {
		return fmt.Errorf("imaging.mask_scale must be <= 16, got %g", c.Imaging.MaskScale)
	}
	if c.Button.Pin < 0 {
		return fmt.Errorf("button.pin must be >= 0, got %d", c.Button.Pin)
	}
	if c.Bridge.MaxURLBytes > 4096 {
		return fmt.Errorf("bridge.max_url_bytes must be <= 4096, got %d", c.Bridge.MaxURLBytes)
	}
	if base := strings.TrimRight(c.Web.PublicBaseURL, "/"); base != "" && c.Tweet.BridgeAddr != "" {
		if n := len(base) + ShareLinkOverhead; n > c.Bridge.MaxURLBytes {
			return fmt.Errorf("web.public_base_url gives %d byte photo links, bridge.max_url_bytes is %d", n, c.Bridge.MaxURLBytes)
		}
	}
	return nil
}

// PrintOverlay returns the print overlay path, empty when disabled.
func (c *Config) PrintOverlay() string {
	if c.Imaging.Overlay == NoOverlay {
		return ""
	}
	return c.Imaging.Overlay
}

// PreviewOverlay returns the preview overlay path, empty when disabled.
func (c *Config) PreviewOverlay() string {
	if c.Web.Overlay == NoOverlay {
		return ""
	}
	return c.Web.Overlay
}

// CountdownTick returns the countdown tick interval.
func (c *Config) CountdownTick() time.Duration {
	return time.Duration(c.Countdown.TickMs) * time.Millisecond
}

// StopTimeout returns the grace period for terminating the movie process.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.Camera.StopTimeoutMs) * time.Millisecond
}

// ReviewDuration returns how long a print stays on screen (0 = until next start).
func (c *Config) ReviewDuration() time.Duration {
	return time.Duration(c.Preview.ReviewMs) * time.Millisecond
}

// ButtonPoll returns the button polling interval.
func (c *Config) ButtonPoll() time.Duration {
	return time.Duration(c.Button.PollMs) * time.Millisecond
}

// ButtonDebounce returns the button debounce time.
func (c *Config) ButtonDebounce() time.Duration {
	return time.Duration(c.Button.DebounceMs) * time.Millisecond
}

// TweetTimeout returns the timeout for handing a URL to the bridge.
func (c *Config) TweetTimeout() time.Duration {
	return time.Duration(c.Tweet.TimeoutMs) * time.Millisecond
}

// BridgeReadTimeout returns the per-connection read deadline of the bridge.
func (c *Config) BridgeReadTimeout() time.Duration {
	return time.Duration(c.Bridge.ReadTimeoutMs) * time.Millisecond
}

// BridgeDownloadTimeout returns the image download timeout of the bridge.
func (c *Config) BridgeDownloadTimeout() time.Duration {
	return time.Duration(c.Bridge.DownloadTimeoutMs) * time.Millisecond
}
