package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photobooth.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ---------- Load ----------

func TestLoad_EmptyFileAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	checks := []struct {
		name      string
		got, want interface{}
	}{
		{"camera.type", cfg.Camera.Type, "gphoto2"},
		{"camera.binary", cfg.Camera.Binary, "gphoto2"},
		{"camera.capture_filename", cfg.Camera.CaptureFilename, "capt0000.jpg"},
		{"preview.fps", cfg.Preview.FPS, 25},
		{"countdown.seconds", cfg.Countdown.Seconds, 3},
		{"imaging.engine", cfg.Imaging.Engine, "gm"},
		{"imaging.print_width", cfg.Imaging.PrintWidth, 2152},
		{"imaging.print_height", cfg.Imaging.PrintHeight, 1417},
		{"imaging.overlay", cfg.Imaging.Overlay, "overlay_print.png"},
		{"led.type", cfg.LED.Type, "none"},
		{"led.device_prefix", cfg.LED.DevicePrefix, "/dev/ttyACM"},
		{"printer.command", cfg.Printer.Command, "lp"},
		{"web.addr", cfg.Web.Addr, ":8080"},
		{"bridge.listen", cfg.Bridge.Listen, "127.0.0.1:3000"},
		{"bridge.max_url_bytes", cfg.Bridge.MaxURLBytes, 64},
		{"bridge.temp_file", cfg.Bridge.TempFile, "temp.jpg"},
		{"imaging.mask_scale", cfg.Imaging.MaskScale, 2.0},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	if len(cfg.Camera.Settings) != 1 || cfg.Camera.Settings[0] != "/main/capturesettings/imagequality=1" {
		t.Errorf("camera.settings = %v, want imagequality=1 default", cfg.Camera.Settings)
	}
}

func TestLoad_ExplicitValuesKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
camera:
  type: mock
  settings: []
countdown:
  seconds: 5
  tick_ms: 250
imaging:
  engine: native
  caption: "Hochzeit 2016"
led:
  type: gpio
  pin: 18
printer:
  enabled: true
  name: Canon_CP910
  max_copies: 3
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Camera.Type != "mock" {
		t.Errorf("camera.type = %q", cfg.Camera.Type)
	}
	if len(cfg.Camera.Settings) != 0 {
		t.Errorf("explicit empty settings should stay empty, got %v", cfg.Camera.Settings)
	}
	if cfg.Countdown.Seconds != 5 {
		t.Errorf("countdown.seconds = %d, want 5", cfg.Countdown.Seconds)
	}
	if cfg.CountdownTick() != 250*time.Millisecond {
		t.Errorf("CountdownTick = %v, want 250ms", cfg.CountdownTick())
	}
	if cfg.Imaging.Engine != "native" || cfg.Imaging.Caption != "Hochzeit 2016" {
		t.Errorf("imaging = %+v", cfg.Imaging)
	}
	if cfg.Printer.Name != "Canon_CP910" || cfg.Printer.MaxCopies != 3 || !cfg.Printer.Enabled {
		t.Errorf("printer = %+v", cfg.Printer)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "read config file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "camera: [unterminated")); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestParse_OverlaysAndMasks(t *testing.T) {
	cfg, err := Parse([]byte(`
imaging:
  overlay: none
  mask_scale: 1.5
  masks:
    - {file: masks/hat.png, offset_x: 120, offset_y: 40}
web:
  overlay: none
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.PrintOverlay() != "" || cfg.PreviewOverlay() != "" {
		t.Errorf("overlays = %q / %q, want both disabled", cfg.PrintOverlay(), cfg.PreviewOverlay())
	}
	if cfg.Imaging.MaskScale != 1.5 {
		t.Errorf("mask_scale = %v", cfg.Imaging.MaskScale)
	}
	want := MaskConfig{File: "masks/hat.png", OffsetX: 120, OffsetY: 40}
	if len(cfg.Imaging.Masks) != 1 || cfg.Imaging.Masks[0] != want {
		t.Errorf("masks = %+v", cfg.Imaging.Masks)
	}

	def := Default()
	if def.PrintOverlay() != "overlay_print.png" || def.PreviewOverlay() != "overlay.png" {
		t.Errorf("default overlays = %q / %q", def.PrintOverlay(), def.PreviewOverlay())
	}
}

// ---------- Validate ----------

func TestParse_RejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"unknown_camera", "camera: {type: webcam}"},
		{"unknown_engine", "imaging: {engine: vips}"},
		{"unknown_led", "led: {type: neopixel}"},
		{"gpio_led_without_pin", "led: {type: gpio}"},
		{"countdown_too_long", "countdown: {seconds: 61}"},
		{"fps_too_high", "preview: {fps: 120}"},
		{"jpeg_quality_too_high", "imaging: {jpeg_quality: 101}"},
		{"negative_button_pin", "button: {pin: -1}"},
		{"url_limit_too_high", "bridge: {max_url_bytes: 5000}"},
		{"mask_without_file", "imaging: {masks: [{offset_x: 10}]}"},
		{"mask_scale_too_high", "imaging: {mask_scale: 20}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.yaml)); err == nil {
				t.Errorf("expected validation error for %s", tc.yaml)
			}
		})
	}
}

func TestValidate_ShareLinkFitsBridge(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{"default_limit_local_host", "web: {public_base_url: 'http://booth.local:8080'}\ntweet: {bridge_addr: '127.0.0.1:3000'}", false},
		{"no_bridge_no_check", "web: {public_base_url: 'http://a-very-long-hostname.photobooth.example.org:8080'}", false},
		{"too_long_for_default", "web: {public_base_url: 'http://a-very-long-hostname.photobooth.example.org:8080'}\ntweet: {bridge_addr: '127.0.0.1:3000'}", true},
		{"raised_limit", "web: {public_base_url: 'http://a-very-long-hostname.photobooth.example.org:8080'}\ntweet: {bridge_addr: '127.0.0.1:3000'}\nbridge: {max_url_bytes: 128}", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if (err != nil) != tc.wantErr {
				t.Errorf("Parse err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

// ---------- Credentials ----------

func TestParse_CredentialsFromEnvironment(t *testing.T) {
	t.Setenv(EnvConsumerKey, "ck")
	t.Setenv(EnvConsumerSecret, "cs")
	t.Setenv(EnvAccessToken, "at")
	t.Setenv(EnvAccessTokenSecret, " ats ")

	cfg, err := Parse([]byte(`bridge: {credentials: {consumer_key: from-file}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	creds := cfg.Bridge.Credentials
	if creds.ConsumerKey != "ck" {
		t.Errorf("env should override file value, got %q", creds.ConsumerKey)
	}
	if creds.AccessTokenSecret != "ats" {
		t.Errorf("env value should be trimmed, got %q", creds.AccessTokenSecret)
	}
	if !creds.Complete() {
		t.Error("credentials should be complete")
	}
}

func TestCredentials_Incomplete(t *testing.T) {
	c := TwitterCredentials{ConsumerKey: "a", ConsumerSecret: "b", AccessToken: "c"}
	if c.Complete() {
		t.Error("missing access token secret should be incomplete")
	}
}

// ---------- Durations ----------

func TestDurations(t *testing.T) {
	cfg := Default()
	if cfg.StopTimeout() != 2*time.Second {
		t.Errorf("StopTimeout = %v", cfg.StopTimeout())
	}
	if cfg.ReviewDuration() != 0 {
		t.Errorf("ReviewDuration = %v, want 0", cfg.ReviewDuration())
	}
	if cfg.ButtonPoll() != 20*time.Millisecond || cfg.ButtonDebounce() != 50*time.Millisecond {
		t.Errorf("button timings = %v/%v", cfg.ButtonPoll(), cfg.ButtonDebounce())
	}
	if cfg.BridgeReadTimeout() != 5*time.Second || cfg.BridgeDownloadTimeout() != 30*time.Second {
		t.Errorf("bridge timings = %v/%v", cfg.BridgeReadTimeout(), cfg.BridgeDownloadTimeout())
	}
	if cfg.TweetTimeout() != 5*time.Second {
		t.Errorf("TweetTimeout = %v", cfg.TweetTimeout())
	}
}

func TestParse_ButtonEdge(t *testing.T) {
	cfg, err := Parse([]byte("button: {pin: 17, edge: true}"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Button.Pin != 17 || !cfg.Button.Edge {
		t.Errorf("button = %+v", cfg.Button)
	}
	if cfg.ButtonDebounce() != 50*time.Millisecond {
		t.Errorf("debounce default not applied: %v", cfg.ButtonDebounce())
	}
}
