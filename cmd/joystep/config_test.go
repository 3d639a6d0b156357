package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	lc := cfg.ToLoopConfig()
	if lc.Detector.Threshold != 0.04 {
		t.Fatalf("threshold = %v, want 0.04", lc.Detector.Threshold)
	}
	if lc.Detector.MinInterval != 200*time.Millisecond {
		t.Fatalf("min interval = %v, want 200ms", lc.Detector.MinInterval)
	}
	if lc.Actuation.Mode != ActuationHold {
		t.Fatalf("mode = %q, want hold", lc.Actuation.Mode)
	}
	if lc.Actuation.HoldTimeout != 400*time.Millisecond || lc.Actuation.PulseDuration != 250*time.Millisecond {
		t.Fatalf("actuation timings = %+v", lc.Actuation)
	}
	if cfg.CalibrationDuration() != 3*time.Second || cfg.SampleInterval() != 50*time.Millisecond {
		t.Fatalf("calibration=%v sample=%v", cfg.CalibrationDuration(), cfg.SampleInterval())
	}
	if cfg.Actuation.DefaultDirection != "up" {
		t.Fatalf("default direction = %q, want up", cfg.Actuation.DefaultDirection)
	}
}

func TestParseConfig_OverridesDefaults(t *testing.T) {
	cfg, err := parseConfig([]byte(`
detection:
  threshold: 0.1
  min_interval_ms: 300
actuation:
  mode: tile
  layout: arrows
mqtt:
  enabled: true
  broker: tcp://broker:1883
`))
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Detection.Threshold != 0.1 || cfg.Detection.MinIntervalMS != 300 {
		t.Fatalf("detection = %+v", cfg.Detection)
	}
	// Untouched fields keep their defaults.
	if cfg.Detection.SampleIntervalMS != 50 || cfg.IPC.SocketPath != "/tmp/joystep.sock" {
		t.Fatalf("defaults lost: %+v %+v", cfg.Detection, cfg.IPC)
	}
	if cfg.ToLoopConfig().Actuation.Mode != ActuationPulse {
		t.Fatalf("tile did not map to pulse")
	}
}

func TestParseConfig_RejectsUnknownFields(t *testing.T) {
	_, err := parseConfig([]byte("detection:\n  treshold: 0.1\n"))
	if err == nil {
		t.Fatalf("expected error for unknown field")
	}
	if !strings.Contains(err.Error(), "treshold") {
		t.Fatalf("error %q does not name the field", err)
	}
}

func TestParseConfig_RejectsTrailingDocument(t *testing.T) {
	if _, err := parseConfig([]byte("logging:\n  level: debug\n---\nlogging:\n  level: info\n")); err == nil {
		t.Fatalf("expected error for trailing document")
	}
	if _, err := parseConfig([]byte("---\nlogging:\n  level: debug\n---\n{}\n")); err == nil {
		t.Fatalf("expected error for empty trailing document")
	}
}

func TestParseConfig_TrailingCommentsAccepted(t *testing.T) {
	cfg, err := parseConfig([]byte("logging:\n  level: debug\n# end of file\n"))
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "joystep.yaml")
	if err := os.WriteFile(path, []byte("device:\n  joycon_side: right\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Device.JoyConSide != "right" {
		t.Fatalf("joycon_side = %q, want right", cfg.Device.JoyConSide)
	}

	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestFlagOverrides_Apply(t *testing.T) {
	replay := "/tmp/walk.csv"
	threshold := 0.2
	broker := "tcp://10.0.0.2:1883"
	dryRun := false
	kb := "/dev/input/event3"

	cfg := DefaultConfig()
	cfg.Actuation.DryRun = true
	FlagOverrides{
		ReplayFile:     &replay,
		Threshold:      &threshold,
		MQTTBroker:     &broker,
		DryRun:         &dryRun,
		KeyboardDevice: &kb,
	}.Apply(&cfg)

	if cfg.Device.Source != SourceReplay || cfg.Device.ReplayFile != replay {
		t.Fatalf("device = %+v, want replay source", cfg.Device)
	}
	if cfg.Detection.Threshold != 0.2 {
		t.Fatalf("threshold = %v", cfg.Detection.Threshold)
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Broker != broker {
		t.Fatalf("mqtt = %+v, want enabled", cfg.MQTT)
	}
	if cfg.Actuation.DryRun {
		t.Fatalf("explicit false override not applied")
	}
	if len(cfg.Keyboard.Devices) != 1 || cfg.Keyboard.Devices[0] != kb {
		t.Fatalf("keyboard devices = %v", cfg.Keyboard.Devices)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestConfig_ValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero threshold", func(c *Config) { c.Detection.Threshold = 0 }, "detection.threshold"},
		{"zero min interval", func(c *Config) { c.Detection.MinIntervalMS = 0 }, "detection.min_interval_ms"},
		{"calibration shorter than sample", func(c *Config) { c.Detection.CalibrationMS = 10 }, "detection.calibration_ms"},
		{"smoothing one", func(c *Config) { c.Detection.Smoothing = 1 }, "detection.smoothing"},
		{"bad mode", func(c *Config) { c.Actuation.Mode = "toggle" }, "actuation.mode"},
		{"bad layout", func(c *Config) { c.Actuation.Layout = "qwerty" }, "actuation.layout"},
		{"bad direction", func(c *Config) { c.Actuation.DefaultDirection = "none" }, "actuation.default_direction"},
		{"bad side", func(c *Config) { c.Device.JoyConSide = "middle" }, "device.joycon_side"},
		{"replay without file", func(c *Config) { c.Device.Source = SourceReplay }, "replay_file"},
		{"unknown source", func(c *Config) { c.Device.Source = "wiimote" }, "device.source"},
		{"ws path", func(c *Config) { c.WS.Path = "ws" }, "ws.path"},
		{"mqtt without broker", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker = "" }, "mqtt.broker"},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandPath("~/walk.csv"); got != filepath.Join(home, "walk.csv") {
		t.Fatalf("ExpandPath = %q", got)
	}
	if got := ExpandPath("/abs/walk.csv"); got != "/abs/walk.csv" {
		t.Fatalf("ExpandPath changed an absolute path: %q", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	if l, err := parseLogLevel("WARNING"); err != nil || l != LogLevelWarn {
		t.Fatalf("parseLogLevel(WARNING) = %q, %v", l, err)
	}
	if _, err := parseLogLevel("trace"); err == nil {
		t.Fatalf("parseLogLevel(trace) succeeded")
	}
}
