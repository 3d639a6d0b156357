package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the joystep daemon.
//
// Defaults and validation live here so the rest of the code can assume a
// well-formed config.
type Config struct {
	// Accelerometer source
	Device DeviceConfig `yaml:"device"`

	// Step detection
	Detection DetectionConfig `yaml:"detection"`

	// Key actuation
	Actuation ActuationFileConfig `yaml:"actuation"`

	// Physical keyboards that steer the direction register
	Keyboard KeyboardConfig `yaml:"keyboard"`

	// IPC control socket (joystep-ctl)
	IPC IPCConfig `yaml:"ipc"`

	// WebSocket state feed
	WS WSConfig `yaml:"ws"`

	// MQTT step telemetry
	MQTT MQTTConfig `yaml:"mqtt"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type DeviceConfig struct {
	Source     string `yaml:"source"`      // "joycon" or "replay"
	JoyConSide string `yaml:"joycon_side"` // "left" or "right"
	ReplayFile string `yaml:"replay_file,omitempty"`
	ReplayLoop bool   `yaml:"replay_loop,omitempty"`
}

type DetectionConfig struct {
	Threshold        float64 `yaml:"threshold"`
	MinIntervalMS    int     `yaml:"min_interval_ms"`
	CalibrationMS    int     `yaml:"calibration_ms"`
	SampleIntervalMS int     `yaml:"sample_interval_ms"`
	Smoothing        float64 `yaml:"smoothing"`
	SmoothingWarmup  int     `yaml:"smoothing_warmup"`
	CadenceWindowMS  int     `yaml:"cadence_window_ms"`
}

// ActuationFileConfig is the YAML form of ActuationConfig plus the virtual
// keyboard settings.
type ActuationFileConfig struct {
	Mode             string `yaml:"mode"` // "hold", "pulse" or "tile"
	HoldTimeoutMS    int    `yaml:"hold_timeout_ms"`
	PulseMS          int    `yaml:"pulse_ms"`
	Layout           string `yaml:"layout"` // "wasd" or "arrows"
	DefaultDirection string `yaml:"default_direction"`
	DryRun           bool   `yaml:"dry_run"`
	UinputPath       string `yaml:"uinput_path"`
	DeviceName       string `yaml:"device_name"`
}

type KeyboardConfig struct {
	Devices []string `yaml:"devices,omitempty"` // empty: discover under /dev/input/by-id
	Watch   bool     `yaml:"watch"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type WSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
	Path       string `yaml:"path"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Source kinds
const (
	SourceJoyCon = "joycon"
	SourceReplay = "replay"
)

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go.
func DefaultConfig() Config {
	return Config{
		Device: DeviceConfig{
			Source:     SourceJoyCon,
			JoyConSide: string(JoyConLeft),
		},
		Detection: DetectionConfig{
			Threshold:        defaultThreshold,
			MinIntervalMS:    defaultMinIntervalMS,
			CalibrationMS:    defaultCalibrationMS,
			SampleIntervalMS: defaultSampleIntervalMS,
			CadenceWindowMS:  defaultCadenceWindowMS,
		},
		Actuation: ActuationFileConfig{
			Mode:             string(ActuationHold),
			HoldTimeoutMS:    defaultHoldTimeoutMS,
			PulseMS:          defaultPulseMS,
			Layout:           string(LayoutWASD),
			DefaultDirection: DirUp.String(),
			UinputPath:       "/dev/uinput",
			DeviceName:       defaultVirtualKeyboardName,
		},
		Keyboard: KeyboardConfig{
			Watch: true,
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/joystep.sock",
		},
		WS: WSConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1:8765",
			Path:       "/ws",
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			Broker:      "tcp://127.0.0.1:1883",
			ClientID:    "joystep",
			TopicPrefix: "joystep",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
// Unknown fields are rejected.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments may follow the document.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides are command line values applied on top of the loaded config.
// A nil pointer means the flag was not set.
type FlagOverrides struct {
	Source     *string
	JoyConSide *string
	ReplayFile *string

	Threshold        *float64
	MinIntervalMS    *int
	CalibrationMS    *int
	SampleIntervalMS *int

	Mode             *string
	HoldTimeoutMS    *int
	PulseMS          *int
	Layout           *string
	DefaultDirection *string
	DryRun           *bool

	KeyboardDevice *string

	IPCSocketPath *string
	WSListenAddr  *string
	MQTTBroker    *string

	LogLevel *string
}

// Apply merges the overrides into cfg. Non-nil pointers are applied even
// when they hold a zero value.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}

	if o.Source != nil {
		cfg.Device.Source = *o.Source
	}
	if o.JoyConSide != nil {
		cfg.Device.JoyConSide = *o.JoyConSide
	}
	if o.ReplayFile != nil {
		cfg.Device.ReplayFile = *o.ReplayFile
		// A replay file on the command line implies the replay source.
		if o.Source == nil && *o.ReplayFile != "" {
			cfg.Device.Source = SourceReplay
		}
	}

	if o.Threshold != nil {
		cfg.Detection.Threshold = *o.Threshold
	}
	if o.MinIntervalMS != nil {
		cfg.Detection.MinIntervalMS = *o.MinIntervalMS
	}
	if o.CalibrationMS != nil {
		cfg.Detection.CalibrationMS = *o.CalibrationMS
	}
	if o.SampleIntervalMS != nil {
		cfg.Detection.SampleIntervalMS = *o.SampleIntervalMS
	}

	if o.Mode != nil {
		cfg.Actuation.Mode = *o.Mode
	}
	if o.HoldTimeoutMS != nil {
		cfg.Actuation.HoldTimeoutMS = *o.HoldTimeoutMS
	}
	if o.PulseMS != nil {
		cfg.Actuation.PulseMS = *o.PulseMS
	}
	if o.Layout != nil {
		cfg.Actuation.Layout = *o.Layout
	}
	if o.DefaultDirection != nil {
		cfg.Actuation.DefaultDirection = *o.DefaultDirection
	}
	if o.DryRun != nil {
		cfg.Actuation.DryRun = *o.DryRun
	}

	if o.KeyboardDevice != nil {
		cfg.Keyboard.Devices = []string{*o.KeyboardDevice}
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.WSListenAddr != nil {
		cfg.WS.ListenAddr = *o.WSListenAddr
	}
	if o.MQTTBroker != nil {
		cfg.MQTT.Broker = *o.MQTTBroker
		cfg.MQTT.Enabled = *o.MQTTBroker != ""
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Device
	switch c.Device.Source {
	case SourceJoyCon:
		if _, err := ParseJoyConSide(c.Device.JoyConSide); err != nil {
			return fmt.Errorf("device.joycon_side: %w", err)
		}
	case SourceReplay:
		if c.Device.ReplayFile == "" {
			return errors.New("device.source is replay but device.replay_file is empty")
		}
	default:
		return fmt.Errorf("device.source must be %q or %q", SourceJoyCon, SourceReplay)
	}

	// Detection
	d := c.Detection
	if d.Threshold <= 0 || math.IsInf(d.Threshold, 0) || math.IsNaN(d.Threshold) {
		return errors.New("detection.threshold must be a finite number > 0")
	}
	if d.MinIntervalMS <= 0 {
		return errors.New("detection.min_interval_ms must be > 0")
	}
	if d.SampleIntervalMS <= 0 {
		return errors.New("detection.sample_interval_ms must be > 0")
	}
	if d.CalibrationMS < d.SampleIntervalMS {
		return errors.New("detection.calibration_ms must be >= detection.sample_interval_ms")
	}
	if d.Smoothing < 0 || d.Smoothing >= 1 {
		return errors.New("detection.smoothing must be in [0, 1)")
	}
	if d.SmoothingWarmup < 0 {
		return errors.New("detection.smoothing_warmup must be >= 0")
	}
	if d.CadenceWindowMS <= 0 {
		return errors.New("detection.cadence_window_ms must be > 0")
	}

	// Actuation
	a := c.Actuation
	if _, err := ParseActuationMode(a.Mode); err != nil {
		return fmt.Errorf("actuation.mode: %w", err)
	}
	if a.HoldTimeoutMS <= 0 {
		return errors.New("actuation.hold_timeout_ms must be > 0")
	}
	if a.PulseMS <= 0 {
		return errors.New("actuation.pulse_ms must be > 0")
	}
	if _, err := ParseKeyLayout(a.Layout); err != nil {
		return fmt.Errorf("actuation.layout: %w", err)
	}
	if _, err := ParseDirection(a.DefaultDirection); err != nil {
		return fmt.Errorf("actuation.default_direction: %w", err)
	}
	if !a.DryRun && a.UinputPath == "" {
		return errors.New("actuation.uinput_path must not be empty")
	}
	if a.DeviceName == "" {
		return errors.New("actuation.device_name must not be empty")
	}

	// Keyboard
	for i, dev := range c.Keyboard.Devices {
		if dev == "" {
			return fmt.Errorf("keyboard.devices[%d] is empty", i)
		}
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// WebSocket
	if c.WS.Enabled {
		if c.WS.ListenAddr == "" {
			return errors.New("ws.enabled is true but ws.listen_addr is empty")
		}
		if c.WS.Path == "" || c.WS.Path[0] != '/' {
			return errors.New("ws.path must start with /")
		}
	}

	// MQTT
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return errors.New("mqtt.enabled is true but mqtt.broker is empty")
		}
		if c.MQTT.TopicPrefix == "" {
			return errors.New("mqtt.enabled is true but mqtt.topic_prefix is empty")
		}
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// ToLoopConfig converts the file config into what the reducer uses.
// It assumes Validate has passed.
func (c *Config) ToLoopConfig() LoopConfig {
	mode, _ := ParseActuationMode(c.Actuation.Mode)
	return LoopConfig{
		Detector: DetectorConfig{
			Threshold:   c.Detection.Threshold,
			MinInterval: msDuration(c.Detection.MinIntervalMS),
		},
		Smoothing: SmoothingConfig{
			Factor: c.Detection.Smoothing,
			WarmUp: c.Detection.SmoothingWarmup,
		},
		Actuation: ActuationConfig{
			Mode:          mode,
			HoldTimeout:   msDuration(c.Actuation.HoldTimeoutMS),
			PulseDuration: msDuration(c.Actuation.PulseMS),
		},
		CadenceWindow: msDuration(c.Detection.CadenceWindowMS),
	}
}

func (c *Config) SampleInterval() time.Duration {
	return msDuration(c.Detection.SampleIntervalMS)
}

func (c *Config) CalibrationDuration() time.Duration {
	return msDuration(c.Detection.CalibrationMS)
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
