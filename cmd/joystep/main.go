package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

const version = "0.3.0"

func printVersion() {
	fmt.Printf("joystep v%s\n", version)
	fmt.Println("Turns Joy-Con accelerometer steps into movement key presses")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  joystep [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Reads a Joy-Con accelerometer, calibrates the axis that moves most while")
	fmt.Println("  you walk in place, and presses the last used movement key (WASD or arrows)")
	fmt.Println("  on a virtual keyboard for every detected step.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (flags override file values)")
	fmt.Println()
	fmt.Println("  -source string")
	fmt.Println("        Accelerometer source: joycon|replay (default \"joycon\")")
	fmt.Println()
	fmt.Println("  -joycon-side string")
	fmt.Println("        Which Joy-Con to use: left|right (default \"left\")")
	fmt.Println()
	fmt.Println("  -replay-file string")
	fmt.Println("        CSV trace of x,y,z samples to replay instead of a Joy-Con")
	fmt.Println()
	fmt.Println("  -threshold float")
	fmt.Printf("        Minimum per-sample change on the chosen axis (default %.2f)\n", defaultThreshold)
	fmt.Println()
	fmt.Println("  -min-interval-ms int")
	fmt.Printf("        Minimum time between steps in ms (default %d)\n", defaultMinIntervalMS)
	fmt.Println()
	fmt.Println("  -calibration-ms int")
	fmt.Printf("        Calibration window in ms (default %d)\n", defaultCalibrationMS)
	fmt.Println()
	fmt.Println("  -sample-interval-ms int")
	fmt.Printf("        Sampling period in ms (default %d)\n", defaultSampleIntervalMS)
	fmt.Println()
	fmt.Println("  -mode string")
	fmt.Println("        Actuation mode: hold|pulse (\"tile\" is accepted for pulse) (default \"hold\")")
	fmt.Println()
	fmt.Println("  -hold-timeout-ms int")
	fmt.Printf("        Hold mode: release the key this long after the last step (default %d)\n", defaultHoldTimeoutMS)
	fmt.Println()
	fmt.Println("  -pulse-ms int")
	fmt.Printf("        Pulse mode: key down time per step (default %d)\n", defaultPulseMS)
	fmt.Println()
	fmt.Println("  -layout string")
	fmt.Println("        Keys to press: wasd|arrows (default \"wasd\")")
	fmt.Println()
	fmt.Println("  -direction string")
	fmt.Println("        Direction before any movement key is pressed (default \"up\")")
	fmt.Println()
	fmt.Println("  -dry-run")
	fmt.Println("        Log key presses instead of creating a virtual keyboard")
	fmt.Println()
	fmt.Println("  -keyboard-device string")
	fmt.Println("        Read movement keys from this evdev node only (default: discover keyboards)")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Println("        Unix domain socket path for IPC (default \"/tmp/joystep.sock\")")
	fmt.Println()
	fmt.Println("  -ws-listen string")
	fmt.Println("        Step feed WebSocket listen address (default \"127.0.0.1:8765\")")
	fmt.Println()
	fmt.Println("  -mqtt-broker string")
	fmt.Println("        Publish steps to this MQTT broker (e.g. tcp://127.0.0.1:1883)")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Left Joy-Con strapped to a leg, hold mode")
	fmt.Println("  joystep")
	fmt.Println()
	fmt.Println("  # One tap per step with arrow keys")
	fmt.Println("  joystep -mode pulse -layout arrows")
	fmt.Println()
	fmt.Println("  # Try the detector on a recorded trace without touching the keyboard")
	fmt.Println("  joystep -replay-file walk.csv -dry-run -log-level debug")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Pair the Joy-Con over Bluetooth first")
	fmt.Println("  - Needs write access to /dev/uinput and read access to /dev/input/event*")
	fmt.Println("    (run as root or add user to the 'input' group)")
	fmt.Println()
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath = flag.String("config", "", "Path to YAML config file")

		source     = flag.String("source", SourceJoyCon, "Accelerometer source: joycon|replay")
		joyConSide = flag.String("joycon-side", string(JoyConLeft), "Joy-Con side: left|right")
		replayFile = flag.String("replay-file", "", "CSV trace to replay")

		threshold        = flag.Float64("threshold", defaultThreshold, "Step threshold")
		minIntervalMS    = flag.Int("min-interval-ms", defaultMinIntervalMS, "Minimum time between steps (ms)")
		calibrationMS    = flag.Int("calibration-ms", defaultCalibrationMS, "Calibration window (ms)")
		sampleIntervalMS = flag.Int("sample-interval-ms", defaultSampleIntervalMS, "Sampling period (ms)")

		mode          = flag.String("mode", string(ActuationHold), "Actuation mode: hold|pulse")
		holdTimeoutMS = flag.Int("hold-timeout-ms", defaultHoldTimeoutMS, "Hold release timeout (ms)")
		pulseMS       = flag.Int("pulse-ms", defaultPulseMS, "Pulse key down time (ms)")
		layout        = flag.String("layout", string(LayoutWASD), "Key layout: wasd|arrows")
		direction     = flag.String("direction", DirUp.String(), "Initial direction")
		dryRun        = flag.Bool("dry-run", false, "Log key presses instead of pressing keys")

		keyboardDevice = flag.String("keyboard-device", "", "Keyboard evdev node to read")

		ipcSocketPath = flag.String("ipc-socket", "/tmp/joystep.sock", "Unix domain socket path for IPC")
		wsListen      = flag.String("ws-listen", "127.0.0.1:8765", "WebSocket listen address")
		mqttBroker    = flag.String("mqtt-broker", "", "MQTT broker URL")

		logLevelStr = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		_           = flag.Bool("version", false, "Print version and exit")
		_           = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags given on the command line override the file.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	pick := func(name string) bool { return set[name] }

	var o FlagOverrides
	if pick("source") {
		o.Source = source
	}
	if pick("joycon-side") {
		o.JoyConSide = joyConSide
	}
	if pick("replay-file") {
		o.ReplayFile = replayFile
	}
	if pick("threshold") {
		o.Threshold = threshold
	}
	if pick("min-interval-ms") {
		o.MinIntervalMS = minIntervalMS
	}
	if pick("calibration-ms") {
		o.CalibrationMS = calibrationMS
	}
	if pick("sample-interval-ms") {
		o.SampleIntervalMS = sampleIntervalMS
	}
	if pick("mode") {
		o.Mode = mode
	}
	if pick("hold-timeout-ms") {
		o.HoldTimeoutMS = holdTimeoutMS
	}
	if pick("pulse-ms") {
		o.PulseMS = pulseMS
	}
	if pick("layout") {
		o.Layout = layout
	}
	if pick("direction") {
		o.DefaultDirection = direction
	}
	if pick("dry-run") {
		o.DryRun = dryRun
	}
	if pick("keyboard-device") {
		o.KeyboardDevice = keyboardDevice
	}
	if pick("ipc-socket") {
		o.IPCSocketPath = ipcSocketPath
	}
	if pick("ws-listen") {
		o.WSListenAddr = wsListen
	}
	if pick("mqtt-broker") {
		o.MQTTBroker = mqttBroker
	}
	if pick("log-level") {
		o.LogLevel = logLevelStr
	}
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(logLevel, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// closableSource is an AccelSource that may hold a device open.
type closableSource interface {
	AccelSource
	Close() error
}

type nopCloser struct{ AccelSource }

func (nopCloser) Close() error { return nil }

func openSource(ctx context.Context, cfg Config, logger *slog.Logger) (closableSource, error) {
	switch cfg.Device.Source {
	case SourceReplay:
		samples, err := LoadReplayFile(cfg.Device.ReplayFile)
		if err != nil {
			return nil, err
		}
		logger.Info("replaying trace", "file", cfg.Device.ReplayFile, "samples", len(samples), "loop", cfg.Device.ReplayLoop)
		return nopCloser{NewReplaySource(samples, cfg.SampleInterval(), cfg.Device.ReplayLoop)}, nil

	default:
		side, _ := ParseJoyConSide(cfg.Device.JoyConSide)
		return OpenJoyCon(ctx, side, msDuration(joyConReadyTimeoutMS), logger)
	}
}

func openActuator(cfg Config, logger *slog.Logger) (KeyActuator, error) {
	layout, _ := ParseKeyLayout(cfg.Actuation.Layout)
	if cfg.Actuation.DryRun {
		logger.Info("dry run: keys are logged, not pressed", "layout", layout)
		return NewLogActuator(layout, logger), nil
	}
	act, err := NewUinputActuator(ExpandPath(cfg.Actuation.UinputPath), cfg.Actuation.DeviceName, layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrActuatorFailure, err)
	}
	logger.Info("virtual keyboard created", "name", cfg.Actuation.DeviceName, "layout", layout)
	return act, nil
}

// optional wraps a component whose failure is logged instead of stopping
// the daemon.
func optional(logger *slog.Logger, name string, run func() error) func() error {
	return func() error {
		if err := run(); err != nil {
			logger.Warn(name+" stopped", "error", err)
		}
		return nil
	}
}

// run wires the components together and blocks until SIGINT/SIGTERM or a
// fatal error.
func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Debug("starting joystep", "version", version)
	logger.Debug("configuration", "config", fmt.Sprintf("%+v", cfg))

	source, err := openSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer source.Close()

	logger.Info("calibrating: move the Joy-Con as you would for steps", "duration", cfg.CalibrationDuration())
	cal, err := NewCalibrator(cfg.CalibrationDuration(), cfg.SampleInterval()).Run(ctx, source)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("calibration: %w", err)
	}
	logger.Info("calibration complete",
		"axis", cal.Axis,
		"diff_x", cal.Diffs.X,
		"diff_y", cal.Diffs.Y,
		"diff_z", cal.Diffs.Z,
		"samples", cal.Samples,
		"skipped", cal.Skipped)

	actuator, err := openActuator(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := actuator.Close(); err != nil {
			logger.Warn("closing virtual keyboard", "error", err)
		}
	}()

	initial, _ := ParseDirection(cfg.Actuation.DefaultDirection)
	register := NewDirectionRegister(initial)

	events := make(chan Event, 64)
	broadcasts := make(chan StateBroadcast, 128)

	g, gctx := errgroup.WithContext(ctx)

	// Either steering input may fail; steps keep using the last direction.
	g.Go(optional(logger, "key listener", func() error {
		return NewKeyListener(register, cfg.Actuation.DeviceName, logger).Run(gctx, cfg.Keyboard)
	}))
	g.Go(optional(logger, "IPC server", func() error {
		return NewIPCServer(ExpandPath(cfg.IPC.SocketPath), register, events, logger).Run(gctx)
	}))

	var subscribers []chan StateBroadcast

	if cfg.WS.Enabled {
		wsSrc := make(chan StateBroadcast, 64)
		subscribers = append(subscribers, wsSrc)

		srv := NewServer(logger, events, HubConfig{})
		g.Go(func() error {
			srv.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(gctx, srv.Hub(), wsSrc, logger)
			return nil
		})
		g.Go(func() error {
			return RunWSServer(gctx, cfg.WS.ListenAddr, cfg.WS.Path, srv, logger)
		})
	}

	if cfg.MQTT.Enabled {
		pub, err := NewMQTTPublisher(cfg.MQTT, logger)
		if err != nil {
			// Telemetry is optional; keep walking.
			logger.Warn("mqtt disabled", "error", err)
		} else {
			mqttSrc := make(chan StateBroadcast, 64)
			subscribers = append(subscribers, mqttSrc)
			g.Go(func() error {
				pub.Run(gctx, mqttSrc)
				return nil
			})
		}
	}

	g.Go(func() error {
		fanOutBroadcasts(gctx, broadcasts, logger, subscribers...)
		return nil
	})

	g.Go(func() error {
		total := runDaemon(gctx, source, register, actuator, events, broadcasts,
			NewDaemonState(cal), cfg.ToLoopConfig(), cfg.SampleInterval(), logger)
		logger.Info("stopped", "total_steps", total)
		return nil
	})

	logger.Info("ready",
		"source", cfg.Device.Source,
		"mode", cfg.ToLoopConfig().Actuation.Mode,
		"direction", initial,
		"ipc", cfg.IPC.SocketPath,
		"ws", cfg.WS.Enabled,
		"mqtt", cfg.MQTT.Enabled)

	return g.Wait()
}
