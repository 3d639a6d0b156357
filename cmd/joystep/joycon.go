package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/karalabe/hid"
)

// Nintendo Joy-Con HID identifiers
const (
	joyConVendorID     = 0x057E
	joyConLeftProduct  = 0x2006
	joyConRightProduct = 0x2007
)

// Joy-Con report layout
const (
	joyConReportFull    = 0x30 // standard full input report (buttons + IMU)
	joyConReportSubcmd  = 0x01 // output report: rumble + subcommand
	joyConSubcmdMode    = 0x03 // set input report mode
	joyConSubcmdIMU     = 0x40 // enable/disable IMU
	joyConIMUOffset     = 13
	joyConIMUFrameSize  = 12
	joyConIMUFrames     = 3
	joyConMinReportSize = joyConIMUOffset + joyConIMUFrames*joyConIMUFrameSize

	// Default accelerometer range is +/-8G.
	joyConAccelGPerLSB = 0.000244
)

// neutral rumble payload sent with every subcommand
var joyConNeutralRumble = [8]byte{0x00, 0x01, 0x40, 0x40, 0x00, 0x01, 0x40, 0x40}

// JoyConSide selects which Joy-Con to open.
type JoyConSide string

const (
	JoyConLeft  JoyConSide = "left"
	JoyConRight JoyConSide = "right"
)

// ParseJoyConSide accepts "left" or "right".
func ParseJoyConSide(s string) (JoyConSide, error) {
	switch JoyConSide(strings.ToLower(strings.TrimSpace(s))) {
	case JoyConLeft:
		return JoyConLeft, nil
	case JoyConRight:
		return JoyConRight, nil
	default:
		return "", fmt.Errorf("invalid joy-con side: %q (must be left or right)", s)
	}
}

func (s JoyConSide) productID() uint16 {
	if s == JoyConRight {
		return joyConRightProduct
	}
	return joyConLeftProduct
}

// parseJoyConReport extracts one accelerometer sample from a full input
// report. The three IMU frames in a report are averaged.
func parseJoyConReport(buf []byte) (Sample, error) {
	if len(buf) < joyConMinReportSize {
		return Sample{}, fmt.Errorf("%w: report too short (%d bytes)", ErrInvalidSample, len(buf))
	}
	if buf[0] != joyConReportFull {
		return Sample{}, fmt.Errorf("%w: unexpected report id 0x%02x", ErrInvalidSample, buf[0])
	}

	var sx, sy, sz float64
	for i := 0; i < joyConIMUFrames; i++ {
		off := joyConIMUOffset + i*joyConIMUFrameSize
		sx += float64(int16(binary.LittleEndian.Uint16(buf[off : off+2])))
		sy += float64(int16(binary.LittleEndian.Uint16(buf[off+2 : off+4])))
		sz += float64(int16(binary.LittleEndian.Uint16(buf[off+4 : off+6])))
	}
	scale := joyConAccelGPerLSB / joyConIMUFrames
	return Sample{X: sx * scale, Y: sy * scale, Z: sz * scale}, nil
}

// joyConSubcommand builds an output report carrying one subcommand.
func joyConSubcommand(counter byte, subcmd byte, args ...byte) []byte {
	buf := make([]byte, 11+len(args))
	buf[0] = joyConReportSubcmd
	buf[1] = counter & 0x0F
	copy(buf[2:10], joyConNeutralRumble[:])
	buf[10] = subcmd
	copy(buf[11:], args)
	return buf
}

// hidDevice is the part of *hid.Device the source uses.
type hidDevice interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error
}

// JoyConSource reads accelerometer data from a Joy-Con over HID.
//
// A reader goroutine keeps the latest sample; CurrentSample never blocks.
type JoyConSource struct {
	dev    hidDevice
	logger *slog.Logger

	mu      sync.RWMutex
	latest  Sample
	have    bool
	readErr error

	counter byte
	ready   chan struct{}
	done    chan struct{}
	once    sync.Once
}

// OpenJoyCon finds and configures a Joy-Con, starts the reader, and waits
// up to readyTimeout for the first IMU report.
func OpenJoyCon(ctx context.Context, side JoyConSide, readyTimeout time.Duration, logger *slog.Logger) (*JoyConSource, error) {
	if !hid.Supported() {
		return nil, fmt.Errorf("%w: HID not supported on this platform", ErrDeviceNotFound)
	}

	infos := hid.Enumerate(joyConVendorID, side.productID())
	if len(infos) == 0 {
		return nil, fmt.Errorf("%w: no %s Joy-Con detected, pair it first", ErrDeviceNotFound, side)
	}
	info := infos[0]
	logger.Info("joy-con found", "side", side, "path", info.Path, "serial", info.Serial, "product", info.Product)

	dev, err := info.Open()
	if err != nil {
		return nil, fmt.Errorf("open joy-con %s: %w", info.Path, err)
	}

	src := newJoyConSource(hidHandle{dev}, logger)
	if err := src.configure(); err != nil {
		_ = src.dev.Close()
		return nil, err
	}

	go src.readLoop()

	if err := src.waitReady(ctx, readyTimeout); err != nil {
		_ = src.Close()
		return nil, err
	}
	return src, nil
}

func newJoyConSource(dev hidDevice, logger *slog.Logger) *JoyConSource {
	return &JoyConSource{
		dev:    dev,
		logger: logger,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// configure switches the controller to full reports and enables the IMU.
func (j *JoyConSource) configure() error {
	steps := []struct {
		name   string
		subcmd byte
		arg    byte
	}{
		{"set input report mode", joyConSubcmdMode, joyConReportFull},
		{"enable imu", joyConSubcmdIMU, 0x01},
	}
	for _, s := range steps {
		if _, err := j.dev.Write(joyConSubcommand(j.counter, s.subcmd, s.arg)); err != nil {
			return fmt.Errorf("joy-con %s: %w", s.name, err)
		}
		j.counter++
		// The controller needs a moment between subcommands.
		time.Sleep(20 * time.Millisecond)
	}
	return nil
}

func (j *JoyConSource) readLoop() {
	buf := make([]byte, 64)
	for {
		select {
		case <-j.done:
			return
		default:
		}

		n, err := j.dev.Read(buf)
		if err != nil {
			j.mu.Lock()
			j.readErr = err
			j.mu.Unlock()
			select {
			case <-j.done:
			default:
				j.logger.Error("joy-con read failed", "error", err)
			}
			return
		}

		s, err := parseJoyConReport(buf[:n])
		if err != nil {
			// Subcommand replies and other report types are expected here.
			continue
		}

		j.mu.Lock()
		j.latest = s
		first := !j.have
		j.have = true
		j.mu.Unlock()

		if first {
			close(j.ready)
		}
	}
}

func (j *JoyConSource) waitReady(ctx context.Context, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-j.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return fmt.Errorf("%w: no IMU report within %s", ErrDeviceNotFound, timeout)
	}
}

// CurrentSample returns the latest reading.
func (j *JoyConSource) CurrentSample() (Sample, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.readErr != nil {
		return Sample{}, fmt.Errorf("joy-con disconnected: %w", j.readErr)
	}
	if !j.have {
		return Sample{}, ErrNoSample
	}
	return j.latest, nil
}

// Close stops the reader and closes the device. Safe to call twice.
func (j *JoyConSource) Close() error {
	var err error
	j.once.Do(func() {
		close(j.done)
		err = j.dev.Close()
	})
	return err
}

// hidHandle adapts *hid.Device to hidDevice.
type hidHandle struct {
	*hid.Device
}

func (h hidHandle) Close() error {
	h.Device.Close()
	return nil
}
