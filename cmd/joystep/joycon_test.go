package main

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"
)

// buildReport returns a full input report whose three IMU frames carry the
// given raw accelerometer values.
func buildReport(frames [3][3]int16) []byte {
	buf := make([]byte, 49)
	buf[0] = joyConReportFull
	for i, f := range frames {
		off := joyConIMUOffset + i*joyConIMUFrameSize
		for j, v := range f {
			binary.LittleEndian.PutUint16(buf[off+2*j:], uint16(v))
		}
	}
	return buf
}

func TestParseJoyConReport_AveragesFrames(t *testing.T) {
	buf := buildReport([3][3]int16{
		{4096, -4096, 0},
		{4096, -4096, 300},
		{4096, -4096, 600},
	})
	s, err := parseJoyConReport(buf)
	if err != nil {
		t.Fatalf("parseJoyConReport: %v", err)
	}

	want := Sample{X: 4096 * joyConAccelGPerLSB, Y: -4096 * joyConAccelGPerLSB, Z: 300 * joyConAccelGPerLSB}
	for _, c := range []struct {
		name      string
		got, want float64
	}{{"x", s.X, want.X}, {"y", s.Y, want.Y}, {"z", s.Z, want.Z}} {
		if math.Abs(c.got-c.want) > 1e-9 {
			t.Fatalf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestParseJoyConReport_Rejects(t *testing.T) {
	if _, err := parseJoyConReport(make([]byte, 10)); !errors.Is(err, ErrInvalidSample) {
		t.Fatalf("short report err = %v, want ErrInvalidSample", err)
	}
	buf := buildReport([3][3]int16{})
	buf[0] = 0x21 // subcommand reply
	if _, err := parseJoyConReport(buf); !errors.Is(err, ErrInvalidSample) {
		t.Fatalf("wrong id err = %v, want ErrInvalidSample", err)
	}
}

func TestJoyConSubcommand_Layout(t *testing.T) {
	got := joyConSubcommand(0x13, joyConSubcmdIMU, 0x01)
	want := []byte{0x01, 0x03, 0x00, 0x01, 0x40, 0x40, 0x00, 0x01, 0x40, 0x40, 0x40, 0x01}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = 0x%02x, want 0x%02x (%x)", i, got[i], want[i], got)
		}
	}
}

func TestParseJoyConSide(t *testing.T) {
	if s, err := ParseJoyConSide("Right"); err != nil || s != JoyConRight {
		t.Fatalf("ParseJoyConSide(Right) = %q, %v", s, err)
	}
	if s, _ := ParseJoyConSide("left"); s.productID() != joyConLeftProduct {
		t.Fatalf("left product id = 0x%04x", s.productID())
	}
	if _, err := ParseJoyConSide("pro"); err == nil {
		t.Fatalf("ParseJoyConSide(pro) succeeded")
	}
}

// fakeHID serves queued reports and records writes.
type fakeHID struct {
	mu      sync.Mutex
	writes  [][]byte
	reports chan []byte
	closed  chan struct{}
	once    sync.Once
}

func newFakeHID() *fakeHID {
	return &fakeHID{reports: make(chan []byte, 8), closed: make(chan struct{})}
}

func (f *fakeHID) Read(b []byte) (int, error) {
	select {
	case r, ok := <-f.reports:
		if !ok {
			return 0, io.EOF
		}
		return copy(b, r), nil
	case <-f.closed:
		return 0, errors.New("device closed")
	}
}

func (f *fakeHID) Write(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (f *fakeHID) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func TestJoyConSource_ReadsLatestSample(t *testing.T) {
	dev := newFakeHID()
	src := newJoyConSource(dev, slog.Default())

	if err := src.configure(); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if len(dev.writes) != 2 || dev.writes[0][10] != joyConSubcmdMode || dev.writes[1][10] != joyConSubcmdIMU {
		t.Fatalf("configure writes = %x", dev.writes)
	}

	if _, err := src.CurrentSample(); !errors.Is(err, ErrNoSample) {
		t.Fatalf("before first report err = %v, want ErrNoSample", err)
	}

	go src.readLoop()
	dev.reports <- []byte{0x21, 0x00} // ignored
	dev.reports <- buildReport([3][3]int16{{0, 4096, 0}, {0, 4096, 0}, {0, 4096, 0}})

	if err := src.waitReady(context.Background(), time.Second); err != nil {
		t.Fatalf("waitReady: %v", err)
	}
	s, err := src.CurrentSample()
	if err != nil {
		t.Fatalf("CurrentSample: %v", err)
	}
	if math.Abs(s.Y-4096*joyConAccelGPerLSB) > 1e-9 {
		t.Fatalf("Y = %v", s.Y)
	}

	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestJoyConSource_ReadErrorSurfaces(t *testing.T) {
	dev := newFakeHID()
	src := newJoyConSource(dev, slog.Default())
	go src.readLoop()

	close(dev.reports)
	waitUntil(t, time.Second, func() bool {
		_, err := src.CurrentSample()
		return err != nil && !errors.Is(err, ErrNoSample)
	}, "read error not surfaced")
}

func TestJoyConSource_WaitReadyTimesOut(t *testing.T) {
	src := newJoyConSource(newFakeHID(), slog.Default())
	err := src.waitReady(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("err = %v, want ErrDeviceNotFound", err)
	}
}
