package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
)

// ReplaySource plays back a recorded accelerometer trace against the wall
// clock: sample i becomes current at start + i*period.
type ReplaySource struct {
	samples []Sample
	period  time.Duration
	loop    bool

	start time.Time
	now   func() time.Time
}

// NewReplaySource starts playback immediately.
func NewReplaySource(samples []Sample, period time.Duration, loop bool) *ReplaySource {
	return &ReplaySource{
		samples: samples,
		period:  period,
		loop:    loop,
		start:   time.Now(),
		now:     time.Now,
	}
}

// LoadReplayFile reads a CSV trace of "x,y,z" rows. A header row and lines
// starting with '#' are skipped. A missing file is reported as
// ErrDeviceNotFound since it stands in for the controller.
func LoadReplayFile(path string) ([]Sample, error) {
	f, err := os.Open(ExpandPath(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: replay file %s does not exist", ErrDeviceNotFound, path)
		}
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()
	return parseReplay(f)
}

func parseReplay(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var samples []Sample
	for n := 1; ; n++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read replay csv: %w", err)
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("replay record %d: want 3 columns, got %d", n, len(rec))
		}
		// Use the last three columns so a leading timestamp column is allowed.
		rec = rec[len(rec)-3:]

		var vals [3]float64
		header := false
		for i, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				if n == 1 {
					header = true
					break
				}
				return nil, fmt.Errorf("replay record %d column %d: %w", n, i+1, err)
			}
			vals[i] = v
		}
		if header {
			continue
		}
		samples = append(samples, Sample{X: vals[0], Y: vals[1], Z: vals[2]})
	}

	if len(samples) == 0 {
		return nil, errors.New("replay file contains no samples")
	}
	return samples, nil
}

// CurrentSample returns the sample due at the current time. After the end of
// the trace it repeats the last sample, or wraps around when looping.
func (r *ReplaySource) CurrentSample() (Sample, error) {
	if len(r.samples) == 0 {
		return Sample{}, ErrNoSample
	}
	idx := 0
	if r.period > 0 {
		idx = int(r.now().Sub(r.start) / r.period)
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(r.samples) {
		if r.loop {
			idx %= len(r.samples)
		} else {
			idx = len(r.samples) - 1
		}
	}
	return r.samples[idx], nil
}
