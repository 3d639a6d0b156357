package main

import (
	"context"
	"fmt"
	"math"
	"time"
)

// AccelSource yields the most recent accelerometer reading without blocking.
type AccelSource interface {
	CurrentSample() (Sample, error)
}

// AxisDiffs holds the mean absolute sample-to-sample change per axis.
type AxisDiffs struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (d AxisDiffs) get(a Axis) float64 {
	switch a {
	case AxisY:
		return d.Y
	case AxisZ:
		return d.Z
	default:
		return d.X
	}
}

// CalibrationResult is the outcome of one calibration window.
type CalibrationResult struct {
	Axis    Axis
	Diffs   AxisDiffs
	Samples int // samples used
	Skipped int // non-finite or unavailable readings
}

// SelectAxis picks the axis whose values change the most between
// consecutive samples. Ties go to X, then Y, then Z.
func SelectAxis(samples []Sample) (Axis, AxisDiffs, error) {
	if len(samples) < 2 {
		return AxisX, AxisDiffs{}, fmt.Errorf("%w: got %d samples, need at least 2", ErrInsufficientData, len(samples))
	}

	var sum AxisDiffs
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1], samples[i]
		sum.X += math.Abs(cur.X - prev.X)
		sum.Y += math.Abs(cur.Y - prev.Y)
		sum.Z += math.Abs(cur.Z - prev.Z)
	}
	n := float64(len(samples) - 1)
	diffs := AxisDiffs{X: sum.X / n, Y: sum.Y / n, Z: sum.Z / n}

	// Strict comparison keeps the earlier axis on ties.
	best := AxisX
	for _, a := range []Axis{AxisY, AxisZ} {
		if diffs.get(a) > diffs.get(best) {
			best = a
		}
	}
	return best, diffs, nil
}

// Calibrator samples a source for a fixed window and selects the axis.
type Calibrator struct {
	Duration time.Duration
	Interval time.Duration

	// Clock hooks, replaced in tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewCalibrator returns a calibrator using the wall clock.
func NewCalibrator(duration, interval time.Duration) *Calibrator {
	return &Calibrator{
		Duration: duration,
		Interval: interval,
		Now:      time.Now,
		Sleep:    sleepContext,
	}
}

// Run blocks for the calibration window. The first sample is read
// immediately; sampling stops once Duration has elapsed.
func (c *Calibrator) Run(ctx context.Context, src AccelSource) (CalibrationResult, error) {
	now := c.Now
	if now == nil {
		now = time.Now
	}
	sleep := c.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var (
		samples []Sample
		skipped int
	)
	start := now()
	for now().Sub(start) < c.Duration {
		s, err := src.CurrentSample()
		switch {
		case err != nil:
			skipped++
		case !s.Finite():
			skipped++
		default:
			samples = append(samples, s)
		}

		if err := sleep(ctx, c.Interval); err != nil {
			return CalibrationResult{}, fmt.Errorf("calibration interrupted: %w", err)
		}
	}

	axis, diffs, err := SelectAxis(samples)
	if err != nil {
		return CalibrationResult{Samples: len(samples), Skipped: skipped}, err
	}
	return CalibrationResult{
		Axis:    axis,
		Diffs:   diffs,
		Samples: len(samples),
		Skipped: skipped,
	}, nil
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
