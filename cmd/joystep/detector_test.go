package main

import (
	"errors"
	"math"
	"testing"
	"time"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

// runDetector feeds values sampled every intervalMS and returns the steps.
func runDetector(t *testing.T, values []float64, intervalMS int, cfg DetectorConfig) (DetectorState, []StepEvent) {
	t.Helper()
	s := NewDetectorState()
	var steps []StepEvent
	for i, v := range values {
		var step *StepEvent
		var err error
		s, step, err = DetectStep(s, v, at(i*intervalMS), cfg)
		if err != nil {
			t.Fatalf("sample %d: unexpected error: %v", i, err)
		}
		if step != nil {
			steps = append(steps, *step)
		}
	}
	return s, steps
}

func TestDetectStep_ConstantStreamNoSteps(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = 0.98
	}
	s, steps := runDetector(t, values, 50, DetectorConfig{Threshold: 0.04, MinInterval: 200 * time.Millisecond})
	if len(steps) != 0 {
		t.Fatalf("got %d steps, want 0", len(steps))
	}
	if s.Count != 0 {
		t.Fatalf("Count = %d, want 0", s.Count)
	}
}

func TestDetectStep_SinglePulseOneStep(t *testing.T) {
	// One jump, then flat.
	values := []float64{0, 0, 0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0}
	_, steps := runDetector(t, values, 50, DetectorConfig{Threshold: 0.1, MinInterval: 200 * time.Millisecond})
	if len(steps) != 1 {
		t.Fatalf("got %d steps, want 1", len(steps))
	}
	if steps[0].Seq != 1 {
		t.Fatalf("Seq = %d, want 1", steps[0].Seq)
	}
	if !steps[0].At.Equal(at(150)) {
		t.Fatalf("step at %v, want %v", steps[0].At, at(150))
	}
	if math.Abs(steps[0].Diff-1.0) > 1e-9 {
		t.Fatalf("Diff = %v, want 1.0", steps[0].Diff)
	}
}

func TestDetectStep_RegressionScenario(t *testing.T) {
	values := []float64{0.0, 0.3, 0.05, 0.02, 0.35, 0.01}
	s, steps := runDetector(t, values, 50, DetectorConfig{Threshold: 0.1, MinInterval: 200 * time.Millisecond})

	if len(steps) != 1 {
		t.Fatalf("got %d steps, want exactly 1", len(steps))
	}
	if !steps[0].At.Equal(at(50)) {
		t.Fatalf("step at %v, want t=50ms", steps[0].At)
	}
	// t=200 is inside the refractory period, t=250 is exactly on it.
	if s.Count != 1 {
		t.Fatalf("Count = %d, want 1", s.Count)
	}
}

func TestDetectStep_StepsNeverCloserThanMinInterval(t *testing.T) {
	// Alternating large swings with a quiet sample between each, so the
	// detector is always re-armed and only the refractory period limits it.
	var values []float64
	for i := 0; i < 60; i++ {
		if i%3 == 0 {
			values = append(values, 0)
		} else {
			values = append(values, 1)
		}
	}
	minInterval := 200 * time.Millisecond
	_, steps := runDetector(t, values, 50, DetectorConfig{Threshold: 0.1, MinInterval: minInterval})

	if len(steps) < 2 {
		t.Fatalf("got %d steps, want several", len(steps))
	}
	for i := 1; i < len(steps); i++ {
		gap := steps[i].At.Sub(steps[i-1].At)
		if gap <= minInterval {
			t.Fatalf("steps %d and %d are %v apart, want > %v", i-1, i, gap, minInterval)
		}
	}
}

func TestDetectStep_FirstSampleOnlySetsPrevious(t *testing.T) {
	cfg := DetectorConfig{Threshold: 0.1, MinInterval: 200 * time.Millisecond}
	s, step, err := DetectStep(NewDetectorState(), 5.0, at(0), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step != nil {
		t.Fatalf("first sample must not fire")
	}
	if !s.HasPrevious || s.Previous != 5.0 {
		t.Fatalf("Previous = %v (has=%v), want 5.0", s.Previous, s.HasPrevious)
	}
}

func TestDetectStep_DisarmedUntilBelowThreshold(t *testing.T) {
	cfg := DetectorConfig{Threshold: 0.1, MinInterval: 10 * time.Millisecond}
	// 0 -> 1 fires, 1 -> 0 (diff 1) is long after the refractory period but
	// the detector is still disarmed.
	values := []float64{0, 1, 0, 0, 1}
	_, steps := runDetector(t, values, 50, cfg)
	if len(steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(steps))
	}
	if !steps[1].At.Equal(at(200)) {
		t.Fatalf("second step at %v, want t=200ms", steps[1].At)
	}
}

func TestDetectStep_EqualToThresholdNeitherFiresNorArms(t *testing.T) {
	cfg := DetectorConfig{Threshold: 0.5, MinInterval: 10 * time.Millisecond}
	s := NewDetectorState()
	s, _, _ = DetectStep(s, 0, at(0), cfg)
	s, step, _ := DetectStep(s, 0.5, at(50), cfg)
	if step != nil {
		t.Fatalf("diff equal to threshold must not fire")
	}

	s.Armed = false
	s, _, _ = DetectStep(s, 1.0, at(100), cfg)
	if s.Armed {
		t.Fatalf("diff equal to threshold must not re-arm")
	}
}

func TestDetectStep_NonFiniteLeavesStateUntouched(t *testing.T) {
	cfg := DetectorConfig{Threshold: 0.1, MinInterval: 200 * time.Millisecond}
	s := NewDetectorState()
	s, _, _ = DetectStep(s, 0.2, at(0), cfg)

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		got, step, err := DetectStep(s, bad, at(50), cfg)
		if !errors.Is(err, ErrInvalidSample) {
			t.Fatalf("DetectStep(%v) error = %v, want ErrInvalidSample", bad, err)
		}
		if step != nil {
			t.Fatalf("DetectStep(%v) fired", bad)
		}
		if got != s {
			t.Fatalf("DetectStep(%v) changed state: %+v -> %+v", bad, s, got)
		}
	}
}
