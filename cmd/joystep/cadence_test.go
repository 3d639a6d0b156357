package main

import (
	"testing"
	"time"
)

func TestCadence_WindowedCount(t *testing.T) {
	var c CadenceState
	window := time.Second

	for _, ms := range []int{0, 400, 800, 1200} {
		c.addStep(at(ms), window)
	}
	// The step at 0 fell out of the window ending at 1200.
	if n := len(c.RecentSteps); n != 3 {
		t.Fatalf("steps in window = %d, want 3", n)
	}
	if spm := c.stepsPerMinute(at(1200), window); spm != 180 {
		t.Fatalf("spm = %v, want 180", spm)
	}
	if spm := c.stepsPerMinute(at(5000), window); spm != 0 {
		t.Fatalf("spm after idle = %v, want 0", spm)
	}
}

func TestSmooth(t *testing.T) {
	// Disabled: passthrough.
	s, v := Smooth(SmoothingState{}, 2.5, SmoothingConfig{})
	if v != 2.5 || s.Initialized {
		t.Fatalf("disabled smoothing = %v, %+v", v, s)
	}

	cfg := SmoothingConfig{Factor: 0.5, WarmUp: 1}
	s, v = Smooth(SmoothingState{}, 1, cfg)
	if v != 1 {
		t.Fatalf("warm-up output = %v, want 1", v)
	}
	s, v = Smooth(s, 3, cfg)
	if v != 2 {
		t.Fatalf("filtered output = %v, want 2", v)
	}
	_, v = Smooth(s, 2, cfg)
	if v != 2 {
		t.Fatalf("filtered output = %v, want 2", v)
	}
}
