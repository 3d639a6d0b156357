package main

import (
	"fmt"
	"math"
	"time"
)

// DetectorConfig holds the fixed step detection parameters.
type DetectorConfig struct {
	Threshold   float64       // minimum |current - previous| for a step
	MinInterval time.Duration // refractory period between steps
}

// DetectorState is owned by the detection loop and mutated once per valid
// sample.
type DetectorState struct {
	Previous    float64
	HasPrevious bool
	LastStepAt  time.Time
	Armed       bool
	Count       int
}

// NewDetectorState returns an armed detector with no history.
func NewDetectorState() DetectorState {
	return DetectorState{Armed: true}
}

// StepEvent is one detected step.
type StepEvent struct {
	Seq  int       `json:"seq"`
	At   time.Time `json:"at"`
	Diff float64   `json:"diff"`
}

// DetectStep advances the detector by one sample.
//
// A step fires when the change since the previous sample exceeds the
// threshold, the detector is armed, and more than MinInterval has passed
// since the last step. Firing disarms; the detector re-arms only once the
// change drops strictly below the threshold. A change exactly equal to the
// threshold neither arms nor disarms.
//
// Non-finite values return ErrInvalidSample and leave s untouched.
func DetectStep(s DetectorState, v float64, now time.Time, cfg DetectorConfig) (DetectorState, *StepEvent, error) {
	if !isFinite(v) {
		return s, nil, fmt.Errorf("%w: axis value %v", ErrInvalidSample, v)
	}

	if !s.HasPrevious {
		s.Previous = v
		s.HasPrevious = true
		return s, nil, nil
	}

	d := math.Abs(v - s.Previous)
	var step *StepEvent

	cooledDown := s.Count == 0 || now.Sub(s.LastStepAt) > cfg.MinInterval
	if d > cfg.Threshold && s.Armed && cooledDown {
		s.Count++
		s.LastStepAt = now
		s.Armed = false
		step = &StepEvent{Seq: s.Count, At: now, Diff: d}
	}
	if d < cfg.Threshold {
		s.Armed = true
	}

	s.Previous = v
	return s, step, nil
}
