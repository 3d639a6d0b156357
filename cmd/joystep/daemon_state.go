package main

import "time"

// DaemonState is the top-level, loop-owned state container.
//
// Only the detection loop goroutine touches it. Other goroutines get copies
// through StateSnapshot.
type DaemonState struct {
	// Axis chosen by calibration. Immutable for the session.
	Axis AxisState

	Detector  DetectorState
	Smoothing SmoothingState
	Hold      HoldState
	Cadence   CadenceState

	// Keys is what the actuator last confirmed, as opposed to Hold which is
	// what the policy wants.
	Keys KeysState

	Stats LoopStats
}

// AxisState records the calibration outcome.
type AxisState struct {
	Axis  Axis
	Diffs AxisDiffs
}

// KeysState is the observed actuator state.
type KeysState struct {
	Down   Direction
	DownAt time.Time
}

// LoopStats counts loop activity for status reporting.
type LoopStats struct {
	Ticks            int
	InvalidSamples   int
	ActuatorFailures int
	LastActuatorErr  string
	LastSample       Sample
	LastSampleAt     time.Time
	LastDirection    Direction
}

// NewDaemonState returns a state with an armed detector for the chosen axis.
func NewDaemonState(cal CalibrationResult) *DaemonState {
	return &DaemonState{
		Axis:     AxisState{Axis: cal.Axis, Diffs: cal.Diffs},
		Detector: NewDetectorState(),
	}
}

// StateSnapshot is an immutable copy of the interesting parts of DaemonState.
type StateSnapshot struct {
	Steps            int           `json:"steps"`
	Axis             Axis          `json:"axis"`
	AxisDiffs        AxisDiffs     `json:"axis_diffs"`
	Mode             ActuationMode `json:"mode"`
	Holding          Direction     `json:"holding"`
	KeysDown         Direction     `json:"keys_down"`
	Direction        Direction     `json:"direction"`
	Armed            bool          `json:"armed"`
	LastStepAt       time.Time     `json:"last_step_at"`
	CadenceSPM       float64       `json:"cadence_spm"`
	Ticks            int           `json:"ticks"`
	InvalidSamples   int           `json:"invalid_samples"`
	ActuatorFailures int           `json:"actuator_failures"`
	LastActuatorErr  string        `json:"last_actuator_error,omitempty"`
	LastSample       Sample        `json:"last_sample"`
}

func (s *DaemonState) snapshot(now time.Time, cfg LoopConfig) StateSnapshot {
	return StateSnapshot{
		Steps:            s.Detector.Count,
		Axis:             s.Axis.Axis,
		AxisDiffs:        s.Axis.Diffs,
		Mode:             cfg.Actuation.Mode,
		Holding:          s.Hold.Held,
		KeysDown:         s.Keys.Down,
		Direction:        s.Stats.LastDirection,
		Armed:            s.Detector.Armed,
		LastStepAt:       s.Detector.LastStepAt,
		CadenceSPM:       s.Cadence.stepsPerMinute(now, cfg.CadenceWindow),
		Ticks:            s.Stats.Ticks,
		InvalidSamples:   s.Stats.InvalidSamples,
		ActuatorFailures: s.Stats.ActuatorFailures,
		LastActuatorErr:  s.Stats.LastActuatorErr,
		LastSample:       s.Stats.LastSample,
	}
}
