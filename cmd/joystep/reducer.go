package main

import (
	"fmt"
	"time"
)

// This file implements the reducer side of the detection loop:
//
//   - Events: inputs (sampling ticks, control requests, actuator observations)
//   - Commands: key actuator side effects requested by the reducer
//   - Broadcasts: state changes published to WS/MQTT subscribers
//   - Reduce(): computes next state + commands + broadcasts without I/O
//
// The daemon loop executes Commands via runEffect and feeds observations back
// as Events.

// ==============================
// Events
// ==============================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// Tick is emitted once per sampling interval.
//
// Direction is the register value read at the same instant as the sample, so
// a step always uses the latest requested direction. SourceErr is set when
// the source had no usable reading.
type Tick struct {
	Now       time.Time
	Sample    Sample
	SourceErr error
	Direction Direction
}

func (Tick) eventMarker() {}

// TimedEvent attaches a receive timestamp to a control event.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// Shutdown is reduced once when the loop is canceled.
type Shutdown struct {
	At time.Time
}

func (Shutdown) eventMarker() {}

// RequestStateSnapshot asks the reducer for a StateSnapshot.
type RequestStateSnapshot struct {
	Reply chan<- StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// KeysPressed is emitted by runEffect after a successful press.
type KeysPressed struct {
	Direction Direction
	At        time.Time
}

func (KeysPressed) eventMarker() {}

// KeysReleased is emitted by runEffect after a successful release.
type KeysReleased struct {
	Direction Direction
	Reason    ReleaseReason
	At        time.Time
}

func (KeysReleased) eventMarker() {}

// ActuatorFailed is emitted when a command could not be executed.
type ActuatorFailed struct {
	Command Command
	Err     error
	At      time.Time
}

func (ActuatorFailed) eventMarker() {}

// ==============================
// Broadcasts
// ==============================

// StateBroadcast is a state change worth publishing to subscribers.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastStep is published for every detected step.
type BroadcastStep struct {
	Step       StepEvent
	Direction  Direction
	CadenceSPM float64
}

func (BroadcastStep) broadcastMarker() {}

// BroadcastKeyPressed is published once the actuator confirmed a press.
type BroadcastKeyPressed struct {
	Direction Direction
	At        time.Time
}

func (BroadcastKeyPressed) broadcastMarker() {}

// BroadcastKeyReleased is published once the actuator confirmed a release.
type BroadcastKeyReleased struct {
	Direction Direction
	Reason    ReleaseReason
	At        time.Time
}

func (BroadcastKeyReleased) broadcastMarker() {}

// ==============================
// Reducer input/output
// ==============================

// LoopConfig is everything Reduce needs besides state.
type LoopConfig struct {
	Detector      DetectorConfig
	Smoothing     SmoothingConfig
	Actuation     ActuationConfig
	CadenceWindow time.Duration
}

// ReduceResult is the output of Reduce().
//
// Err is informational (e.g. ErrInvalidSample on a skipped tick); the state
// is always valid.
type ReduceResult struct {
	State      *DaemonState
	Commands   []Command
	Broadcasts []StateBroadcast
	Err        error
}

// Reduce is the pure reducer. It must not perform I/O or block.
func Reduce(s *DaemonState, e Event, cfg LoopConfig) ReduceResult {
	if s == nil {
		s = &DaemonState{Detector: NewDetectorState()}
	}

	var (
		cmds []Command
		bcs  []StateBroadcast
		rerr error
	)

	switch ev := e.(type) {
	case Tick:
		s.Stats.Ticks++
		s.Stats.LastDirection = ev.Direction

		step, err := reduceSample(s, ev, cfg)
		if err != nil {
			s.Stats.InvalidSamples++
			rerr = err
		}

		if step != nil {
			cadence := s.Cadence.addStep(step.At, cfg.CadenceWindow)
			spm := 0.0
			if cfg.CadenceWindow > 0 {
				spm = float64(cadence) * float64(time.Minute) / float64(cfg.CadenceWindow)
			}
			bcs = append(bcs, BroadcastStep{Step: *step, Direction: ev.Direction, CadenceSPM: spm})

			switch cfg.Actuation.Mode {
			case ActuationPulse:
				cmds = append(cmds, PulseOnStep(ev.Direction, cfg.Actuation)...)
			default:
				var c []Command
				s.Hold, c = HoldOnStep(s.Hold, ev.Direction, ev.Now)
				cmds = append(cmds, c...)
			}
		}

		// Hold timeout runs on every tick, including skipped ones.
		if cfg.Actuation.Mode != ActuationPulse {
			var c []Command
			s.Hold, c = HoldOnTick(s.Hold, ev.Now, cfg.Actuation.HoldTimeout)
			cmds = append(cmds, c...)
		}

	case TimedEvent:
		switch ev.Event.(type) {
		case ReleaseKeys:
			var c []Command
			s.Hold, c = holdRelease(s.Hold, ReleaseRequested)
			cmds = append(cmds, c...)
		default:
			// SetDirection is handled by the register writer, not the loop.
		}

	case Shutdown:
		var c []Command
		s.Hold, c = HoldOnShutdown(s.Hold)
		cmds = append(cmds, c...)

	case RequestStateSnapshot:
		cmds = append(cmds, CmdPublishStateSnapshot{
			Reply:    ev.Reply,
			Snapshot: s.snapshot(time.Now(), cfg),
		})

	case KeysPressed:
		s.Keys.Down = ev.Direction
		s.Keys.DownAt = ev.At
		bcs = append(bcs, BroadcastKeyPressed{Direction: ev.Direction, At: ev.At})

	case KeysReleased:
		if s.Keys.Down == ev.Direction {
			s.Keys.Down = DirNone
			s.Keys.DownAt = time.Time{}
		}
		bcs = append(bcs, BroadcastKeyReleased{Direction: ev.Direction, Reason: ev.Reason, At: ev.At})

	case ActuatorFailed:
		s.Stats.ActuatorFailures++
		if ev.Err != nil {
			s.Stats.LastActuatorErr = ev.Err.Error()
		}

	default:
		// Unknown event type: no-op.
	}

	return ReduceResult{
		State:      s,
		Commands:   cmds,
		Broadcasts: bcs,
		Err:        rerr,
	}
}

// reduceSample runs smoothing and detection for one tick. Invalid input
// leaves the detector and filter untouched.
func reduceSample(s *DaemonState, ev Tick, cfg LoopConfig) (*StepEvent, error) {
	if ev.SourceErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSample, ev.SourceErr)
	}
	if !ev.Sample.Finite() {
		return nil, fmt.Errorf("%w: non-finite sample %+v", ErrInvalidSample, ev.Sample)
	}

	s.Stats.LastSample = ev.Sample
	s.Stats.LastSampleAt = ev.Now

	smoothing, v := Smooth(s.Smoothing, s.Axis.Axis.Value(ev.Sample), cfg.Smoothing)
	detector, step, err := DetectStep(s.Detector, v, ev.Now, cfg.Detector)
	if err != nil {
		return nil, err
	}
	s.Smoothing = smoothing
	s.Detector = detector
	return step, nil
}
