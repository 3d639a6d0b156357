package main

import (
	"fmt"
	"strings"
	"time"
)

// ActuationMode selects how steps become key presses. Fixed at startup.
type ActuationMode string

const (
	// ActuationHold keeps the key down while steps keep coming.
	ActuationHold ActuationMode = "hold"
	// ActuationPulse taps the key once per step.
	ActuationPulse ActuationMode = "pulse"
)

// ParseActuationMode accepts "hold", "pulse", and "tile" (alias of pulse).
func ParseActuationMode(s string) (ActuationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hold":
		return ActuationHold, nil
	case "pulse", "tile":
		return ActuationPulse, nil
	default:
		return "", fmt.Errorf("invalid actuation mode: %q (must be hold or pulse)", s)
	}
}

// ActuationConfig holds the policy timings.
type ActuationConfig struct {
	Mode          ActuationMode
	HoldTimeout   time.Duration
	PulseDuration time.Duration
}

// HoldState is the hold-mode key slot: Idle when Held is DirNone,
// Holding(Held) otherwise.
type HoldState struct {
	Held       Direction
	LastStepAt time.Time
}

// Holding reports whether a key is currently down.
func (h HoldState) Holding() bool { return h.Held != DirNone }

// HoldOnStep applies one step in hold mode.
func HoldOnStep(h HoldState, dir Direction, now time.Time) (HoldState, []Command) {
	h.LastStepAt = now
	if dir == DirNone {
		return h, nil
	}

	switch {
	case !h.Holding():
		h.Held = dir
		return h, []Command{CmdPress{Direction: dir}}

	case h.Held != dir:
		old := h.Held
		h.Held = dir
		return h, []Command{
			CmdRelease{Direction: old, Reason: ReleaseDirection},
			CmdPress{Direction: dir},
		}

	default:
		// Same direction: timestamp refresh only.
		return h, nil
	}
}

// HoldOnTick releases the held key once the hold timeout has elapsed
// since the last step.
func HoldOnTick(h HoldState, now time.Time, timeout time.Duration) (HoldState, []Command) {
	if !h.Holding() {
		return h, nil
	}
	if now.Sub(h.LastStepAt) <= timeout {
		return h, nil
	}
	old := h.Held
	h.Held = DirNone
	return h, []Command{CmdRelease{Direction: old, Reason: ReleaseTimeout}}
}

// HoldOnShutdown unconditionally releases any held key.
func HoldOnShutdown(h HoldState) (HoldState, []Command) {
	return holdRelease(h, ReleaseShutdown)
}

func holdRelease(h HoldState, reason ReleaseReason) (HoldState, []Command) {
	if !h.Holding() {
		return h, nil
	}
	old := h.Held
	h.Held = DirNone
	return h, []Command{CmdRelease{Direction: old, Reason: reason}}
}

// PulseOnStep taps the current direction for the configured duration.
func PulseOnStep(dir Direction, cfg ActuationConfig) []Command {
	if dir == DirNone {
		return nil
	}
	return []Command{CmdPulse{Direction: dir, Duration: cfg.PulseDuration}}
}
