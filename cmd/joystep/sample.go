package main

import (
	"fmt"
	"math"
	"strings"
)

// Sample is one accelerometer reading in G.
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Finite reports whether all three components are finite numbers.
func (s Sample) Finite() bool {
	return isFinite(s.X) && isFinite(s.Y) && isFinite(s.Z)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Axis selects which component of a Sample drives step detection.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Value returns the component of s selected by a.
func (a Axis) Value(s Sample) float64 {
	switch a {
	case AxisY:
		return s.Y
	case AxisZ:
		return s.Z
	default:
		return s.X
	}
}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// MarshalText renders the axis as "X", "Y" or "Z" in JSON payloads.
func (a Axis) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Axis) UnmarshalText(b []byte) error {
	v, err := ParseAxis(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ParseAxis accepts x, y or z in any case.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x":
		return AxisX, nil
	case "y":
		return AxisY, nil
	case "z":
		return AxisZ, nil
	default:
		return 0, fmt.Errorf("invalid axis: %q (must be x, y or z)", s)
	}
}
