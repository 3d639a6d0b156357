package main

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Direction is a symbolic movement direction. The zero value is DirNone.
type Direction uint32

const (
	DirNone Direction = iota
	DirUp
	DirDown
	DirLeft
	DirRight
	DirUpLeft
	DirUpRight
	DirDownLeft
	DirDownRight
)

var directionNames = map[Direction]string{
	DirNone:      "none",
	DirUp:        "up",
	DirDown:      "down",
	DirLeft:      "left",
	DirRight:     "right",
	DirUpLeft:    "up-left",
	DirUpRight:   "up-right",
	DirDownLeft:  "down-left",
	DirDownRight: "down-right",
}

func (d Direction) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Direction(%d)", uint32(d))
}

// MarshalText renders the symbolic name in JSON payloads.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText, including "none".
func (d *Direction) UnmarshalText(b []byte) error {
	if n := string(b); n == "" || n == "none" {
		*d = DirNone
		return nil
	}
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ParseDirection parses a direction name. "w/a/s/d" and "_" separators are
// accepted as aliases, e.g. "w", "up_left", "upleft".
func ParseDirection(s string) (Direction, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	n = strings.ReplaceAll(n, "_", "-")
	switch n {
	case "up", "w", "north":
		return DirUp, nil
	case "down", "s", "south":
		return DirDown, nil
	case "left", "a", "west":
		return DirLeft, nil
	case "right", "d", "east":
		return DirRight, nil
	case "up-left", "upleft", "wa":
		return DirUpLeft, nil
	case "up-right", "upright", "wd":
		return DirUpRight, nil
	case "down-left", "downleft", "sa":
		return DirDownLeft, nil
	case "down-right", "downright", "sd":
		return DirDownRight, nil
	default:
		return DirNone, fmt.Errorf("invalid direction: %q", s)
	}
}

// components splits a direction into its vertical and horizontal parts.
// Either part may be DirNone.
func (d Direction) components() (vertical, horizontal Direction) {
	switch d {
	case DirUp, DirDown:
		return d, DirNone
	case DirLeft, DirRight:
		return DirNone, d
	case DirUpLeft:
		return DirUp, DirLeft
	case DirUpRight:
		return DirUp, DirRight
	case DirDownLeft:
		return DirDown, DirLeft
	case DirDownRight:
		return DirDown, DirRight
	default:
		return DirNone, DirNone
	}
}

// combineDirections is the inverse of components.
func combineDirections(vertical, horizontal Direction) Direction {
	switch {
	case vertical == DirUp && horizontal == DirLeft:
		return DirUpLeft
	case vertical == DirUp && horizontal == DirRight:
		return DirUpRight
	case vertical == DirDown && horizontal == DirLeft:
		return DirDownLeft
	case vertical == DirDown && horizontal == DirRight:
		return DirDownRight
	case vertical != DirNone:
		return vertical
	default:
		return horizontal
	}
}

// DirectionRegister holds the most recently requested direction.
//
// Written by the key listener and the IPC server, read by the detection loop
// on every tick.
type DirectionRegister struct {
	v atomic.Uint32
}

// NewDirectionRegister returns a register holding initial.
func NewDirectionRegister(initial Direction) *DirectionRegister {
	r := &DirectionRegister{}
	r.v.Store(uint32(initial))
	return r
}

func (r *DirectionRegister) Load() Direction {
	return Direction(r.v.Load())
}

func (r *DirectionRegister) Store(d Direction) {
	r.v.Store(uint32(d))
}
