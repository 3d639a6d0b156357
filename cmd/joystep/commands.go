package main

import (
	"fmt"
	"time"
)

// Command is a side effect requested by the reducer and executed by runEffect.
type Command interface {
	commandMarker()
	String() string
}

// CmdPress presses the keys for a direction and leaves them down.
type CmdPress struct {
	Direction Direction
}

func (CmdPress) commandMarker()   {}
func (c CmdPress) String() string { return fmt.Sprintf("CmdPress(%s)", c.Direction) }

// ReleaseReason says why a held key was released.
type ReleaseReason string

const (
	ReleaseTimeout   ReleaseReason = "timeout"
	ReleaseDirection ReleaseReason = "direction_change"
	ReleaseShutdown  ReleaseReason = "shutdown"
	ReleaseRequested ReleaseReason = "requested"
	ReleasePulse     ReleaseReason = "pulse"
)

// CmdRelease releases the keys for a direction.
type CmdRelease struct {
	Direction Direction
	Reason    ReleaseReason
}

func (CmdRelease) commandMarker() {}
func (c CmdRelease) String() string {
	return fmt.Sprintf("CmdRelease(%s, reason=%s)", c.Direction, c.Reason)
}

// CmdPulse presses, waits Duration, then releases. It blocks the loop.
type CmdPulse struct {
	Direction Direction
	Duration  time.Duration
}

func (CmdPulse) commandMarker() {}
func (c CmdPulse) String() string {
	return fmt.Sprintf("CmdPulse(%s, %s)", c.Direction, c.Duration)
}

// CmdPublishStateSnapshot delivers a reducer-built snapshot to a requester.
// The channel send happens in the effects layer so Reduce stays pure.
type CmdPublishStateSnapshot struct {
	Reply    chan<- StateSnapshot
	Snapshot StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (CmdPublishStateSnapshot) String() string { return "CmdPublishStateSnapshot()" }
