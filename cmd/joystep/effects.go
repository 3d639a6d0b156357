package main

import (
	"context"
	"log/slog"
	"time"
)

// runEffect executes a single reducer-emitted Command against the key
// actuator and reports the outcome via onEvent.
//
// It never calls Reduce() itself. Actuator failures are logged and reported
// as ActuatorFailed; the loop keeps running.
func runEffect(
	ctx context.Context,
	actuator KeyActuator,
	cmd Command,
	logger *slog.Logger,
	onEvent func(Event),
) {
	if onEvent == nil {
		onEvent = func(Event) {}
	}

	switch c := cmd.(type) {
	case CmdPress:
		if err := actuator.Press(c.Direction); err != nil {
			logger.Error("key press failed", "direction", c.Direction, "error", err)
			onEvent(ActuatorFailed{Command: cmd, Err: err, At: time.Now()})
			return
		}
		logger.Info("key pressed", "direction", c.Direction)
		onEvent(KeysPressed{Direction: c.Direction, At: time.Now()})

	case CmdRelease:
		if err := actuator.Release(c.Direction); err != nil {
			logger.Error("key release failed", "direction", c.Direction, "reason", c.Reason, "error", err)
			onEvent(ActuatorFailed{Command: cmd, Err: err, At: time.Now()})
			return
		}
		logger.Info("key released", "direction", c.Direction, "reason", c.Reason)
		onEvent(KeysReleased{Direction: c.Direction, Reason: c.Reason, At: time.Now()})

	case CmdPulse:
		// Blocks the loop for the whole pulse. Ticks that fall inside it are
		// dropped by the ticker, so steps taken meanwhile are not seen.
		if err := actuator.Press(c.Direction); err != nil {
			logger.Error("key press failed", "direction", c.Direction, "error", err)
			onEvent(ActuatorFailed{Command: cmd, Err: err, At: time.Now()})
			return
		}
		onEvent(KeysPressed{Direction: c.Direction, At: time.Now()})

		if err := sleepContext(ctx, c.Duration); err != nil {
			logger.Debug("pulse cut short", "direction", c.Direction, "error", err)
		}

		if err := actuator.Release(c.Direction); err != nil {
			logger.Error("key release failed", "direction", c.Direction, "reason", ReleasePulse, "error", err)
			onEvent(ActuatorFailed{Command: cmd, Err: err, At: time.Now()})
			return
		}
		logger.Debug("key pulsed", "direction", c.Direction, "duration", c.Duration)
		onEvent(KeysReleased{Direction: c.Direction, Reason: ReleasePulse, At: time.Now()})

	case CmdPublishStateSnapshot:
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}
		// Never block the loop on a slow requester.
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
	}
}
