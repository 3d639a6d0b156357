package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Detection Loop - Reducer-driven
// ============================================================================
//
// Rules enforced here:
//   - The reducer performs no I/O and computes: next state + commands.
//   - This loop is the only place that executes side effects (key actuation).
//   - Actuator outcomes are turned into Events and fed back into the reducer.
//   - One sample is read per tick; a blocking pulse delays the next tick and
//     the ticker drops the ticks missed meanwhile.
//
// ============================================================================

// runDaemon runs the detection loop until ctx is canceled and returns the
// total number of steps detected.
//
// On cancellation it reduces a Shutdown event and executes the resulting
// release before returning, so no key is left held.
func runDaemon(
	ctx context.Context,
	source AccelSource,
	register *DirectionRegister,
	actuator KeyActuator,
	events <-chan Event,
	broadcasts chan<- StateBroadcast,
	state *DaemonState,
	cfg LoopConfig,
	sampleInterval time.Duration,
	logger *slog.Logger,
) int {
	if state == nil {
		logger.Error("daemon state is nil")
		return 0
	}

	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	var eventQueue []Event
	var cmdQueue []Command

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}

	publish := func(bcs []StateBroadcast) {
		if broadcasts == nil {
			return
		}
		for _, b := range bcs {
			select {
			case broadcasts <- b:
			default:
				logger.Warn("broadcast queue full, dropping", "broadcast", b)
			}
		}
	}

	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			rr := Reduce(state, ev, cfg)
			if rr.State != nil {
				state = rr.State
			}
			if rr.Err != nil {
				logger.Debug("tick skipped", "error", rr.Err)
			}
			for _, b := range rr.Broadcasts {
				if bs, ok := b.(BroadcastStep); ok {
					logger.Info("step detected",
						"total", bs.Step.Seq,
						"direction", bs.Direction,
						"diff", bs.Step.Diff,
						"cadence_spm", bs.CadenceSPM)
				}
			}
			publish(rr.Broadcasts)
			cmdQueue = append(cmdQueue, rr.Commands...)
		}
	}

	// execCtx is what pulses wait on. Shutdown uses a fresh context so the
	// final release is never skipped.
	flushCommands := func(execCtx context.Context) {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]

			runEffect(execCtx, actuator, cmd, logger, enqueueEvent)
			flushEvents()
		}
	}

	logger.Info("step detection started",
		"axis", state.Axis.Axis,
		"threshold", cfg.Detector.Threshold,
		"min_interval", cfg.Detector.MinInterval,
		"mode", cfg.Actuation.Mode,
		"sample_interval", sampleInterval)

	for {
		select {
		case <-ctx.Done():
			enqueueEvent(Shutdown{At: time.Now()})
			flushEvents()
			flushCommands(context.Background())
			logger.Debug("detection loop exiting", "ticks", state.Stats.Ticks)
			return state.Detector.Count

		case ev, ok := <-events:
			if !ok {
				// Control sources are optional; keep sampling.
				events = nil
				continue
			}
			switch ev.(type) {
			case RequestStateSnapshot:
				enqueueEvent(ev)
			default:
				enqueueEvent(TimedEvent{Event: ev, At: time.Now()})
			}
			flushEvents()
			flushCommands(ctx)

		case now := <-ticker.C:
			sample, err := source.CurrentSample()
			enqueueEvent(Tick{
				Now:       now,
				Sample:    sample,
				SourceErr: err,
				Direction: register.Load(),
			})
			flushEvents()
			flushCommands(ctx)

			if state.Hold.Holding() {
				remaining := cfg.Actuation.HoldTimeout - now.Sub(state.Hold.LastStepAt)
				if remaining < 0 {
					remaining = 0
				}
				logger.Debug("holding key", "direction", state.Hold.Held, "release_in", remaining.Round(10*time.Millisecond))
			}
		}
	}
}
