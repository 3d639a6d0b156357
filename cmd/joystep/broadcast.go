package main

import (
	"context"
	"log/slog"
)

// fanOutBroadcasts copies every broadcast from src to each destination.
// A full destination drops the broadcast instead of stalling the others.
// Destinations are closed when src closes or ctx is canceled.
func fanOutBroadcasts(ctx context.Context, src <-chan StateBroadcast, logger *slog.Logger, dsts ...chan StateBroadcast) {
	defer func() {
		for _, d := range dsts {
			close(d)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-src:
			if !ok {
				return
			}
			for i, d := range dsts {
				select {
				case d <- b:
				default:
					logger.Warn("broadcast subscriber lagging, dropping", "subscriber", i, "broadcast", b)
				}
			}
		}
	}
}
