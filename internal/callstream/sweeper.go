package callstream

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/prepwise/internal/call"
)

const sweepInterval = time.Minute

// StartSweeper runs a background goroutine that disconnects calls running
// longer than maxDuration. A non-positive maxDuration disables it.
func StartSweeper(ctx context.Context, sm *SessionManager, maxDuration time.Duration) {
	if maxDuration <= 0 {
		slog.Info("Call sweeper disabled")
		return
	}
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Call sweeper started", "interval", sweepInterval, "max_duration", maxDuration)

		for {
			select {
			case <-ticker.C:
				sweepExpiredCalls(sm, maxDuration, time.Now())
			case <-ctx.Done():
				slog.Info("Call sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// sweepExpiredCalls disconnects live calls started before now-maxDuration and
// returns how many it ended.
func sweepExpiredCalls(sm *SessionManager, maxDuration time.Duration, now time.Time) int {
	swept := 0
	for _, s := range sm.snapshot() {
		ctrl := s.Controller()
		if ctrl == nil {
			continue
		}
		switch ctrl.State() {
		case call.StateConnecting, call.StateActive:
		default:
			continue
		}
		if now.Sub(s.CallStarted()) < maxDuration {
			continue
		}

		slog.Info("Call sweeper ending call",
			"user_id", s.UserID,
			"session_id", s.SessionID,
			"started", s.CallStarted())
		ctrl.Disconnect()
		swept++
	}

	if swept > 0 {
		slog.Info("Call sweeper completed", "ended", swept)
	}
	return swept
}
