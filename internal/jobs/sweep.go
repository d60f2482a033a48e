// Package jobs runs the periodic background work: the auto-end sweep and
// the scheduled backup trigger.
package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper closes overdue sessions; *service.AttendanceService implements it.
type Sweeper interface {
	AutoEndSweep(ctx context.Context, now time.Time) ([]uint64, error)
}

const (
	defaultSweepInterval = time.Minute
	defaultSweepTimeout  = 30 * time.Second
)

// StartAutoEndSweep runs sweeper every interval until ctx is cancelled.
// A failing tick is logged and the next tick runs as usual.
func StartAutoEndSweep(ctx context.Context, sweeper Sweeper, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	timeout := defaultSweepTimeout
	if interval < timeout {
		timeout = interval
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				SweepOnce(ctx, sweeper, timeout, logger)
			}
		}
	}()
}

// SweepOnce runs one sweep bounded by timeout and returns the closed ids.
func SweepOnce(ctx context.Context, sweeper Sweeper, timeout time.Duration, logger *zap.Logger) []uint64 {
	tickCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	closed, err := sweeper.AutoEndSweep(tickCtx, time.Now().UTC())
	if err != nil {
		logger.Error("auto-end sweep failed", zap.Error(err))
		return nil
	}
	if len(closed) > 0 {
		logger.Info("auto-end sweep closed sessions", zap.Uint64s("session_ids", closed))
	}
	return closed
}
