package jobs

import (
	"context"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"
)

// BackupTrigger requests one backup run.
type BackupTrigger func(ctx context.Context, at time.Time) error

const triggerTimeout = 10 * time.Second

// StartBackupSchedule calls trigger at every occurrence of rule until ctx
// is cancelled or the rule is exhausted.
func StartBackupSchedule(ctx context.Context, rule *rrule.RRule, trigger BackupTrigger, logger *zap.Logger) {
	go runSchedule(ctx, rule, trigger, time.Now, logger)
}

func runSchedule(ctx context.Context, rule *rrule.RRule, trigger BackupTrigger, now func() time.Time, logger *zap.Logger) {
	for {
		next, ok := NextRun(rule, now())
		if !ok {
			logger.Info("backup schedule exhausted")
			return
		}
		logger.Info("next backup scheduled", zap.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		tctx, cancel := context.WithTimeout(ctx, triggerTimeout)
		err := trigger(tctx, next)
		cancel()
		if err != nil {
			logger.Error("backup trigger failed", zap.Time("scheduled", next), zap.Error(err))
			continue
		}
		logger.Info("backup requested", zap.Time("scheduled", next))
	}
}

// NextRun returns the first occurrence of rule strictly after t.
func NextRun(rule *rrule.RRule, t time.Time) (time.Time, bool) {
	next := rule.After(t, false)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}
