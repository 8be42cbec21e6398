package aggregator

import (
	"context"
	"time"

	"github.com/yungbote/dockerlab-backend/internal/logger"
	"github.com/yungbote/dockerlab-backend/internal/repos"
)

// RunRetentionSweeper deletes telemetry events older than the retention
// window, once at startup and then daily. It blocks until ctx is
// cancelled. Students, completions and sessions are never swept.
func RunRetentionSweeper(ctx context.Context, events repos.TelemetryEventRepo, retention time.Duration, log *logger.Logger) error {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	sweepLog := log.With("component", "RetentionSweeper")

	sweep := func() {
		cutoff := time.Now().UTC().Add(-retention)
		removed, err := events.DeleteOlderThan(ctx, nil, cutoff)
		if err != nil {
			sweepLog.Warn("retention sweep failed", "error", err)
			return
		}
		if removed > 0 {
			sweepLog.Info("swept aged telemetry events", "removed", removed, "cutoff", cutoff)
		}
	}

	sweep()
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			sweep()
		}
	}
}
