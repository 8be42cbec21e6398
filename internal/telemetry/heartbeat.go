package telemetry

import (
	"context"
	"time"

	"github.com/yungbote/dockerlab-backend/internal/ledger"
	"github.com/yungbote/dockerlab-backend/internal/logger"
)

// StartHeartbeat pings the aggregator on a fixed interval so the
// dashboard can tell online learners from gone ones. It returns
// immediately; the loop stops when ctx is cancelled.
func StartHeartbeat(ctx context.Context, pub Publisher, led ledger.Store, studentID string, interval time.Duration, log *logger.Logger) {
	if studentID == "" || interval <= 0 {
		return
	}
	hbLog := log.With("component", "Heartbeat")
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap, err := led.Snapshot(ctx, studentID)
				if err != nil {
					hbLog.Warn("heartbeat ledger read failed", "error", err)
					continue
				}
				pub.Publish(KindHeartbeat, studentID, HeartbeatData(snap))
			}
		}
	}()
}
