// Package telemetry emits the lab's best-effort event stream. Publishing
// never blocks a learner-facing flow and never returns an error to the
// caller; failures are logged and dropped.
package telemetry

import (
	"time"

	"github.com/yungbote/dockerlab-backend/internal/ledger"
)

type EventKind string

const (
	KindHeartbeat  EventKind = "heartbeat"
	KindProgress   EventKind = "progress"
	KindFlagSubmit EventKind = "flag_submit"
)

// HeartbeatData builds the payload of a liveness ping.
func HeartbeatData(snap ledger.Snapshot) map[string]any {
	return map[string]any{
		"status":    "online",
		"completed": snap.CompletedCount(),
		"points":    snap.Points,
	}
}

// ProgressData builds the full progress snapshot payload. Completions are
// reported as the id list; consumers may also accept a plain count.
func ProgressData(snap ledger.Snapshot, totalExercises int) map[string]any {
	detail := make([]map[string]any, 0, len(snap.Completed))
	for _, id := range snap.Completed {
		entry := map[string]any{"id": id}
		if ts, ok := snap.CompletedAt[id]; ok {
			entry["completed_at"] = ts.Format(time.RFC3339)
		}
		detail = append(detail, entry)
	}
	data := map[string]any{
		"completed":       snap.Completed,
		"points":          snap.Points,
		"total_exercises": totalExercises,
		"detail":          detail,
	}
	if !snap.StartedAt.IsZero() {
		data["started_at"] = snap.StartedAt.Format(time.RFC3339)
	}
	return data
}

// FlagSubmitData builds the payload announcing a freshly credited
// exercise.
func FlagSubmitData(exerciseID int, exerciseName string, pointsAwarded int, snap ledger.Snapshot) map[string]any {
	return map[string]any{
		"exercise_id":     exerciseID,
		"exercise_name":   exerciseName,
		"points_awarded":  pointsAwarded,
		"total_points":    snap.Points,
		"completed_count": snap.CompletedCount(),
	}
}
