// Package aggregator ingests the lab's MQTT event stream into Postgres
// and pushes live notifications toward the instructor dashboard.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/dockerlab-backend/internal/logger"
	"github.com/yungbote/dockerlab-backend/internal/repos"
	"github.com/yungbote/dockerlab-backend/internal/sse"
	"github.com/yungbote/dockerlab-backend/internal/types"
)

// Notifier pushes one dashboard notification. Implementations must not
// block ingest; delivery is best effort.
type Notifier interface {
	Notify(msg sse.Message)
}

type noopNotifier struct{}

func (noopNotifier) Notify(sse.Message) {}

type Config struct {
	Namespace        string
	HeartbeatTimeout time.Duration
	TotalExercises   int
	TotalPoints      int
}

type Ingestor interface {
	Start(ctx context.Context, client paho.Client) error
	Handle(ctx context.Context, topic string, payload []byte)
	Degraded() bool
}

type ingestor struct {
	db          *gorm.DB
	log         *logger.Logger
	students    repos.StudentRepo
	completions repos.CompletionRepo
	events      repos.TelemetryEventRepo
	sessions    repos.SessionRepo
	notifier    Notifier
	cfg         Config
	degraded    atomic.Bool
}

func NewIngestor(db *gorm.DB, log *logger.Logger, students repos.StudentRepo, completions repos.CompletionRepo, events repos.TelemetryEventRepo, sessions repos.SessionRepo, notifier Notifier, cfg Config) Ingestor {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = 90 * time.Second
	}
	return &ingestor{
		db:          db,
		log:         log.With("service", "Aggregator"),
		students:    students,
		completions: completions,
		events:      events,
		sessions:    sessions,
		notifier:    notifier,
		cfg:         cfg,
	}
}

// Start subscribes to every event topic in the namespace. Paho replays
// the subscription after reconnects, so one call covers the process
// lifetime.
func (a *ingestor) Start(ctx context.Context, client paho.Client) error {
	filter := fmt.Sprintf("%s/+/+", a.cfg.Namespace)
	token := client.Subscribe(filter, 1, func(_ paho.Client, msg paho.Message) {
		a.Handle(ctx, msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt subscribe to %s timed out", filter)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe to %s: %w", filter, err)
	}
	a.log.Info("subscribed to event stream", "filter", filter)
	return nil
}

// Degraded reports whether the last ingest attempt failed to persist.
// Health checks surface it without failing the whole process.
func (a *ingestor) Degraded() bool { return a.degraded.Load() }

// envelope is the union of all event payloads. Unknown fields are
// ignored so older and newer lab clients can share a broker.
type envelope struct {
	Timestamp      string          `json:"timestamp"`
	StudentID      string          `json:"student_id"`
	Event          string          `json:"event"`
	Status         string          `json:"status"`
	Completed      json.RawMessage `json:"completed"`
	Points         int             `json:"points"`
	TotalExercises int             `json:"total_exercises"`
	StartedAt      string          `json:"started_at"`
	ExerciseID     int             `json:"exercise_id"`
	ExerciseName   string          `json:"exercise_name"`
	PointsAwarded  int             `json:"points_awarded"`
	TotalPoints    int             `json:"total_points"`
	CompletedCount int             `json:"completed_count"`
}

// Handle ingests one raw broker message. Malformed input is dropped
// silently except for a debug line: a public broker carries arbitrary
// junk and the stream must keep flowing.
func (a *ingestor) Handle(ctx context.Context, topic string, payload []byte) {
	namespace, document, kind, ok := splitTopic(topic)
	if !ok || namespace != a.cfg.Namespace {
		a.log.Debug("dropping message with foreign topic", "topic", topic)
		return
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		a.log.Debug("dropping undecodable payload", "topic", topic, "error", err)
		return
	}
	// The topic owns the identity; a payload claiming someone else is
	// either a buggy client or spoofing, and loses either way.
	if env.StudentID != "" && env.StudentID != document {
		a.log.Warn("payload student_id does not match topic, using topic", "topic", topic)
	}
	env.StudentID = document

	err := a.ingest(ctx, topic, kind, payload, env)
	if err != nil {
		// One immediate retry covers transient connection drops.
		err = a.ingest(ctx, topic, kind, payload, env)
	}
	if err != nil {
		a.degraded.Store(true)
		a.log.Error("event ingest failed", "topic", topic, "error", err)
		return
	}
	a.degraded.Store(false)
}

func splitTopic(topic string) (namespace, document, kind string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func (a *ingestor) ingest(ctx context.Context, topic, kind string, payload []byte, env envelope) error {
	now := time.Now().UTC()

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		student, firstSeen, reappeared, err := a.touchStudent(ctx, tx, env.StudentID, now)
		if err != nil {
			return err
		}

		switch kind {
		case "heartbeat":
			// Heartbeats carry the learner's running totals alongside
			// liveness, so a learner who never sent a progress event
			// still shows real numbers on the dashboard.
			if err := a.applyTotals(ctx, tx, student, env); err != nil {
				return err
			}
		case "progress":
			if err := a.applyProgress(ctx, tx, student, env); err != nil {
				return err
			}
		case "flag_submit":
			if err := a.applyFlagSubmit(ctx, tx, student, env, now); err != nil {
				return err
			}
		default:
			a.log.Debug("dropping unknown event kind", "topic", topic)
			return nil
		}

		if err := a.events.Append(ctx, tx, &types.TelemetryEvent{
			StudentID:  student.ID,
			Document:   student.Document,
			EventType:  kind,
			Topic:      topic,
			Payload:    datatypes.JSON(payload),
			ReceivedAt: now,
		}); err != nil {
			return err
		}

		if firstSeen || reappeared {
			a.notifier.Notify(sse.Message{
				Channel: sse.ChannelDashboard,
				Event:   sse.EventStudentOnline,
				Data: map[string]any{
					"document":   student.Document,
					"first_seen": firstSeen,
				},
			})
		}
		return nil
	})
}

// touchStudent upserts the learner row, advances last_seen and manages
// sessions: the first message ever opens one, and a message after a
// heartbeat-timeout silence closes the stale session at its last
// activity and opens a fresh one.
func (a *ingestor) touchStudent(ctx context.Context, tx *gorm.DB, document string, now time.Time) (student *types.Student, firstSeen, reappeared bool, err error) {
	existing, err := a.students.GetByDocument(ctx, tx, document)
	if err != nil {
		return nil, false, false, err
	}

	row := &types.Student{
		Document:  document,
		Status:    "online",
		FirstSeen: now,
		LastSeen:  now,
	}
	if existing != nil {
		row.CompletedCount = existing.CompletedCount
		row.TotalPoints = existing.TotalPoints
		row.ProgressPercent = existing.ProgressPercent
		reappeared = now.Sub(existing.LastSeen) >= a.cfg.HeartbeatTimeout
	} else {
		firstSeen = true
	}

	student, err = a.students.Upsert(ctx, tx, row)
	if err != nil {
		return nil, false, false, err
	}

	if reappeared && existing != nil {
		if err := a.sessions.CloseActive(ctx, tx, student.ID, existing.LastSeen); err != nil {
			return nil, false, false, err
		}
	}
	openSession := firstSeen || reappeared
	if !openSession {
		// A live learner always has an open session. Recreate it when the
		// rows were purged underneath them (instructor delete raced with
		// an event, or a wiped sessions table).
		active, err := a.sessions.GetActive(ctx, tx, student.ID)
		if err != nil {
			return nil, false, false, err
		}
		openSession = active == nil
	}
	if openSession {
		if _, err := a.sessions.Create(ctx, tx, &types.Session{
			StudentID:    student.ID,
			Document:     student.Document,
			SessionStart: now,
			IsActive:     true,
		}); err != nil {
			return nil, false, false, err
		}
	}
	return student, firstSeen, reappeared, nil
}

// applyTotals overwrites the learner's running totals with the payload's.
// Last write wins; both heartbeat and progress payloads carry them.
func (a *ingestor) applyTotals(ctx context.Context, tx *gorm.DB, student *types.Student, env envelope) error {
	count, _ := normalizeCompleted(env.Completed)

	student.CompletedCount = count
	student.TotalPoints = env.Points
	student.ProgressPercent = percent(count, a.cfg.TotalExercises)
	_, err := a.students.Upsert(ctx, tx, student)
	return err
}

func (a *ingestor) applyProgress(ctx context.Context, tx *gorm.DB, student *types.Student, env envelope) error {
	if err := a.applyTotals(ctx, tx, student, env); err != nil {
		return err
	}

	a.notifier.Notify(sse.Message{
		Channel: sse.ChannelDashboard,
		Event:   sse.EventProgressUpdated,
		Data: map[string]any{
			"document":         student.Document,
			"completed_count":  student.CompletedCount,
			"total_points":     student.TotalPoints,
			"progress_percent": student.ProgressPercent,
		},
	})
	return nil
}

func (a *ingestor) applyFlagSubmit(ctx context.Context, tx *gorm.DB, student *types.Student, env envelope, now time.Time) error {
	if env.ExerciseID <= 0 {
		a.log.Debug("dropping flag_submit without exercise id", "document", student.Document)
		return nil
	}

	inserted, err := a.completions.Insert(ctx, tx, &types.Completion{
		StudentID:    student.ID,
		Document:     student.Document,
		ExerciseID:   env.ExerciseID,
		ExerciseName: env.ExerciseName,
		Points:       env.PointsAwarded,
		CompletedAt:  now,
	})
	if err != nil {
		return err
	}

	student.CompletedCount = env.CompletedCount
	student.TotalPoints = env.TotalPoints
	student.ProgressPercent = percent(env.CompletedCount, a.cfg.TotalExercises)
	if _, err := a.students.Upsert(ctx, tx, student); err != nil {
		return err
	}

	if inserted {
		a.notifier.Notify(sse.Message{
			Channel: sse.ChannelDashboard,
			Event:   sse.EventFlagCaptured,
			Data: map[string]any{
				"document":       student.Document,
				"exercise_id":    env.ExerciseID,
				"exercise_name":  env.ExerciseName,
				"points_awarded": env.PointsAwarded,
				"total_points":   env.TotalPoints,
			},
		})
	}
	return nil
}

// normalizeCompleted accepts both progress dialects: a plain count or
// the full list of completed exercise ids.
func normalizeCompleted(raw json.RawMessage) (count int, ids []int) {
	if len(raw) == 0 {
		return 0, nil
	}
	if err := json.Unmarshal(raw, &ids); err == nil {
		return len(ids), ids
	}
	if err := json.Unmarshal(raw, &count); err == nil && count >= 0 {
		return count, nil
	}
	return 0, nil
}

func percent(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}
