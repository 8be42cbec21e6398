package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/dockerlab-backend/internal/catalog"
	"github.com/yungbote/dockerlab-backend/internal/logger"
	"github.com/yungbote/dockerlab-backend/internal/repos"
	"github.com/yungbote/dockerlab-backend/internal/sse"
	"github.com/yungbote/dockerlab-backend/internal/types"
)

type stubStudents struct {
	rows []*types.Student
}

func (s *stubStudents) Upsert(_ context.Context, _ *gorm.DB, student *types.Student) (*types.Student, error) {
	return student, nil
}

func (s *stubStudents) GetByDocument(_ context.Context, _ *gorm.DB, document string) (*types.Student, error) {
	for _, row := range s.rows {
		if row.Document == document {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubStudents) List(_ context.Context, _ *gorm.DB) ([]*types.Student, error) {
	out := make([]*types.Student, 0, len(s.rows))
	for _, row := range s.rows {
		cp := *row
		out = append(out, &cp)
	}
	return out, nil
}

func (s *stubStudents) DeleteByDocument(_ context.Context, _ *gorm.DB, document string) (bool, error) {
	for i, row := range s.rows {
		if row.Document == document {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type stubCompletions struct {
	tallies []repos.ExerciseTally
	total   int64
}

func (s *stubCompletions) Insert(_ context.Context, _ *gorm.DB, _ *types.Completion) (bool, error) {
	return false, nil
}

func (s *stubCompletions) GetByStudentID(_ context.Context, _ *gorm.DB, _ uuid.UUID) ([]*types.Completion, error) {
	return nil, nil
}

func (s *stubCompletions) CountByExercise(_ context.Context, _ *gorm.DB) ([]repos.ExerciseTally, error) {
	return s.tallies, nil
}

func (s *stubCompletions) Count(_ context.Context, _ *gorm.DB) (int64, error) {
	return s.total, nil
}

type stubEvents struct{}

func (stubEvents) Append(_ context.Context, _ *gorm.DB, _ *types.TelemetryEvent) error { return nil }
func (stubEvents) GetRecent(_ context.Context, _ *gorm.DB, _ int) ([]*types.TelemetryEvent, error) {
	return nil, nil
}
func (stubEvents) HourlyActivity(_ context.Context, _ *gorm.DB, _ time.Time) ([]repos.ActivityBucket, error) {
	return nil, nil
}
func (stubEvents) DeleteOlderThan(_ context.Context, _ *gorm.DB, _ time.Time) (int64, error) {
	return 0, nil
}

type recordingNotifier struct {
	msgs []sse.Message
}

func (n *recordingNotifier) Notify(msg sse.Message) {
	n.msgs = append(n.msgs, msg)
}

func svcLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func svcCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	return cat
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Now().UTC()
	timeout := 90 * time.Second

	if got := effectiveStatus(now.Add(-30*time.Second), timeout, now); got != "online" {
		t.Fatalf("fresh activity: got %q", got)
	}
	// The boundary itself counts as offline.
	if got := effectiveStatus(now.Add(-90*time.Second), timeout, now); got != "offline" {
		t.Fatalf("exact timeout: got %q", got)
	}
	if got := effectiveStatus(now.Add(-time.Hour), timeout, now); got != "offline" {
		t.Fatalf("stale activity: got %q", got)
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	now := time.Now().UTC()
	students := &stubStudents{rows: []*types.Student{
		{Document: "late_tie", TotalPoints: 50, CompletedCount: 3, FirstSeen: now.Add(-time.Hour), LastSeen: now},
		{Document: "leader", TotalPoints: 80, CompletedCount: 5, FirstSeen: now.Add(-2 * time.Hour), LastSeen: now},
		{Document: "early_tie", TotalPoints: 50, CompletedCount: 3, FirstSeen: now.Add(-3 * time.Hour), LastSeen: now},
		{Document: "more_done", TotalPoints: 50, CompletedCount: 4, FirstSeen: now, LastSeen: now},
	}}

	svc := NewLeaderboardService(nil, svcLogger(t), students, 90*time.Second)
	entries, err := svc.Top(context.Background(), 0)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}

	want := []string{"leader", "more_done", "early_tie", "late_tie"}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, doc := range want {
		if entries[i].Document != doc {
			t.Fatalf("rank %d = %q, want %q", i+1, entries[i].Document, doc)
		}
		if entries[i].Rank != i+1 {
			t.Fatalf("rank field = %d, want %d", entries[i].Rank, i+1)
		}
	}
}

func TestLeaderboardLimit(t *testing.T) {
	now := time.Now().UTC()
	students := &stubStudents{rows: []*types.Student{
		{Document: "a", TotalPoints: 30, FirstSeen: now, LastSeen: now},
		{Document: "b", TotalPoints: 20, FirstSeen: now, LastSeen: now},
		{Document: "c", TotalPoints: 10, FirstSeen: now, LastSeen: now},
	}}

	svc := NewLeaderboardService(nil, svcLogger(t), students, 90*time.Second)
	entries, err := svc.Top(context.Background(), 2)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(entries) != 2 || entries[0].Document != "a" {
		t.Fatalf("limited board wrong: %+v", entries)
	}
}

func TestStatisticsEmptyCohort(t *testing.T) {
	cat := svcCatalog(t)
	svc := NewStatisticsService(nil, svcLogger(t), cat, &stubStudents{}, &stubCompletions{}, stubEvents{}, 90*time.Second)

	stats, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if stats.TotalStudents != 0 || stats.OnlineStudents != 0 {
		t.Fatalf("empty cohort counted students: %+v", stats)
	}
	if stats.AverageProgress != 0 || stats.CompletionRate != 0 {
		t.Fatalf("empty cohort produced nonzero rates: %+v", stats)
	}
	if stats.TotalExercises != cat.Len() || stats.MaxPoints != cat.TotalPoints() {
		t.Fatalf("catalog totals wrong: %+v", stats)
	}
}

func TestStatisticsOverview(t *testing.T) {
	cat := svcCatalog(t)
	now := time.Now().UTC()
	students := &stubStudents{rows: []*types.Student{
		{Document: "A1", TotalPoints: 20, CompletedCount: 2, ProgressPercent: 100.0 / 7.5, LastSeen: now},
		{Document: "B2", TotalPoints: 10, CompletedCount: 1, ProgressPercent: 100.0 / 15, LastSeen: now.Add(-time.Hour)},
	}}
	completions := &stubCompletions{
		total: 3,
		tallies: []repos.ExerciseTally{
			{ExerciseID: 1, Completions: 2},
			{ExerciseID: 2, Completions: 1},
		},
	}

	svc := NewStatisticsService(nil, svcLogger(t), cat, students, completions, stubEvents{}, 90*time.Second)
	stats, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if stats.TotalStudents != 2 || stats.OnlineStudents != 1 {
		t.Fatalf("cohort counts wrong: %+v", stats)
	}
	if stats.TotalCompletions != 3 {
		t.Fatalf("total completions = %d, want 3", stats.TotalCompletions)
	}
	wantRate := 3.0 / float64(2*cat.Len()) * 100
	if diff := stats.CompletionRate - wantRate; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("completion rate = %v, want %v", stats.CompletionRate, wantRate)
	}
	if len(stats.CategoryBreakdown) == 0 {
		t.Fatalf("category breakdown missing")
	}
}

func TestPerExerciseCoversWholeCatalog(t *testing.T) {
	cat := svcCatalog(t)
	now := time.Now().UTC()
	students := &stubStudents{rows: []*types.Student{
		{Document: "A1", LastSeen: now},
		{Document: "B2", LastSeen: now},
	}}
	completions := &stubCompletions{tallies: []repos.ExerciseTally{{ExerciseID: 1, Completions: 2}}}

	svc := NewStatisticsService(nil, svcLogger(t), cat, students, completions, stubEvents{}, 90*time.Second)
	rows, err := svc.PerExercise(context.Background())
	if err != nil {
		t.Fatalf("PerExercise: %v", err)
	}
	if len(rows) != cat.Len() {
		t.Fatalf("got %d rows, want %d", len(rows), cat.Len())
	}
	if rows[0].Completions != 2 || rows[0].CompletionRate != 100 {
		t.Fatalf("exercise 1: %+v", rows[0])
	}
	if rows[1].Completions != 0 || rows[1].CompletionRate != 0 {
		t.Fatalf("untouched exercise must report zero: %+v", rows[1])
	}
}

func TestStudentServiceOnlineFilterAndRemove(t *testing.T) {
	now := time.Now().UTC()
	students := &stubStudents{rows: []*types.Student{
		{Document: "fresh", LastSeen: now},
		{Document: "stale", LastSeen: now.Add(-time.Hour)},
	}}
	notifier := &recordingNotifier{}
	svc := NewStudentService(nil, svcLogger(t), students, &stubCompletions{}, &stubSessions{}, notifier, 90*time.Second)
	ctx := context.Background()

	online, err := svc.ListOnline(ctx)
	if err != nil {
		t.Fatalf("ListOnline: %v", err)
	}
	if len(online) != 1 || online[0].Document != "fresh" {
		t.Fatalf("online filter wrong: %+v", online)
	}

	detail, err := svc.Get(ctx, "ghost")
	if err != nil || detail != nil {
		t.Fatalf("unknown student: got (%v, %v), want (nil, nil)", detail, err)
	}

	removed, err := svc.Remove(ctx, "stale")
	if err != nil || !removed {
		t.Fatalf("Remove: got (%v, %v)", removed, err)
	}
	removed, err = svc.Remove(ctx, "stale")
	if err != nil || removed {
		t.Fatalf("second Remove must be a no-op: got (%v, %v)", removed, err)
	}

	// Exactly one removal reached the dashboard; the no-op stayed silent.
	if len(notifier.msgs) != 1 || notifier.msgs[0].Event != sse.EventStudentRemoved {
		t.Fatalf("dashboard notifications = %+v, want one StudentRemoved", notifier.msgs)
	}
}

type stubSessions struct{}

func (stubSessions) Create(_ context.Context, _ *gorm.DB, session *types.Session) (*types.Session, error) {
	return session, nil
}
func (stubSessions) GetActive(_ context.Context, _ *gorm.DB, _ uuid.UUID) (*types.Session, error) {
	return nil, nil
}
func (stubSessions) CloseActive(_ context.Context, _ *gorm.DB, _ uuid.UUID, _ time.Time) error {
	return nil
}
func (stubSessions) GetByStudentID(_ context.Context, _ *gorm.DB, _ uuid.UUID) ([]*types.Session, error) {
	return nil, nil
}
