package ledger

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/dockerlab-backend/internal/logger"
	"github.com/yungbote/dockerlab-backend/internal/types"
)

func testStore(t *testing.T) Store {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&types.LedgerStudent{}, &types.LedgerCompletion{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(db, log)
}

func TestEnsureCreatesOnce(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first, err := s.Ensure(ctx, "A1")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if first.StartedAt.IsZero() {
		t.Fatalf("Ensure did not stamp started_at")
	}

	second, err := s.Ensure(ctx, "A1")
	if err != nil {
		t.Fatalf("Ensure again: %v", err)
	}
	if !second.StartedAt.Equal(first.StartedAt) {
		t.Fatalf("started_at changed on repeat Ensure: %v vs %v", first.StartedAt, second.StartedAt)
	}
}

func TestSnapshotUnknownStudentIsEmpty(t *testing.T) {
	s := testStore(t)
	snap, err := s.Snapshot(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.CompletedCount() != 0 || snap.Points != 0 || !snap.StartedAt.IsZero() {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestCreditAccumulatesPoints(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	snap, credited, err := s.Credit(ctx, "A1", 1, 10)
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if !credited {
		t.Fatalf("first credit not applied")
	}
	if snap.Points != 10 || snap.CompletedCount() != 1 {
		t.Fatalf("after first credit: %+v", snap)
	}

	snap, credited, err = s.Credit(ctx, "A1", 3, 15)
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if !credited || snap.Points != 25 || snap.CompletedCount() != 2 {
		t.Fatalf("after second credit: credited=%v %+v", credited, snap)
	}
	if !snap.HasCompleted(1) || !snap.HasCompleted(3) {
		t.Fatalf("completed set wrong: %v", snap.Completed)
	}
}

func TestCreditIsIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, _, err := s.Credit(ctx, "A1", 1, 10); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	snap, credited, err := s.Credit(ctx, "A1", 1, 10)
	if err != nil {
		t.Fatalf("Credit replay: %v", err)
	}
	if credited {
		t.Fatalf("replayed credit reported as applied")
	}
	if snap.Points != 10 || snap.CompletedCount() != 1 {
		t.Fatalf("replayed credit changed state: %+v", snap)
	}
}

// Point total must equal the sum of completed exercises' points after any
// sequence of submissions.
func TestPointInvariant(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	credits := []struct{ id, points int }{
		{1, 10}, {2, 10}, {1, 10}, {4, 15}, {2, 10}, {5, 20},
	}
	for _, c := range credits {
		if _, _, err := s.Credit(ctx, "A1", c.id, c.points); err != nil {
			t.Fatalf("Credit(%d): %v", c.id, err)
		}
	}
	snap, err := s.Snapshot(ctx, "A1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	sum := 0
	for _, id := range snap.Completed {
		switch id {
		case 1, 2:
			sum += 10
		case 4:
			sum += 15
		case 5:
			sum += 20
		}
	}
	if snap.Points != sum {
		t.Fatalf("point invariant broken: points=%d sum=%d", snap.Points, sum)
	}
	if snap.CompletedCount() != 4 {
		t.Fatalf("completed count: want=4 got=%d", snap.CompletedCount())
	}
}

func TestRemoveCascades(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, _, err := s.Credit(ctx, "A1", 1, 10); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if err := s.Remove(ctx, "A1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	snap, err := s.Snapshot(ctx, "A1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.CompletedCount() != 0 || snap.Points != 0 || !snap.StartedAt.IsZero() {
		t.Fatalf("remove left state behind: %+v", snap)
	}
	done, err := s.IsCompleted(ctx, "A1", 1)
	if err != nil {
		t.Fatalf("IsCompleted: %v", err)
	}
	if done {
		t.Fatalf("completion survived removal")
	}
}
