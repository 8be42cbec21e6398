// Package ledger is the durable, learner-owned record of completed
// exercises. It is the single effect target of the verification engine:
// nothing else writes completions or points.
package ledger

import (
	"context"
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/dockerlab-backend/internal/logger"
	"github.com/yungbote/dockerlab-backend/internal/types"
)

// Snapshot is a read-only view of one learner's ledger.
type Snapshot struct {
	StudentID   string
	Completed   []int
	CompletedAt map[int]time.Time
	Points      int
	StartedAt   time.Time
}

func (s Snapshot) CompletedCount() int { return len(s.Completed) }

func (s Snapshot) HasCompleted(exerciseID int) bool {
	for _, id := range s.Completed {
		if id == exerciseID {
			return true
		}
	}
	return false
}

type Store interface {
	// Ensure creates the learner's ledger row on first interaction and
	// returns the current snapshot.
	Ensure(ctx context.Context, studentID string) (Snapshot, error)
	// Snapshot returns the current state without creating anything; a
	// learner with no ledger yields an empty snapshot.
	Snapshot(ctx context.Context, studentID string) (Snapshot, error)
	// IsCompleted reports whether the exercise is already credited. It
	// never creates records.
	IsCompleted(ctx context.Context, studentID string, exerciseID int) (bool, error)
	// Credit atomically appends a completion and recomputes the point
	// total. credited is false when the exercise was already present
	// (concurrent retry of the same token).
	Credit(ctx context.Context, studentID string, exerciseID, points int) (snap Snapshot, credited bool, err error)
	// Remove deletes the learner and every completion.
	Remove(ctx context.Context, studentID string) error
}

type store struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStore(db *gorm.DB, baseLog *logger.Logger) Store {
	return &store{db: db, log: baseLog.With("component", "LedgerStore")}
}

func (s *store) Ensure(ctx context.Context, studentID string) (Snapshot, error) {
	now := time.Now().UTC()
	row := types.LedgerStudent{StudentID: studentID, StartedAt: now, UpdatedAt: now}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error; err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(ctx, studentID)
}

func (s *store) Snapshot(ctx context.Context, studentID string) (Snapshot, error) {
	return s.snapshotIn(ctx, s.db, studentID)
}

func (s *store) snapshotIn(ctx context.Context, tx *gorm.DB, studentID string) (Snapshot, error) {
	snap := Snapshot{StudentID: studentID, CompletedAt: map[int]time.Time{}}

	var student types.LedgerStudent
	err := tx.WithContext(ctx).
		Where("student_id = ?", studentID).
		First(&student).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return snap, nil
	case err != nil:
		return snap, err
	}
	snap.Points = student.Points
	snap.StartedAt = student.StartedAt

	var completions []types.LedgerCompletion
	if err := tx.WithContext(ctx).
		Where("student_id = ?", studentID).
		Find(&completions).Error; err != nil {
		return snap, err
	}
	sort.Slice(completions, func(i, j int) bool {
		if completions[i].CompletedAt.Equal(completions[j].CompletedAt) {
			return completions[i].ExerciseID < completions[j].ExerciseID
		}
		return completions[i].CompletedAt.Before(completions[j].CompletedAt)
	})
	for _, c := range completions {
		snap.Completed = append(snap.Completed, c.ExerciseID)
		snap.CompletedAt[c.ExerciseID] = c.CompletedAt
	}
	return snap, nil
}

func (s *store) IsCompleted(ctx context.Context, studentID string, exerciseID int) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&types.LedgerCompletion{}).
		Where("student_id = ? AND exercise_id = ?", studentID, exerciseID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *store) Credit(ctx context.Context, studentID string, exerciseID, points int) (Snapshot, bool, error) {
	var snap Snapshot
	credited := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		student := types.LedgerStudent{StudentID: studentID, StartedAt: now, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&student).Error; err != nil {
			return err
		}

		completion := types.LedgerCompletion{
			StudentID:   studentID,
			ExerciseID:  exerciseID,
			Points:      points,
			CompletedAt: now,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&completion)
		if res.Error != nil {
			return res.Error
		}
		credited = res.RowsAffected > 0

		// The point total is always recomputed from the completion rows,
		// so the sum invariant holds even if a previous write was
		// interrupted.
		var total int64
		if err := tx.Model(&types.LedgerCompletion{}).
			Where("student_id = ?", studentID).
			Select("COALESCE(SUM(points), 0)").
			Scan(&total).Error; err != nil {
			return err
		}
		if err := tx.Model(&types.LedgerStudent{}).
			Where("student_id = ?", studentID).
			Updates(map[string]interface{}{"points": total, "updated_at": now}).Error; err != nil {
			return err
		}

		var err error
		snap, err = s.snapshotIn(ctx, tx, studentID)
		return err
	})
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, credited, nil
}

func (s *store) Remove(ctx context.Context, studentID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_id = ?", studentID).
			Delete(&types.LedgerCompletion{}).Error; err != nil {
			return err
		}
		return tx.Where("student_id = ?", studentID).
			Delete(&types.LedgerStudent{}).Error
	})
}
