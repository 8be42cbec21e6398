package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/dockerlab-backend/internal/logger"
	"github.com/yungbote/dockerlab-backend/internal/types"
)

// ExerciseTally is one row of the per-exercise completion breakdown.
type ExerciseTally struct {
	ExerciseID  int   `gorm:"column:exercise_id" json:"exercise_id"`
	Completions int64 `gorm:"column:completions" json:"completions"`
}

type CompletionRepo interface {
	Insert(ctx context.Context, tx *gorm.DB, completion *types.Completion) (bool, error)
	GetByStudentID(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.Completion, error)
	CountByExercise(ctx context.Context, tx *gorm.DB) ([]ExerciseTally, error)
	Count(ctx context.Context, tx *gorm.DB) (int64, error)
}

type completionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCompletionRepo(db *gorm.DB, baseLog *logger.Logger) CompletionRepo {
	repoLog := baseLog.With("repo", "CompletionRepo")
	return &completionRepo{db: db, log: repoLog}
}

// Insert records one completion and reports whether a row was written.
// Replays of the same (student, exercise) pair land on the unique index
// and are dropped without error.
func (r *completionRepo) Insert(ctx context.Context, tx *gorm.DB, completion *types.Completion) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if completion == nil {
		return false, nil
	}

	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "exercise_id"}},
			DoNothing: true,
		}).
		Create(completion)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *completionRepo) GetByStudentID(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.Completion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Completion
	if studentID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("exercise_id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *completionRepo) CountByExercise(ctx context.Context, tx *gorm.DB) ([]ExerciseTally, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []ExerciseTally
	if err := transaction.WithContext(ctx).
		Model(&types.Completion{}).
		Select("exercise_id, COUNT(*) AS completions").
		Group("exercise_id").
		Order("exercise_id ASC").
		Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *completionRepo) Count(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Completion{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
