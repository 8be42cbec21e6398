package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/dockerlab-backend/internal/logger"
	"github.com/yungbote/dockerlab-backend/internal/types"
)

type StudentRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, student *types.Student) (*types.Student, error)
	GetByDocument(ctx context.Context, tx *gorm.DB, document string) (*types.Student, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.Student, error)
	DeleteByDocument(ctx context.Context, tx *gorm.DB, document string) (bool, error)
}

type studentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudentRepo(db *gorm.DB, baseLog *logger.Logger) StudentRepo {
	repoLog := baseLog.With("repo", "StudentRepo")
	return &studentRepo{db: db, log: repoLog}
}

// Upsert inserts the learner keyed by document or refreshes the mutable
// columns of the existing row. first_seen is insert-only so the original
// arrival time survives every later update.
func (r *studentRepo) Upsert(ctx context.Context, tx *gorm.DB, student *types.Student) (*types.Student, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if student == nil || student.Document == "" {
		return nil, errors.New("student with document required")
	}

	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "document"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "completed_count", "total_points", "progress_percent", "last_seen", "updated_at",
			}),
		}).
		Create(student).Error; err != nil {
		return nil, err
	}

	// Re-read so the caller sees the stored row (id, first_seen) after a
	// conflict update.
	return r.GetByDocument(ctx, transaction, student.Document)
}

// GetByDocument returns (nil, nil) when the learner is unknown.
func (r *studentRepo) GetByDocument(ctx context.Context, tx *gorm.DB, document string) (*types.Student, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if document == "" {
		return nil, nil
	}

	var result types.Student
	if err := transaction.WithContext(ctx).
		Where("document = ?", document).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *studentRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Student, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Student
	if err := transaction.WithContext(ctx).
		Order("document ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *studentRepo) DeleteByDocument(ctx context.Context, tx *gorm.DB, document string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if document == "" {
		return false, nil
	}

	res := transaction.WithContext(ctx).
		Where("document = ?", document).
		Delete(&types.Student{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
