package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/dockerlab-backend/internal/logger"
	"github.com/yungbote/dockerlab-backend/internal/types"
)

type SessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, session *types.Session) (*types.Session, error)
	GetActive(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) (*types.Session, error)
	CloseActive(ctx context.Context, tx *gorm.DB, studentID uuid.UUID, end time.Time) error
	GetByStudentID(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.Session, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	repoLog := baseLog.With("repo", "SessionRepo")
	return &sessionRepo{db: db, log: repoLog}
}

func (r *sessionRepo) Create(ctx context.Context, tx *gorm.DB, session *types.Session) (*types.Session, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if session == nil {
		return nil, errors.New("session required")
	}

	if err := transaction.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// GetActive returns (nil, nil) when the learner has no open session.
func (r *sessionRepo) GetActive(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) (*types.Session, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if studentID == uuid.Nil {
		return nil, nil
	}

	var result types.Session
	if err := transaction.WithContext(ctx).
		Where("student_id = ? AND is_active = ?", studentID, true).
		Order("session_start DESC").
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

// CloseActive ends every open session of the learner. Closing more than
// one only happens after a crash left strays behind.
func (r *sessionRepo) CloseActive(ctx context.Context, tx *gorm.DB, studentID uuid.UUID, end time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if studentID == uuid.Nil {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Model(&types.Session{}).
		Where("student_id = ? AND is_active = ?", studentID, true).
		Updates(map[string]interface{}{
			"is_active":   false,
			"session_end": end,
		}).Error; err != nil {
		return err
	}
	return nil
}

func (r *sessionRepo) GetByStudentID(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.Session, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Session
	if studentID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("session_start DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
