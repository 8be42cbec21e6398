package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/dockerlab-backend/internal/logger"
	"github.com/yungbote/dockerlab-backend/internal/types"
)

// ActivityBucket is one hour of ingested event volume.
type ActivityBucket struct {
	Bucket time.Time `gorm:"column:bucket" json:"bucket"`
	Events int64     `gorm:"column:events" json:"events"`
}

type TelemetryEventRepo interface {
	Append(ctx context.Context, tx *gorm.DB, event *types.TelemetryEvent) error
	GetRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.TelemetryEvent, error)
	HourlyActivity(ctx context.Context, tx *gorm.DB, since time.Time) ([]ActivityBucket, error)
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type telemetryEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTelemetryEventRepo(db *gorm.DB, baseLog *logger.Logger) TelemetryEventRepo {
	repoLog := baseLog.With("repo", "TelemetryEventRepo")
	return &telemetryEventRepo{db: db, log: repoLog}
}

func (r *telemetryEventRepo) Append(ctx context.Context, tx *gorm.DB, event *types.TelemetryEvent) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if event == nil {
		return nil
	}

	if err := transaction.WithContext(ctx).Create(event).Error; err != nil {
		return err
	}
	return nil
}

func (r *telemetryEventRepo) GetRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.TelemetryEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if limit <= 0 {
		limit = 50
	}

	var results []*types.TelemetryEvent
	if err := transaction.WithContext(ctx).
		Order("received_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *telemetryEventRepo) HourlyActivity(ctx context.Context, tx *gorm.DB, since time.Time) ([]ActivityBucket, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []ActivityBucket
	if err := transaction.WithContext(ctx).
		Model(&types.TelemetryEvent{}).
		Select("DATE_TRUNC('hour', received_at) AS bucket, COUNT(*) AS events").
		Where("received_at >= ?", since).
		Group("bucket").
		Order("bucket ASC").
		Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *telemetryEventRepo) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Where("received_at < ?", cutoff).
		Delete(&types.TelemetryEvent{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
