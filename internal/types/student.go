package types

import (
	"time"

	"github.com/google/uuid"
)

// Student is the aggregator-owned mirror of one learner. It is derived
// entirely from received telemetry; the learner's own ledger stays
// authoritative for completion facts.
type Student struct {
	ID              uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Document        string    `gorm:"uniqueIndex;not null;column:document" json:"document"`
	Status          string    `gorm:"not null;default:offline;column:status" json:"status"`
	CompletedCount  int       `gorm:"not null;default:0;column:completed_count" json:"completed_count"`
	TotalPoints     int       `gorm:"not null;default:0;column:total_points" json:"total_points"`
	ProgressPercent float64   `gorm:"not null;default:0;column:progress_percent" json:"progress_percent"`
	FirstSeen       time.Time `gorm:"not null;column:first_seen" json:"first_seen"`
	LastSeen        time.Time `gorm:"not null;column:last_seen" json:"last_seen"`
	CreatedAt       time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Student) TableName() string { return "student" }
