package types

import (
	"time"

	"github.com/google/uuid"
)

// Session tracks one stretch of learner activity as seen by the
// aggregator. At most one session per learner is active at a time;
// opening a new one closes the previous.
type Session struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudentID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"student_id"`
	Student      *Student   `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"student,omitempty"`
	Document     string     `gorm:"not null;index;column:document" json:"document"`
	SessionStart time.Time  `gorm:"not null;column:session_start" json:"session_start"`
	SessionEnd   *time.Time `gorm:"column:session_end" json:"session_end,omitempty"`
	IsActive     bool       `gorm:"not null;default:true;index;column:is_active" json:"is_active"`
}

func (Session) TableName() string { return "session" }
