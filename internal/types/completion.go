package types

import (
	"time"

	"github.com/google/uuid"
)

// Completion is the audit record of one exercise claimed by one learner.
// The (student, exercise) pair is unique so replayed flag_submit events
// collapse into a single row.
type Completion struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudentID    uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_completion_student_exercise" json:"student_id"`
	Student      *Student  `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"student,omitempty"`
	Document     string    `gorm:"not null;index;column:document" json:"document"`
	ExerciseID   int       `gorm:"not null;uniqueIndex:idx_completion_student_exercise;column:exercise_id" json:"exercise_id"`
	ExerciseName string    `gorm:"column:exercise_name" json:"exercise_name"`
	Points       int       `gorm:"not null;default:0;column:points" json:"points"`
	CompletedAt  time.Time `gorm:"not null;column:completed_at" json:"completed_at"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Completion) TableName() string { return "completion" }
