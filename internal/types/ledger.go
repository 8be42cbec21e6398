package types

import "time"

// LedgerStudent is the learner-side row backing the progress ledger. It
// lives in the lab's local SQLite file, not in the monitor's Postgres.
// Points must always equal the sum of this learner's LedgerCompletion
// points; the ledger store recomputes it inside the crediting
// transaction.
type LedgerStudent struct {
	StudentID string    `gorm:"primaryKey;column:student_id" json:"student_id"`
	Points    int       `gorm:"not null;default:0;column:points" json:"points"`
	StartedAt time.Time `gorm:"not null;column:started_at" json:"started_at"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at" json:"updated_at"`
}

func (LedgerStudent) TableName() string { return "ledger_student" }

// LedgerCompletion records one credited exercise. The composite primary
// key makes double-credit structurally impossible.
type LedgerCompletion struct {
	StudentID   string    `gorm:"primaryKey;column:student_id" json:"student_id"`
	ExerciseID  int       `gorm:"primaryKey;column:exercise_id" json:"exercise_id"`
	Points      int       `gorm:"not null;column:points" json:"points"`
	CompletedAt time.Time `gorm:"not null;column:completed_at" json:"completed_at"`
}

func (LedgerCompletion) TableName() string { return "ledger_completion" }
