package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TelemetryEvent is the append-only record of every message the
// aggregator accepted. Rows age out via the retention sweeper.
type TelemetryEvent struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudentID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"student_id"`
	Student    *Student       `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"student,omitempty"`
	Document   string         `gorm:"not null;index;column:document" json:"document"`
	EventType  string         `gorm:"not null;index;column:event_type" json:"event_type"`
	Topic      string         `gorm:"column:topic" json:"topic"`
	Payload    datatypes.JSON `gorm:"type:jsonb;column:payload" json:"payload"`
	ReceivedAt time.Time      `gorm:"not null;index;column:received_at" json:"received_at"`
}

func (TelemetryEvent) TableName() string { return "telemetry_event" }
