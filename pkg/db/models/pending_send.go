package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/outcomely/attribution-engine/pkg/enums"
)

// PendingSend is one durably queued outcome event awaiting delivery to the
// remote collector. Rows drain strictly FIFO by (enqueued_at, id).
type PendingSend struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Payload      json.RawMessage  `gorm:"column:payload;not null"`
	Status       enums.SendStatus `gorm:"column:status;type:text;not null;default:queued;index"`
	AttemptCount int              `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string          `gorm:"column:last_error"`
	EnqueuedAt   time.Time        `gorm:"column:enqueued_at;not null;index"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (PendingSend) TableName() string {
	return "pending_sends"
}
