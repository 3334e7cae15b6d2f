package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/outcomely/attribution-engine/pkg/enums"
)

// DispatchDeadLetter preserves pending sends abandoned by the dispatch worker,
// either after a permanent collector rejection or after exhausting retries.
type DispatchDeadLetter struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	SendID       uuid.UUID              `gorm:"column:send_id;type:uuid;not null;index"`
	Payload      json.RawMessage        `gorm:"column:payload;not null"`
	Reason       enums.DeadLetterReason `gorm:"column:reason;type:text;not null"`
	ErrorMessage *string                `gorm:"column:error_message"`
	AttemptCount int                    `gorm:"column:attempt_count;not null;default:0"`
	FailedAt     time.Time              `gorm:"column:failed_at;not null"`
}

func (DispatchDeadLetter) TableName() string {
	return "dispatch_dead_letters"
}
