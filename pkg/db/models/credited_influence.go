package models

import (
	"time"

	"github.com/outcomely/attribution-engine/pkg/enums"
)

// CreditedInfluence marks that an influence source already received credit for
// a uniquely counted outcome. The triple is the primary key; rows are written
// once and removed only by a full local-data reset.
type CreditedInfluence struct {
	OutcomeName string        `gorm:"column:outcome_name;type:text;primaryKey"`
	InfluenceID string        `gorm:"column:influence_id;type:text;primaryKey"`
	Channel     enums.Channel `gorm:"column:channel;type:text;primaryKey"`
	CreatedAt   time.Time     `gorm:"column:created_at;autoCreateTime"`
}

func (CreditedInfluence) TableName() string {
	return "credited_influences"
}
