package attribution

import "time"

// Policy configures how a single channel attributes outcomes. A policy change
// applies to future classifications only; stored history is never rewritten.
type Policy struct {
	EnableDirect       bool          `json:"enable_direct"`
	EnableIndirect     bool          `json:"enable_indirect"`
	EnableUnattributed bool          `json:"enable_unattributed"`
	HistoryLimit       int           `json:"history_limit" validate:"gte=1"`
	Window             time.Duration `json:"window" validate:"gt=0"`
}

// Disabled reports the channel-level kill switch: every classification path off.
func (p Policy) Disabled() bool {
	return !p.EnableDirect && !p.EnableIndirect && !p.EnableUnattributed
}

// Entry is one received influence source in a channel's history ring.
type Entry struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
}
