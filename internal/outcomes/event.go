package outcomes

import "encoding/json"

// SourceBody lists the contributing source ids per channel, most-recent-first.
// Both arrays always serialize, even when empty; the collector distinguishes
// "no ids" from "field missing".
type SourceBody struct {
	NotificationIDs []string `json:"notification_ids"`
	InAppMessageIDs []string `json:"in_app_message_ids"`
}

func (b SourceBody) MarshalJSON() ([]byte, error) {
	type alias SourceBody
	a := alias(b)
	if a.NotificationIDs == nil {
		a.NotificationIDs = []string{}
	}
	if a.InAppMessageIDs == nil {
		a.InAppMessageIDs = []string{}
	}
	return json.Marshal(a)
}

// IsEmpty reports whether no channel contributed any id.
func (b *SourceBody) IsEmpty() bool {
	return b == nil || (len(b.NotificationIDs) == 0 && len(b.InAppMessageIDs) == 0)
}

// Source splits contributing ids by attribution kind. A nil body means no
// channel produced that kind of influence.
type Source struct {
	Direct   *SourceBody `json:"direct,omitempty"`
	Indirect *SourceBody `json:"indirect,omitempty"`
}

// Event is one attributed outcome as sent to the remote collector. Weight and
// Timestamp serialize only when positive; deserializing an omitted field
// yields the zero value again.
type Event struct {
	Name      string  `json:"id"`
	Source    *Source `json:"sources,omitempty"`
	Weight    float64 `json:"weight,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// IsUnattributed reports whether the event carries no influence ids at all.
func (e Event) IsUnattributed() bool {
	if e.Source == nil {
		return true
	}
	return e.Source.Direct == nil && e.Source.Indirect == nil
}
