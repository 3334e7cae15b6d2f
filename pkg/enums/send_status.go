package enums

import "fmt"

// SendStatus tracks a pending send through the dispatch queue.
type SendStatus string

const (
	SendStatusQueued  SendStatus = "queued"
	SendStatusSending SendStatus = "sending"
	SendStatusSent    SendStatus = "sent"
	// SendStatusFailedPermanent marks a send the collector rejected as malformed.
	SendStatusFailedPermanent SendStatus = "failed_permanent"
)

var validSendStatuses = []SendStatus{
	SendStatusQueued,
	SendStatusSending,
	SendStatusSent,
	SendStatusFailedPermanent,
}

// IsTerminal reports whether the status ends the pending send's lifecycle.
func (s SendStatus) IsTerminal() bool {
	return s == SendStatusSent || s == SendStatusFailedPermanent
}

// IsValid reports whether the value matches the canonical send status enum.
func (s SendStatus) IsValid() bool {
	for _, candidate := range validSendStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSendStatus converts raw input into SendStatus.
func ParseSendStatus(value string) (SendStatus, error) {
	for _, candidate := range validSendStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid send status %q", value)
}
