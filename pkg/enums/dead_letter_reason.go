package enums

// DeadLetterReason records why a pending send was abandoned.
type DeadLetterReason string

const (
	DeadLetterReasonMaxAttempts DeadLetterReason = "max_attempts"
	DeadLetterReasonPermanent   DeadLetterReason = "permanent_failure"
)

var validDeadLetterReasons = []DeadLetterReason{
	DeadLetterReasonMaxAttempts,
	DeadLetterReasonPermanent,
}

func (r DeadLetterReason) IsValid() bool {
	for _, candidate := range validDeadLetterReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
