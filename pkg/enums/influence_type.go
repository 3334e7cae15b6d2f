package enums

import "fmt"

// InfluenceType classifies how a channel contributed to an outcome.
type InfluenceType string

const (
	// InfluenceDirect credits the single source the user just interacted with.
	InfluenceDirect InfluenceType = "direct"
	// InfluenceIndirect credits sources received inside the attribution window.
	InfluenceIndirect InfluenceType = "indirect"
	// InfluenceUnattributed means no source qualified while attribution stays enabled.
	InfluenceUnattributed InfluenceType = "unattributed"
	// InfluenceDisabled means classification is switched off for the channel.
	InfluenceDisabled InfluenceType = "disabled"
)

var validInfluenceTypes = []InfluenceType{
	InfluenceDirect,
	InfluenceIndirect,
	InfluenceUnattributed,
	InfluenceDisabled,
}

// IsAttributed reports whether the type carries influence ids.
func (i InfluenceType) IsAttributed() bool {
	return i == InfluenceDirect || i == InfluenceIndirect
}

// IsValid reports whether the value matches the canonical influence enum.
func (i InfluenceType) IsValid() bool {
	for _, candidate := range validInfluenceTypes {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseInfluenceType converts raw input into InfluenceType.
func ParseInfluenceType(value string) (InfluenceType, error) {
	for _, candidate := range validInfluenceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid influence type %q", value)
}
