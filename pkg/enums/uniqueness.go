package enums

import "fmt"

// Uniqueness controls how often an outcome may credit the same source.
type Uniqueness string

const (
	// UniquenessOncePerSource counts an outcome at most once per (source, channel).
	UniquenessOncePerSource Uniqueness = "once_per_source"
	// UniquenessEveryTime counts every recording.
	UniquenessEveryTime Uniqueness = "every_time"
)

var validUniqueness = []Uniqueness{
	UniquenessOncePerSource,
	UniquenessEveryTime,
}

// IsValid reports whether the value matches the canonical uniqueness enum.
func (u Uniqueness) IsValid() bool {
	for _, candidate := range validUniqueness {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseUniqueness converts raw input into Uniqueness.
func ParseUniqueness(value string) (Uniqueness, error) {
	for _, candidate := range validUniqueness {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid uniqueness %q", value)
}
