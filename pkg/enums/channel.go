package enums

import "fmt"

// Channel identifies the influence channel a source arrived on.
type Channel string

const (
	ChannelIAM          Channel = "iam"
	ChannelNotification Channel = "notification"
)

var validChannels = []Channel{
	ChannelIAM,
	ChannelNotification,
}

// Channels returns the closed set of channels in a stable order.
func Channels() []Channel {
	out := make([]Channel, len(validChannels))
	copy(out, validChannels)
	return out
}

// IsValid reports whether the value matches the canonical channel enum.
func (c Channel) IsValid() bool {
	for _, candidate := range validChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseChannel converts raw input into Channel.
func ParseChannel(value string) (Channel, error) {
	for _, candidate := range validChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid channel %q", value)
}
