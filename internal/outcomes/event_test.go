package outcomes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventOmitsZeroWeightAndTimestamp(t *testing.T) {
	event := Event{Name: "session_start"}

	raw, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Contains(t, decoded, "id")
	require.NotContains(t, decoded, "weight")
	require.NotContains(t, decoded, "timestamp")
	require.NotContains(t, decoded, "sources")

	var back Event
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, 0.0, back.Weight)
	require.Equal(t, int64(0), back.Timestamp)
}

func TestEventSerializesPositiveWeightAndTimestamp(t *testing.T) {
	event := Event{Name: "purchase", Weight: 9.99, Timestamp: 1700000000}

	raw, err := json.Marshal(event)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"purchase","weight":9.99,"timestamp":1700000000}`, string(raw))
}

func TestSourceBodyAlwaysSerializesArrays(t *testing.T) {
	event := Event{
		Name: "purchase",
		Source: &Source{
			Indirect: &SourceBody{NotificationIDs: []string{"N1"}},
		},
	}

	raw, err := json.Marshal(event)
	require.NoError(t, err)
	require.JSONEq(t,
		`{"id":"purchase","sources":{"indirect":{"notification_ids":["N1"],"in_app_message_ids":[]}}}`,
		string(raw))
}

func TestIsUnattributed(t *testing.T) {
	require.True(t, Event{Name: "x"}.IsUnattributed())
	require.True(t, Event{Name: "x", Source: &Source{}}.IsUnattributed())
	require.False(t, Event{
		Name:   "x",
		Source: &Source{Direct: &SourceBody{NotificationIDs: []string{"N1"}}},
	}.IsUnattributed())
}
