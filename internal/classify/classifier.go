package classify

import (
	"context"
	"sort"
	"time"

	"github.com/outcomely/attribution-engine/internal/attribution"
	"github.com/outcomely/attribution-engine/pkg/enums"
)

// Influence is the classification result for one channel: how the channel
// contributed to an outcome and which source ids carry the credit, ordered
// most-recent-first. Values are copies; callers never share state with the
// window store.
type Influence struct {
	Channel enums.Channel
	Type    enums.InfluenceType
	IDs     []string
}

// WindowStore is the attribution state the classifier reads. ConsumeDirect is
// an atomic read-and-clear of the one-shot direct-open signal.
type WindowStore interface {
	Policy(channel enums.Channel) attribution.Policy
	ConsumeDirect(ctx context.Context, channel enums.Channel) (string, bool, error)
	History(ctx context.Context, channel enums.Channel) ([]attribution.Entry, error)
}

// Classifier turns window-store state into per-channel influences.
type Classifier struct {
	store WindowStore
}

func New(store WindowStore) *Classifier {
	return &Classifier{store: store}
}

// Classify decides the channel's influence at time now. Precedence: channel
// kill switch, then the pending direct open, then window-filtered indirect
// history, then unattributed. The direct signal is consumed only when direct
// attribution is enabled for the channel.
func (c *Classifier) Classify(ctx context.Context, channel enums.Channel, now time.Time) (Influence, error) {
	policy := c.store.Policy(channel)
	if policy.Disabled() {
		return Influence{Channel: channel, Type: enums.InfluenceDisabled}, nil
	}

	if policy.EnableDirect {
		id, ok, err := c.store.ConsumeDirect(ctx, channel)
		if err != nil {
			return Influence{}, err
		}
		if ok {
			return Influence{Channel: channel, Type: enums.InfluenceDirect, IDs: []string{id}}, nil
		}
	}

	if policy.EnableIndirect {
		history, err := c.store.History(ctx, channel)
		if err != nil {
			return Influence{}, err
		}
		ids := IndirectIDs(now, policy, history)
		if len(ids) > 0 {
			return Influence{Channel: channel, Type: enums.InfluenceIndirect, IDs: ids}, nil
		}
	}

	if policy.EnableUnattributed {
		return Influence{Channel: channel, Type: enums.InfluenceUnattributed}, nil
	}
	return Influence{Channel: channel, Type: enums.InfluenceDisabled}, nil
}

// IndirectIDs filters history to entries still inside the attribution window
// at time now and orders them most-recent-first. Equal timestamps break by
// insertion order: the later insertion wins. The result is capped at the
// policy history limit.
func IndirectIDs(now time.Time, policy attribution.Policy, history []attribution.Entry) []string {
	eligible := make([]attribution.Entry, 0, len(history))
	// Walk from the newest insertion so a stable sort keeps later insertions
	// ahead of earlier ones on timestamp ties.
	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]
		if now.Sub(entry.ReceivedAt) <= policy.Window {
			eligible = append(eligible, entry)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].ReceivedAt.After(eligible[j].ReceivedAt)
	})

	if policy.HistoryLimit > 0 && len(eligible) > policy.HistoryLimit {
		eligible = eligible[:policy.HistoryLimit]
	}
	ids := make([]string, len(eligible))
	for i, entry := range eligible {
		ids[i] = entry.ID
	}
	return ids
}
