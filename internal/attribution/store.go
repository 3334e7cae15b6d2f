package attribution

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/outcomely/attribution-engine/pkg/errors"
	"github.com/outcomely/attribution-engine/pkg/enums"
)

// KV is the durable map collaborator backing persisted channel state.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	Del(ctx context.Context, keys ...string) error
	StateKey(parts ...string) string
}

type directOpen struct {
	ID       string    `json:"id"`
	OpenedAt time.Time `json:"opened_at"`
}

// channelState is the JSON document persisted per channel in the durable map.
type channelState struct {
	Policy  Policy      `json:"policy"`
	History []Entry     `json:"history"`
	Direct  *directOpen `json:"direct,omitempty"`
}

// Store holds per-channel attribution state: the policy, the bounded history
// ring, and the one-shot pending direct-open signal. All mutations for a
// channel are serialized behind the store mutex so a direct-open cannot be
// lost to a concurrent history append or classification.
type Store struct {
	mu       sync.Mutex
	kv       KV
	validate *validator.Validate
	state    map[enums.Channel]*channelState
}

// NewStore builds a Store seeded with the given default policies, then
// overlays any state previously persisted in the durable map so history and
// policy survive restarts.
func NewStore(ctx context.Context, kv KV, defaults map[enums.Channel]Policy) (*Store, error) {
	s := &Store{
		kv:       kv,
		validate: validator.New(),
		state:    make(map[enums.Channel]*channelState, len(enums.Channels())),
	}
	for _, channel := range enums.Channels() {
		policy, ok := defaults[channel]
		if !ok {
			policy = Policy{
				EnableDirect:       true,
				EnableIndirect:     true,
				EnableUnattributed: true,
				HistoryLimit:       10,
				Window:             24 * time.Hour,
			}
		}
		if err := s.validate.Struct(policy); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid default policy")
		}
		loaded, err := s.load(ctx, channel)
		if err != nil {
			return nil, err
		}
		if loaded == nil {
			loaded = &channelState{Policy: policy}
		}
		s.state[channel] = loaded
	}
	return s, nil
}

func (s *Store) load(ctx context.Context, channel enums.Channel) (*channelState, error) {
	raw, found, err := s.kv.Get(ctx, s.kv.StateKey(string(channel)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "loading channel state")
	}
	if !found {
		return nil, nil
	}
	var state channelState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "decoding channel state")
	}
	return &state, nil
}

// persist writes the candidate state and only then installs it in memory, so a
// storage failure leaves the store as if the mutation never happened.
func (s *Store) persist(ctx context.Context, channel enums.Channel, next channelState) error {
	raw, err := json.Marshal(next)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "encoding channel state")
	}
	if err := s.kv.Set(ctx, s.kv.StateKey(string(channel)), string(raw)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "persisting channel state")
	}
	s.state[channel] = &next
	return nil
}

func (s *Store) snapshot(channel enums.Channel) channelState {
	current := s.state[channel]
	next := channelState{Policy: current.Policy, Direct: current.Direct}
	next.History = make([]Entry, len(current.History))
	copy(next.History, current.History)
	return next
}

// RecordSourceReceived appends a received source to the channel history,
// evicting the oldest entry past the policy's history limit. Duplicate ids are
// allowed; the classifier handles them by first match.
func (s *Store) RecordSourceReceived(ctx context.Context, channel enums.Channel, id string, at time.Time) error {
	if id == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "influence id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snapshot(channel)
	next.History = append(next.History, Entry{ID: id, ReceivedAt: at})
	if limit := next.Policy.HistoryLimit; limit > 0 && len(next.History) > limit {
		next.History = next.History[len(next.History)-limit:]
	}
	return s.persist(ctx, channel, next)
}

// RecordDirectOpen marks id as the direct candidate for the channel's next
// classification. A newer open supersedes an unconsumed one.
func (s *Store) RecordDirectOpen(ctx context.Context, channel enums.Channel, id string, at time.Time) error {
	if id == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "influence id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snapshot(channel)
	next.Direct = &directOpen{ID: id, OpenedAt: at}
	return s.persist(ctx, channel, next)
}

// ConsumeDirect atomically reads and clears the pending direct-open signal.
func (s *Store) ConsumeDirect(ctx context.Context, channel enums.Channel) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.state[channel]
	if current.Direct == nil {
		return "", false, nil
	}
	id := current.Direct.ID
	next := s.snapshot(channel)
	next.Direct = nil
	if err := s.persist(ctx, channel, next); err != nil {
		return "", false, err
	}
	return id, true, nil
}

// History returns a snapshot of the channel history, oldest insertion first.
func (s *Store) History(ctx context.Context, channel enums.Channel) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.state[channel]
	out := make([]Entry, len(current.History))
	copy(out, current.History)
	return out, nil
}

// Policy returns the channel's current policy.
func (s *Store) Policy(channel enums.Channel) Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state[channel].Policy
}

// SetPolicy validates and persists a new policy for the channel.
func (s *Store) SetPolicy(ctx context.Context, channel enums.Channel, policy Policy) error {
	if err := s.validate.Struct(policy); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid policy")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snapshot(channel)
	next.Policy = policy
	return s.persist(ctx, channel, next)
}

// Reset clears history and pending direct-opens on every channel, keeping the
// configured policies. Used only on a full local-data wipe.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, channel := range enums.Channels() {
		next := channelState{Policy: s.state[channel].Policy}
		if err := s.persist(ctx, channel, next); err != nil {
			return err
		}
	}
	return nil
}
