package outcomes

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"

	"github.com/outcomely/attribution-engine/internal/classify"
	"github.com/outcomely/attribution-engine/internal/dedup"
	"github.com/outcomely/attribution-engine/pkg/enums"
	pkgerrors "github.com/outcomely/attribution-engine/pkg/errors"
	"github.com/outcomely/attribution-engine/pkg/logger"
)

// Classifier produces the per-channel influence at recording time.
type Classifier interface {
	Classify(ctx context.Context, channel enums.Channel, now time.Time) (classify.Influence, error)
}

// Deduplicator gates once-per-source outcomes, returning only net-new pairs.
// Release undoes a Claim whose outcome never became durable.
type Deduplicator interface {
	Claim(ctx context.Context, outcomeName string, pairs []dedup.Pair) ([]dedup.Pair, error)
	Release(ctx context.Context, outcomeName string, pairs []dedup.Pair) error
}

// Queue durably enqueues events for background delivery.
type Queue interface {
	Enqueue(ctx context.Context, event Event) error
}

// RecordParams describes one outcome recording.
type RecordParams struct {
	Name       string
	Weight     float64
	Uniqueness enums.Uniqueness
	// At is the recording time used for window classification; zero means now.
	At time.Time
}

// Service orchestrates outcome recording: classification across both
// channels, the unique-outcome gate, and the durable hand-off to the dispatch
// queue. RecordOutcome returns once the event is durably queued, never waiting
// on network delivery.
type Service struct {
	classifier Classifier
	dedup      Deduplicator
	queue      Queue
	logg       *logger.Logger
}

func NewService(classifier Classifier, deduplicator Deduplicator, queue Queue, logg *logger.Logger) (*Service, error) {
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if deduplicator == nil {
		return nil, errors.New("deduplicator is required")
	}
	if queue == nil {
		return nil, errors.New("queue is required")
	}
	return &Service{classifier: classifier, dedup: deduplicator, queue: queue, logg: logg}, nil
}

func (s *Service) RecordOutcome(ctx context.Context, params RecordParams) error {
	if params.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "outcome name is required")
	}
	if params.Weight < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "outcome weight must not be negative")
	}
	uniqueness := params.Uniqueness
	if uniqueness == "" {
		uniqueness = enums.UniquenessEveryTime
	}
	if !uniqueness.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid uniqueness")
	}
	now := params.At
	if now.IsZero() {
		now = time.Now()
	}

	influences := make([]classify.Influence, 0, len(enums.Channels()))
	allDisabled := true
	hasUnattributed := false
	for _, channel := range enums.Channels() {
		influence, err := s.classifier.Classify(ctx, channel, now)
		if err != nil {
			return err
		}
		influences = append(influences, influence)
		if influence.Type != enums.InfluenceDisabled {
			allDisabled = false
		}
		if influence.Type == enums.InfluenceUnattributed {
			hasUnattributed = true
		}
	}

	// Disabling is a hard off-switch: no event, no dedup, no persistence.
	if allDisabled {
		if s.logg != nil {
			s.logg.Debug(s.logg.WithOutcome(ctx, params.Name), "outcome dropped, attribution disabled")
		}
		return nil
	}

	direct := bodyFor(influences, enums.InfluenceDirect)
	indirect := bodyFor(influences, enums.InfluenceIndirect)

	var claimed []dedup.Pair
	if uniqueness == enums.UniquenessOncePerSource {
		pairs := contributingPairs(influences)
		if len(pairs) > 0 {
			credited, err := s.dedup.Claim(ctx, params.Name, pairs)
			if err != nil {
				return err
			}
			claimed = credited
			if len(credited) == 0 && !hasUnattributed {
				if s.logg != nil {
					s.logg.Debug(s.logg.WithOutcome(ctx, params.Name), "outcome dropped, all sources already credited")
				}
				return nil
			}
			keep := make(map[dedup.Pair]struct{}, len(credited))
			for _, pair := range credited {
				keep[pair] = struct{}{}
			}
			direct = filterBody(direct, keep)
			indirect = filterBody(indirect, keep)
		}
	}

	var source *Source
	if !direct.IsEmpty() || !indirect.IsEmpty() {
		source = &Source{}
		if !direct.IsEmpty() {
			source.Direct = direct
		}
		if !indirect.IsEmpty() {
			source.Indirect = indirect
		}
	}

	event := Event{Name: params.Name, Source: source, Weight: params.Weight}
	if err := s.queue.Enqueue(ctx, event); err != nil {
		// The recording did not happen; the claimed credits must not survive
		// it, or a retry would find every pair already credited and drop the
		// event for good.
		if len(claimed) > 0 {
			if releaseErr := s.dedup.Release(ctx, params.Name, claimed); releaseErr != nil {
				return multierr.Append(err, releaseErr)
			}
		}
		return err
	}
	if s.logg != nil {
		fields := map[string]any{"outcome": params.Name, "unattributed": event.IsUnattributed()}
		s.logg.Info(s.logg.WithFields(ctx, fields), "outcome queued")
	}
	return nil
}

// bodyFor merges the ids of every channel that classified as kind into one
// body, keyed per channel. With both channels producing the same kind their
// ids share a single body.
func bodyFor(influences []classify.Influence, kind enums.InfluenceType) *SourceBody {
	body := &SourceBody{}
	for _, influence := range influences {
		if influence.Type != kind {
			continue
		}
		switch influence.Channel {
		case enums.ChannelNotification:
			body.NotificationIDs = append(body.NotificationIDs, influence.IDs...)
		case enums.ChannelIAM:
			body.InAppMessageIDs = append(body.InAppMessageIDs, influence.IDs...)
		}
	}
	return body
}

func contributingPairs(influences []classify.Influence) []dedup.Pair {
	var pairs []dedup.Pair
	for _, influence := range influences {
		if !influence.Type.IsAttributed() {
			continue
		}
		for _, id := range influence.IDs {
			pairs = append(pairs, dedup.Pair{InfluenceID: id, Channel: influence.Channel})
		}
	}
	return pairs
}

func filterBody(body *SourceBody, keep map[dedup.Pair]struct{}) *SourceBody {
	filtered := &SourceBody{}
	for _, id := range body.NotificationIDs {
		if _, ok := keep[dedup.Pair{InfluenceID: id, Channel: enums.ChannelNotification}]; ok {
			filtered.NotificationIDs = append(filtered.NotificationIDs, id)
		}
	}
	for _, id := range body.InAppMessageIDs {
		if _, ok := keep[dedup.Pair{InfluenceID: id, Channel: enums.ChannelIAM}]; ok {
			filtered.InAppMessageIDs = append(filtered.InAppMessageIDs, id)
		}
	}
	return filtered
}
