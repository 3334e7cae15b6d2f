package dedup

import (
	"context"

	"github.com/outcomely/attribution-engine/pkg/db/models"
	"github.com/outcomely/attribution-engine/pkg/enums"
	pkgerrors "github.com/outcomely/attribution-engine/pkg/errors"
	"github.com/outcomely/attribution-engine/pkg/logger"
)

// Pair is one (influence id, channel) combination contributing to an outcome.
type Pair struct {
	InfluenceID string
	Channel     enums.Channel
}

// Service gates uniquely counted outcomes: each (outcome, influence, channel)
// triple is credited at most once per install. Duplicate credits are absorbed
// silently, never treated as errors.
type Service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// HasBeenCredited reports whether the triple already carries credit.
func (s *Service) HasBeenCredited(ctx context.Context, outcomeName, influenceID string, channel enums.Channel) (bool, error) {
	exists, err := s.repo.Exists(ctx, outcomeName, influenceID, channel)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "querying credited influence")
	}
	return exists, nil
}

// MarkCredited durably records the credit. An already-present marker counts as
// success.
func (s *Service) MarkCredited(ctx context.Context, outcomeName, influenceID string, channel enums.Channel) error {
	_, err := s.repo.Insert(ctx, models.CreditedInfluence{
		OutcomeName: outcomeName,
		InfluenceID: influenceID,
		Channel:     channel,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "inserting credited influence")
	}
	return nil
}

// Claim inserts markers for every pair not yet credited for the outcome and
// returns the pairs that were newly credited, preserving input order.
func (s *Service) Claim(ctx context.Context, outcomeName string, pairs []Pair) ([]Pair, error) {
	credited := make([]Pair, 0, len(pairs))
	for _, pair := range pairs {
		inserted, err := s.repo.Insert(ctx, models.CreditedInfluence{
			OutcomeName: outcomeName,
			InfluenceID: pair.InfluenceID,
			Channel:     pair.Channel,
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "claiming influence credit")
		}
		if inserted {
			credited = append(credited, pair)
		}
	}
	if s.logg != nil && len(credited) < len(pairs) {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"outcome":    outcomeName,
			"duplicates": len(pairs) - len(credited),
		})
		s.logg.Debug(ctx, "duplicate influence credits absorbed")
	}
	return credited, nil
}

// Release deletes markers written by a Claim whose outcome never became
// durable, so a retry of the same recording can credit those pairs again.
func (s *Service) Release(ctx context.Context, outcomeName string, pairs []Pair) error {
	for _, pair := range pairs {
		if err := s.repo.Delete(ctx, outcomeName, pair.InfluenceID, pair.Channel); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "releasing influence credit")
		}
	}
	return nil
}

// Reset clears every credited marker. Used only on a full local-data wipe.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.repo.DeleteAll(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "clearing credited influences")
	}
	return nil
}
