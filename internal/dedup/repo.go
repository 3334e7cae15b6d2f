package dedup

import (
	"context"
	"errors"

	"gorm.io/gorm"

	dbpkg "github.com/outcomely/attribution-engine/pkg/db"
	"github.com/outcomely/attribution-engine/pkg/db/models"
	"github.com/outcomely/attribution-engine/pkg/enums"
)

// Repository exposes persistence for credited-influence markers.
type Repository interface {
	Exists(ctx context.Context, outcomeName, influenceID string, channel enums.Channel) (bool, error)
	// Insert reports whether a new row was written; a primary-key conflict
	// returns (false, nil).
	Insert(ctx context.Context, row models.CreditedInfluence) (bool, error)
	Delete(ctx context.Context, outcomeName, influenceID string, channel enums.Channel) error
	DeleteAll(ctx context.Context) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a credited-influence repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Exists(ctx context.Context, outcomeName, influenceID string, channel enums.Channel) (bool, error) {
	var row models.CreditedInfluence
	err := r.db.WithContext(ctx).
		Where("outcome_name = ? AND influence_id = ? AND channel = ?", outcomeName, influenceID, channel).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repositoryImpl) Insert(ctx context.Context, row models.CreditedInfluence) (bool, error) {
	err := r.db.WithContext(ctx).Create(&row).Error
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repositoryImpl) Delete(ctx context.Context, outcomeName, influenceID string, channel enums.Channel) error {
	return r.db.WithContext(ctx).
		Where("outcome_name = ? AND influence_id = ? AND channel = ?", outcomeName, influenceID, channel).
		Delete(&models.CreditedInfluence{}).Error
}

func (r *repositoryImpl) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&models.CreditedInfluence{}).Error
}
