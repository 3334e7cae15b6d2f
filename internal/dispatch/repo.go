package dispatch

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/outcomely/attribution-engine/pkg/db/models"
	"github.com/outcomely/attribution-engine/pkg/enums"
)

const maxStoredErrorLen = 1024

// Repository exposes persistence for the pending-send queue and its
// dead-letter table.
type Repository interface {
	Insert(ctx context.Context, row models.PendingSend) error
	// Head returns the oldest queued row by (enqueued_at, id), or nil.
	Head(ctx context.Context) (*models.PendingSend, error)
	MarkSending(ctx context.Context, id uuid.UUID) error
	// MarkQueuedRetry returns the row to queued in place, incrementing
	// attempt_count and recording the failure.
	MarkQueuedRetry(ctx context.Context, id uuid.UUID, sendErr error) error
	Delete(ctx context.Context, id uuid.UUID) error
	InsertDeadLetter(ctx context.Context, row models.DispatchDeadLetter) error
	// RecoverInFlight returns rows stuck in sending (crashed mid-send) to
	// queued, reporting how many were recovered.
	RecoverInFlight(ctx context.Context) (int64, error)
	ListQueued(ctx context.Context) ([]models.PendingSend, error)
	UpdatePayload(ctx context.Context, id uuid.UUID, payload json.RawMessage) error
	DeleteAll(ctx context.Context) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a pending-send repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Insert(ctx context.Context, row models.PendingSend) error {
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *repositoryImpl) Head(ctx context.Context) (*models.PendingSend, error) {
	var row models.PendingSend
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.SendStatusQueued).
		Order("enqueued_at ASC").
		Order("id ASC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repositoryImpl) MarkSending(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.PendingSend{}).
		Where("id = ?", id).
		Update("status", enums.SendStatusSending).Error
}

func (r *repositoryImpl) MarkQueuedRetry(ctx context.Context, id uuid.UUID, sendErr error) error {
	updates := map[string]any{
		"status":        enums.SendStatusQueued,
		"attempt_count": gorm.Expr("attempt_count + 1"),
	}
	if sendErr != nil {
		msg := truncateError(sendErr.Error())
		updates["last_error"] = msg
	}
	return r.db.WithContext(ctx).
		Model(&models.PendingSend{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.PendingSend{}).Error
}

func (r *repositoryImpl) InsertDeadLetter(ctx context.Context, row models.DispatchDeadLetter) error {
	if row.ErrorMessage != nil {
		msg := truncateError(*row.ErrorMessage)
		row.ErrorMessage = &msg
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *repositoryImpl) RecoverInFlight(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PendingSend{}).
		Where("status = ?", enums.SendStatusSending).
		Update("status", enums.SendStatusQueued)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) ListQueued(ctx context.Context) ([]models.PendingSend, error) {
	var rows []models.PendingSend
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.SendStatusQueued).
		Order("enqueued_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) UpdatePayload(ctx context.Context, id uuid.UUID, payload json.RawMessage) error {
	return r.db.WithContext(ctx).
		Model(&models.PendingSend{}).
		Where("id = ?", id).
		Update("payload", payload).Error
}

func (r *repositoryImpl) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&models.PendingSend{}).Error
}

func truncateError(message string) string {
	if len(message) <= maxStoredErrorLen {
		return message
	}
	return message[:maxStoredErrorLen]
}
