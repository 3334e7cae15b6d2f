package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/outcomely/attribution-engine/internal/outcomes"
	"github.com/outcomely/attribution-engine/pkg/db/models"
	"github.com/outcomely/attribution-engine/pkg/enums"
	pkgerrors "github.com/outcomely/attribution-engine/pkg/errors"
	"github.com/outcomely/attribution-engine/pkg/logger"
	"github.com/outcomely/attribution-engine/pkg/metrics"
)

// Queue is the durable FIFO of outcome events awaiting delivery.
// Enqueue persists before returning; the actual send is the Worker's job.
type Queue struct {
	repo    Repository
	logg    *logger.Logger
	metrics *metrics.DispatchMetrics

	// wake nudges the worker out of its poll sleep when a new row lands.
	wake chan struct{}
}

// NewQueue returns a Queue backed by the given repository.
func NewQueue(repo Repository, logg *logger.Logger, m *metrics.DispatchMetrics) *Queue {
	return &Queue{
		repo:    repo,
		logg:    logg,
		metrics: m,
		wake:    make(chan struct{}, 1),
	}
}

// Enqueue persists the event at the tail of the queue.
func (q *Queue) Enqueue(ctx context.Context, event outcomes.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal outcome event")
	}

	row := models.PendingSend{
		ID:         uuid.New(),
		Payload:    payload,
		Status:     enums.SendStatusQueued,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := q.repo.Insert(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "enqueue outcome event")
	}

	q.metrics.IncEnqueued()
	logCtx := q.logg.WithSendID(ctx, row.ID.String())
	logCtx = q.logg.WithOutcome(logCtx, event.Name)
	q.logg.Debug(logCtx, "outcome event enqueued")

	q.notify()
	return nil
}

// Reset drops every pending row. Dead letters are kept.
func (q *Queue) Reset(ctx context.Context) error {
	if err := q.repo.DeleteAll(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "purge pending sends")
	}
	return nil
}

// Wake returns the channel the worker selects on for new-row signals.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}

func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
