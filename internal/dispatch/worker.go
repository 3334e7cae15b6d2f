package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/outcomely/attribution-engine/pkg/config"
	"github.com/outcomely/attribution-engine/pkg/db/models"
	"github.com/outcomely/attribution-engine/pkg/enums"
	pkgerrors "github.com/outcomely/attribution-engine/pkg/errors"
	"github.com/outcomely/attribution-engine/pkg/logger"
	"github.com/outcomely/attribution-engine/pkg/metrics"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultBackoffBase  = time.Second
	defaultBackoffCap   = time.Minute
	defaultMaxAttempts  = 10
	jitterWindow        = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

// Transport delivers a single outcome payload to the collector.
type Transport interface {
	Send(ctx context.Context, payload json.RawMessage) error
}

type WorkerParams struct {
	Config     config.DispatchConfig
	Logger     *logger.Logger
	Repository Repository
	Transport  Transport
	Queue      *Queue
	Metrics    *metrics.DispatchMetrics
}

// Worker drains the pending-send queue one row at a time, oldest first.
// A failing head blocks everything behind it until it succeeds or is
// dead-lettered.
type Worker struct {
	logg    *logger.Logger
	repo    Repository
	tr      Transport
	queue   *Queue
	metrics *metrics.DispatchMetrics

	pollInterval time.Duration
	backoffBase  time.Duration
	backoffCap   time.Duration
	maxAttempts  int
}

func NewWorker(params WorkerParams) (*Worker, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Repository == nil {
		return nil, errors.New("repository is required")
	}
	if params.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if params.Queue == nil {
		return nil, errors.New("queue is required")
	}

	poll := params.Config.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	base := params.Config.BackoffBase
	if base <= 0 {
		base = defaultBackoffBase
	}
	ceiling := params.Config.BackoffCap
	if ceiling <= 0 {
		ceiling = defaultBackoffCap
	}
	maxAttempts := params.Config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Worker{
		logg:         params.Logger,
		repo:         params.Repository,
		tr:           params.Transport,
		queue:        params.Queue,
		metrics:      params.Metrics,
		pollInterval: poll,
		backoffBase:  base,
		backoffCap:   ceiling,
		maxAttempts:  maxAttempts,
	}, nil
}

// Run processes the queue until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := w.recover(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.logg.Info(ctx, "dispatch worker context canceled")
			return ctx.Err()
		default:
		}

		row, err := w.repo.Head(ctx)
		if err != nil {
			w.logg.Error(ctx, "fetch queue head", err)
			if err := w.sleep(ctx, withJitter(w.pollInterval)); err != nil {
				return err
			}
			continue
		}
		if row == nil {
			if err := w.idle(ctx); err != nil {
				return err
			}
			continue
		}

		if err := w.process(ctx, row); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			w.logg.Error(ctx, "process queue head", err)
			// A storage failure mid-process can leave the row in sending,
			// where Head would skip it until a restart. Requeue it now; the
			// duplicate-delivery risk is the same as crash recovery.
			if _, recoverErr := w.repo.RecoverInFlight(ctx); recoverErr != nil {
				w.logg.Error(ctx, "requeue in-flight send", recoverErr)
			}
			if err := w.sleep(ctx, withJitter(w.pollInterval)); err != nil {
				return err
			}
		}
	}
}

// recover returns rows left in sending by a crash to queued, then stamps
// a delivery timestamp onto any queued payload that lacks one so the
// collector can attribute recovered events to their original enqueue time.
func (w *Worker) recover(ctx context.Context) error {
	recovered, err := w.repo.RecoverInFlight(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "recover in-flight sends")
	}
	if recovered > 0 {
		w.logg.Info(w.logg.WithField(ctx, "recovered", recovered), "recovered in-flight sends")
	}

	rows, err := w.repo.ListQueued(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "list queued sends")
	}
	for _, row := range rows {
		stamped, changed, err := stampTimestamp(row.Payload, row.EnqueuedAt)
		if err != nil {
			w.logg.Error(w.logg.WithSendID(ctx, row.ID.String()), "stamp recovered payload", err)
			continue
		}
		if !changed {
			continue
		}
		if err := w.repo.UpdatePayload(ctx, row.ID, stamped); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "persist stamped payload")
		}
	}
	return nil
}

func (w *Worker) idle(ctx context.Context) error {
	timer := time.NewTimer(withJitter(w.pollInterval))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.queue.Wake():
		return nil
	case <-timer.C:
		return nil
	}
}

func (w *Worker) process(ctx context.Context, row *models.PendingSend) error {
	sendCtx := w.logg.WithSendID(ctx, row.ID.String())
	sendCtx = w.logg.WithField(sendCtx, "attempt_count", row.AttemptCount)

	if err := w.repo.MarkSending(ctx, row.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "mark sending")
	}

	start := time.Now()
	sendErr := w.tr.Send(ctx, row.Payload)
	w.metrics.ObserveSendDuration(time.Since(start))

	if sendErr == nil {
		w.metrics.IncSendResult("success")
		if err := w.repo.Delete(ctx, row.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "delete sent row")
		}
		w.logg.Info(sendCtx, "outcome event delivered")
		return nil
	}

	// A cancellation mid-send is shutdown, not a delivery verdict. Put
	// the row back so the next run retries it.
	if ctx.Err() != nil {
		requeueCtx := context.WithoutCancel(ctx)
		if err := w.repo.MarkQueuedRetry(requeueCtx, row.ID, nil); err != nil {
			w.logg.Error(sendCtx, "requeue on shutdown", err)
		}
		return ctx.Err()
	}

	nextAttempt := row.AttemptCount + 1

	if !pkgerrors.IsRetryable(sendErr) {
		w.metrics.IncSendResult("permanent")
		return w.deadLetter(sendCtx, row, enums.DeadLetterReasonPermanent, sendErr)
	}

	if nextAttempt >= w.maxAttempts {
		w.metrics.IncSendResult("permanent")
		terminalErr := fmt.Errorf("max delivery attempts reached: %w", sendErr)
		return w.deadLetter(sendCtx, row, enums.DeadLetterReasonMaxAttempts, terminalErr)
	}

	w.metrics.IncSendResult("transient")
	if err := w.repo.MarkQueuedRetry(ctx, row.ID, sendErr); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "mark retry")
	}

	delay := withJitter(backoffFor(nextAttempt, w.backoffBase, w.backoffCap))
	retryCtx := w.logg.WithField(sendCtx, "retry_in", delay.String())
	retryCtx = w.logg.WithField(retryCtx, "error", sendErr.Error())
	w.logg.Warn(retryCtx, "outcome send failed, retrying head in place")

	return w.sleep(ctx, delay)
}

func (w *Worker) deadLetter(ctx context.Context, row *models.PendingSend, reason enums.DeadLetterReason, cause error) error {
	fields := map[string]any{
		"reason": reason,
		"error":  cause.Error(),
	}
	w.logg.Warn(w.logg.WithFields(ctx, fields), "outcome send will not be retried")

	msg := cause.Error()
	entry := models.DispatchDeadLetter{
		ID:           uuid.New(),
		SendID:       row.ID,
		Payload:      row.Payload,
		Reason:       reason,
		ErrorMessage: &msg,
		AttemptCount: row.AttemptCount + 1,
		FailedAt:     time.Now().UTC(),
	}
	if err := w.repo.InsertDeadLetter(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "insert dead letter")
	}
	if err := w.repo.Delete(ctx, row.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "delete dead-lettered row")
	}
	w.metrics.IncDeadLettered(string(reason))
	return nil
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// stampTimestamp injects the enqueue time into a payload that carries no
// explicit timestamp yet. Payloads with a timestamp keep it.
func stampTimestamp(payload json.RawMessage, enqueuedAt time.Time) (json.RawMessage, bool, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, false, err
	}
	if _, ok := doc["timestamp"]; ok {
		return payload, false, nil
	}
	ts, err := json.Marshal(enqueuedAt.Unix())
	if err != nil {
		return nil, false, err
	}
	doc["timestamp"] = ts
	stamped, err := json.Marshal(doc)
	if err != nil {
		return nil, false, err
	}
	return stamped, true, nil
}

func backoffFor(attempt int, base, ceiling time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= ceiling {
			return ceiling
		}
	}
	if delay > ceiling {
		return ceiling
	}
	return delay
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}
