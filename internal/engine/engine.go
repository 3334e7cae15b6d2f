package engine

import (
	"context"
	"errors"

	"go.uber.org/multierr"

	"github.com/outcomely/attribution-engine/internal/attribution"
	"github.com/outcomely/attribution-engine/internal/classify"
	"github.com/outcomely/attribution-engine/internal/dedup"
	"github.com/outcomely/attribution-engine/internal/dispatch"
	"github.com/outcomely/attribution-engine/internal/outcomes"
	"github.com/outcomely/attribution-engine/pkg/config"
	"github.com/outcomely/attribution-engine/pkg/db"
	"github.com/outcomely/attribution-engine/pkg/enums"
	"github.com/outcomely/attribution-engine/pkg/logger"
	"github.com/outcomely/attribution-engine/pkg/metrics"
)

type Params struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *db.Client
	KV        attribution.KV
	Transport dispatch.Transport
	Metrics   *metrics.DispatchMetrics
}

// Engine wires the attribution store, classifier, deduplicator, recorder and
// dispatch pipeline into one unit with a shared lifecycle.
type Engine struct {
	logg *logger.Logger

	store    *attribution.Store
	recorder *outcomes.Service
	dedup    *dedup.Service
	queue    *dispatch.Queue
	worker   *dispatch.Worker
}

func New(ctx context.Context, params Params) (*Engine, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.KV == nil {
		return nil, errors.New("kv client is required")
	}
	if params.Transport == nil {
		return nil, errors.New("transport is required")
	}

	store, err := attribution.NewStore(ctx, params.KV, defaultPolicies(params.Config.Attribution))
	if err != nil {
		return nil, err
	}
	classifier := classify.New(store)

	dedupService := dedup.NewService(dedup.NewRepository(params.DB.DB()), params.Logger)

	dispatchRepo := dispatch.NewRepository(params.DB.DB())
	queue := dispatch.NewQueue(dispatchRepo, params.Logger, params.Metrics)
	worker, err := dispatch.NewWorker(dispatch.WorkerParams{
		Config:     params.Config.Dispatch,
		Logger:     params.Logger,
		Repository: dispatchRepo,
		Transport:  params.Transport,
		Queue:      queue,
		Metrics:    params.Metrics,
	})
	if err != nil {
		return nil, err
	}

	recorder, err := outcomes.NewService(classifier, dedupService, queue, params.Logger)
	if err != nil {
		return nil, err
	}

	return &Engine{
		logg:     params.Logger,
		store:    store,
		recorder: recorder,
		dedup:    dedupService,
		queue:    queue,
		worker:   worker,
	}, nil
}

// Store exposes the attribution window store for source and open tracking.
func (e *Engine) Store() *attribution.Store {
	return e.store
}

// Recorder exposes outcome recording.
func (e *Engine) Recorder() *outcomes.Service {
	return e.recorder
}

// Queue exposes the durable dispatch queue.
func (e *Engine) Queue() *dispatch.Queue {
	return e.queue
}

// Run drives the dispatch worker until the context is canceled.
func (e *Engine) Run(ctx context.Context) error {
	return e.worker.Run(ctx)
}

// ResetLocalData clears attribution windows, credited influences and pending
// sends, typically on a user identity switch. Dead letters are preserved.
func (e *Engine) ResetLocalData(ctx context.Context) error {
	var errs error
	if err := e.store.Reset(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := e.dedup.Reset(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := e.queue.Reset(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if errs != nil {
		return errs
	}
	e.logg.Info(ctx, "local attribution data reset")
	return nil
}

func defaultPolicies(cfg config.AttributionConfig) map[enums.Channel]attribution.Policy {
	return map[enums.Channel]attribution.Policy{
		enums.ChannelNotification: {
			EnableDirect:       cfg.NotificationDirect,
			EnableIndirect:     cfg.NotificationIndirect,
			EnableUnattributed: cfg.NotificationUnattributed,
			HistoryLimit:       cfg.NotificationLimit,
			Window:             cfg.NotificationWindow,
		},
		enums.ChannelIAM: {
			EnableDirect:       cfg.IAMDirect,
			EnableIndirect:     cfg.IAMIndirect,
			EnableUnattributed: cfg.IAMUnattributed,
			HistoryLimit:       cfg.IAMLimit,
			Window:             cfg.IAMWindow,
		},
	}
}
