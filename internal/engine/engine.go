package engine

import (
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/lms-engagements/internal/awards"
	"github.com/angelmondragon/lms-engagements/internal/engagements"
	"github.com/angelmondragon/lms-engagements/internal/scheduler"
	"github.com/angelmondragon/lms-engagements/pkg/config"
	"github.com/angelmondragon/lms-engagements/pkg/db"
	"github.com/angelmondragon/lms-engagements/pkg/logger"
	"github.com/angelmondragon/lms-engagements/pkg/mail"
	"github.com/angelmondragon/lms-engagements/pkg/metrics"
	"github.com/angelmondragon/lms-engagements/pkg/redis"
)

// Params wires the engagement engine shared by the api and worker binaries.
type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Index      redis.SetStore
	Registerer prometheus.Registerer
	Now        func() time.Time
}

// Engine owns the definition store, award handlers, scheduler and dispatcher.
type Engine struct {
	Definitions *engagements.Repository
	Service     engagements.Service
	Awards      *awards.Registry
	Syncer      *awards.Syncer
	Scheduler   *scheduler.AsynqScheduler
	Dispatcher  *engagements.Dispatcher
	Metrics     *metrics.EngagementMetrics

	index     redis.SetStore
	client    *asynq.Client
	inspector *asynq.Inspector
}

func New(params Params) (*Engine, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Index == nil {
		return nil, errors.New("schedule index store is required")
	}
	cfg := params.Config

	connOpt, err := scheduler.RedisConnOpt(cfg.Redis)
	if err != nil {
		return nil, err
	}

	sender, err := mail.NewSender(cfg.Sendgrid, params.Logger)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		Definitions: engagements.NewRepository(params.DB.DB()),
		Metrics:     metrics.NewEngagementMetrics(params.Registerer),
		index:       params.Index,
		client:      asynq.NewClient(connOpt),
		inspector:   asynq.NewInspector(connOpt),
	}

	handlerParams := awards.HandlerParams{
		Repo:    awards.NewRepository(params.DB.DB()),
		DB:      params.DB,
		Sender:  sender,
		Site:    cfg.Site,
		Logger:  params.Logger,
		Metrics: e.Metrics,
		Now:     params.Now,
	}
	if e.Awards, err = awards.NewDefaultRegistry(handlerParams); err != nil {
		return nil, e.closeWith(err)
	}
	if e.Syncer, err = awards.NewSyncer(handlerParams); err != nil {
		return nil, e.closeWith(err)
	}

	e.Scheduler, err = scheduler.NewAsynqScheduler(scheduler.AsynqParams{
		Client:    e.client,
		Inspector: e.inspector,
		Index:     params.Index,
		Queue:     cfg.Scheduler.Queue,
		MaxRetry:  cfg.Scheduler.MaxRetry,
		Logger:    params.Logger,
		Metrics:   e.Metrics,
	})
	if err != nil {
		return nil, e.closeWith(err)
	}

	e.Dispatcher, err = engagements.NewDispatcher(engagements.DispatcherParams{
		Definitions: e.Definitions,
		Posts:       e.Definitions,
		Awards:      e.Awards,
		Scheduler:   e.Scheduler,
		Logger:      params.Logger,
		Metrics:     e.Metrics,
		Now:         params.Now,
	})
	if err != nil {
		return nil, e.closeWith(err)
	}

	e.Service, err = engagements.NewService(engagements.ServiceParams{
		Repo:      e.Definitions,
		Scheduler: e.Scheduler,
		Logger:    params.Logger,
	})
	if err != nil {
		return nil, e.closeWith(err)
	}
	return e, nil
}

// NewWorker builds the asynq handler that runs scheduled awards.
func (e *Engine) NewWorker(logg *logger.Logger) (*scheduler.Worker, error) {
	return scheduler.NewWorker(scheduler.WorkerParams{
		Definitions: e.Definitions,
		Awards:      e.Awards,
		Index:       e.index,
		Logger:      logg,
	})
}

// Close releases the asynq client and inspector connections.
func (e *Engine) Close() error {
	var err error
	if e.client != nil {
		err = multierr.Append(err, e.client.Close())
	}
	if e.inspector != nil {
		err = multierr.Append(err, e.inspector.Close())
	}
	return err
}

func (e *Engine) closeWith(err error) error {
	return multierr.Append(err, e.Close())
}
