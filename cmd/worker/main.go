package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/lms-engagements/api/controllers"
	"github.com/angelmondragon/lms-engagements/internal/consumers/events"
	"github.com/angelmondragon/lms-engagements/internal/engine"
	"github.com/angelmondragon/lms-engagements/internal/scheduler"
	"github.com/angelmondragon/lms-engagements/pkg/config"
	"github.com/angelmondragon/lms-engagements/pkg/db"
	"github.com/angelmondragon/lms-engagements/pkg/idempotency"
	"github.com/angelmondragon/lms-engagements/pkg/logger"
	"github.com/angelmondragon/lms-engagements/pkg/migrate"
	"github.com/angelmondragon/lms-engagements/pkg/pubsub"
	"github.com/angelmondragon/lms-engagements/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	eng, err := engine.New(engine.Params{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Index:      redisClient,
		Registerer: registry,
	})
	if err != nil {
		logg.Error(ctx, "failed to build engagement engine", err)
		os.Exit(1)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logg.Error(context.Background(), "error closing scheduler connections", err)
		}
	}()

	worker, err := eng.NewWorker(logg)
	if err != nil {
		logg.Error(ctx, "failed to build award worker", err)
		os.Exit(1)
	}
	mux := asynq.NewServeMux()
	worker.Register(mux)

	connOpt, err := scheduler.RedisConnOpt(cfg.Redis)
	if err != nil {
		logg.Error(ctx, "invalid redis config for task server", err)
		os.Exit(1)
	}
	server := asynq.NewServer(connOpt, asynq.Config{
		Concurrency: cfg.Scheduler.Concurrency,
		Queues:      map[string]int{cfg.Scheduler.Queue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			taskID, _ := asynq.GetTaskID(ctx)
			logg.Error(logg.WithFields(ctx, map[string]any{
				"task_type": task.Type(),
				"task_id":   taskID,
			}), "scheduled award failed", err)
		}),
	})

	params := ServiceParams{
		Logger:  logg,
		DB:      dbClient,
		Redis:   redisClient,
		Server:  server,
		Handler: mux,
		HTTP: &http.Server{
			Addr:              ":" + cfg.App.Port,
			Handler:           metricsRouter(cfg, registry),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	if cfg.FeatureFlags.ConsumePubSub {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer psClient.Close()

		guard, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
		if err != nil {
			logg.Error(ctx, "failed to create idempotency manager", err)
			os.Exit(1)
		}
		consumer, err := events.NewConsumer(eng.Dispatcher, psClient.EventsSubscription(), guard, logg)
		if err != nil {
			logg.Error(ctx, "failed to create event consumer", err)
			os.Exit(1)
		}
		params.Consumer = consumer
	}

	service, err := NewService(params)
	if err != nil {
		logg.Error(ctx, "failed to create worker service", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"queue":       cfg.Scheduler.Queue,
	})
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "worker shutting down gracefully")
}

func metricsRouter(cfg *config.Config, registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return r
}
