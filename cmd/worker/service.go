package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"github.com/angelmondragon/lms-engagements/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

type taskServer interface {
	Start(handler asynq.Handler) error
	Shutdown()
}

type eventConsumer interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger   *logger.Logger
	DB       pinger
	Redis    pinger
	Server   taskServer
	Handler  asynq.Handler
	Consumer eventConsumer
	HTTP     *http.Server
}

// Service runs the scheduled award server plus the optional Pub/Sub consumer
// and metrics endpoint until the context ends or one of them fails.
type Service struct {
	logg     *logger.Logger
	db       pinger
	redis    pinger
	server   taskServer
	handler  asynq.Handler
	consumer eventConsumer
	http     *http.Server
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.Server == nil {
		return nil, errors.New("task server is required")
	}
	if params.Handler == nil {
		return nil, errors.New("task handler is required")
	}
	return &Service{
		logg:     params.Logger,
		db:       params.DB,
		redis:    params.Redis,
		server:   params.Server,
		handler:  params.Handler,
		consumer: params.Consumer,
		http:     params.HTTP,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	if err := s.server.Start(s.handler); err != nil {
		return fmt.Errorf("start task server: %w", err)
	}
	defer s.server.Shutdown()
	s.logg.Info(ctx, "task server started")

	errCh := make(chan error, 2)
	if s.consumer != nil {
		go func() {
			err := s.consumer.Run(ctx)
			if err == nil {
				err = ctx.Err()
			}
			if err == nil {
				err = errors.New("receive loop exited")
			}
			errCh <- fmt.Errorf("event consumer: %w", err)
		}()
	}
	if s.http != nil {
		go func() {
			if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
		defer s.shutdownHTTP()
	}

	select {
	case <-ctx.Done():
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, context.Canceled) {
			return ctx.Err()
		}
		s.logg.Error(ctx, "worker component stopped unexpectedly", err)
		return err
	}
}

func (s *Service) shutdownHTTP() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		s.logg.Error(ctx, "metrics server shutdown failed", err)
	}
}
