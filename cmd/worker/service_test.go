package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/lms-engagements/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubServer struct {
	mu       sync.Mutex
	started  bool
	shutdown bool
	startErr error
}

func (s *stubServer) Start(asynq.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return s.startErr
}

func (s *stubServer) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
}

type stubConsumer struct {
	err error
}

func (c stubConsumer) Run(ctx context.Context) error {
	if c.err != nil {
		return c.err
	}
	<-ctx.Done()
	return nil
}

func newTestService(t *testing.T, params ServiceParams) *Service {
	t.Helper()
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.DB == nil {
		params.DB = stubPinger{}
	}
	if params.Redis == nil {
		params.Redis = stubPinger{}
	}
	if params.Handler == nil {
		params.Handler = asynq.NewServeMux()
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	return svc
}

func TestRunStopsOnContextCancel(t *testing.T) {
	server := &stubServer{}
	svc := newTestService(t, ServiceParams{Server: server, Consumer: stubConsumer{}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := svc.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, server.started)
	assert.True(t, server.shutdown)
}

func TestRunFailsWhenDependencyUnavailable(t *testing.T) {
	server := &stubServer{}
	svc := newTestService(t, ServiceParams{Server: server, Redis: stubPinger{err: errors.New("refused")}})

	err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
	assert.False(t, server.started)
}

func TestRunReturnsConsumerFailure(t *testing.T) {
	server := &stubServer{}
	svc := newTestService(t, ServiceParams{Server: server, Consumer: stubConsumer{err: errors.New("subscription gone")}})

	err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscription gone")
	assert.True(t, server.shutdown)
}

func TestRunReportsStartFailure(t *testing.T) {
	server := &stubServer{startErr: errors.New("bad redis")}
	svc := newTestService(t, ServiceParams{Server: server})

	err := svc.Run(context.Background())
	require.Error(t, err)
	assert.False(t, server.shutdown)
}

func TestNewServiceRequiresServer(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.Nop(), DB: stubPinger{}, Redis: stubPinger{}, Handler: asynq.NewServeMux()})
	assert.Error(t, err)
}
