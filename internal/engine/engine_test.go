package engine

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/lms-engagements/pkg/config"
	"github.com/angelmondragon/lms-engagements/pkg/db"
	"github.com/angelmondragon/lms-engagements/pkg/logger"
)

type nopSets struct{}

func (nopSets) SAdd(context.Context, string, ...string) error { return nil }
func (nopSets) SMembers(context.Context, string) ([]string, error) { return nil, nil }
func (nopSets) SRem(context.Context, string, ...string) error { return nil }
func (nopSets) Del(context.Context, ...string) error { return nil }
func (nopSets) ScheduleGroupKey(group string) string { return "group:" + group }
func (nopSets) ScheduleGroupsKey() string { return "groups" }

func testConfig() *config.Config {
	return &config.Config{
		Redis:     config.RedisConfig{Address: "127.0.0.1:6379"},
		Scheduler: config.SchedulerConfig{Queue: "engagements", MaxRetry: 3},
		Site:      config.SiteConfig{Title: "LMS", URL: "http://lms.test"},
	}
}

func TestNewWiresComponents(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	e, err := New(Params{
		Config:     testConfig(),
		Logger:     logger.Nop(),
		DB:         db.NewFromGorm(conn),
		Index:      nopSets{},
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	assert.NotNil(t, e.Definitions)
	assert.NotNil(t, e.Service)
	assert.NotNil(t, e.Awards)
	assert.NotNil(t, e.Syncer)
	assert.NotNil(t, e.Scheduler)
	assert.NotNil(t, e.Dispatcher)

	worker, err := e.NewWorker(logger.Nop())
	require.NoError(t, err)
	assert.NotNil(t, worker)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Logger: logger.Nop()})
	assert.Error(t, err)

	_, err = New(Params{Config: testConfig(), Logger: logger.Nop()})
	assert.Error(t, err)
}
