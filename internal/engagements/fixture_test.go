package engagements

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/lms-engagements/internal/awards"
	"github.com/angelmondragon/lms-engagements/internal/scheduler"
	"github.com/angelmondragon/lms-engagements/pkg/db/models"
	"github.com/angelmondragon/lms-engagements/pkg/enums"
	"github.com/angelmondragon/lms-engagements/pkg/migrate"
)

var fixedNow = time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrate.AutoMigrateModels(conn))
	return conn
}

// memScheduler keeps invocations per group in memory.
type memScheduler struct {
	mu        sync.Mutex
	seq       int
	groups    map[string][]scheduler.Invocation
	cancelErr error
}

func newMemScheduler() *memScheduler {
	return &memScheduler{groups: map[string][]scheduler.Invocation{}}
}

func (m *memScheduler) Schedule(_ context.Context, inv scheduler.Invocation) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	inv.TaskID = "task-" + strconv.Itoa(m.seq)
	m.groups[inv.GroupKey()] = append(m.groups[inv.GroupKey()], inv)
	return inv.TaskID, nil
}

func (m *memScheduler) CancelGroup(_ context.Context, groupKey string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelErr != nil {
		return 0, m.cancelErr
	}
	n := len(m.groups[groupKey])
	delete(m.groups, groupKey)
	return n, nil
}

func (m *memScheduler) Pending(_ context.Context, groupKey string) ([]scheduler.Invocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]scheduler.Invocation(nil), m.groups[groupKey]...), nil
}

func (m *memScheduler) Groups(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.groups))
	for key := range m.groups {
		out = append(out, key)
	}
	sort.Strings(out)
	return out, nil
}

type awardCall struct {
	awardType enums.AwardType
	req       awards.Request
}

type recordingAwarder struct {
	calls  []awardCall
	errFor map[int64]error
}

func (r *recordingAwarder) Award(_ context.Context, awardType enums.AwardType, req awards.Request) (*awards.Outcome, error) {
	r.calls = append(r.calls, awardCall{awardType: awardType, req: req})
	if err, ok := r.errFor[req.EngagementID]; ok {
		return nil, err
	}
	return &awards.Outcome{AwardType: awardType, AwardedID: int64(len(r.calls))}, nil
}

type catalog struct {
	conn       *gorm.DB
	course     models.Post
	lesson     models.Post
	membership models.Post
	plan       models.Post
	email      models.EngagementTemplate
	badge      models.EngagementTemplate
	cert       models.EngagementTemplate
}

func seedCatalog(t *testing.T, conn *gorm.DB) *catalog {
	t.Helper()
	c := &catalog{conn: conn}
	c.course = models.Post{Type: enums.PostTypeCourse, Title: "Go 101"}
	require.NoError(t, conn.Create(&c.course).Error)
	c.lesson = models.Post{Type: enums.PostTypeLesson, Title: "Goroutines", ParentCourseID: &c.course.ID}
	require.NoError(t, conn.Create(&c.lesson).Error)
	c.membership = models.Post{Type: enums.PostTypeMembership, Title: "Gold"}
	require.NoError(t, conn.Create(&c.membership).Error)
	c.plan = models.Post{Type: enums.PostTypeAccessPlan, Title: "Monthly"}
	require.NoError(t, conn.Create(&c.plan).Error)

	c.email = models.EngagementTemplate{Type: enums.AwardEmail, Subject: "Hi", Content: "Welcome"}
	require.NoError(t, conn.Create(&c.email).Error)
	c.badge = models.EngagementTemplate{Type: enums.AwardAchievement, Title: "Badge", Content: "Nice"}
	require.NoError(t, conn.Create(&c.badge).Error)
	c.cert = models.EngagementTemplate{Type: enums.AwardCertificate, Title: "Certificate", Content: "Certified"}
	require.NoError(t, conn.Create(&c.cert).Error)
	return c
}

func (c *catalog) define(t *testing.T, def models.Engagement) models.Engagement {
	t.Helper()
	if def.Status == "" {
		def.Status = enums.EngagementStatusPublish
	}
	require.NoError(t, c.conn.Create(&def).Error)
	return def
}

func int64Ptr(v int64) *int64 {
	return &v
}

var errBoom = errors.New("boom")
