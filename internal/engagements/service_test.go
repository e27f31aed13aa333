package engagements

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/lms-engagements/internal/scheduler"
	"github.com/angelmondragon/lms-engagements/pkg/enums"
	pkgerrors "github.com/angelmondragon/lms-engagements/pkg/errors"
)

type serviceFixture struct {
	*catalog
	repo  *Repository
	sched *memScheduler
	svc   Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	conn := openTestDB(t)
	f := &serviceFixture{catalog: seedCatalog(t, conn), repo: NewRepository(conn), sched: newMemScheduler()}
	svc, err := NewService(ServiceParams{Repo: f.repo, Scheduler: f.sched})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *serviceFixture) schedule(t *testing.T, engagementID, userID int64) {
	t.Helper()
	_, err := f.sched.Schedule(context.Background(), scheduler.Invocation{
		AwardType:    enums.AwardEmail,
		EngagementID: engagementID,
		UserID:       userID,
		TemplateID:   f.email.ID,
		FireAt:       fixedNow.Add(24 * time.Hour),
	})
	require.NoError(t, err)
}

func TestCreateValidatesInput(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	cases := map[string]Input{
		"missing trigger":   {AwardType: "email", TemplateID: f.email.ID},
		"unknown trigger":   {TriggerType: "page_viewed", AwardType: "email", TemplateID: f.email.ID},
		"unknown award":     {TriggerType: "course_completed", AwardType: "badge", TemplateID: f.email.ID},
		"negative delay":    {TriggerType: "course_completed", AwardType: "email", TemplateID: f.email.ID, DelayDays: -1},
		"missing template":  {TriggerType: "course_completed", AwardType: "email", TemplateID: 9999},
		"template mismatch": {TriggerType: "course_completed", AwardType: "certificate", TemplateID: f.email.ID},
		"missing post":      {TriggerType: "course_completed", AwardType: "email", TemplateID: f.email.ID, TriggerPostID: int64Ptr(9999)},
		"trash on create":   {TriggerType: "course_completed", AwardType: "email", TemplateID: f.email.ID, Status: "trash"},
	}
	for name, input := range cases {
		_, err := f.svc.Create(ctx, input)
		require.Error(t, err, name)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), name)
	}
}

func TestCreateScopesTriggerPostToTrigger(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	cases := map[string]Input{
		"registration with post":   {TriggerType: "user_registration", AwardType: "email", TemplateID: f.email.ID, TriggerPostID: &f.course.ID},
		"lesson trigger on course": {TriggerType: "lesson_completed", AwardType: "email", TemplateID: f.email.ID, TriggerPostID: &f.course.ID},
		"course trigger on lesson": {TriggerType: "course_completed", AwardType: "email", TemplateID: f.email.ID, TriggerPostID: &f.lesson.ID},
		"membership on plan":       {TriggerType: "membership_enrollment", AwardType: "email", TemplateID: f.email.ID, TriggerPostID: &f.plan.ID},
	}
	for name, input := range cases {
		_, err := f.svc.Create(ctx, input)
		require.Error(t, err, name)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), name)
		var typed *pkgerrors.Error
		require.True(t, errors.As(err, &typed), name)
		assert.Contains(t, typed.Details(), "trigger_post_id", name)
	}

	_, err := f.svc.Create(ctx, Input{TriggerType: "lesson_completed", AwardType: "email", TemplateID: f.email.ID, TriggerPostID: &f.lesson.ID})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, Input{TriggerType: "user_registration", AwardType: "email", TemplateID: f.email.ID})
	require.NoError(t, err)
}

func TestCreateDefaultsToPublished(t *testing.T) {
	f := newServiceFixture(t)
	created, err := f.svc.Create(context.Background(), Input{
		Title:         "  Welcome  ",
		TriggerType:   "course_enrollment",
		TriggerPostID: &f.course.ID,
		AwardType:     "email",
		TemplateID:    f.email.ID,
		DelayDays:     2,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Welcome", created.Title)
	assert.Equal(t, enums.EngagementStatusPublish, created.Status)
	assert.True(t, created.Delayed())

	loaded, err := f.svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, f.course.ID, *loaded.TriggerPostID)
}

func TestUpdateKeepsStatusAndRejectsTrashed(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, Input{TriggerType: "course_completed", AwardType: "email", TemplateID: f.email.ID, Status: "draft"})
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, created.ID, Input{TriggerType: "lesson_completed", AwardType: "achievement", TemplateID: f.badge.ID, DelayDays: 1})
	require.NoError(t, err)
	assert.Equal(t, enums.EngagementStatusDraft, updated.Status)
	assert.Equal(t, enums.TriggerLessonCompleted, updated.TriggerType)
	assert.Equal(t, f.badge.ID, updated.TemplateID)
	assert.Equal(t, 1, updated.DelayDays)

	_, err = f.svc.Trash(ctx, created.ID)
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, created.ID, Input{TriggerType: "lesson_completed", AwardType: "achievement", TemplateID: f.badge.ID})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	_, err = f.svc.Update(ctx, 9999, Input{TriggerType: "lesson_completed", AwardType: "achievement", TemplateID: f.badge.ID})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteCancelsOnlyItsOwnGroup(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	doomed, err := f.svc.Create(ctx, Input{TriggerType: "course_enrollment", AwardType: "email", TemplateID: f.email.ID, DelayDays: 1})
	require.NoError(t, err)
	kept, err := f.svc.Create(ctx, Input{TriggerType: "course_enrollment", AwardType: "email", TemplateID: f.email.ID, DelayDays: 2})
	require.NoError(t, err)

	f.schedule(t, doomed.ID, 1)
	f.schedule(t, doomed.ID, 2)
	f.schedule(t, kept.ID, 1)

	require.NoError(t, f.svc.Delete(ctx, doomed.ID))

	_, err = f.svc.Get(ctx, doomed.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	gone, _ := f.sched.Pending(ctx, scheduler.GroupKey(doomed.ID))
	assert.Empty(t, gone)

	pending, err := f.svc.ListScheduled(ctx, kept.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	err = f.svc.Delete(ctx, doomed.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteAbortsWhenCancelFails(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, Input{TriggerType: "course_enrollment", AwardType: "email", TemplateID: f.email.ID, DelayDays: 1})
	require.NoError(t, err)
	f.schedule(t, created.ID, 1)
	f.sched.cancelErr = errBoom

	err = f.svc.Delete(ctx, created.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

	_, err = f.svc.Trash(ctx, created.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

	loaded, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EngagementStatusPublish, loaded.Status)
}

func TestTrashCancelsAndRestoreReturnsDraft(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, Input{TriggerType: "course_enrollment", AwardType: "email", TemplateID: f.email.ID, DelayDays: 1})
	require.NoError(t, err)
	f.schedule(t, created.ID, 5)

	trashed, err := f.svc.Trash(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EngagementStatusTrash, trashed.Status)
	gone, _ := f.sched.Pending(ctx, scheduler.GroupKey(created.ID))
	assert.Empty(t, gone)

	matches, err := f.repo.FindByTrigger(ctx, []enums.TriggerType{enums.TriggerCourseEnrollment}, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)

	page, err := f.svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	restored, err := f.svc.Restore(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EngagementStatusDraft, restored.Status)

	_, err = f.svc.Restore(ctx, created.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestListPaginatesNewestFirst(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	var ids []int64
	for i := 0; i < 3; i++ {
		created, err := f.svc.Create(ctx, Input{TriggerType: "quiz_passed", AwardType: "achievement", TemplateID: f.badge.ID})
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}
	_, err := f.svc.Create(ctx, Input{TriggerType: "quiz_failed", AwardType: "email", TemplateID: f.email.ID})
	require.NoError(t, err)

	page, err := f.svc.List(ctx, ListFilter{TriggerType: enums.TriggerQuizPassed, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, ids[2], page.Items[0].ID)
	assert.Equal(t, ids[1], page.Items[1].ID)
	require.NotEmpty(t, page.NextCursor)

	page, err = f.svc.List(ctx, ListFilter{TriggerType: enums.TriggerQuizPassed, Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, ids[0], page.Items[0].ID)
	assert.Empty(t, page.NextCursor)

	_, err = f.svc.List(ctx, ListFilter{Status: "archived"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	_, err = f.svc.List(ctx, ListFilter{Cursor: "%%%"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
