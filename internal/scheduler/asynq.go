package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/multierr"

	pkgerrors "github.com/angelmondragon/lms-engagements/pkg/errors"
	"github.com/angelmondragon/lms-engagements/pkg/logger"
	"github.com/angelmondragon/lms-engagements/pkg/metrics"
	"github.com/angelmondragon/lms-engagements/pkg/redis"
)

const defaultQueue = "engagements"

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type inspector interface {
	DeleteTask(queue, id string) error
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
}

// AsynqParams wires the asynq-backed scheduler.
type AsynqParams struct {
	Client    enqueuer
	Inspector inspector
	Index     redis.SetStore
	Queue     string
	MaxRetry  int
	Logger    *logger.Logger
	Metrics   *metrics.EngagementMetrics
}

// AsynqScheduler schedules invocations as asynq tasks and keeps a Redis set of
// task ids per group so a whole group can be canceled.
type AsynqScheduler struct {
	client    enqueuer
	inspector inspector
	index     redis.SetStore
	queue     string
	maxRetry  int
	logg      *logger.Logger
	metrics   *metrics.EngagementMetrics
}

var _ Scheduler = (*AsynqScheduler)(nil)

func NewAsynqScheduler(params AsynqParams) (*AsynqScheduler, error) {
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "asynq client required")
	}
	if params.Inspector == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "asynq inspector required")
	}
	if params.Index == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "schedule index store required")
	}
	queue := params.Queue
	if queue == "" {
		queue = defaultQueue
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &AsynqScheduler{
		client:    params.Client,
		inspector: params.Inspector,
		index:     params.Index,
		queue:     queue,
		maxRetry:  params.MaxRetry,
		logg:      logg,
		metrics:   params.Metrics,
	}, nil
}

func (s *AsynqScheduler) Schedule(ctx context.Context, inv Invocation) (string, error) {
	if err := inv.validate(); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid invocation")
	}
	taskID := inv.taskID()
	inv.TaskID = taskID
	body, err := encodePayload(inv)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode invocation")
	}

	group := inv.GroupKey()
	groupSet := s.index.ScheduleGroupKey(group)

	// Index first so a cancel racing with this call always sees the task.
	if err := s.index.SAdd(ctx, groupSet, taskID); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "index scheduled task")
	}
	if err := s.index.SAdd(ctx, s.index.ScheduleGroupsKey(), group); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "index schedule group")
	}

	opts := []asynq.Option{
		asynq.TaskID(taskID),
		asynq.Queue(s.queue),
		asynq.ProcessAt(inv.FireAt),
	}
	if s.maxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(s.maxRetry))
	}
	if _, err := s.client.EnqueueContext(ctx, asynq.NewTask(inv.Action(), body), opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			s.logg.Info(s.logg.WithFields(ctx, map[string]any{"task_id": taskID, "event_id": inv.EventID}), "award already scheduled for event")
			return taskID, nil
		}
		if remErr := s.index.SRem(ctx, groupSet, taskID); remErr != nil {
			s.logg.Error(ctx, "failed to unindex task after enqueue failure", remErr)
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue scheduled award")
	}

	s.metrics.IncScheduled(string(inv.AwardType))
	ctx = s.logg.WithFields(ctx, map[string]any{
		"task_id":  taskID,
		"group":    group,
		"action":   inv.Action(),
		"fire_at":  inv.FireAt,
		"user_id":  inv.UserID,
		"template": inv.TemplateID,
	})
	s.logg.Info(ctx, "award scheduled")
	return taskID, nil
}

// CancelGroup deletes every indexed task of the group. Tasks that already ran
// or are running are skipped. The index entries of tasks that could not be
// deleted for other reasons are kept so a retry can pick them up.
func (s *AsynqScheduler) CancelGroup(ctx context.Context, groupKey string) (int, error) {
	groupSet := s.index.ScheduleGroupKey(groupKey)
	taskIDs, err := s.index.SMembers(ctx, groupSet)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read schedule group")
	}

	canceled := 0
	released := make([]string, 0, len(taskIDs))
	var errs error
	for _, taskID := range taskIDs {
		deleted, err := s.deleteTask(ctx, taskID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete task %s: %w", taskID, err))
			continue
		}
		if deleted {
			canceled++
		}
		released = append(released, taskID)
	}

	if err := s.index.SRem(ctx, groupSet, released...); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("unindex canceled tasks: %w", err))
	}
	if errs == nil {
		if err := s.forgetGroup(ctx, groupKey); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	s.metrics.AddCanceled(canceled)
	ctx = s.logg.WithFields(ctx, map[string]any{"group": groupKey, "canceled": canceled, "indexed": len(taskIDs)})
	if errs != nil {
		s.logg.Error(ctx, "schedule group cancel incomplete", errs)
		return canceled, pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "cancel schedule group")
	}
	if len(taskIDs) > 0 {
		s.logg.Info(ctx, "schedule group canceled")
	}
	return canceled, nil
}

func (s *AsynqScheduler) deleteTask(ctx context.Context, taskID string) (bool, error) {
	err := s.inspector.DeleteTask(s.queue, taskID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return false, nil
	}
	info, infoErr := s.inspector.GetTaskInfo(s.queue, taskID)
	if infoErr == nil && info.State == asynq.TaskStateActive {
		s.logg.Warn(s.logg.WithField(ctx, "task_id", taskID), "scheduled award already in flight, not canceled")
		return false, nil
	}
	return false, err
}

func (s *AsynqScheduler) forgetGroup(ctx context.Context, groupKey string) error {
	if err := s.index.Del(ctx, s.index.ScheduleGroupKey(groupKey)); err != nil {
		return fmt.Errorf("drop schedule group: %w", err)
	}
	if err := s.index.SRem(ctx, s.index.ScheduleGroupsKey(), groupKey); err != nil {
		return fmt.Errorf("unindex schedule group: %w", err)
	}
	return nil
}

// Pending lists invocations of the group that have not fired yet. Index
// entries whose task is gone are pruned.
func (s *AsynqScheduler) Pending(ctx context.Context, groupKey string) ([]Invocation, error) {
	groupSet := s.index.ScheduleGroupKey(groupKey)
	taskIDs, err := s.index.SMembers(ctx, groupSet)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read schedule group")
	}

	pending := make([]Invocation, 0, len(taskIDs))
	stale := []string{}
	for _, taskID := range taskIDs {
		info, err := s.inspector.GetTaskInfo(s.queue, taskID)
		if err != nil {
			if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
				stale = append(stale, taskID)
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "inspect scheduled task")
		}
		switch info.State {
		case asynq.TaskStateScheduled, asynq.TaskStatePending, asynq.TaskStateRetry:
		default:
			continue
		}
		inv, err := decodeInvocation(info.Type, info.Payload)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "task_id", taskID), "undecodable scheduled task")
			continue
		}
		inv.TaskID = info.ID
		inv.FireAt = info.NextProcessAt
		inv.State = info.State.String()
		pending = append(pending, inv)
	}

	if len(stale) > 0 {
		if err := s.index.SRem(ctx, groupSet, stale...); err != nil {
			s.logg.Error(ctx, "failed to prune stale schedule entries", err)
		} else if err := pruneGroup(ctx, s.index, groupKey); err != nil {
			s.logg.Error(ctx, "failed to prune schedule group", err)
		}
	}
	return pending, nil
}

// pruneGroup drops the group from the group index once its task set is empty.
// The set is read again afterwards so a task indexed in between restores it.
func pruneGroup(ctx context.Context, index redis.SetStore, groupKey string) error {
	groupSet := index.ScheduleGroupKey(groupKey)
	remaining, err := index.SMembers(ctx, groupSet)
	if err != nil || len(remaining) > 0 {
		return err
	}
	if err := index.SRem(ctx, index.ScheduleGroupsKey(), groupKey); err != nil {
		return err
	}
	if remaining, err = index.SMembers(ctx, groupSet); err != nil || len(remaining) == 0 {
		return err
	}
	return index.SAdd(ctx, index.ScheduleGroupsKey(), groupKey)
}

func (s *AsynqScheduler) Groups(ctx context.Context) ([]string, error) {
	groups, err := s.index.SMembers(ctx, s.index.ScheduleGroupsKey())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list schedule groups")
	}
	return groups, nil
}
