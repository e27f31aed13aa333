package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/angelmondragon/lms-engagements/internal/awards"
	"github.com/angelmondragon/lms-engagements/pkg/db/models"
	"github.com/angelmondragon/lms-engagements/pkg/enums"
	pkgerrors "github.com/angelmondragon/lms-engagements/pkg/errors"
	"github.com/angelmondragon/lms-engagements/pkg/logger"
	"github.com/angelmondragon/lms-engagements/pkg/redis"
)

// DefinitionLookup loads engagement definitions. Missing definitions are
// reported with the NOT_FOUND error code.
type DefinitionLookup interface {
	Get(ctx context.Context, id int64) (*models.Engagement, error)
}

// Awarder grants awards by type.
type Awarder interface {
	Award(ctx context.Context, awardType enums.AwardType, req awards.Request) (*awards.Outcome, error)
}

// WorkerParams wires the scheduled award worker.
type WorkerParams struct {
	Definitions DefinitionLookup
	Awards      Awarder
	Index       redis.SetStore
	Logger      *logger.Logger
}

// Worker runs scheduled award invocations when asynq fires them.
type Worker struct {
	definitions DefinitionLookup
	awards      Awarder
	index       redis.SetStore
	logg        *logger.Logger
}

func NewWorker(params WorkerParams) (*Worker, error) {
	if params.Definitions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "engagement definitions required")
	}
	if params.Awards == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "award registry required")
	}
	if params.Index == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "schedule index store required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Worker{
		definitions: params.Definitions,
		awards:      params.Awards,
		index:       params.Index,
		logg:        logg,
	}, nil
}

// Register binds the worker to every award action on the mux.
func (w *Worker) Register(mux *asynq.ServeMux) {
	for _, awardType := range []enums.AwardType{enums.AwardEmail, enums.AwardAchievement, enums.AwardCertificate} {
		mux.Handle(awardType.Action(), w)
	}
}

// ProcessTask implements asynq.Handler. Returning an error wrapping
// asynq.SkipRetry archives the task; any other error is retried.
func (w *Worker) ProcessTask(ctx context.Context, task *asynq.Task) error {
	inv, err := decodeInvocation(task.Type(), task.Payload())
	if err != nil {
		w.logg.Error(w.logg.WithField(ctx, "task_type", task.Type()), "malformed scheduled award", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if taskID, ok := asynq.GetTaskID(ctx); ok && inv.TaskID == "" {
		inv.TaskID = taskID
	}

	ctx = w.logg.WithEngagementID(ctx, inv.EngagementID)
	ctx = w.logg.WithUserID(ctx, inv.UserID)
	ctx = w.logg.WithFields(ctx, map[string]any{"task_id": inv.TaskID, "award_type": inv.AwardType})

	result := w.run(ctx, inv)
	if !isRetry(result) {
		w.release(ctx, inv)
	}
	return result
}

func (w *Worker) run(ctx context.Context, inv Invocation) error {
	def, err := w.definitions.Get(ctx, inv.EngagementID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			w.logg.Warn(ctx, "engagement definition missing, scheduled award skipped")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	if def.Status == enums.EngagementStatusTrash {
		w.logg.Warn(ctx, "engagement definition trashed, scheduled award skipped")
		return fmt.Errorf("engagement %d is trashed: %w", def.ID, asynq.SkipRetry)
	}

	_, err = w.awards.Award(ctx, inv.AwardType, inv.Request())
	switch {
	case err == nil, awards.IsExpected(err):
		return nil
	case pkgerrors.HasCode(err, pkgerrors.CodeNotFound), pkgerrors.HasCode(err, pkgerrors.CodeValidation):
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	default:
		return err
	}
}

func (w *Worker) release(ctx context.Context, inv Invocation) {
	if inv.TaskID == "" {
		return
	}
	if err := w.index.SRem(ctx, w.index.ScheduleGroupKey(inv.GroupKey()), inv.TaskID); err != nil {
		w.logg.Error(ctx, "failed to unindex finished task", err)
		return
	}
	if err := pruneGroup(ctx, w.index, inv.GroupKey()); err != nil {
		w.logg.Error(ctx, "failed to prune schedule group", err)
	}
}

func isRetry(err error) bool {
	return err != nil && !errors.Is(err, asynq.SkipRetry)
}
