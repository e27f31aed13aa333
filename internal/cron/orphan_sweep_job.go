package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/lms-engagements/internal/scheduler"
	"github.com/angelmondragon/lms-engagements/pkg/db/models"
	"github.com/angelmondragon/lms-engagements/pkg/enums"
	pkgerrors "github.com/angelmondragon/lms-engagements/pkg/errors"
	"github.com/angelmondragon/lms-engagements/pkg/logger"
)

const orphanSweepJobName = "orphaned_schedule_sweep"

type definitionLookup interface {
	Get(ctx context.Context, id int64) (*models.Engagement, error)
}

// OrphanSweepJobParams wires the orphaned schedule sweep.
type OrphanSweepJobParams struct {
	Logger      *logger.Logger
	Scheduler   scheduler.Scheduler
	Definitions definitionLookup
}

// NewOrphanSweepJob returns a job that cancels scheduled awards whose
// definition was deleted or trashed without its group being canceled, and
// prunes fired tasks from the groups of live definitions.
func NewOrphanSweepJob(params OrphanSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Scheduler == nil {
		return nil, fmt.Errorf("scheduler required")
	}
	if params.Definitions == nil {
		return nil, fmt.Errorf("engagement definitions required")
	}
	return &orphanSweepJob{
		logg:        params.Logger,
		scheduler:   params.Scheduler,
		definitions: params.Definitions,
	}, nil
}

type orphanSweepJob struct {
	logg        *logger.Logger
	scheduler   scheduler.Scheduler
	definitions definitionLookup
}

func (j *orphanSweepJob) Name() string { return orphanSweepJobName }

func (j *orphanSweepJob) Run(ctx context.Context) error {
	groups, err := j.scheduler.Groups(ctx)
	if err != nil {
		return err
	}

	var (
		errs     error
		orphans  int
		canceled int
	)
	for _, group := range groups {
		groupCtx := j.logg.WithField(ctx, "group", group)
		engagementID, ok := scheduler.ParseGroupKey(group)
		if !ok {
			j.logg.Warn(groupCtx, "unrecognized schedule group")
			continue
		}

		orphaned, err := j.orphaned(ctx, engagementID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("group %s: %w", group, err))
			continue
		}
		if !orphaned {
			if _, err := j.scheduler.Pending(ctx, group); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("group %s: %w", group, err))
			}
			continue
		}

		orphans++
		n, err := j.scheduler.CancelGroup(ctx, group)
		canceled += n
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("group %s: %w", group, err))
			continue
		}
		j.logg.Info(j.logg.WithField(groupCtx, "canceled", n), "orphaned schedule group canceled")
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"groups":   len(groups),
		"orphans":  orphans,
		"canceled": canceled,
	}), "orphaned schedule sweep complete")
	return errs
}

func (j *orphanSweepJob) orphaned(ctx context.Context, engagementID int64) (bool, error) {
	def, err := j.definitions.Get(ctx, engagementID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return true, nil
		}
		return false, err
	}
	return def.Status == enums.EngagementStatusTrash, nil
}
