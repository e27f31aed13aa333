package engagements

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/lms-engagements/internal/awards"
	"github.com/angelmondragon/lms-engagements/internal/scheduler"
	"github.com/angelmondragon/lms-engagements/pkg/db/models"
	"github.com/angelmondragon/lms-engagements/pkg/enums"
	pkgerrors "github.com/angelmondragon/lms-engagements/pkg/errors"
	"github.com/angelmondragon/lms-engagements/pkg/logger"
	"github.com/angelmondragon/lms-engagements/pkg/metrics"
)

const day = 24 * time.Hour

// DefinitionFinder looks up definitions bound to triggers.
type DefinitionFinder interface {
	FindByTrigger(ctx context.Context, triggers []enums.TriggerType, relatedPostID *int64) ([]models.Engagement, error)
}

// Awarder grants awards synchronously.
type Awarder interface {
	Award(ctx context.Context, awardType enums.AwardType, req awards.Request) (*awards.Outcome, error)
}

// DispatcherParams wires the trigger dispatcher.
type DispatcherParams struct {
	Definitions DefinitionFinder
	Posts       PostLookup
	Awards      Awarder
	Scheduler   scheduler.Scheduler
	Logger      *logger.Logger
	Metrics     *metrics.EngagementMetrics
	Now         func() time.Time
}

// Dispatcher routes domain events to the engagements bound to them.
type Dispatcher struct {
	definitions DefinitionFinder
	posts       PostLookup
	awards      Awarder
	scheduler   scheduler.Scheduler
	logg        *logger.Logger
	metrics     *metrics.EngagementMetrics
	now         func() time.Time
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Definitions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "engagement definitions required")
	}
	if params.Posts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "post lookup required")
	}
	if params.Awards == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "award registry required")
	}
	if params.Scheduler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "scheduler required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		definitions: params.Definitions,
		posts:       params.Posts,
		awards:      params.Awards,
		scheduler:   params.Scheduler,
		logg:        logg,
		metrics:     params.Metrics,
		now:         now,
	}, nil
}

// OnEvent processes every definition matching the event. Immediate
// definitions are awarded inline, delayed ones are scheduled. A failure on
// one definition does not stop the others; all failures are returned
// together alongside the per-definition result.
func (d *Dispatcher) OnEvent(ctx context.Context, event Event) (*DispatchResult, error) {
	if !event.Name.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown event").WithDetails(map[string]any{"event": event.Name})
	}
	if event.UserID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	ctx = d.logg.WithUserID(ctx, event.UserID)
	ctx = d.logg.WithField(ctx, "event", event.Name)
	d.metrics.IncEvent(string(event.Name))

	result := &DispatchResult{Event: event, Items: []DispatchItem{}}
	triggers, err := ResolveTriggers(ctx, d.posts, event)
	if err != nil {
		return nil, err
	}
	result.Triggers = triggers
	if len(triggers) == 0 {
		return result, nil
	}

	defs, err := d.definitions.FindByTrigger(ctx, triggers, event.RelatedPostID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find engagements")
	}
	if len(defs) == 0 {
		d.logg.Debug(ctx, "no engagements matched")
		return result, nil
	}

	var errs error
	for _, def := range defs {
		d.metrics.IncMatched(string(def.TriggerType))
		item, err := d.handle(d.logg.WithEngagementID(ctx, def.ID), def, event)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("engagement %d: %w", def.ID, err))
		}
		result.Items = append(result.Items, item)
	}

	d.logg.Info(d.logg.WithFields(ctx, map[string]any{
		"matched":   len(defs),
		"granted":   result.Count(OutcomeGranted),
		"scheduled": result.Count(OutcomeScheduled),
		"failed":    result.Count(OutcomeFailed),
	}), "event dispatched")
	return result, errs
}

func (d *Dispatcher) handle(ctx context.Context, def models.Engagement, event Event) (DispatchItem, error) {
	item := DispatchItem{
		EngagementID:  def.ID,
		AwardType:     def.AwardType,
		TemplateID:    def.TemplateID,
		RelatedPostID: relatedPostFor(def, event),
	}

	if def.Delayed() {
		fireAt := d.now().Add(time.Duration(def.DelayDays) * day)
		taskID, err := d.scheduler.Schedule(ctx, scheduler.Invocation{
			AwardType:     def.AwardType,
			EngagementID:  def.ID,
			UserID:        event.UserID,
			TemplateID:    def.TemplateID,
			RelatedPostID: item.RelatedPostID,
			FireAt:        fireAt,
			EventID:       event.ID,
		})
		if err != nil {
			item.Outcome = OutcomeFailed
			item.Error = err.Error()
			return item, err
		}
		item.Outcome = OutcomeScheduled
		item.TaskID = taskID
		item.FireAt = &fireAt
		return item, nil
	}

	outcome, err := d.awards.Award(ctx, def.AwardType, awards.Request{
		UserID:        event.UserID,
		TemplateID:    def.TemplateID,
		RelatedPostID: item.RelatedPostID,
		EngagementID:  def.ID,
	})
	switch {
	case err == nil:
		item.Outcome = OutcomeGranted
		if outcome != nil {
			item.AwardedID = outcome.AwardedID
		}
		return item, nil
	case pkgerrors.HasCode(err, pkgerrors.CodeDuplicate):
		item.Outcome = OutcomeDuplicate
		return item, nil
	case pkgerrors.HasCode(err, pkgerrors.CodeNotEligible):
		item.Outcome = OutcomeNotEligible
		return item, nil
	default:
		item.Outcome = OutcomeFailed
		item.Error = err.Error()
		return item, err
	}
}

// relatedPostFor picks the post an award is recorded against. Registration
// has no post, except certificates which are keyed on their template so a
// user earns each registration certificate once.
func relatedPostFor(def models.Engagement, event Event) int64 {
	if def.TriggerType == enums.TriggerUserRegistration {
		if def.AwardType == enums.AwardCertificate {
			return def.TemplateID
		}
		return 0
	}
	if event.RelatedPostID == nil {
		return 0
	}
	return *event.RelatedPostID
}
