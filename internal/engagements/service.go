package engagements

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/angelmondragon/lms-engagements/internal/scheduler"
	"github.com/angelmondragon/lms-engagements/pkg/db/models"
	"github.com/angelmondragon/lms-engagements/pkg/enums"
	pkgerrors "github.com/angelmondragon/lms-engagements/pkg/errors"
	"github.com/angelmondragon/lms-engagements/pkg/logger"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// ServiceParams groups dependencies for the engagement admin service.
type ServiceParams struct {
	Repo      *Repository
	Scheduler scheduler.Scheduler
	Logger    *logger.Logger
}

// Service exposes admin operations over engagement definitions.
type Service interface {
	Create(ctx context.Context, input Input) (*models.Engagement, error)
	Update(ctx context.Context, id int64, input Input) (*models.Engagement, error)
	Get(ctx context.Context, id int64) (*models.Engagement, error)
	List(ctx context.Context, filter ListFilter) (ListPage, error)
	Trash(ctx context.Context, id int64) (*models.Engagement, error)
	Restore(ctx context.Context, id int64) (*models.Engagement, error)
	Delete(ctx context.Context, id int64) error
	ListScheduled(ctx context.Context, id int64) ([]scheduler.Invocation, error)
}

type service struct {
	repo      *Repository
	scheduler scheduler.Scheduler
	logg      *logger.Logger
}

// NewService builds the admin service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "engagement repo is required")
	}
	if params.Scheduler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduler is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: params.Repo, scheduler: params.Scheduler, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input Input) (*models.Engagement, error) {
	engagement, err := s.build(ctx, input)
	if err != nil {
		return nil, err
	}
	if engagement.Status == "" {
		engagement.Status = enums.EngagementStatusPublish
	}
	if err := s.repo.Create(ctx, engagement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create engagement")
	}
	s.logg.Info(s.logg.WithEngagementID(ctx, engagement.ID), "engagement created")
	return engagement, nil
}

// Update rewrites a live definition. Invocations already scheduled keep the
// arguments they were scheduled with.
func (s *service) Update(ctx context.Context, id int64, input Input) (*models.Engagement, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == enums.EngagementStatusTrash {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "restore the engagement before editing it")
	}
	engagement, err := s.build(ctx, input)
	if err != nil {
		return nil, err
	}
	engagement.ID = current.ID
	engagement.CreatedAt = current.CreatedAt
	if engagement.Status == "" {
		engagement.Status = current.Status
	}
	if err := s.repo.Update(ctx, engagement); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update engagement")
	}
	return s.repo.Get(ctx, id)
}

func (s *service) Get(ctx context.Context, id int64) (*models.Engagement, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "engagement id is required")
	}
	return s.repo.Get(ctx, id)
}

func (s *service) List(ctx context.Context, filter ListFilter) (ListPage, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return ListPage{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if filter.TriggerType != "" && !filter.TriggerType.IsValid() {
		return ListPage{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid trigger filter")
	}
	if filter.AwardType != "" && !filter.AwardType.IsValid() {
		return ListPage{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid award type filter")
	}
	page, err := s.repo.List(ctx, filter)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return ListPage{}, err
		}
		return ListPage{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list engagements")
	}
	return page, nil
}

// Trash hides the definition from dispatch after canceling everything it
// still has scheduled.
func (s *service) Trash(ctx context.Context, id int64) (*models.Engagement, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == enums.EngagementStatusTrash {
		return current, nil
	}
	if err := s.cancelScheduled(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.SetStatus(ctx, id, enums.EngagementStatusTrash); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "trash engagement")
	}
	current.Status = enums.EngagementStatusTrash
	s.logg.Info(s.logg.WithEngagementID(ctx, id), "engagement trashed")
	return current, nil
}

// Restore brings a trashed definition back as a draft.
func (s *service) Restore(ctx context.Context, id int64) (*models.Engagement, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != enums.EngagementStatusTrash {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "engagement is not in the trash")
	}
	if err := s.repo.SetStatus(ctx, id, enums.EngagementStatusDraft); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore engagement")
	}
	current.Status = enums.EngagementStatusDraft
	return current, nil
}

// Delete cancels the definition's scheduled invocations and then removes it.
// Nothing is removed when the cancel fails.
func (s *service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "engagement id is required")
	}
	exists, err := s.repo.Exists(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load engagement")
	}
	if !exists {
		return notFound(id)
	}
	if err := s.cancelScheduled(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete engagement")
	}
	s.logg.Info(s.logg.WithEngagementID(ctx, id), "engagement deleted")
	return nil
}

func (s *service) ListScheduled(ctx context.Context, id int64) ([]scheduler.Invocation, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.scheduler.Pending(ctx, scheduler.GroupKey(id))
}

func (s *service) cancelScheduled(ctx context.Context, id int64) error {
	canceled, err := s.scheduler.CancelGroup(ctx, scheduler.GroupKey(id))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel scheduled awards")
	}
	if canceled > 0 {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"engagement_id": id, "canceled": canceled}), "scheduled awards canceled")
	}
	return nil
}

func (s *service) build(ctx context.Context, input Input) (*models.Engagement, error) {
	if err := validate.Struct(input); err != nil {
		return nil, validationError(err)
	}
	trigger, err := enums.ParseTriggerType(input.TriggerType)
	if err != nil {
		return nil, fieldError("trigger_type", "is invalid")
	}
	awardType, err := enums.ParseAwardType(input.AwardType)
	if err != nil {
		return nil, fieldError("award_type", "is invalid")
	}

	tmpl, err := s.repo.FindTemplate(ctx, input.TemplateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fieldError("template_id", "does not exist")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load template")
	}
	if tmpl.Type != awardType {
		return nil, fieldError("template_id", "is not a "+string(awardType)+" template")
	}
	if input.TriggerPostID != nil {
		wantType, scoped := triggerPostTypes[trigger]
		if !scoped {
			return nil, fieldError("trigger_post_id", "is not allowed for "+string(trigger))
		}
		post, err := s.repo.FindPost(ctx, *input.TriggerPostID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fieldError("trigger_post_id", "does not exist")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load trigger post")
		}
		if post.Type != wantType {
			return nil, fieldError("trigger_post_id", "must be a "+string(wantType)+" for "+string(trigger))
		}
	}

	return &models.Engagement{
		Title:         strings.TrimSpace(input.Title),
		Status:        enums.EngagementStatus(input.Status),
		TriggerType:   trigger,
		TriggerPostID: input.TriggerPostID,
		AwardType:     awardType,
		TemplateID:    input.TemplateID,
		DelayDays:     input.DelayDays,
	}, nil
}

func fieldError(field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{field: message})
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := map[string]string{}
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			details[fe.Field()] = "is required"
		case "oneof":
			details[fe.Field()] = "must be one of " + fe.Param()
		default:
			details[fe.Field()] = "is invalid"
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}
