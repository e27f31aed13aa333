package awards

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/lms-engagements/pkg/config"
	"github.com/angelmondragon/lms-engagements/pkg/db"
	"github.com/angelmondragon/lms-engagements/pkg/db/models"
	"github.com/angelmondragon/lms-engagements/pkg/enums"
	pkgerrors "github.com/angelmondragon/lms-engagements/pkg/errors"
	"github.com/angelmondragon/lms-engagements/pkg/logger"
	"github.com/angelmondragon/lms-engagements/pkg/mail"
	"github.com/angelmondragon/lms-engagements/pkg/metrics"
)

const awardRecordConstraint = "ux_award_records_user_post_template"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// HandlerParams wires award handler dependencies.
type HandlerParams struct {
	Repo    Repository
	DB      txRunner
	Sender  mail.Sender
	Site    config.SiteConfig
	Logger  *logger.Logger
	Metrics *metrics.EngagementMetrics
	Now     func() time.Time
}

type base struct {
	awardType enums.AwardType
	repo      Repository
	db        txRunner
	renderer  renderer
	logg      *logger.Logger
	metrics   *metrics.EngagementMetrics
	now       func() time.Time
}

func newBase(awardType enums.AwardType, params HandlerParams) (base, error) {
	if params.Repo == nil {
		return base{}, pkgerrors.New(pkgerrors.CodeDependency, "awards repository required")
	}
	if params.DB == nil {
		return base{}, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return base{
		awardType: awardType,
		repo:      params.Repo,
		db:        params.DB,
		renderer:  renderer{site: params.Site},
		logg:      logg,
		metrics:   params.Metrics,
		now:       now,
	}, nil
}

func (b base) template(ctx context.Context, templateID int64) (*models.EngagementTemplate, error) {
	tmpl, err := b.repo.GetTemplate(ctx, templateID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "award template not found").WithDetails(map[string]any{"template_id": templateID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load award template")
	}
	if tmpl.Type != b.awardType {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "award template has a different type").WithDetails(map[string]any{
			"template_id":   templateID,
			"template_type": tmpl.Type,
			"award_type":    b.awardType,
		})
	}
	return tmpl, nil
}

func (b base) user(ctx context.Context, userID int64) (*models.User, error) {
	user, err := b.repo.GetUser(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found").WithDetails(map[string]any{"user_id": userID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func (b base) ensureNotAwarded(ctx context.Context, req Request) error {
	exists, err := b.repo.AwardRecordExists(ctx, req.UserID, req.RelatedPostID, req.TemplateID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check award record")
	}
	if exists {
		return duplicateError(req)
	}
	return nil
}

// writeRecord inserts the AwardRecord. A unique violation means another
// invocation won the race and is reported as a duplicate.
func (b base) writeRecord(ctx context.Context, repo Repository, req Request, awardedAt time.Time) (*models.AwardRecord, error) {
	record := &models.AwardRecord{
		UserID:        req.UserID,
		RelatedPostID: req.RelatedPostID,
		TemplateID:    req.TemplateID,
		AwardType:     b.awardType,
		EngagementID:  req.EngagementID,
		AwardedAt:     awardedAt,
	}
	if err := repo.CreateAwardRecord(ctx, record); err != nil {
		if db.IsUniqueViolation(err, awardRecordConstraint) {
			return nil, duplicateError(req)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write award record")
	}
	return record, nil
}

func (b base) finish(ctx context.Context, req Request, outcome *Outcome, err error) (*Outcome, error) {
	ctx = b.logg.WithFields(ctx, map[string]any{
		"award_type":      b.awardType,
		"user_id":         req.UserID,
		"template_id":     req.TemplateID,
		"related_post_id": req.RelatedPostID,
		"engagement_id":   req.EngagementID,
	})
	switch {
	case err == nil:
		b.metrics.ObserveAward(string(b.awardType), metrics.AwardResultGranted)
		b.logg.Info(ctx, "award granted")
		return outcome, nil
	case pkgerrors.HasCode(err, pkgerrors.CodeDuplicate):
		b.metrics.ObserveAward(string(b.awardType), metrics.AwardResultDuplicate)
		b.logg.Info(ctx, "award skipped, already granted")
	case pkgerrors.HasCode(err, pkgerrors.CodeNotEligible):
		b.metrics.ObserveAward(string(b.awardType), metrics.AwardResultNotEligible)
		b.logg.Info(ctx, "award skipped, user not eligible")
	default:
		b.metrics.ObserveAward(string(b.awardType), metrics.AwardResultFailed)
		b.logg.Error(b.logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), "award failed", err)
	}
	return nil, err
}

var errNoParentCourse = errors.New("post has no parent course")
