package awards

import (
	"context"
	"time"

	"github.com/angelmondragon/lms-engagements/pkg/db/models"
	"github.com/angelmondragon/lms-engagements/pkg/enums"
	pkgerrors "github.com/angelmondragon/lms-engagements/pkg/errors"
	"github.com/angelmondragon/lms-engagements/pkg/logger"
)

// Syncer rewrites awarded achievements and certificates from their template
// after the template has been edited.
type Syncer struct {
	repo     Repository
	renderer renderer
	logg     *logger.Logger
	now      func() time.Time
}

func NewSyncer(params HandlerParams) (*Syncer, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "awards repository required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Syncer{repo: params.Repo, renderer: renderer{site: params.Site}, logg: logg, now: now}, nil
}

// SyncTemplate updates every award issued from templateID and returns how many
// rows were rewritten.
func (s *Syncer) SyncTemplate(ctx context.Context, templateID int64) (int64, error) {
	tmpl, err := s.syncableTemplate(ctx, templateID)
	if err != nil {
		return 0, err
	}
	rows, err := s.repo.ListUserEngagementsByTemplate(ctx, templateID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list awarded engagements")
	}

	var synced int64
	for i := range rows {
		if err := s.apply(ctx, tmpl, &rows[i]); err != nil {
			return synced, err
		}
		synced++
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"template_id": templateID, "synced": synced})
	s.logg.Info(ctx, "awarded engagements synced from template")
	return synced, nil
}

// SyncAwarded updates a single awarded achievement or certificate.
func (s *Syncer) SyncAwarded(ctx context.Context, awardedID int64) error {
	awarded, err := s.repo.GetUserEngagement(ctx, awardedID)
	if err != nil {
		if isNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "awarded engagement not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load awarded engagement")
	}
	tmpl, err := s.syncableTemplate(ctx, awarded.TemplateID)
	if err != nil {
		return err
	}
	return s.apply(ctx, tmpl, awarded)
}

func (s *Syncer) syncableTemplate(ctx context.Context, templateID int64) (*models.EngagementTemplate, error) {
	tmpl, err := s.repo.GetTemplate(ctx, templateID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "award template not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load award template")
	}
	if tmpl.Type == enums.AwardEmail {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email templates have no awarded copies to sync")
	}
	return tmpl, nil
}

func (s *Syncer) apply(ctx context.Context, tmpl *models.EngagementTemplate, awarded *models.UserEngagement) error {
	user, err := s.repo.GetUser(ctx, awarded.UserID)
	if err != nil {
		if isNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "awarded user not found").WithDetails(map[string]any{"user_id": awarded.UserID})
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load awarded user")
	}
	title := s.renderer.render(tmpl.Title, user, awarded.AwardedAt)
	content := s.renderer.render(tmpl.Content, user, awarded.AwardedAt)
	if err := s.repo.UpdateUserEngagementContent(ctx, awarded.ID, title, content, s.now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update awarded engagement")
	}
	return nil
}
