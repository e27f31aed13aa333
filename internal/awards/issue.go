package awards

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/lms-engagements/pkg/db/models"
	"github.com/angelmondragon/lms-engagements/pkg/enums"
	pkgerrors "github.com/angelmondragon/lms-engagements/pkg/errors"
)

// IssueHandler awards achievements and certificates by copying the template
// into a user_engagements row.
type IssueHandler struct {
	base
}

func NewAchievementHandler(params HandlerParams) (*IssueHandler, error) {
	b, err := newBase(enums.AwardAchievement, params)
	if err != nil {
		return nil, err
	}
	return &IssueHandler{base: b}, nil
}

func NewCertificateHandler(params HandlerParams) (*IssueHandler, error) {
	b, err := newBase(enums.AwardCertificate, params)
	if err != nil {
		return nil, err
	}
	return &IssueHandler{base: b}, nil
}

func (h *IssueHandler) Award(ctx context.Context, req Request) (*Outcome, error) {
	outcome, err := h.award(ctx, req)
	return h.finish(ctx, req, outcome, err)
}

func (h *IssueHandler) award(ctx context.Context, req Request) (*Outcome, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	tmpl, err := h.template(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if err := h.ensureNotAwarded(ctx, req); err != nil {
		return nil, err
	}
	user, err := h.user(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	now := h.now().UTC()
	awarded := &models.UserEngagement{
		UserID:        req.UserID,
		TemplateID:    req.TemplateID,
		EngagementID:  req.EngagementID,
		RelatedPostID: req.RelatedPostID,
		Type:          h.awardType,
		Title:         h.renderer.render(tmpl.Title, user, now),
		Content:       h.renderer.render(tmpl.Content, user, now),
		AwardedAt:     now,
	}

	var record *models.AwardRecord
	err = h.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := h.repo.WithTx(tx)
		if err := repo.CreateUserEngagement(ctx, awarded); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user engagement")
		}
		rec, err := h.writeRecord(ctx, repo, req, now)
		if err != nil {
			return err
		}
		record = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Outcome{AwardType: h.awardType, RecordID: record.ID, AwardedID: awarded.ID}, nil
}
