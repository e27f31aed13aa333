package awards

import (
	"context"

	"github.com/angelmondragon/lms-engagements/pkg/enums"
	pkgerrors "github.com/angelmondragon/lms-engagements/pkg/errors"
	"github.com/angelmondragon/lms-engagements/pkg/mail"
)

// EmailHandler sends a templated email once per (user, related post, template).
type EmailHandler struct {
	base
	sender mail.Sender
}

func NewEmailHandler(params HandlerParams) (*EmailHandler, error) {
	b, err := newBase(enums.AwardEmail, params)
	if err != nil {
		return nil, err
	}
	if params.Sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mail sender required")
	}
	return &EmailHandler{base: b, sender: params.Sender}, nil
}

func (h *EmailHandler) Award(ctx context.Context, req Request) (*Outcome, error) {
	outcome, err := h.award(ctx, req)
	return h.finish(ctx, req, outcome, err)
}

func (h *EmailHandler) award(ctx context.Context, req Request) (*Outcome, error) {
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
	if err := h.checkEligibility(ctx, req); err != nil {
		return nil, err
	}
	user, err := h.user(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	// The record is written before sending so a concurrent invocation for the
	// same key stops at the unique index instead of sending a second email.
	now := h.now().UTC()
	record, err := h.writeRecord(ctx, h.repo, req, now)
	if err != nil {
		return nil, err
	}

	msg := mail.Message{
		ToEmail:  user.Email,
		ToName:   user.DisplayName,
		Subject:  h.renderer.render(tmpl.Subject, user, now),
		Heading:  h.renderer.render(tmpl.Heading, user, now),
		HTMLBody: h.renderer.render(tmpl.Content, user, now),
	}
	if sendErr := h.sender.Send(ctx, msg); sendErr != nil {
		if delErr := h.repo.DeleteAwardRecord(ctx, record.ID); delErr != nil {
			h.logg.Error(ctx, "failed to release award record after send failure", delErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDelivery, sendErr, "send engagement email")
	}

	return &Outcome{AwardType: enums.AwardEmail, RecordID: record.ID}, nil
}

// checkEligibility requires an active enrollment when the related post is
// enrollable. Lessons, sections and quizzes resolve to their parent course.
// Events without a related post, or with a post that cannot be enrolled in,
// are always eligible.
func (h *EmailHandler) checkEligibility(ctx context.Context, req Request) error {
	if req.RelatedPostID == 0 {
		return nil
	}
	post, err := h.repo.GetPost(ctx, req.RelatedPostID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load related post")
	}
	if !post.Type.Enrollable() {
		return nil
	}

	target := post.ID
	if post.Type.BelongsToCourse() {
		if post.ParentCourseID == nil {
			return notEligibleError(req, errNoParentCourse.Error())
		}
		target = *post.ParentCourseID
	}

	enrolled, err := h.repo.HasActiveEnrollment(ctx, req.UserID, target)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check enrollment")
	}
	if !enrolled {
		return notEligibleError(req, "user is not enrolled in the related post")
	}
	return nil
}
