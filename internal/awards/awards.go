package awards

import (
	"context"
	"fmt"

	"github.com/angelmondragon/lms-engagements/pkg/enums"
	pkgerrors "github.com/angelmondragon/lms-engagements/pkg/errors"
)

// Request carries the award argument tuple. RelatedPostID is 0 when the
// triggering event had no related post.
type Request struct {
	UserID        int64 `json:"user_id"`
	TemplateID    int64 `json:"template_id"`
	RelatedPostID int64 `json:"related_post_id"`
	EngagementID  int64 `json:"engagement_id"`
}

// Outcome describes a granted award.
type Outcome struct {
	AwardType enums.AwardType `json:"award_type"`
	RecordID  int64           `json:"record_id"`
	// AwardedID references the user_engagements row for achievements and certificates.
	AwardedID int64 `json:"awarded_id,omitempty"`
}

// Handler grants one kind of award.
//
// Expected business failures are returned as typed errors: DUPLICATE_AWARD when
// an AwardRecord already exists and NOT_ELIGIBLE when the user may not receive
// the award. Use IsExpected to tell them apart from real failures.
type Handler interface {
	Award(ctx context.Context, req Request) (*Outcome, error)
}

// Registry resolves award handlers by award type.
type Registry struct {
	handlers map[enums.AwardType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[enums.AwardType]Handler{}}
}

// Register binds a handler to an award type, replacing any previous binding.
func (r *Registry) Register(awardType enums.AwardType, handler Handler) error {
	if !awardType.IsValid() {
		return fmt.Errorf("invalid award type %q", awardType)
	}
	if handler == nil {
		return fmt.Errorf("handler required for %s", awardType)
	}
	r.handlers[awardType] = handler
	return nil
}

// Handler returns the handler registered for awardType.
func (r *Registry) Handler(awardType enums.AwardType) (Handler, error) {
	handler, ok := r.handlers[awardType]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("no award handler registered for %s", awardType))
	}
	return handler, nil
}

// Award dispatches to the handler registered for awardType.
func (r *Registry) Award(ctx context.Context, awardType enums.AwardType, req Request) (*Outcome, error) {
	handler, err := r.Handler(awardType)
	if err != nil {
		return nil, err
	}
	return handler.Award(ctx, req)
}

// IsExpected reports whether err is a non-fatal business outcome.
func IsExpected(err error) bool {
	return pkgerrors.HasCode(err, pkgerrors.CodeDuplicate) || pkgerrors.HasCode(err, pkgerrors.CodeNotEligible)
}

func duplicateError(req Request) error {
	return pkgerrors.New(pkgerrors.CodeDuplicate, "award already granted").WithDetails(map[string]any{
		"user_id":         req.UserID,
		"related_post_id": req.RelatedPostID,
		"template_id":     req.TemplateID,
	})
}

func notEligibleError(req Request, reason string) error {
	return pkgerrors.New(pkgerrors.CodeNotEligible, reason).WithDetails(map[string]any{
		"user_id":         req.UserID,
		"related_post_id": req.RelatedPostID,
	})
}

func validateRequest(req Request) error {
	if req.UserID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if req.TemplateID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "template id is required")
	}
	if req.RelatedPostID < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "related post id must not be negative")
	}
	return nil
}
