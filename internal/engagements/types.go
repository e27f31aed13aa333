package engagements

import (
	"time"

	"github.com/angelmondragon/lms-engagements/pkg/db/models"
	"github.com/angelmondragon/lms-engagements/pkg/enums"
)

// Event is a domain occurrence handed to the dispatcher.
// ID identifies the source event when known. Redeliveries carrying the same
// ID reuse the delayed task scheduled for the first delivery.
type Event struct {
	ID            string          `json:"event_id,omitempty"`
	Name          enums.EventName `json:"event"`
	UserID        int64           `json:"user_id"`
	RelatedPostID *int64          `json:"related_post_id,omitempty"`
}

// Outcome classifies what happened to one matched definition.
type Outcome string

const (
	OutcomeGranted     Outcome = "granted"
	OutcomeScheduled   Outcome = "scheduled"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeNotEligible Outcome = "not_eligible"
	OutcomeFailed      Outcome = "failed"
)

// DispatchItem reports the handling of one matched definition.
type DispatchItem struct {
	EngagementID  int64           `json:"engagement_id"`
	AwardType     enums.AwardType `json:"award_type"`
	TemplateID    int64           `json:"template_id"`
	RelatedPostID int64           `json:"related_post_id"`
	Outcome       Outcome         `json:"outcome"`
	TaskID        string          `json:"task_id,omitempty"`
	FireAt        *time.Time      `json:"fire_at,omitempty"`
	AwardedID     int64           `json:"awarded_id,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// DispatchResult summarizes an OnEvent call.
type DispatchResult struct {
	Event    Event               `json:"event"`
	Triggers []enums.TriggerType `json:"triggers"`
	Items    []DispatchItem      `json:"items"`
}

// Count returns how many items ended with the outcome.
func (r *DispatchResult) Count(outcome Outcome) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, item := range r.Items {
		if item.Outcome == outcome {
			n++
		}
	}
	return n
}

// ListFilter narrows List. An empty Status hides trashed definitions.
type ListFilter struct {
	Status      enums.EngagementStatus
	TriggerType enums.TriggerType
	AwardType   enums.AwardType
	Cursor      string
	Limit       int
}

// ListPage is one page of definitions.
type ListPage struct {
	Items      []models.Engagement `json:"items"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

// Input carries the editable fields of a definition.
type Input struct {
	Title         string `json:"title" validate:"max=200"`
	Status        string `json:"status" validate:"omitempty,oneof=publish draft"`
	TriggerType   string `json:"trigger_type" validate:"required"`
	TriggerPostID *int64 `json:"trigger_post_id" validate:"omitempty,gt=0"`
	AwardType     string `json:"award_type" validate:"required,oneof=email achievement certificate"`
	TemplateID    int64  `json:"template_id" validate:"required,gt=0"`
	DelayDays     int    `json:"delay_days" validate:"gte=0,lte=3650"`
}
