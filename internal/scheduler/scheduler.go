package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/lms-engagements/internal/awards"
	"github.com/angelmondragon/lms-engagements/pkg/enums"
)

const groupKeyPrefix = "engagement_"

var taskNamespace = uuid.MustParse("0b9f5c1e-6f0a-4a55-9a1d-2f3c8e7d4b21")

// Scheduler enqueues delayed award invocations and cancels them by group.
type Scheduler interface {
	// Schedule enqueues a single future invocation and returns its task id.
	// Identical invocations are not deduplicated unless they come from the
	// same source event, in which case the second call returns the first
	// task id.
	Schedule(ctx context.Context, inv Invocation) (string, error)
	// CancelGroup removes every not-yet-fired invocation in the group. An
	// unknown or empty group is a no-op.
	CancelGroup(ctx context.Context, groupKey string) (int, error)
	// Pending lists invocations still waiting to fire in the group.
	Pending(ctx context.Context, groupKey string) ([]Invocation, error)
	// Groups lists every group that has recorded invocations.
	Groups(ctx context.Context) ([]string, error)
}

// Invocation is a scheduled award for one user.
type Invocation struct {
	TaskID        string          `json:"task_id,omitempty"`
	AwardType     enums.AwardType `json:"award_type"`
	EngagementID  int64           `json:"engagement_id"`
	UserID        int64           `json:"user_id"`
	TemplateID    int64           `json:"template_id"`
	RelatedPostID int64           `json:"related_post_id"`
	FireAt        time.Time       `json:"fire_at"`
	State         string          `json:"state,omitempty"`
	EventID       string          `json:"event_id,omitempty"`
}

// GroupKey returns the cancellation group of the invocation.
func (i Invocation) GroupKey() string {
	return GroupKey(i.EngagementID)
}

// Action is the task type the invocation is enqueued under.
func (i Invocation) Action() string {
	return i.AwardType.Action()
}

// Request converts the invocation into award handler arguments.
func (i Invocation) Request() awards.Request {
	return awards.Request{
		UserID:        i.UserID,
		TemplateID:    i.TemplateID,
		RelatedPostID: i.RelatedPostID,
		EngagementID:  i.EngagementID,
	}
}

func (i Invocation) validate() error {
	if !i.AwardType.IsValid() {
		return fmt.Errorf("invalid award type %q", i.AwardType)
	}
	if i.EngagementID <= 0 {
		return fmt.Errorf("engagement id is required")
	}
	if i.UserID <= 0 {
		return fmt.Errorf("user id is required")
	}
	if i.FireAt.IsZero() {
		return fmt.Errorf("fire time is required")
	}
	return nil
}

// taskID derives a stable asynq task id from the source event so a
// redelivered event cannot enqueue the same award twice.
func (i Invocation) taskID() string {
	if i.EventID == "" {
		return uuid.NewString()
	}
	key := fmt.Sprintf("%d|%d|%d|%s", i.EngagementID, i.UserID, i.RelatedPostID, i.EventID)
	return uuid.NewSHA1(taskNamespace, []byte(key)).String()
}

// GroupKey names the cancellation group for an engagement definition.
func GroupKey(engagementID int64) string {
	return groupKeyPrefix + strconv.FormatInt(engagementID, 10)
}

// ParseGroupKey extracts the engagement id from a group key.
func ParseGroupKey(key string) (int64, bool) {
	raw, ok := strings.CutPrefix(key, groupKeyPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// payload is the task body. The award type travels as the task type.
type payload struct {
	TaskID        string `json:"task_id"`
	EngagementID  int64  `json:"engagement_id"`
	UserID        int64  `json:"user_id"`
	TemplateID    int64  `json:"template_id"`
	RelatedPostID int64  `json:"related_post_id"`
	EventID       string `json:"event_id,omitempty"`
}

func encodePayload(inv Invocation) ([]byte, error) {
	return json.Marshal(payload{
		TaskID:        inv.TaskID,
		EngagementID:  inv.EngagementID,
		UserID:        inv.UserID,
		TemplateID:    inv.TemplateID,
		RelatedPostID: inv.RelatedPostID,
		EventID:       inv.EventID,
	})
}

func decodeInvocation(taskType string, body []byte) (Invocation, error) {
	awardType, err := enums.AwardTypeForAction(taskType)
	if err != nil {
		return Invocation{}, err
	}
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Invocation{}, fmt.Errorf("decode task payload: %w", err)
	}
	if p.EngagementID <= 0 || p.UserID <= 0 {
		return Invocation{}, fmt.Errorf("task payload missing engagement or user id")
	}
	return Invocation{
		TaskID:        p.TaskID,
		AwardType:     awardType,
		EngagementID:  p.EngagementID,
		UserID:        p.UserID,
		TemplateID:    p.TemplateID,
		RelatedPostID: p.RelatedPostID,
		EventID:       p.EventID,
	}, nil
}
