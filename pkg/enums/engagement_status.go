package enums

import "fmt"

// EngagementStatus tracks the publication state of an engagement definition.
type EngagementStatus string

const (
	EngagementStatusPublish EngagementStatus = "publish"
	EngagementStatusDraft   EngagementStatus = "draft"
	EngagementStatusTrash   EngagementStatus = "trash"
)

var validEngagementStatuses = []EngagementStatus{
	EngagementStatusPublish,
	EngagementStatusDraft,
	EngagementStatusTrash,
}

func (s EngagementStatus) IsValid() bool {
	for _, candidate := range validEngagementStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func (s EngagementStatus) String() string {
	return string(s)
}

// ParseEngagementStatus converts raw strings into EngagementStatus.
func ParseEngagementStatus(value string) (EngagementStatus, error) {
	for _, candidate := range validEngagementStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid engagement status %q", value)
}
