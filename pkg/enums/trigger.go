package enums

import "fmt"

// TriggerType names the domain occurrence an engagement listens for.
type TriggerType string

const (
	TriggerUserRegistration     TriggerType = "user_registration"
	TriggerCourseCompleted      TriggerType = "course_completed"
	TriggerSectionCompleted     TriggerType = "section_completed"
	TriggerLessonCompleted      TriggerType = "lesson_completed"
	TriggerQuizCompleted        TriggerType = "quiz_completed"
	TriggerQuizPassed           TriggerType = "quiz_passed"
	TriggerQuizFailed           TriggerType = "quiz_failed"
	TriggerCourseTrackCompleted TriggerType = "course_track_completed"
	TriggerCourseEnrollment     TriggerType = "course_enrollment"
	TriggerMembershipEnrollment TriggerType = "membership_enrollment"
	TriggerAccessPlanPurchased  TriggerType = "access_plan_purchased"
	TriggerCoursePurchased      TriggerType = "course_purchased"
	TriggerMembershipPurchased  TriggerType = "membership_purchased"
)

var validTriggerTypes = []TriggerType{
	TriggerUserRegistration,
	TriggerCourseCompleted,
	TriggerSectionCompleted,
	TriggerLessonCompleted,
	TriggerQuizCompleted,
	TriggerQuizPassed,
	TriggerQuizFailed,
	TriggerCourseTrackCompleted,
	TriggerCourseEnrollment,
	TriggerMembershipEnrollment,
	TriggerAccessPlanPurchased,
	TriggerCoursePurchased,
	TriggerMembershipPurchased,
}

// IsValid reports whether the trigger type is known.
func (t TriggerType) IsValid() bool {
	for _, candidate := range validTriggerTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

func (t TriggerType) String() string {
	return string(t)
}

// ParseTriggerType converts raw strings into TriggerType.
func ParseTriggerType(value string) (TriggerType, error) {
	for _, candidate := range validTriggerTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid trigger type %q", value)
}
