package enums

import "fmt"

// EventName identifies a domain event accepted by the dispatcher.
type EventName string

const (
	EventUserRegistered       EventName = "user.registered"
	EventCourseCompleted      EventName = "course.completed"
	EventSectionCompleted     EventName = "section.completed"
	EventLessonCompleted      EventName = "lesson.completed"
	EventQuizCompleted        EventName = "quiz.completed"
	EventQuizPassed           EventName = "quiz.passed"
	EventQuizFailed           EventName = "quiz.failed"
	EventCourseTrackCompleted EventName = "course_track.completed"
	EventCourseEnrolled       EventName = "course.enrolled"
	EventMembershipEnrolled   EventName = "membership.enrolled"
	EventAccessPlanPurchased  EventName = "access_plan.purchased"
	EventProductPurchased     EventName = "product.purchased"
)

var validEventNames = []EventName{
	EventUserRegistered,
	EventCourseCompleted,
	EventSectionCompleted,
	EventLessonCompleted,
	EventQuizCompleted,
	EventQuizPassed,
	EventQuizFailed,
	EventCourseTrackCompleted,
	EventCourseEnrolled,
	EventMembershipEnrolled,
	EventAccessPlanPurchased,
	EventProductPurchased,
}

func (e EventName) IsValid() bool {
	for _, candidate := range validEventNames {
		if candidate == e {
			return true
		}
	}
	return false
}

func (e EventName) String() string {
	return string(e)
}

// ParseEventName converts raw strings into EventName.
func ParseEventName(value string) (EventName, error) {
	for _, candidate := range validEventNames {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event name %q", value)
}
