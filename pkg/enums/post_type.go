package enums

import "fmt"

// PostType classifies catalog content.
type PostType string

const (
	PostTypeCourse      PostType = "course"
	PostTypeSection     PostType = "section"
	PostTypeLesson      PostType = "lesson"
	PostTypeQuiz        PostType = "quiz"
	PostTypeMembership  PostType = "membership"
	PostTypeAccessPlan  PostType = "access_plan"
	PostTypeCourseTrack PostType = "course_track"
)

var validPostTypes = []PostType{
	PostTypeCourse,
	PostTypeSection,
	PostTypeLesson,
	PostTypeQuiz,
	PostTypeMembership,
	PostTypeAccessPlan,
	PostTypeCourseTrack,
}

func (p PostType) IsValid() bool {
	for _, candidate := range validPostTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// BelongsToCourse reports whether enrollment for the post is held on its parent course.
func (p PostType) BelongsToCourse() bool {
	switch p {
	case PostTypeSection, PostTypeLesson, PostTypeQuiz:
		return true
	}
	return false
}

// Enrollable reports whether a user can hold an enrollment in posts of this type,
// directly or through the parent course.
func (p PostType) Enrollable() bool {
	return p == PostTypeCourse || p == PostTypeMembership || p.BelongsToCourse()
}

// ParsePostType converts raw strings into PostType.
func ParsePostType(value string) (PostType, error) {
	for _, candidate := range validPostTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid post type %q", value)
}
