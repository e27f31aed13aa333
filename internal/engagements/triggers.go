package engagements

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/lms-engagements/pkg/db/models"
	"github.com/angelmondragon/lms-engagements/pkg/enums"
	pkgerrors "github.com/angelmondragon/lms-engagements/pkg/errors"
)

// eventTriggers maps each event onto the trigger types it activates.
// product.purchased is resolved from the purchased post instead.
var eventTriggers = map[enums.EventName][]enums.TriggerType{
	enums.EventUserRegistered:       {enums.TriggerUserRegistration},
	enums.EventCourseCompleted:      {enums.TriggerCourseCompleted},
	enums.EventSectionCompleted:     {enums.TriggerSectionCompleted},
	enums.EventLessonCompleted:      {enums.TriggerLessonCompleted},
	enums.EventQuizCompleted:        {enums.TriggerQuizCompleted},
	enums.EventQuizPassed:           {enums.TriggerQuizPassed},
	enums.EventQuizFailed:           {enums.TriggerQuizFailed},
	enums.EventCourseTrackCompleted: {enums.TriggerCourseTrackCompleted},
	enums.EventCourseEnrolled:       {enums.TriggerCourseEnrollment},
	enums.EventMembershipEnrolled:   {enums.TriggerMembershipEnrollment},
	enums.EventAccessPlanPurchased:  {enums.TriggerAccessPlanPurchased},
}

var purchaseTriggers = map[enums.PostType]enums.TriggerType{
	enums.PostTypeCourse:     enums.TriggerCoursePurchased,
	enums.PostTypeMembership: enums.TriggerMembershipPurchased,
}

// triggerPostTypes is the post type a definition may be scoped to per trigger.
// user_registration has no related post and is absent.
var triggerPostTypes = map[enums.TriggerType]enums.PostType{
	enums.TriggerCourseCompleted:      enums.PostTypeCourse,
	enums.TriggerSectionCompleted:     enums.PostTypeSection,
	enums.TriggerLessonCompleted:      enums.PostTypeLesson,
	enums.TriggerQuizCompleted:        enums.PostTypeQuiz,
	enums.TriggerQuizPassed:           enums.PostTypeQuiz,
	enums.TriggerQuizFailed:           enums.PostTypeQuiz,
	enums.TriggerCourseTrackCompleted: enums.PostTypeCourseTrack,
	enums.TriggerCourseEnrollment:     enums.PostTypeCourse,
	enums.TriggerMembershipEnrollment: enums.PostTypeMembership,
	enums.TriggerAccessPlanPurchased:  enums.PostTypeAccessPlan,
	enums.TriggerCoursePurchased:      enums.PostTypeCourse,
	enums.TriggerMembershipPurchased:  enums.PostTypeMembership,
}

// PostLookup resolves catalog posts.
type PostLookup interface {
	FindPost(ctx context.Context, id int64) (*models.Post, error)
}

// ResolveTriggers returns the trigger types an event activates.
func ResolveTriggers(ctx context.Context, posts PostLookup, event Event) ([]enums.TriggerType, error) {
	if event.Name != enums.EventProductPurchased {
		triggers, ok := eventTriggers[event.Name]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown event").WithDetails(map[string]any{"event": event.Name})
		}
		return triggers, nil
	}

	if event.RelatedPostID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase event requires a related post")
	}
	post, err := posts.FindPost(ctx, *event.RelatedPostID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "purchased post not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchased post")
	}
	trigger, ok := purchaseTriggers[post.Type]
	if !ok {
		// Other products (access plans bought directly, tracks) have no purchase trigger.
		return nil, nil
	}
	return []enums.TriggerType{trigger}, nil
}
