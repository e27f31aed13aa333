package enums

import "testing"

func TestParseTriggerType(t *testing.T) {
	got, err := ParseTriggerType("quiz_passed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != TriggerQuizPassed {
		t.Fatalf("expected quiz_passed, got %s", got)
	}
	if _, err := ParseTriggerType("quiz_failing"); err == nil {
		t.Fatalf("expected error for unknown trigger")
	}
	if TriggerType("").IsValid() {
		t.Fatalf("empty trigger should be invalid")
	}
}

func TestAwardTypeActionsRoundTrip(t *testing.T) {
	for _, awardType := range validAwardTypes {
		action := awardType.Action()
		if action == "" {
			t.Fatalf("award type %s has no action", awardType)
		}
		back, err := AwardTypeForAction(action)
		if err != nil {
			t.Fatalf("resolve %s: %v", action, err)
		}
		if back != awardType {
			t.Fatalf("expected %s, got %s", awardType, back)
		}
	}
	if _, err := AwardTypeForAction("engagement:unknown"); err == nil {
		t.Fatalf("expected error for unknown action")
	}
}

func TestPostTypeEnrollable(t *testing.T) {
	cases := map[PostType]bool{
		PostTypeCourse:      true,
		PostTypeSection:     true,
		PostTypeLesson:      true,
		PostTypeQuiz:        true,
		PostTypeMembership:  true,
		PostTypeAccessPlan:  false,
		PostTypeCourseTrack: false,
	}
	for postType, want := range cases {
		if got := postType.Enrollable(); got != want {
			t.Fatalf("%s enrollable: expected %v got %v", postType, want, got)
		}
	}
	if PostTypeCourse.BelongsToCourse() {
		t.Fatalf("course should not resolve through a parent course")
	}
}

func TestParseEventNameAndStatus(t *testing.T) {
	if _, err := ParseEventName("product.purchased"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseEventName("order.created"); err == nil {
		t.Fatalf("expected error for unknown event")
	}
	if _, err := ParseEngagementStatus("trash"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if EngagementStatus("pending").IsValid() {
		t.Fatalf("pending should not be a valid status")
	}
}
