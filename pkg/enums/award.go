package enums

import "fmt"

// AwardType is the kind of award an engagement grants.
type AwardType string

const (
	AwardEmail       AwardType = "email"
	AwardAchievement AwardType = "achievement"
	AwardCertificate AwardType = "certificate"
)

var validAwardTypes = []AwardType{
	AwardEmail,
	AwardAchievement,
	AwardCertificate,
}

var awardActions = map[AwardType]string{
	AwardEmail:       "engagement:send_email",
	AwardAchievement: "engagement:award_achievement",
	AwardCertificate: "engagement:award_certificate",
}

// IsValid reports whether the award type is known.
func (a AwardType) IsValid() bool {
	for _, candidate := range validAwardTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

func (a AwardType) String() string {
	return string(a)
}

// Action returns the scheduled task name for the award type.
func (a AwardType) Action() string {
	return awardActions[a]
}

// ParseAwardType converts raw strings into AwardType.
func ParseAwardType(value string) (AwardType, error) {
	for _, candidate := range validAwardTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid award type %q", value)
}

// AwardTypeForAction resolves a scheduled task name back to its award type.
func AwardTypeForAction(action string) (AwardType, error) {
	for awardType, candidate := range awardActions {
		if candidate == action {
			return awardType, nil
		}
	}
	return "", fmt.Errorf("unknown award action %q", action)
}
