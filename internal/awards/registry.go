package awards

import "github.com/angelmondragon/lms-engagements/pkg/enums"

// NewDefaultRegistry registers the email, achievement and certificate handlers.
func NewDefaultRegistry(params HandlerParams) (*Registry, error) {
	email, err := NewEmailHandler(params)
	if err != nil {
		return nil, err
	}
	achievement, err := NewAchievementHandler(params)
	if err != nil {
		return nil, err
	}
	certificate, err := NewCertificateHandler(params)
	if err != nil {
		return nil, err
	}

	registry := NewRegistry()
	for awardType, handler := range map[enums.AwardType]Handler{
		enums.AwardEmail:       email,
		enums.AwardAchievement: achievement,
		enums.AwardCertificate: certificate,
	} {
		if err := registry.Register(awardType, handler); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
