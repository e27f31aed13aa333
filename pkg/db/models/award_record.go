package models

import (
	"time"

	"github.com/angelmondragon/lms-engagements/pkg/enums"
)

// AwardRecord marks that a template was awarded to a user for a related post.
// RelatedPostID is 0 when the award has no related post.
type AwardRecord struct {
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	UserID        int64           `gorm:"column:user_id;not null;uniqueIndex:ux_award_records_user_post_template,priority:1"`
	RelatedPostID int64           `gorm:"column:related_post_id;not null;default:0;uniqueIndex:ux_award_records_user_post_template,priority:2"`
	TemplateID    int64           `gorm:"column:template_id;not null;uniqueIndex:ux_award_records_user_post_template,priority:3"`
	AwardType     enums.AwardType `gorm:"column:award_type;type:text;not null"`
	EngagementID  int64           `gorm:"column:engagement_id;not null"`
	AwardedAt     time.Time       `gorm:"column:awarded_at;not null"`
}
