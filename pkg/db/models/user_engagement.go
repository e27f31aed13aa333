package models

import (
	"time"

	"github.com/angelmondragon/lms-engagements/pkg/enums"
)

// UserEngagement is an achievement or certificate held by a user.
type UserEngagement struct {
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	UserID        int64           `gorm:"column:user_id;not null;index"`
	TemplateID    int64           `gorm:"column:template_id;not null;index"`
	EngagementID  int64           `gorm:"column:engagement_id;not null"`
	RelatedPostID int64           `gorm:"column:related_post_id;not null;default:0"`
	Type          enums.AwardType `gorm:"type:text;not null"`
	Title         string          `gorm:"type:text;not null;default:''"`
	Content       string          `gorm:"type:text;not null;default:''"`
	AwardedAt     time.Time       `gorm:"column:awarded_at;not null"`
	SyncedAt      *time.Time      `gorm:"column:synced_at"`
}
