package models

import (
	"time"

	"github.com/angelmondragon/lms-engagements/pkg/enums"
)

// EngagementTemplate holds the content copied into an award.
// Subject and Heading only apply to email templates.
type EngagementTemplate struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	Type      enums.AwardType `gorm:"type:text;not null"`
	Title     string          `gorm:"type:text;not null;default:''"`
	Subject   string          `gorm:"type:text;not null;default:''"`
	Heading   string          `gorm:"type:text;not null;default:''"`
	Content   string          `gorm:"type:text;not null;default:''"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
