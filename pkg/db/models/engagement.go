package models

import (
	"time"

	"github.com/angelmondragon/lms-engagements/pkg/enums"
)

// Engagement binds a trigger to an award, optionally delayed by whole days.
type Engagement struct {
	ID            int64                  `gorm:"primaryKey;autoIncrement" json:"id"`
	Title         string                 `gorm:"type:text;not null;default:''" json:"title"`
	Status        enums.EngagementStatus `gorm:"type:text;not null;default:'publish'" json:"status"`
	TriggerType   enums.TriggerType      `gorm:"column:trigger_type;type:text;not null" json:"trigger_type"`
	TriggerPostID *int64                 `gorm:"column:trigger_post_id" json:"trigger_post_id,omitempty"`
	AwardType     enums.AwardType        `gorm:"column:award_type;type:text;not null" json:"award_type"`
	TemplateID    int64                  `gorm:"column:template_id;not null" json:"template_id"`
	DelayDays     int                    `gorm:"column:delay_days;not null;default:0" json:"delay_days"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// Delayed reports whether the award is scheduled rather than immediate.
func (e Engagement) Delayed() bool {
	return e.DelayDays > 0
}
