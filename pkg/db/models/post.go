package models

import (
	"time"

	"github.com/angelmondragon/lms-engagements/pkg/enums"
)

// Post is a catalog entry (course, lesson, membership, ...).
type Post struct {
	ID             int64          `gorm:"primaryKey;autoIncrement"`
	Type           enums.PostType `gorm:"type:text;not null"`
	Title          string         `gorm:"type:text;not null;default:''"`
	ParentCourseID *int64         `gorm:"column:parent_course_id"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
}
