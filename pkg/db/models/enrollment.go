package models

import (
	"time"

	"github.com/angelmondragon/lms-engagements/pkg/enums"
)

type Enrollment struct {
	UserID     int64                  `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	PostID     int64                  `gorm:"column:post_id;primaryKey;autoIncrement:false"`
	Status     enums.EnrollmentStatus `gorm:"type:text;not null;default:'enrolled'"`
	EnrolledAt time.Time              `gorm:"column:enrolled_at;not null"`
}
