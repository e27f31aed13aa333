package models

import "time"

// User is the learner identity awards are granted to.
type User struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Login       string    `gorm:"type:text;not null;default:''"`
	Email       string    `gorm:"type:text;not null;uniqueIndex"`
	DisplayName string    `gorm:"column:display_name;type:text;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
