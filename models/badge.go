package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserBadge is an awarded badge. A user holds each badge code at most once.
type UserBadge struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"uniqueIndex:idx_user_badge;not null" json:"user_id"`
	Code      string    `gorm:"uniqueIndex:idx_user_badge;type:varchar(64);not null" json:"code"`
	Source    string    `gorm:"type:varchar(32)" json:"source,omitempty"` // level, milestone, daily
	AwardedAt time.Time `gorm:"autoCreateTime" json:"awarded_at"`
}

func (b *UserBadge) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// UserAchievement is an unlocked achievement, unique per (user, code).
type UserAchievement struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string    `gorm:"uniqueIndex:idx_user_achievement;not null" json:"user_id"`
	Code       string    `gorm:"uniqueIndex:idx_user_achievement;type:varchar(64);not null" json:"code"`
	Source     string    `gorm:"type:varchar(32)" json:"source,omitempty"`
	UnlockedAt time.Time `gorm:"autoCreateTime" json:"unlocked_at"`
}

func (a *UserAchievement) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
