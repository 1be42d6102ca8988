package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StreakRecord tracks one streak type for one user. Dates are calendar days
// stored as midnight UTC.
type StreakRecord struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string `gorm:"uniqueIndex:idx_streak_user_type;not null" json:"user_id"`
	StreakType string `gorm:"uniqueIndex:idx_streak_user_type;type:varchar(64);not null" json:"streak_type"`

	StreakCount   int64     `json:"streak_count" gorm:"not null;default:0"`
	LongestStreak int64     `json:"longest_streak" gorm:"not null;default:0"`
	LastActivity  time.Time `json:"last_activity" gorm:"type:date;not null"`

	// BonusPeriod is the start of the last period whose streak bonus was paid.
	BonusPeriod *time.Time `json:"-" gorm:"type:date"`
	// Version guards conditional updates; every write bumps it.
	Version int64 `json:"-" gorm:"not null;default:0"`

	Timestamps
}

func (r *StreakRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
