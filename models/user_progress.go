package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserProgression is the per-user level state. Points only grow; Level and
// PrestigeLevel only move forward.
type UserProgression struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"uniqueIndex;not null" json:"user_id"`

	Points        int64  `json:"points" gorm:"not null;default:0"`
	Level         int    `json:"level" gorm:"not null;default:1"`
	PrestigeLevel int    `json:"prestige_level" gorm:"not null;default:0"`
	CustomTitle   string `json:"custom_title,omitempty"`

	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	Timestamps
}

func (p *UserProgression) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// LevelUpEvent is the audit row written every time a user's level advances.
type LevelUpEvent struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       string    `gorm:"index;not null" json:"user_id"`
	FromLevel    int       `json:"from_level"`
	ToLevel      int       `json:"to_level"`
	FromPrestige int       `json:"from_prestige"`
	ToPrestige   int       `json:"to_prestige"`
	Points       int64     `json:"points"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

func (e *LevelUpEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
