package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BonusItem is one extra grant attached to a daily claim.
type BonusItem struct {
	Kind string `json:"kind"` // badge, achievement, title
	Code string `json:"code"`
}

// DailyRewardClaim records one claim per user per calendar day.
type DailyRewardClaim struct {
	ID            string         `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string         `gorm:"uniqueIndex:idx_daily_claim_user_date;not null" json:"user_id"`
	ClaimDate     time.Time      `gorm:"uniqueIndex:idx_daily_claim_user_date;type:date;not null" json:"claim_date"`
	StreakDay     int64          `gorm:"not null" json:"streak_day"`
	TierName      string         `json:"tier_name"`
	PointsAwarded int64          `gorm:"not null" json:"points_awarded"`
	BonusItems    datatypes.JSON `json:"bonus_items,omitempty"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (c *DailyRewardClaim) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Items decodes BonusItems; a malformed column reads as no items.
func (c *DailyRewardClaim) Items() []BonusItem {
	if len(c.BonusItems) == 0 {
		return nil
	}
	var items []BonusItem
	if err := json.Unmarshal(c.BonusItems, &items); err != nil {
		return nil
	}
	return items
}

// SetItems encodes items into BonusItems.
func (c *DailyRewardClaim) SetItems(items []BonusItem) error {
	if len(items) == 0 {
		c.BonusItems = nil
		return nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	c.BonusItems = datatypes.JSON(raw)
	return nil
}
