package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MilestoneRecord marks a (user, metric, threshold) as achieved. The unique
// index is what makes milestone rewards exactly-once.
type MilestoneRecord struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string    `gorm:"uniqueIndex:idx_milestone_user_metric_threshold;not null" json:"user_id"`
	MetricType    string    `gorm:"uniqueIndex:idx_milestone_user_metric_threshold;type:varchar(64);not null" json:"metric_type"`
	Threshold     int64     `gorm:"uniqueIndex:idx_milestone_user_metric_threshold;not null" json:"threshold"`
	PointsAwarded int64     `json:"points_awarded"`
	AchievedAt    time.Time `gorm:"autoCreateTime" json:"achieved_at"`
}

func (m *MilestoneRecord) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
