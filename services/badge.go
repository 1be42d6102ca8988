package services

import (
	"context"

	"forum-progression/models"

	"gorm.io/gorm"
)

type BadgeService struct {
	DB *gorm.DB
}

func NewBadgeService(db *gorm.DB) *BadgeService {
	return &BadgeService{DB: db}
}

// GetUserBadges lists the user's badges, oldest first.
func (s *BadgeService) GetUserBadges(ctx context.Context, userID string) ([]models.UserBadge, error) {
	var badges []models.UserBadge
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("awarded_at, code").
		Find(&badges).Error
	if err != nil {
		return nil, txFailure("load badges", err)
	}
	return badges, nil
}

// GetUserAchievements lists the user's achievements, oldest first.
func (s *BadgeService) GetUserAchievements(ctx context.Context, userID string) ([]models.UserAchievement, error) {
	var achievements []models.UserAchievement
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("unlocked_at, code").
		Find(&achievements).Error
	if err != nil {
		return nil, txFailure("load achievements", err)
	}
	return achievements, nil
}
