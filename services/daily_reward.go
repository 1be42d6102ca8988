package services

import (
	"context"
	"errors"
	"log"
	"time"

	"forum-progression/config"
	"forum-progression/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ClaimStatus string

const (
	ClaimClaimed            ClaimStatus = "claimed"
	ClaimAlreadyClaimed     ClaimStatus = "already_claimed"
	ClaimNoRewardConfigured ClaimStatus = "no_reward_configured"
)

// ClaimResult is the outcome of ClaimDailyReward. Only Claimed carries a
// reward; the other statuses had no side effects.
type ClaimResult struct {
	Status     ClaimStatus              `json:"status"`
	Date       time.Time                `json:"date"`
	StreakDay  int64                    `json:"streak_day"`
	Reward     *config.DailyTier        `json:"reward,omitempty"`
	BonusItems []models.BonusItem       `json:"bonus_items,omitempty"`
	Claim      *models.DailyRewardClaim `json:"-"`
}

// NextReward previews the next configured tier for a user.
type NextReward struct {
	ClaimedToday bool              `json:"claimed_today"`
	StreakDay    int64             `json:"streak_day"` // day a claim made now (or tomorrow, if claimed) would count as
	Tier         *config.DailyTier `json:"tier,omitempty"`
	DaysUntil    int64             `json:"days_until"`
}

// errAlreadyClaimed aborts a claim transaction that lost the insert race.
var errAlreadyClaimed = errors.New("daily reward already claimed")

type DailyRewardService struct {
	DB     *gorm.DB
	Grants *GrantExecutor
	cfg    *config.Progression
}

func NewDailyRewardService(db *gorm.DB, cfg *config.Progression, grants *GrantExecutor) *DailyRewardService {
	return &DailyRewardService{DB: db, Grants: grants, cfg: cfg}
}

func (s *DailyRewardService) loginStreak() (config.StreakType, string) {
	st, key, _ := s.cfg.Streak(s.cfg.Daily.StreakType)
	return st, key
}

// ClaimDailyReward claims the reward for the calendar day of today. The
// points, bonus items, claim row and login streak update commit together.
func (s *DailyRewardService) ClaimDailyReward(ctx context.Context, userID string, today time.Time) (*ClaimResult, error) {
	if userID == "" {
		return nil, invalidf("empty user id")
	}
	day := s.cfg.Today(today)
	st, key := s.loginStreak()
	result := &ClaimResult{Date: day}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		err := tx.Model(&models.DailyRewardClaim{}).
			Where("user_id = ? AND claim_date = ?", userID, day).
			Count(&existing).Error
		if err != nil {
			return err
		}
		if existing > 0 {
			result.Status = ClaimAlreadyClaimed
			return nil
		}

		streakDay, err := peekCount(tx, userID, key, st, day)
		if err != nil {
			return err
		}
		result.StreakDay = streakDay

		tier, ok := s.cfg.DailyTier(streakDay)
		if !ok {
			result.Status = ClaimNoRewardConfigured
			return nil
		}

		effects := []RewardEffect{Points(tier.Points).From(SourceDaily)}
		var items []models.BonusItem
		for _, b := range s.cfg.DailyBonuses(streakDay) {
			effects = append(effects, bonusEffect(b).From(SourceDaily))
			items = append(items, models.BonusItem{Kind: string(b.Kind), Code: b.Code})
		}
		if err := s.Grants.ApplyTx(tx, userID, effects); err != nil {
			return err
		}

		claim := models.DailyRewardClaim{
			UserID:        userID,
			ClaimDate:     day,
			StreakDay:     streakDay,
			TierName:      tier.Name,
			PointsAwarded: tier.Points,
		}
		if err := claim.SetItems(items); err != nil {
			return err
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&claim)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errAlreadyClaimed
		}

		if _, _, err := advanceTx(tx, userID, key, st, day); err != nil {
			return err
		}

		result.Status = ClaimClaimed
		result.Reward = &tier
		result.BonusItems = items
		result.Claim = &claim
		return nil
	})
	if errors.Is(err, errAlreadyClaimed) {
		log.Printf("🔁 [DAILY] %s lost a concurrent claim for %s", userID, day.Format(time.DateOnly))
		return &ClaimResult{Status: ClaimAlreadyClaimed, Date: day}, nil
	}
	if err != nil {
		log.Printf("❌ [DAILY] Claim for %s on %s rolled back: %v", userID, day.Format(time.DateOnly), err)
		return nil, txFailure("claim daily reward", err)
	}

	if result.Status == ClaimClaimed {
		log.Printf("🎁 [DAILY] %s claimed %q (day %d, +%d points, %d bonus items)",
			userID, result.Reward.Name, result.StreakDay, result.Reward.Points, len(result.BonusItems))
	}
	return result, nil
}

// GetUserRewardHistory returns past claims, newest first.
func (s *DailyRewardService) GetUserRewardHistory(ctx context.Context, userID string, limit int) ([]models.DailyRewardClaim, error) {
	if limit <= 0 || limit > 365 {
		limit = 30
	}
	var claims []models.DailyRewardClaim
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("claim_date DESC").
		Limit(limit).
		Find(&claims).Error
	if err != nil {
		return nil, txFailure("load reward history", err)
	}
	return claims, nil
}

// GetNextReward previews the next tier the user can reach by claiming on
// consecutive days from today.
func (s *DailyRewardService) GetNextReward(ctx context.Context, userID string, today time.Time) (*NextReward, error) {
	day := s.cfg.Today(today)
	st, key := s.loginStreak()
	db := s.DB.WithContext(ctx)

	var claimed int64
	err := db.Model(&models.DailyRewardClaim{}).
		Where("user_id = ? AND claim_date = ?", userID, day).
		Count(&claimed).Error
	if err != nil {
		return nil, txFailure("load claims", err)
	}

	streakDay, err := peekCount(db, userID, key, st, day)
	if err != nil {
		return nil, txFailure("load streak", err)
	}

	out := &NextReward{ClaimedToday: claimed > 0, StreakDay: streakDay}
	if out.ClaimedToday {
		// Today's claim is spent; the earliest next claim is tomorrow.
		streakDay++
		out.StreakDay = streakDay
	}

	tier, ok := s.cfg.NextDailyTier(streakDay)
	if !ok {
		return out, nil
	}
	out.Tier = &tier
	out.DaysUntil = tier.Day - streakDay
	if out.ClaimedToday {
		out.DaysUntil++
	}
	return out, nil
}
