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

// streakRetries bounds the optimistic update loop when another request
// moved the same record between our read and our write.
const streakRetries = 3

var errStreakContention = errors.New("streak record kept changing underneath the update")

// StreakProgress is the display view of one streak.
type StreakProgress struct {
	UserID       string        `json:"user_id"`
	StreakType   string        `json:"streak_type"`
	Label        string        `json:"label"`
	Period       config.Period `json:"period"`
	Current      int64         `json:"current"`
	Longest      int64         `json:"longest"`
	LastActivity *time.Time    `json:"last_activity,omitempty"`
	ActiveToday  bool          `json:"active_today"` // activity already recorded this period
	AtRisk       bool          `json:"at_risk"`      // continues only if recorded this period
	NextBonus    int64         `json:"next_bonus"`
	ScheduleDays int           `json:"schedule_days"`
}

type StreakService struct {
	DB     *gorm.DB
	Grants *GrantExecutor
	cfg    *config.Progression
}

func NewStreakService(db *gorm.DB, cfg *config.Progression, grants *GrantExecutor) *StreakService {
	return &StreakService{DB: db, Grants: grants, cfg: cfg}
}

func (s *StreakService) streakType(key string) (config.StreakType, string, error) {
	st, name, ok := s.cfg.Streak(key)
	if !ok {
		return config.StreakType{}, "", invalidf("unsupported streak type %q", key)
	}
	return st, name, nil
}

// dateOnly drops the clock and location a driver may attach to a date column.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// nextCount applies the continuity rule. advanced is false for a repeat
// within the same period and for activity dated before the last one.
func nextCount(period config.Period, rec *models.StreakRecord, today time.Time) (count int64, advanced bool) {
	if rec == nil {
		return 1, true
	}
	cur := period.Start(today)
	last := period.Start(dateOnly(rec.LastActivity))
	if rec.StreakCount == 0 {
		// Reset record: starts over unless the activity is backdated.
		if cur.Before(last) {
			return 0, false
		}
		return 1, true
	}
	switch {
	case !cur.After(last):
		return rec.StreakCount, false
	case period.Previous(cur).Equal(last):
		return rec.StreakCount + 1, true
	default:
		return 1, true
	}
}

func findStreakTx(tx *gorm.DB, userID, key string) (*models.StreakRecord, error) {
	var rec models.StreakRecord
	err := tx.Where("user_id = ? AND streak_type = ?", userID, key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// peekCount returns the count the streak would have after activity today,
// without writing anything.
func peekCount(tx *gorm.DB, userID, key string, st config.StreakType, today time.Time) (int64, error) {
	rec, err := findStreakTx(tx, userID, key)
	if err != nil {
		return 0, err
	}
	count, _ := nextCount(st.Period, rec, today)
	return count, nil
}

// advanceTx moves the streak forward for today. Writes are conditional on
// the version read, so two racing requests cannot both increment.
func advanceTx(tx *gorm.DB, userID, key string, st config.StreakType, today time.Time) (*models.StreakRecord, bool, error) {
	for attempt := 0; attempt < streakRetries; attempt++ {
		rec, err := findStreakTx(tx, userID, key)
		if err != nil {
			return nil, false, err
		}

		if rec == nil {
			rec = &models.StreakRecord{
				UserID:        userID,
				StreakType:    key,
				StreakCount:   1,
				LongestStreak: 1,
				LastActivity:  today,
				Version:       1,
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
			if res.Error != nil {
				return nil, false, res.Error
			}
			if res.RowsAffected == 1 {
				return rec, true, nil
			}
			continue
		}

		count, advanced := nextCount(st.Period, rec, today)
		if !advanced {
			return rec, false, nil
		}

		longest := max(rec.LongestStreak, count)
		res := tx.Model(&models.StreakRecord{}).
			Where("id = ? AND version = ?", rec.ID, rec.Version).
			Updates(map[string]any{
				"streak_count":   count,
				"longest_streak": longest,
				"last_activity":  today,
				"version":        rec.Version + 1,
			})
		if res.Error != nil {
			return nil, false, res.Error
		}
		if res.RowsAffected == 1 {
			rec.StreakCount = count
			rec.LongestStreak = longest
			rec.LastActivity = today
			rec.Version++
			return rec, true, nil
		}
	}
	return nil, false, errStreakContention
}

// RecordActivity registers activity of streakType on the calendar day of
// today (in the configured timezone) and pays the streak bonus the first time
// the streak reaches a period.
func (s *StreakService) RecordActivity(ctx context.Context, userID, streakType string, today time.Time) (*models.StreakRecord, error) {
	if userID == "" {
		return nil, invalidf("empty user id")
	}
	st, key, err := s.streakType(streakType)
	if err != nil {
		return nil, err
	}
	day := s.cfg.Today(today)

	var (
		out   *models.StreakRecord
		bonus int64
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, _, err := advanceTx(tx, userID, key, st, day)
		if err != nil {
			return err
		}
		out = rec

		bonus, err = s.payBonusTx(tx, rec, st, day)
		return err
	})
	if err != nil {
		log.Printf("❌ [STREAK] %s/%s rolled back: %v", userID, key, err)
		return nil, txFailure("record activity", err)
	}

	if bonus > 0 {
		log.Printf("🔥 [STREAK] %s %s streak at %d, bonus %d points", userID, key, out.StreakCount, bonus)
	}
	return out, nil
}

// payBonusTx pays the schedule bonus for the record's current count once per
// period. Activity dated before the record's period pays nothing.
func (s *StreakService) payBonusTx(tx *gorm.DB, rec *models.StreakRecord, st config.StreakType, day time.Time) (int64, error) {
	cur := st.Period.Start(day)
	if !st.Period.Start(dateOnly(rec.LastActivity)).Equal(cur) {
		return 0, nil
	}
	if rec.BonusPeriod != nil && !cur.After(dateOnly(*rec.BonusPeriod)) {
		return 0, nil
	}

	res := tx.Model(&models.StreakRecord{}).
		Where("id = ? AND version = ?", rec.ID, rec.Version).
		Updates(map[string]any{"bonus_period": cur, "version": rec.Version + 1})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		// Another request got here first and owns this period's bonus.
		return 0, nil
	}
	rec.BonusPeriod = &cur
	rec.Version++

	bonus := st.BonusFor(rec.StreakCount)
	if bonus == 0 {
		return 0, nil
	}
	effect := Points(bonus).From(SourceStreak)
	return bonus, s.Grants.ApplyTx(tx, rec.UserID, []RewardEffect{effect})
}

// GetUserStreak returns the stored record for one streak type.
func (s *StreakService) GetUserStreak(ctx context.Context, userID, streakType string) (*models.StreakRecord, error) {
	_, key, err := s.streakType(streakType)
	if err != nil {
		return nil, err
	}
	rec, err := findStreakTx(s.DB.WithContext(ctx), userID, key)
	if err != nil {
		return nil, txFailure("load streak", err)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

// GetStreakProgress reports the streak as seen on today: a streak whose last
// activity is older than the previous period already reads as 0.
func (s *StreakService) GetStreakProgress(ctx context.Context, userID, streakType string, today time.Time) (*StreakProgress, error) {
	st, key, err := s.streakType(streakType)
	if err != nil {
		return nil, err
	}
	rec, err := findStreakTx(s.DB.WithContext(ctx), userID, key)
	if err != nil {
		return nil, txFailure("load streak", err)
	}

	out := &StreakProgress{
		UserID:       userID,
		StreakType:   key,
		Label:        config.Label(key),
		Period:       st.Period,
		ScheduleDays: len(st.Bonuses),
		NextBonus:    st.BonusFor(1),
	}
	if rec == nil || rec.StreakCount == 0 {
		return out, nil
	}

	day := s.cfg.Today(today)
	cur := st.Period.Start(day)
	last := st.Period.Start(dateOnly(rec.LastActivity))
	lastActivity := dateOnly(rec.LastActivity)
	out.LastActivity = &lastActivity
	out.Longest = rec.LongestStreak

	switch {
	case !cur.After(last):
		out.Current = rec.StreakCount
		out.ActiveToday = true
		out.NextBonus = st.BonusFor(rec.StreakCount + 1)
	case st.Period.Previous(cur).Equal(last):
		out.Current = rec.StreakCount
		out.AtRisk = true
		out.NextBonus = st.BonusFor(rec.StreakCount + 1)
	}
	return out, nil
}

// ResetStreak zeroes the counters; the next activity starts again at 1. The
// row is kept so the bonus already paid for the current period stays paid.
func (s *StreakService) ResetStreak(ctx context.Context, userID, streakType string) error {
	_, key, err := s.streakType(streakType)
	if err != nil {
		return err
	}
	err = s.DB.WithContext(ctx).
		Model(&models.StreakRecord{}).
		Where("user_id = ? AND streak_type = ?", userID, key).
		Updates(map[string]any{
			"streak_count":   0,
			"longest_streak": 0,
			"version":        gorm.Expr("version + 1"),
		}).Error
	if err != nil {
		return txFailure("reset streak", err)
	}
	log.Printf("🧹 [STREAK] Reset %s streak for %s", key, userID)
	return nil
}
