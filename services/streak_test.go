package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"forum-progression/config"
	"forum-progression/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedStreak(t *testing.T, db *gorm.DB, userID, streakType string, count int64, last time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&models.StreakRecord{
		UserID:        userID,
		StreakType:    streakType,
		StreakCount:   count,
		LongestStreak: count,
		LastActivity:  last,
		Version:       1,
	}).Error)
}

func TestNextCount_Transitions(t *testing.T) {
	today := date(2024, 5, 15)
	rec := func(n int64, d time.Time) *models.StreakRecord {
		return &models.StreakRecord{StreakCount: n, LastActivity: d}
	}

	cases := []struct {
		name     string
		period   config.Period
		rec      *models.StreakRecord
		want     int64
		advanced bool
	}{
		{"first activity", config.PeriodDay, nil, 1, true},
		{"same day", config.PeriodDay, rec(5, today), 5, false},
		{"yesterday", config.PeriodDay, rec(5, today.AddDate(0, 0, -1)), 6, true},
		{"gap of two days", config.PeriodDay, rec(5, today.AddDate(0, 0, -2)), 1, true},
		{"backdated", config.PeriodDay, rec(5, today.AddDate(0, 0, 1)), 5, false},
		{"same week", config.PeriodWeek, rec(2, date(2024, 5, 13)), 2, false},
		{"previous week", config.PeriodWeek, rec(2, date(2024, 5, 12)), 3, true},
		{"two weeks back", config.PeriodWeek, rec(2, date(2024, 5, 5)), 1, true},
		{"previous month", config.PeriodMonth, rec(4, date(2024, 4, 30)), 5, true},
		{"same month", config.PeriodMonth, rec(4, date(2024, 5, 1)), 4, false},
		{"month gap", config.PeriodMonth, rec(4, date(2024, 3, 31)), 1, true},
		{"reset, same day", config.PeriodDay, rec(0, today), 1, true},
		{"reset, backdated", config.PeriodDay, rec(0, today.AddDate(0, 0, 1)), 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, advanced := nextCount(tc.period, tc.rec, today)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.advanced, advanced)
		})
	}
}

func TestRecordActivity_FirstActivityAndIdempotency(t *testing.T) {
	e, db := setupEngine(t)
	ctx := context.Background()
	today := date(2024, 1, 1)

	rec, err := e.Streaks.RecordActivity(ctx, "u1", "login", today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.StreakCount)

	again, err := e.Streaks.RecordActivity(ctx, "u1", "Login", today.Add(15*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, rec.StreakCount, again.StreakCount)

	// The day-1 bonus (5) is paid once.
	assert.Equal(t, int64(5), pointsOf(t, db, "u1"))
}

func TestRecordActivity_Continuity(t *testing.T) {
	e, db := setupEngine(t)
	ctx := context.Background()
	today := date(2024, 1, 10)

	seedStreak(t, db, "yesterday", "login", 5, today.AddDate(0, 0, -1))
	rec, err := e.Streaks.RecordActivity(ctx, "yesterday", "login", today)
	require.NoError(t, err)
	assert.Equal(t, int64(6), rec.StreakCount)
	assert.True(t, today.Equal(dateOnly(rec.LastActivity)))
	assert.Equal(t, int64(30), pointsOf(t, db, "yesterday"))

	seedStreak(t, db, "lapsed", "login", 5, today.AddDate(0, 0, -3))
	rec, err = e.Streaks.RecordActivity(ctx, "lapsed", "login", today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.StreakCount)
	assert.Equal(t, int64(5), rec.LongestStreak)
	assert.Equal(t, int64(5), pointsOf(t, db, "lapsed"))
}

func TestRecordActivity_BackdatedIsNoop(t *testing.T) {
	e, db := setupEngine(t)
	ctx := context.Background()
	today := date(2024, 1, 10)

	_, err := e.Streaks.RecordActivity(ctx, "u1", "post", today)
	require.NoError(t, err)
	rec, err := e.Streaks.RecordActivity(ctx, "u1", "post", today.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.StreakCount)
	assert.True(t, today.Equal(dateOnly(rec.LastActivity)))
	assert.Equal(t, int64(2), pointsOf(t, db, "u1"))
}

func TestRecordActivity_BonusScheduleStops(t *testing.T) {
	e, db := setupEngine(t)
	ctx := context.Background()
	start := date(2024, 1, 1)

	// post pays 2,4,6,8,10 and nothing afterwards.
	for i := 0; i < 7; i++ {
		_, err := e.Streaks.RecordActivity(ctx, "u1", "post", start.AddDate(0, 0, i))
		require.NoError(t, err)
	}
	assert.Equal(t, int64(30), pointsOf(t, db, "u1"))

	rec, err := e.Streaks.GetUserStreak(ctx, "u1", "post")
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.StreakCount)
	assert.Equal(t, int64(7), rec.LongestStreak)
}

func TestRecordActivity_BonusScheduleCycles(t *testing.T) {
	e, db := setupEngineWith(t, `
streaks:
  post: {period: day, bonuses: [1, 2], after_schedule: cycle}
`)
	ctx := context.Background()
	start := date(2024, 1, 1)

	for i := 0; i < 5; i++ {
		_, err := e.Streaks.RecordActivity(ctx, "u1", "post", start.AddDate(0, 0, i))
		require.NoError(t, err)
	}
	// 1+2+1+2+1
	assert.Equal(t, int64(7), pointsOf(t, db, "u1"))
}

func TestRecordActivity_WeeklyStreak(t *testing.T) {
	e, db := setupEngine(t)
	ctx := context.Background()

	_, err := e.Streaks.RecordActivity(ctx, "u1", "weekly_login", date(2024, 5, 13)) // Monday
	require.NoError(t, err)
	rec, err := e.Streaks.RecordActivity(ctx, "u1", "weekly_login", date(2024, 5, 17)) // same week
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.StreakCount)

	rec, err = e.Streaks.RecordActivity(ctx, "u1", "weekly_login", date(2024, 5, 25)) // next week's Saturday
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.StreakCount)
	assert.Equal(t, int64(25+50), pointsOf(t, db, "u1"))
}

func TestRecordActivity_UnknownType(t *testing.T) {
	e, _ := setupEngine(t)
	_, err := e.Streaks.RecordActivity(context.Background(), "u1", "reading", date(2024, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = e.Streaks.RecordActivity(context.Background(), "", "login", date(2024, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRecordActivity_FailureLeavesRecordIntact(t *testing.T) {
	e, db := setupEngine(t)
	ctx := context.Background()
	today := date(2024, 1, 10)
	seedStreak(t, db, "u1", "login", 3, today.AddDate(0, 0, -1))

	off := failWhen(t, db, "user_progressions", nil)
	_, err := e.Streaks.RecordActivity(ctx, "u1", "login", today)
	require.ErrorIs(t, err, ErrTransactionFailure)

	rec, err := e.Streaks.GetUserStreak(ctx, "u1", "login")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.StreakCount)
	assert.Nil(t, rec.BonusPeriod)

	off.Store(false)
	rec, err = e.Streaks.RecordActivity(ctx, "u1", "login", today)
	require.NoError(t, err)
	assert.Equal(t, int64(4), rec.StreakCount)
	assert.Equal(t, int64(20), pointsOf(t, db, "u1"))
}

func TestStreakProgressAndReset(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()
	day := date(2024, 3, 1)

	p, err := e.Streaks.GetStreakProgress(ctx, "u1", "likes", day)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Nil(t, p)

	p, err = e.Streaks.GetStreakProgress(ctx, "u1", "login", day)
	require.NoError(t, err)
	assert.Zero(t, p.Current)
	assert.Equal(t, int64(5), p.NextBonus)
	assert.Equal(t, "Login", p.Label)

	for i := 0; i < 2; i++ {
		_, err := e.Streaks.RecordActivity(ctx, "u1", "login", day.AddDate(0, 0, i))
		require.NoError(t, err)
	}

	p, err = e.Streaks.GetStreakProgress(ctx, "u1", "login", day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.Current)
	assert.True(t, p.ActiveToday)
	assert.Equal(t, int64(15), p.NextBonus)

	p, err = e.Streaks.GetStreakProgress(ctx, "u1", "login", day.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.Current)
	assert.True(t, p.AtRisk)

	p, err = e.Streaks.GetStreakProgress(ctx, "u1", "login", day.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Zero(t, p.Current, "a lapsed streak reads as broken")
	assert.Equal(t, int64(2), p.Longest)

	require.NoError(t, e.Streaks.ResetStreak(ctx, "u1", "login"))
	rec, err := e.Streaks.GetUserStreak(ctx, "u1", "login")
	require.NoError(t, err)
	assert.Zero(t, rec.StreakCount)
	assert.Zero(t, rec.LongestStreak)

	p, err = e.Streaks.GetStreakProgress(ctx, "u1", "login", day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Zero(t, p.Current)
	assert.False(t, p.ActiveToday)

	rec, err = e.Streaks.RecordActivity(ctx, "u1", "login", day.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.StreakCount)
	assert.Equal(t, int64(1), rec.LongestStreak)
}

func TestResetStreak_SameDayDoesNotPayBonusTwice(t *testing.T) {
	e, db := setupEngine(t)
	ctx := context.Background()
	day := date(2024, 3, 1)

	_, err := e.Streaks.RecordActivity(ctx, "u1", "login", day)
	require.NoError(t, err)
	require.Equal(t, int64(5), pointsOf(t, db, "u1"))

	require.NoError(t, e.Streaks.ResetStreak(ctx, "u1", "login"))
	rec, err := e.Streaks.RecordActivity(ctx, "u1", "login", day)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.StreakCount)
	assert.Equal(t, int64(5), pointsOf(t, db, "u1"), "this period's bonus was already paid")

	// The next day pays again as usual.
	rec, err = e.Streaks.RecordActivity(ctx, "u1", "login", day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.StreakCount)
	assert.Equal(t, int64(15), pointsOf(t, db, "u1"))

	// Backdated activity after a reset does nothing.
	require.NoError(t, e.Streaks.ResetStreak(ctx, "u1", "login"))
	rec, err = e.Streaks.RecordActivity(ctx, "u1", "login", day)
	require.NoError(t, err)
	assert.Zero(t, rec.StreakCount)
}

func TestRecordActivity_ConcurrentCallsAdvanceOnce(t *testing.T) {
	e, db := setupEngine(t)
	ctx := context.Background()
	today := date(2024, 1, 10)
	seedStreak(t, db, "u1", "login", 3, today.AddDate(0, 0, -1))

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Streaks.RecordActivity(ctx, "u1", "login", today)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	rec, err := e.Streaks.GetUserStreak(ctx, "u1", "login")
	require.NoError(t, err)
	assert.Equal(t, int64(4), rec.StreakCount)
	assert.Equal(t, int64(4), rec.LongestStreak)
	assert.Equal(t, int64(20), pointsOf(t, db, "u1"), "bonus for day 4 paid once")
}

// bumpVersionBeforeAdvance moves the record's version on, inside the same
// transaction, before each of the first `times` streak-advancing updates, so
// those conditional updates match no row.
func bumpVersionBeforeAdvance(t *testing.T, db *gorm.DB, times int32) *atomic.Int32 {
	t.Helper()
	calls := &atomic.Int32{}
	bump := func(tx *gorm.DB) {
		values, ok := tx.Statement.Dest.(map[string]any)
		if !ok || tx.Statement.Table != "streak_records" {
			return
		}
		if _, advancing := values["streak_count"]; !advancing {
			return
		}
		if calls.Add(1) > times {
			return
		}
		err := tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE streak_records SET version = version + 1").Error
		if err != nil {
			tx.AddError(err)
		}
	}
	name := "test:bump_version:" + t.Name()
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register(name, bump))
	t.Cleanup(func() { calls.Store(1 << 30) })
	return calls
}

func TestRecordActivity_RetriesAfterVersionMismatch(t *testing.T) {
	e, db := setupEngine(t)
	ctx := context.Background()
	today := date(2024, 1, 10)
	seedStreak(t, db, "u1", "login", 3, today.AddDate(0, 0, -1))

	calls := bumpVersionBeforeAdvance(t, db, 1)
	rec, err := e.Streaks.RecordActivity(ctx, "u1", "login", today)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "first update lost the race, second one applied")
	assert.Equal(t, int64(4), rec.StreakCount)

	stored, err := e.Streaks.GetUserStreak(ctx, "u1", "login")
	require.NoError(t, err)
	assert.Equal(t, int64(4), stored.StreakCount)
	// seeded 1, bumped once, advanced once, bonus period once
	assert.Equal(t, int64(4), stored.Version)
	assert.Equal(t, int64(20), pointsOf(t, db, "u1"))
}

func TestRecordActivity_GivesUpUnderSustainedContention(t *testing.T) {
	e, db := setupEngine(t)
	ctx := context.Background()
	today := date(2024, 1, 10)
	seedStreak(t, db, "u1", "login", 3, today.AddDate(0, 0, -1))

	calls := bumpVersionBeforeAdvance(t, db, 1000)
	_, err := e.Streaks.RecordActivity(ctx, "u1", "login", today)
	require.ErrorIs(t, err, ErrTransactionFailure)
	assert.ErrorIs(t, err, errStreakContention)
	assert.Equal(t, int32(streakRetries), calls.Load())

	// The bumps happened inside the rolled-back transaction.
	stored, err := e.Streaks.GetUserStreak(ctx, "u1", "login")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.StreakCount)
	assert.Equal(t, int64(1), stored.Version)
	assert.Zero(t, pointsOf(t, db, "u1"))
}
