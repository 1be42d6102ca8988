package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_LevelRequirements(t *testing.T) {
	p := Default()
	reqs := p.LevelRequirements()

	require.Len(t, reqs, 101)
	assert.Equal(t, int64(0), reqs[1])
	assert.Equal(t, int64(100), reqs[2])
	assert.Equal(t, int64(220), reqs[3])
	assert.Equal(t, int64(364), reqs[4])
	for l := 2; l < len(reqs); l++ {
		assert.Greater(t, reqs[l], reqs[l-1], "level %d", l)
	}
}

func TestDefault_Tables(t *testing.T) {
	p := Default()

	title, ok := p.LevelTitle(12)
	require.True(t, ok)
	assert.Equal(t, "Regular", title.Title)

	title, ok = p.LevelTitle(100)
	require.True(t, ok)
	assert.Equal(t, "Legend", title.Title)

	_, ok = p.LevelTitle(0)
	assert.False(t, ok)

	st, key, ok := p.Streak(" Login ")
	require.True(t, ok)
	assert.Equal(t, "login", key)
	assert.Equal(t, PeriodDay, st.Period)
	assert.Equal(t, ScheduleStop, st.AfterSchedule)

	_, _, ok = p.Streak("nope")
	assert.False(t, ok)

	mt, key, ok := p.Milestone("POSTS")
	require.True(t, ok)
	assert.Equal(t, "posts", key)
	assert.Equal(t, int64(2), mt.Multiplier)

	r, ok := p.MilestoneReward("posts", 100)
	require.True(t, ok)
	assert.Equal(t, "posts-100", r.Badge)
	assert.Equal(t, "prolific-poster", r.Achievement)

	_, ok = p.MilestoneReward("posts", 10)
	assert.False(t, ok)
}

func TestDefault_DailyTiers(t *testing.T) {
	p := Default()

	tier, ok := p.DailyTier(1)
	require.True(t, ok)
	assert.Equal(t, int64(10), tier.Points)

	_, ok = p.DailyTier(8)
	assert.False(t, ok, "tiers are exact matches")

	next, ok := p.NextDailyTier(8)
	require.True(t, ok)
	assert.Equal(t, int64(14), next.Day)

	_, ok = p.NextDailyTier(366)
	assert.False(t, ok)
}

func TestDailyBonuses(t *testing.T) {
	p := Default()

	assert.Empty(t, p.DailyBonuses(3))
	assert.Equal(t, []Bonus{{Kind: BonusBadge, Code: "weekly-streak"}}, p.DailyBonuses(7))
	assert.Equal(t, []Bonus{{Kind: BonusAchievement, Code: "monthly-streak"}}, p.DailyBonuses(30))
	assert.Equal(t, []Bonus{
		{Kind: BonusBadge, Code: "weekly-streak"},
		{Kind: BonusAchievement, Code: "monthly-streak"},
	}, p.DailyBonuses(210))
	assert.Equal(t, []Bonus{{Kind: BonusTitle, Code: "Centurion"}}, p.DailyBonuses(100))
	assert.Contains(t, p.DailyBonuses(365), Bonus{Kind: BonusTitle, Code: "Year-Round Regular"})
}

func TestBonusFor_Policies(t *testing.T) {
	st := StreakType{Period: PeriodDay, Bonuses: []int64{5, 10, 15}}

	assert.Equal(t, int64(0), st.BonusFor(0))
	assert.Equal(t, int64(5), st.BonusFor(1))
	assert.Equal(t, int64(15), st.BonusFor(3))
	assert.Equal(t, int64(0), st.BonusFor(4))

	st.AfterSchedule = ScheduleCycle
	assert.Equal(t, int64(5), st.BonusFor(4))
	assert.Equal(t, int64(15), st.BonusFor(6))

	st.AfterSchedule = ScheduleRepeatLast
	assert.Equal(t, int64(15), st.BonusFor(40))

	assert.Equal(t, int64(0), StreakType{}.BonusFor(1))
}

func TestPeriod_Boundaries(t *testing.T) {
	wed := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, wed, PeriodDay.Start(wed))
	assert.Equal(t, time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC), PeriodWeek.Start(wed))
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), PeriodMonth.Start(wed))

	sunday := time.Date(2024, 5, 19, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC), PeriodWeek.Start(sunday))

	assert.Equal(t, time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC), PeriodDay.Previous(wed))
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), PeriodWeek.Previous(PeriodWeek.Start(wed)))
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), PeriodMonth.Previous(PeriodMonth.Start(wed)))
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), PeriodMonth.Next(PeriodMonth.Start(wed)))
}

func TestToday_UsesConfiguredTimezone(t *testing.T) {
	p, err := Default().WithTimezone("America/New_York")
	require.NoError(t, err)

	// 02:00 UTC on the 16th is still the 15th in New York.
	instant := time.Date(2024, 5, 16, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), p.Today(instant))
	assert.Equal(t, time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC), Default().Today(instant))
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "login", NormalizeKey("Login"))
	assert.Equal(t, "login", NormalizeKey("  LOGIN "))
	assert.Equal(t, "", NormalizeKey("   "))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Likes Received", Label("likes_received"))
	assert.Equal(t, "Login", Label("login"))
}

func TestParse_OverlaysDefaults(t *testing.T) {
	p, err := Parse([]byte(`
version: "test"
levels:
  base_points: 50
  multiplier: 2
  max_level: 10
  prestige_threshold: 0
streaks:
  Reading:
    period: week
    bonuses: [1, 2]
    after_schedule: cycle
`))
	require.NoError(t, err)

	assert.Equal(t, "test", p.Version)
	assert.Equal(t, []int64{0, 0, 50, 150, 350, 750, 1550, 3150, 6350, 12750, 25550}, p.LevelRequirements())
	assert.Equal(t, 0, p.Levels.PrestigeThreshold)

	st, key, ok := p.Streak("reading")
	require.True(t, ok)
	assert.Equal(t, "reading", key)
	assert.Equal(t, PeriodWeek, st.Period)
	assert.Equal(t, int64(1), st.BonusFor(3))

	_, _, ok = p.Streak("login")
	assert.True(t, ok, "default streak types survive the overlay")
	_, ok = p.DailyTier(365)
	assert.True(t, ok)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":            "levels: [",
		"zero base":           "levels: {base_points: 0}",
		"shrinking curve":     "levels: {multiplier: 0.5}",
		"bad period":          "streaks: {login: {period: fortnight}}",
		"bad policy":          "streaks: {post: {period: day, after_schedule: sometimes}}",
		"orphan reward":       "milestones: {posts: {thresholds: [1, 2], multiplier: 1, rewards: [{threshold: 3, badge: x}]}}",
		"empty thresholds":    "milestones: {posts: {thresholds: [], multiplier: 1}}",
		"daily not daily":     "daily_rewards: {streak_type: weekly_login}",
		"daily missing type":  "daily_rewards: {streak_type: reading}",
		"negative tier":       "daily_rewards: {tiers: [{day: 0, points: 5}]}",
		"unknown timezone":    "timezone: Mars/Olympus",
		"negative bonus":      "streaks: {post: {period: day, bonuses: [-1]}}",
		"negative multiplier": "milestones: {likes: {thresholds: [1], multiplier: -2}}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progression.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: from-file\n"), 0o644))

	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", p.Version)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
