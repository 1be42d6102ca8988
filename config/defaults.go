package config

// defaultDocument returns the uncompiled built-in tables. Parse overlays
// YAML on top of it, so every field here doubles as the YAML default.
func defaultDocument() *Progression {
	return &Progression{
		Version:  "2024.1",
		Timezone: "UTC",
		Levels: LevelTable{
			BasePoints:        100,
			Multiplier:        1.2,
			MaxLevel:          100,
			PrestigeThreshold: 50,
			PointsPerLevel:    5,
			BadgeEvery:        10,
			AchievementEvery:  25,
			Titles: []LevelTitle{
				{MinLevel: 1, Title: "Newcomer", Color: "#9e9e9e"},
				{MinLevel: 5, Title: "Member", Color: "#4caf50", Benefits: []string{"custom_avatar"}},
				{MinLevel: 10, Title: "Regular", Color: "#2196f3", Benefits: []string{"custom_avatar", "signature"}},
				{MinLevel: 20, Title: "Contributor", Color: "#9c27b0", Benefits: []string{"custom_avatar", "signature", "create_polls"}},
				{MinLevel: 30, Title: "Veteran", Color: "#ff9800", Benefits: []string{"custom_avatar", "signature", "create_polls", "custom_title"}},
				{MinLevel: 40, Title: "Elder", Color: "#f44336", Benefits: []string{"custom_avatar", "signature", "create_polls", "custom_title", "edit_wiki"}},
				{MinLevel: 50, Title: "Legend", Color: "#ffd700", Benefits: []string{"custom_avatar", "signature", "create_polls", "custom_title", "edit_wiki", "legend_flair"}},
			},
		},
		Streaks: map[string]StreakType{
			"login":         {Period: PeriodDay, Bonuses: []int64{5, 10, 15, 20, 25, 30, 50}},
			"post":          {Period: PeriodDay, Bonuses: []int64{2, 4, 6, 8, 10}},
			"weekly_login":  {Period: PeriodWeek, Bonuses: []int64{25, 50, 75, 100}},
			"monthly_login": {Period: PeriodMonth, Bonuses: []int64{100, 200, 300}},
		},
		Milestones: map[string]MilestoneType{
			"posts": {
				Thresholds: []int64{1, 10, 50, 100, 250, 500, 1000, 2500, 5000},
				Multiplier: 2,
				Rewards: []MilestoneReward{
					{Threshold: 1, Badge: "first-post"},
					{Threshold: 100, Badge: "posts-100", Achievement: "prolific-poster"},
					{Threshold: 1000, Badge: "posts-1000"},
					{Threshold: 5000, Achievement: "forum-pillar"},
				},
			},
			"topics": {
				Thresholds: []int64{1, 5, 25, 100, 500},
				Multiplier: 5,
				Rewards: []MilestoneReward{
					{Threshold: 1, Badge: "first-topic"},
					{Threshold: 100, Achievement: "conversation-starter"},
				},
			},
			"likes_received": {
				Thresholds: []int64{1, 10, 50, 100, 500, 1000},
				Multiplier: 1,
				Rewards: []MilestoneReward{
					{Threshold: 10, Badge: "appreciated"},
					{Threshold: 1000, Achievement: "crowd-favorite"},
				},
			},
			"solutions": {
				Thresholds: []int64{1, 5, 25, 100},
				Multiplier: 10,
				Rewards: []MilestoneReward{
					{Threshold: 1, Badge: "problem-solver"},
					{Threshold: 100, Achievement: "oracle"},
				},
			},
		},
		Daily: DailyRewardTable{
			StreakType: "login",
			Tiers: []DailyTier{
				{Day: 1, Name: "Day 1", Points: 10},
				{Day: 2, Name: "Day 2", Points: 15},
				{Day: 3, Name: "Day 3", Points: 20},
				{Day: 4, Name: "Day 4", Points: 25},
				{Day: 5, Name: "Day 5", Points: 30},
				{Day: 6, Name: "Day 6", Points: 40},
				{Day: 7, Name: "Week One", Points: 50},
				{Day: 14, Name: "Two Weeks", Points: 100},
				{Day: 21, Name: "Three Weeks", Points: 150},
				{Day: 30, Name: "One Month", Points: 250},
				{Day: 60, Name: "Two Months", Points: 500},
				{Day: 90, Name: "Three Months", Points: 750},
				{Day: 100, Name: "Hundred Days", Points: 1000},
				{Day: 180, Name: "Half Year", Points: 1500},
				{Day: 365, Name: "One Year", Points: 5000},
			},
			WeeklyBadge:        "weekly-streak",
			MonthlyAchievement: "monthly-streak",
			Titles: []DayTitle{
				{Day: 100, Title: "Centurion"},
				{Day: 365, Title: "Year-Round Regular"},
			},
		},
	}
}
