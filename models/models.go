package models

// All lists every table the engine owns, in migration order.
func All() []any {
	return []any{
		&UserProgression{},
		&LevelUpEvent{},
		&StreakRecord{},
		&MilestoneRecord{},
		&DailyRewardClaim{},
		&UserBadge{},
		&UserAchievement{},
		&ReconciliationTask{},
	}
}
