package services

import (
	"forum-progression/config"

	"gorm.io/gorm"
)

// Engine bundles the progression services over one database and one set of
// progression tables.
type Engine struct {
	Levels     *LevelService
	Streaks    *StreakService
	Milestones *MilestoneService
	Daily      *DailyRewardService
	Grants     *GrantExecutor
	Badges     *BadgeService
	Reconcile  *ReconcileService
}

func NewEngine(db *gorm.DB, cfg *config.Progression) *Engine {
	calc := NewLevelCalculator(cfg)
	grants := NewGrantExecutor(db, calc)
	milestones := NewMilestoneService(db, cfg, grants)
	return &Engine{
		Levels:     NewLevelService(db, cfg, calc),
		Streaks:    NewStreakService(db, cfg, grants),
		Milestones: milestones,
		Daily:      NewDailyRewardService(db, cfg, grants),
		Grants:     grants,
		Badges:     NewBadgeService(db),
		Reconcile:  NewReconcileService(db, milestones),
	}
}
