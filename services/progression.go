package services

import (
	"context"
	"errors"
	"sort"

	"forum-progression/config"
	"forum-progression/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LevelInfo is the level a point total maps to.
type LevelInfo struct {
	Level         int   `json:"level"`
	PrestigeLevel int   `json:"prestige_level"`
	RawLevel      int   `json:"raw_level"` // position on the cost curve before prestige wraparound
	Points        int64 `json:"points"`
	// RequiredPoints is the cumulative total at which RawLevel was reached.
	RequiredPoints int64 `json:"required_points"`
	// NextLevelPoints is the cumulative total for RawLevel+1; zero at the cap.
	NextLevelPoints int64 `json:"next_level_points"`
	AtMaxLevel      bool  `json:"at_max_level"`
}

// LevelCalculator maps points to levels using the configured cost curve.
// It holds no state besides the immutable tables.
type LevelCalculator struct {
	cfg  *config.Progression
	reqs []int64
}

func NewLevelCalculator(cfg *config.Progression) *LevelCalculator {
	return &LevelCalculator{cfg: cfg, reqs: cfg.LevelRequirements()}
}

func (c *LevelCalculator) maxLevel() int { return len(c.reqs) - 1 }

// LevelForPoints returns the level reached with points cumulative points.
func (c *LevelCalculator) LevelForPoints(points int64) (LevelInfo, error) {
	if points < 0 {
		return LevelInfo{}, invalidf("negative points %d", points)
	}

	// reqs[1:] is ascending; find the last level whose requirement fits.
	top := c.maxLevel()
	raw := sort.Search(top, func(i int) bool { return c.reqs[i+1] > points })
	if raw < 1 {
		raw = 1
	}

	info := LevelInfo{
		RawLevel:       raw,
		Points:         points,
		RequiredPoints: c.reqs[raw],
		AtMaxLevel:     raw == top,
	}
	if raw < top {
		info.NextLevelPoints = c.reqs[raw+1]
	}
	info.PrestigeLevel, info.Level = c.split(raw)
	return info, nil
}

// PointsForLevel returns the cumulative points needed to reach raw level.
func (c *LevelCalculator) PointsForLevel(level int) (int64, error) {
	if level < 1 || level > c.maxLevel() {
		return 0, invalidf("level %d outside 1..%d", level, c.maxLevel())
	}
	return c.reqs[level], nil
}

// split wraps a raw level into (prestige, level). Levels 1..T stay at
// prestige 0, T+1 becomes prestige 1 level 1, and a multiple of T shows as
// level T rather than 0.
func (c *LevelCalculator) split(raw int) (prestige, level int) {
	t := c.cfg.Levels.PrestigeThreshold
	if t <= 0 {
		return 0, raw
	}
	return (raw - 1) / t, (raw-1)%t + 1
}

// rawLevel is the inverse of split for a stored (prestige, level) pair.
func (c *LevelCalculator) rawLevel(prestige, level int) int {
	t := c.cfg.Levels.PrestigeThreshold
	if t <= 0 {
		return level
	}
	return prestige*t + level
}

// rewardsFor lists the effects earned by moving from raw level from to raw
// level to, excluding prestige.
func (c *LevelCalculator) rewardsFor(from, to int) []RewardEffect {
	lt := c.cfg.Levels
	var out []RewardEffect
	for l := from + 1; l <= to; l++ {
		if lt.PointsPerLevel > 0 {
			out = append(out, Points(int64(l)*lt.PointsPerLevel).From(SourceLevel))
		}
		if lt.BadgeEvery > 0 && l%lt.BadgeEvery == 0 {
			out = append(out, Badge(levelCode(l)).From(SourceLevel))
		}
		if lt.AchievementEvery > 0 && l%lt.AchievementEvery == 0 {
			out = append(out, Achievement(levelCode(l)).From(SourceLevel))
		}
	}
	return out
}

// LevelProgress is the display view of a user's level.
type LevelProgress struct {
	UserID          string            `json:"user_id"`
	Points          int64             `json:"points"`
	Level           int               `json:"level"`
	PrestigeLevel   int               `json:"prestige_level"`
	Title           config.LevelTitle `json:"title"`
	CustomTitle     string            `json:"custom_title,omitempty"`
	LevelPoints     int64             `json:"level_points"`
	NextLevelPoints int64             `json:"next_level_points"`
	PointsToNext    int64             `json:"points_to_next"`
	Percent         float64           `json:"percent"`
	AtMaxLevel      bool              `json:"at_max_level"`
}

type LevelService struct {
	DB   *gorm.DB
	Calc *LevelCalculator
	cfg  *config.Progression
}

func NewLevelService(db *gorm.DB, cfg *config.Progression, calc *LevelCalculator) *LevelService {
	return &LevelService{DB: db, Calc: calc, cfg: cfg}
}

// EnsureProgression creates the user's progression row if missing (idempotent).
func (s *LevelService) EnsureProgression(ctx context.Context, userID string) (*models.UserProgression, error) {
	if userID == "" {
		return nil, invalidf("empty user id")
	}
	var prog models.UserProgression
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureProgressionTx(tx, userID); err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).First(&prog).Error
	})
	if err != nil {
		return nil, txFailure("ensure progression", err)
	}
	return &prog, nil
}

func ensureProgressionTx(tx *gorm.DB, userID string) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.UserProgression{UserID: userID, Level: 1}).Error
}

// GetUserLevel returns the stored progression row.
func (s *LevelService) GetUserLevel(ctx context.Context, userID string) (*models.UserProgression, error) {
	var prog models.UserProgression
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&prog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, txFailure("load progression", err)
	}
	return &prog, nil
}

// GetLevelProgress reports how far the user is through their current level.
func (s *LevelService) GetLevelProgress(ctx context.Context, userID string) (*LevelProgress, error) {
	prog, err := s.GetUserLevel(ctx, userID)
	if err != nil {
		return nil, err
	}

	raw := s.Calc.rawLevel(prog.PrestigeLevel, prog.Level)
	if raw > s.Calc.maxLevel() {
		raw = s.Calc.maxLevel()
	}
	out := &LevelProgress{
		UserID:        prog.UserID,
		Points:        prog.Points,
		Level:         prog.Level,
		PrestigeLevel: prog.PrestigeLevel,
		CustomTitle:   prog.CustomTitle,
		LevelPoints:   s.Calc.reqs[raw],
		AtMaxLevel:    raw == s.Calc.maxLevel(),
	}
	if t, ok := s.cfg.LevelTitle(prog.Level); ok {
		out.Title = t
	}
	if out.AtMaxLevel {
		out.Percent = 100
		return out, nil
	}

	out.NextLevelPoints = s.Calc.reqs[raw+1]
	out.PointsToNext = max(out.NextLevelPoints-prog.Points, 0)
	span := out.NextLevelPoints - out.LevelPoints
	done := min(max(prog.Points-out.LevelPoints, 0), span)
	out.Percent = float64(done) * 100 / float64(span)
	return out, nil
}

// GetLevelHistory returns the most recent level-up events, newest first.
func (s *LevelService) GetLevelHistory(ctx context.Context, userID string, limit int) ([]models.LevelUpEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var events []models.LevelUpEvent
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, txFailure("load level history", err)
	}
	return events, nil
}
