package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"forum-progression/config"
	"forum-progression/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EffectKind string

const (
	EffectPoints      EffectKind = "points"
	EffectBadge       EffectKind = "badge"
	EffectAchievement EffectKind = "achievement"
	EffectTitle       EffectKind = "title"
	EffectPrestige    EffectKind = "prestige"
)

// Grant sources, stored alongside badges and achievements.
const (
	SourceLevel     = "level"
	SourceStreak    = "streak"
	SourceMilestone = "milestone"
	SourceDaily     = "daily"
	SourceAdmin     = "admin"
)

// maxEffects bounds a single grant including level-up follow-ups.
const maxEffects = 10000

// RewardEffect is one mutation applied by the GrantExecutor.
type RewardEffect struct {
	Kind   EffectKind `json:"kind"`
	Amount int64      `json:"amount,omitempty"` // points, prestige
	Code   string     `json:"code,omitempty"`   // badge or achievement code, title text
	Source string     `json:"source,omitempty"`
}

func Points(n int64) RewardEffect { return RewardEffect{Kind: EffectPoints, Amount: n} }
func Badge(code string) RewardEffect { return RewardEffect{Kind: EffectBadge, Code: code} }
func Achievement(code string) RewardEffect { return RewardEffect{Kind: EffectAchievement, Code: code} }
func Title(text string) RewardEffect { return RewardEffect{Kind: EffectTitle, Code: text} }

func prestige(n int) RewardEffect { return RewardEffect{Kind: EffectPrestige, Amount: int64(n)} }

// From tags the effect with the component that produced it.
func (e RewardEffect) From(source string) RewardEffect {
	e.Source = source
	return e
}

func levelCode(level int) string { return fmt.Sprintf("level-%d", level) }

// bonusEffect converts a configured daily bonus into an effect.
func bonusEffect(b config.Bonus) RewardEffect {
	switch b.Kind {
	case config.BonusBadge:
		return Badge(b.Code)
	case config.BonusAchievement:
		return Achievement(b.Code)
	default:
		return Title(b.Code)
	}
}

func (e RewardEffect) validate() error {
	switch e.Kind {
	case EffectPoints:
		if e.Amount < 0 {
			return invalidf("negative points %d", e.Amount)
		}
	case EffectBadge, EffectAchievement:
		if e.Code == "" {
			return invalidf("%s without code", e.Kind)
		}
	case EffectTitle:
	case EffectPrestige:
		return invalidf("prestige is only granted by level-ups")
	default:
		return invalidf("unknown effect kind %q", e.Kind)
	}
	return nil
}

// GrantExecutor applies reward effects to a user inside one transaction.
type GrantExecutor struct {
	DB   *gorm.DB
	Calc *LevelCalculator
	now  func() time.Time
}

func NewGrantExecutor(db *gorm.DB, calc *LevelCalculator) *GrantExecutor {
	return &GrantExecutor{DB: db, Calc: calc, now: time.Now}
}

// Apply applies effects in their own transaction: all of them or none.
func (g *GrantExecutor) Apply(ctx context.Context, userID string, effects []RewardEffect) error {
	if err := checkEffects(userID, effects); err != nil {
		return err
	}
	err := g.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return g.applyTx(tx, userID, effects)
	})
	return txFailure("apply grant", err)
}

// ApplyTx applies effects inside the caller's transaction. The caller owns
// commit and rollback.
func (g *GrantExecutor) ApplyTx(tx *gorm.DB, userID string, effects []RewardEffect) error {
	if err := checkEffects(userID, effects); err != nil {
		return err
	}
	return g.applyTx(tx, userID, effects)
}

func checkEffects(userID string, effects []RewardEffect) error {
	if userID == "" {
		return invalidf("empty user id")
	}
	for _, e := range effects {
		if err := e.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (g *GrantExecutor) applyTx(tx *gorm.DB, userID string, effects []RewardEffect) error {
	queue := append([]RewardEffect(nil), effects...)
	applied := 0
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if applied++; applied > maxEffects {
			return fmt.Errorf("grant for %s exceeded %d effects", userID, maxEffects)
		}

		follow, err := g.applyOne(tx, userID, e)
		if err != nil {
			return fmt.Errorf("%s effect: %w", e.Kind, err)
		}
		// Follow-ups run before the rest so later effects see the new level.
		if len(follow) > 0 {
			queue = append(follow, queue...)
		}
	}
	return nil
}

func (g *GrantExecutor) applyOne(tx *gorm.DB, userID string, e RewardEffect) ([]RewardEffect, error) {
	switch e.Kind {
	case EffectPoints:
		if e.Amount == 0 {
			return nil, nil
		}
		if err := ensureProgressionTx(tx, userID); err != nil {
			return nil, err
		}
		err := tx.Model(&models.UserProgression{}).
			Where("user_id = ?", userID).
			Update("points", gorm.Expr("points + ?", e.Amount)).Error
		if err != nil {
			return nil, err
		}
		return g.levelUpTx(tx, userID)

	case EffectBadge:
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.UserBadge{UserID: userID, Code: e.Code, Source: e.Source})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			log.Printf("🎖️ [GRANT] Badge %s → %s", e.Code, userID)
		}
		return nil, nil

	case EffectAchievement:
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.UserAchievement{UserID: userID, Code: e.Code, Source: e.Source})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			log.Printf("🏆 [GRANT] Achievement %s → %s", e.Code, userID)
		}
		return nil, nil

	case EffectTitle:
		if err := ensureProgressionTx(tx, userID); err != nil {
			return nil, err
		}
		return nil, tx.Model(&models.UserProgression{}).
			Where("user_id = ?", userID).
			Update("custom_title", e.Code).Error

	case EffectPrestige:
		return nil, tx.Model(&models.UserProgression{}).
			Where("user_id = ?", userID).
			Update("prestige_level", gorm.Expr("prestige_level + ?", e.Amount)).Error
	}
	return nil, invalidf("unknown effect kind %q", e.Kind)
}

// levelUpTx moves the stored level forward to match the stored points and
// returns the rewards earned on the way. It never moves a level backwards.
func (g *GrantExecutor) levelUpTx(tx *gorm.DB, userID string) ([]RewardEffect, error) {
	var prog models.UserProgression
	if err := tx.Where("user_id = ?", userID).First(&prog).Error; err != nil {
		return nil, err
	}

	info, err := g.Calc.LevelForPoints(prog.Points)
	if err != nil {
		return nil, err
	}
	stored := g.Calc.rawLevel(prog.PrestigeLevel, prog.Level)
	if info.RawLevel <= stored {
		return nil, nil
	}

	now := g.now()
	err = tx.Model(&models.UserProgression{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"level": info.Level, "last_level_up_at": now}).Error
	if err != nil {
		return nil, err
	}

	event := models.LevelUpEvent{
		UserID:       userID,
		FromLevel:    prog.Level,
		ToLevel:      info.Level,
		FromPrestige: prog.PrestigeLevel,
		ToPrestige:   info.PrestigeLevel,
		Points:       prog.Points,
	}
	if err := tx.Create(&event).Error; err != nil {
		return nil, err
	}
	log.Printf("⬆️ [LEVEL] %s: level %d → %d (prestige %d → %d, %d points)",
		userID, prog.Level, info.Level, prog.PrestigeLevel, info.PrestigeLevel, prog.Points)

	var follow []RewardEffect
	if delta := info.PrestigeLevel - prog.PrestigeLevel; delta > 0 {
		follow = append(follow, prestige(delta).From(SourceLevel))
	}
	return append(follow, g.Calc.rewardsFor(stored, info.RawLevel)...), nil
}
