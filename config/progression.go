package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Progression holds the static reward tables of the engine. It is built once
// at process start (Default, Parse, LoadFile or LoadR2) and handed to every
// service; nothing mutates it afterwards.
type Progression struct {
	Version    string                   `yaml:"version"`
	Timezone   string                   `yaml:"timezone"`
	Levels     LevelTable               `yaml:"levels"`
	Streaks    map[string]StreakType    `yaml:"streaks"`
	Milestones map[string]MilestoneType `yaml:"milestones"`
	Daily      DailyRewardTable         `yaml:"daily_rewards"`

	location         *time.Location
	requirements     []int64
	levelTitles      Ladder[LevelTitle]
	dailyTiers       Ladder[DailyTier]
	milestoneRewards map[string]Ladder[MilestoneReward]
}

// LevelTable describes the level cost curve. Reaching level L+1 from L costs
// BasePoints * Multiplier^(L-1).
type LevelTable struct {
	BasePoints        int64        `yaml:"base_points"`
	Multiplier        float64      `yaml:"multiplier"`
	MaxLevel          int          `yaml:"max_level"`
	PrestigeThreshold int          `yaml:"prestige_threshold"` // 0 disables prestige
	PointsPerLevel    int64        `yaml:"points_per_level"`
	BadgeEvery        int          `yaml:"badge_every"`
	AchievementEvery  int          `yaml:"achievement_every"`
	Titles            []LevelTitle `yaml:"titles"`
}

type LevelTitle struct {
	MinLevel int      `yaml:"min_level" json:"min_level"`
	Title    string   `yaml:"title" json:"title"`
	Color    string   `yaml:"color" json:"color"`
	Benefits []string `yaml:"benefits" json:"benefits,omitempty"`
}

type StreakType struct {
	Period        Period         `yaml:"period"`
	Bonuses       []int64        `yaml:"bonuses"`
	AfterSchedule SchedulePolicy `yaml:"after_schedule"`
}

// BonusFor returns the points paid when a streak reaches count.
func (s StreakType) BonusFor(count int64) int64 {
	n := int64(len(s.Bonuses))
	if count <= 0 || n == 0 {
		return 0
	}
	if count <= n {
		return s.Bonuses[count-1]
	}
	switch s.AfterSchedule {
	case ScheduleCycle:
		return s.Bonuses[(count-1)%n]
	case ScheduleRepeatLast:
		return s.Bonuses[n-1]
	default:
		return 0
	}
}

type MilestoneType struct {
	Thresholds []int64           `yaml:"thresholds"`
	Multiplier int64             `yaml:"multiplier"`
	Rewards    []MilestoneReward `yaml:"rewards"`
}

// MilestoneReward is the optional badge/achievement paid at one exact threshold.
type MilestoneReward struct {
	Threshold   int64  `yaml:"threshold"`
	Badge       string `yaml:"badge"`
	Achievement string `yaml:"achievement"`
}

type DailyRewardTable struct {
	StreakType         string      `yaml:"streak_type"`
	Tiers              []DailyTier `yaml:"tiers"`
	WeeklyBadge        string      `yaml:"weekly_badge"`
	MonthlyAchievement string      `yaml:"monthly_achievement"`
	Titles             []DayTitle  `yaml:"titles"`
}

type DailyTier struct {
	Day    int64  `yaml:"day" json:"day"`
	Name   string `yaml:"name" json:"name"`
	Points int64  `yaml:"points" json:"points"`
}

type DayTitle struct {
	Day   int64  `yaml:"day"`
	Title string `yaml:"title"`
}

// BonusKind tags a daily bonus item.
type BonusKind string

const (
	BonusBadge       BonusKind = "badge"
	BonusAchievement BonusKind = "achievement"
	BonusTitle       BonusKind = "title"
)

type Bonus struct {
	Kind BonusKind
	Code string
}

// NormalizeKey canonicalizes a streak or metric type name ("Login" -> "login",
// "Likes Received" -> "likes_received").
func NormalizeKey(key string) string {
	return strings.ReplaceAll(slug.Make(strings.TrimSpace(key)), "-", "_")
}

// Label renders a type key for display ("likes_received" -> "Likes Received").
func Label(key string) string {
	return cases.Title(language.English).String(strings.NewReplacer("_", " ", "-", " ").Replace(key))
}

// Default returns the built-in tables.
func Default() *Progression {
	p := defaultDocument()
	if err := p.compile(); err != nil {
		panic(fmt.Sprintf("config: default progression tables are invalid: %v", err))
	}
	return p
}

// Parse overlays YAML onto the default tables and validates the result.
func Parse(data []byte) (*Progression, error) {
	p := defaultDocument()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parsing progression tables: %w", err)
	}
	if err := p.compile(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadFile reads progression tables from a YAML file.
func LoadFile(path string) (*Progression, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading progression tables: %w", err)
	}
	return Parse(data)
}

// WithTimezone returns a copy of p whose calendar days are computed in tz.
func (p *Progression) WithTimezone(tz string) (*Progression, error) {
	cp := *p
	cp.Timezone = tz
	if err := cp.compile(); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (p *Progression) compile() error {
	var errs []error

	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	p.location = loc

	reqs, err := p.Levels.requirements()
	if err != nil {
		errs = append(errs, err)
	}
	p.requirements = reqs

	titles := make([]Step[LevelTitle], 0, len(p.Levels.Titles))
	for _, t := range p.Levels.Titles {
		titles = append(titles, Step[LevelTitle]{Threshold: int64(t.MinLevel), Value: t})
	}
	p.levelTitles = NewLadder(titles...)

	streaks := make(map[string]StreakType, len(p.Streaks))
	for key, st := range p.Streaks {
		name := NormalizeKey(key)
		if name == "" {
			errs = append(errs, fmt.Errorf("streak type %q: empty key", key))
			continue
		}
		if st.Period == "" {
			st.Period = PeriodDay
		}
		if !st.Period.valid() {
			errs = append(errs, fmt.Errorf("streak type %q: unknown period %q", key, st.Period))
		}
		policy, err := parsePolicy(st.AfterSchedule)
		if err != nil {
			errs = append(errs, fmt.Errorf("streak type %q: %w", key, err))
		}
		st.AfterSchedule = policy
		for _, b := range st.Bonuses {
			if b < 0 {
				errs = append(errs, fmt.Errorf("streak type %q: negative bonus %d", key, b))
			}
		}
		streaks[name] = st
	}
	p.Streaks = streaks

	milestones := make(map[string]MilestoneType, len(p.Milestones))
	p.milestoneRewards = make(map[string]Ladder[MilestoneReward], len(p.Milestones))
	for key, mt := range p.Milestones {
		name := NormalizeKey(key)
		thresholds := slices.Clone(mt.Thresholds)
		slices.Sort(thresholds)
		thresholds = slices.Compact(thresholds)
		if len(thresholds) == 0 || thresholds[0] <= 0 {
			errs = append(errs, fmt.Errorf("milestone type %q: thresholds must be positive and non-empty", key))
		}
		if mt.Multiplier < 0 {
			errs = append(errs, fmt.Errorf("milestone type %q: negative multiplier", key))
		}
		rewards := make([]Step[MilestoneReward], 0, len(mt.Rewards))
		for _, r := range mt.Rewards {
			if _, ok := slices.BinarySearch(thresholds, r.Threshold); !ok {
				errs = append(errs, fmt.Errorf("milestone type %q: reward at %d is not a threshold", key, r.Threshold))
			}
			rewards = append(rewards, Step[MilestoneReward]{Threshold: r.Threshold, Value: r})
		}
		mt.Thresholds = thresholds
		milestones[name] = mt
		p.milestoneRewards[name] = NewLadder(rewards...)
	}
	p.Milestones = milestones

	p.Daily.StreakType = NormalizeKey(p.Daily.StreakType)
	if st, ok := p.Streaks[p.Daily.StreakType]; !ok {
		errs = append(errs, fmt.Errorf("daily_rewards: streak type %q is not configured", p.Daily.StreakType))
	} else if st.Period != PeriodDay {
		errs = append(errs, fmt.Errorf("daily_rewards: streak type %q must count days", p.Daily.StreakType))
	}
	tiers := make([]Step[DailyTier], 0, len(p.Daily.Tiers))
	for _, t := range p.Daily.Tiers {
		if t.Day < 1 || t.Points < 0 {
			errs = append(errs, fmt.Errorf("daily_rewards: invalid tier %+v", t))
		}
		tiers = append(tiers, Step[DailyTier]{Threshold: t.Day, Value: t})
	}
	p.dailyTiers = NewLadder(tiers...)

	return errors.Join(errs...)
}

func (t LevelTable) requirements() ([]int64, error) {
	switch {
	case t.BasePoints <= 0:
		return nil, fmt.Errorf("levels: base_points must be positive")
	case t.Multiplier < 1:
		return nil, fmt.Errorf("levels: multiplier must be >= 1")
	case t.MaxLevel < 1:
		return nil, fmt.Errorf("levels: max_level must be >= 1")
	case t.PrestigeThreshold < 0:
		return nil, fmt.Errorf("levels: prestige_threshold must be >= 0")
	}

	// reqs[L] is the cumulative points needed to stand on level L.
	reqs := make([]int64, t.MaxLevel+1)
	for level := 2; level <= t.MaxLevel; level++ {
		cost := math.Floor(float64(t.BasePoints)*math.Pow(t.Multiplier, float64(level-2)) + 1e-9)
		next := float64(reqs[level-1]) + cost
		if next > math.MaxInt64/2 {
			return nil, fmt.Errorf("levels: cost of level %d overflows", level)
		}
		reqs[level] = int64(next)
	}
	return reqs, nil
}

// LevelRequirements returns the cumulative point requirement per level;
// index 0 is unused and index 1 is always 0.
func (p *Progression) LevelRequirements() []int64 {
	return slices.Clone(p.requirements)
}

// LevelTitle returns the title band covering level.
func (p *Progression) LevelTitle(level int) (LevelTitle, bool) {
	s, ok := p.levelTitles.Floor(int64(level))
	return s.Value, ok
}

// Streak looks up a streak type and returns its canonical key.
func (p *Progression) Streak(key string) (StreakType, string, bool) {
	name := NormalizeKey(key)
	st, ok := p.Streaks[name]
	return st, name, ok
}

// Milestone looks up a milestone metric type and returns its canonical key.
func (p *Progression) Milestone(key string) (MilestoneType, string, bool) {
	name := NormalizeKey(key)
	mt, ok := p.Milestones[name]
	return mt, name, ok
}

// MilestoneReward returns the badge/achievement configured at exactly threshold.
func (p *Progression) MilestoneReward(key string, threshold int64) (MilestoneReward, bool) {
	return p.milestoneRewards[NormalizeKey(key)].Exact(threshold)
}

// DailyTier returns the reward tier defined for exactly streak day day.
func (p *Progression) DailyTier(day int64) (DailyTier, bool) {
	return p.dailyTiers.Exact(day)
}

// NextDailyTier returns the first tier on or after day.
func (p *Progression) NextDailyTier(day int64) (DailyTier, bool) {
	s, ok := p.dailyTiers.Ceil(day)
	return s.Value, ok
}

// DailyBonuses lists the bonus items a claim on streak day day carries,
// independent of the tier table.
func (p *Progression) DailyBonuses(day int64) []Bonus {
	var out []Bonus
	if day <= 0 {
		return out
	}
	if day%7 == 0 && p.Daily.WeeklyBadge != "" {
		out = append(out, Bonus{Kind: BonusBadge, Code: p.Daily.WeeklyBadge})
	}
	if day%30 == 0 && p.Daily.MonthlyAchievement != "" {
		out = append(out, Bonus{Kind: BonusAchievement, Code: p.Daily.MonthlyAchievement})
	}
	for _, t := range p.Daily.Titles {
		if t.Day == day {
			out = append(out, Bonus{Kind: BonusTitle, Code: t.Title})
		}
	}
	return out
}

func (p *Progression) Location() *time.Location { return p.location }

// Today maps an instant to its calendar day in the configured timezone,
// represented as midnight UTC of that date.
func (p *Progression) Today(t time.Time) time.Time {
	y, m, d := t.In(p.location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
