package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"sort"
	"time"

	"forum-progression/config"
	"forum-progression/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MilestoneAwarded describes one threshold newly crossed by a check.
type MilestoneAwarded struct {
	MetricType  string    `json:"metric_type"`
	Threshold   int64     `json:"threshold"`
	Points      int64     `json:"points"`
	Badge       string    `json:"badge,omitempty"`
	Achievement string    `json:"achievement,omitempty"`
	AchievedAt  time.Time `json:"achieved_at"`
}

type MilestoneProgress struct {
	UserID        string  `json:"user_id"`
	MetricType    string  `json:"metric_type"`
	Label         string  `json:"label"`
	CurrentValue  int64   `json:"current_value"`
	Achieved      []int64 `json:"achieved"`
	NextThreshold int64   `json:"next_threshold,omitempty"`
	Remaining     int64   `json:"remaining"`
	Percent       float64 `json:"percent"`
	NextPoints    int64   `json:"next_points,omitempty"`
	Completed     bool    `json:"completed"`
}

// milestonePayload is stored on reconciliation tasks for a failed check.
type milestonePayload struct {
	MetricType   string `json:"metric_type"`
	CurrentValue int64  `json:"current_value"`
}

const reconcileSourceMilestone = "milestone"

type MilestoneService struct {
	DB     *gorm.DB
	Grants *GrantExecutor
	cfg    *config.Progression
}

func NewMilestoneService(db *gorm.DB, cfg *config.Progression, grants *GrantExecutor) *MilestoneService {
	return &MilestoneService{DB: db, Grants: grants, cfg: cfg}
}

func (s *MilestoneService) metricType(key string) (config.MilestoneType, string, error) {
	mt, name, ok := s.cfg.Milestone(key)
	if !ok {
		return config.MilestoneType{}, "", invalidf("unsupported metric type %q", key)
	}
	return mt, name, nil
}

// CheckMilestones awards every configured threshold of metricType that
// currentValue has reached and the user does not hold yet. Each threshold
// commits on its own, lowest first. If one fails, the thresholds already
// committed are returned together with a *PartialGrantFailure and the
// remainder is queued for the reconciler. When nothing was committed the
// plain ErrTransactionFailure is returned instead, though the retry is still
// queued.
func (s *MilestoneService) CheckMilestones(ctx context.Context, userID, metricType string, currentValue int64) ([]MilestoneAwarded, error) {
	awarded, err := s.check(ctx, userID, metricType, currentValue)
	var partial *PartialGrantFailure
	if !errors.As(err, &partial) {
		return awarded, err
	}
	if qerr := s.enqueue(ctx, userID, partial.MetricType, currentValue, partial.Err); qerr != nil {
		log.Printf("❌ [MILESTONE] Could not queue reconciliation for %s/%s: %v", userID, partial.MetricType, qerr)
		partial.Err = errors.Join(partial.Err, qerr)
	}
	if len(partial.Awarded) == 0 {
		return nil, partial.Err
	}
	return awarded, err
}

func (s *MilestoneService) check(ctx context.Context, userID, metricType string, currentValue int64) ([]MilestoneAwarded, error) {
	if userID == "" {
		return nil, invalidf("empty user id")
	}
	if currentValue < 0 {
		return nil, invalidf("negative %s value %d", metricType, currentValue)
	}
	mt, key, err := s.metricType(metricType)
	if err != nil {
		return nil, err
	}

	held, err := s.achieved(ctx, userID, key)
	if err != nil {
		return nil, txFailure("load milestones", err)
	}

	var awarded []MilestoneAwarded
	for _, t := range mt.Thresholds {
		if t > currentValue {
			break
		}
		if _, ok := slices.BinarySearch(held, t); ok {
			continue
		}

		got, ok, err := s.awardThreshold(ctx, userID, key, mt, t)
		if err != nil {
			log.Printf("❌ [MILESTONE] %s %s@%d failed: %v", userID, key, t, err)
			done := make([]int64, len(awarded))
			for i, a := range awarded {
				done[i] = a.Threshold
			}
			return awarded, &PartialGrantFailure{
				MetricType: key,
				Awarded:    done,
				Failed:     t,
				Err:        txFailure("award milestone", err),
			}
		}
		if ok {
			awarded = append(awarded, got)
		}
	}
	return awarded, nil
}

func (s *MilestoneService) achieved(ctx context.Context, userID, key string) ([]int64, error) {
	var held []int64
	err := s.DB.WithContext(ctx).
		Model(&models.MilestoneRecord{}).
		Where("user_id = ? AND metric_type = ?", userID, key).
		Order("threshold").
		Pluck("threshold", &held).Error
	return held, err
}

// awardThreshold inserts the record and applies its rewards in one
// transaction. ok is false when a concurrent call already holds the record.
func (s *MilestoneService) awardThreshold(ctx context.Context, userID, key string, mt config.MilestoneType, threshold int64) (MilestoneAwarded, bool, error) {
	out := MilestoneAwarded{MetricType: key, Threshold: threshold, Points: threshold * mt.Multiplier}
	if r, ok := s.cfg.MilestoneReward(key, threshold); ok {
		out.Badge = r.Badge
		out.Achievement = r.Achievement
	}

	inserted := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := models.MilestoneRecord{
			UserID:        userID,
			MetricType:    key,
			Threshold:     threshold,
			PointsAwarded: out.Points,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		inserted = true
		out.AchievedAt = rec.AchievedAt

		effects := []RewardEffect{Points(out.Points).From(SourceMilestone)}
		if out.Badge != "" {
			effects = append(effects, Badge(out.Badge).From(SourceMilestone))
		}
		if out.Achievement != "" {
			effects = append(effects, Achievement(out.Achievement).From(SourceMilestone))
		}
		return s.Grants.ApplyTx(tx, userID, effects)
	})
	if err != nil {
		return MilestoneAwarded{}, false, err
	}
	if inserted {
		log.Printf("🎯 [MILESTONE] %s reached %s %d (+%d points)", userID, key, threshold, out.Points)
	}
	return out, inserted, nil
}

// enqueue records a reconciliation task. It runs even when ctx was
// cancelled, since the failure it records may be the cancellation itself.
func (s *MilestoneService) enqueue(ctx context.Context, userID, key string, currentValue int64, cause error) error {
	payload, err := json.Marshal(milestonePayload{MetricType: key, CurrentValue: currentValue})
	if err != nil {
		return err
	}
	task := models.ReconciliationTask{
		UserID:    userID,
		Source:    reconcileSourceMilestone,
		Reference: fmt.Sprintf("%s:%d", key, currentValue),
		Payload:   datatypes.JSON(payload),
		LastError: cause.Error(),
	}
	if err := s.DB.WithContext(context.WithoutCancel(ctx)).Create(&task).Error; err != nil {
		return err
	}
	log.Printf("📝 [MILESTONE] Queued reconciliation %s for %s (%s)", task.ID, userID, task.Reference)
	return nil
}

// GetUserMilestones lists achieved milestones; an empty metricType lists all.
func (s *MilestoneService) GetUserMilestones(ctx context.Context, userID, metricType string) ([]models.MilestoneRecord, error) {
	q := s.DB.WithContext(ctx).Where("user_id = ?", userID)
	if metricType != "" {
		_, key, err := s.metricType(metricType)
		if err != nil {
			return nil, err
		}
		q = q.Where("metric_type = ?", key)
	}

	var records []models.MilestoneRecord
	if err := q.Order("metric_type, threshold").Find(&records).Error; err != nil {
		return nil, txFailure("load milestones", err)
	}
	return records, nil
}

// GetMilestoneProgress reports achieved thresholds and the distance from
// currentValue to the next one.
func (s *MilestoneService) GetMilestoneProgress(ctx context.Context, userID, metricType string, currentValue int64) (*MilestoneProgress, error) {
	if currentValue < 0 {
		return nil, invalidf("negative %s value %d", metricType, currentValue)
	}
	mt, key, err := s.metricType(metricType)
	if err != nil {
		return nil, err
	}
	held, err := s.achieved(ctx, userID, key)
	if err != nil {
		return nil, txFailure("load milestones", err)
	}

	out := &MilestoneProgress{
		UserID:       userID,
		MetricType:   key,
		Label:        config.Label(key),
		CurrentValue: currentValue,
		Achieved:     held,
	}
	if out.Achieved == nil {
		out.Achieved = []int64{}
	}

	i := sort.Search(len(mt.Thresholds), func(i int) bool { return mt.Thresholds[i] > currentValue })
	if i >= len(mt.Thresholds) {
		out.Completed = true
		out.Percent = 100
		return out, nil
	}

	var prev int64
	if i > 0 {
		prev = mt.Thresholds[i-1]
	}
	next := mt.Thresholds[i]
	out.NextThreshold = next
	out.NextPoints = next * mt.Multiplier
	out.Remaining = next - currentValue
	out.Percent = float64(currentValue-prev) * 100 / float64(next-prev)
	return out, nil
}
