package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"forum-progression/models"

	"gorm.io/gorm"
)

// MaxReconcileAttempts is how often a task is retried before it is marked failed.
const MaxReconcileAttempts = 5

// ReconcileService retries grants that failed after part of them committed.
type ReconcileService struct {
	DB         *gorm.DB
	Milestones *MilestoneService
	now        func() time.Time
}

func NewReconcileService(db *gorm.DB, milestones *MilestoneService) *ReconcileService {
	return &ReconcileService{DB: db, Milestones: milestones, now: time.Now}
}

// ReconcileStats summarizes one reconciliation pass.
type ReconcileStats struct {
	Resolved int `json:"resolved"`
	Retrying int `json:"retrying"`
	Failed   int `json:"failed"`
}

// RunPending retries up to limit pending tasks, oldest first.
func (s *ReconcileService) RunPending(ctx context.Context, limit int) (ReconcileStats, error) {
	var stats ReconcileStats
	if limit <= 0 {
		limit = 100
	}

	var tasks []models.ReconciliationTask
	err := s.DB.WithContext(ctx).
		Where("status = ?", models.ReconciliationPending).
		Order("created_at").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return stats, txFailure("load reconciliation tasks", err)
	}

	for i := range tasks {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		task := &tasks[i]
		runErr := s.retry(ctx, task)
		if err := s.record(ctx, task, runErr); err != nil {
			return stats, txFailure("update reconciliation task", err)
		}
		switch task.Status {
		case models.ReconciliationResolved:
			stats.Resolved++
		case models.ReconciliationFailed:
			stats.Failed++
		default:
			stats.Retrying++
		}
	}
	return stats, nil
}

func (s *ReconcileService) retry(ctx context.Context, task *models.ReconciliationTask) error {
	switch task.Source {
	case reconcileSourceMilestone:
		var p milestonePayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return fmt.Errorf("%w: bad payload: %w", ErrInvalidArgument, err)
		}
		_, err := s.Milestones.check(ctx, task.UserID, p.MetricType, p.CurrentValue)
		return err
	}
	return invalidf("unknown reconciliation source %q", task.Source)
}

func (s *ReconcileService) record(ctx context.Context, task *models.ReconciliationTask, runErr error) error {
	task.Attempts++
	updates := map[string]any{"attempts": task.Attempts}

	switch {
	case runErr == nil:
		now := s.now()
		task.Status = models.ReconciliationResolved
		task.ResolvedAt = &now
		updates["status"] = task.Status
		updates["resolved_at"] = now
		log.Printf("✅ [RECONCILE] Task %s (%s) resolved after %d attempts", task.ID, task.Reference, task.Attempts)

	case errors.Is(runErr, ErrInvalidArgument) || task.Attempts >= MaxReconcileAttempts:
		task.Status = models.ReconciliationFailed
		task.LastError = runErr.Error()
		updates["status"] = task.Status
		updates["last_error"] = task.LastError
		log.Printf("🚨 [RECONCILE] Task %s (%s) abandoned: %v", task.ID, task.Reference, runErr)

	default:
		task.LastError = runErr.Error()
		updates["last_error"] = task.LastError
		log.Printf("⚠️ [RECONCILE] Task %s (%s) attempt %d failed: %v", task.ID, task.Reference, task.Attempts, runErr)
	}

	return s.DB.WithContext(context.WithoutCancel(ctx)).
		Model(&models.ReconciliationTask{}).
		Where("id = ?", task.ID).
		Updates(updates).Error
}
