// workers/reconciler.go
package workers

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"forum-progression/services"

	"github.com/go-co-op/gocron/v2"
)

// Reconciler periodically retries grants that failed after part of them
// had already committed.
type Reconciler struct {
	svc       *services.ReconcileService
	interval  time.Duration
	batchSize int
	sched     gocron.Scheduler
	stopOnce  sync.Once
}

func NewReconciler(svc *services.ReconcileService, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reconciler{svc: svc, interval: interval, batchSize: 100}
}

// RunOnce performs a single pass over pending tasks.
func (r *Reconciler) RunOnce(ctx context.Context) (services.ReconcileStats, error) {
	stats, err := r.svc.RunPending(ctx, r.batchSize)
	if err != nil {
		log.Printf("[Reconciler] pass failed: %v", err)
		return stats, err
	}
	if stats != (services.ReconcileStats{}) {
		log.Printf("🔁 [Reconciler] resolved=%d retrying=%d failed=%d", stats.Resolved, stats.Retrying, stats.Failed)
	}
	return stats, nil
}

// Start runs an initial pass and then schedules one every interval until ctx
// is done. A pass that is still running when the next one is due delays it.
func (r *Reconciler) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func() {
			_, _ = r.RunOnce(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("schedule reconciliation: %w", err)
	}

	r.sched = sched
	sched.Start()
	log.Printf("🔁 Starting reconciler (every %s)…", r.interval)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Stop shuts the scheduler down and waits for a running pass to finish.
func (r *Reconciler) Stop() {
	if r.sched == nil {
		return
	}
	r.stopOnce.Do(func() {
		if err := r.sched.Shutdown(); err != nil {
			log.Printf("[Reconciler] shutdown: %v", err)
			return
		}
		log.Println("Reconciler stopped.")
	})
}
