package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timmy/sourcedesk/internal/domain"
	"github.com/timmy/sourcedesk/internal/jobs"
	"github.com/timmy/sourcedesk/internal/logger"
)

// PassStats holds statistics for one reconcile pass
type PassStats struct {
	Checked   int64
	Completed int64
	Failed    int64
	Pending   int64
	Errors    int64
	StartTime time.Time
	EndTime   time.Time
}

// ReconcilePass checks every pollable entity once, without a scheduler.
type ReconcilePass struct {
	tracker jobs.Tracker
	lister  jobs.Lister
	workers int
}

// NewReconcilePass creates a pass over the entities lister returns.
func NewReconcilePass(tracker jobs.Tracker, lister jobs.Lister, workers int) *ReconcilePass {
	if workers <= 0 {
		workers = 4
	}
	return &ReconcilePass{tracker: tracker, lister: lister, workers: workers}
}

// Run refreshes the given ids, or every pollable entity when ids is empty.
func (p *ReconcilePass) Run(ctx context.Context, ids ...string) (*PassStats, error) {
	stats := &PassStats{StartTime: time.Now()}

	if len(ids) == 0 {
		var err error
		ids, err = p.lister.ListPollable(ctx)
		if err != nil {
			return nil, err
		}
	}

	idsChan := make(chan string, p.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, idsChan, stats)
		}()
	}

feed:
	for _, id := range ids {
		select {
		case idsChan <- id:
		case <-ctx.Done():
			break feed
		}
	}
	close(idsChan)
	wg.Wait()

	stats.EndTime = time.Now()

	logger.FromContext(ctx).WithFields(logger.Fields{
		"checked":   stats.Checked,
		"completed": stats.Completed,
		"failed":    stats.Failed,
		"pending":   stats.Pending,
		"errors":    stats.Errors,
		"duration":  stats.EndTime.Sub(stats.StartTime).String(),
	}).Info("Reconcile pass completed")

	return stats, ctx.Err()
}

func (p *ReconcilePass) worker(ctx context.Context, ids <-chan string, stats *PassStats) {
	for id := range ids {
		if ctx.Err() != nil {
			return
		}

		atomic.AddInt64(&stats.Checked, 1)
		status, err := p.tracker.Refresh(ctx, id)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				atomic.AddInt64(&stats.Errors, 1)
				logger.FromContext(ctx).WithField(logger.FieldEntityID, id).WithError(err).Warn("Reconcile failed")
			}
			continue
		}

		switch status {
		case domain.ProcessingStatusCompleted:
			atomic.AddInt64(&stats.Completed, 1)
		case domain.ProcessingStatusFailed:
			atomic.AddInt64(&stats.Failed, 1)
		default:
			atomic.AddInt64(&stats.Pending, 1)
		}
	}
}
