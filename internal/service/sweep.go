package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/timmy/sourcedesk/internal/logger"
)

// Resumer restarts polling for everything still processing.
type Resumer interface {
	ResumePolling(ctx context.Context) (int, error)
}

// Sweeper periodically resumes polling so entities whose polling stopped on a
// failed status check are picked up again.
type Sweeper struct {
	cron     *cron.Cron
	resumers []Resumer
}

// NewSweeper schedules a resume pass on schedule (cron syntax or "@every 1m").
func NewSweeper(schedule string, resumers ...Resumer) (*Sweeper, error) {
	s := &Sweeper{
		cron:     cron.New(),
		resumers: resumers,
	}
	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the schedule in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs one resume pass over every resumer.
func (s *Sweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ctx = logger.SetComponent(ctx, "sweeper")

	for _, r := range s.resumers {
		if _, err := r.ResumePolling(ctx); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Resume sweep failed")
		}
	}
}
