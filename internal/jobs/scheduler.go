package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/timmy/sourcedesk/internal/domain"
	"github.com/timmy/sourcedesk/internal/logger"
	"golang.org/x/time/rate"
)

// Tracker is the entity-side view the scheduler polls through.
type Tracker interface {
	// State returns the persisted status and processing start without
	// contacting the engine.
	State(ctx context.Context, id string) (domain.JobState, error)
	// Refresh reconciles the entity against the engine and persists the result.
	Refresh(ctx context.Context, id string) (domain.ProcessingStatus, error)
	// Fail forces the entity into the failed state.
	Fail(ctx context.Context, id string, cause error) error
}

// Lister returns the ids of entities that are processing and have a session id.
type Lister interface {
	ListPollable(ctx context.Context) ([]string, error)
}

// SchedulerConfig holds configuration for a Scheduler.
type SchedulerConfig struct {
	Name          string
	Interval      time.Duration
	Timeout       time.Duration // measured from the persisted processing start; 0 disables
	MaxConcurrent int           // 0 means unlimited
	RatePerSecond float64       // 0 means unlimited
}

// Scheduler runs one polling goroutine per entity id.
type Scheduler struct {
	tracker  Tracker
	name     string
	interval time.Duration
	timeout  time.Duration
	sem      chan struct{}
	limiter  *rate.Limiter

	// OnTerminal is called after polling for id has stopped on a terminal status.
	OnTerminal func(id string, status domain.ProcessingStatus)
	// OnError is called after polling for id has stopped on a failed check.
	OnError func(id string, err error)

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	handles map[string]*handle
	wg      sync.WaitGroup
}

type handle struct {
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler polling through tracker.
func NewScheduler(tracker Tracker, cfg SchedulerConfig) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 3 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctx = logger.SetComponent(ctx, "scheduler."+cfg.Name)

	s := &Scheduler{
		tracker:  tracker,
		name:     cfg.Name,
		interval: interval,
		timeout:  cfg.Timeout,
		ctx:      ctx,
		cancel:   cancel,
		handles:  make(map[string]*handle),
	}
	if cfg.MaxConcurrent > 0 {
		s.sem = make(chan struct{}, cfg.MaxConcurrent)
	}
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return s
}

// Start begins polling id. It returns false if id is already being polled or
// the scheduler has been shut down.
func (s *Scheduler) Start(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return false
	}
	if _, ok := s.handles[id]; ok {
		return false
	}

	ctx, cancel := context.WithCancel(s.ctx)
	h := &handle{cancel: cancel}
	s.handles[id] = h

	s.wg.Add(1)
	go s.run(ctx, id, h)
	return true
}

// Stop cancels polling for id. Stopping an id that is not polled is a no-op.
func (s *Scheduler) Stop(id string) {
	s.mu.Lock()
	h, ok := s.handles[id]
	if ok {
		delete(s.handles, id)
	}
	s.mu.Unlock()

	if ok {
		h.cancel()
	}
}

// StopAll cancels every poll and waits for the goroutines to exit.
// The scheduler accepts no new ids afterwards.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	s.cancel()
	s.handles = make(map[string]*handle)
	s.mu.Unlock()

	s.wg.Wait()
}

// Active reports whether id is being polled.
func (s *Scheduler) Active(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.handles[id]
	return ok
}

// Len returns the number of ids being polled.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Resume starts polling for every pollable entity lister returns.
// Ids already being polled are left alone. It returns how many polls started.
func (s *Scheduler) Resume(ctx context.Context, lister Lister) (int, error) {
	ids, err := lister.ListPollable(ctx)
	if err != nil {
		return 0, err
	}

	started := 0
	for _, id := range ids {
		if s.Start(id) {
			started++
		}
	}

	entry := logger.With(logger.Fields{
		logger.FieldCount: started,
		"pending":         len(ids),
	})
	if started > 0 {
		entry.Info(ctx, "Resumed polling for %s", s.name)
	} else {
		entry.Debug(ctx, "Nothing to resume for %s", s.name)
	}
	return started, nil
}

// release drops h from the handle map, unless id has since been restarted.
func (s *Scheduler) release(id string, h *handle) {
	s.mu.Lock()
	if cur, ok := s.handles[id]; ok && cur == h {
		delete(s.handles, id)
	}
	s.mu.Unlock()
	h.cancel()
}

func (s *Scheduler) run(ctx context.Context, id string, h *handle) {
	defer s.wg.Done()
	defer s.release(id, h)

	ctx = logger.WithField(ctx, logger.FieldEntityID, id)
	polling := time.Now()

	// A single goroutine per id means ticks cannot overlap; the ticker drops
	// ticks that fire while a refresh is still running.
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if s.tick(ctx, id, h, polling) {
			return
		}
	}
}

// tick runs one poll and reports whether polling for id is over. The poll
// bound counts from the persisted processing start so restarts do not reset
// it; polling is used only when no start was recorded.
func (s *Scheduler) tick(ctx context.Context, id string, h *handle, polling time.Time) bool {
	state, err := s.tracker.State(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		if errors.Is(err, domain.ErrNotFound) {
			logger.CtxDebug(ctx, "Entity gone, polling stopped")
			return true
		}
		s.fail(ctx, id, h, err)
		return true
	}

	if state.Status.IsTerminal() {
		s.release(id, h)
		return true
	}

	started := state.StartedAt
	if started.IsZero() {
		started = polling
	}

	if s.timeout > 0 && time.Since(started) >= s.timeout {
		s.release(id, h)
		if err := s.tracker.Fail(s.ctx, id, ErrPollTimeout); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to record poll timeout")
			s.report(id, err)
			return true
		}
		logger.With(logger.Fields{
			logger.FieldDurationMs: time.Since(started).Milliseconds(),
		}).Warn(ctx, "Polling timed out")
		s.terminal(id, domain.ProcessingStatusFailed)
		return true
	}

	if !s.acquire(ctx) {
		return true
	}
	next, err := s.tracker.Refresh(ctx, id)
	s.releaseSlot()

	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		s.fail(ctx, id, h, err)
		return true
	}

	if next.IsTerminal() {
		s.release(id, h)
		logger.With(logger.Fields{
			logger.FieldDurationMs: time.Since(started).Milliseconds(),
		}).WithStatus(string(next)).Info(ctx, "Polling finished")
		s.terminal(id, next)
		return true
	}
	return false
}

// acquire waits for a concurrency slot and the rate limiter.
func (s *Scheduler) acquire(ctx context.Context) bool {
	if s.sem != nil {
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return false
		}
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			s.releaseSlot()
			return false
		}
	}
	return true
}

func (s *Scheduler) releaseSlot() {
	if s.sem != nil {
		<-s.sem
	}
}

func (s *Scheduler) fail(ctx context.Context, id string, h *handle, err error) {
	s.release(id, h)
	logger.FromContext(ctx).WithError(err).Warn("Status check failed, polling stopped")
	s.report(id, err)
}

func (s *Scheduler) report(id string, err error) {
	if s.OnError != nil {
		s.OnError(id, err)
	}
}

func (s *Scheduler) terminal(id string, status domain.ProcessingStatus) {
	if s.OnTerminal != nil {
		s.OnTerminal(id, status)
	}
}
