// Package scheduler runs the periodic catalog-maintenance jobs (GP
// refresh, SATCAT sync, decay/TIP checks, backfill ticks) on their own
// intervals, guarding each job against overlapping runs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// tickInterval is how often the scheduler checks whether any job is due.
// Individual job intervals are independent of and coarser than this.
const tickInterval = time.Minute

// JobFunc is one unit of scheduled work. It receives a per-run correlation
// ID for log tracing across the job's own internal log lines.
type JobFunc func(ctx context.Context, runID string) error

// job tracks one scheduled unit of work and its single-flight guard.
type job struct {
	name     string
	interval time.Duration
	fn       JobFunc

	mu      sync.Mutex
	running bool
	lastRun time.Time
}

// Scheduler runs registered jobs on their configured intervals.
type Scheduler struct {
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	jobs []*job
}

// New creates an empty Scheduler. Jobs are added with AddJob before Run.
func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		logger: logger,
		now:    time.Now,
	}
}

// AddJob registers a job to run every interval, starting immediately
// eligible on the first tick.
func (s *Scheduler) AddJob(name string, interval time.Duration, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &job{name: name, interval: interval, fn: fn})
}

// Run blocks, checking every tickInterval for due jobs, until ctx is
// cancelled. Each due job runs in its own goroutine so a slow job never
// delays others.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", "tick_interval", tickInterval, "job_count", len(s.jobs))
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runDueJobs(ctx)
		}
	}
}

func (s *Scheduler) runDueJobs(ctx context.Context) {
	now := s.now()
	s.mu.Lock()
	jobs := append([]*job(nil), s.jobs...)
	s.mu.Unlock()

	for _, j := range jobs {
		if j.dueAt(now) {
			go s.execute(ctx, j)
		}
	}
}

func (j *job) dueAt(now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return false
	}
	return j.lastRun.IsZero() || now.Sub(j.lastRun) >= j.interval
}

// Trigger runs name immediately, outside its normal schedule. If the job
// is already running, the trigger is dropped rather than queued — the
// in-flight run already reflects the latest intent to run it ("replace
// existing" semantics, not "run twice").
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	var target *job
	for _, j := range s.jobs {
		if j.name == name {
			target = j
			break
		}
	}
	s.mu.Unlock()

	if target == nil {
		return fmt.Errorf("scheduler: no such job %q", name)
	}

	target.mu.Lock()
	if target.running {
		target.mu.Unlock()
		s.logger.Info("manual trigger dropped, job already running", "job", name)
		return nil
	}
	target.mu.Unlock()

	s.execute(ctx, target)
	return nil
}

func (s *Scheduler) execute(ctx context.Context, j *job) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.mu.Unlock()

	runID := uuid.NewString()
	start := s.now()
	s.logger.Info("job started", "job", j.name, "run_id", runID)

	err := j.fn(ctx, runID)

	j.mu.Lock()
	j.running = false
	j.lastRun = s.now()
	j.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed", "job", j.name, "run_id", runID, "duration", s.now().Sub(start), "error", err)
		return
	}
	s.logger.Info("job completed", "job", j.name, "run_id", runID, "duration", s.now().Sub(start))
}
