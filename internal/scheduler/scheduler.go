// Package scheduler runs the periodic background jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"xdownloader/pkg/log"
)

// Job is one scheduled task.
type Job func(ctx context.Context) error

// JobInfo describes a registered job.
type JobInfo struct {
	Name     string
	Schedule string
	NextRun  time.Time
	LastRun  time.Time
}

// Scheduler manages periodic tasks.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  *log.Logger

	mu   sync.Mutex
	jobs map[string]registered
}

type registered struct {
	id       cron.EntryID
	schedule string
}

// New creates a scheduler. Each run is bounded by timeout. Overlapping runs of
// the same job are skipped.
func New(timeout time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger))),
		timeout: timeout,
		logger:  log.Default().Named("scheduler"),
		jobs:    make(map[string]registered),
	}
}

// AddJob registers job under name, replacing any job already registered under
// it. schedule accepts standard cron specs and descriptors such as "@every 5m".
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		s.run(name, job)
	}))

	id, err := s.cron.AddJob(schedule, wrapped)
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}

	s.mu.Lock()
	s.removeLocked(name)
	s.jobs[name] = registered{id: id, schedule: schedule}
	s.mu.Unlock()

	s.logger.Info("job added", "job", name, "schedule", schedule)
	return nil
}

// removeLocked drops the job registered under name. s.mu must be held.
func (s *Scheduler) removeLocked(name string) {
	if r, ok := s.jobs[name]; ok {
		s.cron.Remove(r.id)
		delete(s.jobs, name)
		s.logger.Info("job replaced", "job", name)
	}
}

// RunNow executes job immediately on the calling goroutine.
func (s *Scheduler) RunNow(name string, job Job) error {
	return s.run(name, job)
}

func (s *Scheduler) run(name string, job Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	ctx = log.WithFields(ctx, "job", name)

	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.WarnCtx(ctx, "job failed", "error", err, "duration", time.Since(start).String())
		return err
	}
	s.logger.DebugCtx(ctx, "job completed", "duration", time.Since(start).String())
	return nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler")
	s.cron.Start()
}

// Stop halts the scheduler; the returned context is done when running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("stopping scheduler")
	return s.cron.Stop()
}

// ListJobs returns info about scheduled jobs.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, r := range s.jobs {
		entry := s.cron.Entry(r.id)
		infos = append(infos, JobInfo{
			Name:     name,
			Schedule: r.schedule,
			NextRun:  entry.Next,
			LastRun:  entry.Prev,
		})
	}
	return infos
}
