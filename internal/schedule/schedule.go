// Package schedule runs the background jobs: content refresh, player
// session sweeps and lobby display snapshots.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "vhsite/internal/log"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler wraps cron with named jobs. A job never overlaps itself.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration

	mu   sync.RWMutex
	jobs map[string]cron.EntryID
}

// New creates a stopped scheduler. Each run gets a context bounded by
// timeout (zero means no bound) and canceled by Stop.
func New(timeout time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{}),
			cron.SkipIfStillRunning(cronLogger{}),
		)),
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
		jobs:    make(map[string]cron.EntryID),
	}
}

// Add registers job under name on a standard five-field spec or a
// descriptor such as "@every 60s". Re-adding a name replaces the job.
func (s *Scheduler) Add(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.jobs[name]; ok {
		s.cron.Remove(id)
		delete(s.jobs, name)
	}

	id, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("schedule: job %s: bad spec %q: %w", name, spec, err)
	}
	s.jobs[name] = id
	appLog.Info("job scheduled", "job", name, "spec", spec)
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	if err := job(ctx); err != nil {
		appLog.Error("job failed", err, "job", name, "took", time.Since(started).String())
		return
	}
	appLog.Debug("job completed", "job", name, "took", time.Since(started).String())
}

// Trigger runs a job immediately in the calling goroutine.
func (s *Scheduler) Trigger(name string, job Job) {
	s.run(name, job)
}

// NextRun reports when name runs next.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.jobs[name]
	if !ok {
		return time.Time{}, false
	}
	next := s.cron.Entry(id).Next
	return next, !next.IsZero()
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	appLog.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	appLog.Info("scheduler stopped")
}

// cronLogger adapts the app logger to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
