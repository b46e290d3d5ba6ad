package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/fusion/backend/pkg/logger"
)

// ErrJobRunning is returned when a job is triggered while its previous execution is in flight
var ErrJobRunning = errors.New("job already running")

// Option configures a Scheduler
type Option func(*Scheduler)

// WithRetry sets how often a failed job is retried and the pause between attempts
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(s *Scheduler) {
		if maxRetries >= 0 {
			s.maxRetries = maxRetries
		}
		if delay >= 0 {
			s.retryDelay = delay
		}
	}
}

// WithLocation evaluates cron expressions in loc instead of the local zone
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.location = loc
	}
}

type entry struct {
	job     Job
	id      cron.EntryID
	history *JobHistory
	running bool
}

// Scheduler runs jobs on cron schedules with retries and keeps their history
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron   *cron.Cron
	logger *logger.Logger

	mu      sync.RWMutex
	entries map[string]*entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	maxRetries int
	retryDelay time.Duration
	location   *time.Location
}

// New creates a new scheduler. Jobs run on ctx, which Stop cancels.
func New(ctx context.Context, log *logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:     log.WithComponent("scheduler"),
		entries:    make(map[string]*entry),
		maxRetries: 3,
		retryDelay: 1 * time.Minute,
		location:   time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron = cron.New(cron.WithSeconds(), cron.WithLocation(s.location))
	return s
}

// AddJob registers a job on its schedule
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	id, err := s.cron.AddFunc(job.Schedule(), func() {
		s.dispatch(name)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.entries[name] = &entry{job: job, id: id, history: &JobHistory{}}

	s.logger.WithFields(map[string]interface{}{
		"job":      name,
		"schedule": job.Schedule(),
	}).Info("Job added to scheduler")

	return nil
}

// RemoveJob unschedules a job and drops its history
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	s.cron.Remove(e.id)
	delete(s.entries, name)
	s.logger.WithField("job", name).Info("Job removed from scheduler")

	return nil
}

// Start starts the cron loop
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop stops the cron loop, cancels running jobs and waits for them
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// RunJob runs a job immediately, outside of its schedule
func (s *Scheduler) RunJob(name string) error {
	e, err := s.claim(name)
	if err != nil {
		return err
	}
	go s.runEntry(e)
	return nil
}

// Wait blocks until in-flight job executions finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// dispatch is the cron trigger
func (s *Scheduler) dispatch(name string) {
	e, err := s.claim(name)
	if err != nil {
		s.logger.WithField("job", name).WithError(err).Warn("Skipping trigger")
		return
	}
	s.runEntry(e)
}

// claim marks a job as running; an execution already in flight is an error
func (s *Scheduler) claim(name string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[name]
	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}
	if e.running {
		return nil, fmt.Errorf("job %s: %w", name, ErrJobRunning)
	}
	e.running = true
	s.wg.Add(1)
	return e, nil
}

func (s *Scheduler) runEntry(e *entry) {
	defer s.wg.Done()
	result := s.execute(e.job)

	s.mu.Lock()
	e.running = false
	e.history.AddResult(result)
	s.mu.Unlock()
}

// execute runs a job with retry logic
func (s *Scheduler) execute(job Job) JobResult {
	name := job.Name()
	start := time.Now()
	log := s.logger.WithField("job", name)
	log.Info("Job started")

	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		attempts++
		lastErr = runOnce(s.ctx, job)
		if lastErr == nil {
			break
		}

		log.WithFields(map[string]interface{}{
			"attempt": attempts,
			"error":   lastErr.Error(),
		}).Warn("Job execution failed")

		if attempt == s.maxRetries {
			break
		}
		select {
		case <-s.ctx.Done():
			lastErr = fmt.Errorf("%s: %w", lastErr, s.ctx.Err())
			attempt = s.maxRetries
		case <-time.After(s.retryDelay):
		}
	}

	end := time.Now()
	result := JobResult{
		JobName:   name,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
		Attempts:  attempts,
		Success:   lastErr == nil,
	}

	if lastErr != nil {
		result.Error = lastErr.Error()
		log.WithFields(map[string]interface{}{
			"duration": result.Duration,
			"error":    result.Error,
		}).Error("Job failed after all retries")
	} else {
		log.WithField("duration", result.Duration).Info("Job completed successfully")
	}

	return result
}

// runOnce converts a job panic into an error
func runOnce(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.Run(ctx)
}

// History returns a copy of the latest n results of a job
func (s *Scheduler) History(name string, n int) ([]JobResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[name]
	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}
	return e.history.Latest(n), nil
}

// Jobs returns registered job names in sorted order
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns statistics for all jobs
func (s *Scheduler) Stats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats, len(s.entries))
	for name, e := range s.entries {
		st := JobStats{
			JobName:      name,
			Schedule:     e.job.Schedule(),
			Running:      e.running,
			TotalRuns:    len(e.history.Results),
			FailureCount: e.history.FailureCount(),
			SuccessRate:  e.history.SuccessRate(),
		}
		st.SuccessCount = st.TotalRuns - st.FailureCount

		if last := e.history.Latest(1); len(last) == 1 {
			t := last[0].StartTime
			st.LastRun = &t
			st.LastSuccess = last[0].Success
		}
		if next := s.cron.Entry(e.id).Next; !next.IsZero() {
			st.NextRun = &next
		}
		stats[name] = st
	}

	return stats
}

// JobStats represents statistics for a job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	Running      bool       `json:"running"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  bool       `json:"last_success"`
	NextRun      *time.Time `json:"next_run,omitempty"`
}
