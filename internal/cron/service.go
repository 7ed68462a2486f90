package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/metrics"
)

const (
	defaultInterval   = time.Hour
	defaultJobTimeout = 15 * time.Minute
)

type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// JobResult is the outcome of one job within a cycle.
type JobResult struct {
	Job  string
	Took time.Duration
	Err  error
}

// Cycle summarizes one pass over the registry. Locked is false when another
// replica held the lock and nothing ran.
type Cycle struct {
	Locked  bool
	Results []JobResult
}

func (c Cycle) Failed() int {
	n := 0
	for _, r := range c.Results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// Err joins every job error, or returns nil when all jobs passed.
func (c Cycle) Err() error {
	var errs []error
	for _, r := range c.Results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Job, r.Err))
		}
	}
	return errors.Join(errs...)
}

// Service runs every registered job once per interval while holding the lock.
// A failing job is logged and counted and the remaining jobs still run.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronMetrics
	interval   time.Duration
	jobTimeout time.Duration
	now        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	if params.Registry == nil {
		params.Registry = &Registry{}
	}
	return &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   orDefault(params.Interval, defaultInterval),
		jobTimeout: orDefault(params.JobTimeout, defaultJobTimeout),
		now:        time.Now,
	}, nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// Run executes a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logg.Error(ctx, "cron.cycle_failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs a single cycle under the lock. The returned error covers the
// lock and cancellation only; job failures are reported in the Cycle.
func (s *Service) RunOnce(ctx context.Context) (Cycle, error) {
	var cycle Cycle
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return cycle, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.metrics.IncLockSkip()
		s.logg.Info(ctx, "cron.lock_held_elsewhere")
		return cycle, nil
	}
	cycle.Locked = true
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron.lock_release_failed", err)
		}
	}()

	for i, job := range s.registry.Jobs() {
		if err := ctx.Err(); err != nil {
			return cycle, err
		}
		if i > 0 {
			if err := s.extendLock(ctx); err != nil {
				return cycle, err
			}
		}
		cycle.Results = append(cycle.Results, s.runJob(ctx, job))
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs":        len(cycle.Results),
		"jobs_failed": cycle.Failed(),
	}), "cron.cycle_complete")
	return cycle, nil
}

// extendLock refreshes the lease before the next job. A store error is logged
// and the cycle goes on under the current lease.
func (s *Service) extendLock(ctx context.Context) error {
	held, err := s.lock.Extend(ctx)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cron.lock_extend_failed")
		return nil
	}
	if !held {
		s.logg.Warn(ctx, "cron.lock_lost")
		return ErrLockLost
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) JobResult {
	name := job.Name()
	jobCtx := s.logg.WithField(ctx, "job", name)
	runCtx, cancel := context.WithTimeout(jobCtx, s.jobTimeout)
	defer cancel()

	start := s.now()
	err := job.Run(runCtx)
	finished := s.now()
	result := JobResult{Job: name, Took: finished.Sub(start), Err: err}
	s.metrics.ObserveRun(name, result.Took, err, finished)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", result.Took.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "cron.job_failed", err)
	} else {
		s.logg.Info(jobCtx, "cron.job_completed")
	}
	return result
}
