package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/vendorledger/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type runner interface {
	Run(ctx context.Context) error
}

// Dependency is checked once before any consumer starts.
type Dependency struct {
	Name  string
	Check pinger
}

// Consumer is a long running subscription loop.
type Consumer struct {
	Name   string
	Runner runner
}

type ServiceParams struct {
	Logger            *logger.Logger
	Dependencies      []Dependency
	Consumers         []Consumer
	HeartbeatInterval time.Duration
}

// Service runs every consumer side by side. The first one to stop, for any
// reason, stops the rest.
type Service struct {
	logg      *logger.Logger
	deps      []Dependency
	consumers []Consumer
	heartbeat time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	for _, d := range params.Dependencies {
		if d.Check == nil {
			return nil, fmt.Errorf("dependency %q has no client", d.Name)
		}
	}
	for _, c := range params.Consumers {
		if c.Runner == nil {
			return nil, fmt.Errorf("consumer %q is nil", c.Name)
		}
	}
	heartbeat := params.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = time.Minute
	}
	return &Service{
		logg:      params.Logger,
		deps:      params.Dependencies,
		consumers: params.Consumers,
		heartbeat: heartbeat,
	}, nil
}

// ready pings every dependency and reports all failures together.
func (s *Service) ready(ctx context.Context) error {
	var errs error
	for _, d := range s.deps {
		if err := d.Check.Ping(ctx); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "dependency", d.Name), "worker.dependency_down", err)
			errs = multierr.Append(errs, fmt.Errorf("%s ping failed: %w", d.Name, err))
		}
	}
	return errs
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "consumers", len(s.consumers)), "worker.ready")

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range s.consumers {
		g.Go(func() error {
			err := c.Runner.Run(gctx)
			if err == nil && gctx.Err() == nil {
				err = fmt.Errorf("%s consumer exited", c.Name)
			}
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				s.logg.Error(s.logg.WithField(ctx, "consumer", c.Name), "worker.consumer_stopped", err)
			}
			return err
		})
	}
	g.Go(func() error {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s.logg.Debug(ctx, "worker.heartbeat")
			}
		}
	})

	err := g.Wait()
	if ctx.Err() != nil {
		s.logg.Info(ctx, "worker.stopping")
		return ctx.Err()
	}
	return err
}
