package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/vendorledger/pkg/logger"
)

const defaultRetentionWindow = 30 * 24 * time.Hour

// Pruner deletes rows that aged out before cutoff and reports how many went.
type Pruner func(ctx context.Context, cutoff time.Time) (int64, error)

type RetentionJobParams struct {
	Name   string
	Logger *logger.Logger
	Window time.Duration
	Prune  Pruner
}

type retentionJob struct {
	name   string
	logg   *logger.Logger
	window time.Duration
	prune  Pruner
	now    func() time.Time
}

// NewRetentionJob runs Prune with a cutoff of now minus Window on every cycle.
// A non-positive Window falls back to thirty days.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	switch {
	case params.Name == "":
		return nil, fmt.Errorf("retention job name required")
	case params.Logger == nil:
		return nil, fmt.Errorf("%s: logger required", params.Name)
	case params.Prune == nil:
		return nil, fmt.Errorf("%s: pruner required", params.Name)
	}
	window := params.Window
	if window <= 0 {
		window = defaultRetentionWindow
	}
	return &retentionJob{
		name:   params.Name,
		logg:   params.Logger,
		window: window,
		prune:  params.Prune,
		now:    time.Now,
	}, nil
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	deleted, err := j.prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"window":       j.window.String(),
		"rows_deleted": deleted,
	}), "retention prune complete")
	return nil
}

type readNotificationPruner interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type publishedOutboxPruner interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type deadLetterPruner interface {
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationCleanup drops notifications vendors read more than window ago.
func NotificationCleanup(logg *logger.Logger, repo readNotificationPruner, window time.Duration) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return NewRetentionJob(RetentionJobParams{Name: "notification-cleanup", Logger: logg, Window: window, Prune: repo.DeleteReadBefore})
}

// OutboxRetention drops delivered outbox rows. Pending rows are never touched.
func OutboxRetention(logg *logger.Logger, repo publishedOutboxPruner, window time.Duration) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	return NewRetentionJob(RetentionJobParams{Name: "outbox-retention", Logger: logg, Window: window, Prune: repo.DeletePublishedBefore})
}

func DeadLetterRetention(logg *logger.Logger, repo deadLetterPruner, window time.Duration) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("dead letter repository required")
	}
	return NewRetentionJob(RetentionJobParams{Name: "outbox-dlq-retention", Logger: logg, Window: window, Prune: repo.DeleteFailedBefore})
}
