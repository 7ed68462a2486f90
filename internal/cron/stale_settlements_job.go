package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/vendorledger/pkg/logger"
)

const defaultStaleSettlementAge = 72 * time.Hour

type StaleSettlementsJobParams struct {
	Logger      *logger.Logger
	Settlements staleAnnouncer
	OlderThan   time.Duration
}

type staleAnnouncer interface {
	AnnounceStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// NewStaleSettlementsJob flags settlements that have waited on an admin for too long.
func NewStaleSettlementsJob(params StaleSettlementsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Settlements == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	olderThan := params.OlderThan
	if olderThan <= 0 {
		olderThan = defaultStaleSettlementAge
	}
	return &staleSettlementsJob{
		logg:        params.Logger,
		settlements: params.Settlements,
		olderThan:   olderThan,
	}, nil
}

type staleSettlementsJob struct {
	logg        *logger.Logger
	settlements staleAnnouncer
	olderThan   time.Duration
}

func (j *staleSettlementsJob) Name() string { return "stale-settlements" }

func (j *staleSettlementsJob) Run(ctx context.Context) error {
	announced, err := j.settlements.AnnounceStale(ctx, j.olderThan)
	if err != nil {
		return fmt.Errorf("announce stale settlements: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"older_than": j.olderThan.String(),
		"announced":  announced,
	})
	j.logg.Info(logCtx, "stale settlement scan complete")
	return nil
}
