package creditguard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/internal/repo"
	"github.com/angelmondragon/vendorledger/internal/vendors"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/metrics"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
	"github.com/angelmondragon/vendorledger/pkg/outbox/payloads"
)

const maxReasonLen = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the administrator overrides on a vendor's block state and limit.
type Service interface {
	BlockVendor(ctx context.Context, input BlockInput) (*models.Vendor, error)
	UnblockVendor(ctx context.Context, vendorID uuid.UUID, actor outbox.ActorRef) (*models.Vendor, error)
	UpdateCashLimit(ctx context.Context, input UpdateCashLimitInput) (*models.Vendor, error)
}

// BlockInput carries a manual block request.
type BlockInput struct {
	VendorID uuid.UUID
	Reason   string
	Actor    outbox.ActorRef
}

// UpdateCashLimitInput carries a new cash limit in minor units.
type UpdateCashLimitInput struct {
	VendorID       uuid.UUID
	CashLimitCents int64
	Actor          outbox.ActorRef
}

type service struct {
	vendors vendors.Repository
	tx      txRunner
	outbox  outbox.Emitter
	guard   *Guard
	metrics *metrics.LedgerMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires the credit guard service.
func NewService(vendorRepo vendors.Repository, tx txRunner, emitter outbox.Emitter, m *metrics.LedgerMetrics, logg *logger.Logger) (Service, error) {
	if vendorRepo == nil {
		return nil, fmt.Errorf("vendors repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		vendors: vendorRepo,
		tx:      tx,
		outbox:  emitter,
		guard:   NewGuard(emitter),
		metrics: m,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func (s *service) BlockVendor(ctx context.Context, input BlockInput) (*models.Vendor, error) {
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "block reason required")
	}
	if len(reason) > maxReasonLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "block reason too long")
	}

	var result *models.Vendor
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repoTx := s.vendors.WithTx(tx)
		vendor, err := repoTx.GetForUpdate(ctx, input.VendorID)
		if err != nil {
			return repo.Classify(err, "vendor not found", "load vendor")
		}
		result = vendor
		if vendor.IsBlocked {
			return nil
		}

		now := s.now().UTC()
		vendor.IsBlocked = true
		vendor.BlockReason = &reason
		vendor.BlockedAt = &now
		if err := repoTx.Save(ctx, vendor); err != nil {
			return repo.Classify(err, "vendor not found", "block vendor")
		}
		return s.emitBlockChange(ctx, tx, vendor, true, reason, input.Actor)
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithVendorID(ctx, input.VendorID.String()), "vendor blocked manually")
	return result, nil
}

func (s *service) UnblockVendor(ctx context.Context, vendorID uuid.UUID, actor outbox.ActorRef) (*models.Vendor, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}

	var result *models.Vendor
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repoTx := s.vendors.WithTx(tx)
		vendor, err := repoTx.GetForUpdate(ctx, vendorID)
		if err != nil {
			return repo.Classify(err, "vendor not found", "load vendor")
		}
		result = vendor
		if !vendor.IsBlocked {
			return nil
		}

		vendor.IsBlocked = false
		vendor.BlockReason = nil
		vendor.BlockedAt = nil
		if err := repoTx.Save(ctx, vendor); err != nil {
			return repo.Classify(err, "vendor not found", "unblock vendor")
		}
		return s.emitBlockChange(ctx, tx, vendor, false, "", actor)
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithVendorID(ctx, vendorID.String()), "vendor unblocked")
	return result, nil
}

func (s *service) UpdateCashLimit(ctx context.Context, input UpdateCashLimitInput) (*models.Vendor, error) {
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if input.CashLimitCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cash limit must not be negative")
	}

	var (
		result  *models.Vendor
		tripped bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repoTx := s.vendors.WithTx(tx)
		vendor, err := repoTx.GetForUpdate(ctx, input.VendorID)
		if err != nil {
			return repo.Classify(err, "vendor not found", "load vendor")
		}

		previous := vendor.CashLimitCents
		vendor.CashLimitCents = input.CashLimitCents
		actor := input.Actor
		tripped, err = s.guard.Check(ctx, tx, vendor, &actor)
		if err != nil {
			return err
		}
		if err := repoTx.Save(ctx, vendor); err != nil {
			return repo.Classify(err, "vendor not found", "update cash limit")
		}
		result = vendor
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventVendorCashLimitUpdated,
			AggregateType: enums.AggregateVendor,
			AggregateID:   vendor.ID,
			Actor:         &actor,
			Data: payloads.VendorCashLimitUpdatedEvent{
				VendorID:               vendor.ID,
				PreviousCashLimitCents: previous,
				CashLimitCents:         vendor.CashLimitCents,
				DueBalanceCents:        vendor.DueBalanceCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if tripped {
		s.metrics.IncAutoBlock()
	}
	return result, nil
}

func (s *service) emitBlockChange(ctx context.Context, tx *gorm.DB, vendor *models.Vendor, blocked bool, reason string, actor outbox.ActorRef) error {
	eventType := enums.EventVendorUnblocked
	if blocked {
		eventType = enums.EventVendorBlocked
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateVendor,
		AggregateID:   vendor.ID,
		Actor:         &actor,
		Data: payloads.VendorBlockChangedEvent{
			VendorID:        vendor.ID,
			Blocked:         blocked,
			Reason:          reason,
			DueBalanceCents: vendor.DueBalanceCents,
			CashLimitCents:  vendor.CashLimitCents,
		},
	})
}
