package cashevents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/internal/balances"
	"github.com/angelmondragon/vendorledger/internal/creditguard"
	"github.com/angelmondragon/vendorledger/internal/repo"
	"github.com/angelmondragon/vendorledger/internal/vendors"
	dbpkg "github.com/angelmondragon/vendorledger/pkg/db"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/metrics"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
	"github.com/angelmondragon/vendorledger/pkg/outbox/payloads"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
)

const (
	bookingTypeConstraint = "cash_events_booking_type_key"
	maxNoteLen            = 1000
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service records cash events and keeps the vendor aggregate in step with them.
type Service interface {
	Record(ctx context.Context, input RecordInput) (*RecordResult, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID, filter ListFilter, params pagination.Params) (pagination.Page[models.CashEvent], error)
}

// RecordInput captures the immutable data a cash event requires.
type RecordInput struct {
	VendorID    uuid.UUID
	BookingID   *uuid.UUID
	Type        enums.CashEventType
	AmountCents int64
	Note        *string
	Actor       outbox.ActorRef
}

// RecordResult is the stored event plus whether it was already on file for the booking.
type RecordResult struct {
	Event     *models.CashEvent
	Duplicate bool
	Blocked   bool
}

type service struct {
	repo    Repository
	vendors vendors.Repository
	tx      txRunner
	outbox  outbox.Emitter
	guard   *creditguard.Guard
	metrics *metrics.LedgerMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires a cash event service with the provided dependencies.
func NewService(repo Repository, vendorRepo vendors.Repository, tx txRunner, emitter outbox.Emitter, m *metrics.LedgerMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cash events repository required")
	}
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
		repo:    repo,
		vendors: vendorRepo,
		tx:      tx,
		outbox:  emitter,
		guard:   creditguard.NewGuard(emitter),
		metrics: m,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func (s *service) Record(ctx context.Context, input RecordInput) (*RecordResult, error) {
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid cash event type %q", input.Type))
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.BookingID != nil && *input.BookingID == uuid.Nil {
		input.BookingID = nil
	}
	note := normalizeNote(input.Note)
	if note != nil && len(*note) > maxNoteLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "note too long")
	}

	result := &RecordResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		vendorRepo := s.vendors.WithTx(tx)
		eventRepo := s.repo.WithTx(tx)

		vendor, err := vendorRepo.GetForUpdate(ctx, input.VendorID)
		if err != nil {
			return repo.Classify(err, "vendor not found", "load vendor")
		}

		if input.BookingID != nil {
			existing, err := eventRepo.FindByBooking(ctx, *input.BookingID, input.Type)
			switch {
			case err == nil:
				if existing.VendorID != input.VendorID {
					return pkgerrors.New(pkgerrors.CodeConflict, "booking already recorded for another vendor").
						WithDetails(map[string]any{"booking_id": input.BookingID.String()})
				}
				result.Event = existing
				result.Duplicate = true
				return nil
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return repo.Classify(err, "cash event not found", "check booking")
			}
		}

		if err := balances.ApplyCashEvent(vendor, input.Type, input.AmountCents); err != nil {
			return err
		}

		event := &models.CashEvent{
			ID:          uuid.New(),
			VendorID:    vendor.ID,
			BookingID:   input.BookingID,
			Type:        input.Type,
			AmountCents: input.AmountCents,
			Note:        note,
			CreatedAt:   s.now().UTC(),
		}
		if err := eventRepo.Create(ctx, event); err != nil {
			if dbpkg.IsUniqueViolation(err, bookingTypeConstraint) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "booking already recorded")
			}
			return repo.Classify(err, "vendor not found", "record cash event")
		}

		actor := input.Actor
		if input.Type.AffectsDue() {
			result.Blocked, err = s.guard.Check(ctx, tx, vendor, &actor)
			if err != nil {
				return err
			}
		}
		if err := vendorRepo.Save(ctx, vendor); err != nil {
			return repo.Classify(err, "vendor not found", "update vendor balance")
		}

		result.Event = event
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCashEventRecorded,
			AggregateType: enums.AggregateCashEvent,
			AggregateID:   event.ID,
			Actor:         &actor,
			Data: payloads.CashEventRecordedEvent{
				CashEventID:         event.ID,
				VendorID:            vendor.ID,
				BookingID:           event.BookingID,
				Type:                event.Type,
				AmountCents:         event.AmountCents,
				DueBalanceCents:     vendor.DueBalanceCents,
				WalletEarningsCents: vendor.WalletEarningsCents,
				RecordedAt:          event.CreatedAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"vendor_id":     input.VendorID.String(),
		"cash_event_id": result.Event.ID.String(),
		"type":          string(input.Type),
	})
	if result.Duplicate {
		s.logg.Info(logCtx, "cash event already recorded for booking")
		return result, nil
	}
	s.metrics.IncCashEvent(string(input.Type))
	if result.Blocked {
		s.metrics.IncAutoBlock()
		s.logg.Warn(logCtx, "vendor blocked by cash limit")
	}
	return result, nil
}

func (s *service) ListByVendor(ctx context.Context, vendorID uuid.UUID, filter ListFilter, params pagination.Params) (pagination.Page[models.CashEvent], error) {
	if vendorID == uuid.Nil {
		return pagination.Page[models.CashEvent]{}, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if filter.Type != nil && !filter.Type.IsValid() {
		return pagination.Page[models.CashEvent]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid cash event type")
	}
	rows, err := s.repo.ListByVendor(ctx, vendorID, filter, params)
	if err != nil {
		return pagination.Page[models.CashEvent]{}, repo.Classify(err, "vendor not found", "list cash events")
	}
	return pagination.BuildPage(rows, params.Limit, func(e models.CashEvent) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	}), nil
}

func normalizeNote(note *string) *string {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
