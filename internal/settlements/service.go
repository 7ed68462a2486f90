package settlements

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
	workflowName       = "settlement"
	settlementNotFound = "settlement not found"
	maxReferenceLen    = 120
	maxReasonLen       = 500
	maxNotesLen        = 1000
	staleBatchSize     = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (bool, error)
}

// Service runs the settlement claim workflow: vendors submit, admins decide once.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*models.Settlement, error)
	Approve(ctx context.Context, input ApproveInput) (*models.Settlement, error)
	Reject(ctx context.Context, input RejectInput) (*models.Settlement, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Settlement, error)
	GetForVendor(ctx context.Context, vendorID, id uuid.UUID) (*models.Settlement, error)
	ListPending(ctx context.Context, params pagination.Params) (pagination.Page[models.Settlement], error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID, status *enums.SettlementStatus, params pagination.Params) (pagination.Page[models.Settlement], error)
	AnnounceStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// SubmitInput is a vendor's claim of having remitted cash.
type SubmitInput struct {
	VendorID         uuid.UUID
	AmountCents      int64
	PaymentMethod    enums.SettlementPaymentMethod
	PaymentReference string
	PaymentProofURL  *string
	VendorNotes      *string
	Actor            outbox.ActorRef
}

// ApproveInput identifies the settlement an admin approves.
type ApproveInput struct {
	SettlementID uuid.UUID
	Actor        outbox.ActorRef
}

// RejectInput carries the mandatory rejection reason.
type RejectInput struct {
	SettlementID uuid.UUID
	Reason       string
	Actor        outbox.ActorRef
}

type service struct {
	repo    Repository
	vendors vendors.Repository
	tx      txRunner
	outbox  outboxPublisher
	guard   *creditguard.Guard
	metrics *metrics.LedgerMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires the settlement workflow.
func NewService(repo Repository, vendorRepo vendors.Repository, tx txRunner, publisher outboxPublisher, m *metrics.LedgerMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settlements repository required")
	}
	if vendorRepo == nil {
		return nil, fmt.Errorf("vendors repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    repo,
		vendors: vendorRepo,
		tx:      tx,
		outbox:  publisher,
		guard:   creditguard.NewGuard(publisher),
		metrics: m,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*models.Settlement, error) {
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.PaymentMethod))
	}
	reference := strings.TrimSpace(input.PaymentReference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	if len(reference) > maxReferenceLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference too long")
	}
	notes := trimOptional(input.VendorNotes)
	if notes != nil && len(*notes) > maxNotesLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor notes too long")
	}

	now := s.now().UTC()
	settlement := &models.Settlement{
		ID:               uuid.New(),
		VendorID:         input.VendorID,
		AmountCents:      input.AmountCents,
		PaymentMethod:    input.PaymentMethod,
		PaymentReference: reference,
		PaymentProofURL:  trimOptional(input.PaymentProofURL),
		VendorNotes:      notes,
		Status:           enums.SettlementPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		vendor, err := s.vendors.WithTx(tx).Get(ctx, input.VendorID)
		if err != nil {
			return repo.Classify(err, "vendor not found", "load vendor")
		}
		if err := s.repo.WithTx(tx).Create(ctx, settlement); err != nil {
			return repo.Classify(err, "vendor not found", "create settlement")
		}
		actor := input.Actor
		return s.emit(ctx, tx, enums.EventSettlementSubmitted, settlement, vendor.DueBalanceCents, &actor)
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logCtx(ctx, settlement), "settlement submitted")
	return settlement, nil
}

// Approve applies the settlement to the vendor's due balance and re-runs the
// cash limit guard in the same transaction as the status change.
func (s *service) Approve(ctx context.Context, input ApproveInput) (*models.Settlement, error) {
	if input.SettlementID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settlement id required")
	}

	var (
		result  *models.Settlement
		blocked bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		vendorRepo := s.vendors.WithTx(tx)

		claim, err := repoTx.Get(ctx, input.SettlementID)
		if err != nil {
			return repo.Classify(err, settlementNotFound, "load settlement")
		}
		vendor, err := vendorRepo.GetForUpdate(ctx, claim.VendorID)
		if err != nil {
			return repo.Classify(err, "vendor not found", "lock vendor")
		}
		settlement, err := repoTx.GetForUpdate(ctx, input.SettlementID)
		if err != nil {
			return repo.Classify(err, settlementNotFound, "lock settlement")
		}

		next, err := settlement.Status.Approve()
		if err != nil {
			return transitionError(err, settlement)
		}

		applied := balances.ApplySettlement(vendor, settlement.AmountCents)
		actor := input.Actor
		blocked, err = s.guard.Check(ctx, tx, vendor, &actor)
		if err != nil {
			return err
		}
		if err := vendorRepo.Save(ctx, vendor); err != nil {
			return repo.Classify(err, "vendor not found", "update vendor balance")
		}

		decidedAt := s.now().UTC()
		settlement.Status = next
		settlement.AppliedCents = applied
		settlement.DecidedBy = actorID(input.Actor)
		settlement.DecidedAt = &decidedAt
		if err := repoTx.Decide(ctx, settlement); err != nil {
			return repo.Classify(err, settlementNotFound, "approve settlement")
		}

		result = settlement
		return s.emit(ctx, tx, enums.EventSettlementApproved, settlement, vendor.DueBalanceCents, &actor)
	})
	if err != nil {
		s.metrics.IncDecision(workflowName, outcomeFor(err))
		return nil, err
	}

	s.metrics.IncDecision(workflowName, string(enums.SettlementApproved))
	if blocked {
		s.metrics.IncAutoBlock()
	}
	logCtx := s.logg.WithField(s.logCtx(ctx, result), "applied_cents", result.AppliedCents)
	s.logg.Info(logCtx, "settlement approved")
	return result, nil
}

func (s *service) Reject(ctx context.Context, input RejectInput) (*models.Settlement, error) {
	if input.SettlementID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settlement id required")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required")
	}
	if len(reason) > maxReasonLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason too long")
	}

	var result *models.Settlement
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)

		// same lock order as Approve: vendor, then settlement
		claim, err := repoTx.Get(ctx, input.SettlementID)
		if err != nil {
			return repo.Classify(err, settlementNotFound, "load settlement")
		}
		vendor, err := s.vendors.WithTx(tx).GetForUpdate(ctx, claim.VendorID)
		if err != nil {
			return repo.Classify(err, "vendor not found", "lock vendor")
		}
		settlement, err := repoTx.GetForUpdate(ctx, input.SettlementID)
		if err != nil {
			return repo.Classify(err, settlementNotFound, "lock settlement")
		}
		next, err := settlement.Status.Reject()
		if err != nil {
			return transitionError(err, settlement)
		}

		decidedAt := s.now().UTC()
		settlement.Status = next
		settlement.RejectionReason = &reason
		settlement.DecidedBy = actorID(input.Actor)
		settlement.DecidedAt = &decidedAt
		if err := repoTx.Decide(ctx, settlement); err != nil {
			return repo.Classify(err, settlementNotFound, "reject settlement")
		}

		result = settlement
		actor := input.Actor
		return s.emit(ctx, tx, enums.EventSettlementRejected, settlement, vendor.DueBalanceCents, &actor)
	})
	if err != nil {
		s.metrics.IncDecision(workflowName, outcomeFor(err))
		return nil, err
	}

	s.metrics.IncDecision(workflowName, string(enums.SettlementRejected))
	s.logg.Info(s.logCtx(ctx, result), "settlement rejected")
	return result, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settlement id required")
	}
	settlement, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, repo.Classify(err, settlementNotFound, "load settlement")
	}
	return settlement, nil
}

// GetForVendor hides settlements owned by other vendors behind NotFound.
func (s *service) GetForVendor(ctx context.Context, vendorID, id uuid.UUID) (*models.Settlement, error) {
	settlement, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if settlement.VendorID != vendorID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, settlementNotFound)
	}
	return settlement, nil
}

func (s *service) ListPending(ctx context.Context, params pagination.Params) (pagination.Page[models.Settlement], error) {
	pending := enums.SettlementPending
	return s.list(ctx, ListFilter{Status: &pending}, params)
}

func (s *service) ListByVendor(ctx context.Context, vendorID uuid.UUID, status *enums.SettlementStatus, params pagination.Params) (pagination.Page[models.Settlement], error) {
	if vendorID == uuid.Nil {
		return pagination.Page[models.Settlement]{}, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if status != nil && !status.IsValid() {
		return pagination.Page[models.Settlement]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid settlement status")
	}
	return s.list(ctx, ListFilter{VendorID: &vendorID, Status: status}, params)
}

func (s *service) list(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[models.Settlement], error) {
	rows, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return pagination.Page[models.Settlement]{}, repo.Classify(err, settlementNotFound, "list settlements")
	}
	return pagination.BuildPage(rows, params.Limit, func(row models.Settlement) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	}), nil
}

// AnnounceStale queues one settlement.stale event per settlement pending longer
// than olderThan. Settlements already announced are skipped.
func (s *service) AnnounceStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "stale age must be positive")
	}
	now := s.now().UTC()
	rows, err := s.repo.ListPendingBefore(ctx, now.Add(-olderThan), staleBatchSize)
	if err != nil {
		return 0, repo.Classify(err, settlementNotFound, "list stale settlements")
	}

	announced := 0
	for i := range rows {
		row := rows[i]
		var queued bool
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			queued, err = s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventSettlementStale,
				AggregateType: enums.AggregateSettlement,
				AggregateID:   row.ID,
				Actor:         &outbox.ActorRef{Role: enums.ActorRoleSystem},
				Data: payloads.SettlementStaleEvent{
					SettlementID: row.ID,
					VendorID:     row.VendorID,
					AmountCents:  row.AmountCents,
					SubmittedAt:  row.CreatedAt,
					PendingHours: int(now.Sub(row.CreatedAt).Hours()),
				},
			})
			return err
		})
		if err != nil {
			return announced, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue stale settlement reminder")
		}
		if queued {
			announced++
		}
	}
	return announced, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, settlement *models.Settlement, dueCents int64, actor *outbox.ActorRef) error {
	data := payloads.SettlementEvent{
		SettlementID:    settlement.ID,
		VendorID:        settlement.VendorID,
		AmountCents:     settlement.AmountCents,
		AppliedCents:    settlement.AppliedCents,
		PaymentMethod:   settlement.PaymentMethod,
		Status:          settlement.Status,
		DueBalanceCents: dueCents,
	}
	if settlement.RejectionReason != nil {
		data.RejectionReason = *settlement.RejectionReason
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateSettlement,
		AggregateID:   settlement.ID,
		Actor:         actor,
		Data:          data,
	})
}

func (s *service) logCtx(ctx context.Context, settlement *models.Settlement) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"settlement_id": settlement.ID.String(),
		"vendor_id":     settlement.VendorID.String(),
		"amount_cents":  settlement.AmountCents,
	})
}

func transitionError(err error, settlement *models.Settlement) error {
	if errors.Is(err, enums.ErrInvalidTransition) {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "settlement is not pending").
			WithDetails(map[string]any{
				"settlement_id": settlement.ID.String(),
				"status":        string(settlement.Status),
			})
	}
	return err
}

func outcomeFor(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return strings.ToLower(string(typed.Code()))
	}
	return "error"
}

func actorID(actor outbox.ActorRef) *uuid.UUID {
	if actor.ActorID == uuid.Nil {
		return nil
	}
	id := actor.ActorID
	return &id
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
