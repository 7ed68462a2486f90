package withdrawals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/internal/balances"
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
	"github.com/angelmondragon/vendorledger/pkg/types"
)

const (
	workflowName       = "withdrawal"
	withdrawalNotFound = "withdrawal request not found"
	maxReferenceLen    = 120
	maxTextLen         = 1000
)

var bankValidator = validator.New()

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service runs the wallet payout workflow.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.WithdrawalRequest, error)
	Approve(ctx context.Context, input ApproveInput) (*models.WithdrawalRequest, error)
	Reject(ctx context.Context, input RejectInput) (*models.WithdrawalRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	GetForVendor(ctx context.Context, vendorID, id uuid.UUID) (*models.WithdrawalRequest, error)
	ListPending(ctx context.Context, params pagination.Params) (pagination.Page[models.WithdrawalRequest], error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID, status *enums.WithdrawalStatus, params pagination.Params) (pagination.Page[models.WithdrawalRequest], error)
}

// RequestInput is a vendor's payout request.
type RequestInput struct {
	VendorID    uuid.UUID
	AmountCents int64
	BankDetails types.BankDetails
	Actor       outbox.ActorRef
}

// ApproveInput records the payout reference for an approved withdrawal.
type ApproveInput struct {
	WithdrawalID         uuid.UUID
	TransactionReference string
	AdminNotes           *string
	Actor                outbox.ActorRef
}

// RejectInput carries the mandatory rejection reason.
type RejectInput struct {
	WithdrawalID uuid.UUID
	Reason       string
	AdminNotes   *string
	Actor        outbox.ActorRef
}

type service struct {
	repo    Repository
	vendors vendors.Repository
	tx      txRunner
	outbox  outbox.Emitter
	metrics *metrics.LedgerMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires the withdrawal workflow.
func NewService(repo Repository, vendorRepo vendors.Repository, tx txRunner, emitter outbox.Emitter, m *metrics.LedgerMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("withdrawals repository required")
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
		metrics: m,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// Request records a pending payout. The wallet check here is advisory; the
// binding check happens again under the vendor lock at approval.
func (s *service) Request(ctx context.Context, input RequestInput) (*models.WithdrawalRequest, error) {
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	details := normalizeBankDetails(input.BankDetails)
	if err := bankValidator.Struct(details); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid bank details")
	}

	now := s.now().UTC()
	request := &models.WithdrawalRequest{
		ID:          uuid.New(),
		VendorID:    input.VendorID,
		AmountCents: input.AmountCents,
		BankDetails: details,
		Status:      enums.WithdrawalPending,
		RequestedAt: now,
		UpdatedAt:   now,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		vendor, err := s.vendors.WithTx(tx).Get(ctx, input.VendorID)
		if err != nil {
			return repo.Classify(err, "vendor not found", "load vendor")
		}
		if input.AmountCents > vendor.WalletEarningsCents {
			return balances.InsufficientWallet(vendor.WalletEarningsCents, input.AmountCents)
		}
		if err := s.repo.WithTx(tx).Create(ctx, request); err != nil {
			return repo.Classify(err, "vendor not found", "create withdrawal request")
		}
		actor := input.Actor
		return s.emit(ctx, tx, enums.EventWithdrawalRequested, request, vendor.WalletEarningsCents, &actor)
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logCtx(ctx, request), "withdrawal requested")
	return request, nil
}

// Approve debits the wallet and marks the request approved in one transaction.
// The wallet is re-read under the vendor lock so concurrent approvals cannot overdraw it.
func (s *service) Approve(ctx context.Context, input ApproveInput) (*models.WithdrawalRequest, error) {
	if input.WithdrawalID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal id required")
	}
	reference := strings.TrimSpace(input.TransactionReference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference required")
	}
	if len(reference) > maxReferenceLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference too long")
	}
	notes, err := optionalText(input.AdminNotes, "admin notes")
	if err != nil {
		return nil, err
	}

	var result *models.WithdrawalRequest
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		vendorRepo := s.vendors.WithTx(tx)

		pending, err := repoTx.Get(ctx, input.WithdrawalID)
		if err != nil {
			return repo.Classify(err, withdrawalNotFound, "load withdrawal request")
		}
		vendor, err := vendorRepo.GetForUpdate(ctx, pending.VendorID)
		if err != nil {
			return repo.Classify(err, "vendor not found", "lock vendor")
		}
		request, err := repoTx.GetForUpdate(ctx, input.WithdrawalID)
		if err != nil {
			return repo.Classify(err, withdrawalNotFound, "lock withdrawal request")
		}

		next, err := request.Status.Approve()
		if err != nil {
			return transitionError(err, request)
		}
		if err := balances.DebitWallet(vendor, request.AmountCents); err != nil {
			return err
		}
		if err := vendorRepo.Save(ctx, vendor); err != nil {
			return repo.Classify(err, "vendor not found", "debit wallet")
		}

		decidedAt := s.now().UTC()
		request.Status = next
		request.TransactionReference = &reference
		request.AdminNotes = notes
		request.DecidedBy = actorID(input.Actor)
		request.DecidedAt = &decidedAt
		if err := repoTx.Decide(ctx, request); err != nil {
			return repo.Classify(err, withdrawalNotFound, "approve withdrawal")
		}

		result = request
		actor := input.Actor
		return s.emit(ctx, tx, enums.EventWithdrawalApproved, request, vendor.WalletEarningsCents, &actor)
	})
	if err != nil {
		err = repo.Classify(err, withdrawalNotFound, "approve withdrawal")
		s.metrics.IncDecision(workflowName, outcomeFor(err))
		return nil, err
	}

	s.metrics.IncDecision(workflowName, string(enums.WithdrawalApproved))
	s.logg.Info(s.logCtx(ctx, result), "withdrawal approved")
	return result, nil
}

func (s *service) Reject(ctx context.Context, input RejectInput) (*models.WithdrawalRequest, error) {
	if input.WithdrawalID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal id required")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required")
	}
	if len(reason) > maxTextLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason too long")
	}
	notes, err := optionalText(input.AdminNotes, "admin notes")
	if err != nil {
		return nil, err
	}

	var result *models.WithdrawalRequest
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)

		// same lock order as Approve: vendor, then request
		pending, err := repoTx.Get(ctx, input.WithdrawalID)
		if err != nil {
			return repo.Classify(err, withdrawalNotFound, "load withdrawal request")
		}
		vendor, err := s.vendors.WithTx(tx).GetForUpdate(ctx, pending.VendorID)
		if err != nil {
			return repo.Classify(err, "vendor not found", "lock vendor")
		}
		request, err := repoTx.GetForUpdate(ctx, input.WithdrawalID)
		if err != nil {
			return repo.Classify(err, withdrawalNotFound, "lock withdrawal request")
		}
		next, err := request.Status.Reject()
		if err != nil {
			return transitionError(err, request)
		}

		decidedAt := s.now().UTC()
		request.Status = next
		request.RejectionReason = &reason
		request.AdminNotes = notes
		request.DecidedBy = actorID(input.Actor)
		request.DecidedAt = &decidedAt
		if err := repoTx.Decide(ctx, request); err != nil {
			return repo.Classify(err, withdrawalNotFound, "reject withdrawal")
		}

		result = request
		actor := input.Actor
		return s.emit(ctx, tx, enums.EventWithdrawalRejected, request, vendor.WalletEarningsCents, &actor)
	})
	if err != nil {
		err = repo.Classify(err, withdrawalNotFound, "reject withdrawal")
		s.metrics.IncDecision(workflowName, outcomeFor(err))
		return nil, err
	}

	s.metrics.IncDecision(workflowName, string(enums.WithdrawalRejected))
	s.logg.Info(s.logCtx(ctx, result), "withdrawal rejected")
	return result, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal id required")
	}
	request, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, repo.Classify(err, withdrawalNotFound, "load withdrawal request")
	}
	return request, nil
}

func (s *service) GetForVendor(ctx context.Context, vendorID, id uuid.UUID) (*models.WithdrawalRequest, error) {
	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.VendorID != vendorID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, withdrawalNotFound)
	}
	return request, nil
}

func (s *service) ListPending(ctx context.Context, params pagination.Params) (pagination.Page[models.WithdrawalRequest], error) {
	pending := enums.WithdrawalPending
	return s.list(ctx, ListFilter{Status: &pending}, params)
}

func (s *service) ListByVendor(ctx context.Context, vendorID uuid.UUID, status *enums.WithdrawalStatus, params pagination.Params) (pagination.Page[models.WithdrawalRequest], error) {
	if vendorID == uuid.Nil {
		return pagination.Page[models.WithdrawalRequest]{}, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if status != nil && !status.IsValid() {
		return pagination.Page[models.WithdrawalRequest]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid withdrawal status")
	}
	return s.list(ctx, ListFilter{VendorID: &vendorID, Status: status}, params)
}

func (s *service) list(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[models.WithdrawalRequest], error) {
	rows, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return pagination.Page[models.WithdrawalRequest]{}, repo.Classify(err, withdrawalNotFound, "list withdrawal requests")
	}
	return pagination.BuildPage(rows, params.Limit, func(row models.WithdrawalRequest) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.RequestedAt, ID: row.ID}
	}), nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, request *models.WithdrawalRequest, walletCents int64, actor *outbox.ActorRef) error {
	data := payloads.WithdrawalEvent{
		WithdrawalID:        request.ID,
		VendorID:            request.VendorID,
		AmountCents:         request.AmountCents,
		Status:              request.Status,
		WalletEarningsCents: walletCents,
	}
	if request.TransactionReference != nil {
		data.TransactionReference = *request.TransactionReference
	}
	if request.RejectionReason != nil {
		data.RejectionReason = *request.RejectionReason
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateWithdrawal,
		AggregateID:   request.ID,
		Actor:         actor,
		Data:          data,
	})
}

func (s *service) logCtx(ctx context.Context, request *models.WithdrawalRequest) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"withdrawal_id": request.ID.String(),
		"vendor_id":     request.VendorID.String(),
		"amount_cents":  request.AmountCents,
		"account":       request.BankDetails.Masked().AccountNumber,
	})
}

func normalizeBankDetails(details types.BankDetails) types.BankDetails {
	return types.BankDetails{
		AccountHolder: strings.TrimSpace(details.AccountHolder),
		AccountNumber: strings.TrimSpace(details.AccountNumber),
		IFSC:          strings.ToUpper(strings.TrimSpace(details.IFSC)),
		BankName:      strings.TrimSpace(details.BankName),
	}
}

func optionalText(value *string, field string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}
	if len(trimmed) > maxTextLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, field+" too long")
	}
	return &trimmed, nil
}

func transitionError(err error, request *models.WithdrawalRequest) error {
	if errors.Is(err, enums.ErrInvalidTransition) {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "withdrawal request is not pending").
			WithDetails(map[string]any{
				"withdrawal_id": request.ID.String(),
				"status":        string(request.Status),
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
