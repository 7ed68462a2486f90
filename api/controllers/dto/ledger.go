// Package dto renders ledger records for the HTTP surface. Amounts leave the
// service layer as integer minor units and are rendered here as decimal major units.
package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorledger/internal/balances"
	"github.com/angelmondragon/vendorledger/internal/cashevents"
	"github.com/angelmondragon/vendorledger/internal/reporting"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/money"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

type Settlement struct {
	ID               uuid.UUID                     `json:"id"`
	VendorID         uuid.UUID                     `json:"vendorId"`
	Amount           money.Amount                  `json:"amount"`
	AppliedAmount    money.Amount                  `json:"appliedAmount"`
	PaymentMethod    enums.SettlementPaymentMethod `json:"paymentMethod"`
	PaymentReference string                        `json:"paymentReference"`
	PaymentProofURL  *string                       `json:"paymentProof,omitempty"`
	VendorNotes      *string                       `json:"vendorNotes,omitempty"`
	Status           enums.SettlementStatus        `json:"status"`
	RejectionReason  *string                       `json:"rejectionReason,omitempty"`
	DecidedBy        *uuid.UUID                    `json:"decidedBy,omitempty"`
	CreatedAt        time.Time                     `json:"createdAt"`
	DecidedAt        *time.Time                    `json:"decidedAt,omitempty"`
}

func SettlementFrom(s *models.Settlement) Settlement {
	return Settlement{
		ID:               s.ID,
		VendorID:         s.VendorID,
		Amount:           money.Amount(s.AmountCents),
		AppliedAmount:    money.Amount(s.AppliedCents),
		PaymentMethod:    s.PaymentMethod,
		PaymentReference: s.PaymentReference,
		PaymentProofURL:  s.PaymentProofURL,
		VendorNotes:      s.VendorNotes,
		Status:           s.Status,
		RejectionReason:  s.RejectionReason,
		DecidedBy:        s.DecidedBy,
		CreatedAt:        s.CreatedAt,
		DecidedAt:        s.DecidedAt,
	}
}

type Withdrawal struct {
	ID                   uuid.UUID              `json:"id"`
	VendorID             uuid.UUID              `json:"vendorId"`
	Amount               money.Amount           `json:"amount"`
	BankDetails          types.BankDetails      `json:"bankDetails"`
	Status               enums.WithdrawalStatus `json:"status"`
	TransactionReference *string                `json:"transactionReference,omitempty"`
	AdminNotes           *string                `json:"adminNotes,omitempty"`
	RejectionReason      *string                `json:"rejectionReason,omitempty"`
	DecidedBy            *uuid.UUID             `json:"decidedBy,omitempty"`
	RequestDate          time.Time              `json:"requestDate"`
	DecidedAt            *time.Time             `json:"decidedAt,omitempty"`
}

// WithdrawalFrom renders a withdrawal. Bank account numbers are masked unless
// full is set, which only the admin payout views request.
func WithdrawalFrom(w *models.WithdrawalRequest, full bool) Withdrawal {
	bank := w.BankDetails
	if !full {
		bank = bank.Masked()
	}
	return Withdrawal{
		ID:                   w.ID,
		VendorID:             w.VendorID,
		Amount:               money.Amount(w.AmountCents),
		BankDetails:          bank,
		Status:               w.Status,
		TransactionReference: w.TransactionReference,
		AdminNotes:           w.AdminNotes,
		RejectionReason:      w.RejectionReason,
		DecidedBy:            w.DecidedBy,
		RequestDate:          w.RequestedAt,
		DecidedAt:            w.DecidedAt,
	}
}

type CashEvent struct {
	ID        uuid.UUID           `json:"id"`
	VendorID  uuid.UUID           `json:"vendorId"`
	BookingID *uuid.UUID          `json:"bookingId,omitempty"`
	Type      enums.CashEventType `json:"type"`
	Amount    money.Amount        `json:"amount"`
	Note      *string             `json:"note,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
}

func CashEventFrom(e *models.CashEvent) CashEvent {
	return CashEvent{
		ID:        e.ID,
		VendorID:  e.VendorID,
		BookingID: e.BookingID,
		Type:      e.Type,
		Amount:    money.Amount(e.AmountCents),
		Note:      e.Note,
		CreatedAt: e.CreatedAt,
	}
}

// RecordedCashEvent adds the outcome flags of a record call.
type RecordedCashEvent struct {
	CashEvent
	Duplicate     bool `json:"duplicate"`
	VendorBlocked bool `json:"vendorBlocked"`
}

func RecordedCashEventFrom(res *cashevents.RecordResult) RecordedCashEvent {
	return RecordedCashEvent{
		CashEvent:     CashEventFrom(res.Event),
		Duplicate:     res.Duplicate,
		VendorBlocked: res.Blocked,
	}
}

type Vendor struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	CashLimit       money.Amount    `json:"cashLimit"`
	DueBalance      money.Amount    `json:"dueBalance"`
	WalletEarnings  money.Amount    `json:"walletEarnings"`
	LimitRatio      decimal.Decimal `json:"limitRatio"`
	IsBlocked       bool            `json:"isBlocked"`
	BlockReason     *string         `json:"blockReason,omitempty"`
	BlockedAt       *time.Time      `json:"blockedAt,omitempty"`
	LastEvaluatedAt *time.Time      `json:"lastEvaluatedAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

func VendorFrom(v *models.Vendor) Vendor {
	return Vendor{
		ID:              v.ID,
		Name:            v.Name,
		CashLimit:       money.Amount(v.CashLimitCents),
		DueBalance:      money.Amount(v.DueBalanceCents),
		WalletEarnings:  money.Amount(v.WalletEarningsCents),
		LimitRatio:      money.Ratio(v.DueBalanceCents, v.CashLimitCents),
		IsBlocked:       v.IsBlocked,
		BlockReason:     v.BlockReason,
		BlockedAt:       v.BlockedAt,
		LastEvaluatedAt: v.LastEvaluatedAt,
		CreatedAt:       v.CreatedAt,
	}
}

type Balance struct {
	VendorID        uuid.UUID       `json:"vendorId"`
	DueBalance      money.Amount    `json:"dueBalance"`
	WalletEarnings  money.Amount    `json:"walletEarnings"`
	WalletBalance   money.Amount    `json:"walletBalance"`
	CashLimit       money.Amount    `json:"cashLimit"`
	LimitRatio      decimal.Decimal `json:"limitRatio"`
	IsBlocked       bool            `json:"isBlocked"`
	BlockReason     *string         `json:"blockReason,omitempty"`
	BlockedAt       *time.Time      `json:"blockedAt,omitempty"`
	LastEvaluatedAt *time.Time      `json:"lastEvaluatedAt,omitempty"`
}

func BalanceFrom(s *balances.Snapshot) Balance {
	return Balance{
		VendorID:        s.VendorID,
		DueBalance:      money.Amount(s.DueBalanceCents),
		WalletEarnings:  money.Amount(s.WalletEarningsCents),
		WalletBalance:   money.Amount(s.WalletEarningsCents),
		CashLimit:       money.Amount(s.CashLimitCents),
		LimitRatio:      s.LimitRatio,
		IsBlocked:       s.IsBlocked,
		BlockReason:     s.BlockReason,
		BlockedAt:       s.BlockedAt,
		LastEvaluatedAt: s.LastEvaluatedAt,
	}
}

type BalancePair struct {
	DueBalance     money.Amount `json:"dueBalance"`
	WalletEarnings money.Amount `json:"walletEarnings"`
}

type Drift struct {
	VendorID uuid.UUID   `json:"vendorId"`
	Drifted  bool        `json:"drifted"`
	Repaired bool        `json:"repaired"`
	Cached   BalancePair `json:"cached"`
	Derived  BalancePair `json:"derived"`
}

func DriftFrom(d *balances.Drift) Drift {
	return Drift{
		VendorID: d.VendorID,
		Drifted:  d.Detected(),
		Repaired: d.Repaired,
		Cached: BalancePair{
			DueBalance:     money.Amount(d.Cached.DueBalanceCents),
			WalletEarnings: money.Amount(d.Cached.WalletEarningsCents),
		},
		Derived: BalancePair{
			DueBalance:     money.Amount(d.Derived.DueBalanceCents),
			WalletEarnings: money.Amount(d.Derived.WalletEarningsCents),
		},
	}
}

type Dashboard struct {
	VendorCount             int64        `json:"vendorCount"`
	BlockedVendorCount      int64        `json:"blockedVendorCount"`
	VendorsWithDueCount     int64        `json:"vendorsWithDueCount"`
	TotalDue                money.Amount `json:"totalDue"`
	TotalWallet             money.Amount `json:"totalWallet"`
	PendingSettlementCount  int64        `json:"pendingSettlementCount"`
	PendingSettlementAmount money.Amount `json:"pendingSettlementAmount"`
	PendingWithdrawalCount  int64        `json:"pendingWithdrawalCount"`
	PendingWithdrawalAmount money.Amount `json:"pendingWithdrawalAmount"`
}

func DashboardFrom(d *reporting.Dashboard) Dashboard {
	return Dashboard{
		VendorCount:             d.VendorCount,
		BlockedVendorCount:      d.BlockedVendorCount,
		VendorsWithDueCount:     d.VendorsWithDueCount,
		TotalDue:                money.Amount(d.TotalDueCents),
		TotalWallet:             money.Amount(d.TotalWalletCents),
		PendingSettlementCount:  d.PendingSettlementCount,
		PendingSettlementAmount: money.Amount(d.PendingSettlementCents),
		PendingWithdrawalCount:  d.PendingWithdrawalCount,
		PendingWithdrawalAmount: money.Amount(d.PendingWithdrawalCents),
	}
}

type VendorBalance struct {
	VendorID       uuid.UUID       `json:"vendorId"`
	Name           string          `json:"name"`
	DueBalance     money.Amount    `json:"dueBalance"`
	WalletEarnings money.Amount    `json:"walletEarnings"`
	CashLimit      money.Amount    `json:"cashLimit"`
	IsBlocked      bool            `json:"isBlocked"`
	BlockReason    *string         `json:"blockReason,omitempty"`
	LimitRatio     decimal.Decimal `json:"limitRatio"`
}

func VendorBalanceFrom(v reporting.VendorBalance) VendorBalance {
	return VendorBalance{
		VendorID:       v.VendorID,
		Name:           v.Name,
		DueBalance:     money.Amount(v.DueBalanceCents),
		WalletEarnings: money.Amount(v.WalletEarningsCents),
		CashLimit:      money.Amount(v.CashLimitCents),
		IsBlocked:      v.IsBlocked,
		BlockReason:    v.BlockReason,
		LimitRatio:     v.LimitRatio,
	}
}

type Notification struct {
	ID        uuid.UUID              `json:"id"`
	Type      enums.NotificationType `json:"type"`
	SubjectID *uuid.UUID             `json:"subjectId,omitempty"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Unread    bool                   `json:"unread"`
	ReadAt    *time.Time             `json:"readAt,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

func NotificationFrom(n models.Notification) Notification {
	return Notification{
		ID:        n.ID,
		Type:      n.Type,
		SubjectID: n.SubjectID,
		Title:     n.Title,
		Message:   n.Message,
		Unread:    n.Unread(),
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

// MapPage converts every item of a page while keeping its cursor.
func MapPage[T, R any](page pagination.Page[T], fn func(T) R) pagination.Page[R] {
	out := pagination.Page[R]{
		Items:      make([]R, 0, len(page.Items)),
		NextCursor: page.NextCursor,
	}
	for _, item := range page.Items {
		out.Items = append(out.Items, fn(item))
	}
	return out
}

type DeadLetter struct {
	EventID       uuid.UUID                  `json:"eventId"`
	EventType     enums.OutboxEventType      `json:"eventType"`
	AggregateType enums.OutboxAggregateType  `json:"aggregateType"`
	AggregateID   uuid.UUID                  `json:"aggregateId"`
	ErrorReason   enums.OutboxDLQErrorReason `json:"errorReason"`
	ErrorMessage  *string                    `json:"errorMessage,omitempty"`
	AttemptCount  int                        `json:"attemptCount"`
	FailedAt      time.Time                  `json:"failedAt"`
}

func DeadLetterFrom(entry models.OutboxDLQ) DeadLetter {
	return DeadLetter{
		EventID:       entry.EventID,
		EventType:     entry.EventType,
		AggregateType: entry.AggregateType,
		AggregateID:   entry.AggregateID,
		ErrorReason:   entry.ErrorReason,
		ErrorMessage:  entry.ErrorMessage,
		AttemptCount:  entry.AttemptCount,
		FailedAt:      entry.FailedAt,
	}
}

// ReplayedEvent acknowledges an event handed back to the publisher.
type ReplayedEvent struct {
	EventID   uuid.UUID             `json:"eventId"`
	EventType enums.OutboxEventType `json:"eventType"`
	Queued    bool                  `json:"queued"`
}
