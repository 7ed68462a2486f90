package vendors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/internal/repo"
	dbpkg "github.com/angelmondragon/vendorledger/pkg/db"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
)

// Service registers vendors with the ledger and reads their aggregate row.
// Vendor identity is owned upstream; the ledger only keeps the balance record.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.Vendor, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
}

// RegisterInput creates the ledger record for an upstream vendor id.
type RegisterInput struct {
	ID             uuid.UUID
	Name           string
	CashLimitCents *int64
}

type service struct {
	repo             Repository
	defaultCashLimit int64
}

// NewService builds the vendors service; defaultCashLimit applies when registration omits a limit.
func NewService(repo Repository, defaultCashLimit int64) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("vendors repository required")
	}
	if defaultCashLimit < 0 {
		return nil, fmt.Errorf("default cash limit must not be negative")
	}
	return &service{repo: repo, defaultCashLimit: defaultCashLimit}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.Vendor, error) {
	if input.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor name required")
	}
	limit := s.defaultCashLimit
	if input.CashLimitCents != nil {
		if *input.CashLimitCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cash limit must not be negative")
		}
		limit = *input.CashLimitCents
	}

	now := time.Now().UTC()
	vendor := &models.Vendor{
		ID:             input.ID,
		Name:           name,
		CashLimitCents: limit,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, vendor); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "vendor already registered")
		}
		return nil, repo.Classify(err, "vendor not found", "create vendor")
	}
	return vendor, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	vendor, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, repo.Classify(err, "vendor not found", "load vendor")
	}
	return vendor, nil
}
