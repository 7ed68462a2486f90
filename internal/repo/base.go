package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/angelmondragon/vendorledger/pkg/db"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
)

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// WithTx returns a Base bound to tx, or b itself when tx is nil.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// ForUpdate returns a query that takes a row lock on the selected rows.
// The sqlite dialect drops the clause.
func (b Base) ForUpdate(ctx context.Context) *gorm.DB {
	return b.DB(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

// Classify maps a persistence error onto the ledger error taxonomy.
// Record-not-found becomes NotFound with notFoundMsg, lock and serialization
// failures become ConcurrencyConflict, anything else is a dependency error.
func Classify(err error, notFoundMsg, action string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, notFoundMsg)
	}
	if dbpkg.IsRetryableConflict(err) {
		return pkgerrors.Wrap(pkgerrors.CodeConcurrency, err, action)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

// Paginate orders query newest first on timeColumn and id, applies the cursor
// from params and over-fetches one row for pagination.BuildPage.
func Paginate(query *gorm.DB, timeColumn string, params pagination.Params) (*gorm.DB, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		query = query.Where("("+timeColumn+", id) < (?, ?)", cursor.CreatedAt.UTC(), cursor.ID)
	}
	return query.
		Order(timeColumn + " DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)), nil
}
