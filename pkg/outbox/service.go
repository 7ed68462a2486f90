package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

// Emitter queues events inside the caller's transaction, so an event exists
// exactly when the write that caused it commits.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

var _ Emitter = (*Service)(nil)

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

var errNoTx = pkgerrors.New(pkgerrors.CodeInternal, "outbox emit requires a transaction")

func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errNoTx
	}
	if err := event.validate(); err != nil {
		return err
	}
	row, err := event.seal(uuid.New(), s.now())
	if err != nil {
		return err
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return err
	}

	if s.logg != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"event_id":       row.ID.String(),
			"event_type":     row.EventType,
			"aggregate_type": row.AggregateType,
			"aggregate_id":   row.AggregateID.String(),
		}), "outbox.queued")
	}
	return nil
}

// EmitIfNotExists queues event unless one of the same type was ever queued
// for the aggregate. Reports whether a row was written.
func (s *Service) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event DomainEvent) (bool, error) {
	if tx == nil {
		return false, errNoTx
	}
	exists, err := s.repo.ExistsTx(tx, event.EventType, event.AggregateType, event.AggregateID)
	if err != nil || exists {
		return false, err
	}
	if err := s.Emit(ctx, tx, event); err != nil {
		return false, err
	}
	return true, nil
}
