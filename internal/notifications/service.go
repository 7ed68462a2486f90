package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/internal/repo"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
)

// Service is the vendor-facing notification inbox.
type Service interface {
	List(ctx context.Context, vendorID uuid.UUID, filter Filter, page pagination.Params) (pagination.Page[models.Notification], error)
	UnreadCount(ctx context.Context, vendorID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, vendorID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, vendorID uuid.UUID) (int64, error)
}

type inboxService struct {
	repo Repository
	now  func() time.Time
}

func NewService(r Repository) (Service, error) {
	if r == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &inboxService{repo: r, now: time.Now}, nil
}

func requireVendor(vendorID uuid.UUID) error {
	if vendorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	return nil
}

func (s *inboxService) List(ctx context.Context, vendorID uuid.UUID, filter Filter, page pagination.Params) (pagination.Page[models.Notification], error) {
	var empty pagination.Page[models.Notification]
	if err := requireVendor(vendorID); err != nil {
		return empty, err
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		return empty, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown notification type %q", filter.Type)
	}

	rows, err := s.repo.List(ctx, vendorID, filter, page)
	if err != nil {
		return empty, repo.Classify(err, "notification not found", "list notifications")
	}
	return pagination.BuildPage(rows, page.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	}), nil
}

func (s *inboxService) UnreadCount(ctx context.Context, vendorID uuid.UUID) (int64, error) {
	if err := requireVendor(vendorID); err != nil {
		return 0, err
	}
	n, err := s.repo.CountUnread(ctx, vendorID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	return n, nil
}

func (s *inboxService) MarkRead(ctx context.Context, vendorID, notificationID uuid.UUID) error {
	if err := requireVendor(vendorID); err != nil {
		return err
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	found, err := s.repo.MarkRead(ctx, vendorID, notificationID, s.now())
	switch {
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	case !found:
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *inboxService) MarkAllRead(ctx context.Context, vendorID uuid.UUID) (int64, error) {
	if err := requireVendor(vendorID); err != nil {
		return 0, err
	}
	n, err := s.repo.MarkAllRead(ctx, vendorID, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return n, nil
}
