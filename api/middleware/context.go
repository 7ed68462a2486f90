package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/enums"
)

type contextKey string

const (
	ctxActorID  contextKey = "actor_id"
	ctxRole     contextKey = "actor_role"
	ctxVendorID contextKey = "vendor_id"
)

func ActorIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxActorID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

func RoleFromContext(ctx context.Context) enums.ActorRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.ActorRole); ok {
		return v
	}
	return ""
}

// VendorIDFromContext returns the vendor claim carried by vendor tokens.
func VendorIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	v, ok := ctx.Value(ctxVendorID).(uuid.UUID)
	if !ok || v == uuid.Nil {
		return uuid.Nil, false
	}
	return v, true
}

// WithActor injects the authenticated caller into the context.
func WithActor(ctx context.Context, actorID uuid.UUID, role enums.ActorRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxActorID, actorID)
	return context.WithValue(ctx, ctxRole, role)
}

// WithVendorID injects the vendor identifier into the context for downstream handlers.
func WithVendorID(ctx context.Context, vendorID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxVendorID, vendorID)
}
