package vendorcontext

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/api/middleware"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
)

// ResolveVendorID extracts the vendor claim and enforces vendor access.
func ResolveVendorID(r *http.Request) (uuid.UUID, error) {
	ctx := r.Context()
	if middleware.RoleFromContext(ctx) != enums.ActorRoleVendor {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor access required")
	}
	id, ok := middleware.VendorIDFromContext(ctx)
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor context required")
	}
	return id, nil
}

// Actor builds the outbox actor reference for the authenticated caller.
func Actor(r *http.Request) (outbox.ActorRef, error) {
	ctx := r.Context()
	actorID := middleware.ActorIDFromContext(ctx)
	role := middleware.RoleFromContext(ctx)
	if actorID == uuid.Nil || !role.IsValid() {
		return outbox.ActorRef{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing")
	}
	ref := outbox.ActorRef{ActorID: actorID, Role: role}
	if vendorID, ok := middleware.VendorIDFromContext(ctx); ok {
		ref.VendorID = &vendorID
	}
	return ref, nil
}
