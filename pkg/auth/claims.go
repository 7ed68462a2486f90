package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/enums"
)

// AccessTokenPayload is what a caller asks to have signed.
type AccessTokenPayload struct {
	ActorID  uuid.UUID
	VendorID *uuid.UUID
	Role     enums.ActorRole
	JTI      string
}

// Validate enforces the actor shape: every token names an actor and a known
// role, and vendor tokens also name the vendor.
func (p AccessTokenPayload) Validate() error {
	if p.ActorID == uuid.Nil {
		return errors.New("actor id is required")
	}
	if !p.Role.IsValid() {
		return fmt.Errorf("invalid actor role %q", p.Role)
	}
	if p.Role == enums.ActorRoleVendor && (p.VendorID == nil || *p.VendorID == uuid.Nil) {
		return errors.New("vendor tokens require a vendor id")
	}
	return nil
}

// AccessTokenClaims is the JWT body presented by admins, vendors and internal
// services. VendorID is set only for vendor tokens.
type AccessTokenClaims struct {
	ActorID  uuid.UUID       `json:"actor_id"`
	VendorID *uuid.UUID      `json:"vendor_id,omitempty"`
	Role     enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

func (c *AccessTokenClaims) Payload() AccessTokenPayload {
	return AccessTokenPayload{ActorID: c.ActorID, VendorID: c.VendorID, Role: c.Role, JTI: c.ID}
}
