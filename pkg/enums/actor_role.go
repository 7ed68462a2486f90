package enums

import "slices"

// ActorRole identifies who is calling the ledger API.
type ActorRole string

const (
	ActorRoleAdmin  ActorRole = "admin"
	ActorRoleVendor ActorRole = "vendor"
	ActorRoleSystem ActorRole = "system"
)

var validActorRoles = []ActorRole{ActorRoleAdmin, ActorRoleVendor, ActorRoleSystem}

func (r ActorRole) IsValid() bool {
	return slices.Contains(validActorRoles, r)
}

func ParseActorRole(value string) (ActorRole, error) {
	return parse("actor role", validActorRoles, value)
}
