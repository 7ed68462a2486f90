// Package enums holds the string enums shared by the API, the database
// (where each maps to a Postgres enum type) and the event payloads.
package enums

import (
	"fmt"
	"slices"
)

// parse returns value as T when it is one of allowed. Matching is exact:
// the database enums are lower snake case and so is every wire format.
func parse[T ~string](kind string, allowed []T, value string) (T, error) {
	if v := T(value); slices.Contains(allowed, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}
