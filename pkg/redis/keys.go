package redis

import "strings"

// Keyspace builds colon separated keys under a fixed prefix. Blank parts are
// dropped so optional scopes never produce "a::b".
type Keyspace string

// DefaultKeyspace prefixes every key the ledger writes.
const DefaultKeyspace Keyspace = "vl"

func (k Keyspace) Key(parts ...string) string {
	var b strings.Builder
	b.WriteString(string(k))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

func (k Keyspace) Idempotency(scope, id string) string { return k.Key("idempotency", scope, id) }

func (k Keyspace) RateLimit(scope string) string { return k.Key("rate_limit", scope) }

func (k Keyspace) Counter(name string) string { return k.Key("counter", name) }

func (k Keyspace) Lock(name string) string { return k.Key("lock", name) }
