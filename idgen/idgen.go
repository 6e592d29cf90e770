// Package idgen provides pluggable ID generation.
//
// Posts and comments share one short-hex keyspace; making the strategy a
// Generator value keeps it a startup-time decision instead of something
// every call site reinvents.
package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// ShortUUID returns a Generator that produces the first length hex characters
// of a v4 UUID. At 12 characters that is 48 bits of entropy, plenty for the
// row counts this service sees, and the IDs stay readable in URLs.
func ShortUUID(length int) Generator {
	if length < 1 || length > 32 {
		length = 32
	}
	return func() string {
		return strings.ReplaceAll(uuid.New().String(), "-", "")[:length]
	}
}

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// Time-sortable, globally unique.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}
