// Package idgen provides ID generation for scrapedash entities.
//
// Constructors accept a Generator, making the ID strategy a startup-time
// decision rather than a compile-time one. Tests swap in deterministic
// generators.
package idgen

import "github.com/google/uuid"

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// Time-sortable, so task and result listings stay stable on ID ties.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Default is the scrapedash default: UUIDv7.
var Default Generator = UUIDv7()
