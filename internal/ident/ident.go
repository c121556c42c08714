// Package ident generates and validates registrant identifiers.
package ident

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a random UUID v4 in canonical lowercase form.
func New() string {
	return uuid.New().String()
}

// Valid reports whether s is a canonical 36-character UUID v4 with the
// RFC 4122 variant. Upper-case hex is accepted; braces, urn: prefixes and
// the 32-character compact form that uuid.Parse tolerates are not.
func Valid(s string) bool {
	if len(s) != 36 {
		return false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return id.Version() == 4 && id.Variant() == uuid.RFC4122
}

// Normalize lower-cases a valid identifier so lookups hit the stored key.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
