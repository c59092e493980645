// Package id provides unique identifier generation utilities.
// This is the canonical source for ID generation across the codebase.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// OID generates a new object identifier (UUID v4).
// An OID is unique among the siblings it is generated for and is never reused.
func OID() string {
	return uuid.NewString()
}

// Short generates a short random ID (8 hex characters).
// Suitable for user-facing IDs where brevity matters.
func Short() string {
	return uuid.NewString()[:8]
}

// Session generates an opaque session identifier.
// Longer than an OID so that it is recognizable in request logs.
func Session() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}
