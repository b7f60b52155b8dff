package util

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// NewPublicID generates an opaque public identifier for entities, mentions
// and relationships. IDs are assigned once on creation and never reused.
func NewPublicID() (string, error) {
	return gonanoid.New()
}

// MustPublicID generates a public identifier and panics on failure.
// Nanoid generation only fails when the OS entropy source is broken.
func MustPublicID() string {
	return gonanoid.Must()
}
