package common

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedLanguage is returned when no recognizer model exists for
	// the requested language. Callers fall back to pattern-only extraction;
	// this error never aborts a migration.
	ErrUnsupportedLanguage = errors.New("no recognizer model for language")

	// ErrScopeNotFound is returned when a migration targets a project or
	// document that does not exist.
	ErrScopeNotFound = errors.New("scope not found")

	// ErrEntityNotFound is returned by entity lookups for ids that do not
	// exist within the queried project.
	ErrEntityNotFound = errors.New("entity not found")
)

// ExtractionError wraps a per-chunk extraction failure. The affected chunk
// is skipped and counted; the migration continues.
type ExtractionError struct {
	ChunkID string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for chunk %s: %v", e.ChunkID, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ScopeClearError wraps a failure while clearing a scope in apply mode.
// It is fatal: the migration aborts before any re-extraction so the scope is
// never left partially deleted.
type ScopeClearError struct {
	Scope Scope
	Err   error
}

func (e *ScopeClearError) Error() string {
	return fmt.Sprintf("failed to clear %s scope: %v", e.Scope.Kind, e.Err)
}

func (e *ScopeClearError) Unwrap() error {
	return e.Err
}
