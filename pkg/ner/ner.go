// Package ner extracts named-entity candidates from chunk text. A
// model-backed Recognizer does the heavy lifting per language, a
// pattern-based detector supplements it with technical vocabulary the
// general-purpose models miss, and a noise filter drops sentence fragments
// before candidates leave the package.
package ner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/atlasgraph/atlas/pkg/common"
)

// Candidate is one raw (surface form, type) pair produced by extraction.
type Candidate struct {
	Text string
	Type common.EntityType
}

// Recognizer is the contract for model-backed named-entity recognition.
// Implementations are stateless with respect to calls: the same text always
// yields candidates from the same model state.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]Candidate, error)
}

// Metrics reports accumulated model usage for one recognizer instance.
type Metrics struct {
	Requests   int   `json:"requests"`
	DurationMs int64 `json:"duration_ms"`
}

// MetricsProvider is implemented by recognizers that track model usage.
type MetricsProvider interface {
	Metrics() Metrics
	ResetMetrics()
}

// Registry maps language codes to recognizer instances. Languages come from
// a small fixed set resolved at startup; a lookup for an unregistered
// language returns common.ErrUnsupportedLanguage so callers can fall back
// to pattern-only extraction.
type Registry struct {
	mu         sync.RWMutex
	byLanguage map[string]Recognizer
}

// NewRegistry creates an empty recognizer registry.
func NewRegistry() *Registry {
	return &Registry{
		byLanguage: make(map[string]Recognizer),
	}
}

// Register adds a recognizer for a language code, replacing any previous one.
func (r *Registry) Register(language string, rec Recognizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byLanguage[strings.ToLower(language)] = rec
}

// Recognizer returns the recognizer for a language code.
func (r *Registry) Recognizer(language string) (Recognizer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byLanguage[strings.ToLower(language)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedLanguage, language)
	}
	return rec, nil
}

// Languages lists the registered language codes in sorted order.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	langs := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// MapLabel maps a model-produced category label onto the closed entity type
// set. The second return is false for categories outside the allow-list
// (dates, quantities, ...), which are discarded rather than stored as
// "other".
func MapLabel(label string) (common.EntityType, bool) {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "PERSON", "PER":
		return common.EntityTypePerson, true
	case "ORGANIZATION", "ORG":
		return common.EntityTypeOrganization, true
	case "LOCATION", "LOC", "GPE", "FACILITY", "FAC":
		return common.EntityTypeLocation, true
	case "CONCEPT", "NORP", "WORK_OF_ART", "CREATIVE_WORK", "LAW":
		return common.EntityTypeConcept, true
	case "PRODUCT":
		return common.EntityTypeProduct, true
	case "EVENT":
		return common.EntityTypeEvent, true
	default:
		return common.EntityTypeOther, false
	}
}
