package ner

import (
	"context"
	"fmt"
	"strings"
)

// Extractor combines a model-backed recognizer with the pattern detector and
// the noise filter into a single per-chunk extraction pass.
type Extractor struct {
	registry *Registry
	patterns *PatternDetector
}

// Result is the outcome of one extraction pass over one chunk.
type Result struct {
	Candidates []Candidate
	// Rejected counts candidates dropped by the noise filter.
	Rejected int
	// PatternOnly is true when no model served the chunk's language and
	// only the pattern detector ran.
	PatternOnly bool
}

// NewExtractor wires a recognizer registry and a fresh pattern detector.
func NewExtractor(registry *Registry) *Extractor {
	return &Extractor{
		registry: registry,
		patterns: NewPatternDetector(),
	}
}

// Extract runs the model for the chunk's language plus the pattern detector
// and merges the results. The model's candidates win on overlap: a pattern
// hit whose normalized span the model already produced is not added again.
// An unregistered language returns common.ErrUnsupportedLanguage (wrapped);
// callers choose whether to fall back to ExtractPatternOnly. A model failure
// is returned as-is so the caller can classify it per chunk.
func (e *Extractor) Extract(ctx context.Context, text, language string) (*Result, error) {
	rec, err := e.registry.Recognizer(language)
	if err != nil {
		return nil, err
	}

	modelCandidates, err := rec.Recognize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("model recognition failed: %w", err)
	}

	return e.merge(modelCandidates, e.patterns.Detect(text)), nil
}

// ExtractPatternOnly runs only the pattern detector. This is the degraded
// mode for languages without a registered model: technical terms still make
// it into the graph while general entities are skipped.
func (e *Extractor) ExtractPatternOnly(text string) *Result {
	res := e.merge(nil, e.patterns.Detect(text))
	res.PatternOnly = true
	return res
}

func (e *Extractor) merge(model, pattern []Candidate) *Result {
	res := &Result{Candidates: []Candidate{}}
	seen := make(map[string]struct{})

	add := func(c Candidate) {
		c.Text = strings.TrimSpace(c.Text)
		if IsNoise(c.Text) {
			res.Rejected++
			return
		}
		key := spanKey(c.Text)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		res.Candidates = append(res.Candidates, c)
	}

	for _, c := range model {
		add(c)
	}
	for _, c := range pattern {
		add(c)
	}
	return res
}

// spanKey folds a surface form for overlap detection between the model and
// pattern paths. Type is deliberately not part of the key: when both paths
// find the same span with different types, the first (model) wins.
func spanKey(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
