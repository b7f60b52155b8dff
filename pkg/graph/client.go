// Package graph runs the entity resolution pipeline: per-chunk extraction
// and normalization fan out in parallel, a barrier collects every candidate
// in scope, scope-wide deduplication collapses them into entities, and
// relationship upserts plus a weight recompute materialize the graph.
package graph

import (
	"errors"

	"github.com/atlasgraph/atlas/pkg/analytics"
	"github.com/atlasgraph/atlas/pkg/dedupe"
	"github.com/atlasgraph/atlas/pkg/ner"
	"github.com/atlasgraph/atlas/pkg/store"
)

// Engine coordinates extraction, deduplication and persistence for one
// storage backend. It is safe for concurrent use; all pipeline state lives
// on the stack of a single Migrate call.
type Engine struct {
	store     store.Storage
	extractor *ner.Extractor
	analyzer  *analytics.Analyzer

	parallelChunks int
	maxRetries     int
	threshold      float64
}

// NewEngineParams defines the configuration for creating an Engine.
//
// ParallelChunks controls how many chunks are extracted concurrently.
// MaxRetries bounds model retry attempts per chunk.
// Threshold overrides the deduplication similarity threshold; zero means
// the recommended default.
type NewEngineParams struct {
	Store     store.Storage
	Extractor *ner.Extractor
	Analyzer  *analytics.Analyzer

	ParallelChunks int
	MaxRetries     int
	Threshold      float64
}

// NewEngine creates an Engine with the provided configuration.
func NewEngine(params NewEngineParams) (*Engine, error) {
	if params.Store == nil {
		return nil, errors.New("store is required")
	}
	if params.Extractor == nil {
		return nil, errors.New("extractor is required")
	}

	parallel := params.ParallelChunks
	if parallel <= 0 {
		parallel = 4
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	threshold := params.Threshold
	if threshold <= 0 {
		threshold = dedupe.DefaultThreshold
	}
	analyzer := params.Analyzer
	if analyzer == nil {
		analyzer = analytics.NewAnalyzer(nil)
	}

	return &Engine{
		store:     params.Store,
		extractor: params.Extractor,
		analyzer:  analyzer,

		parallelChunks: parallel,
		maxRetries:     maxRetries,
		threshold:      threshold,
	}, nil
}

// Store exposes the engine's storage backend for read-side queries.
func (e *Engine) Store() store.Storage {
	return e.store
}

// Analyzer exposes the snapshot computation strategy.
func (e *Engine) Analyzer() *analytics.Analyzer {
	return e.analyzer
}
