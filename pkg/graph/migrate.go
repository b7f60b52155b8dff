package graph

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/atlasgraph/atlas/pkg/common"
	"github.com/atlasgraph/atlas/pkg/logger"
	"github.com/atlasgraph/atlas/pkg/store"
	"github.com/atlasgraph/atlas/pkg/store/memory"
)

// Mode selects whether a migration mutates the store or only reports what
// it would do.
type Mode string

const (
	ModeDryRun Mode = "dry-run"
	ModeApply  Mode = "apply"
)

// MigrationParams selects the scope and mode of one migration run.
// Threshold optionally overrides the engine's deduplication threshold for
// this run only; zero keeps the configured value.
type MigrationParams struct {
	Scope     common.Scope `json:"scope"`
	Mode      Mode         `json:"mode"`
	Threshold float64      `json:"threshold,omitempty"`
}

// Report is the user-visible outcome of a migration. Skip counts and
// reasons are always present, even on overall success, so extraction
// quality regressions stay observable.
type Report struct {
	Scope common.Scope `json:"scope"`
	Mode  Mode         `json:"mode"`

	// Before and After are the persisted stats for the scope. Entities are
	// project-scoped, so for a document scope both sides count the whole
	// containing project. In dry-run mode After instead counts only what
	// this run staged from the scope's chunks; for a sub-project scope the
	// two sides then have different baselines and the delta is indicative,
	// not exact.
	Before store.Stats `json:"before"`
	After  store.Stats `json:"after"`

	ChunksTotal       int            `json:"chunks_total"`
	ChunksProcessed   int            `json:"chunks_processed"`
	ChunksSkipped     int            `json:"chunks_skipped"`
	SkippedChunks     []SkippedChunk `json:"skipped_chunks,omitempty"`
	PatternOnlyChunks int            `json:"pattern_only_chunks"`
	NoiseRejected     int            `json:"noise_rejected"`

	DurationMs int64 `json:"duration_ms"`
}

// Migrate runs the clear-and-rebuild pipeline over one scope.
//
// Apply mode clears the scope first; a clear failure aborts the whole run
// as a ScopeClearError before any re-extraction, since proceeding would
// risk duplicated data. Dry-run mode stages results into a throwaway
// in-memory store and reports the delta without touching persistence.
// Chunk processing order never affects the final graph, so a cancellation
// between chunks leaves already-committed work valid.
func (e *Engine) Migrate(ctx context.Context, params MigrationParams) (*Report, error) {
	start := time.Now()
	if params.Mode == "" {
		params.Mode = ModeDryRun
	}

	chunks, err := e.store.ListChunks(ctx, params.Scope)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 && params.Scope.Kind != common.ScopeAll {
		return nil, fmt.Errorf("%w: %s scope (project %d, document %d)",
			common.ErrScopeNotFound, params.Scope.Kind, params.Scope.ProjectID, params.Scope.DocumentID)
	}

	report := &Report{
		Scope:       params.Scope,
		Mode:        params.Mode,
		ChunksTotal: len(chunks),
	}

	report.Before, err = e.store.ScopeStats(ctx, params.Scope)
	if err != nil {
		return nil, err
	}

	target := e.store
	if params.Mode == ModeDryRun {
		target = memory.NewStore()
	} else {
		if err := e.store.ClearScope(ctx, params.Scope); err != nil {
			return nil, &common.ScopeClearError{Scope: params.Scope, Err: err}
		}
	}

	extractions, stats, err := e.processChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}
	report.ChunksProcessed = stats.processed
	report.ChunksSkipped = len(stats.skipped)
	report.SkippedChunks = stats.skipped
	report.PatternOnlyChunks = stats.patternOnly
	report.NoiseRejected = stats.rejected

	threshold := params.Threshold
	if threshold <= 0 {
		threshold = e.threshold
	}
	// Projects come from the store, not from the extractions, so a project
	// whose chunks were all skipped still gets a (no-op) persistence pass.
	projectIDs, err := e.store.ListProjectIDs(ctx, params.Scope)
	if err != nil {
		return nil, err
	}
	for _, projectID := range projectIDs {
		group := []*chunkExtraction{}
		for _, ex := range extractions {
			if ex.chunk.ProjectID == projectID {
				group = append(group, ex)
			}
		}
		if err := e.persistGraph(ctx, target, projectID, threshold, group); err != nil {
			return nil, err
		}
	}

	if params.Mode == ModeDryRun {
		report.After, err = dryRunStats(ctx, target, extractions)
	} else {
		report.After, err = e.store.ScopeStats(ctx, params.Scope)
	}
	if err != nil {
		return nil, err
	}

	report.DurationMs = time.Since(start).Milliseconds()
	logger.Info("migration finished",
		"scope", params.Scope.Kind,
		"mode", params.Mode,
		"chunks", report.ChunksTotal,
		"skipped", report.ChunksSkipped,
		"entities", report.After.Entities,
		"relationships", report.After.Relationships,
		"duration_ms", report.DurationMs)
	return report, nil
}

// Analyze computes a graph snapshot for one project from the persisted
// entities and relationships. An empty project yields a zero snapshot.
func (e *Engine) Analyze(ctx context.Context, projectID int64) (common.GraphSnapshot, error) {
	entities, err := e.store.ListEntities(ctx, projectID)
	if err != nil {
		return common.GraphSnapshot{}, err
	}
	relationships, err := e.store.ListRelationships(ctx, projectID)
	if err != nil {
		return common.GraphSnapshot{}, err
	}
	return e.analyzer.Snapshot(entities, relationships), nil
}

func groupProjects(extractions []*chunkExtraction) []int64 {
	seen := make(map[int64]struct{})
	var out []int64
	for _, ex := range extractions {
		if _, ok := seen[ex.chunk.ProjectID]; ok {
			continue
		}
		seen[ex.chunk.ProjectID] = struct{}{}
		out = append(out, ex.chunk.ProjectID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// dryRunStats sums the staged per-project stats, since the staging store
// saw only this run's data.
func dryRunStats(ctx context.Context, target store.Storage, extractions []*chunkExtraction) (store.Stats, error) {
	var total store.Stats
	for _, projectID := range groupProjects(extractions) {
		stats, err := target.ScopeStats(ctx, common.Scope{Kind: common.ScopeProject, ProjectID: projectID})
		if err != nil {
			return store.Stats{}, err
		}
		total.Entities += stats.Entities
		total.Relationships += stats.Relationships
	}
	return total, nil
}
