package graph

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/atlasgraph/atlas/pkg/common"
	"github.com/atlasgraph/atlas/pkg/ner"
	"github.com/atlasgraph/atlas/pkg/store/memory"
)

// scriptedRecognizer returns canned candidates per chunk text.
type scriptedRecognizer struct {
	responses map[string][]ner.Candidate
	failOn    map[string]error
}

func (f *scriptedRecognizer) Recognize(_ context.Context, text string) ([]ner.Candidate, error) {
	if err, ok := f.failOn[text]; ok {
		return nil, err
	}
	return f.responses[text], nil
}

func newTestEngine(t *testing.T, s *memory.Store, rec ner.Recognizer) *Engine {
	t.Helper()
	registry := ner.NewRegistry()
	if rec != nil {
		registry.Register("en", rec)
	}
	engine, err := NewEngine(NewEngineParams{
		Store:     s,
		Extractor: ner.NewExtractor(registry),
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine
}

func person(name string) ner.Candidate {
	return ner.Candidate{Text: name, Type: common.EntityTypePerson}
}

func TestMigrateCoOccurrencePairs(t *testing.T) {
	// chunk1 mentions {A, B}, chunk2 mentions {B, C}: edges (A,B) and
	// (B,C) with count 1 each, no (A,C).
	s := memory.NewStore()
	s.AddChunk(common.Chunk{ID: "c1", ProjectID: 1, DocumentID: 1, Language: "en", Text: "chunk one"})
	s.AddChunk(common.Chunk{ID: "c2", ProjectID: 1, DocumentID: 1, Language: "en", Text: "chunk two"})

	rec := &scriptedRecognizer{responses: map[string][]ner.Candidate{
		"chunk one": {person("Alice Aus"), person("Bob Berg")},
		"chunk two": {person("Bob Berg"), person("Cara Cruz")},
	}}
	engine := newTestEngine(t, s, rec)

	report, err := engine.Migrate(context.Background(), MigrationParams{
		Scope: common.Scope{Kind: common.ScopeProject, ProjectID: 1},
		Mode:  ModeApply,
	})
	if err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if report.ChunksProcessed != 2 || report.ChunksSkipped != 0 {
		t.Errorf("unexpected chunk counters: %+v", report)
	}

	entities, _ := s.ListEntities(context.Background(), 1)
	if len(entities) != 3 {
		t.Fatalf("expected 3 entities, got %v", entities)
	}
	idByName := map[string]string{}
	for _, e := range entities {
		idByName[e.Name] = e.ID
	}

	rels, _ := s.ListRelationships(context.Background(), 1)
	if len(rels) != 2 {
		t.Fatalf("expected 2 relationships, got %v", rels)
	}
	for _, r := range rels {
		if r.CoOccurrences != 1 {
			t.Errorf("co-occurrence count = %d, want 1: %+v", r.CoOccurrences, r)
		}
		pair := map[string]bool{r.EntityA: true, r.EntityB: true}
		if pair[idByName["Alice Aus"]] && pair[idByName["Cara Cruz"]] {
			t.Errorf("spurious edge between entities that never co-occurred: %+v", r)
		}
	}
}

func TestMigrateNoSelfLoops(t *testing.T) {
	s := memory.NewStore()
	s.AddChunk(common.Chunk{ID: "c1", ProjectID: 1, DocumentID: 1, Language: "en", Text: "solo"})

	rec := &scriptedRecognizer{responses: map[string][]ner.Candidate{
		"solo": {person("Alice Aus"), person("Alice Aus")},
	}}
	engine := newTestEngine(t, s, rec)

	if _, err := engine.Migrate(context.Background(), MigrationParams{
		Scope: common.Scope{Kind: common.ScopeProject, ProjectID: 1},
		Mode:  ModeApply,
	}); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	rels, _ := s.ListRelationships(context.Background(), 1)
	if len(rels) != 0 {
		t.Errorf("single-entity chunk must create no relationships, got %v", rels)
	}
}

func TestMigrateWeightBounds(t *testing.T) {
	s := memory.NewStore()
	s.AddChunk(common.Chunk{ID: "c1", ProjectID: 1, DocumentID: 1, Language: "en", Text: "one"})
	s.AddChunk(common.Chunk{ID: "c2", ProjectID: 1, DocumentID: 1, Language: "en", Text: "two"})
	s.AddChunk(common.Chunk{ID: "c3", ProjectID: 1, DocumentID: 1, Language: "en", Text: "three"})

	rec := &scriptedRecognizer{responses: map[string][]ner.Candidate{
		"one":   {person("Alice Aus"), person("Bob Berg")},
		"two":   {person("Alice Aus"), person("Bob Berg")},
		"three": {person("Bob Berg"), person("Cara Cruz")},
	}}
	engine := newTestEngine(t, s, rec)

	if _, err := engine.Migrate(context.Background(), MigrationParams{
		Scope: common.Scope{Kind: common.ScopeProject, ProjectID: 1},
		Mode:  ModeApply,
	}); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	rels, _ := s.ListRelationships(context.Background(), 1)
	maxWeightEdges := 0
	for _, r := range rels {
		if r.Weight <= 0 || r.Weight > 1.0 {
			t.Errorf("weight %f outside (0, 1]: %+v", r.Weight, r)
		}
		if r.Weight == 1.0 {
			maxWeightEdges++
		}
	}
	if maxWeightEdges != 1 {
		t.Errorf("expected exactly one max-weight edge, got %d in %v", maxWeightEdges, rels)
	}
}

func TestMigrateApplyIsIdempotent(t *testing.T) {
	s := memory.NewStore()
	s.AddChunk(common.Chunk{ID: "c1", ProjectID: 1, DocumentID: 1, Language: "en", Text: "one"})
	s.AddChunk(common.Chunk{ID: "c2", ProjectID: 1, DocumentID: 2, Language: "en", Text: "two"})

	rec := &scriptedRecognizer{responses: map[string][]ner.Candidate{
		"one": {person("Alice Aus"), person("Bob Berg")},
		"two": {person("Bob Berg"), person("Cara Cruz")},
	}}
	engine := newTestEngine(t, s, rec)
	params := MigrationParams{
		Scope: common.Scope{Kind: common.ScopeProject, ProjectID: 1},
		Mode:  ModeApply,
	}

	if _, err := engine.Migrate(context.Background(), params); err != nil {
		t.Fatalf("first Migrate failed: %v", err)
	}
	firstEntities, _ := s.ListEntities(context.Background(), 1)
	firstRels, _ := s.ListRelationships(context.Background(), 1)

	if _, err := engine.Migrate(context.Background(), params); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	secondEntities, _ := s.ListEntities(context.Background(), 1)
	secondRels, _ := s.ListRelationships(context.Background(), 1)

	if len(firstEntities) != len(secondEntities) {
		t.Errorf("entity count changed on re-migration: %d vs %d", len(firstEntities), len(secondEntities))
	}

	type edge struct {
		names [2]string
		count int
		w     float64
	}
	summarize := func(entities []common.Entity, rels []common.Relationship) map[edge]bool {
		nameByID := map[string]string{}
		for _, e := range entities {
			nameByID[e.ID] = e.Name
		}
		out := map[edge]bool{}
		for _, r := range rels {
			a, b := nameByID[r.EntityA], nameByID[r.EntityB]
			if a > b {
				a, b = b, a
			}
			out[edge{names: [2]string{a, b}, count: r.CoOccurrences, w: r.Weight}] = true
		}
		return out
	}

	if !reflect.DeepEqual(summarize(firstEntities, firstRels), summarize(secondEntities, secondRels)) {
		t.Errorf("relationship structure changed on re-migration:\nfirst:  %v\nsecond: %v", firstRels, secondRels)
	}
}

func TestMigrateAllScopeRebuildsEveryProject(t *testing.T) {
	// Project enumeration comes from the store's chunk table, so an
	// all-scope run covers every project with chunks.
	s := memory.NewStore()
	s.AddChunk(common.Chunk{ID: "c1", ProjectID: 1, DocumentID: 1, Language: "en", Text: "one"})
	s.AddChunk(common.Chunk{ID: "c2", ProjectID: 2, DocumentID: 1, Language: "en", Text: "two"})

	rec := &scriptedRecognizer{responses: map[string][]ner.Candidate{
		"one": {person("Alice Aus"), person("Bob Berg")},
		"two": {person("Cara Cruz"), person("Dan Doe")},
	}}
	engine := newTestEngine(t, s, rec)

	report, err := engine.Migrate(context.Background(), MigrationParams{
		Scope: common.Scope{Kind: common.ScopeAll},
		Mode:  ModeApply,
	})
	if err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if report.After.Entities != 4 || report.After.Relationships != 2 {
		t.Errorf("all-scope report wrong: %+v", report.After)
	}

	for _, projectID := range []int64{1, 2} {
		entities, _ := s.ListEntities(context.Background(), projectID)
		rels, _ := s.ListRelationships(context.Background(), projectID)
		if len(entities) != 2 || len(rels) != 1 {
			t.Errorf("project %d not rebuilt: %d entities, %d relationships", projectID, len(entities), len(rels))
		}
		for _, r := range rels {
			if r.Weight != 1.0 {
				t.Errorf("project %d weight not recomputed: %+v", projectID, r)
			}
		}
	}
}

func TestMigrateDryRunDoesNotMutate(t *testing.T) {
	s := memory.NewStore()
	s.AddChunk(common.Chunk{ID: "c1", ProjectID: 1, DocumentID: 1, Language: "en", Text: "one"})

	rec := &scriptedRecognizer{responses: map[string][]ner.Candidate{
		"one": {person("Alice Aus"), person("Bob Berg")},
	}}
	engine := newTestEngine(t, s, rec)

	report, err := engine.Migrate(context.Background(), MigrationParams{
		Scope: common.Scope{Kind: common.ScopeProject, ProjectID: 1},
		Mode:  ModeDryRun,
	})
	if err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	if report.After.Entities != 2 || report.After.Relationships != 1 {
		t.Errorf("dry-run preview wrong: %+v", report.After)
	}

	entities, _ := s.ListEntities(context.Background(), 1)
	rels, _ := s.ListRelationships(context.Background(), 1)
	if len(entities) != 0 || len(rels) != 0 {
		t.Errorf("dry run mutated the store: %d entities, %d relationships", len(entities), len(rels))
	}
}

func TestMigrateDryRunDocumentScopeStagedCounts(t *testing.T) {
	// Entities are project-scoped, so Before for a document scope counts
	// the whole containing project while a dry run's After counts only
	// what was staged from that document's chunks.
	s := memory.NewStore()
	s.AddChunk(common.Chunk{ID: "c1", ProjectID: 1, DocumentID: 1, Language: "en", Text: "one"})
	s.AddChunk(common.Chunk{ID: "c2", ProjectID: 1, DocumentID: 2, Language: "en", Text: "two"})

	rec := &scriptedRecognizer{responses: map[string][]ner.Candidate{
		"one": {person("Alice Aus"), person("Bob Berg")},
		"two": {person("Cara Cruz"), person("Dan Doe")},
	}}
	engine := newTestEngine(t, s, rec)

	if _, err := engine.Migrate(context.Background(), MigrationParams{
		Scope: common.Scope{Kind: common.ScopeProject, ProjectID: 1},
		Mode:  ModeApply,
	}); err != nil {
		t.Fatalf("seeding Migrate failed: %v", err)
	}

	report, err := engine.Migrate(context.Background(), MigrationParams{
		Scope: common.Scope{Kind: common.ScopeDocument, ProjectID: 1, DocumentID: 2},
		Mode:  ModeDryRun,
	})
	if err != nil {
		t.Fatalf("dry-run Migrate failed: %v", err)
	}

	if report.Before.Entities != 4 || report.Before.Relationships != 2 {
		t.Errorf("Before should span the containing project: %+v", report.Before)
	}
	if report.After.Entities != 2 || report.After.Relationships != 1 {
		t.Errorf("After should count only staged results: %+v", report.After)
	}

	entities, _ := s.ListEntities(context.Background(), 1)
	rels, _ := s.ListRelationships(context.Background(), 1)
	if len(entities) != 4 || len(rels) != 2 {
		t.Errorf("dry run mutated the store: %d entities, %d relationships", len(entities), len(rels))
	}
}

func TestMigrateScopeNotFound(t *testing.T) {
	engine := newTestEngine(t, memory.NewStore(), &scriptedRecognizer{})

	_, err := engine.Migrate(context.Background(), MigrationParams{
		Scope: common.Scope{Kind: common.ScopeProject, ProjectID: 42},
		Mode:  ModeApply,
	})
	if !errors.Is(err, common.ErrScopeNotFound) {
		t.Errorf("expected ErrScopeNotFound, got %v", err)
	}
}

func TestMigrateEmptyAllScope(t *testing.T) {
	engine := newTestEngine(t, memory.NewStore(), &scriptedRecognizer{})

	report, err := engine.Migrate(context.Background(), MigrationParams{
		Scope: common.Scope{Kind: common.ScopeAll},
		Mode:  ModeApply,
	})
	if err != nil {
		t.Fatalf("empty all-scope should succeed with a zero report, got %v", err)
	}
	if report.ChunksTotal != 0 || report.After.Entities != 0 {
		t.Errorf("unexpected report for empty scope: %+v", report)
	}
}

func TestMigrateSkipsFailingChunk(t *testing.T) {
	s := memory.NewStore()
	s.AddChunk(common.Chunk{ID: "good", ProjectID: 1, DocumentID: 1, Language: "en", Text: "good text"})
	s.AddChunk(common.Chunk{ID: "bad", ProjectID: 1, DocumentID: 1, Language: "en", Text: "bad text"})

	rec := &scriptedRecognizer{
		responses: map[string][]ner.Candidate{
			"good text": {person("Alice Aus"), person("Bob Berg")},
		},
		failOn: map[string]error{"bad text": errors.New("model exploded")},
	}
	engine := newTestEngine(t, s, rec)

	report, err := engine.Migrate(context.Background(), MigrationParams{
		Scope: common.Scope{Kind: common.ScopeProject, ProjectID: 1},
		Mode:  ModeApply,
	})
	if err != nil {
		t.Fatalf("partial failure must not fail the migration: %v", err)
	}
	if report.ChunksProcessed != 1 || report.ChunksSkipped != 1 {
		t.Errorf("chunk counters wrong: %+v", report)
	}
	if len(report.SkippedChunks) != 1 || report.SkippedChunks[0].ChunkID != "bad" {
		t.Errorf("skip report wrong: %+v", report.SkippedChunks)
	}

	entities, _ := s.ListEntities(context.Background(), 1)
	if len(entities) != 2 {
		t.Errorf("good chunk results missing: %v", entities)
	}
}

func TestMigrateUnsupportedLanguageFallsBackToPatterns(t *testing.T) {
	s := memory.NewStore()
	s.AddChunk(common.Chunk{ID: "c1", ProjectID: 1, DocumentID: 1, Language: "xx", Text: "Wir nutzen Kubernetes und PostgreSQL."})

	engine := newTestEngine(t, s, nil)

	report, err := engine.Migrate(context.Background(), MigrationParams{
		Scope: common.Scope{Kind: common.ScopeProject, ProjectID: 1},
		Mode:  ModeApply,
	})
	if err != nil {
		t.Fatalf("unsupported language must not fail the migration: %v", err)
	}
	if report.PatternOnlyChunks != 1 {
		t.Errorf("PatternOnlyChunks = %d, want 1", report.PatternOnlyChunks)
	}

	entities, _ := s.ListEntities(context.Background(), 1)
	names := map[string]bool{}
	for _, e := range entities {
		names[e.Name] = true
	}
	if !names["Kubernetes"] || !names["PostgreSQL"] {
		t.Errorf("pattern fallback missed technical terms: %v", entities)
	}
}

func TestMigrateMergesOrganizationVariantsAcrossChunks(t *testing.T) {
	// A name seen only in one chunk must merge with its variant from
	// another chunk: deduplication needs the scope-wide view.
	s := memory.NewStore()
	s.AddChunk(common.Chunk{ID: "c1", ProjectID: 1, DocumentID: 1, Language: "en", Text: "one"})
	s.AddChunk(common.Chunk{ID: "c2", ProjectID: 1, DocumentID: 1, Language: "en", Text: "two"})

	org := func(name string) ner.Candidate {
		return ner.Candidate{Text: name, Type: common.EntityTypeOrganization}
	}
	rec := &scriptedRecognizer{responses: map[string][]ner.Candidate{
		"one": {org("Microsoft"), person("Alice Aus")},
		"two": {org("Microsoft Corporation"), person("Bob Berg")},
	}}
	engine := newTestEngine(t, s, rec)

	if _, err := engine.Migrate(context.Background(), MigrationParams{
		Scope: common.Scope{Kind: common.ScopeProject, ProjectID: 1},
		Mode:  ModeApply,
	}); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	entities, _ := s.ListEntities(context.Background(), 1)
	orgs := []common.Entity{}
	for _, e := range entities {
		if e.Type == common.EntityTypeOrganization {
			orgs = append(orgs, e)
		}
	}
	if len(orgs) != 1 {
		t.Fatalf("organization variants not merged: %v", orgs)
	}
	if orgs[0].Name != "Microsoft" {
		t.Errorf("normalized canonical name = %q, want %q", orgs[0].Name, "Microsoft")
	}
	if orgs[0].Occurrences != 2 {
		t.Errorf("merged occurrences = %d, want 2", orgs[0].Occurrences)
	}
}

func TestAnalyzeEmptyProject(t *testing.T) {
	engine := newTestEngine(t, memory.NewStore(), &scriptedRecognizer{})

	snap, err := engine.Analyze(context.Background(), 99)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if snap.NodeCount != 0 || snap.EdgeCount != 0 || snap.Density != 0 {
		t.Errorf("empty project snapshot not zero: %+v", snap)
	}
}

func TestNeighborhoodDepth(t *testing.T) {
	s := memory.NewStore()
	s.AddChunk(common.Chunk{ID: "c1", ProjectID: 1, DocumentID: 1, Language: "en", Text: "one"})
	s.AddChunk(common.Chunk{ID: "c2", ProjectID: 1, DocumentID: 1, Language: "en", Text: "two"})
	s.AddChunk(common.Chunk{ID: "c3", ProjectID: 1, DocumentID: 1, Language: "en", Text: "three"})

	rec := &scriptedRecognizer{responses: map[string][]ner.Candidate{
		"one":   {person("Alice Aus"), person("Bob Berg")},
		"two":   {person("Bob Berg"), person("Cara Cruz")},
		"three": {person("Cara Cruz"), person("Dan Doe")},
	}}
	engine := newTestEngine(t, s, rec)
	if _, err := engine.Migrate(context.Background(), MigrationParams{
		Scope: common.Scope{Kind: common.ScopeProject, ProjectID: 1},
		Mode:  ModeApply,
	}); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	entities, _ := s.ListEntities(context.Background(), 1)
	idByName := map[string]string{}
	for _, e := range entities {
		idByName[e.Name] = e.ID
	}

	neighbors, err := Neighborhood(context.Background(), s, 1, idByName["Alice Aus"], 2)
	if err != nil {
		t.Fatalf("Neighborhood failed: %v", err)
	}

	hops := map[string]int{}
	for _, n := range neighbors {
		hops[n.Entity.Name] = n.Hop
	}
	if hops["Bob Berg"] != 1 || hops["Cara Cruz"] != 2 {
		t.Errorf("hop distances wrong: %v", hops)
	}
	if _, ok := hops["Dan Doe"]; ok {
		t.Errorf("depth 2 query returned a 3-hop node: %v", hops)
	}

	for _, n := range neighbors {
		if n.PathWeight <= 0 || n.PathWeight > 1 {
			t.Errorf("path weight %f outside (0, 1]: %+v", n.PathWeight, n)
		}
	}

	if _, err := Neighborhood(context.Background(), s, 1, "missing", 1); !errors.Is(err, common.ErrEntityNotFound) {
		t.Errorf("expected ErrEntityNotFound for unknown root, got %v", err)
	}
}
