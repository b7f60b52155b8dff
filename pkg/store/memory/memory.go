// Package memory implements store.Storage entirely in process memory. It
// backs the dry-run staging path and the test suites; it is not meant for
// production persistence.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/atlasgraph/atlas/internal/util"
	"github.com/atlasgraph/atlas/pkg/common"
	"github.com/atlasgraph/atlas/pkg/store"
)

type entityRecord struct {
	id          string
	projectID   int64
	name        string
	entityType  common.EntityType
	occurrences int
}

type relationshipRecord struct {
	id            string
	projectID     int64
	entityA       string
	entityB       string
	coOccurrences int
	weight        float64
}

// Store holds the whole graph behind one mutex. Operations match the
// transactional semantics of the Postgres implementation closely enough for
// the pipeline tests to exercise real clear-and-rebuild behavior.
type Store struct {
	mu            sync.Mutex
	chunks        []common.Chunk
	entities      map[string]*entityRecord
	entityOrder   []string
	mentions      []common.Mention
	relationships map[string]*relationshipRecord
	relOrder      []string
}

var _ store.Storage = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		entities:      make(map[string]*entityRecord),
		relationships: make(map[string]*relationshipRecord),
	}
}

// AddChunk seeds one chunk. Chunks are external input in production; tests
// and dry-run staging use this to provide them.
func (s *Store) AddChunk(chunk common.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chunk.ID == "" {
		chunk.ID = util.MustPublicID()
	}
	s.chunks = append(s.chunks, chunk)
}

func scopeMatchesChunk(scope common.Scope, c common.Chunk) bool {
	switch scope.Kind {
	case common.ScopeDocument:
		return c.ProjectID == scope.ProjectID && c.DocumentID == scope.DocumentID
	case common.ScopeProject:
		return c.ProjectID == scope.ProjectID
	default:
		return true
	}
}

func (s *Store) ListChunks(_ context.Context, scope common.Scope) ([]common.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []common.Chunk
	for _, c := range s.chunks {
		if scopeMatchesChunk(scope, c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) ListProjectIDs(_ context.Context, scope common.Scope) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[int64]struct{})
	var out []int64
	for _, c := range s.chunks {
		if !scopeMatchesChunk(scope, c) {
			continue
		}
		if _, ok := seen[c.ProjectID]; ok {
			continue
		}
		seen[c.ProjectID] = struct{}{}
		out = append(out, c.ProjectID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) ScopeStats(_ context.Context, scope common.Scope) (store.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats store.Stats
	for _, e := range s.entities {
		if scope.Kind == common.ScopeAll || e.projectID == scope.ProjectID {
			stats.Entities++
		}
	}
	for _, r := range s.relationships {
		if scope.Kind == common.ScopeAll || r.projectID == scope.ProjectID {
			stats.Relationships++
		}
	}
	return stats, nil
}

func (s *Store) ClearScope(_ context.Context, scope common.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch scope.Kind {
	case common.ScopeAll:
		s.entities = make(map[string]*entityRecord)
		s.entityOrder = nil
		s.mentions = nil
		s.relationships = make(map[string]*relationshipRecord)
		s.relOrder = nil
		return nil

	case common.ScopeProject:
		s.removeProjectGraph(scope.ProjectID)
		return nil

	case common.ScopeDocument:
		s.clearDocument(scope)
		return nil
	}
	return nil
}

func (s *Store) removeProjectGraph(projectID int64) {
	for id, e := range s.entities {
		if e.projectID == projectID {
			delete(s.entities, id)
		}
	}
	s.entityOrder = filterIDs(s.entityOrder, func(id string) bool {
		_, ok := s.entities[id]
		return ok
	})

	kept := s.mentions[:0]
	for _, m := range s.mentions {
		if _, ok := s.entities[m.EntityID]; ok {
			kept = append(kept, m)
		}
	}
	s.mentions = kept

	for id, r := range s.relationships {
		if r.projectID == projectID {
			delete(s.relationships, id)
		}
	}
	s.relOrder = filterIDs(s.relOrder, func(id string) bool {
		_, ok := s.relationships[id]
		return ok
	})
}

// clearDocument removes one document's mentions, drops entities left without
// mentions, recounts survivors and rebuilds the project's relationships from
// the remaining mentions.
func (s *Store) clearDocument(scope common.Scope) {
	docChunks := make(map[string]struct{})
	projectChunks := make(map[string]struct{})
	for _, c := range s.chunks {
		if c.ProjectID != scope.ProjectID {
			continue
		}
		projectChunks[c.ID] = struct{}{}
		if c.DocumentID == scope.DocumentID {
			docChunks[c.ID] = struct{}{}
		}
	}

	kept := s.mentions[:0]
	for _, m := range s.mentions {
		if _, ok := docChunks[m.ChunkID]; ok {
			continue
		}
		kept = append(kept, m)
	}
	s.mentions = kept

	// Recount occurrences and drop project entities with no mentions left.
	counts := make(map[string]int)
	for _, m := range s.mentions {
		counts[m.EntityID]++
	}
	for id, e := range s.entities {
		if e.projectID != scope.ProjectID {
			continue
		}
		if counts[id] == 0 {
			delete(s.entities, id)
			continue
		}
		e.occurrences = counts[id]
	}
	s.entityOrder = filterIDs(s.entityOrder, func(id string) bool {
		_, ok := s.entities[id]
		return ok
	})

	// Relationships for the project are derived data; rebuild them from the
	// mentions that survived.
	for id, r := range s.relationships {
		if r.projectID == scope.ProjectID {
			delete(s.relationships, id)
		}
	}
	s.relOrder = filterIDs(s.relOrder, func(id string) bool {
		_, ok := s.relationships[id]
		return ok
	})

	byChunk := make(map[string][]string)
	for _, m := range s.mentions {
		if _, ok := projectChunks[m.ChunkID]; !ok {
			continue
		}
		byChunk[m.ChunkID] = append(byChunk[m.ChunkID], m.EntityID)
	}
	chunkIDs := make([]string, 0, len(byChunk))
	for id := range byChunk {
		chunkIDs = append(chunkIDs, id)
	}
	sort.Strings(chunkIDs)
	for _, chunkID := range chunkIDs {
		ids := uniqueSorted(byChunk[chunkID])
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				s.upsertRelationship(scope.ProjectID, ids[i], ids[j])
			}
		}
	}
}

func filterIDs(ids []string, keep func(string) bool) []string {
	out := ids[:0]
	for _, id := range ids {
		if keep(id) {
			out = append(out, id)
		}
	}
	return out
}

func uniqueSorted(ids []string) []string {
	sort.Strings(ids)
	out := ids[:0]
	for i, id := range ids {
		if i == 0 || ids[i-1] != id {
			out = append(out, id)
		}
	}
	return out
}

func (s *Store) UpsertEntity(_ context.Context, projectID int64, name string, entityType common.EntityType, occurrences int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.entityOrder {
		e := s.entities[id]
		if e.projectID == projectID && e.name == name && e.entityType == entityType {
			e.occurrences += occurrences
			return e.id, nil
		}
	}

	id := util.MustPublicID()
	s.entities[id] = &entityRecord{
		id:          id,
		projectID:   projectID,
		name:        name,
		entityType:  entityType,
		occurrences: occurrences,
	}
	s.entityOrder = append(s.entityOrder, id)
	return id, nil
}

func (s *Store) AddMentions(_ context.Context, _ int64, mentions []common.Mention) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range mentions {
		if m.ID == "" {
			m.ID = util.MustPublicID()
		}
		s.mentions = append(s.mentions, m)
	}
	return nil
}

func (s *Store) RecordCoOccurrence(_ context.Context, projectID int64, entityA, entityB string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertRelationship(projectID, entityA, entityB)
	return nil
}

func (s *Store) upsertRelationship(projectID int64, entityA, entityB string) {
	if entityA == entityB || entityA == "" || entityB == "" {
		return
	}
	if strings.Compare(entityA, entityB) > 0 {
		entityA, entityB = entityB, entityA
	}

	for _, id := range s.relOrder {
		r := s.relationships[id]
		if r.projectID == projectID && r.entityA == entityA && r.entityB == entityB {
			r.coOccurrences++
			return
		}
	}

	id := util.MustPublicID()
	s.relationships[id] = &relationshipRecord{
		id:            id,
		projectID:     projectID,
		entityA:       entityA,
		entityB:       entityB,
		coOccurrences: 1,
	}
	s.relOrder = append(s.relOrder, id)
}

func (s *Store) RecomputeWeights(_ context.Context, projectID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxCount := 0
	for _, r := range s.relationships {
		if r.projectID == projectID && r.coOccurrences > maxCount {
			maxCount = r.coOccurrences
		}
	}
	if maxCount == 0 {
		return nil
	}
	for _, r := range s.relationships {
		if r.projectID == projectID {
			r.weight = float64(r.coOccurrences) / float64(maxCount)
		}
	}
	return nil
}

func (s *Store) ListEntities(_ context.Context, projectID int64) ([]common.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []common.Entity{}
	for _, id := range s.entityOrder {
		e := s.entities[id]
		if e.projectID != projectID {
			continue
		}
		out = append(out, common.Entity{
			ID:          e.id,
			ProjectID:   e.projectID,
			Name:        e.name,
			Type:        e.entityType,
			Occurrences: e.occurrences,
		})
	}
	return out, nil
}

func (s *Store) ListRelationships(_ context.Context, projectID int64) ([]common.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []common.Relationship{}
	for _, id := range s.relOrder {
		r := s.relationships[id]
		if r.projectID != projectID {
			continue
		}
		out = append(out, common.Relationship{
			ID:            r.id,
			ProjectID:     r.projectID,
			EntityA:       r.entityA,
			EntityB:       r.entityB,
			CoOccurrences: r.coOccurrences,
			Weight:        r.weight,
		})
	}
	return out, nil
}

func (s *Store) GetEntity(_ context.Context, projectID int64, entityID string) (common.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[entityID]
	if !ok || e.projectID != projectID {
		return common.Entity{}, common.ErrEntityNotFound
	}
	return common.Entity{
		ID:          e.id,
		ProjectID:   e.projectID,
		Name:        e.name,
		Type:        e.entityType,
		Occurrences: e.occurrences,
	}, nil
}
