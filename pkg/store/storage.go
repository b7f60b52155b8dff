// Package store defines the persistence contract for the entity graph.
package store

import (
	"context"

	"github.com/atlasgraph/atlas/pkg/common"
)

// Stats summarizes the persisted graph inside one scope. For document
// scopes the counts cover the containing project, since entities are
// project-scoped and a per-document count would be meaningless.
type Stats struct {
	Entities      int `json:"entity_count"`
	Relationships int `json:"relationship_count"`
}

// Storage persists and queries the entity graph. Implementations must keep
// entities and relationships strictly inside their project scope: no
// operation may read or mutate rows of another project unless the scope
// explicitly spans all projects.
//
// ClearScope must be transactional: either the whole scope is cleared or
// nothing is, so a failed clear never leaves partial deletions behind.
type Storage interface {
	// ListChunks enumerates the chunks a migration over the scope must
	// process. The result may be empty; existence checks are the caller's
	// concern.
	ListChunks(ctx context.Context, scope common.Scope) ([]common.Chunk, error)

	// ScopeStats reports entity and relationship counts for reporting
	// before/after deltas.
	ScopeStats(ctx context.Context, scope common.Scope) (Stats, error)

	// ClearScope removes all mentions, entities and relationships that the
	// scope contributed. Chunks are external input and are never touched.
	// Clearing a document scope removes that document's mentions, drops
	// entities left without mentions, recounts the occurrence totals of the
	// survivors and rebuilds the project's relationships from the remaining
	// mentions.
	ClearScope(ctx context.Context, scope common.Scope) error

	// UpsertEntity creates the entity or, when the (name, type) pair already
	// exists in the project, adds occurrences to its count. Returns the
	// entity's public id either way.
	UpsertEntity(ctx context.Context, projectID int64, name string, entityType common.EntityType, occurrences int) (string, error)

	// AddMentions records raw surface forms against their entities.
	AddMentions(ctx context.Context, projectID int64, mentions []common.Mention) error

	// RecordCoOccurrence upserts the undirected edge between two entities,
	// incrementing its co-occurrence count. The pair is canonicalized
	// internally; callers may pass the ids in either order. Passing the same
	// id twice is a no-op, never a self-loop.
	RecordCoOccurrence(ctx context.Context, projectID int64, entityA, entityB string) error

	// RecomputeWeights derives every relationship weight in the project as
	// its co-occurrence count normalized against the project maximum, so
	// weights land in (0, 1] and at least one edge carries 1.0.
	RecomputeWeights(ctx context.Context, projectID int64) error

	ListEntities(ctx context.Context, projectID int64) ([]common.Entity, error)
	ListRelationships(ctx context.Context, projectID int64) ([]common.Relationship, error)

	// GetEntity resolves one entity by public id within a project.
	GetEntity(ctx context.Context, projectID int64, entityID string) (common.Entity, error)

	// ListProjectIDs returns the distinct project ids that own chunks inside
	// the scope, so a migration over the all-scope can recompute weights per
	// project.
	ListProjectIDs(ctx context.Context, scope common.Scope) ([]int64, error)
}
