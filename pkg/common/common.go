package common

import "strings"

// EntityType classifies a graph node. The set is closed so downstream
// consumers can branch exhaustively; labels outside the set map to
// EntityTypeOther.
type EntityType string

const (
	EntityTypePerson       EntityType = "person"
	EntityTypeOrganization EntityType = "organization"
	EntityTypeLocation     EntityType = "location"
	EntityTypeConcept      EntityType = "concept"
	EntityTypeProduct      EntityType = "product"
	EntityTypeEvent        EntityType = "event"
	EntityTypeOther        EntityType = "other"
)

// EntityTypes lists every known entity type in a stable order.
var EntityTypes = []EntityType{
	EntityTypePerson,
	EntityTypeOrganization,
	EntityTypeLocation,
	EntityTypeConcept,
	EntityTypeProduct,
	EntityTypeEvent,
	EntityTypeOther,
}

// ParseEntityType maps an arbitrary label to a known EntityType.
// Unknown labels fall back to EntityTypeOther.
func ParseEntityType(label string) EntityType {
	switch EntityType(strings.ToLower(strings.TrimSpace(label))) {
	case EntityTypePerson:
		return EntityTypePerson
	case EntityTypeOrganization:
		return EntityTypeOrganization
	case EntityTypeLocation:
		return EntityTypeLocation
	case EntityTypeConcept:
		return EntityTypeConcept
	case EntityTypeProduct:
		return EntityTypeProduct
	case EntityTypeEvent:
		return EntityTypeEvent
	default:
		return EntityTypeOther
	}
}

// Chunk is one segment of document text handed to the engine by the
// upstream chunking subsystem. The engine never creates or mutates chunks;
// it only reads them.
type Chunk struct {
	ID         string `json:"id"`
	ProjectID  int64  `json:"project_id"`
	DocumentID int64  `json:"document_id"`
	Language   string `json:"language"`
	Text       string `json:"text"`
}

// Entity represents a canonical node in the knowledge graph. Within one
// project no two entities share the same (canonical name, type) pair.
type Entity struct {
	ID          string     `json:"id"`
	ProjectID   int64      `json:"project_id"`
	Name        string     `json:"name"`
	Type        EntityType `json:"type"`
	Occurrences int        `json:"occurrence_count"`
}

// Mention records a single occurrence of an entity inside a chunk, keeping
// the raw surface form as extracted, before normalization.
type Mention struct {
	ID       string `json:"id"`
	EntityID string `json:"entity_id"`
	ChunkID  string `json:"chunk_id"`
	RawText  string `json:"raw_text"`
}

// Relationship is an undirected weighted edge between two entities that
// co-occurred in at least one chunk. The pair is stored canonically so at
// most one row exists per unordered pair.
type Relationship struct {
	ID            string  `json:"id"`
	ProjectID     int64   `json:"project_id"`
	EntityA       string  `json:"entity_a"`
	EntityB       string  `json:"entity_b"`
	CoOccurrences int     `json:"co_occurrence_count"`
	Weight        float64 `json:"weight"`
}

// ScopeKind selects the isolation boundary a migration or query operates on.
type ScopeKind string

const (
	ScopeDocument ScopeKind = "document"
	ScopeProject  ScopeKind = "project"
	ScopeAll      ScopeKind = "all"
)

// Scope identifies one migration/analysis target. ProjectID is required for
// document and project scopes, DocumentID only for document scope.
type Scope struct {
	Kind       ScopeKind `json:"kind"`
	ProjectID  int64     `json:"project_id,omitempty"`
	DocumentID int64     `json:"document_id,omitempty"`
}

// NodeMetrics holds the per-entity structural scores of one snapshot.
type NodeMetrics struct {
	Degree      float64 `json:"degree"`
	Betweenness float64 `json:"betweenness"`
	Closeness   float64 `json:"closeness"`
	Eigenvector float64 `json:"eigenvector"`
	Community   int     `json:"community"`
}

// GraphSnapshot is the computed view of one project graph at one point in
// time. It is derived entirely from the stored entities and relationships
// and may be cached, but is never the source of truth.
type GraphSnapshot struct {
	NodeCount      int                    `json:"node_count"`
	EdgeCount      int                    `json:"edge_count"`
	Density        float64                `json:"density"`
	ComponentCount int                    `json:"component_count"`
	AverageDegree  float64                `json:"average_degree"`
	Nodes          map[string]NodeMetrics `json:"nodes"`
}
