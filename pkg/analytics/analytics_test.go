package analytics

import (
	"math"
	"testing"

	"github.com/atlasgraph/atlas/pkg/common"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func starGraph() ([]common.Entity, []common.Relationship) {
	entities := []common.Entity{
		{ID: "hub", Name: "Hub", Type: common.EntityTypeOrganization},
		{ID: "a", Name: "A", Type: common.EntityTypePerson},
		{ID: "b", Name: "B", Type: common.EntityTypePerson},
		{ID: "c", Name: "C", Type: common.EntityTypePerson},
	}
	relationships := []common.Relationship{
		{EntityA: "a", EntityB: "hub", CoOccurrences: 1, Weight: 1.0},
		{EntityA: "b", EntityB: "hub", CoOccurrences: 1, Weight: 1.0},
		{EntityA: "c", EntityB: "hub", CoOccurrences: 1, Weight: 1.0},
	}
	return entities, relationships
}

func TestSnapshotEmptyScope(t *testing.T) {
	snap := NewAnalyzer(nil).Snapshot(nil, nil)

	if snap.NodeCount != 0 || snap.EdgeCount != 0 {
		t.Errorf("empty scope should have zero counts, got %+v", snap)
	}
	if snap.Density != 0 || snap.AverageDegree != 0 || snap.ComponentCount != 0 {
		t.Errorf("empty scope aggregates should be zero, got %+v", snap)
	}
	if len(snap.Nodes) != 0 {
		t.Errorf("empty scope should have no per-node scores, got %d", len(snap.Nodes))
	}
}

func TestSnapshotSingleNode(t *testing.T) {
	entities := []common.Entity{{ID: "only", Name: "Only", Type: common.EntityTypeConcept}}

	snap := NewAnalyzer(nil).Snapshot(entities, nil)

	if snap.NodeCount != 1 || snap.EdgeCount != 0 || snap.Density != 0 {
		t.Errorf("unexpected aggregates: %+v", snap)
	}
	if snap.ComponentCount != 1 {
		t.Errorf("ComponentCount = %d, want 1", snap.ComponentCount)
	}
	m := snap.Nodes["only"]
	if m.Degree != 0 || m.Betweenness != 0 || m.Closeness != 0 || m.Eigenvector != 0 {
		t.Errorf("single node centralities should be zero, got %+v", m)
	}
}

func TestSnapshotStarGraph(t *testing.T) {
	entities, relationships := starGraph()

	snap := NewAnalyzer(nil).Snapshot(entities, relationships)

	if snap.NodeCount != 4 || snap.EdgeCount != 3 {
		t.Fatalf("counts wrong: %+v", snap)
	}
	if !almostEqual(snap.Density, 0.5) {
		t.Errorf("Density = %f, want 0.5", snap.Density)
	}
	if !almostEqual(snap.AverageDegree, 1.5) {
		t.Errorf("AverageDegree = %f, want 1.5", snap.AverageDegree)
	}
	if snap.ComponentCount != 1 {
		t.Errorf("ComponentCount = %d, want 1", snap.ComponentCount)
	}

	hub := snap.Nodes["hub"]
	if !almostEqual(hub.Degree, 1.0) {
		t.Errorf("hub degree = %f, want 1.0", hub.Degree)
	}
	if !almostEqual(hub.Betweenness, 1.0) {
		t.Errorf("hub betweenness = %f, want 1.0", hub.Betweenness)
	}
	if !almostEqual(hub.Closeness, 1.0) {
		t.Errorf("hub closeness = %f, want 1.0", hub.Closeness)
	}
	if !almostEqual(hub.Eigenvector, 1.0) {
		t.Errorf("hub eigenvector = %f, want 1.0", hub.Eigenvector)
	}

	leaf := snap.Nodes["a"]
	if !almostEqual(leaf.Degree, 1.0/3.0) {
		t.Errorf("leaf degree = %f, want 1/3", leaf.Degree)
	}
	if leaf.Betweenness != 0 {
		t.Errorf("leaf betweenness = %f, want 0", leaf.Betweenness)
	}
	if !almostEqual(leaf.Closeness, 0.6) {
		t.Errorf("leaf closeness = %f, want 0.6", leaf.Closeness)
	}
	if leaf.Eigenvector <= 0 || leaf.Eigenvector >= 1 {
		t.Errorf("leaf eigenvector = %f, want within (0, 1)", leaf.Eigenvector)
	}

	// All leaves are symmetric.
	for _, id := range []string{"b", "c"} {
		if snap.Nodes[id] != leaf {
			t.Errorf("leaf %s metrics differ from leaf a: %+v vs %+v", id, snap.Nodes[id], leaf)
		}
	}
}

func TestSnapshotIsolatedNode(t *testing.T) {
	entities, relationships := starGraph()
	entities = append(entities, common.Entity{ID: "alone", Name: "Alone", Type: common.EntityTypeConcept})

	snap := NewAnalyzer(nil).Snapshot(entities, relationships)

	if snap.ComponentCount != 2 {
		t.Errorf("ComponentCount = %d, want 2", snap.ComponentCount)
	}
	m := snap.Nodes["alone"]
	if m.Degree != 0 || m.Closeness != 0 || m.Eigenvector != 0 {
		t.Errorf("isolated node should score 0 on reachability measures, got %+v", m)
	}

	// The isolated node must sit in a community of its own.
	for id, other := range snap.Nodes {
		if id != "alone" && other.Community == m.Community {
			t.Errorf("isolated node shares community %d with %s", m.Community, id)
		}
	}
}

func TestSnapshotSkipsDanglingRelationships(t *testing.T) {
	entities := []common.Entity{
		{ID: "a", Name: "A", Type: common.EntityTypePerson},
		{ID: "b", Name: "B", Type: common.EntityTypePerson},
	}
	relationships := []common.Relationship{
		{EntityA: "a", EntityB: "b", Weight: 1.0},
		{EntityA: "a", EntityB: "ghost", Weight: 1.0},
	}

	snap := NewAnalyzer(nil).Snapshot(entities, relationships)
	if snap.EdgeCount != 1 {
		t.Errorf("dangling relationship counted: EdgeCount = %d, want 1", snap.EdgeCount)
	}
}

func TestLabelPropagationTwoCliques(t *testing.T) {
	// Two triangles joined by one bridge edge. Whether the bridge collapses
	// both sides into one community depends on the propagation order, but
	// each triangle must always end up internally consistent.
	entities := []common.Entity{
		{ID: "a1"}, {ID: "a2"}, {ID: "a3"},
		{ID: "b1"}, {ID: "b2"}, {ID: "b3"},
	}
	relationships := []common.Relationship{
		{EntityA: "a1", EntityB: "a2", Weight: 1},
		{EntityA: "a2", EntityB: "a3", Weight: 1},
		{EntityA: "a1", EntityB: "a3", Weight: 1},
		{EntityA: "b1", EntityB: "b2", Weight: 1},
		{EntityA: "b2", EntityB: "b3", Weight: 1},
		{EntityA: "b1", EntityB: "b3", Weight: 1},
		{EntityA: "a3", EntityB: "b1", Weight: 1},
	}

	labels := NewLabelPropagation().Communities(NewGraph(entities, relationships))

	if labels[0] != labels[1] || labels[1] != labels[2] {
		t.Errorf("first clique split: %v", labels)
	}
	if labels[3] != labels[4] || labels[4] != labels[5] {
		t.Errorf("second clique split: %v", labels)
	}
}

func TestLabelPropagationDeterministic(t *testing.T) {
	entities, relationships := starGraph()
	g := NewGraph(entities, relationships)
	det := NewLabelPropagation()

	first := det.Communities(g)
	for i := 0; i < 5; i++ {
		again := det.Communities(g)
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("labels changed between runs: %v vs %v", first, again)
			}
		}
	}
}
