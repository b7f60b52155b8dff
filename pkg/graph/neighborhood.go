package graph

import (
	"context"
	"sort"

	"github.com/atlasgraph/atlas/pkg/common"
	"github.com/atlasgraph/atlas/pkg/store"
)

// Neighbor is one entity reachable from the query root, annotated with its
// hop distance and the accumulated weight of the strongest path found.
type Neighbor struct {
	Entity     common.Entity `json:"entity"`
	Hop        int           `json:"hop"`
	PathWeight float64       `json:"path_weight"`
	// EdgeWeight is the weight of the edge this node was reached through.
	EdgeWeight float64 `json:"edge_weight"`
}

// Neighborhood resolves the k-hop neighborhood of one entity. Traversal is
// breadth-first over hop count; when a node is reachable through several
// same-length paths the strongest one (largest product of edge weights)
// wins. The root itself is not part of the result.
func Neighborhood(ctx context.Context, s store.Storage, projectID int64, rootID string, depth int) ([]Neighbor, error) {
	if depth <= 0 {
		depth = 1
	}

	if _, err := s.GetEntity(ctx, projectID, rootID); err != nil {
		return nil, err
	}
	entities, err := s.ListEntities(ctx, projectID)
	if err != nil {
		return nil, err
	}
	relationships, err := s.ListRelationships(ctx, projectID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]common.Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}

	type edge struct {
		to     string
		weight float64
	}
	adj := make(map[string][]edge)
	for _, r := range relationships {
		adj[r.EntityA] = append(adj[r.EntityA], edge{to: r.EntityB, weight: r.Weight})
		adj[r.EntityB] = append(adj[r.EntityB], edge{to: r.EntityA, weight: r.Weight})
	}

	visited := map[string]*Neighbor{rootID: {Hop: 0, PathWeight: 1}}
	frontier := []string{rootID}

	for hop := 1; hop <= depth && len(frontier) > 0; hop++ {
		next := []string{}
		for _, from := range frontier {
			base := visited[from].PathWeight
			for _, e := range adj[from] {
				pathWeight := base * e.weight
				if prev, ok := visited[e.to]; ok {
					// Same-hop rediscovery through a stronger path.
					if prev.Hop == hop && pathWeight > prev.PathWeight {
						prev.PathWeight = pathWeight
						prev.EdgeWeight = e.weight
					}
					continue
				}
				visited[e.to] = &Neighbor{
					Entity:     byID[e.to],
					Hop:        hop,
					PathWeight: pathWeight,
					EdgeWeight: e.weight,
				}
				next = append(next, e.to)
			}
		}
		frontier = next
	}

	out := make([]Neighbor, 0, len(visited)-1)
	for id, n := range visited {
		if id == rootID {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hop != out[j].Hop {
			return out[i].Hop < out[j].Hop
		}
		if out[i].PathWeight != out[j].PathWeight {
			return out[i].PathWeight > out[j].PathWeight
		}
		return out[i].Entity.ID < out[j].Entity.ID
	})
	return out, nil
}
