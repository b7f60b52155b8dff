// Package analytics computes centrality scores, community labels and
// aggregate statistics over a fully materialized entity graph. Everything
// here is a pure batch computation over the entities and relationships it
// is handed; it never touches the store.
package analytics

import (
	"math"

	"github.com/atlasgraph/atlas/pkg/common"
)

// Graph is an immutable undirected weighted adjacency view built from
// entities and relationships. Node order follows the entity input order.
type Graph struct {
	IDs     []string
	Adj     [][]int
	Weights [][]float64
}

// NewGraph builds the adjacency view. Relationships referencing unknown
// entity ids are skipped rather than failing the whole computation.
func NewGraph(entities []common.Entity, relationships []common.Relationship) *Graph {
	g := &Graph{
		IDs:     make([]string, len(entities)),
		Adj:     make([][]int, len(entities)),
		Weights: make([][]float64, len(entities)),
	}
	index := make(map[string]int, len(entities))
	for i, e := range entities {
		g.IDs[i] = e.ID
		index[e.ID] = i
	}

	for _, r := range relationships {
		a, okA := index[r.EntityA]
		b, okB := index[r.EntityB]
		if !okA || !okB || a == b {
			continue
		}
		g.Adj[a] = append(g.Adj[a], b)
		g.Weights[a] = append(g.Weights[a], r.Weight)
		g.Adj[b] = append(g.Adj[b], a)
		g.Weights[b] = append(g.Weights[b], r.Weight)
	}
	return g
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.IDs) }

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int {
	total := 0
	for _, nbrs := range g.Adj {
		total += len(nbrs)
	}
	return total / 2
}

// Analyzer computes graph snapshots. The community detection strategy is
// pluggable so alternative algorithms can be swapped in without touching
// the centrality code.
type Analyzer struct {
	communities CommunityDetector
}

// NewAnalyzer creates an analyzer. A nil detector falls back to
// deterministic label propagation.
func NewAnalyzer(detector CommunityDetector) *Analyzer {
	if detector == nil {
		detector = NewLabelPropagation()
	}
	return &Analyzer{communities: detector}
}

// Snapshot computes per-node centralities, community labels and scope
// aggregates. An empty input yields a snapshot with zero aggregates and an
// empty node map, never an error. Isolated nodes get 0 for the
// reachability-based measures (closeness, eigenvector) instead of failing.
func (a *Analyzer) Snapshot(entities []common.Entity, relationships []common.Relationship) common.GraphSnapshot {
	g := NewGraph(entities, relationships)
	n := g.NodeCount()
	e := g.EdgeCount()

	snap := common.GraphSnapshot{
		NodeCount: n,
		EdgeCount: e,
		Nodes:     make(map[string]common.NodeMetrics, n),
	}
	if n == 0 {
		return snap
	}

	if n >= 2 {
		snap.Density = 2.0 * float64(e) / (float64(n) * float64(n-1))
	}
	snap.AverageDegree = 2.0 * float64(e) / float64(n)
	snap.ComponentCount = countComponents(g)

	degree := degreeCentrality(g)
	betweenness := betweennessCentrality(g)
	closeness := closenessCentrality(g)
	eigenvector := eigenvectorCentrality(g)
	community := a.communities.Communities(g)

	for i, id := range g.IDs {
		snap.Nodes[id] = common.NodeMetrics{
			Degree:      degree[i],
			Betweenness: betweenness[i],
			Closeness:   closeness[i],
			Eigenvector: eigenvector[i],
			Community:   community[i],
		}
	}
	return snap
}

func countComponents(g *Graph) int {
	n := g.NodeCount()
	visited := make([]bool, n)
	count := 0
	queue := make([]int, 0, n)

	for s := 0; s < n; s++ {
		if visited[s] {
			continue
		}
		count++
		visited[s] = true
		queue = append(queue[:0], s)
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			for _, w := range g.Adj[v] {
				if !visited[w] {
					visited[w] = true
					queue = append(queue, w)
				}
			}
		}
	}
	return count
}

// degreeCentrality normalizes each node's degree by n-1.
func degreeCentrality(g *Graph) []float64 {
	n := g.NodeCount()
	out := make([]float64, n)
	if n < 2 {
		return out
	}
	for i := range g.Adj {
		out[i] = float64(len(g.Adj[i])) / float64(n-1)
	}
	return out
}

// betweennessCentrality implements Brandes' algorithm over unweighted
// shortest paths, normalized to [0,1] by the maximum possible pair count
// (n-1)(n-2)/2 for an undirected graph.
func betweennessCentrality(g *Graph) []float64 {
	n := g.NodeCount()
	bc := make([]float64, n)
	if n < 3 {
		return bc
	}

	sigma := make([]float64, n)
	dist := make([]int, n)
	delta := make([]float64, n)
	preds := make([][]int, n)
	stack := make([]int, 0, n)
	queue := make([]int, 0, n)

	for s := 0; s < n; s++ {
		for i := 0; i < n; i++ {
			sigma[i] = 0
			dist[i] = -1
			delta[i] = 0
			preds[i] = preds[i][:0]
		}
		sigma[s] = 1
		dist[s] = 0
		stack = stack[:0]
		queue = append(queue[:0], s)

		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range g.Adj[v] {
				if dist[w] < 0 {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					preds[w] = append(preds[w], v)
				}
			}
		}

		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range preds[w] {
				delta[v] += (sigma[v] / sigma[w]) * (1 + delta[w])
			}
			if w != s {
				bc[w] += delta[w]
			}
		}
	}

	// Each undirected pair was counted from both endpoints.
	scale := 1.0 / (float64(n-1) * float64(n-2))
	for i := range bc {
		bc[i] *= scale
	}
	return bc
}

// closenessCentrality uses the Wasserman-Faust variant, which scales each
// node's score by the fraction of the graph it can reach. Disconnected
// components therefore get comparable, not inflated, values and isolated
// nodes score 0.
func closenessCentrality(g *Graph) []float64 {
	n := g.NodeCount()
	out := make([]float64, n)
	if n < 2 {
		return out
	}

	dist := make([]int, n)
	queue := make([]int, 0, n)

	for s := 0; s < n; s++ {
		for i := range dist {
			dist[i] = -1
		}
		dist[s] = 0
		queue = append(queue[:0], s)

		sum := 0
		reached := 1
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			for _, w := range g.Adj[v] {
				if dist[w] < 0 {
					dist[w] = dist[v] + 1
					sum += dist[w]
					reached++
					queue = append(queue, w)
				}
			}
		}

		if sum > 0 {
			out[s] = (float64(reached-1) / float64(sum)) * (float64(reached-1) / float64(n-1))
		}
	}
	return out
}

const (
	eigenvectorMaxIterations = 100
	eigenvectorTolerance     = 1e-6
)

// eigenvectorCentrality runs weighted power iteration and normalizes the
// result so the most central node scores 1.0.
func eigenvectorCentrality(g *Graph) []float64 {
	n := g.NodeCount()
	out := make([]float64, n)
	if n == 0 || g.EdgeCount() == 0 {
		return out
	}

	x := make([]float64, n)
	next := make([]float64, n)
	for i := range x {
		x[i] = 1.0 / float64(n)
	}

	for iter := 0; iter < eigenvectorMaxIterations; iter++ {
		norm := 0.0
		for i := range next {
			next[i] = 0
		}
		for v := range g.Adj {
			for j, w := range g.Adj[v] {
				weight := g.Weights[v][j]
				if weight <= 0 {
					weight = 1
				}
				next[w] += x[v] * weight
			}
		}
		for i := range next {
			norm += next[i] * next[i]
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			break
		}

		diff := 0.0
		for i := range next {
			next[i] /= norm
			diff += math.Abs(next[i] - x[i])
		}
		x, next = next, x
		if diff < eigenvectorTolerance {
			break
		}
	}

	maxVal := 0.0
	for _, v := range x {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal == 0 {
		return out
	}
	for i, v := range x {
		out[i] = v / maxVal
	}
	return out
}
