package analytics

// CommunityDetector assigns a community label to every node of a graph.
// Labels are arbitrary but consistent within one call; singleton nodes each
// form their own community.
type CommunityDetector interface {
	Communities(g *Graph) []int
}

const labelPropagationMaxRounds = 50

// LabelPropagation is a deterministic variant of label propagation: nodes
// are visited in index order and ties between equally frequent neighbor
// labels go to the smallest label. Determinism costs some mixing quality
// compared to randomized visiting but makes results reproducible.
type LabelPropagation struct{}

// NewLabelPropagation creates the default community detector.
func NewLabelPropagation() *LabelPropagation {
	return &LabelPropagation{}
}

// Communities propagates labels until stable or the round limit is hit,
// then compacts labels to a dense 0-based range in first-seen node order.
func (l *LabelPropagation) Communities(g *Graph) []int {
	n := g.NodeCount()
	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
	}

	counts := make(map[int]int)
	for round := 0; round < labelPropagationMaxRounds; round++ {
		changed := false
		for v := 0; v < n; v++ {
			if len(g.Adj[v]) == 0 {
				continue
			}

			clear(counts)
			for _, w := range g.Adj[v] {
				counts[labels[w]]++
			}

			best := labels[v]
			bestCount := 0
			for label, count := range counts {
				if count > bestCount || (count == bestCount && label < best) {
					best = label
					bestCount = count
				}
			}

			if best != labels[v] {
				labels[v] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	// Compact to 0..k-1 in first-seen order so labels are stable across runs.
	compact := make(map[int]int)
	out := make([]int, n)
	for i, label := range labels {
		id, ok := compact[label]
		if !ok {
			id = len(compact)
			compact[label] = id
		}
		out[i] = id
	}
	return out
}
