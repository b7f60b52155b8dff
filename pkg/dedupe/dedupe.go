// Package dedupe clusters normalized entity candidates by approximate
// string similarity. Clustering is a pure function of the input batch and
// the threshold, so passes are reproducible: no state survives between
// calls.
package dedupe

import (
	"strings"
	"unicode/utf8"

	"github.com/atlasgraph/atlas/pkg/common"
)

// DefaultThreshold is the recommended operating point. Empirically,
// 0.70-0.75 over-merges distinct entities and 0.90+ splits obvious
// variants; 0.80-0.85 balances the two. Callers can override per pass.
const DefaultThreshold = 0.85

// Candidate is one normalized (name, type) pair entering a deduplication pass.
type Candidate struct {
	Name string
	Type common.EntityType
}

// Result holds the collapsed clusters of one pass. Representatives is one
// candidate per cluster in first-seen order; Mapping maps every input index
// to the index of its cluster's representative within Representatives.
type Result struct {
	Representatives []Candidate
	Mapping         []int
}

// partialScale discounts window matches against full-string matches so that
// only a true exact match scores 1.0.
const partialScale = 0.9

// Similarity scores two names in [0, 1]. The base score is
// length-normalized Levenshtein distance over the full strings; when one
// name extends the other ("Microsoft" vs "Microsoft Corporation") the full
// score collapses, so the best aligned window of the longer name is scored
// as well and scaled by partialScale. Comparison is case-insensitive;
// identical names score exactly 1.0.
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1.0
	}

	ra := []rune(a)
	rb := []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1.0
	}

	full := 1.0 - float64(levenshtein(a, b))/float64(longest)

	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	partial := bestWindowSimilarity(ra, rb) * partialScale

	return max(full, partial)
}

// bestWindowSimilarity slides a window the length of the shorter name over
// the longer one and returns the best normalized match.
func bestWindowSimilarity(shorter, longer []rune) float64 {
	if len(shorter) == 0 {
		return 0
	}

	best := 0.0
	for start := 0; start+len(shorter) <= len(longer); start++ {
		window := longer[start : start+len(shorter)]
		d := levenshtein(string(shorter), string(window))
		score := 1.0 - float64(d)/float64(len(shorter))
		if score > best {
			best = score
		}
		if best == 1.0 {
			break
		}
	}
	return best
}

// levenshtein computes edit distance over runes with the two-row dynamic
// programming form.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// Deduplicate clusters candidates whose similarity meets the threshold.
// Candidates are grouped by type first and never merge across types; within
// a type group, clusters are the connected components of the similarity
// graph (single-linkage at the threshold), computed with union-find. Each
// cluster's representative is its longest name by character count, ties
// broken by first-seen order. An empty input returns empty collections.
func Deduplicate(candidates []Candidate, threshold float64) Result {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if len(candidates) == 0 {
		return Result{Representatives: []Candidate{}, Mapping: []int{}}
	}

	uf := newUnionFind(len(candidates))

	// Pairwise comparison only within a type group keeps the quadratic cost
	// bounded by the largest group, not the whole batch.
	byType := make(map[common.EntityType][]int)
	for i, c := range candidates {
		byType[c.Type] = append(byType[c.Type], i)
	}

	for _, group := range byType {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if Similarity(candidates[a].Name, candidates[b].Name) >= threshold {
					uf.union(a, b)
				}
			}
		}
	}

	// Pick the representative per cluster: longest name, first-seen on ties.
	repByRoot := make(map[int]int)
	for i := range candidates {
		root := uf.find(i)
		current, ok := repByRoot[root]
		if !ok {
			repByRoot[root] = i
			continue
		}
		if utf8.RuneCountInString(candidates[i].Name) > utf8.RuneCountInString(candidates[current].Name) {
			repByRoot[root] = i
		}
	}

	representatives := make([]Candidate, 0, len(repByRoot))
	repIndexByRoot := make(map[int]int)
	mapping := make([]int, len(candidates))

	// Emit clusters in first-seen order for deterministic output.
	for i := range candidates {
		root := uf.find(i)
		idx, ok := repIndexByRoot[root]
		if !ok {
			idx = len(representatives)
			representatives = append(representatives, candidates[repByRoot[root]])
			repIndexByRoot[root] = idx
		}
		mapping[i] = idx
	}

	return Result{Representatives: representatives, Mapping: mapping}
}

// unionFind is a standard disjoint-set forest with path compression and
// union by size.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		size:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(x, y int) {
	rx, ry := uf.find(x), uf.find(y)
	if rx == ry {
		return
	}
	if uf.size[rx] < uf.size[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
}
