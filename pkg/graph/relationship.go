package graph

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/atlasgraph/atlas/pkg/common"
	"github.com/atlasgraph/atlas/pkg/dedupe"
	"github.com/atlasgraph/atlas/pkg/store"
)

// persistGraph is phase two: scope-wide deduplication over every candidate
// collected in phase one, followed by entity upserts, mention inserts and
// parallel co-occurrence upserts, finishing with one weight recompute for
// the project. The target store is a parameter so dry runs can stage into
// an in-memory store while apply mode writes through to the real one.
func (e *Engine) persistGraph(ctx context.Context, target store.Storage, projectID int64, threshold float64, extractions []*chunkExtraction) error {
	// Deduplicate distinct (name, type) pairs, not raw mentions; the
	// pairwise comparison cost depends on unique names only.
	type key struct {
		name string
		typ  common.EntityType
	}
	candidateIndex := make(map[key]int)
	candidates := []dedupe.Candidate{}
	mentionCount := []int{}

	for _, ex := range extractions {
		for _, m := range ex.mentions {
			k := key{name: m.normalized, typ: m.entityType}
			idx, ok := candidateIndex[k]
			if !ok {
				idx = len(candidates)
				candidateIndex[k] = idx
				candidates = append(candidates, dedupe.Candidate{Name: m.normalized, Type: m.entityType})
				mentionCount = append(mentionCount, 0)
			}
			mentionCount[idx]++
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	result := dedupe.Deduplicate(candidates, threshold)

	// Total mentions per cluster become the entity occurrence increment.
	clusterMentions := make([]int, len(result.Representatives))
	for i, cluster := range result.Mapping {
		clusterMentions[cluster] += mentionCount[i]
	}

	entityIDs := make([]string, len(result.Representatives))
	for i, rep := range result.Representatives {
		id, err := target.UpsertEntity(ctx, projectID, rep.Name, rep.Type, clusterMentions[i])
		if err != nil {
			return err
		}
		entityIDs[i] = id
	}

	// Record mentions and per-chunk entity sets.
	mentions := []common.Mention{}
	chunkEntities := make([][]string, len(extractions))
	for ci, ex := range extractions {
		seen := make(map[string]struct{})
		for _, m := range ex.mentions {
			idx := candidateIndex[key{name: m.normalized, typ: m.entityType}]
			entityID := entityIDs[result.Mapping[idx]]
			mentions = append(mentions, common.Mention{
				EntityID: entityID,
				ChunkID:  ex.chunk.ID,
				RawText:  m.raw,
			})
			if _, ok := seen[entityID]; !ok {
				seen[entityID] = struct{}{}
				chunkEntities[ci] = append(chunkEntities[ci], entityID)
			}
		}
		sort.Strings(chunkEntities[ci])
	}

	if err := target.AddMentions(ctx, projectID, mentions); err != nil {
		return err
	}

	// Co-occurrence upserts are independent per chunk and commute, so they
	// can run in parallel.
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelChunks)
	for _, ids := range chunkEntities {
		ids := ids
		if len(ids) < 2 {
			continue
		}
		g.Go(func() error {
			for i := 0; i < len(ids); i++ {
				for j := i + 1; j < len(ids); j++ {
					if err := target.RecordCoOccurrence(gCtx, projectID, ids[i], ids[j]); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return target.RecomputeWeights(ctx, projectID)
}
