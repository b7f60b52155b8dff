package graph

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/atlasgraph/atlas/internal/util"
	"github.com/atlasgraph/atlas/pkg/common"
	"github.com/atlasgraph/atlas/pkg/logger"
	"github.com/atlasgraph/atlas/pkg/ner"
	"github.com/atlasgraph/atlas/pkg/normalize"
)

// extractedMention is one candidate surviving extraction and normalization,
// still tagged with the chunk it came from.
type extractedMention struct {
	raw        string
	normalized string
	entityType common.EntityType
}

// chunkExtraction is the local result of phase one for a single chunk.
type chunkExtraction struct {
	chunk       common.Chunk
	mentions    []extractedMention
	patternOnly bool
	rejected    int
}

// SkippedChunk records why one chunk was left out of a migration.
type SkippedChunk struct {
	ChunkID string `json:"chunk_id"`
	Reason  string `json:"reason"`
}

// processStats aggregates phase-one counters for the migration report.
type processStats struct {
	processed   int
	patternOnly int
	rejected    int
	skipped     []SkippedChunk
}

// extractChunk runs the extractor with retries and normalizes every
// candidate. An unsupported language downgrades the chunk to pattern-only
// extraction instead of failing it.
func (e *Engine) extractChunk(ctx context.Context, chunk common.Chunk) (*chunkExtraction, error) {
	res, err := util.RetryWithContext(ctx, e.maxRetries, func(ctx context.Context) (*ner.Result, error) {
		r, err := e.extractor.Extract(ctx, chunk.Text, chunk.Language)
		if errors.Is(err, common.ErrUnsupportedLanguage) {
			return e.extractor.ExtractPatternOnly(chunk.Text), nil
		}
		return r, err
	})
	if err != nil {
		return nil, &common.ExtractionError{ChunkID: chunk.ID, Err: err}
	}

	out := &chunkExtraction{
		chunk:       chunk,
		patternOnly: res.PatternOnly,
		rejected:    res.Rejected,
	}
	for _, c := range res.Candidates {
		normalized := normalize.Normalize(c.Text, c.Type)
		if normalized == "" {
			continue
		}
		out.mentions = append(out.mentions, extractedMention{
			raw:        c.Text,
			normalized: normalized,
			entityType: c.Type,
		})
	}
	return out, nil
}

// processChunks is phase one: embarrassingly parallel extraction and
// normalization across chunks. A chunk that fails after retries is logged,
// counted and skipped; only context cancellation stops the whole pass.
func (e *Engine) processChunks(ctx context.Context, chunks []common.Chunk) ([]*chunkExtraction, *processStats, error) {
	extractions := make([]*chunkExtraction, 0, len(chunks))
	stats := &processStats{}
	mergeMu := sync.Mutex{}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelChunks)
	for _, chunk := range chunks {
		c := chunk
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
			}

			res, err := e.extractChunk(gCtx, c)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				logger.Warn("skipping chunk after extraction failure",
					"chunk_id", c.ID, "error", err)
				mergeMu.Lock()
				stats.skipped = append(stats.skipped, SkippedChunk{ChunkID: c.ID, Reason: err.Error()})
				mergeMu.Unlock()
				return nil
			}

			mergeMu.Lock()
			extractions = append(extractions, res)
			stats.processed++
			if res.patternOnly {
				stats.patternOnly++
			}
			stats.rejected += res.rejected
			mergeMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return extractions, stats, nil
}
