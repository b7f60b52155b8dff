package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlasgraph/atlas/pkg/common"
	"github.com/atlasgraph/atlas/pkg/graph"
	"github.com/atlasgraph/atlas/pkg/leaselock"
	"github.com/atlasgraph/atlas/pkg/logger"
)

// MigrateMessage is the payload of one migration job on migrate_queue.
type MigrateMessage struct {
	JobID     string       `json:"job_id"`
	Scope     common.Scope `json:"scope"`
	Mode      graph.Mode   `json:"mode"`
	Threshold float64      `json:"threshold,omitempty"`
}

// ProcessMigrateMessage runs one queued migration under a scope lease so
// concurrent workers never rebuild the same scope at the same time. A busy
// scope is a retryable failure; the message comes back through the retry
// queue once the running migration releases the lease.
func ProcessMigrateMessage(
	ctx context.Context,
	engine *graph.Engine,
	conn *pgxpool.Pool,
	body string,
) error {
	var msg MigrateMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return fmt.Errorf("invalid migrate message: %w", err)
	}
	if msg.Mode == "" {
		msg.Mode = graph.ModeApply
	}

	lockClient := leaselock.New(conn)
	key := leaselock.ScopeKey(msg.Scope)

	err := lockClient.WithLease(ctx, key, leaselock.Options{
		TTL:         10 * time.Minute,
		TokenPrefix: "worker-",
	}, func(ctx context.Context) error {
		report, err := engine.Migrate(ctx, graph.MigrationParams{
			Scope:     msg.Scope,
			Mode:      msg.Mode,
			Threshold: msg.Threshold,
		})
		if err != nil {
			return err
		}
		logger.Info("[Queue] Migration report",
			"job_id", msg.JobID,
			"scope", report.Scope.Kind,
			"project_id", report.Scope.ProjectID,
			"chunks_processed", report.ChunksProcessed,
			"chunks_skipped", report.ChunksSkipped,
			"pattern_only_chunks", report.PatternOnlyChunks,
			"noise_rejected", report.NoiseRejected,
			"entities", report.After.Entities,
			"relationships", report.After.Relationships,
		)
		return nil
	})
	if errors.Is(err, leaselock.ErrBusy) {
		return fmt.Errorf("scope %s is locked by another migration: %w", key, err)
	}
	return err
}
