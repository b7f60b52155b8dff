// Package pgx implements store.Storage on PostgreSQL via pgx v5.
package pgx

import (
	"context"
	"errors"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/atlasgraph/atlas/internal/util"
	"github.com/atlasgraph/atlas/pkg/common"
	"github.com/atlasgraph/atlas/pkg/store"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
	SendBatch(ctx context.Context, b *pgxv5.Batch) pgxv5.BatchResults
}

// GraphDBStorage implements the Storage interface on PostgreSQL. All writes
// that span multiple statements run inside one transaction so a failed
// clear or rebuild never leaves partial state.
type GraphDBStorage struct {
	conn pgxIConn
}

var _ store.Storage = (*GraphDBStorage)(nil)

// NewGraphDBStorageWithConnection creates a GraphDBStorage on an existing
// connection or pool.
func NewGraphDBStorageWithConnection(conn pgxIConn) *GraphDBStorage {
	return &GraphDBStorage{conn: conn}
}

func scopeChunkFilter(scope common.Scope) (string, []any) {
	switch scope.Kind {
	case common.ScopeDocument:
		return "WHERE project_id = $1 AND document_id = $2", []any{scope.ProjectID, scope.DocumentID}
	case common.ScopeProject:
		return "WHERE project_id = $1", []any{scope.ProjectID}
	default:
		return "", nil
	}
}

func (s *GraphDBStorage) ListChunks(ctx context.Context, scope common.Scope) ([]common.Chunk, error) {
	filter, args := scopeChunkFilter(scope)
	rows, err := s.conn.Query(ctx, fmt.Sprintf(`
		SELECT public_id, project_id, document_id, language, content
		FROM chunks %s
		ORDER BY id`, filter), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.Chunk
	for rows.Next() {
		var c common.Chunk
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.DocumentID, &c.Language, &c.Text); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *GraphDBStorage) ListProjectIDs(ctx context.Context, scope common.Scope) ([]int64, error) {
	filter, args := scopeChunkFilter(scope)
	rows, err := s.conn.Query(ctx, fmt.Sprintf(`
		SELECT DISTINCT project_id FROM chunks %s ORDER BY project_id`, filter), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *GraphDBStorage) ScopeStats(ctx context.Context, scope common.Scope) (store.Stats, error) {
	var stats store.Stats
	var err error
	if scope.Kind == common.ScopeAll {
		err = s.conn.QueryRow(ctx, `
			SELECT
				(SELECT COUNT(*) FROM entities),
				(SELECT COUNT(*) FROM relationships)`,
		).Scan(&stats.Entities, &stats.Relationships)
	} else {
		err = s.conn.QueryRow(ctx, `
			SELECT
				(SELECT COUNT(*) FROM entities WHERE project_id = $1),
				(SELECT COUNT(*) FROM relationships WHERE project_id = $1)`,
			scope.ProjectID,
		).Scan(&stats.Entities, &stats.Relationships)
	}
	return stats, err
}

// ClearScope removes the scope's graph contribution inside one transaction.
func (s *GraphDBStorage) ClearScope(ctx context.Context, scope common.Scope) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	switch scope.Kind {
	case common.ScopeAll:
		for _, stmt := range []string{
			`DELETE FROM relationships`,
			`DELETE FROM mentions`,
			`DELETE FROM entities`,
		} {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}

	case common.ScopeProject:
		if _, err := tx.Exec(ctx, `DELETE FROM relationships WHERE project_id = $1`, scope.ProjectID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM mentions m USING entities e
			WHERE m.entity_id = e.id AND e.project_id = $1`, scope.ProjectID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM entities WHERE project_id = $1`, scope.ProjectID); err != nil {
			return err
		}

	case common.ScopeDocument:
		if err := s.clearDocument(ctx, tx, scope); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// clearDocument removes one document's mentions, drops entities that lost
// every mention, recounts the survivors and rebuilds the project's
// relationships from the mentions that remain. Relationships are derived
// data, so a rebuild is the only way to keep their counts truthful after a
// partial deletion.
func (s *GraphDBStorage) clearDocument(ctx context.Context, tx pgxv5.Tx, scope common.Scope) error {
	if _, err := tx.Exec(ctx, `
		DELETE FROM mentions m USING chunks c
		WHERE m.chunk_id = c.id AND c.project_id = $1 AND c.document_id = $2`,
		scope.ProjectID, scope.DocumentID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM entities e
		WHERE e.project_id = $1
		  AND NOT EXISTS (SELECT 1 FROM mentions m WHERE m.entity_id = e.id)`,
		scope.ProjectID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE entities e SET occurrence_count = counts.cnt
		FROM (
			SELECT entity_id, COUNT(*) AS cnt FROM mentions GROUP BY entity_id
		) counts
		WHERE e.id = counts.entity_id AND e.project_id = $1`,
		scope.ProjectID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM relationships WHERE project_id = $1`, scope.ProjectID); err != nil {
		return err
	}

	rows, err := tx.Query(ctx, `
		SELECT m1.entity_id, m2.entity_id, COUNT(DISTINCT m1.chunk_id)
		FROM mentions m1
		JOIN mentions m2 ON m1.chunk_id = m2.chunk_id AND m1.entity_id < m2.entity_id
		JOIN entities e ON e.id = m1.entity_id
		WHERE e.project_id = $1
		GROUP BY m1.entity_id, m2.entity_id`,
		scope.ProjectID)
	if err != nil {
		return err
	}

	type pair struct {
		a, b  int64
		count int
	}
	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.a, &p.b, &p.count); err != nil {
			rows.Close()
			return err
		}
		pairs = append(pairs, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range pairs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO relationships (public_id, project_id, entity_a, entity_b, co_occurrence_count)
			VALUES ($1, $2, $3, $4, $5)`,
			util.MustPublicID(), scope.ProjectID, p.a, p.b, p.count); err != nil {
			return err
		}
	}
	return nil
}

func (s *GraphDBStorage) UpsertEntity(ctx context.Context, projectID int64, name string, entityType common.EntityType, occurrences int) (string, error) {
	var publicID string
	err := s.conn.QueryRow(ctx, `
		INSERT INTO entities (public_id, project_id, name, type, occurrence_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id, name, type)
		DO UPDATE SET occurrence_count = entities.occurrence_count + EXCLUDED.occurrence_count
		RETURNING public_id`,
		util.MustPublicID(), projectID, util.SanitizePostgresText(name), string(entityType), occurrences,
	).Scan(&publicID)
	return publicID, err
}

func (s *GraphDBStorage) AddMentions(ctx context.Context, _ int64, mentions []common.Mention) error {
	if len(mentions) == 0 {
		return nil
	}

	batch := &pgxv5.Batch{}
	for _, m := range mentions {
		id := m.ID
		if id == "" {
			id = util.MustPublicID()
		}
		batch.Queue(`
			INSERT INTO mentions (public_id, entity_id, chunk_id, raw_text)
			SELECT $1, e.id, c.id, $4
			FROM entities e, chunks c
			WHERE e.public_id = $2 AND c.public_id = $3`,
			id, m.EntityID, m.ChunkID, util.SanitizePostgresText(m.RawText))
	}

	results := s.conn.SendBatch(ctx, batch)
	defer results.Close()

	for range mentions {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return results.Close()
}

func (s *GraphDBStorage) RecordCoOccurrence(ctx context.Context, projectID int64, entityA, entityB string) error {
	if entityA == entityB {
		return nil
	}
	_, err := s.conn.Exec(ctx, `
		INSERT INTO relationships (public_id, project_id, entity_a, entity_b, co_occurrence_count)
		SELECT $1, $2, LEAST(a.id, b.id), GREATEST(a.id, b.id), 1
		FROM entities a, entities b
		WHERE a.public_id = $3 AND b.public_id = $4 AND a.id <> b.id
		ON CONFLICT (project_id, entity_a, entity_b)
		DO UPDATE SET co_occurrence_count = relationships.co_occurrence_count + 1`,
		util.MustPublicID(), projectID, entityA, entityB)
	return err
}

func (s *GraphDBStorage) RecomputeWeights(ctx context.Context, projectID int64) error {
	_, err := s.conn.Exec(ctx, `
		UPDATE relationships SET weight = co_occurrence_count::float8 / scoped.max_count
		FROM (
			SELECT MAX(co_occurrence_count)::float8 AS max_count
			FROM relationships WHERE project_id = $1
		) scoped
		WHERE project_id = $1 AND scoped.max_count > 0`,
		projectID)
	return err
}

func (s *GraphDBStorage) ListEntities(ctx context.Context, projectID int64) ([]common.Entity, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT public_id, project_id, name, type, occurrence_count
		FROM entities WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []common.Entity{}
	for rows.Next() {
		var e common.Entity
		var entityType string
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Name, &entityType, &e.Occurrences); err != nil {
			return nil, err
		}
		e.Type = common.ParseEntityType(entityType)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *GraphDBStorage) ListRelationships(ctx context.Context, projectID int64) ([]common.Relationship, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT r.public_id, r.project_id, a.public_id, b.public_id, r.co_occurrence_count, r.weight
		FROM relationships r
		JOIN entities a ON a.id = r.entity_a
		JOIN entities b ON b.id = r.entity_b
		WHERE r.project_id = $1
		ORDER BY r.id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []common.Relationship{}
	for rows.Next() {
		var r common.Relationship
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.EntityA, &r.EntityB, &r.CoOccurrences, &r.Weight); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *GraphDBStorage) GetEntity(ctx context.Context, projectID int64, entityID string) (common.Entity, error) {
	var e common.Entity
	var entityType string
	err := s.conn.QueryRow(ctx, `
		SELECT public_id, project_id, name, type, occurrence_count
		FROM entities WHERE project_id = $1 AND public_id = $2`,
		projectID, entityID,
	).Scan(&e.ID, &e.ProjectID, &e.Name, &entityType, &e.Occurrences)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return common.Entity{}, common.ErrEntityNotFound
	}
	if err != nil {
		return common.Entity{}, err
	}
	e.Type = common.ParseEntityType(entityType)
	return e, nil
}
