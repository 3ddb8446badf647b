// Package pgstore is the production Version backend (C7), backed by
// Postgres. Committed versions are immutable and relationally queried
// (strictly increasing version_number per graph_id, content-hash lookup
// for commit idempotency), which fits a relational schema better than a
// document store — the same reasoning the teacher applies in keeping its
// run ledger in a structured store rather than its session documents
// (_examples/goadesign-goa-ai/runtime/agent/runlog).
package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nwalker85/agentfoundry-sub000/store"
)

// Schema (§6.3):
//
//	CREATE TABLE graph_versions (
//	    graph_id     TEXT NOT NULL,
//	    version      INTEGER NOT NULL,
//	    content_hash TEXT NOT NULL,
//	    parent_hash  TEXT NOT NULL DEFAULT '',
//	    snapshot     JSONB NOT NULL,
//	    message      TEXT NOT NULL DEFAULT '',
//	    actor        TEXT NOT NULL,
//	    committed_at TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (graph_id, version)
//	);
//	CREATE UNIQUE INDEX graph_versions_content_hash_idx ON graph_versions (graph_id, content_hash);

// VersionBackend implements store.VersionBackend over a Postgres pool.
type VersionBackend struct {
	pool *pgxpool.Pool
}

// NewVersionBackend wraps an existing pool.
func NewVersionBackend(pool *pgxpool.Pool) *VersionBackend {
	return &VersionBackend{pool: pool}
}

// NextVersionNumber returns the next version number for graphID under
// COALESCE(MAX(version), 0) + 1.
func (b *VersionBackend) NextVersionNumber(ctx context.Context, graphID string) (int, error) {
	var next int
	err := b.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM graph_versions WHERE graph_id = $1`,
		graphID,
	).Scan(&next)
	return next, err
}

// FindByContentHash looks up an existing version by (graph_id, content_hash).
func (b *VersionBackend) FindByContentHash(ctx context.Context, graphID, hash string) (store.Version, bool, error) {
	v, err := b.scanOne(ctx,
		`SELECT graph_id, version, content_hash, parent_hash, snapshot, message, actor, committed_at
		 FROM graph_versions WHERE graph_id = $1 AND content_hash = $2`,
		graphID, hash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Version{}, false, nil
	}
	if err != nil {
		return store.Version{}, false, err
	}
	return v, true, nil
}

// Insert writes a new version row. The (graph_id, version) primary key and
// the (graph_id, content_hash) unique index enforce the strict-increase
// and idempotency invariants even under concurrent commits.
func (b *VersionBackend) Insert(ctx context.Context, v store.Version) error {
	_, err := b.pool.Exec(ctx,
		`INSERT INTO graph_versions (graph_id, version, content_hash, parent_hash, snapshot, message, actor, committed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		v.GraphID, v.Number, v.ContentHash, v.ParentHash, v.Snapshot, v.Message, v.Actor, v.CommittedAt,
	)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) && pgErr.SQLState() == "23505" { // unique_violation
		return store.ErrVersionConflict
	}
	return err
}

// Get returns the version row at (graph_id, version).
func (b *VersionBackend) Get(ctx context.Context, graphID string, number int) (store.Version, error) {
	v, err := b.scanOne(ctx,
		`SELECT graph_id, version, content_hash, parent_hash, snapshot, message, actor, committed_at
		 FROM graph_versions WHERE graph_id = $1 AND version = $2`,
		graphID, number,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Version{}, store.ErrNotFound
	}
	return v, err
}

// ListVersions returns up to limit versions for graphID, most recent
// first.
func (b *VersionBackend) ListVersions(ctx context.Context, graphID string, limit int) ([]store.Version, error) {
	query := `SELECT graph_id, version, content_hash, parent_hash, snapshot, message, actor, committed_at
	          FROM graph_versions WHERE graph_id = $1 ORDER BY version DESC`
	args := []any{graphID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Version
	for rows.Next() {
		v, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (b *VersionBackend) scanOne(ctx context.Context, query string, args ...any) (store.Version, error) {
	row := b.pool.QueryRow(ctx, query, args...)
	return scanRow(row)
}

func scanRow(row rowScanner) (store.Version, error) {
	var v store.Version
	var committedAt time.Time
	err := row.Scan(&v.GraphID, &v.Number, &v.ContentHash, &v.ParentHash, &v.Snapshot, &v.Message, &v.Actor, &committedAt)
	v.CommittedAt = committedAt
	return v, err
}
