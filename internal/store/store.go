// Package store persists dynamic schemas and normalization run history in
// Postgres.
package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/statements/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotConfigured is returned by handlers when no database is available.
var ErrNotConfigured = errors.New("persistence not configured")

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store wraps a connection pool.
type Store struct {
	db DBTX
}

// New creates a store on db.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// ----------------------------------------------------------------------------
// Schemas
// ----------------------------------------------------------------------------

// ListSchemas returns stored schemas in creation order.
func (s *Store) ListSchemas(ctx context.Context) ([]core.SchemaDefinition, error) {
	rows, err := s.db.Query(ctx, `SELECT name, keys FROM document_schemas ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	defer rows.Close()

	defs := []core.SchemaDefinition{}
	for rows.Next() {
		var d core.SchemaDefinition
		if err := rows.Scan(&d.Name, &d.Keys); err != nil {
			return nil, fmt.Errorf("scan schema: %w", err)
		}
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	return defs, nil
}

// UpsertSchema inserts def or replaces the keys of an existing schema.
func (s *Store) UpsertSchema(ctx context.Context, def core.SchemaDefinition) error {
	keys := def.Keys
	if keys == nil {
		keys = []string{}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO document_schemas (name, keys)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET keys = EXCLUDED.keys, updated_at = now()`,
		def.Name, keys)
	if err != nil {
		return fmt.Errorf("upsert schema %q: %w", def.Name, err)
	}
	return nil
}

// DeleteSchema removes a schema. Returns false if it did not exist.
func (s *Store) DeleteSchema(ctx context.Context, name string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM document_schemas WHERE name = $1`, name)
	if err != nil {
		return false, fmt.Errorf("delete schema %q: %w", name, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ----------------------------------------------------------------------------
// Runs
// ----------------------------------------------------------------------------

// Run is one recorded pipeline execution.
type Run struct {
	ID        uuid.UUID     `json:"id"`
	Source    string        `json:"source"`
	MIME      string        `json:"mime"`
	Kind      string        `json:"kind"`
	Provider  string        `json:"provider"`
	Records   int           `json:"records"`
	Cast      string        `json:"cast_status"`
	CastError string        `json:"cast_error,omitempty"`
	Duration  time.Duration `json:"-"`
	CreatedAt time.Time     `json:"created_at"`
}

// MarshalJSON reports Duration in whole milliseconds.
func (r Run) MarshalJSON() ([]byte, error) {
	type plain Run
	return json.Marshal(struct {
		plain
		DurationMS int64 `json:"duration_ms"`
	}{plain(r), r.Duration.Milliseconds()})
}

// RunFromResult builds a Run record for a pipeline result.
func RunFromResult(source string, r *core.Result, d time.Duration) Run {
	run := Run{
		Source:   source,
		MIME:     r.MIME,
		Kind:     r.Kind.String(),
		Provider: r.Provider,
		Records:  r.RowCount(),
		Cast:     string(r.Cast),
		Duration: d,
	}
	if r.CastErr != nil {
		run.CastError = r.CastErr.Error()
	}
	return run
}

// RecordRun stores run, assigning an ID if it has none.
func (s *Store) RecordRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	var created pgtype.Timestamptz
	err := s.db.QueryRow(ctx, `
		INSERT INTO normalization_runs
			(id, source, mime, kind, provider, records, cast_status, cast_error, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		pgtype.UUID{Bytes: run.ID, Valid: true},
		run.Source, run.MIME, run.Kind, run.Provider, run.Records,
		run.Cast, run.CastError, run.Duration.Milliseconds(),
	).Scan(&created)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	run.CreatedAt = created.Time
	return run, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, source, mime, kind, provider, records, cast_status, cast_error, duration_ms, created_at
		FROM normalization_runs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			run     Run
			id      pgtype.UUID
			ms      int64
			created pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &run.Source, &run.MIME, &run.Kind, &run.Provider,
			&run.Records, &run.Cast, &run.CastError, &ms, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.ID = uuid.UUID(id.Bytes)
		run.Duration = time.Duration(ms) * time.Millisecond
		run.CreatedAt = created.Time
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	return runs, nil
}

// PurgeRuns deletes runs created before cutoff and returns how many went.
func (s *Store) PurgeRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM normalization_runs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
