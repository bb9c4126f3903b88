package runindex

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

// PGMirror is an optional Postgres-backed mirror of the run-index ledger,
// for operators who want cross-run SQL queries over run history. The
// JSON-file Store remains the source of truth for Orchestrator resume
// decisions; PGMirror is write-through only and never read back by the
// core.
type PGMirror struct {
	pool *pgxpool.Pool
}

// NewPGMirror connects to Postgres and ensures the run_index table exists.
func NewPGMirror(ctx context.Context, connStr string) (*PGMirror, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, eris.Wrap(err, "runindex: connect to postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "runindex: ping postgres")
	}

	m := &PGMirror{pool: pool}
	if err := m.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return m, nil
}

func (m *PGMirror) initSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS run_index (
			run_id       TEXT PRIMARY KEY,
			input_hash   TEXT NOT NULL,
			config_hash  TEXT NOT NULL,
			status       TEXT NOT NULL,
			run_type     TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL,
			finished_at  TIMESTAMPTZ
		)`
	_, err := m.pool.Exec(ctx, schema)
	if err != nil {
		return eris.Wrap(err, "runindex: init schema")
	}
	return nil
}

// Record upserts one run's metadata, mirroring Store.Record's semantics.
func (m *PGMirror) Record(ctx context.Context, meta models.RunMetadata) error {
	const sql = `
		INSERT INTO run_index (run_id, input_hash, config_hash, status, run_type, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO UPDATE SET
			input_hash = EXCLUDED.input_hash,
			config_hash = EXCLUDED.config_hash,
			status = EXCLUDED.status,
			run_type = EXCLUDED.run_type,
			finished_at = EXCLUDED.finished_at`

	_, err := m.pool.Exec(ctx, sql,
		meta.RunID, meta.InputHash, meta.ConfigHash, string(meta.Status), meta.RunType,
		meta.CreatedAt, meta.FinishedAt)
	if err != nil {
		return fmt.Errorf("runindex: upsert run_index row: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (m *PGMirror) Close() {
	if m.pool != nil {
		m.pool.Close()
	}
}
