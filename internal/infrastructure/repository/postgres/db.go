// Package postgres implements the persistence ports on a plain database/sql
// pool backed by pgx.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema bootstraps the tables the service owns. Safe to run from both
// api and worker; an advisory lock serializes the DDL across startups.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS extraction_jobs (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	image_ref TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	status TEXT NOT NULL,
	schema_version TEXT NOT NULL,
	prompt_version TEXT NOT NULL,
	result JSONB,
	error_message TEXT NOT NULL DEFAULT '',
	retry_count INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	input_tokens INT NOT NULL DEFAULT 0,
	output_tokens INT NOT NULL DEFAULT 0,
	total_tokens INT NOT NULL DEFAULT 0,
	estimated_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
	processing_ms BIGINT NOT NULL DEFAULT 0,
	overall_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	uncertain_items JSONB NOT NULL DEFAULT '[]'::jsonb,
	superfluous_text JSONB NOT NULL DEFAULT '[]'::jsonb,
	warnings JSONB NOT NULL DEFAULT '[]'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_extraction_jobs_user_hash ON extraction_jobs(user_id, content_hash);
CREATE INDEX IF NOT EXISTS idx_extraction_jobs_user_created ON extraction_jobs(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_extraction_jobs_status ON extraction_jobs(status);
CREATE INDEX IF NOT EXISTS idx_extraction_jobs_completed ON extraction_jobs(completed_at) WHERE status = 'completed';

CREATE TABLE IF NOT EXISTS extraction_metrics_daily (
	prompt_version TEXT NOT NULL,
	schema_version TEXT NOT NULL,
	date DATE NOT NULL,
	extraction_count BIGINT NOT NULL DEFAULT 0,
	avg_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_processing_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_tokens DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (prompt_version, schema_version, date)
);

CREATE TABLE IF NOT EXISTS user_plans (
	user_id TEXT PRIMARY KEY,
	monthly_job_limit INT NOT NULL DEFAULT -1
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
