package migration

import (
	"context"
	"fmt"

	"goencode/internal/config"
	"goencode/internal/errors"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the ledger schema. Every statement is idempotent.
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	for _, step := range r.steps() {
		if _, err := db.ExecContext(ctx, step.sql); err != nil {
			return errors.Wrap(err, fmt.Sprintf("failed to %s", step.name))
		}
	}
	return nil
}

type step struct {
	name string
	sql  string
}

func (r *MigrationRunner) steps() []step {
	return []step{
		{"create run_manifests table", `
			CREATE TABLE IF NOT EXISTS run_manifests (
				run_id TEXT PRIMARY KEY,
				analysis VARCHAR(32) NOT NULL,
				fingerprint VARCHAR(64) NOT NULL,
				seed BIGINT NOT NULL DEFAULT 0,
				manifest JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			)`},
		{"create artifacts table", `
			CREATE TABLE IF NOT EXISTS artifacts (
				seq BIGSERIAL,
				id TEXT PRIMARY KEY,
				run_id TEXT NOT NULL,
				kind VARCHAR(64) NOT NULL,
				feature TEXT NOT NULL DEFAULT '',
				payload JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			)`},
		{"create artifacts run index", `CREATE INDEX IF NOT EXISTS idx_artifacts_run ON artifacts(run_id, created_at, seq)`},
		{"create artifacts kind index", `CREATE INDEX IF NOT EXISTS idx_artifacts_kind ON artifacts(kind, created_at)`},
		{"create manifests fingerprint index", `CREATE INDEX IF NOT EXISTS idx_run_manifests_fingerprint ON run_manifests(fingerprint)`},
	}
}

// Connect opens a PostgreSQL handle with the configured pool limits
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if !cfg.Enabled() {
		return nil, errors.ConfigInvalid("DATABASE_URL is not set")
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.URL)
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, fmt.Errorf("failed to connect to database: %w", err))
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return db, nil
}
