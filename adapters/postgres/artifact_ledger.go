package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"goencode/domain/core"
	"goencode/domain/run"
	"goencode/ports"

	"github.com/jmoiron/sqlx"
)

// artifactRow mirrors the artifacts table
type artifactRow struct {
	ID        string    `db:"id"`
	RunID     string    `db:"run_id"`
	Kind      string    `db:"kind"`
	Feature   string    `db:"feature"`
	Payload   []byte    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}

func (r artifactRow) toArtifact() core.Artifact {
	return core.Artifact{
		ID:        core.ArtifactID(r.ID),
		RunID:     core.RunID(r.RunID),
		Kind:      core.ArtifactKind(r.Kind),
		Feature:   core.FeatureName(r.Feature),
		Payload:   json.RawMessage(r.Payload),
		CreatedAt: core.NewTimestamp(r.CreatedAt),
	}
}

// ArtifactLedger stores artifacts and run manifests in PostgreSQL. Payloads
// are written as JSONB and read back as json.RawMessage.
type ArtifactLedger struct {
	db *sqlx.DB
}

// NewArtifactLedger creates a new artifact ledger
func NewArtifactLedger(db *sqlx.DB) *ArtifactLedger {
	return &ArtifactLedger{db: db}
}

const artifactColumns = `id, run_id, kind, feature, payload, created_at`

// StoreArtifact appends one artifact
func (l *ArtifactLedger) StoreArtifact(ctx context.Context, runID string, artifact core.Artifact) error {
	payload, err := json.Marshal(artifact.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact payload: %w", err)
	}
	createdAt := artifact.CreatedAt.Time()
	if artifact.CreatedAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := l.db.ExecContext(ctx, `
		INSERT INTO artifacts (`+artifactColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		artifact.ID.String(), runID, string(artifact.Kind), artifact.Feature.String(), payload, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert artifact: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: artifact %s", core.ErrDuplicateWrite, artifact.ID)
	}
	return nil
}

// StoreRunManifest writes the manifest row and its artifact in one transaction
func (l *ArtifactLedger) StoreRunManifest(ctx context.Context, manifest *run.RunManifestArtifact) error {
	if err := manifest.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal run manifest: %w", err)
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO run_manifests (run_id, analysis, fingerprint, seed, manifest, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		manifest.RunID.String(), string(manifest.Analysis), manifest.Fingerprint.Fingerprint.String(),
		manifest.Seed, body, manifest.CreatedAt.Time(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run manifest: %w", err)
	}

	artifact := manifest.ToCoreArtifact()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO artifacts (`+artifactColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		artifact.ID.String(), manifest.RunID.String(), string(artifact.Kind), "", body, manifest.CreatedAt.Time(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert manifest artifact: %w", err)
	}

	return tx.Commit()
}

// ListArtifacts returns artifacts matching filters, oldest first
func (l *ArtifactLedger) ListArtifacts(ctx context.Context, filters ports.ArtifactFilters) ([]core.Artifact, error) {
	query, args := listQuery(filters)

	var rows []artifactRow
	if err := l.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	artifacts := make([]core.Artifact, 0, len(rows))
	for _, row := range rows {
		artifacts = append(artifacts, row.toArtifact())
	}
	return artifacts, nil
}

// listQuery builds the filtered SELECT with positional arguments
func listQuery(filters ports.ArtifactFilters) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	add := func(column string, value interface{}) {
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filters.RunID != nil {
		add("run_id", filters.RunID.String())
	}
	if filters.Kind != nil {
		add("kind", string(*filters.Kind))
	}
	if filters.Feature != nil {
		add("feature", filters.Feature.String())
	}

	var b strings.Builder
	b.WriteString("SELECT " + artifactColumns + " FROM artifacts")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	// seq breaks created_at ties in insertion order
	b.WriteString(" ORDER BY created_at ASC, seq ASC")
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if filters.Offset > 0 {
		args = append(args, filters.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}

// GetArtifact returns one artifact by ID
func (l *ArtifactLedger) GetArtifact(ctx context.Context, artifactID core.ArtifactID) (*core.Artifact, error) {
	var row artifactRow
	err := l.db.GetContext(ctx, &row, `SELECT `+artifactColumns+` FROM artifacts WHERE id = $1`, artifactID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", core.ErrArtifactNotFound, artifactID)
		}
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	artifact := row.toArtifact()
	return &artifact, nil
}

// GetArtifactsByRun returns every artifact of a run
func (l *ArtifactLedger) GetArtifactsByRun(ctx context.Context, runID core.RunID) ([]core.Artifact, error) {
	return l.ListArtifacts(ctx, ports.ArtifactFilters{RunID: &runID})
}

// GetArtifactsByKind returns up to limit artifacts of one kind
func (l *ArtifactLedger) GetArtifactsByKind(ctx context.Context, kind core.ArtifactKind, limit int) ([]core.Artifact, error) {
	return l.ListArtifacts(ctx, ports.ArtifactFilters{Kind: &kind, Limit: limit})
}

// GetRunManifest loads and decodes a run manifest
func (l *ArtifactLedger) GetRunManifest(ctx context.Context, runID core.RunID) (*run.RunManifestArtifact, error) {
	var body []byte
	err := l.db.QueryRowContext(ctx, `SELECT manifest FROM run_manifests WHERE run_id = $1`, runID.String()).Scan(&body)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to get run manifest: %w", err)
	}

	var manifest run.RunManifestArtifact
	if err := json.Unmarshal(body, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run manifest: %w", err)
	}
	return &manifest, nil
}

var _ ports.LedgerPort = (*ArtifactLedger)(nil)
