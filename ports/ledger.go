package ports

import (
	"context"

	"goencode/domain/core"
	"goencode/domain/run"
)

// LedgerWriterPort provides append-only write access to artifacts
// This is the ONLY way to write artifacts - prevents read-after-write coupling
type LedgerWriterPort interface {
	StoreArtifact(ctx context.Context, runID string, artifact core.Artifact) error
	StoreRunManifest(ctx context.Context, manifest *run.RunManifestArtifact) error
}

// LedgerReaderPort provides read-only access to stored artifacts
// Use this for queries, replay, and API access
type LedgerReaderPort interface {
	ListArtifacts(ctx context.Context, filters ArtifactFilters) ([]core.Artifact, error)
	GetArtifact(ctx context.Context, artifactID core.ArtifactID) (*core.Artifact, error)
	GetArtifactsByRun(ctx context.Context, runID core.RunID) ([]core.Artifact, error)
	GetArtifactsByKind(ctx context.Context, kind core.ArtifactKind, limit int) ([]core.Artifact, error)

	GetRunManifest(ctx context.Context, runID core.RunID) (*run.RunManifestArtifact, error)
}

// ArtifactFilters for querying artifacts
type ArtifactFilters struct {
	RunID   *core.RunID
	Kind    *core.ArtifactKind
	Feature *core.FeatureName
	Limit   int
	Offset  int
}

// LedgerPort combines read and write access
type LedgerPort interface {
	LedgerWriterPort
	LedgerReaderPort
}
