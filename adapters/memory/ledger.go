// Package memory holds an in-process artifact ledger used by the CLI when no
// database is configured, and by tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"goencode/domain/core"
	"goencode/domain/run"
	"goencode/ports"
)

// LedgerAdapter implements ports.LedgerPort. Artifacts are kept in insertion
// order.
type LedgerAdapter struct {
	mu        sync.RWMutex
	artifacts []core.Artifact
	byID      map[core.ArtifactID]int
	manifests map[core.RunID]*run.RunManifestArtifact
}

// NewLedgerAdapter creates an empty ledger
func NewLedgerAdapter() *LedgerAdapter {
	return &LedgerAdapter{
		byID:      make(map[core.ArtifactID]int),
		manifests: make(map[core.RunID]*run.RunManifestArtifact),
	}
}

// StoreArtifact appends an artifact. IDs are write-once.
func (s *LedgerAdapter) StoreArtifact(ctx context.Context, runID string, artifact core.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[artifact.ID]; exists {
		return fmt.Errorf("%w: artifact %s", core.ErrDuplicateWrite, artifact.ID)
	}
	artifact.RunID = core.RunID(runID)
	s.byID[artifact.ID] = len(s.artifacts)
	s.artifacts = append(s.artifacts, artifact)
	return nil
}

// StoreRunManifest records the manifest and appends it as an artifact
func (s *LedgerAdapter) StoreRunManifest(ctx context.Context, manifest *run.RunManifestArtifact) error {
	if err := manifest.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	if _, exists := s.manifests[manifest.RunID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: manifest of run %s", core.ErrDuplicateWrite, manifest.RunID)
	}
	s.manifests[manifest.RunID] = manifest
	s.mu.Unlock()
	return s.StoreArtifact(ctx, string(manifest.RunID), manifest.ToCoreArtifact())
}

// ListArtifacts returns artifacts matching filters in insertion order
func (s *LedgerAdapter) ListArtifacts(ctx context.Context, filters ports.ArtifactFilters) ([]core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []core.Artifact
	skipped := 0
	for _, artifact := range s.artifacts {
		if filters.Kind != nil && artifact.Kind != *filters.Kind {
			continue
		}
		if filters.RunID != nil && artifact.RunID != *filters.RunID {
			continue
		}
		if filters.Feature != nil && artifact.Feature != *filters.Feature {
			continue
		}
		if skipped < filters.Offset {
			skipped++
			continue
		}
		results = append(results, artifact)
		if filters.Limit > 0 && len(results) >= filters.Limit {
			break
		}
	}
	return results, nil
}

// GetArtifact returns one artifact by ID
func (s *LedgerAdapter) GetArtifact(ctx context.Context, artifactID core.ArtifactID) (*core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, exists := s.byID[artifactID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrArtifactNotFound, artifactID)
	}
	artifact := s.artifacts[idx]
	return &artifact, nil
}

// GetArtifactsByRun returns every artifact of a run
func (s *LedgerAdapter) GetArtifactsByRun(ctx context.Context, runID core.RunID) ([]core.Artifact, error) {
	return s.ListArtifacts(ctx, ports.ArtifactFilters{RunID: &runID})
}

// GetArtifactsByKind returns up to limit artifacts of one kind
func (s *LedgerAdapter) GetArtifactsByKind(ctx context.Context, kind core.ArtifactKind, limit int) ([]core.Artifact, error) {
	return s.ListArtifacts(ctx, ports.ArtifactFilters{Kind: &kind, Limit: limit})
}

// GetRunManifest returns the manifest of a run
func (s *LedgerAdapter) GetRunManifest(ctx context.Context, runID core.RunID) (*run.RunManifestArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.manifests[runID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
	}
	return m, nil
}

var _ ports.LedgerPort = (*LedgerAdapter)(nil)
