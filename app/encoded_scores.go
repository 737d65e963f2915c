package app

import (
	"context"
	"encoding/json"
	"sort"

	"goencode/domain/core"
	"goencode/domain/encoding"
	"goencode/domain/run"
	"goencode/internal/errors"
	"goencode/internal/inference"
	"goencode/ports"

	"gonum.org/v1/gonum/mat"
)

// EncodedScoreSource implements ports.ScoreSource over the encoding
// artifacts of earlier search runs. A group is the Group tag of those runs;
// every tagged subject contributes one row, its encoding correlations
// averaged over channels. Subjects are ordered by name and a subject
// searched twice keeps its latest encoding.
type EncodedScoreSource struct {
	ledger ports.LedgerReaderPort
}

// NewEncodedScoreSource creates a score source reading from ledger
func NewEncodedScoreSource(ledger ports.LedgerReaderPort) *EncodedScoreSource {
	return &EncodedScoreSource{ledger: ledger}
}

// LoadScores stacks the encodings of feature into a subjects × timepoints matrix
func (s *EncodedScoreSource) LoadScores(ctx context.Context, group string, feature core.FeatureName) (*mat.Dense, error) {
	kind := core.ArtifactEncoding
	artifacts, err := s.ledger.ListArtifacts(ctx, ports.ArtifactFilters{Kind: &kind, Feature: &feature})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list encodings of %s", feature)
	}

	manifests := make(map[core.RunID]*run.RunManifestArtifact)
	bySubject := make(map[string]*encoding.EncodingResult)
	for _, artifact := range artifacts {
		manifest, ok := manifests[artifact.RunID]
		if !ok {
			manifest, err = s.ledger.GetRunManifest(ctx, artifact.RunID)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to load manifest of %s", artifact.RunID)
			}
			manifests[artifact.RunID] = manifest
		}
		if manifest.Analysis != run.AnalysisSearch || manifest.Parameters[ParamGroup] != group {
			continue
		}
		enc, err := decodeEncoding(artifact.Payload)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode encoding %s", artifact.ID)
		}
		bySubject[manifest.Parameters[ParamSubject]] = enc
	}
	if len(bySubject) == 0 {
		return nil, core.NewNotFoundError("encoded scores", group+"/"+feature.String())
	}

	subjects := make([]string, 0, len(bySubject))
	for subject := range bySubject {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	results := make([]*encoding.EncodingResult, len(subjects))
	for i, subject := range subjects {
		results[i] = bySubject[subject]
	}

	scores, err := inference.ScoreMatrixFromSubjects(results)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stack encodings of %s", feature)
	}
	return scores, nil
}

// decodeEncoding accepts the Go value kept by the memory ledger as well as
// the raw JSON returned by the postgres ledger.
func decodeEncoding(payload interface{}) (*encoding.EncodingResult, error) {
	if enc, ok := payload.(*encoding.EncodingResult); ok {
		return enc, nil
	}
	raw, ok := payload.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	var enc encoding.EncodingResult
	if err := json.Unmarshal(raw, &enc); err != nil {
		return nil, err
	}
	return &enc, nil
}
