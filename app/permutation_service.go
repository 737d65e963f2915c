package app

import (
	"context"
	"fmt"
	"time"

	"goencode/domain/core"
	domainInference "goencode/domain/inference"
	"goencode/domain/run"
	"goencode/internal"
	"goencode/internal/errors"
	"goencode/internal/inference"
	"goencode/ports"
)

// PermutationService tests, feature by feature, whether two groups of
// subjects differ in encoding accuracy at any timepoint.
type PermutationService struct {
	scores  ports.ScoreSource
	ledger  ports.LedgerWriterPort
	rng     ports.RNGPort
	tester  inference.PermutationTester
	workers int
	logger  *internal.Logger
}

// NewPermutationService creates a permutation service
func NewPermutationService(
	scores ports.ScoreSource,
	ledger ports.LedgerWriterPort,
	rng ports.RNGPort,
	tester inference.PermutationTester,
	workers int,
	logger *internal.Logger,
) *PermutationService {
	return &PermutationService{
		scores:  scores,
		ledger:  ledger,
		rng:     rng,
		tester:  tester,
		workers: workers,
		logger:  internal.OrDefault(logger).With("permtest"),
	}
}

// PermutationRequest compares GroupA against GroupB for every feature.
// Observed differences are mean(A) - mean(B).
type PermutationRequest struct {
	RunID    core.RunID
	GroupA   string
	GroupB   string
	Features []core.FeatureName
	Seed     int64
}

// PermutationRunResult holds one test result per feature, in request order
type PermutationRunResult struct {
	RunID     core.RunID                           `json:"run_id"`
	Manifest  *run.RunManifestArtifact             `json:"manifest"`
	Results   []*domainInference.PermutationResult `json:"results"`
	RuntimeMs int64                                `json:"runtime_ms"`
}

// Run executes the permutation run
func (s *PermutationService) Run(ctx context.Context, req PermutationRequest) (*PermutationRunResult, error) {
	start := time.Now()

	if len(req.Features) == 0 {
		return nil, errors.InvalidInput("no features to test")
	}
	if req.GroupA == "" || req.GroupB == "" {
		return nil, errors.InvalidInput("two groups are required")
	}

	runID := req.RunID
	if runID == "" {
		runID = core.NewRunID()
	}
	names := featureStrings(req.Features)
	manifest := run.NewRunManifestArtifact(runID, run.AnalysisPermutation, names, nil,
		map[string][]string{"a": {req.GroupA}, "b": {req.GroupB}}, req.Seed, map[string]string{
			"n_perm": fmt.Sprintf("%d", s.tester.NPerm),
			"tail":   string(s.tester.Tail),
			"alpha":  fmt.Sprintf("%g", s.tester.Alpha),
		})
	if err := s.ledger.StoreRunManifest(ctx, manifest); err != nil {
		return nil, errors.Wrap(err, "failed to store run manifest")
	}

	s.logger.Info("run %s: %s vs. %s over %d features, %d permutations",
		runID, req.GroupA, req.GroupB, len(names), s.tester.NPerm)

	results := make([]*domainInference.PermutationResult, len(names))
	err := forEachFeature(ctx, s.workers, len(names), func(ctx context.Context, i int) error {
		a, err := s.scores.LoadScores(ctx, req.GroupA, req.Features[i])
		if err != nil {
			return errors.Wrapf(err, "failed to load %s scores of %s", req.GroupA, names[i])
		}
		b, err := s.scores.LoadScores(ctx, req.GroupB, req.Features[i])
		if err != nil {
			return errors.Wrapf(err, "failed to load %s scores of %s", req.GroupB, names[i])
		}
		rng, err := s.rng.Stream(ctx, StagePermutation, names[i], req.Seed)
		if err != nil {
			return errors.Wrap(err, "failed to seed permutation stream")
		}
		res, err := s.tester.Test(a, b, rng)
		if err != nil {
			return errors.Wrapf(err, "permutation test of %s failed", names[i])
		}
		res.Feature = names[i]
		results[i] = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, res := range results {
		s.logger.Info("%s: %s", names[i], inference.Describe(res))
		if err := storeArtifact(ctx, s.ledger, runID, core.ArtifactPermutation, req.Features[i], res); err != nil {
			return nil, err
		}
	}

	out := &PermutationRunResult{RunID: runID, Manifest: manifest, Results: results, RuntimeMs: time.Since(start).Milliseconds()}
	s.logger.Info("run %s: completed in %dms", runID, out.RuntimeMs)
	return out, nil
}
