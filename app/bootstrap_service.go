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

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Stage names seed independent RNG streams per feature
const (
	StageAccuracyCI     = "accuracy_ci"
	StagePeakCI         = "peak_ci"
	StagePeakDifference = "peak_difference"
	StagePermutation    = "permutation"
)

// BootstrapService computes accuracy, peak-latency and peak-difference
// confidence intervals from subjects × timepoints score matrices.
type BootstrapService struct {
	scores       ports.ScoreSource
	ledger       ports.LedgerWriterPort
	rng          ports.RNGPort
	bootstrapper inference.Bootstrapper
	workers      int
	logger       *internal.Logger
}

// NewBootstrapService creates a bootstrap service
func NewBootstrapService(
	scores ports.ScoreSource,
	ledger ports.LedgerWriterPort,
	rng ports.RNGPort,
	bootstrapper inference.Bootstrapper,
	workers int,
	logger *internal.Logger,
) *BootstrapService {
	return &BootstrapService{
		scores:       scores,
		ledger:       ledger,
		rng:          rng,
		bootstrapper: bootstrapper,
		workers:      workers,
		logger:       internal.OrDefault(logger).With("bootstrap"),
	}
}

// BootstrapRequest defines one bootstrap run over a group of subjects
type BootstrapRequest struct {
	RunID    core.RunID
	Group    string
	Features []core.FeatureName
	Seed     int64
	Pairwise bool
}

// BootstrapRunResult holds per-feature results in request order
type BootstrapRunResult struct {
	RunID       core.RunID                                `json:"run_id"`
	Manifest    *run.RunManifestArtifact                  `json:"manifest"`
	Accuracy    []*domainInference.AccuracyResult         `json:"accuracy"`
	Peaks       []domainInference.PeakResult              `json:"peaks"`
	Differences map[string]domainInference.PeakDifference `json:"differences,omitempty"`
	RuntimeMs   int64                                     `json:"runtime_ms"`
}

// Run executes the bootstrap run
func (s *BootstrapService) Run(ctx context.Context, req BootstrapRequest) (*BootstrapRunResult, error) {
	start := time.Now()

	if len(req.Features) == 0 {
		return nil, errors.InvalidInput("no features to bootstrap")
	}
	if req.Pairwise && len(req.Features) < 2 {
		return nil, errors.InvalidInput("pairwise peak differences need at least two features")
	}

	runID := req.RunID
	if runID == "" {
		runID = core.NewRunID()
	}
	names := featureStrings(req.Features)
	manifest := run.NewRunManifestArtifact(runID, run.AnalysisBootstrap, names, nil,
		map[string][]string{"group": {req.Group}}, req.Seed, map[string]string{
			"n_perm":   fmt.Sprintf("%d", s.bootstrapper.NPerm),
			"level":    fmt.Sprintf("%g", s.level()),
			"pairwise": fmt.Sprintf("%t", req.Pairwise),
		})
	if err := s.ledger.StoreRunManifest(ctx, manifest); err != nil {
		return nil, errors.Wrap(err, "failed to store run manifest")
	}

	s.logger.Info("run %s: bootstrapping %d features of group %s with %d draws",
		runID, len(names), req.Group, s.bootstrapper.NPerm)

	matrices := make([]mat.Matrix, len(names))
	accuracy := make([]*domainInference.AccuracyResult, len(names))
	peaks := make([]domainInference.PeakResult, len(names))
	err := forEachFeature(ctx, s.workers, len(names), func(ctx context.Context, i int) error {
		scores, err := s.scores.LoadScores(ctx, req.Group, req.Features[i])
		if err != nil {
			return errors.Wrapf(err, "failed to load scores of %s", names[i])
		}
		matrices[i] = scores

		acc, err := s.accuracy(ctx, runID, names[i], scores, req.Seed)
		if err != nil {
			return err
		}
		accuracy[i] = acc

		rng, err := s.rng.Stream(ctx, StagePeakCI, names[i], req.Seed)
		if err != nil {
			return errors.Wrap(err, "failed to seed peak stream")
		}
		peak, err := s.bootstrapper.PeakLatencyCI(scores, rng)
		if err != nil {
			return errors.Wrapf(err, "peak latency CI of %s failed", names[i])
		}
		peaks[i] = domainInference.PeakResult{Feature: names[i], Interval: peak, NPerm: s.bootstrapper.NPerm}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := &BootstrapRunResult{RunID: runID, Manifest: manifest, Accuracy: accuracy, Peaks: peaks}
	if req.Pairwise {
		rng, err := s.rng.Stream(ctx, StagePeakDifference, "pairwise", req.Seed)
		if err != nil {
			return nil, errors.Wrap(err, "failed to seed peak difference stream")
		}
		out.Differences, err = s.bootstrapper.PairwisePeakDifferences(names, matrices, rng)
		if err != nil {
			return nil, errors.Wrap(err, "pairwise peak differences failed")
		}
	}

	for i := range names {
		if err := s.store(ctx, runID, core.ArtifactAccuracyCI, req.Features[i], accuracy[i]); err != nil {
			return nil, err
		}
		if err := s.store(ctx, runID, core.ArtifactPeakCI, req.Features[i], peaks[i]); err != nil {
			return nil, err
		}
	}
	// Map iteration order is random; store differences in feature-pair order.
	for i := range names {
		for j := 0; j < i; j++ {
			diff, ok := out.Differences[domainInference.ComparisonKey(names[i], names[j])]
			if !ok {
				continue
			}
			if err := s.store(ctx, runID, core.ArtifactPeakDifference, "", diff); err != nil {
				return nil, err
			}
		}
	}
	out.RuntimeMs = time.Since(start).Milliseconds()

	s.logger.Info("run %s: completed in %dms", runID, out.RuntimeMs)
	return out, nil
}

func (s *BootstrapService) level() float64 {
	if s.bootstrapper.Level <= 0 || s.bootstrapper.Level >= 1 {
		return inference.DefaultLevel
	}
	return s.bootstrapper.Level
}

func (s *BootstrapService) accuracy(ctx context.Context, runID core.RunID, feature string, scores *mat.Dense, seed int64) (*domainInference.AccuracyResult, error) {
	rng, err := s.rng.Stream(ctx, StageAccuracyCI, feature, seed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to seed accuracy stream")
	}
	intervals, err := s.bootstrapper.AccuracyCI(scores, rng)
	if err != nil {
		return nil, errors.Wrapf(err, "accuracy CI of %s failed", feature)
	}

	n, nt := scores.Dims()
	col := make([]float64, n)
	means := make([]float64, nt)
	for t := range means {
		mat.Col(col, t, scores)
		means[t] = stat.Mean(col, nil)
	}
	return &domainInference.AccuracyResult{
		Feature:   feature,
		Labels:    s.bootstrapper.Timeline.Labels(nt),
		Mean:      means,
		Intervals: intervals,
		NPerm:     s.bootstrapper.NPerm,
	}, nil
}

func (s *BootstrapService) store(ctx context.Context, runID core.RunID, kind core.ArtifactKind, feature core.FeatureName, payload interface{}) error {
	return storeArtifact(ctx, s.ledger, runID, kind, feature, payload)
}
