package app

import (
	"context"
	"fmt"
	"time"

	"goencode/domain/core"
	"goencode/domain/encoding"
	"goencode/domain/run"
	"goencode/internal"
	"goencode/internal/errors"
	"goencode/internal/search"
	"goencode/ports"
)

// Manifest parameters of search runs read back by EncodedScoreSource
const (
	ParamSubject = "subject"
	ParamGroup   = "group"
)

// SearchService runs penalty searches for a list of features against one
// subject's responses and records the results in the ledger.
type SearchService struct {
	searcher  *search.Searcher
	features  ports.FeatureSource
	responses ports.ResponseSource
	weights   ports.WeightSource
	ledger    ports.LedgerWriterPort
	workers   int
	logger    *internal.Logger
}

// NewSearchService creates a search service. weights may be nil for
// unweighted channel reduction.
func NewSearchService(
	searcher *search.Searcher,
	features ports.FeatureSource,
	responses ports.ResponseSource,
	weights ports.WeightSource,
	ledger ports.LedgerWriterPort,
	workers int,
	logger *internal.Logger,
) *SearchService {
	return &SearchService{
		searcher:  searcher,
		features:  features,
		responses: responses,
		weights:   weights,
		ledger:    ledger,
		workers:   workers,
		logger:    internal.OrDefault(logger).With("search"),
	}
}

// SearchRunRequest defines one search run. An empty Features list searches
// every feature the source knows. With Encode set, features that carry a
// test split are refitted with the Policy's penalty and scored on it.
// Group tags the subject so its encodings can be bootstrapped or tested
// together with the rest of the group later.
type SearchRunRequest struct {
	RunID    core.RunID
	Subject  string
	Group    string
	Features []core.FeatureName
	Grid     encoding.PenaltyGrid
	Policy   encoding.Policy
	Encode   bool
}

// SearchRunResult is the outcome of a search run. Results are in feature
// order; Encodings holds the features that were scored on a test split.
type SearchRunResult struct {
	RunID     core.RunID                                     `json:"run_id"`
	Manifest  *run.RunManifestArtifact                       `json:"manifest"`
	Results   []*search.Result                               `json:"results"`
	Encodings map[core.FeatureName]*encoding.EncodingResult `json:"encodings,omitempty"`
	RuntimeMs int64                                          `json:"runtime_ms"`
}

// Run executes the search run. The manifest is stored before any result.
func (s *SearchService) Run(ctx context.Context, req SearchRunRequest) (*SearchRunResult, error) {
	start := time.Now()

	if err := req.Grid.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid penalty grid")
	}
	if req.Policy == "" {
		req.Policy = encoding.PolicyTimepointCorr
	}
	features := req.Features
	if len(features) == 0 {
		listed, err := s.features.ListFeatures(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to list features")
		}
		features = listed
	}
	if len(features) == 0 {
		return nil, errors.InvalidInput("no features to search")
	}

	responses, err := s.responses.LoadResponses(ctx, req.Subject)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load responses of %s", req.Subject)
	}
	labels := make([]string, len(responses))
	for i, r := range responses {
		labels[i] = r.Label
	}
	var weights [][]float64
	if s.weights != nil {
		weights, err = s.weights.LoadWeights(ctx, req.Subject, labels)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load weights of %s", req.Subject)
		}
	}

	runID := req.RunID
	if runID == "" {
		runID = core.NewRunID()
	}
	var cohorts map[string][]string
	if req.Group != "" {
		cohorts = map[string][]string{ParamGroup: {req.Group}}
	}
	manifest := run.NewRunManifestArtifact(runID, run.AnalysisSearch, featureStrings(features), req.Grid, cohorts, 0, map[string]string{
		ParamSubject: req.Subject,
		ParamGroup:   req.Group,
		"solver":     s.searcher.Solver.Strategy.String(),
		"policy":     string(req.Policy),
		"weighted":   fmt.Sprintf("%t", weights != nil),
	})
	if err := s.ledger.StoreRunManifest(ctx, manifest); err != nil {
		return nil, errors.Wrap(err, "failed to store run manifest")
	}

	s.logger.Info("run %s: searching %d features over %d timepoints, %d penalties",
		runID, len(features), len(responses), req.Grid.Len())

	results := make([]*search.Result, len(features))
	encodings := make([]*encoding.EncodingResult, len(features))
	err = forEachFeature(ctx, s.workers, len(features), func(ctx context.Context, i int) error {
		feature, err := s.features.LoadFeature(ctx, features[i])
		if err != nil {
			return errors.Wrapf(err, "failed to load feature %s", features[i])
		}
		searchReq := search.Request{Feature: feature, Grid: req.Grid, Responses: responses, Weights: weights}
		res, err := s.searcher.Run(ctx, searchReq)
		if err != nil {
			return errors.Wrapf(err, "search of %s failed", features[i])
		}
		results[i] = res

		if req.Encode && feature.Test != nil {
			enc, err := s.searcher.Encode(ctx, searchReq, res.Selection, req.Policy)
			if err != nil {
				return errors.Wrapf(err, "encoding of %s failed", features[i])
			}
			encodings[i] = enc
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := &SearchRunResult{RunID: runID, Manifest: manifest, Results: results}
	for i, res := range results {
		if err := s.store(ctx, runID, core.ArtifactSearch, features[i], res); err != nil {
			return nil, err
		}
		if encodings[i] != nil {
			if err := s.store(ctx, runID, core.ArtifactEncoding, features[i], encodings[i]); err != nil {
				return nil, err
			}
			if out.Encodings == nil {
				out.Encodings = make(map[core.FeatureName]*encoding.EncodingResult)
			}
			out.Encodings[features[i]] = encodings[i]
		}
		s.logger.Debug("%s: aggregate penalty %g (rmse) / %g (correlation), %d fallbacks",
			features[i], res.Selection.AggregatePenaltyRMSE, res.Selection.AggregatePenaltyCorr, res.Fallbacks)
	}
	out.RuntimeMs = time.Since(start).Milliseconds()

	s.logger.Info("run %s: completed in %dms", runID, out.RuntimeMs)
	return out, nil
}

func (s *SearchService) store(ctx context.Context, runID core.RunID, kind core.ArtifactKind, feature core.FeatureName, payload interface{}) error {
	return storeArtifact(ctx, s.ledger, runID, kind, feature, payload)
}
