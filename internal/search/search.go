// Package search sweeps a penalty grid over every timepoint (or network
// layer) of one feature and selects the best penalty per timepoint and in
// aggregate.
package search

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"goencode/domain/core"
	"goencode/domain/encoding"
	"goencode/internal"
	"goencode/internal/metrics"
	"goencode/internal/ridge"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// Searcher runs grid searches. Workers bounds how many timepoints are fitted
// concurrently; zero means GOMAXPROCS.
type Searcher struct {
	Solver  ridge.Solver
	Workers int
	Logger  *internal.Logger
}

// Request describes one feature's search.
//
// Weights may be empty (plain channel mean), hold one vector shared by every
// timepoint, or one vector per timepoint. Vector lengths must match the
// channel count of the timepoints they apply to.
type Request struct {
	Feature   *encoding.FeatureSet
	Grid      encoding.PenaltyGrid
	Responses []encoding.ResponseSet
	Weights   [][]float64
}

// Result is a finished search of one feature.
type Result struct {
	Feature   core.FeatureName          `json:"feature"`
	Penalties []float64                 `json:"penalties"`
	Scores    *encoding.ScoreTensor     `json:"scores"`
	Selection *encoding.SelectionResult `json:"selection"`
	Fallbacks int                       `json:"solver_fallbacks"`
	Duration  time.Duration             `json:"duration_ns"`
}

// Validate checks the request's shapes and weights.
func (r Request) Validate() error {
	if err := r.Feature.Validate(); err != nil {
		return err
	}
	if err := r.Grid.Validate(); err != nil {
		return err
	}
	if len(r.Responses) == 0 {
		return core.NewShapeError(string(r.Feature.Name), "no responses")
	}
	for _, resp := range r.Responses {
		if err := resp.Validate(r.Feature); err != nil {
			return err
		}
	}
	switch len(r.Weights) {
	case 0, 1, len(r.Responses):
	default:
		return fmt.Errorf("%w: %d weight vectors for %d timepoints", core.ErrInvalidWeights, len(r.Weights), len(r.Responses))
	}
	for t, resp := range r.Responses {
		if err := validateWeights(r.weightsFor(t), resp.Channels()); err != nil {
			return fmt.Errorf("%s: %w", resp.Label, err)
		}
	}
	return nil
}

func (r Request) weightsFor(t int) []float64 {
	switch len(r.Weights) {
	case 0:
		return nil
	case 1:
		return r.Weights[0]
	}
	return r.Weights[t]
}

func validateWeights(w []float64, channels int) error {
	if w == nil {
		return nil
	}
	if len(w) != channels {
		return fmt.Errorf("%w: %d weights for %d channels", core.ErrInvalidWeights, len(w), channels)
	}
	for _, v := range w {
		if v < 0 {
			return fmt.Errorf("%w: negative weight %g", core.ErrInvalidWeights, v)
		}
	}
	if floats.Sum(w) <= 0 {
		return fmt.Errorf("%w: weights sum to zero", core.ErrInvalidWeights)
	}
	return nil
}

func (s *Searcher) workers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Run fills the score tensor for every (timepoint, penalty, channel) and
// derives the selection from it.
func (s *Searcher) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	logger := internal.OrDefault(s.Logger)
	start := time.Now()

	labels := make([]string, len(req.Responses))
	channels := make([]int, len(req.Responses))
	for t, resp := range req.Responses {
		labels[t] = resp.Label
		channels[t] = resp.Channels()
	}
	scores, err := encoding.NewScoreTensor(labels, req.Grid.Len(), channels)
	if err != nil {
		return nil, err
	}

	fallbacks := make([]int, len(req.Responses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for t := range req.Responses {
		t := t
		g.Go(func() error {
			n, err := s.sweep(gctx, req, t, scores)
			fallbacks[t] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	selection, err := Select(scores, req.Grid, req.weightsFor)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Feature:   req.Feature.Name,
		Penalties: append([]float64(nil), req.Grid...),
		Scores:    scores,
		Selection: selection,
		Fallbacks: total(fallbacks),
		Duration:  time.Since(start),
	}
	logger.Info("search %s: %d timepoints x %d penalties in %v (aggregate rmse alpha=%g, corr alpha=%g)",
		req.Feature.Name, len(labels), req.Grid.Len(), result.Duration,
		selection.AggregatePenaltyRMSE, selection.AggregatePenaltyCorr)
	return result, nil
}

// sweep fits every penalty for timepoint t and writes its tensor rows.
func (s *Searcher) sweep(ctx context.Context, req Request, t int, scores *encoding.ScoreTensor) (int, error) {
	resp := req.Responses[t]
	fallbacks := 0
	for p, penalty := range req.Grid {
		if err := ctx.Err(); err != nil {
			return fallbacks, err
		}
		model, err := s.Solver.Fit(req.Feature.Train, resp.Train, penalty)
		if err != nil {
			return fallbacks, fmt.Errorf("fit %s at %s, penalty %g: %w", req.Feature.Name, resp.Label, penalty, err)
		}
		if model.FellBack {
			fallbacks++
		}
		pred, err := model.Predict(req.Feature.Validation)
		if err != nil {
			return fallbacks, err
		}
		rmse, err := metrics.RMSE(pred, resp.Validation, true)
		if err != nil {
			return fallbacks, err
		}
		corr, err := metrics.Correlation(pred, resp.Validation)
		if err != nil {
			return fallbacks, err
		}
		if err := scores.Set(t, p, rmse, corr); err != nil {
			return fallbacks, err
		}
	}
	internal.OrDefault(s.Logger).Trace("search %s: %s done", req.Feature.Name, resp.Label)
	return fallbacks, nil
}

func total(v []int) int {
	n := 0
	for _, x := range v {
		n += x
	}
	return n
}
