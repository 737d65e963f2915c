package search

import (
	"context"
	"fmt"

	"goencode/domain/core"
	"goencode/domain/encoding"
	"goencode/internal"
	"goencode/internal/metrics"

	"golang.org/x/sync/errgroup"
)

// Encode refits every timepoint on the training split with the penalty the
// policy selects and scores the held-out test split.
func (s *Searcher) Encode(ctx context.Context, req Request, sel *encoding.SelectionResult, policy encoding.Policy) (*encoding.EncodingResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Feature.Test == nil {
		return nil, core.NewShapeError(string(req.Feature.Name), "test split is required for encoding")
	}
	if sel == nil {
		return nil, core.NewShapeError("selection", "nil selection")
	}
	if len(sel.Labels) != len(req.Responses) {
		return nil, core.NewShapeError("selection", "%d timepoints, request has %d", len(sel.Labels), len(req.Responses))
	}
	for _, resp := range req.Responses {
		if resp.Test == nil {
			return nil, core.NewShapeError(resp.Label, "test responses are required for encoding")
		}
	}

	nt := len(req.Responses)
	out := &encoding.EncodingResult{
		Labels:      append([]string(nil), sel.Labels...),
		Policy:      policy,
		Penalties:   make([]float64, nt),
		Correlation: make([][]float64, nt),
		RMSE:        make([][]float64, nt),
		FellBack:    make([]bool, nt),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for t := range req.Responses {
		t := t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			penalty, err := sel.PenaltyFor(policy, t)
			if err != nil {
				return err
			}
			resp := req.Responses[t]
			model, err := s.Solver.Fit(req.Feature.Train, resp.Train, penalty)
			if err != nil {
				return fmt.Errorf("encode %s at %s: %w", req.Feature.Name, resp.Label, err)
			}
			pred, err := model.Predict(req.Feature.Test)
			if err != nil {
				return err
			}
			corr, err := metrics.Correlation(pred, resp.Test)
			if err != nil {
				return err
			}
			rmse, err := metrics.RMSE(pred, resp.Test, true)
			if err != nil {
				return err
			}
			out.Penalties[t] = penalty
			out.Correlation[t] = corr
			out.RMSE[t] = rmse
			out.FellBack[t] = model.FellBack
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	internal.OrDefault(s.Logger).Info("encode %s: %d timepoints with policy %s", req.Feature.Name, nt, policy)
	return out, nil
}
