package search

import (
	"goencode/domain/core"
	"goencode/domain/encoding"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Select reduces a complete score tensor over channels and picks penalties.
// weights returns the channel weights of timepoint t, or nil for a plain mean.
func Select(scores *encoding.ScoreTensor, grid encoding.PenaltyGrid, weights func(t int) []float64) (*encoding.SelectionResult, error) {
	if !scores.Complete() {
		return nil, core.NewShapeError("score tensor", "not every cell has been written")
	}
	if scores.Penalties() != grid.Len() {
		return nil, core.NewShapeError("score tensor", "%d penalties, grid has %d", scores.Penalties(), grid.Len())
	}
	nt := scores.Timepoints()
	np := scores.Penalties()

	sel := &encoding.SelectionResult{
		BestIndexRMSE:   make([]int, nt),
		BestIndexCorr:   make([]int, nt),
		BestPenaltyRMSE: make([]float64, nt),
		BestPenaltyCorr: make([]float64, nt),
		ReducedRMSE:     make([][]float64, nt),
		ReducedCorr:     make([][]float64, nt),
	}
	for t := 0; t < nt; t++ {
		sel.Labels = append(sel.Labels, scores.Label(t))
		w := weights(t)
		if w != nil {
			sel.Weighted = true
		}
		sel.ReducedRMSE[t] = make([]float64, np)
		sel.ReducedCorr[t] = make([]float64, np)
		for p := 0; p < np; p++ {
			sel.ReducedRMSE[t][p] = reduce(scores.RMSEAt(t, p), w)
			sel.ReducedCorr[t][p] = reduce(scores.CorrelationAt(t, p), w)
		}
		sel.BestIndexRMSE[t] = floats.MinIdx(sel.ReducedRMSE[t])
		sel.BestIndexCorr[t] = floats.MaxIdx(sel.ReducedCorr[t])
		sel.BestPenaltyRMSE[t] = grid.Value(sel.BestIndexRMSE[t])
		sel.BestPenaltyCorr[t] = grid.Value(sel.BestIndexCorr[t])
	}

	aggRMSE := columnMeans(sel.ReducedRMSE, np)
	aggCorr := columnMeans(sel.ReducedCorr, np)
	sel.AggregateIndexRMSE = floats.MinIdx(aggRMSE)
	sel.AggregateIndexCorr = floats.MaxIdx(aggCorr)
	sel.AggregatePenaltyRMSE = grid.Value(sel.AggregateIndexRMSE)
	sel.AggregatePenaltyCorr = grid.Value(sel.AggregateIndexCorr)
	return sel, nil
}

// reduce collapses channel scores to Σw·s/Σw, or their mean when w is nil.
func reduce(s, w []float64) float64 {
	if w == nil {
		return stat.Mean(s, nil)
	}
	return floats.Dot(w, s) / floats.Sum(w)
}

func columnMeans(rows [][]float64, n int) []float64 {
	out := make([]float64, n)
	for _, row := range rows {
		floats.Add(out, row)
	}
	floats.Scale(1/float64(len(rows)), out)
	return out
}
