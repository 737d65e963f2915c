package search

import (
	"bytes"
	"context"
	"errors"
	"log"
	"math/rand"
	"testing"

	"goencode/domain/core"
	"goencode/domain/encoding"
	"goencode/internal"
	"goencode/internal/ridge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func quietLogger() *internal.Logger {
	return internal.NewLoggerTo(internal.LogLevelError, log.New(&bytes.Buffer{}, "", 0))
}

func gaussian(rng *rand.Rand, r, c int) *mat.Dense {
	m := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, rng.NormFloat64())
		}
	}
	return m
}

// linearRequest builds responses Y = X·B + noise for each channel count.
func linearRequest(seed int64, channels []int, noise float64) Request {
	rng := rand.New(rand.NewSource(seed))
	const d = 4
	feature := &encoding.FeatureSet{
		Name:       "edges",
		Train:      gaussian(rng, 60, d),
		Validation: gaussian(rng, 20, d),
		Test:       gaussian(rng, 20, d),
	}
	respond := func(x *mat.Dense, b *mat.Dense) *mat.Dense {
		var y mat.Dense
		y.Mul(x, b)
		r, c := y.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				y.Set(i, j, y.At(i, j)+noise*rng.NormFloat64())
			}
		}
		return &y
	}

	var responses []encoding.ResponseSet
	for t, c := range channels {
		b := gaussian(rng, d, c)
		responses = append(responses, encoding.ResponseSet{
			Label:      encodingLabel(t),
			Train:      respond(feature.Train, b),
			Validation: respond(feature.Validation, b),
			Test:       respond(feature.Test, b),
		})
	}
	grid, _ := encoding.NewLogspaceGrid(-3, 4, 8)
	return Request{Feature: feature, Grid: grid, Responses: responses}
}

func encodingLabel(t int) string {
	return []string{"-400ms", "-380ms", "-360ms", "-340ms", "-320ms"}[t]
}

func newSearcher(workers int) *Searcher {
	return &Searcher{
		Solver:  ridge.Solver{Strategy: ridge.Cholesky, Intercept: true, Logger: quietLogger()},
		Workers: workers,
		Logger:  quietLogger(),
	}
}

// tensorFrom builds a complete tensor from [timepoint][penalty][channel] values,
// using the same numbers for RMSE and correlation.
func tensorFrom(t *testing.T, values [][][]float64) *encoding.ScoreTensor {
	labels := make([]string, len(values))
	channels := make([]int, len(values))
	for i := range values {
		labels[i] = encodingLabel(i)
		channels[i] = len(values[i][0])
	}
	st, err := encoding.NewScoreTensor(labels, len(values[0]), channels)
	require.NoError(t, err)
	for ti, byPenalty := range values {
		for p, v := range byPenalty {
			require.NoError(t, st.Set(ti, p, v, v))
		}
	}
	return st
}

func unweighted(int) []float64 { return nil }

func TestRunFillsTensorAndSelects(t *testing.T) {
	req := linearRequest(1, []int{3, 3, 3}, 0.1)

	res, err := newSearcher(2).Run(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, res.Scores.Complete())
	assert.Equal(t, 3, res.Scores.Timepoints())
	assert.Equal(t, 8, res.Scores.Penalties())
	assert.Equal(t, []float64(req.Grid), res.Penalties)

	sel := res.Selection
	require.Len(t, sel.BestIndexRMSE, 3)
	for ti := range sel.BestIndexRMSE {
		assert.Equal(t, req.Grid.Value(sel.BestIndexRMSE[ti]), sel.BestPenaltyRMSE[ti])
		assert.Equal(t, req.Grid.Value(sel.BestIndexCorr[ti]), sel.BestPenaltyCorr[ti])
		// Low noise favours weak penalties over the strongest one.
		assert.Less(t, sel.BestIndexRMSE[ti], req.Grid.Len()-1)
	}
	assert.False(t, sel.Weighted)
}

func TestRunIsIndependentOfWorkerCount(t *testing.T) {
	req := linearRequest(2, []int{2, 2, 2, 2}, 0.5)

	serial, err := newSearcher(1).Run(context.Background(), req)
	require.NoError(t, err)
	parallel, err := newSearcher(4).Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, serial.Selection, parallel.Selection)
}

func TestRunLayersWithDifferentChannelCounts(t *testing.T) {
	req := linearRequest(3, []int{2, 5, 1}, 0.2)
	req.Weights = [][]float64{{1, 1}, {0.5, 0.1, 0.1, 0.2, 0.1}, {1}}

	res, err := newSearcher(0).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Scores.Channels(1))
	assert.True(t, res.Selection.Weighted)
}

func TestRunRejectsBadWeights(t *testing.T) {
	req := linearRequest(4, []int{2, 2}, 0.1)

	req.Weights = [][]float64{{1, 2, 3}}
	_, err := newSearcher(1).Run(context.Background(), req)
	assert.True(t, errors.Is(err, core.ErrInvalidWeights))

	req.Weights = [][]float64{{0, 0}}
	_, err = newSearcher(1).Run(context.Background(), req)
	assert.True(t, errors.Is(err, core.ErrInvalidWeights))

	req.Weights = [][]float64{{1, 1}, {1, 1}, {1, 1}}
	_, err = newSearcher(1).Run(context.Background(), req)
	assert.True(t, errors.Is(err, core.ErrInvalidWeights))
}

func TestRunRejectsShapeMismatch(t *testing.T) {
	req := linearRequest(5, []int{2}, 0.1)
	req.Responses[0].Validation = mat.NewDense(7, 2, nil)

	_, err := newSearcher(1).Run(context.Background(), req)
	assert.True(t, errors.Is(err, core.ErrInvalidInputShape))
}

func TestRunHonoursCancellation(t *testing.T) {
	req := linearRequest(6, []int{2, 2}, 0.1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSearcher(1).Run(ctx, req)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSelectTiesGoToLowestIndex(t *testing.T) {
	st := tensorFrom(t, [][][]float64{
		{{0.5, 0.5}, {0.5, 0.5}, {0.5, 0.5}},
	})
	grid := encoding.PenaltyGrid{1, 10, 100}

	sel, err := Select(st, grid, unweighted)
	require.NoError(t, err)
	assert.Equal(t, 0, sel.BestIndexRMSE[0])
	assert.Equal(t, 0, sel.BestIndexCorr[0])
	assert.Equal(t, 0, sel.AggregateIndexRMSE)
	assert.Equal(t, 0, sel.AggregateIndexCorr)
	assert.Equal(t, 1.0, sel.AggregatePenaltyRMSE)
}

func TestSelectWeightedReduction(t *testing.T) {
	// Channel 0 prefers penalty 1 (lower), channel 1 prefers penalty 0.
	st := tensorFrom(t, [][][]float64{
		{{0.4, 0.1}, {0.2, 0.9}},
	})
	grid := encoding.PenaltyGrid{1, 10}

	plain, err := Select(st, grid, unweighted)
	require.NoError(t, err)
	// means: p0 = 0.25, p1 = 0.55
	assert.Equal(t, 0, plain.BestIndexRMSE[0])
	assert.Equal(t, 1, plain.BestIndexCorr[0])
	assert.InDeltaSlice(t, []float64{0.25, 0.55}, plain.ReducedRMSE[0], 1e-12)

	weighted, err := Select(st, grid, func(int) []float64 { return []float64{3, 1} })
	require.NoError(t, err)
	// weighted: p0 = (1.2+0.1)/4 = 0.325, p1 = (0.6+0.9)/4 = 0.375
	assert.InDeltaSlice(t, []float64{0.325, 0.375}, weighted.ReducedRMSE[0], 1e-12)
	assert.True(t, weighted.Weighted)

	channelZero, err := Select(st, grid, func(int) []float64 { return []float64{1, 0} })
	require.NoError(t, err)
	assert.Equal(t, 1, channelZero.BestIndexRMSE[0])
	assert.Equal(t, 10.0, channelZero.BestPenaltyRMSE[0])
}

func TestSelectAggregateAveragesTimepoints(t *testing.T) {
	st := tensorFrom(t, [][][]float64{
		{{0.1}, {0.3}, {0.5}},
		{{0.9}, {0.4}, {0.2}},
	})
	grid := encoding.PenaltyGrid{1, 2, 3}

	sel, err := Select(st, grid, unweighted)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, sel.BestIndexRMSE)
	assert.Equal(t, []int{2, 0}, sel.BestIndexCorr)
	// aggregate means: 0.5, 0.35, 0.35 -> argmin ties to 1, argmax 0
	assert.Equal(t, 1, sel.AggregateIndexRMSE)
	assert.Equal(t, 2.0, sel.AggregatePenaltyRMSE)
	assert.Equal(t, 0, sel.AggregateIndexCorr)
}

func TestSelectRequiresCompleteTensor(t *testing.T) {
	st, err := encoding.NewScoreTensor([]string{"a"}, 2, []int{1})
	require.NoError(t, err)
	require.NoError(t, st.Set(0, 0, []float64{1}, []float64{1}))

	_, err = Select(st, encoding.PenaltyGrid{1, 2}, unweighted)
	assert.True(t, errors.Is(err, core.ErrInvalidInputShape))
}

func TestEncodeScoresTestSplit(t *testing.T) {
	req := linearRequest(7, []int{3, 3}, 0.05)
	s := newSearcher(2)

	res, err := s.Run(context.Background(), req)
	require.NoError(t, err)

	enc, err := s.Encode(context.Background(), req, res.Selection, encoding.PolicyTimepointCorr)
	require.NoError(t, err)
	require.Len(t, enc.Correlation, 2)
	for ti, row := range enc.Correlation {
		assert.Equal(t, res.Selection.BestPenaltyCorr[ti], enc.Penalties[ti])
		for _, r := range row {
			assert.Greater(t, r, 0.9)
		}
	}

	agg, err := s.Encode(context.Background(), req, res.Selection, encoding.PolicyAggregateRMSE)
	require.NoError(t, err)
	assert.Equal(t, []float64{res.Selection.AggregatePenaltyRMSE, res.Selection.AggregatePenaltyRMSE}, agg.Penalties)
}

func TestEncodeRequiresTestSplit(t *testing.T) {
	req := linearRequest(8, []int{2}, 0.1)
	res, err := newSearcher(1).Run(context.Background(), req)
	require.NoError(t, err)

	req.Feature.Test = nil
	_, err = newSearcher(1).Encode(context.Background(), req, res.Selection, encoding.PolicyAggregateCorr)
	assert.True(t, errors.Is(err, core.ErrInvalidInputShape))
}

func TestEncodeRejectsMissingSelection(t *testing.T) {
	req := linearRequest(9, []int{2}, 0.1)

	assert.NotPanics(t, func() {
		_, err := newSearcher(1).Encode(context.Background(), req, nil, encoding.PolicyTimepointCorr)
		assert.True(t, errors.Is(err, core.ErrInvalidInputShape))
	})
}
