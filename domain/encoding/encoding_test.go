package encoding

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"goencode/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestDefaultGridMatchesLogspace(t *testing.T) {
	g := DefaultGrid()
	require.Equal(t, 10, g.Len())
	assert.InDelta(t, 1e-5, g.Value(0), 1e-18)
	assert.InDelta(t, 1e10, g.Value(9), 1e-3)
	for i := 1; i < g.Len(); i++ {
		ratio := g.Value(i) / g.Value(i-1)
		assert.InDelta(t, math.Pow(10, 15.0/9.0), ratio, 1e-9)
	}
}

func TestGridValidate(t *testing.T) {
	assert.ErrorIs(t, PenaltyGrid{}.Validate(), core.ErrInvalidPenalty)
	assert.ErrorIs(t, PenaltyGrid{1, 0}.Validate(), core.ErrInvalidPenalty)
	assert.ErrorIs(t, PenaltyGrid{-1}.Validate(), core.ErrInvalidPenalty)
	assert.ErrorIs(t, PenaltyGrid{math.NaN()}.Validate(), core.ErrInvalidPenalty)
	assert.NoError(t, PenaltyGrid{0.1, 1}.Validate())

	_, err := NewLogspaceGrid(0, 1, 0)
	assert.ErrorIs(t, err, core.ErrInvalidPenalty)
}

func TestScoreTensorWritesOnce(t *testing.T) {
	st, err := NewScoreTensor([]string{"t0", "t1"}, 2, []int{3, 1})
	require.NoError(t, err)

	require.NoError(t, st.Set(0, 0, []float64{1, 2, 3}, []float64{.1, .2, .3}))
	err = st.Set(0, 0, []float64{1, 2, 3}, []float64{.1, .2, .3})
	assert.True(t, errors.Is(err, core.ErrDuplicateWrite))

	assert.ErrorIs(t, st.Set(2, 0, []float64{1}, []float64{1}), core.ErrInvalidInputShape)
	assert.ErrorIs(t, st.Set(1, 0, []float64{1, 2}, []float64{1, 2}), core.ErrInvalidInputShape)
	assert.False(t, st.Complete())

	require.NoError(t, st.Set(0, 1, []float64{4, 5, 6}, []float64{.4, .5, .6}))
	require.NoError(t, st.Set(1, 0, []float64{7}, []float64{.7}))
	require.NoError(t, st.Set(1, 1, []float64{8}, []float64{.8}))
	assert.True(t, st.Complete())
	assert.Equal(t, []float64{4, 5, 6}, st.RMSEAt(0, 1))
	assert.Equal(t, 1, st.Channels(1))
}

func TestScoreTensorJSONRestoresShape(t *testing.T) {
	st, err := NewScoreTensor([]string{"layer1", "layer2"}, 1, []int{2, 3})
	require.NoError(t, err)
	require.NoError(t, st.Set(0, 0, []float64{1, 2}, []float64{.5, .6}))
	require.NoError(t, st.Set(1, 0, []float64{3, 4, 5}, []float64{.1, .2, .3}))

	data, err := json.Marshal(st)
	require.NoError(t, err)

	var back ScoreTensor
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 3, back.Channels(1))
	assert.Equal(t, "layer2", back.Label(1))
	assert.Equal(t, []float64{.1, .2, .3}, back.CorrelationAt(1, 0))
	assert.True(t, back.Complete())
}

func TestResponseSetValidate(t *testing.T) {
	fs := &FeatureSet{
		Name:       "edges",
		Train:      mat.NewDense(4, 2, nil),
		Validation: mat.NewDense(2, 2, nil),
	}
	require.NoError(t, fs.Validate())

	ok := ResponseSet{Label: "t0", Train: mat.NewDense(4, 3, nil), Validation: mat.NewDense(2, 3, nil)}
	assert.NoError(t, ok.Validate(fs))

	channels := ResponseSet{Label: "t0", Train: mat.NewDense(4, 3, nil), Validation: mat.NewDense(2, 2, nil)}
	assert.ErrorIs(t, channels.Validate(fs), core.ErrInvalidInputShape)

	samples := ResponseSet{Label: "t0", Train: mat.NewDense(5, 3, nil), Validation: mat.NewDense(2, 3, nil)}
	assert.ErrorIs(t, samples.Validate(fs), core.ErrInvalidInputShape)
}

func TestSelectionPenaltyFor(t *testing.T) {
	sel := &SelectionResult{
		BestPenaltyRMSE:      []float64{1, 10},
		BestPenaltyCorr:      []float64{100, 1000},
		AggregatePenaltyRMSE: 5,
		AggregatePenaltyCorr: 50,
	}
	p, err := sel.PenaltyFor(PolicyTimepointCorr, 1)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, p)

	p, err = sel.PenaltyFor(PolicyAggregateRMSE, 7)
	require.NoError(t, err)
	assert.Equal(t, 5.0, p)

	_, err = sel.PenaltyFor(PolicyTimepointRMSE, 2)
	assert.Error(t, err)

	_, err = ParsePolicy("best")
	assert.Error(t, err)
}
