package inference

import (
	"errors"
	"math/rand"
	"testing"

	"goencode/domain/core"
	"goencode/domain/encoding"
	domainInference "goencode/domain/inference"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func constant(r, c int, v float64) *mat.Dense {
	m := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, v)
		}
	}
	return m
}

// peaked builds subjects whose time course peaks at timepoint peak.
func peaked(rng *rand.Rand, subjects, timepoints, peak int) *mat.Dense {
	m := mat.NewDense(subjects, timepoints, nil)
	for i := 0; i < subjects; i++ {
		for t := 0; t < timepoints; t++ {
			v := 0.05 + 0.01*rng.Float64()
			if t == peak {
				v = 0.5 + 0.01*rng.Float64()
			}
			m.Set(i, t, v)
		}
	}
	return m
}

func bootstrapper(nPerm int) Bootstrapper {
	return Bootstrapper{NPerm: nPerm, Timeline: domainInference.DefaultTimeline(), Level: 0.95}
}

func TestRankDataAveragesTies(t *testing.T) {
	assert.Equal(t, []float64{4, 1, 2.5, 2.5}, RankData([]float64{3, 1, 2, 2}))
	assert.Equal(t, []float64{2, 2, 2}, RankData([]float64{7, 7, 7}))
	assert.Empty(t, RankData(nil))
}

func TestPercentileIndex(t *testing.T) {
	idx, err := PercentileIndex(0.975, 1000)
	require.NoError(t, err)
	assert.Equal(t, 975, idx)

	lo, hi := Quantiles(0.95)
	idx, err = PercentileIndex(lo, 1000)
	require.NoError(t, err)
	assert.Equal(t, 25, idx)
	idx, err = PercentileIndex(hi, 1000)
	require.NoError(t, err)
	assert.Equal(t, 975, idx)

	_, err = PercentileIndex(hi, 39)
	assert.True(t, errors.Is(err, core.ErrInsufficientSamples))
	assert.Equal(t, 40, MinDraws(0.95))
}

func TestFDRCorrect(t *testing.T) {
	corrected, reject := FDRCorrect([]float64{0.01, 0.04, 0.03, 0.20}, 0.05)
	assert.InDeltaSlice(t, []float64{0.04, 0.16 / 3, 0.16 / 3, 0.2}, corrected, 1e-12)
	assert.Equal(t, []bool{true, false, false, false}, reject)

	// Step-up: the larger p passes its threshold and carries the smaller one.
	corrected, reject = FDRCorrect([]float64{0.04, 0.045}, 0.05)
	assert.InDeltaSlice(t, []float64{0.045, 0.045}, corrected, 1e-12)
	assert.Equal(t, []bool{true, true}, reject)

	corrected, _ = FDRCorrect([]float64{0.9, 0.8, 1.0}, 0.05)
	for _, q := range corrected {
		assert.LessOrEqual(t, q, 1.0)
	}

	corrected, reject = FDRCorrect(nil, 0.05)
	assert.Empty(t, corrected)
	assert.Empty(t, reject)
}

func TestAccuracyCIConstantScoresCollapse(t *testing.T) {
	scores := constant(10, 5, 0.1)

	intervals, err := bootstrapper(1000).AccuracyCI(scores, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	require.Len(t, intervals, 5)
	for _, iv := range intervals {
		assert.InDelta(t, 0.1, iv.Lower, 1e-12)
		assert.InDelta(t, 0.1, iv.Upper, 1e-12)
	}

	peak, err := bootstrapper(1000).PeakLatencyCI(scores, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	assert.Equal(t, domainInference.PeakInterval{Lower: -400, Peak: -400, Upper: -400}, peak)
}

func TestAccuracyCICoversMean(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	scores := mat.NewDense(15, 3, nil)
	for i := 0; i < 15; i++ {
		for t := 0; t < 3; t++ {
			scores.Set(i, t, 0.2+0.05*rng.NormFloat64())
		}
	}

	intervals, err := bootstrapper(2000).AccuracyCI(scores, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	for tp, iv := range intervals {
		col := mat.Col(nil, tp, scores)
		var mean float64
		for _, v := range col {
			mean += v / float64(len(col))
		}
		assert.True(t, iv.Contains(mean), "timepoint %d: %v does not contain %g", tp, iv, mean)
		assert.Greater(t, iv.Width(), 0.0)
	}
}

func TestBootstrapIsDeterministicPerSeed(t *testing.T) {
	scores := peaked(rand.New(rand.NewSource(3)), 8, 6, 2)
	b := bootstrapper(500)

	first, err := b.AccuracyCI(scores, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	second, err := b.AccuracyCI(scores, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBootstrapRejectsTooFewDraws(t *testing.T) {
	_, err := bootstrapper(39).AccuracyCI(constant(3, 2, 0.1), rand.New(rand.NewSource(1)))
	assert.True(t, errors.Is(err, core.ErrInsufficientSamples))

	single, err := bootstrapper(1000).AccuracyCI(constant(1, 1, 0.3), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, []domainInference.Interval{{Lower: 0.3, Upper: 0.3}}, single)

	_, err = bootstrapper(1000).AccuracyCI(&mat.Dense{}, rand.New(rand.NewSource(1)))
	assert.True(t, errors.Is(err, core.ErrInvalidInputShape))
}

func TestBootstrapRequiresTimeline(t *testing.T) {
	b := Bootstrapper{NPerm: 100}
	scores := peaked(rand.New(rand.NewSource(3)), 5, 4, 2)

	_, err := b.PeakLatencyCI(scores, rand.New(rand.NewSource(1)))
	assert.True(t, errors.Is(err, core.ErrInvalidInputShape))
	_, err = b.PeakDifferenceCI(scores, scores, rand.New(rand.NewSource(1)))
	assert.True(t, errors.Is(err, core.ErrInvalidInputShape))

	b.Timeline = domainInference.DefaultTimeline()
	_, err = b.PeakLatencyCI(scores, rand.New(rand.NewSource(1)))
	assert.NoError(t, err)
}

func TestPeakLatencyCI(t *testing.T) {
	scores := peaked(rand.New(rand.NewSource(4)), 12, 10, 3)

	peak, err := bootstrapper(1000).PeakLatencyCI(scores, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	assert.Equal(t, domainInference.PeakInterval{Lower: -340, Peak: -340, Upper: -340}, peak)
}

func TestPeakDifferences(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	edges := peaked(rng, 12, 10, 1)
	skeleton := peaked(rng, 12, 10, 3)
	action := peaked(rng, 12, 10, 6)
	b := bootstrapper(1000)

	d, err := b.PeakDifferenceCI(skeleton, edges, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	assert.Equal(t, 40.0, d.Estimate)
	assert.Equal(t, 40.0, d.Lower)
	assert.Equal(t, 40.0, d.Upper)

	all, err := b.PairwisePeakDifferences(
		[]string{"edges", "skeleton", "action"},
		[]mat.Matrix{edges, skeleton, action},
		rand.New(rand.NewSource(42)),
	)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 100.0, all["action vs. edges"].Estimate)
	assert.Equal(t, 60.0, all["action vs. skeleton"].Estimate)
	assert.Equal(t, "skeleton", all["skeleton vs. edges"].FeatureA)

	_, err = b.PeakDifferenceCI(edges, constant(11, 10, 0), rand.New(rand.NewSource(42)))
	assert.True(t, errors.Is(err, core.ErrInvalidInputShape))
}

func TestPermutationIdenticalGroups(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	a := peaked(rng, 6, 4, 1)

	res, err := PermutationTester{NPerm: 1000, Tail: domainInference.TailBoth}.Test(a, a, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	for tp := range res.Observed {
		assert.InDelta(t, 0.0, res.Observed[tp], 1e-12)
		assert.Greater(t, res.PValues[tp], 0.5)
		assert.False(t, res.Reject[tp])
	}
	assert.Equal(t, 0.05, res.Alpha)
}

func TestPermutationSeparatedGroups(t *testing.T) {
	a := constant(5, 3, 1)
	b := constant(5, 3, -1)

	for _, tail := range []domainInference.Tail{domainInference.TailBoth, domainInference.TailRight} {
		res, err := PermutationTester{NPerm: 1000, Tail: tail, Alpha: 0.05}.Test(a, b, rand.New(rand.NewSource(42)))
		require.NoError(t, err)
		assert.Equal(t, []float64{2, 2, 2}, res.Observed)
		for tp := range res.PValues {
			assert.Less(t, res.PValues[tp], 0.05, string(tail))
			assert.True(t, res.Reject[tp])
			assert.GreaterOrEqual(t, res.Corrected[tp], res.PValues[tp])
			assert.InDelta(t, 0.0, res.Null[tp].Mean, 0.1)
			assert.LessOrEqual(t, res.Null[tp].Max, 2.0)
		}
		assert.Equal(t, []int{0, 1, 2}, res.Significant())
		assert.Contains(t, Describe(res), "3/3 timepoints significant")
	}
}

func TestPermutationSignConvention(t *testing.T) {
	a := constant(4, 2, -0.5)
	b := constant(6, 2, 0.5)

	res, err := PermutationTester{NPerm: 200, Tail: domainInference.TailRight}.Test(a, b, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -1}, res.Observed)
	// Under the right tail a negative observed difference is never significant.
	assert.Greater(t, res.PValues[0], 0.9)
}

func TestPermutationValidates(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := PermutationTester{NPerm: 100}.Test(constant(3, 4, 0), constant(3, 5, 0), rng)
	assert.True(t, errors.Is(err, core.ErrInvalidInputShape))

	_, err = PermutationTester{NPerm: 1}.Test(constant(3, 4, 0), constant(3, 4, 0), rng)
	assert.True(t, errors.Is(err, core.ErrInsufficientSamples))

	_, err = PermutationTester{NPerm: 10, Tail: "left"}.Test(constant(3, 4, 0), constant(3, 4, 0), rng)
	assert.Error(t, err)
}

func TestScoreMatrixFromSubjects(t *testing.T) {
	subjects := []*encoding.EncodingResult{
		{Correlation: [][]float64{{0.1, 0.3}, {0.5, 0.7}}},
		{Correlation: [][]float64{{0.0, 0.2}, {0.4, 0.4}}},
	}
	m, err := ScoreMatrixFromSubjects(subjects)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(mat.NewDense(2, 2, []float64{0.2, 0.6, 0.1, 0.4}), m, 1e-12))

	subjects[1].Correlation = subjects[1].Correlation[:1]
	_, err = ScoreMatrixFromSubjects(subjects)
	assert.True(t, errors.Is(err, core.ErrInvalidInputShape))

	_, err = ChannelMeans([][]float64{{}})
	assert.Error(t, err)
}
