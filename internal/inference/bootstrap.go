package inference

import (
	"fmt"
	"math/rand"

	"goencode/domain/core"
	domainInference "goencode/domain/inference"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultLevel is the confidence level of every interval unless overridden.
const DefaultLevel = 0.95

// Bootstrapper draws subjects with replacement from subjects × timepoints
// score matrices.
type Bootstrapper struct {
	NPerm    int
	Timeline domainInference.Timeline
	Level    float64
}

func (b Bootstrapper) level() float64 {
	if b.Level <= 0 || b.Level >= 1 {
		return DefaultLevel
	}
	return b.Level
}

func (b Bootstrapper) check(scores mat.Matrix) (int, int, error) {
	if scores == nil {
		return 0, 0, core.NewShapeError("scores", "nil matrix")
	}
	n, t := scores.Dims()
	if n == 0 || t == 0 {
		return 0, 0, core.NewShapeError("scores", "empty %dx%d matrix", n, t)
	}
	if err := b.Timeline.Validate(); err != nil {
		return 0, 0, core.NewShapeError("timeline", "%v", err)
	}
	if need := MinDraws(b.level()); b.NPerm < need {
		return 0, 0, core.NewInsufficientSamplesError("bootstrap draws", b.NPerm, need)
	}
	return n, t, nil
}

// AccuracyCI returns a percentile interval of the subject mean for every
// timepoint. Timepoints are resampled one after another, each with NPerm
// independent draws.
func (b Bootstrapper) AccuracyCI(scores mat.Matrix, rng *rand.Rand) ([]domainInference.Interval, error) {
	n, nt, err := b.check(scores)
	if err != nil {
		return nil, err
	}

	out := make([]domainInference.Interval, nt)
	col := make([]float64, n)
	draws := make([]float64, b.NPerm)
	for t := 0; t < nt; t++ {
		mat.Col(col, t, scores)
		for p := range draws {
			var sum float64
			for i := 0; i < n; i++ {
				sum += col[rng.Intn(n)]
			}
			draws[p] = sum / float64(n)
		}
		if out[t], err = PercentileInterval(draws, b.level()); err != nil {
			return nil, fmt.Errorf("timepoint %d: %w", t, err)
		}
	}
	return out, nil
}

// PeakLatencyCI resamples whole subjects and locates the peak of the mean
// time course in every draw. The point estimate is the peak of the observed
// mean.
func (b Bootstrapper) PeakLatencyCI(scores mat.Matrix, rng *rand.Rand) (domainInference.PeakInterval, error) {
	n, nt, err := b.check(scores)
	if err != nil {
		return domainInference.PeakInterval{}, err
	}

	peak := b.Timeline.Ms(floats.MaxIdx(subjectMean(scores, identity(n), nt)))
	idx := make([]int, n)
	draws := make([]float64, b.NPerm)
	for p := range draws {
		resample(idx, rng)
		draws[p] = b.Timeline.Ms(floats.MaxIdx(subjectMean(scores, idx, nt)))
	}

	iv, err := PercentileInterval(draws, b.level())
	if err != nil {
		return domainInference.PeakInterval{}, err
	}
	return domainInference.PeakInterval{Lower: iv.Lower, Peak: peak, Upper: iv.Upper}, nil
}

// PeakDifferenceCI bootstraps the peak latency difference peak(a) - peak(other).
// Rows of a and other belong to the same subjects, so each draw applies one set
// of resampled subject indices to both.
func (b Bootstrapper) PeakDifferenceCI(a, other mat.Matrix, rng *rand.Rand) (domainInference.PeakDifference, error) {
	n, nt, err := b.check(a)
	if err != nil {
		return domainInference.PeakDifference{}, err
	}
	if other == nil {
		return domainInference.PeakDifference{}, core.NewShapeError("scores", "nil matrix")
	}
	if cn, ct := other.Dims(); cn != n || ct != nt {
		return domainInference.PeakDifference{}, core.NewShapeError("scores", "paired matrices differ: %dx%d vs %dx%d", n, nt, cn, ct)
	}

	all := identity(n)
	estimate := b.Timeline.Ms(floats.MaxIdx(subjectMean(a, all, nt))) -
		b.Timeline.Ms(floats.MaxIdx(subjectMean(other, all, nt)))

	idx := make([]int, n)
	draws := make([]float64, b.NPerm)
	for p := range draws {
		resample(idx, rng)
		draws[p] = b.Timeline.Ms(floats.MaxIdx(subjectMean(a, idx, nt))) -
			b.Timeline.Ms(floats.MaxIdx(subjectMean(other, idx, nt)))
	}

	iv, err := PercentileInterval(draws, b.level())
	if err != nil {
		return domainInference.PeakDifference{}, err
	}
	return domainInference.PeakDifference{Lower: iv.Lower, Estimate: estimate, Upper: iv.Upper}, nil
}

// PairwisePeakDifferences compares every feature with each feature listed
// before it, keyed "A vs. B". Pairs are drawn in order from one stream.
func (b Bootstrapper) PairwisePeakDifferences(names []string, scores []mat.Matrix, rng *rand.Rand) (map[string]domainInference.PeakDifference, error) {
	if len(names) != len(scores) {
		return nil, core.NewShapeError("features", "%d names for %d score matrices", len(names), len(scores))
	}
	out := make(map[string]domainInference.PeakDifference)
	for i := range names {
		for j := 0; j < i; j++ {
			d, err := b.PeakDifferenceCI(scores[i], scores[j], rng)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", domainInference.ComparisonKey(names[i], names[j]), err)
			}
			d.FeatureA, d.FeatureB = names[i], names[j]
			out[d.Key()] = d
		}
	}
	return out, nil
}

// subjectMean averages the rows listed in idx.
func subjectMean(scores mat.Matrix, idx []int, nt int) []float64 {
	mean := make([]float64, nt)
	for _, i := range idx {
		for t := 0; t < nt; t++ {
			mean[t] += scores.At(i, t)
		}
	}
	floats.Scale(1/float64(len(idx)), mean)
	return mean
}

func resample(idx []int, rng *rand.Rand) {
	for i := range idx {
		idx[i] = rng.Intn(len(idx))
	}
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
