package inference

import (
	"fmt"
	"math"
	"sort"

	"goencode/domain/core"
	domainInference "goencode/domain/inference"
)

// PercentileIndex returns ceil(q·n), the zero-based position of quantile q in
// a sorted sample of size n. It fails when that position falls outside the
// sample.
func PercentileIndex(q float64, n int) (int, error) {
	if q < 0 || q > 1 || math.IsNaN(q) {
		return 0, core.NewValidationError("quantile", fmt.Sprintf("%g outside [0, 1]", q))
	}
	// The tolerance absorbs rounding in q, e.g. (1-0.95)/2 is slightly above 0.025.
	idx := int(math.Ceil(q*float64(n) - 1e-9))
	if idx >= n {
		return 0, fmt.Errorf("%w: quantile %g needs index %d of %d draws", core.ErrInsufficientSamples, q, idx, n)
	}
	return idx, nil
}

// Quantiles returns the lower and upper quantiles of a two-sided interval at
// the given confidence level.
func Quantiles(level float64) (lower, upper float64) {
	alpha := 1 - level
	return alpha / 2, 1 - alpha/2
}

// MinDraws is the smallest sample size whose upper percentile index is valid
// at the given confidence level.
func MinDraws(level float64) int {
	_, hi := Quantiles(level)
	for n := 1; ; n++ {
		if _, err := PercentileIndex(hi, n); err == nil {
			return n
		}
	}
}

// PercentileInterval sorts a copy of sample and reads the interval bounds at
// the ceil-rounded quantile positions.
func PercentileInterval(sample []float64, level float64) (domainInference.Interval, error) {
	lo, hi := Quantiles(level)
	n := len(sample)
	loIdx, err := PercentileIndex(lo, n)
	if err != nil {
		return domainInference.Interval{}, err
	}
	hiIdx, err := PercentileIndex(hi, n)
	if err != nil {
		return domainInference.Interval{}, err
	}
	sorted := make([]float64, n)
	copy(sorted, sample)
	sort.Float64s(sorted)
	return domainInference.Interval{Lower: sorted[loIdx], Upper: sorted[hiIdx]}, nil
}
