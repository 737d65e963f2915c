package inference

import (
	"fmt"
	"math"
	"math/rand"

	"goencode/domain/core"
	domainInference "goencode/domain/inference"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// DefaultAlpha is the FDR level used when PermutationTester.Alpha is unset.
const DefaultAlpha = 0.05

// PermutationTester compares two groups of subjects × timepoints scores with
// a sign-flip permutation test. Permutation 0 is the observed difference of
// group means; every later permutation flips the sign of each subject's full
// time course independently, separately within each group.
type PermutationTester struct {
	NPerm int
	Tail  domainInference.Tail
	Alpha float64
}

// Test returns per-timepoint observed differences mean(a) - mean(b), rank
// p-values, BH-corrected p-values and the rejection mask.
func (pt PermutationTester) Test(a, b mat.Matrix, rng *rand.Rand) (*domainInference.PermutationResult, error) {
	if a == nil || b == nil {
		return nil, core.NewShapeError("groups", "nil matrix")
	}
	na, nt := a.Dims()
	nb, ntb := b.Dims()
	if na == 0 || nb == 0 || nt == 0 {
		return nil, core.NewShapeError("groups", "empty group (%dx%d, %dx%d)", na, nt, nb, ntb)
	}
	if nt != ntb {
		return nil, core.NewShapeError("groups", "%d timepoints vs %d", nt, ntb)
	}
	if pt.NPerm < 2 {
		return nil, core.NewInsufficientSamplesError("permutations", pt.NPerm, 2)
	}
	tail := pt.Tail
	if tail == "" {
		tail = domainInference.TailBoth
	}
	if _, err := domainInference.ParseTail(string(tail)); err != nil {
		return nil, core.NewValidationError("tail", err.Error())
	}
	alpha := pt.Alpha
	if alpha <= 0 || alpha >= 1 {
		alpha = DefaultAlpha
	}

	statMap := mat.NewDense(pt.NPerm, nt, nil)
	signsA := make([]float64, na)
	signsB := make([]float64, nb)
	for i := range signsA {
		signsA[i] = 1
	}
	for i := range signsB {
		signsB[i] = 1
	}
	statMap.SetRow(0, meanDifference(a, b, signsA, signsB, nt))
	for p := 1; p < pt.NPerm; p++ {
		flip(signsA, rng)
		flip(signsB, rng)
		statMap.SetRow(p, meanDifference(a, b, signsA, signsB, nt))
	}

	res := &domainInference.PermutationResult{
		Tail:     tail,
		Alpha:    alpha,
		NPerm:    pt.NPerm,
		Observed: mat.Row(nil, 0, statMap),
		PValues:  make([]float64, nt),
		Null:     make([]domainInference.NullSummary, nt),
	}
	col := make([]float64, pt.NPerm)
	for t := 0; t < nt; t++ {
		mat.Col(col, t, statMap)
		res.Null[t] = summarizeNull(col[1:])
		if tail == domainInference.TailBoth {
			for i, v := range col {
				col[i] = math.Abs(v)
			}
		}
		ranks := RankData(col)
		res.PValues[t] = (float64(pt.NPerm) + 1 - ranks[0]) / float64(pt.NPerm)
	}
	res.Corrected, res.Reject = FDRCorrect(res.PValues, alpha)
	return res, nil
}

func flip(signs []float64, rng *rand.Rand) {
	for i := range signs {
		if rng.Intn(2) == 0 {
			signs[i] = -1
		} else {
			signs[i] = 1
		}
	}
}

func meanDifference(a, b mat.Matrix, signsA, signsB []float64, nt int) []float64 {
	diff := make([]float64, nt)
	for t := 0; t < nt; t++ {
		var sa, sb float64
		for i, s := range signsA {
			sa += s * a.At(i, t)
		}
		for i, s := range signsB {
			sb += s * b.At(i, t)
		}
		diff[t] = sa/float64(len(signsA)) - sb/float64(len(signsB))
	}
	return diff
}

func summarizeNull(null []float64) domainInference.NullSummary {
	if len(null) == 0 {
		return domainInference.NullSummary{}
	}
	data := stats.Float64Data(null)
	mean, _ := stats.Mean(data)
	stdDev, _ := stats.StandardDeviation(data)
	min, _ := stats.Min(data)
	max, _ := stats.Max(data)
	p95, _ := stats.Percentile(data, 95)
	p99, _ := stats.Percentile(data, 99)
	return domainInference.NullSummary{
		Mean:         mean,
		StdDev:       stdDev,
		Min:          min,
		Max:          max,
		Percentile95: p95,
		Percentile99: p99,
	}
}

// Describe renders a one-line summary of a finished test.
func Describe(res *domainInference.PermutationResult) string {
	return fmt.Sprintf("%d/%d timepoints significant (tail=%s, alpha=%g, n_perm=%d)",
		len(res.Significant()), len(res.PValues), res.Tail, res.Alpha, res.NPerm)
}
