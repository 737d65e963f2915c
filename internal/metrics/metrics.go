// Package metrics scores predictions against targets column by column.
package metrics

import (
	"math"

	"goencode/domain/core"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Epsilon is added to each standard deviation before dividing, so constant
// columns yield a correlation of 0 instead of NaN.
const Epsilon = 1e-8

// Correlation returns the Pearson correlation of every column of pred with
// the matching column of target. Covariance and standard deviations both use
// the n-1 divisor, so a column correlates with itself at 1.
func Correlation(pred, target mat.Matrix) ([]float64, error) {
	n, c, err := checkShapes(pred, target)
	if err != nil {
		return nil, err
	}
	if n < 2 {
		return nil, core.NewInsufficientSamplesError("correlation", n, 2)
	}

	out := make([]float64, c)
	x := make([]float64, n)
	y := make([]float64, n)
	for j := 0; j < c; j++ {
		mat.Col(x, j, pred)
		mat.Col(y, j, target)
		_, sdX := stat.MeanStdDev(x, nil)
		_, sdY := stat.MeanStdDev(y, nil)
		out[j] = stat.Covariance(x, y, nil) / ((sdX + Epsilon) * (sdY + Epsilon))
	}
	return out, nil
}

// RMSE returns the root-mean-square error per column, or a single value over
// all cells when channelwise is false.
func RMSE(pred, target mat.Matrix, channelwise bool) ([]float64, error) {
	n, c, err := checkShapes(pred, target)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, core.NewInsufficientSamplesError("rmse", 0, 1)
	}

	sums := make([]float64, c)
	for i := 0; i < n; i++ {
		for j := 0; j < c; j++ {
			r := pred.At(i, j) - target.At(i, j)
			sums[j] += r * r
		}
	}

	if !channelwise {
		var total float64
		for _, s := range sums {
			total += s
		}
		return []float64{math.Sqrt(total / float64(n*c))}, nil
	}
	for j := range sums {
		sums[j] = math.Sqrt(sums[j] / float64(n))
	}
	return sums, nil
}

func checkShapes(pred, target mat.Matrix) (int, int, error) {
	if pred == nil || target == nil {
		return 0, 0, core.NewShapeError("prediction", "nil matrix")
	}
	pr, pc := pred.Dims()
	tr, tc := target.Dims()
	if pr != tr || pc != tc {
		return 0, 0, core.NewShapeError("prediction", "%dx%d does not match target %dx%d", pr, pc, tr, tc)
	}
	return pr, pc, nil
}
