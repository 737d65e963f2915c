// Package ridge fits L2-penalized linear maps from feature matrices to
// multi-channel responses.
//
// The penalty enters through data augmentation: X is stacked on top of
// sqrt(penalty)*I and Y on top of a zero block, so the normal equations of
// the augmented system are (XᵀX + penalty*I)β = XᵀY. When an intercept is
// fitted its diagonal entry is left unpenalized.
package ridge

import (
	"errors"
	"fmt"
	"math"

	"goencode/domain/core"
	"goencode/internal"
	"goencode/internal/metrics"

	"gonum.org/v1/gonum/mat"
)

// Solver fits ridge models. The zero value uses Cholesky without an
// intercept and logs through internal.DefaultLogger.
type Solver struct {
	Strategy  Strategy
	Intercept bool
	Logger    *internal.Logger
}

// Model is a fitted ridge map. Coefficients has one row per feature, plus a
// leading intercept row when Intercept is set, and one column per channel.
type Model struct {
	Coefficients *mat.Dense
	Intercept    bool
	Penalty      float64
	// Strategy is the solver that produced Coefficients.
	Strategy Strategy
	FellBack bool
}

// ColumnVector wraps a 1-D series as an n×1 matrix.
func ColumnVector(v []float64) *mat.Dense {
	data := make([]float64, len(v))
	copy(data, v)
	return mat.NewDense(len(v), 1, data)
}

// Fit solves for the coefficients mapping x (samples × features) onto
// y (samples × channels) at the given penalty.
func (s Solver) Fit(x, y mat.Matrix, penalty float64) (*Model, error) {
	if x == nil || y == nil {
		return nil, core.NewShapeError("X", "nil matrix")
	}
	n, d := x.Dims()
	yn, c := y.Dims()
	if n == 0 || d == 0 || c == 0 {
		return nil, core.NewShapeError("X", "empty input %dx%d, %d channels", n, d, c)
	}
	if n != yn {
		return nil, core.NewShapeError("Y", "%d samples, X has %d", yn, n)
	}
	if penalty < 0 || math.IsNaN(penalty) || math.IsInf(penalty, 0) {
		return nil, fmt.Errorf("%w: %g must be finite and non-negative", core.ErrInvalidPenalty, penalty)
	}

	xa, ya := augment(design(x, s.Intercept), y, penalty, s.Intercept)
	model := &Model{
		Intercept: s.Intercept,
		Penalty:   penalty,
		Strategy:  s.Strategy,
	}

	var (
		coef *mat.Dense
		err  error
	)
	switch s.Strategy {
	case LeastSquares:
		coef, err = solveLeastSquares(xa, ya)
	case Solve:
		coef, err = s.solveGeneral(xa, ya)
	default:
		coef, err = s.solveCholesky(xa, ya, model)
	}
	if err != nil {
		return nil, err
	}
	model.Coefficients = coef
	return model, nil
}

// Predict applies the model to x, prepending the intercept column exactly as
// Fit does.
func (m *Model) Predict(x mat.Matrix) (*mat.Dense, error) {
	if x == nil {
		return nil, core.NewShapeError("X", "nil matrix")
	}
	_, d := x.Dims()
	want, _ := m.Coefficients.Dims()
	if m.Intercept {
		want--
	}
	if d != want {
		return nil, core.NewShapeError("X", "%d features, model expects %d", d, want)
	}
	var pred mat.Dense
	pred.Mul(design(x, m.Intercept), m.Coefficients)
	return &pred, nil
}

// Score returns per-channel RMSE of the model on (x, y), or a single pooled
// value when channelwise is false.
func (m *Model) Score(x, y mat.Matrix, channelwise bool) ([]float64, error) {
	pred, err := m.Predict(x)
	if err != nil {
		return nil, err
	}
	return metrics.RMSE(pred, y, channelwise)
}

// ScoreScalar is Score with channelwise false.
func (m *Model) ScoreScalar(x, y mat.Matrix) (float64, error) {
	v, err := m.Score(x, y, false)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

func design(x mat.Matrix, intercept bool) mat.Matrix {
	if !intercept {
		return x
	}
	n, d := x.Dims()
	out := mat.NewDense(n, d+1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, 1)
		for j := 0; j < d; j++ {
			out.Set(i, j+1, x.At(i, j))
		}
	}
	return out
}

func augment(x, y mat.Matrix, penalty float64, intercept bool) (*mat.Dense, *mat.Dense) {
	n, p := x.Dims()
	_, c := y.Dims()

	xa := mat.NewDense(n+p, p, nil)
	xa.Slice(0, n, 0, p).(*mat.Dense).Copy(x)
	root := math.Sqrt(penalty)
	for j := 0; j < p; j++ {
		if intercept && j == 0 {
			continue
		}
		xa.Set(n+j, j, root)
	}

	ya := mat.NewDense(n+p, c, nil)
	ya.Slice(0, n, 0, c).(*mat.Dense).Copy(y)
	return xa, ya
}

func normalEquations(xa, ya *mat.Dense) (*mat.SymDense, *mat.Dense) {
	var gram mat.SymDense
	gram.SymOuterK(1, xa.T())
	var rhs mat.Dense
	rhs.Mul(xa.T(), ya)
	return &gram, &rhs
}

func (s Solver) solveCholesky(xa, ya *mat.Dense, model *Model) (*mat.Dense, error) {
	gram, rhs := normalEquations(xa, ya)

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); ok {
		var coef mat.Dense
		if err := s.checkCondition(chol.SolveTo(&coef, rhs)); err != nil {
			return nil, err
		}
		return &coef, nil
	}

	internal.OrDefault(s.Logger).Warn("ridge: Gram matrix not positive definite at penalty %g, falling back to general solve", model.Penalty)
	model.FellBack = true
	model.Strategy = Solve
	return s.solveSystem(gram, rhs)
}

func (s Solver) solveGeneral(xa, ya *mat.Dense) (*mat.Dense, error) {
	gram, rhs := normalEquations(xa, ya)
	return s.solveSystem(gram, rhs)
}

func (s Solver) solveSystem(gram *mat.SymDense, rhs *mat.Dense) (*mat.Dense, error) {
	var coef mat.Dense
	if err := s.checkCondition(coef.Solve(gram, rhs)); err != nil {
		return nil, err
	}
	return &coef, nil
}

// checkCondition logs a finite condition number and rejects exact
// singularity.
func (s Solver) checkCondition(err error) error {
	if err == nil {
		return nil
	}
	var cond mat.Condition
	if !errors.As(err, &cond) {
		return err
	}
	if math.IsInf(float64(cond), 1) {
		return fmt.Errorf("%w: %v", core.ErrSingularSystem, err)
	}
	internal.OrDefault(s.Logger).Warn("ridge: ill-conditioned system (condition number %.3g), results may be inaccurate", float64(cond))
	return nil
}

func solveLeastSquares(xa, ya *mat.Dense) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(xa, mat.SVDThin); !ok {
		return nil, core.ErrSingularSystem
	}
	r, c := xa.Dims()
	rcond := float64(max(r, c)) * epsilon
	rank := svd.Rank(rcond)
	if rank == 0 {
		return nil, core.ErrSingularSystem
	}
	var coef mat.Dense
	svd.SolveTo(&coef, ya, rank)
	return &coef, nil
}

// epsilon is the float64 machine epsilon used for the default rank cutoff.
const epsilon = 2.220446049250313e-16
