package ridge

import (
	"fmt"
	"strings"

	"goencode/domain/core"
)

// Strategy selects how the penalized normal equations are solved.
type Strategy int

const (
	// Cholesky factorizes the Gram matrix, falling back to Solve when it is
	// not positive definite.
	Cholesky Strategy = iota
	// Solve uses a general LU solve of the Gram system.
	Solve
	// LeastSquares solves the augmented system through an SVD and tolerates
	// rank deficiency.
	LeastSquares
)

func (s Strategy) String() string {
	switch s {
	case Cholesky:
		return "cholesky"
	case Solve:
		return "solve"
	case LeastSquares:
		return "lstsq"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy accepts cholesky, solve and lstsq.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cholesky":
		return Cholesky, nil
	case "solve":
		return Solve, nil
	case "lstsq", "least_squares":
		return LeastSquares, nil
	}
	return Cholesky, core.NewValidationError("solver", fmt.Sprintf("unknown strategy %q", s))
}
