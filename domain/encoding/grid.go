package encoding

import (
	"fmt"
	"math"

	"goencode/domain/core"
)

// PenaltyGrid is an ordered sequence of strictly positive ridge penalties.
// Selections are reported as indices into this order.
type PenaltyGrid []float64

// NewLogspaceGrid returns n values spaced evenly on a log10 scale from
// 10^start to 10^stop inclusive.
func NewLogspaceGrid(start, stop float64, n int) (PenaltyGrid, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: grid needs at least one value, got %d", core.ErrInvalidPenalty, n)
	}
	if n == 1 {
		return PenaltyGrid{math.Pow(10, start)}, nil
	}
	step := (stop - start) / float64(n-1)
	grid := make(PenaltyGrid, n)
	for i := range grid {
		grid[i] = math.Pow(10, start+float64(i)*step)
	}
	grid[n-1] = math.Pow(10, stop)
	return grid, grid.Validate()
}

// DefaultGrid is logspace(-5, 10, 10).
func DefaultGrid() PenaltyGrid {
	g, _ := NewLogspaceGrid(-5, 10, 10)
	return g
}

// Len returns the number of penalties
func (g PenaltyGrid) Len() int { return len(g) }

// Value returns the penalty at index i
func (g PenaltyGrid) Value(i int) float64 { return g[i] }

// Validate checks the grid is non-empty and strictly positive
func (g PenaltyGrid) Validate() error {
	if len(g) == 0 {
		return fmt.Errorf("%w: empty penalty grid", core.ErrInvalidPenalty)
	}
	for i, p := range g {
		if !(p > 0) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: grid[%d] = %g must be positive and finite", core.ErrInvalidPenalty, i, p)
		}
	}
	return nil
}

// Hash fingerprints the grid for run manifests
func (g PenaltyGrid) Hash() core.GridHash {
	return core.ComputeGridHash(g)
}
