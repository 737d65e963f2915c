package inference

import (
	"goencode/domain/core"
	"goencode/domain/encoding"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ChannelMeans averages a timepoint × channel correlation table over
// channels. Rows may differ in length (network layers).
func ChannelMeans(correlation [][]float64) ([]float64, error) {
	out := make([]float64, len(correlation))
	for t, row := range correlation {
		if len(row) == 0 {
			return nil, core.NewShapeError("correlation", "timepoint %d has no channels", t)
		}
		out[t] = stat.Mean(row, nil)
	}
	return out, nil
}

// ScoreMatrixFromSubjects stacks the channel-averaged encoding accuracy of
// every subject into a subjects × timepoints matrix.
func ScoreMatrixFromSubjects(results []*encoding.EncodingResult) (*mat.Dense, error) {
	if len(results) == 0 {
		return nil, core.NewInsufficientSamplesError("subjects", 0, 1)
	}
	nt := len(results[0].Correlation)
	if nt == 0 {
		return nil, core.NewShapeError("subjects", "subject 0 has no timepoints")
	}
	out := mat.NewDense(len(results), nt, nil)
	for i, r := range results {
		if len(r.Correlation) != nt {
			return nil, core.NewShapeError("subjects", "subject %d has %d timepoints, want %d", i, len(r.Correlation), nt)
		}
		row, err := ChannelMeans(r.Correlation)
		if err != nil {
			return nil, err
		}
		out.SetRow(i, row)
	}
	return out, nil
}
