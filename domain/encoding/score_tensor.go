package encoding

import (
	"encoding/json"
	"fmt"

	"goencode/domain/core"

	"gonum.org/v1/gonum/mat"
)

// ScoreTensor accumulates RMSE and correlation per (timepoint, penalty, channel).
// Its shape is fixed at construction and every cell is written exactly once.
// Different timepoints may carry different channel counts (network layers).
type ScoreTensor struct {
	labels   []string
	rmse     []*mat.Dense
	corr     []*mat.Dense
	written  [][]bool // [timepoint][penalty]
	penalty  int
	channels []int
}

// NewScoreTensor allocates a tensor for the given labels, penalty count and
// per-timepoint channel counts.
func NewScoreTensor(labels []string, penalties int, channels []int) (*ScoreTensor, error) {
	if len(labels) == 0 {
		return nil, core.NewShapeError("score tensor", "no timepoints")
	}
	if len(channels) != len(labels) {
		return nil, core.NewShapeError("score tensor", "%d channel counts for %d timepoints", len(channels), len(labels))
	}
	if penalties < 1 {
		return nil, core.NewShapeError("score tensor", "no penalties")
	}
	st := &ScoreTensor{
		labels:   append([]string(nil), labels...),
		rmse:     make([]*mat.Dense, len(labels)),
		corr:     make([]*mat.Dense, len(labels)),
		written:  make([][]bool, len(labels)),
		penalty:  penalties,
		channels: append([]int(nil), channels...),
	}
	for t, c := range channels {
		if c < 1 {
			return nil, core.NewShapeError("score tensor", "timepoint %d has %d channels", t, c)
		}
		st.rmse[t] = mat.NewDense(penalties, c, nil)
		st.corr[t] = mat.NewDense(penalties, c, nil)
		st.written[t] = make([]bool, penalties)
	}
	return st, nil
}

// Timepoints returns the number of timepoints or layers
func (s *ScoreTensor) Timepoints() int { return len(s.labels) }

// Penalties returns the number of grid values
func (s *ScoreTensor) Penalties() int { return s.penalty }

// Channels returns the channel count of timepoint t
func (s *ScoreTensor) Channels(t int) int { return s.channels[t] }

// Label returns the label of timepoint t
func (s *ScoreTensor) Label(t int) string { return s.labels[t] }

// Set stores the per-channel scores of one (timepoint, penalty) cell.
// Writes to the same cell from different goroutines are not allowed; distinct
// timepoints may be written concurrently.
func (s *ScoreTensor) Set(t, p int, rmse, corr []float64) error {
	if t < 0 || t >= len(s.labels) || p < 0 || p >= s.penalty {
		return core.NewShapeError("score tensor", "index (%d, %d) outside %d×%d", t, p, len(s.labels), s.penalty)
	}
	if len(rmse) != s.channels[t] || len(corr) != s.channels[t] {
		return core.NewShapeError("score tensor", "timepoint %d expects %d channels, got rmse=%d corr=%d",
			t, s.channels[t], len(rmse), len(corr))
	}
	if s.written[t][p] {
		return fmt.Errorf("%w: (%d, %d)", core.ErrDuplicateWrite, t, p)
	}
	s.rmse[t].SetRow(p, rmse)
	s.corr[t].SetRow(p, corr)
	s.written[t][p] = true
	return nil
}

// Complete reports whether every cell has been written
func (s *ScoreTensor) Complete() bool {
	for _, row := range s.written {
		for _, w := range row {
			if !w {
				return false
			}
		}
	}
	return true
}

// RMSE returns the penalty × channel RMSE view for timepoint t
func (s *ScoreTensor) RMSE(t int) mat.Matrix { return s.rmse[t] }

// Correlation returns the penalty × channel correlation view for timepoint t
func (s *ScoreTensor) Correlation(t int) mat.Matrix { return s.corr[t] }

// RMSEAt returns the RMSE row for (t, p)
func (s *ScoreTensor) RMSEAt(t, p int) []float64 { return mat.Row(nil, p, s.rmse[t]) }

// CorrelationAt returns the correlation row for (t, p)
func (s *ScoreTensor) CorrelationAt(t, p int) []float64 { return mat.Row(nil, p, s.corr[t]) }

type scoreTensorJSON struct {
	Labels      []string      `json:"labels"`
	RMSE        [][][]float64 `json:"rmse"`
	Correlation [][][]float64 `json:"correlation"`
}

// MarshalJSON emits nested [timepoint][penalty][channel] arrays
func (s *ScoreTensor) MarshalJSON() ([]byte, error) {
	out := scoreTensorJSON{
		Labels:      s.labels,
		RMSE:        make([][][]float64, len(s.labels)),
		Correlation: make([][][]float64, len(s.labels)),
	}
	for t := range s.labels {
		out.RMSE[t] = rows(s.rmse[t])
		out.Correlation[t] = rows(s.corr[t])
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a complete tensor
func (s *ScoreTensor) UnmarshalJSON(data []byte) error {
	var in scoreTensorJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if len(in.RMSE) != len(in.Labels) || len(in.Correlation) != len(in.Labels) || len(in.Labels) == 0 {
		return core.NewShapeError("score tensor", "inconsistent json lengths")
	}
	channels := make([]int, len(in.Labels))
	for t := range in.Labels {
		if len(in.RMSE[t]) == 0 {
			return core.NewShapeError("score tensor", "timepoint %d has no penalties", t)
		}
		channels[t] = len(in.RMSE[t][0])
	}
	restored, err := NewScoreTensor(in.Labels, len(in.RMSE[0]), channels)
	if err != nil {
		return err
	}
	for t := range in.Labels {
		if len(in.RMSE[t]) != restored.penalty || len(in.Correlation[t]) != restored.penalty {
			return core.NewShapeError("score tensor", "timepoint %d penalty count mismatch", t)
		}
		for p := range in.RMSE[t] {
			if err := restored.Set(t, p, in.RMSE[t][p], in.Correlation[t][p]); err != nil {
				return err
			}
		}
	}
	*s = *restored
	return nil
}

func rows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}
