package inference

import "fmt"

// Timeline maps a timepoint index to its latency in milliseconds.
// The default epoch runs from -400 ms in 20 ms steps (50 Hz).
type Timeline struct {
	StartMs float64 `json:"start_ms"`
	StepMs  float64 `json:"step_ms"`
}

// DefaultTimeline is arange(-400, 1000, 20)
func DefaultTimeline() Timeline { return Timeline{StartMs: -400, StepMs: 20} }

// Ms returns the latency of timepoint i
func (tl Timeline) Ms(i int) float64 { return tl.StartMs + float64(i)*tl.StepMs }

// Labels returns "<ms>ms" labels for n timepoints
func (tl Timeline) Labels(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%gms", tl.Ms(i))
	}
	return out
}

// Validate rejects a zero step
func (tl Timeline) Validate() error {
	if tl.StepMs == 0 {
		return fmt.Errorf("timeline step must be non-zero")
	}
	return nil
}
