package inference

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Interval is a two-sided percentile confidence interval
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Contains reports whether v lies inside the closed interval
func (i Interval) Contains(v float64) bool { return v >= i.Lower && v <= i.Upper }

// Width returns Upper - Lower
func (i Interval) Width() float64 { return i.Upper - i.Lower }

// MarshalJSON emits the persisted [lower, upper] pair
func (i Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{i.Lower, i.Upper})
}

func (i *Interval) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	i.Lower, i.Upper = pair[0], pair[1]
	return nil
}

// PeakInterval is the [lower, peak, upper] latency triple in milliseconds
type PeakInterval struct {
	Lower float64 `json:"lower"`
	Peak  float64 `json:"peak"`
	Upper float64 `json:"upper"`
}

// Triple returns the persisted ordering
func (p PeakInterval) Triple() [3]float64 { return [3]float64{p.Lower, p.Peak, p.Upper} }

// PeakDifference is the bootstrap CI of peak(A) - peak(B) in milliseconds
type PeakDifference struct {
	FeatureA string  `json:"feature_a"`
	FeatureB string  `json:"feature_b"`
	Lower    float64 `json:"lower"`
	Estimate float64 `json:"estimate"`
	Upper    float64 `json:"upper"`
}

// Key returns the "A vs. B" comparison label
func (d PeakDifference) Key() string { return ComparisonKey(d.FeatureA, d.FeatureB) }

// ComparisonKey formats the label used for pairwise results
func ComparisonKey(a, b string) string { return a + " vs. " + b }

// AccuracyResult bundles per-timepoint accuracy intervals of one feature
type AccuracyResult struct {
	Feature   string     `json:"feature"`
	Labels    []string   `json:"labels"`
	Mean      []float64  `json:"mean"`
	Intervals []Interval `json:"intervals"`
	NPerm     int        `json:"n_perm"`
}

// PeakResult is the peak-latency interval of one feature
type PeakResult struct {
	Feature  string       `json:"feature"`
	Interval PeakInterval `json:"interval"`
	NPerm    int          `json:"n_perm"`
}

// Tail selects the alternative hypothesis of the permutation test
type Tail string

const (
	TailBoth  Tail = "both"
	TailRight Tail = "right"
)

// ParseTail validates a tail string
func ParseTail(s string) (Tail, error) {
	switch t := Tail(strings.ToLower(strings.TrimSpace(s))); t {
	case TailBoth, TailRight:
		return t, nil
	}
	return "", fmt.Errorf("unknown tail %q (want both|right)", s)
}

// NullSummary describes the null distribution of one timepoint
type NullSummary struct {
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Percentile95 float64 `json:"percentile_95"`
	Percentile99 float64 `json:"percentile_99"`
}

// PermutationResult is the outcome of a sign-flip permutation test across timepoints
type PermutationResult struct {
	Feature   string        `json:"feature,omitempty"`
	Tail      Tail          `json:"tail"`
	Alpha     float64       `json:"alpha"`
	NPerm     int           `json:"n_perm"`
	Observed  []float64     `json:"observed"`
	PValues   []float64     `json:"uncorrected_p_values_map"`
	Corrected []float64     `json:"corrected_p_values_map"`
	Reject    []bool        `json:"boolean_statistical_map"`
	Null      []NullSummary `json:"null_summary"`
}

// Significant returns the indices of rejected timepoints
func (r *PermutationResult) Significant() []int {
	var idx []int
	for i, rej := range r.Reject {
		if rej {
			idx = append(idx, i)
		}
	}
	return idx
}
