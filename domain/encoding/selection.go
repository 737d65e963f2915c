package encoding

import (
	"fmt"
	"strings"
)

// SelectionResult is the penalty choice derived from a finished ScoreTensor.
// RMSE picks use argmin, correlation picks use argmax; ties go to the lowest
// grid index.
type SelectionResult struct {
	Labels []string `json:"labels"`

	BestIndexRMSE   []int     `json:"best_index_rmse"`
	BestIndexCorr   []int     `json:"best_index_corr"`
	BestPenaltyRMSE []float64 `json:"best_alpha_rmse"`
	BestPenaltyCorr []float64 `json:"best_alpha_corr"`

	AggregateIndexRMSE   int     `json:"aggregate_index_rmse"`
	AggregateIndexCorr   int     `json:"aggregate_index_corr"`
	AggregatePenaltyRMSE float64 `json:"best_alpha_a_rmse"`
	AggregatePenaltyCorr float64 `json:"best_alpha_a_corr"`

	// Channel-reduced scores, [timepoint][penalty]
	ReducedRMSE [][]float64 `json:"reduced_rmse"`
	ReducedCorr [][]float64 `json:"reduced_correlation"`
	Weighted    bool        `json:"weighted"`
}

// Policy chooses which penalty of a SelectionResult an encoding fit uses
type Policy string

const (
	PolicyTimepointRMSE Policy = "timepoint_rmse"
	PolicyTimepointCorr Policy = "timepoint_correlation"
	PolicyAggregateRMSE Policy = "aggregate_rmse"
	PolicyAggregateCorr Policy = "aggregate_correlation"
)

// ParsePolicy validates a policy string
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyTimepointRMSE, PolicyTimepointCorr, PolicyAggregateRMSE, PolicyAggregateCorr:
		return p, nil
	}
	return "", fmt.Errorf("unknown selection policy %q", s)
}

// PenaltyFor returns the penalty the policy selects for timepoint t
func (s *SelectionResult) PenaltyFor(policy Policy, t int) (float64, error) {
	switch policy {
	case PolicyTimepointRMSE:
		if t < 0 || t >= len(s.BestPenaltyRMSE) {
			return 0, fmt.Errorf("timepoint %d outside selection of %d", t, len(s.BestPenaltyRMSE))
		}
		return s.BestPenaltyRMSE[t], nil
	case PolicyTimepointCorr:
		if t < 0 || t >= len(s.BestPenaltyCorr) {
			return 0, fmt.Errorf("timepoint %d outside selection of %d", t, len(s.BestPenaltyCorr))
		}
		return s.BestPenaltyCorr[t], nil
	case PolicyAggregateRMSE:
		return s.AggregatePenaltyRMSE, nil
	case PolicyAggregateCorr:
		return s.AggregatePenaltyCorr, nil
	}
	return 0, fmt.Errorf("unknown selection policy %q", policy)
}

// EncodingResult holds held-out scores of the final fits, [timepoint][channel].
type EncodingResult struct {
	Labels      []string    `json:"labels"`
	Policy      Policy      `json:"policy"`
	Penalties   []float64   `json:"penalties"`
	Correlation [][]float64 `json:"correlation"`
	RMSE        [][]float64 `json:"rmse_score"`
	FellBack    []bool      `json:"solver_fallback"`
}
