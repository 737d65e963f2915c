// Package inference implements the resampling statistics applied to
// per-subject encoding accuracies: bootstrap confidence intervals and
// sign-flip permutation tests with FDR correction.
package inference

import "sort"

// RankData assigns 1-based ranks to data, averaging the ranks of ties.
func RankData(data []float64) []float64 {
	n := len(data)
	ranks := make([]float64, n)

	type pair struct {
		value float64
		index int
	}
	pairs := make([]pair, n)
	for i, v := range data {
		pairs[i] = pair{v, i}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].value < pairs[j].value
	})

	i := 0
	for i < n {
		j := i
		for j < n-1 && pairs[j+1].value == pairs[i].value {
			j++
		}
		avgRank := float64(i+j)/2.0 + 1
		for k := i; k <= j; k++ {
			ranks[pairs[k].index] = avgRank
		}
		i = j + 1
	}
	return ranks
}
