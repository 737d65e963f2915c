package inference

import "sort"

// FDRCorrect applies the Benjamini-Hochberg procedure for independent or
// positively dependent tests. It returns adjusted p-values, monotone in the
// raw p-values and clipped to 1, and the rejection mask at alpha.
func FDRCorrect(p []float64, alpha float64) ([]float64, []bool) {
	m := len(p)
	corrected := make([]float64, m)
	reject := make([]bool, m)
	if m == 0 {
		return corrected, reject
	}

	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return p[order[i]] < p[order[j]] })

	// Every hypothesis ranked at or below the largest passing rank is rejected.
	maxPass := -1
	for rank, idx := range order {
		if p[idx] <= float64(rank+1)/float64(m)*alpha {
			maxPass = rank
		}
	}

	running := 1.0
	for rank := m - 1; rank >= 0; rank-- {
		idx := order[rank]
		q := p[idx] * float64(m) / float64(rank+1)
		if q < running {
			running = q
		}
		corrected[idx] = running
		reject[idx] = rank <= maxPass
	}
	return corrected, reject
}
