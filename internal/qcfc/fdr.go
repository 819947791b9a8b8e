package qcfc

import (
	"math"
	"sort"
)

// BenjaminiHochberg returns FDR adjusted p-values. NaN entries are left out of
// the family and stay NaN.
func BenjaminiHochberg(pvalues []float64) []float64 {
	out := make([]float64, len(pvalues))
	var order []int
	for i, p := range pvalues {
		out[i] = math.NaN()
		if !math.IsNaN(p) {
			order = append(order, i)
		}
	}

	m := len(order)
	if m == 0 {
		return out
	}

	sort.SliceStable(order, func(a, b int) bool { return pvalues[order[a]] < pvalues[order[b]] })

	running := 1.0
	for rank := m; rank >= 1; rank-- {
		i := order[rank-1]
		q := pvalues[i] * float64(m) / float64(rank)
		running = math.Min(running, q)
		out[i] = running
	}

	return out
}
