package qcfc

import (
	"fmt"
	"math"

	"github.com/gonum/matrix"
	"github.com/gonum/matrix/mat64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// degenerateRatio bounds the residual variance, relative to the centered
// variance, below which an edge is treated as fully explained by covariates.
const degenerateRatio = 1e-12

// rankTolerance is the smallest singular value ratio of a usable design
const rankTolerance = 1e-10

// Edge is the QC-FC of one region pair, I > J
type Edge struct {
	I, J   int
	QCFC   float64
	PValue float64
	FDR    float64
}

// Degenerate reports whether no correlation could be computed for the edge
func (e Edge) Degenerate() bool {
	return math.IsNaN(e.QCFC)
}

// Result holds one Edge per unique region pair in lower triangle row-major
// order: (1,0), (2,0), (2,1), ...
type Result struct {
	Regions    int
	Subjects   int
	Covariates int
	Edges      []Edge
}

// EdgeIndex enumerates the lower triangle of an n by n matrix row-major
func EdgeIndex(n int) [][2]int {
	out := make([][2]int, 0, n*(n-1)/2)
	for i := 1; i < n; i++ {
		for j := 0; j < i; j++ {
			out = append(out, [2]int{i, j})
		}
	}
	return out
}

// Compute returns, for every edge, the partial correlation between motion and
// edge strength across subjects controlling for the covariate columns, with
// two-sided p-values and Benjamini-Hochberg adjusted p-values. covariates may
// be nil. Numerically degenerate edges are NaN rather than errors.
func Compute(motion []float64, connectomes []*mat64.SymDense, covariates *mat64.Dense) (*Result, error) {
	subjects := len(connectomes)
	if len(motion) != subjects {
		return nil, fmt.Errorf("[ERROR] Compute: %d motion values for %d connectomes", len(motion), subjects)
	}
	if subjects < 3 {
		return nil, fmt.Errorf("[ERROR] Compute: need at least 3 subjects, got %d", subjects)
	}

	k := 0
	if covariates != nil {
		rows, cols := covariates.Dims()
		if rows != subjects {
			return nil, fmt.Errorf("[ERROR] Compute: %d covariate rows for %d connectomes", rows, subjects)
		}
		k = cols
	}

	n := connectomes[0].Symmetric()
	if n < 2 {
		return nil, fmt.Errorf("[ERROR] Compute: need at least 2 regions, got %d", n)
	}
	for s, conn := range connectomes {
		if conn.Symmetric() != n {
			return nil, fmt.Errorf("[ERROR] Compute: connectome %d has %d regions, want %d", s, conn.Symmetric(), n)
		}
	}

	for s, v := range motion {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("[ERROR] Compute: motion of subject %d is %v", s, v)
		}
	}

	pairs := EdgeIndex(n)
	result := &Result{
		Regions:    n,
		Subjects:   subjects,
		Covariates: k,
		Edges:      make([]Edge, len(pairs)),
	}
	for e, pair := range pairs {
		result.Edges[e] = Edge{I: pair[0], J: pair[1], QCFC: math.NaN(), PValue: math.NaN(), FDR: math.NaN()}
	}

	// Design: intercept then covariates.
	design := mat64.NewDense(subjects, 1+k, nil)
	for s := 0; s < subjects; s++ {
		design.Set(s, 0, 1)
		for c := 0; c < k; c++ {
			v := covariates.At(s, c)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("[ERROR] Compute: covariate %d of subject %d is %v", c, s, v)
			}
			design.Set(s, 1+c, v)
		}
	}

	// Responses: every edge, then motion in the last column.
	edges := len(pairs)
	responses := mat64.NewDense(subjects, edges+1, nil)
	degenerate := make([]bool, edges)
	for s, conn := range connectomes {
		for e, pair := range pairs {
			v := conn.At(pair[0], pair[1])
			if math.IsNaN(v) || math.IsInf(v, 0) {
				degenerate[e] = true
				continue
			}
			responses.Set(s, e, v)
		}
		responses.Set(s, edges, motion[s])
	}
	for e := range degenerate {
		if degenerate[e] {
			for s := 0; s < subjects; s++ {
				responses.Set(s, e, 0)
			}
		}
	}

	if !fullRank(design) {
		// Collinear covariates: nothing is estimable.
		return result, nil
	}
	residuals, ok := residualize(design, responses)
	if !ok {
		return result, nil
	}

	raw := make([]float64, subjects)
	resMotion := mat64.Col(nil, edges, residuals)
	if explained(mat64.Col(raw, edges, responses), resMotion) {
		return result, nil
	}

	dof := float64(subjects - 2 - k)
	resEdge := make([]float64, subjects)
	for e := range pairs {
		if degenerate[e] {
			continue
		}

		mat64.Col(raw, e, responses)
		mat64.Col(resEdge, e, residuals)
		if explained(raw, resEdge) {
			continue
		}

		r := stat.Correlation(resEdge, resMotion, nil)
		if math.IsNaN(r) {
			continue
		}
		r = math.Max(-1, math.Min(1, r))

		result.Edges[e].QCFC = r
		result.Edges[e].PValue = pValue(r, dof)
	}

	adjusted := BenjaminiHochberg(result.PValues())
	for e := range result.Edges {
		result.Edges[e].FDR = adjusted[e]
	}

	return result, nil
}

// residualize regresses every response column on the design and returns the
// residuals. ok is false when the solve reports an ill-conditioned design.
func residualize(design, responses *mat64.Dense) (residuals *mat64.Dense, ok bool) {
	var beta mat64.Dense
	if err := beta.Solve(design, responses); err != nil {
		return nil, false
	}

	var fitted mat64.Dense
	fitted.Mul(design, &beta)

	residuals = &mat64.Dense{}
	residuals.Sub(responses, &fitted)

	return residuals, true
}

// fullRank reports whether the smallest singular value of the design, with
// every column scaled to unit norm, is not negligible against the largest.
func fullRank(design *mat64.Dense) bool {
	rows, cols := design.Dims()
	if rows < cols {
		return false
	}

	scaled := mat64.NewDense(rows, cols, nil)
	for c := 0; c < cols; c++ {
		col := mat64.Col(nil, c, design)
		norm := floats.Norm(col, 2)
		if norm == 0 {
			return false
		}
		floats.Scale(1/norm, col)
		scaled.SetCol(c, col)
	}

	var svd mat64.SVD
	if !svd.Factorize(scaled, matrix.SVDNone) {
		return false
	}
	values := svd.Values(nil)

	return values[len(values)-1] > rankTolerance*values[0]
}

// explained reports whether residual variance vanished against the centered
// variance of the raw values, which includes constant raw values.
func explained(raw, residual []float64) bool {
	mean := stat.Mean(raw, nil)

	var centered, rss float64
	for i, v := range raw {
		centered += (v - mean) * (v - mean)
		rss += residual[i] * residual[i]
	}

	if centered == 0 {
		return true
	}
	return rss <= degenerateRatio*centered
}

// pValue is the two-sided p-value of a correlation with dof degrees of freedom
func pValue(r, dof float64) float64 {
	if dof <= 0 {
		return math.NaN()
	}
	if math.Abs(r) >= 1 {
		return 0
	}

	t := r * math.Sqrt(dof/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dof}

	return math.Min(1, 2*dist.Survival(math.Abs(t)))
}

// PValues returns the p-value of every edge in edge order
func (r *Result) PValues() []float64 {
	out := make([]float64, len(r.Edges))
	for e, edge := range r.Edges {
		out[e] = edge.PValue
	}
	return out
}
