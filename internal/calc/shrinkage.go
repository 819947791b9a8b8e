package calc

import (
	"fmt"
	"math"

	"github.com/gonum/matrix/mat64"
)

// LedoitWolf returns the correlation matrix of the Ledoit-Wolf shrunk
// covariance of a regions by time matrix. Rows are z-scored first. Pairs
// involving a constant row are NaN and the diagonal is 1.
func LedoitWolf(timeSeriesMat *mat64.Dense) (*mat64.SymDense, error) {
	p, n := timeSeriesMat.Dims()
	if p < 2 || n < 2 {
		return nil, fmt.Errorf("[ERROR] LedoitWolf: input is %d by %d, need at least 2 regions and 2 time points", p, n)
	}

	z := mat64.NewDense(p, n, nil)
	if err := ZScoring(timeSeriesMat, z); err != nil {
		return nil, err
	}

	constant := make([]bool, p)
	for i := 0; i < p; i++ {
		row := z.RawRowView(i)
		if math.IsNaN(row[0]) {
			constant[i] = true
			for t := range row {
				row[t] = 0
			}
		}
	}

	empCov := mat64.NewSymDense(p, nil)
	var deltaAcc float64
	for i := 0; i < p; i++ {
		ri := z.RawRowView(i)
		for j := i; j < p; j++ {
			rj := z.RawRowView(j)

			var acc float64
			for t := 0; t < n; t++ {
				acc += ri[t] * rj[t]
			}
			c := acc / float64(n)
			empCov.SetSym(i, j, c)

			if i == j {
				deltaAcc += c * c
			} else {
				deltaAcc += 2 * c * c
			}
		}
	}

	var traceSum float64
	for i := 0; i < p; i++ {
		traceSum += empCov.At(i, i)
	}
	mu := traceSum / float64(p)

	var betaAcc float64
	for t := 0; t < n; t++ {
		var sq float64
		for i := 0; i < p; i++ {
			v := z.At(i, t)
			sq += v * v
		}
		betaAcc += sq * sq
	}

	beta := (betaAcc/float64(n) - deltaAcc) / float64(p*n)
	delta := (deltaAcc - 2*mu*traceSum + float64(p)*mu*mu) / float64(p)
	if beta > delta {
		beta = delta
	}

	shrinkage := 0.0
	if beta != 0 && delta != 0 {
		shrinkage = beta / delta
	}

	shrunk := mat64.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			v := (1 - shrinkage) * empCov.At(i, j)
			if i == j {
				v += shrinkage * mu
			}
			shrunk.SetSym(i, j, v)
		}
	}

	outputMat := mat64.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		outputMat.SetSym(i, i, 1)
		for j := i + 1; j < p; j++ {
			if constant[i] || constant[j] {
				outputMat.SetSym(i, j, math.NaN())
				continue
			}
			outputMat.SetSym(i, j, clamp(shrunk.At(i, j)/math.Sqrt(shrunk.At(i, i)*shrunk.At(j, j))))
		}
	}

	return outputMat, nil
}
