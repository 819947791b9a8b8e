package calc

import (
	"fmt"
	"math"

	"github.com/gonum/matrix/mat64"
)

// Avg does averaging of an accumulated connectome by its per-cell counts.
// Cells that never received a value are NaN.
func Avg(inputMat *mat64.SymDense, counts *mat64.SymDense) *mat64.SymDense {
	n := inputMat.Symmetric()

	outputMat := mat64.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			div := counts.At(i, j)
			if div == 0 {
				outputMat.SetSym(i, j, math.NaN())
				continue
			}
			outputMat.SetSym(i, j, inputMat.At(i, j)/div)
		}
	}

	return outputMat
}

// Mean averages a set of same-sized connectomes cell by cell
func Mean(mats []*mat64.SymDense) (*mat64.SymDense, error) {
	if len(mats) == 0 {
		return nil, fmt.Errorf("[ERROR] Mean: no matrices to average")
	}

	n := mats[0].Symmetric()
	accedMat := mat64.NewSymDense(n, nil)
	counts := mat64.NewSymDense(n, nil)

	for _, m := range mats {
		if err := Acc(m, accedMat, counts); err != nil {
			return nil, err
		}
	}

	return Avg(accedMat, counts), nil
}
