package calc

import (
	"github.com/gonum/matrix/mat64"
)

// Threshold does thresholding: off-diagonal cells at or below thr are replaced
// by sub. The input is left untouched.
func Threshold(inputMat *mat64.SymDense, thr float64, sub float64) *mat64.SymDense {
	n := inputMat.Symmetric()

	outputMat := mat64.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		outputMat.SetSym(i, i, inputMat.At(i, i))
		for j := i + 1; j < n; j++ {
			value := inputMat.At(i, j)
			if thr >= value {
				value = sub
			}

			outputMat.SetSym(i, j, value)
		}
	}

	return outputMat
}
