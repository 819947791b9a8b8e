package calc

import (
	"fmt"
	"math"

	"github.com/gonum/matrix/mat64"
)

// Acc does accumulation of a connectome into outputMat. NaN cells are skipped;
// counts holds how many values each cell received.
func Acc(inputMat *mat64.SymDense, outputMat *mat64.SymDense, counts *mat64.SymDense) error {
	inputRows := inputMat.Symmetric()
	outputRows := outputMat.Symmetric()

	if inputRows != outputRows || counts.Symmetric() != outputRows {
		return fmt.Errorf("[ERROR] Acc: input dims: %d when output dims: %d", inputRows, outputRows)
	}

	for i := 0; i < inputRows; i++ {
		for j := i; j < inputRows; j++ {
			value := inputMat.At(i, j)
			if math.IsNaN(value) {
				continue
			}
			outputMat.SetSym(i, j, outputMat.At(i, j)+value)
			counts.SetSym(i, j, counts.At(i, j)+1)
		}
	}

	return nil
}
