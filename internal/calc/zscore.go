package calc

import (
	"fmt"
	"math"

	"github.com/gonum/matrix/mat64"
)

func zScoring(inputMat *mat64.Dense, outputMat *mat64.Dense, s statistic, index int) {
	_, inputCols := inputMat.Dims()

	for t := 0; t < inputCols; t++ {
		value := inputMat.At(index, t)
		newValue := math.NaN()
		if s.std > 0 {
			newValue = (value - s.avg) / s.std
		}
		outputMat.Set(index, t, newValue)
	}

	return
}

// ZScoring does z-scoring on each rows. Constant rows become NaN.
func ZScoring(inputMat *mat64.Dense, outputMat *mat64.Dense) error {
	inputRows, inputCols := inputMat.Dims()
	outputRows, outputCols := outputMat.Dims()

	{ // Check input matrix and output matrix dimensions
		if outputRows != inputRows || outputCols != inputCols {
			return fmt.Errorf("[ERROR] ZScoring: input is %d by %d but output is %d by %d", inputRows, inputCols, outputRows, outputCols)
		}
	}

	for i := 0; i < inputRows; i++ {
		zScoring(inputMat, outputMat, getStat(inputMat, i), i)
	}

	return nil
}
