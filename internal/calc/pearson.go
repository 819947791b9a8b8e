package calc

import (
	"fmt"
	"math"

	"github.com/gonum/matrix/mat64"
	"gonum.org/v1/gonum/stat"
)

// flatTolerance is the standard deviation, relative to the mean, at or below
// which a row counts as constant
const flatTolerance = 1e-10

func getStat(timeSeriesMat *mat64.Dense, index int) statistic {
	avgVal, stdVal := stat.PopMeanStdDev(timeSeriesMat.RawRowView(index), nil)
	if stdVal <= flatTolerance*math.Abs(avgVal) {
		stdVal = 0
	}

	return statistic{avg: avgVal, std: stdVal}
}

// RowStats returns the mean and population standard deviation of every row
func RowStats(timeSeriesMat *mat64.Dense) (avg, std []float64) {
	rows, _ := timeSeriesMat.Dims()

	avg = make([]float64, rows)
	std = make([]float64, rows)
	for i := 0; i < rows; i++ {
		s := getStat(timeSeriesMat, i)
		avg[i], std[i] = s.avg, s.std
	}

	return avg, std
}

func pearson(timeSeriesMat *mat64.Dense, pearsonMat *mat64.SymDense, stats []statistic, from int) {
	inputRows, inputCols := timeSeriesMat.Dims()

	fromRow := timeSeriesMat.RawRowView(from)
	for to := from + 1; to < inputRows; to++ {
		toRow := timeSeriesMat.RawRowView(to)

		denom := stats[from].std * stats[to].std
		if denom == 0 {
			pearsonMat.SetSym(from, to, math.NaN())
			continue
		}

		var accProd float64
		for t := 0; t < inputCols; t++ {
			accProd += (fromRow[t] - stats[from].avg) * (toRow[t] - stats[to].avg)
		}

		pearsonMat.SetSym(from, to, clamp(accProd/float64(inputCols)/denom))
	}

	return
}

// Pearson does Pearson's correlation calculation between every pair of rows of
// a regions by time matrix. The diagonal is set to 1. Pairs involving a
// constant row are NaN.
func Pearson(timeSeriesMat *mat64.Dense) (*mat64.SymDense, error) {
	inputRows, inputCols := timeSeriesMat.Dims()

	if inputRows < 2 || inputCols < 2 {
		return nil, fmt.Errorf("[ERROR] Pearson: input is %d by %d, need at least 2 regions and 2 time points", inputRows, inputCols)
	}

	stats := make([]statistic, inputRows)

	{ // Get statistics for each region timeseries
		for i := 0; i < inputRows; i++ {
			stats[i] = getStat(timeSeriesMat, i)
		}
	}

	outputMat := mat64.NewSymDense(inputRows, nil)

	{ // Calculate Pearson's correlation
		for i := 0; i < inputRows; i++ {
			outputMat.SetSym(i, i, 1)
			pearson(timeSeriesMat, outputMat, stats, i)
		}
	}

	return outputMat, nil
}

func clamp(r float64) float64 {
	if r > 1 {
		return 1
	}
	if r < -1 {
		return -1
	}
	return r
}
