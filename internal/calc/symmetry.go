package calc

import (
	"math"

	"github.com/gonum/matrix/mat64"
)

// SymCheck checks symmetry of a square matrix up to pre. NaN cells must be
// mirrored by NaN cells.
func SymCheck(matrix mat64.Matrix, pre float64) bool {
	rows, cols := matrix.Dims()
	if rows != cols {
		return false
	}

	pre = math.Abs(pre)
	for i := 0; i < rows; i++ {
		for j := i + 1; j < cols; j++ {
			a, b := matrix.At(i, j), matrix.At(j, i)
			if math.IsNaN(a) || math.IsNaN(b) {
				if !(math.IsNaN(a) && math.IsNaN(b)) {
					return false
				}
				continue
			}
			if math.Abs(a-b) >= pre {
				return false
			}
		}
	}

	return true
}

// ToSym copies a square matrix that passes SymCheck into a SymDense built
// from its upper triangle. ok is false when the matrix is not symmetric.
func ToSym(matrix mat64.Matrix, pre float64) (sym *mat64.SymDense, ok bool) {
	if s, isSym := matrix.(*mat64.SymDense); isSym {
		return s, true
	}
	if !SymCheck(matrix, pre) {
		return nil, false
	}

	n, _ := matrix.Dims()
	sym = mat64.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, matrix.At(i, j))
		}
	}

	return sym, true
}
