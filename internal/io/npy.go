package io

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/carbocation/pfx"
	"github.com/gonum/matrix/mat64"
	"github.com/kshedden/gonpy"
)

// Mat64toNpy writes a mat64 matrix to a Python numpy npy binary file,
// creating parent directories
func Mat64toNpy(path string, matrix mat64.Matrix) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return pfx.Err(err)
	}

	rows, cols := matrix.Dims()

	data := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data = append(data, matrix.At(i, j))
		}
	}

	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return pfx.Err(err)
	}
	w.Shape = []int{rows, cols}
	w.Version = 2
	if err := w.WriteFloat64(data); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// NpytoMat64 reads a 2-D Python numpy npy binary file as a mat64 matrix
func NpytoMat64(path string) (*mat64.Dense, error) {
	r, err := gonpy.NewFileReader(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	if len(r.Shape) != 2 {
		return nil, pfx.Err(fmt.Errorf("%s: expected a 2-D array, got shape %v", path, r.Shape))
	}

	rows := r.Shape[0]
	cols := r.Shape[1]
	if rows == 0 || cols == 0 {
		return nil, &EmptyFileError{Path: path, Columns: cols}
	}

	data, err := r.GetFloat64()
	if err != nil {
		return nil, pfx.Err(err)
	}

	if !r.ColumnMajor {
		return mat64.NewDense(rows, cols, data), nil
	}

	matrix := mat64.NewDense(rows, cols, nil)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			matrix.Set(i, j, data[j*rows+i])
		}
	}

	return matrix, nil
}
