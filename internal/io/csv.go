package io

import (
	"encoding/csv"
	"fmt"
	goio "io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/gonum/matrix/mat64"
)

// NA is written in place of NaN values
const NA = "n/a"

// FormatFloat renders a value the way every table in this package is written
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return NA
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ParseFloat is the inverse of FormatFloat; empty cells and n/a are NaN
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, NA) || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// Mat64toTSV writes a matrix as tab separated values. When labels is non-nil
// it is written as the header row.
func Mat64toTSV(w goio.Writer, matrix mat64.Matrix, labels []string) error {
	rows, cols := matrix.Dims()

	if labels != nil && len(labels) != cols {
		return fmt.Errorf("[ERROR] Mat64toTSV: %d labels for %d columns", len(labels), cols)
	}

	tw := csv.NewWriter(w)
	tw.Comma = '\t'

	if labels != nil {
		if err := tw.Write(labels); err != nil {
			return pfx.Err(err)
		}
	}

	line := make([]string, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			line[j] = FormatFloat(matrix.At(i, j))
		}
		if err := tw.Write(line); err != nil {
			return pfx.Err(err)
		}
	}

	tw.Flush()
	if err := tw.Error(); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// TSVtoMat64 reads a tab separated numeric file. A first row that does not
// parse as numbers is returned as the header.
func TSVtoMat64(path string) (*mat64.Dense, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, pfx.Err(err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, pfx.Err(fmt.Errorf("%s: %v", path, err))
	}

	var header []string
	if len(records) > 0 && !isNumericRow(records[0]) {
		header = records[0]
		records = records[1:]
	}

	if len(records) == 0 {
		// An extraction with no time points; callers decide what that means.
		cols := len(header)
		return nil, header, &EmptyFileError{Path: path, Columns: cols}
	}

	rows, cols := len(records), len(records[0])
	matrix := mat64.NewDense(rows, cols, nil)

	for i, record := range records {
		for j := 0; j < cols; j++ {
			value, err := ParseFloat(record[j])
			if err != nil {
				return nil, nil, pfx.Err(fmt.Errorf("%s: row %d column %d: %v", path, i+1, j+1, err))
			}

			matrix.Set(i, j, value)
		}
	}

	return matrix, header, nil
}

// EmptyFileError reports a table that holds a header at most
type EmptyFileError struct {
	Path    string
	Columns int
}

func (e *EmptyFileError) Error() string {
	return fmt.Sprintf("%s: no data rows", e.Path)
}

func isNumericRow(record []string) bool {
	for _, v := range record {
		if _, err := ParseFloat(v); err != nil {
			return false
		}
	}
	return true
}
