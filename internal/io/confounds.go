package io

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/stat"
)

type confoundRow struct {
	FramewiseDisplacement string `csv:"framewise_displacement"`
}

// MeanFramewiseDisplacement reads an fMRIPrep confounds table and returns the
// mean of its framewise_displacement column. The first volume has no
// displacement (n/a) and is skipped like any other missing cell.
func MeanFramewiseDisplacement(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return math.NaN(), pfx.Err(err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true

	var rows []confoundRow
	if err := gocsv.UnmarshalCSV(r, &rows); err != nil {
		return math.NaN(), pfx.Err(fmt.Errorf("%s: %v", path, err))
	}

	values := make([]float64, 0, len(rows))
	for i, row := range rows {
		v, err := ParseFloat(row.FramewiseDisplacement)
		if err != nil {
			return math.NaN(), pfx.Err(fmt.Errorf("%s: row %d: %v", path, i+2, err))
		}
		if !math.IsNaN(v) {
			values = append(values, v)
		}
	}

	if len(values) == 0 {
		return math.NaN(), fmt.Errorf("[ERROR] MeanFramewiseDisplacement: %s has no framewise_displacement values", path)
	}

	return stat.Mean(values, nil), nil
}
