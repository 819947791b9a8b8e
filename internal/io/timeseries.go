package io

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gonum/matrix/mat64"
)

// TimeSeries holds one subject's extracted signals, one row per region
type TimeSeries struct {
	Data   *mat64.Dense
	Labels []string
}

// Regions returns the number of regions
func (ts *TimeSeries) Regions() int {
	r, _ := ts.Data.Dims()
	return r
}

// ReadTimeSeries loads a time by region extraction (.tsv or .npy) and returns
// it transposed to region by time. Region labels come from the TSV header and
// default to 1-based region numbers.
func ReadTimeSeries(path string) (*TimeSeries, error) {
	var raw *mat64.Dense
	var labels []string
	var err error

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".tsv":
		raw, labels, err = TSVtoMat64(path)
	case ".npy":
		raw, err = NpytoMat64(path)
	default:
		return nil, fmt.Errorf("[ERROR] ReadTimeSeries: unsupported extension %q for %s", ext, path)
	}
	if err != nil {
		return nil, err
	}

	timePoints, regions := raw.Dims()
	if timePoints == 0 {
		return nil, &EmptyFileError{Path: path, Columns: regions}
	}

	if labels == nil {
		labels = make([]string, regions)
		for i := range labels {
			labels[i] = fmt.Sprintf("%d", i+1)
		}
	}
	if len(labels) != regions {
		return nil, fmt.Errorf("[ERROR] ReadTimeSeries: %s has %d labels for %d regions", path, len(labels), regions)
	}

	data := mat64.NewDense(regions, timePoints, nil)
	for t := 0; t < timePoints; t++ {
		for r := 0; r < regions; r++ {
			data.Set(r, t, raw.At(t, r))
		}
	}

	return &TimeSeries{Data: data, Labels: labels}, nil
}
