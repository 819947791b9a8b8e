package qcfc

import (
	"fmt"
	"math"

	"github.com/KyungWonPark/fmriqc/internal/io"
	"github.com/montanaflynn/stats"
)

// EdgeIndexName heads the edge key column of QC-FC tables
const EdgeIndexName = "edge"

// Column names of a QC-FC table
const (
	ColumnQCFC   = "qcfc"
	ColumnPValue = "pvalue"
	ColumnFDR    = "fdr"
)

// EdgeKey names the pair of regions i and j
func EdgeKey(labels []string, i, j int) string {
	return labels[i] + "__" + labels[j]
}

// Table returns the qcfc, pvalue and fdr columns indexed by edge key
func (r *Result) Table(labels []string) (*io.Table, error) {
	if len(labels) != r.Regions {
		return nil, fmt.Errorf("[ERROR] Table: %d labels for %d regions", len(labels), r.Regions)
	}

	keys := make([]string, len(r.Edges))
	qcfc := make([]float64, len(r.Edges))
	pvalue := make([]float64, len(r.Edges))
	fdr := make([]float64, len(r.Edges))
	for e, edge := range r.Edges {
		keys[e] = EdgeKey(labels, edge.I, edge.J)
		qcfc[e] = edge.QCFC
		pvalue[e] = edge.PValue
		fdr[e] = edge.FDR
	}

	table, err := io.NewTable(EdgeIndexName, keys)
	if err != nil {
		return nil, err
	}
	for _, column := range []struct {
		name   string
		values []float64
	}{
		{ColumnQCFC, qcfc},
		{ColumnPValue, pvalue},
		{ColumnFDR, fdr},
	} {
		if err := table.AddColumn(column.name, column.values); err != nil {
			return nil, err
		}
	}

	return table, nil
}

// Summary condenses a QC-FC result across edges
type Summary struct {
	Subjects   int
	Edges      int
	Degenerate int
	// MedianAbs is the median absolute QC-FC over non-degenerate edges
	MedianAbs float64
	// PctSignificant and PctSignificantFDR are percentages of
	// non-degenerate edges below alpha
	PctSignificant    float64
	PctSignificantFDR float64
}

// Summarize counts edges below alpha before and after FDR correction
func (r *Result) Summarize(alpha float64) Summary {
	s := Summary{
		Subjects:          r.Subjects,
		Edges:             len(r.Edges),
		MedianAbs:         math.NaN(),
		PctSignificant:    math.NaN(),
		PctSignificantFDR: math.NaN(),
	}

	var abs stats.Float64Data
	var tested, significant, significantFDR int
	for _, edge := range r.Edges {
		if edge.Degenerate() {
			s.Degenerate++
			continue
		}
		abs = append(abs, math.Abs(edge.QCFC))

		if math.IsNaN(edge.PValue) {
			continue
		}
		tested++
		if edge.PValue < alpha {
			significant++
		}
		if edge.FDR < alpha {
			significantFDR++
		}
	}

	if median, err := stats.Median(abs); err == nil {
		s.MedianAbs = median
	}
	if tested > 0 {
		s.PctSignificant = 100 * float64(significant) / float64(tested)
		s.PctSignificantFDR = 100 * float64(significantFDR) / float64(tested)
	}

	return s
}
