package pipeline

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/KyungWonPark/fmriqc/internal/connectome"
	"github.com/KyungWonPark/fmriqc/internal/io"
	"github.com/KyungWonPark/fmriqc/internal/qcfc"
	"gonum.org/v1/gonum/stat"
)

// SubjectIndexName heads the subject column of the modularity table
const SubjectIndexName = "participant_id"

// Summary is one row of the summary table
type Summary struct {
	Strategy          string   `csv:"strategy"`
	Subjects          int      `csv:"n_subjects"`
	Edges             int      `csv:"n_edges"`
	Degenerate        int      `csv:"n_degenerate"`
	MedianAbsQCFC     io.Float `csv:"median_abs_qcfc"`
	PctSignificant    io.Float `csv:"pct_significant"`
	PctSignificantFDR io.Float `csv:"pct_significant_fdr"`
	MeanModularity    io.Float `csv:"mean_modularity"`
}

func summarize(strategy string, result *qcfc.Result, modularity []float64, alpha float64) Summary {
	s := result.Summarize(alpha)

	mean := math.NaN()
	if len(modularity) > 0 {
		mean = stat.Mean(modularity, nil)
	}

	return Summary{
		Strategy:          strategy,
		Subjects:          s.Subjects,
		Edges:             s.Edges,
		Degenerate:        s.Degenerate,
		MedianAbsQCFC:     io.Float(s.MedianAbs),
		PctSignificant:    io.Float(s.PctSignificant),
		PctSignificantFDR: io.Float(s.PctSignificantFDR),
		MeanModularity:    io.Float(mean),
	}
}

// Merge joins the per-strategy results: QC-FC columns become
// {strategy}_{column} on the edge key, modularity columns are the strategy
// names on the subject id.
func Merge(results []*StrategyResult) (qcfcTable, modularityTable *io.Table, err error) {
	if len(results) == 0 {
		return nil, nil, fmt.Errorf("[ERROR] Merge: no strategy results")
	}

	qcfcTables := make([]*io.Table, 0, len(results))
	modTables := make([]*io.Table, 0, len(results))

	for _, res := range results {
		table, err := res.QCFC.Table(res.Labels)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", res.Strategy, err)
		}
		qcfcTables = append(qcfcTables, table.Prefix(res.Strategy))

		mod, err := io.NewTable(SubjectIndexName, res.Subjects)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", res.Strategy, err)
		}
		if err := mod.AddColumn(res.Strategy, res.Modularity); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", res.Strategy, err)
		}
		modTables = append(modTables, mod)
	}

	if qcfcTable, err = io.Concat(qcfcTables...); err != nil {
		return nil, nil, err
	}
	if modularityTable, err = io.Concat(modTables...); err != nil {
		return nil, nil, err
	}

	return qcfcTable, modularityTable, nil
}

// Report is the merged output of a run
type Report struct {
	Dataset    string
	Atlas      connectome.Atlas
	QCFC       *io.Table
	Modularity *io.Table
	Summaries  []Summary
	results    []*StrategyResult
}

// NewReport merges strategy results into a report
func NewReport(dataset string, atlas connectome.Atlas, results []*StrategyResult) (*Report, error) {
	qcfcTable, modTable, err := Merge(results)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(results))
	for _, res := range results {
		summaries = append(summaries, res.Summary)
	}

	return &Report{
		Dataset:    dataset,
		Atlas:      atlas,
		QCFC:       qcfcTable,
		Modularity: modTable,
		Summaries:  summaries,
		results:    results,
	}, nil
}

func (r *Report) prefix() string {
	return fmt.Sprintf("dataset-%s_%s", r.Dataset, r.Atlas)
}

// Paths returns the qcfc, modularity and summary table paths under dir
func (r *Report) Paths(dir string) (qcfcPath, modularityPath, summaryPath string) {
	base := filepath.Join(dir, "metrics", r.prefix())
	return base + "_qcfc.tsv", base + "_modularity.tsv", base + "_summary.tsv"
}

// ConnectomePath returns where the group connectome of a strategy is saved
func (r *Report) ConnectomePath(dir, strategy string) string {
	name := fmt.Sprintf("%s_desc-%s_connectome.npy", r.prefix(), strategy)
	return filepath.Join(dir, "metrics", "connectomes", name)
}

// Write saves every table under {dir}/metrics, and the group connectomes of
// strategies that kept one.
func (r *Report) Write(dir string) error {
	qcfcPath, modularityPath, summaryPath := r.Paths(dir)

	if err := r.QCFC.WriteFile(qcfcPath); err != nil {
		return err
	}
	if err := r.Modularity.WriteFile(modularityPath); err != nil {
		return err
	}
	if err := io.WriteRecordsFile(summaryPath, &r.Summaries); err != nil {
		return err
	}

	for _, res := range r.results {
		if res.Mean == nil {
			continue
		}
		if err := io.Mat64toNpy(r.ConnectomePath(dir, res.Strategy), res.Mean); err != nil {
			return err
		}
	}

	return nil
}
