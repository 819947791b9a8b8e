package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KyungWonPark/fmriqc/internal/config"
	"github.com/KyungWonPark/fmriqc/internal/connectome"
	"github.com/KyungWonPark/fmriqc/internal/qcfc"
	"github.com/google/go-cmp/cmp"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

const (
	testAtlas     = "test"
	testDimension = "5"
	testSubjects  = 8
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// dataset lays out a BIDS-like extraction store with two modules of regions
// whose coupling fades with motion.
func dataset(t *testing.T, strategies ...string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "dataset-ds000001")
	atlas := connectome.Atlas{Name: testAtlas, Dimension: testDimension}

	var pheno strings.Builder
	pheno.WriteString("participant_id\tage\tgender\tmean_framewise_displacement\n")

	for s := 1; s <= testSubjects; s++ {
		sub := fmt.Sprintf("sub-%02d", s)
		fd := 0.05 * float64(s)
		gender := "F"
		if s%2 == 0 {
			gender = "M"
		}
		fmt.Fprintf(&pheno, "%s\t%d\t%s\t%g\n", sub, 8+s%5, gender, fd)

		for k, strategy := range strategies {
			rng := rand.New(rand.NewPCG(uint64(s), uint64(k)))
			var b strings.Builder
			b.WriteString("r1\tr2\tr3\tr4\tr5\n")
			for tp := 0; tp < 40; tp++ {
				left, right := rng.NormFloat64(), rng.NormFloat64()
				noise := 0.3 + fd
				fmt.Fprintf(&b, "%.6f\t%.6f\t%.6f\t%.6f\t%.6f\n",
					left+noise*rng.NormFloat64(),
					left+noise*rng.NormFloat64(),
					left+noise*rng.NormFloat64(),
					right+noise*rng.NormFloat64(),
					right+noise*rng.NormFloat64(),
				)
			}
			name := fmt.Sprintf("%s_task-rest_%s_timeseries.tsv", sub, atlas.Pattern(strategy))
			write(t, filepath.Join(root, sub, name), b.String())
		}
	}

	write(t, filepath.Join(root, "participants.tsv"), pheno.String())
	return root
}

func testConfig(root, out string) config.Config {
	cfg := config.Default()
	cfg.Input = root
	cfg.Output = out
	cfg.Atlas = testAtlas
	cfg.Dimension = testDimension
	cfg.Workers = 3
	cfg.Seed = 7
	cfg.Seeded = true
	return cfg
}

func TestDatasetLabel(t *testing.T) {
	assert.Equal(t, "ds000228", DatasetLabel("/data/dataset-ds000228"))
	assert.Equal(t, "ds000228", DatasetLabel("/data/dataset-ds000228/"))
	assert.Equal(t, "plain", DatasetLabel("plain"))
}

func TestRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	strategies := []string{"simple", "compcor"}
	root := dataset(t, strategies...)
	out := t.TempDir()

	cfg := testConfig(root, out)
	cfg.SaveConnectomes = true
	p, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "ds000001", p.Dataset)

	report, err := p.Run(context.Background(), strategies)
	require.NoError(t, err)

	assert.Equal(t, 10, report.QCFC.Rows())
	assert.Equal(t, []string{
		"simple_qcfc", "simple_pvalue", "simple_fdr",
		"compcor_qcfc", "compcor_pvalue", "compcor_fdr",
	}, report.QCFC.Columns)
	assert.Equal(t, "r2__r1", report.QCFC.Index[0])

	assert.Equal(t, testSubjects, report.Modularity.Rows())
	assert.Equal(t, strategies, report.Modularity.Columns)
	for _, strategy := range strategies {
		scores, ok := report.Modularity.Column(strategy)
		require.True(t, ok)
		for _, q := range scores {
			assert.False(t, math.IsNaN(q))
			assert.Greater(t, q, 0.0)
		}
	}

	require.Len(t, report.Summaries, 2)
	assert.Equal(t, "simple", report.Summaries[0].Strategy)
	assert.Equal(t, testSubjects, report.Summaries[0].Subjects)
	assert.Equal(t, 10, report.Summaries[0].Edges)

	require.NoError(t, report.Write(out))

	qcfcPath, modularityPath, summaryPath := report.Paths(out)
	assert.Equal(t, filepath.Join(out, "metrics", "dataset-ds000001_atlas-test_nroi-5_qcfc.tsv"), qcfcPath)
	for _, path := range []string{qcfcPath, modularityPath, summaryPath, report.ConnectomePath(out, "simple")} {
		assert.FileExists(t, path)
	}

	f, err := os.Open(summaryPath)
	require.NoError(t, err)
	defer f.Close()
	sc := bufio.NewScanner(f)
	require.True(t, sc.Scan())
	assert.Equal(t, "strategy\tn_subjects\tn_edges\tn_degenerate\tmedian_abs_qcfc\tpct_significant\tpct_significant_fdr\tmean_modularity", sc.Text())
}

func TestRunReproducible(t *testing.T) {
	root := dataset(t, "simple")

	run := func() []float64 {
		p, err := New(testConfig(root, t.TempDir()), nil)
		require.NoError(t, err)
		res, err := p.RunStrategy(context.Background(), "simple")
		require.NoError(t, err)
		return res.Modularity
	}

	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Errorf("seeded modularity differs between runs (-first +second):\n%s", diff)
	}
}

func TestRunMissingStrategy(t *testing.T) {
	root := dataset(t, "simple")

	p, err := New(testConfig(root, t.TempDir()), nil)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), []string{"simple", "aroma"})
	require.ErrorIs(t, err, connectome.ErrNoExtraction)
	assert.Contains(t, err.Error(), "aroma")
}

func TestRunWorkerFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := dataset(t, "simple")

	p, err := New(testConfig(root, t.TempDir()), nil)
	require.NoError(t, err)
	p.Modularity.Resolution = -1

	_, err = p.RunStrategy(context.Background(), "simple")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simple")
	assert.Contains(t, err.Error(), "sub-")
}

func TestRunCancelled(t *testing.T) {
	root := dataset(t, "simple")

	p, err := New(testConfig(root, t.TempDir()), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Run(ctx, []string{"simple"})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunStrategyCancelledLeavesNoScores(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := dataset(t, "simple")

	p, err := New(testConfig(root, t.TempDir()), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := p.RunStrategy(ctx, "simple")
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestNewRejectsUnknownNames(t *testing.T) {
	for _, mutate := range []func(*config.Config){
		func(c *config.Config) { c.Estimator = "tangent" },
		func(c *config.Config) { c.AlignPolicy = "lenient" },
		func(c *config.Config) { c.Sign = "absolute" },
	} {
		cfg := testConfig("/data/dataset-x", "/out")
		mutate(&cfg)
		_, err := New(cfg, nil)
		assert.Error(t, err)
	}
}

func strategyResult(strategy string, edges []qcfc.Edge, subjects []string, scores []float64) *StrategyResult {
	return &StrategyResult{
		Strategy:   strategy,
		Subjects:   subjects,
		Labels:     []string{"A", "B", "C"},
		QCFC:       &qcfc.Result{Regions: 3, Subjects: len(subjects), Edges: edges},
		Modularity: scores,
	}
}

func TestMerge(t *testing.T) {
	nan := math.NaN()
	s1 := strategyResult("s1", []qcfc.Edge{
		{I: 1, J: 0, QCFC: 0.5, PValue: 0.01, FDR: 0.02},
		{I: 2, J: 0, QCFC: nan, PValue: nan, FDR: nan},
		{I: 2, J: 1, QCFC: -0.25, PValue: 0.2, FDR: 0.3},
	}, []string{"sub-01", "sub-02"}, []float64{0.4, 0.5})
	s2 := strategyResult("s2", []qcfc.Edge{
		{I: 1, J: 0, QCFC: 0.1, PValue: 0.5, FDR: 0.6},
		{I: 2, J: 0, QCFC: -0.2, PValue: 0.3, FDR: 0.6},
		{I: 2, J: 1, QCFC: 0, PValue: 1, FDR: 1},
	}, []string{"sub-02", "sub-03"}, []float64{0.45, 0.35})

	qcfcTable, modTable, err := Merge([]*StrategyResult{s1, s2})
	require.NoError(t, err)

	g := goldie.New(t)

	var buf bytes.Buffer
	require.NoError(t, qcfcTable.WriteTSV(&buf))
	g.Assert(t, "merge_qcfc", buf.Bytes())

	buf.Reset()
	require.NoError(t, modTable.WriteTSV(&buf))
	g.Assert(t, "merge_modularity", buf.Bytes())

	_, _, err = Merge([]*StrategyResult{s1, s1})
	assert.Error(t, err, "duplicate strategy columns")

	_, _, err = Merge(nil)
	assert.Error(t, err)
}
