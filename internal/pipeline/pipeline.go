package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"

	"github.com/KyungWonPark/fmriqc/internal/calc"
	"github.com/KyungWonPark/fmriqc/internal/cluster"
	"github.com/KyungWonPark/fmriqc/internal/config"
	"github.com/KyungWonPark/fmriqc/internal/connectome"
	"github.com/KyungWonPark/fmriqc/internal/qcfc"
	"github.com/gonum/matrix/mat64"
	"go.uber.org/zap"
)

// Pipeline computes the quality metrics of every denoising strategy of one
// dataset and atlas.
type Pipeline struct {
	Root    string
	Dataset string
	Atlas   connectome.Atlas

	Aggregator *connectome.Aggregator
	Pool       *calc.Pool
	// Modularity is copied for every subject; its Src is replaced
	Modularity cluster.Options
	Seed       uint64
	Seeded     bool
	Alpha      float64

	KeepMean bool

	logger *zap.Logger
}

// New builds a Pipeline from a validated configuration
func New(cfg config.Config, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	estimator, err := connectome.ParseEstimator(cfg.Estimator)
	if err != nil {
		return nil, err
	}
	policy, err := connectome.ParseAlignPolicy(cfg.AlignPolicy)
	if err != nil {
		return nil, err
	}
	sign, err := cluster.ParseSign(cfg.Sign)
	if err != nil {
		return nil, err
	}

	agg := connectome.NewAggregator(logger)
	agg.Estimator = estimator
	agg.Policy = policy
	agg.MotionColumn = cfg.MotionColumn
	agg.Covariates = append([]string(nil), cfg.Covariates...)
	agg.MaxMeanFD = cfg.MaxMeanFD

	return &Pipeline{
		Root:       cfg.Input,
		Dataset:    DatasetLabel(cfg.Input),
		Atlas:      connectome.Atlas{Name: cfg.Atlas, Dimension: cfg.Dimension},
		Aggregator: agg,
		Pool:       calc.NewPool(cfg.Workers),
		Modularity: cluster.Options{Resolution: cfg.Resolution, Sign: sign},
		Seed:       cfg.Seed,
		Seeded:     cfg.Seeded,
		Alpha:      cfg.Alpha,
		KeepMean:   cfg.SaveConnectomes,
		logger:     logger,
	}, nil
}

// DatasetLabel takes the dataset name from an input directory such as
// dataset-ds000228, which yields ds000228.
func DatasetLabel(root string) string {
	base := filepath.Base(filepath.Clean(root))
	if i := strings.LastIndex(base, "-"); i >= 0 {
		return base[i+1:]
	}
	return base
}

// StrategyResult holds everything computed for one strategy
type StrategyResult struct {
	Strategy   string
	Subjects   []string
	Labels     []string
	QCFC       *qcfc.Result
	Modularity []float64
	Summary    Summary
	// Mean is the group connectome, set when the pipeline keeps it
	Mean *mat64.SymDense
}

// RunStrategy aggregates one strategy's connectomes, computes QC-FC, then
// modularity per subject on the worker pool.
func (p *Pipeline) RunStrategy(ctx context.Context, strategy string) (*StrategyResult, error) {
	log := p.log().With(zap.String("strategy", strategy))

	collection, phenotype, err := p.Aggregator.Compute(p.Atlas, p.Root, p.Dataset, p.Atlas.Pattern(strategy))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", strategy, err)
	}

	motion, err := phenotype.Float(p.Aggregator.MotionColumn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", strategy, err)
	}
	covariates, names, err := phenotype.Covariates(p.Aggregator.Covariates)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", strategy, err)
	}
	log.Debug("design", zap.Strings("covariates", names))

	result, err := qcfc.Compute(motion, collection.Matrices, covariates)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", strategy, err)
	}

	scores, err := p.modularity(ctx, strategy, collection)
	if err != nil {
		return nil, err
	}

	out := &StrategyResult{
		Strategy:   strategy,
		Subjects:   collection.Subjects,
		Labels:     collection.Labels,
		QCFC:       result,
		Modularity: scores,
		Summary:    summarize(strategy, result, scores, p.Alpha),
	}

	if p.KeepMean {
		out.Mean, err = collection.Mean()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", strategy, err)
		}
	}

	log.Info("strategy done",
		zap.Int("subjects", collection.Len()),
		zap.Int("edges", collection.Edges()),
		zap.Int("degenerate_edges", out.Summary.Degenerate),
		zap.Float64("median_abs_qcfc", float64(out.Summary.MedianAbsQCFC)),
		zap.Float64("mean_modularity", float64(out.Summary.MeanModularity)),
	)

	return out, nil
}

// modularity scores every subject on the pool; score i belongs to subject i
func (p *Pipeline) modularity(ctx context.Context, strategy string, collection *connectome.Collection) ([]float64, error) {
	scores := make([]float64, collection.Len())

	err := p.Pool.Run(ctx, collection.Len(), func(ctx context.Context, i int) error {
		opts := p.Modularity
		opts.Src = p.source(i)

		res, err := cluster.Louvain(collection.Matrices[i], opts)
		if err != nil {
			return fmt.Errorf("modularity of %s: %w", collection.Subjects[i], err)
		}
		scores[i] = res.Q

		p.log().Debug("modularity",
			zap.String("strategy", strategy),
			zap.String("subject", collection.Subjects[i]),
			zap.Float64("q", res.Q),
			zap.Int("communities", len(cluster.GetEssentialClusters(res.Clusters))),
		)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", strategy, err)
	}

	return scores, nil
}

// source returns the random source of subject i, nil when unseeded
func (p *Pipeline) source(i int) rand.Source {
	if !p.Seeded {
		return nil
	}
	return rand.NewPCG(p.Seed, uint64(i))
}

// Run processes strategies one after another in the given order
func (p *Pipeline) Run(ctx context.Context, strategies []string) (*Report, error) {
	results := make([]*StrategyResult, 0, len(strategies))

	for _, strategy := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := p.RunStrategy(ctx, strategy)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	return NewReport(p.Dataset, p.Atlas, results)
}

func (p *Pipeline) log() *zap.Logger {
	if p.logger == nil {
		return zap.NewNop()
	}
	return p.logger
}
