package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/KyungWonPark/fmriqc/internal/config"
	"github.com/KyungWonPark/fmriqc/internal/pipeline"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := config.Default()
	var envFiles []string

	cmd := &cobra.Command{
		Use:   "qcfc-metrics [INPUT] [OUTPUT]",
		Short: "Compute QC-FC and modularity for every denoising strategy",
		Long: `Compute denoising quality metrics for one atlas of an fMRIPrep dataset.

INPUT holds the extracted time series (sub-*/...desc-{strategy}_timeseries.tsv)
and the phenotype table. Metrics are written under OUTPUT/metrics. Both default
to $DATA and $RESULT.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				cfg.Input = args[0]
			}
			if len(args) > 1 {
				cfg.Output = args[1]
			}
			cfg.Seeded = cmd.Flags().Changed("seed")

			if err := config.LoadEnv(&cfg, envFiles...); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Atlas, "atlas", "a", "", "atlas name")
	flags.StringVarP(&cfg.Dimension, "dimension", "d", "", "number of regions of the atlas")
	flags.StringVar(&cfg.StrategyFile, "strategies", "", "strategy registry YAML (default: built-in list)")
	flags.StringSliceVarP(&cfg.Strategies, "strategy", "s", nil, "strategies to run, overriding the registry")
	flags.StringVar(&cfg.Estimator, "estimator", cfg.Estimator, "connectivity estimator (pearson|ledoit-wolf)")
	flags.StringVar(&cfg.AlignPolicy, "align", cfg.AlignPolicy, "phenotype alignment policy (strict|drop)")
	flags.StringVar(&cfg.Sign, "sign", cfg.Sign, "modularity sign convention (negative_sym|positive)")
	flags.StringVar(&cfg.MotionColumn, "motion", cfg.MotionColumn, "phenotype column of mean framewise displacement")
	flags.StringSliceVar(&cfg.Covariates, "covariates", cfg.Covariates, "phenotype columns controlled for in QC-FC")
	flags.Float64Var(&cfg.MaxMeanFD, "max-mean-fd", 0, "exclude subjects above this mean FD (0 keeps all)")
	flags.IntVarP(&cfg.Workers, "workers", "j", cfg.Workers, "modularity worker pool size (0: number of CPUs)")
	flags.Float64Var(&cfg.Resolution, "resolution", cfg.Resolution, "modularity resolution")
	flags.Uint64Var(&cfg.Seed, "seed", 0, "seed for reproducible modularity")
	flags.Float64Var(&cfg.Alpha, "alpha", cfg.Alpha, "significance level of the summary")
	flags.BoolVar(&cfg.SaveConnectomes, "save-connectomes", false, "also save each strategy's group connectome as npy")
	flags.StringSliceVar(&envFiles, "env", nil, "dotenv files to load (default: .env)")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "debug logging")

	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}

func run(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger = logger.With(zap.String("run_id", uuid.NewString()))

	strategies, err := cfg.ResolveStrategies()
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}

	start := time.Now()
	logger.Info("run started",
		zap.String("input", cfg.Input),
		zap.String("dataset", p.Dataset),
		zap.Stringer("atlas", p.Atlas),
		zap.Strings("strategies", strategies),
		zap.Int("workers", p.Pool.Size()),
	)

	report, err := p.Run(ctx, strategies)
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		return err
	}

	if err := report.Write(cfg.Output); err != nil {
		return err
	}

	qcfcPath, modularityPath, summaryPath := report.Paths(cfg.Output)
	logger.Info("run finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.String("qcfc", qcfcPath),
		zap.String("modularity", modularityPath),
		zap.String("summary", summaryPath),
	)

	return nil
}
