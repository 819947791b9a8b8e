package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/KyungWonPark/fmriqc/internal/calc"
	"github.com/joho/godotenv"
)

// Environment variables consulted when paths are not given explicitly
const (
	EnvData   = "DATA"
	EnvResult = "RESULT"
)

// Config is the full set of knobs of one metrics run
type Config struct {
	Input     string
	Output    string
	Atlas     string
	Dimension string

	StrategyFile string
	Strategies   []string

	Estimator    string
	AlignPolicy  string
	Sign         string
	MotionColumn string
	Covariates   []string
	MaxMeanFD    float64

	Workers    int
	Resolution float64
	// Seed makes modularity reproducible when Seeded is set
	Seed   uint64
	Seeded bool

	Alpha           float64
	SaveConnectomes bool
	Verbose         bool
}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	return Config{
		Estimator:    "pearson",
		AlignPolicy:  "strict",
		Sign:         "negative_sym",
		MotionColumn: "mean_framewise_displacement",
		Covariates:   []string{"age", "gender"},
		Workers:      calc.DefaultWorkers,
		Resolution:   1,
		Alpha:        0.05,
	}
}

// LoadEnv reads the given .env files, or ./.env when none are given, and fills
// empty input and output paths from DATA and RESULT. Missing files are skipped.
func LoadEnv(cfg *Config, files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	if len(present) > 0 {
		if err := godotenv.Load(present...); err != nil {
			return fmt.Errorf("[ERROR] LoadEnv: %v", err)
		}
	}

	if cfg.Input == "" {
		cfg.Input = os.Getenv(EnvData)
	}
	if cfg.Output == "" {
		cfg.Output = os.Getenv(EnvResult)
	}

	return nil
}

// Validate reports the first setting that cannot run
func (c Config) Validate() error {
	switch {
	case c.Input == "":
		return fmt.Errorf("[ERROR] config: no input directory (argument or $%s)", EnvData)
	case c.Output == "":
		return fmt.Errorf("[ERROR] config: no output directory (argument or $%s)", EnvResult)
	case c.Atlas == "":
		return fmt.Errorf("[ERROR] config: no atlas")
	case c.Dimension == "":
		return fmt.Errorf("[ERROR] config: no dimension")
	case c.MotionColumn == "":
		return fmt.Errorf("[ERROR] config: empty motion column")
	case c.Workers < 0:
		return fmt.Errorf("[ERROR] config: negative worker count %d", c.Workers)
	case c.Resolution <= 0 || math.IsNaN(c.Resolution):
		return fmt.Errorf("[ERROR] config: resolution must be positive, got %v", c.Resolution)
	case c.Alpha <= 0 || c.Alpha >= 1:
		return fmt.Errorf("[ERROR] config: alpha must be in (0, 1), got %v", c.Alpha)
	case c.MaxMeanFD < 0:
		return fmt.Errorf("[ERROR] config: negative max mean FD %v", c.MaxMeanFD)
	}

	for _, cov := range c.Covariates {
		if strings.TrimSpace(cov) == "" {
			return fmt.Errorf("[ERROR] config: empty covariate name")
		}
		if cov == c.MotionColumn {
			return fmt.Errorf("[ERROR] config: motion column %q listed as covariate", cov)
		}
	}

	return nil
}
