package connectome

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KyungWonPark/fmriqc/internal/calc"
	"github.com/gonum/matrix/mat64"
)

var (
	// ErrNoExtraction is returned when no subject time series match a pattern
	ErrNoExtraction = errors.New("no extracted time series")
	// ErrMisaligned is returned when connectomes and phenotype rows do not join
	ErrMisaligned = errors.New("connectomes and phenotype are misaligned")
	// ErrRegionMismatch is returned when subjects disagree on the region count
	ErrRegionMismatch = errors.New("subjects have different region counts")
)

// Estimator selects how a connectome is derived from time series
type Estimator int

const (
	// EstimatorPearson is the plain Pearson correlation per region pair
	EstimatorPearson Estimator = iota
	// EstimatorLedoitWolf is the Ledoit-Wolf shrunk covariance as correlation
	EstimatorLedoitWolf
)

func (e Estimator) String() string {
	switch e {
	case EstimatorPearson:
		return "pearson"
	case EstimatorLedoitWolf:
		return "ledoit-wolf"
	}
	return fmt.Sprintf("Estimator(%d)", int(e))
}

// ParseEstimator parses the name printed by Estimator.String
func ParseEstimator(s string) (Estimator, error) {
	switch strings.ToLower(s) {
	case "pearson", "correlation":
		return EstimatorPearson, nil
	case "ledoit-wolf", "ledoitwolf", "lw":
		return EstimatorLedoitWolf, nil
	}
	return 0, fmt.Errorf("[ERROR] ParseEstimator: unknown estimator %q", s)
}

// Estimate derives one connectome from a region by time matrix
func Estimate(timeSeries *mat64.Dense, e Estimator) (*mat64.SymDense, error) {
	switch e {
	case EstimatorPearson:
		return calc.Pearson(timeSeries)
	case EstimatorLedoitWolf:
		return calc.LedoitWolf(timeSeries)
	}
	return nil, fmt.Errorf("[ERROR] Estimate: unknown estimator %v", e)
}

// AlignPolicy decides what happens to subjects that cannot be joined with the
// phenotype table.
type AlignPolicy int

const (
	// AlignStrict fails the join on the first unmatched subject
	AlignStrict AlignPolicy = iota
	// AlignDrop excludes unmatched subjects and logs them
	AlignDrop
)

func (p AlignPolicy) String() string {
	switch p {
	case AlignStrict:
		return "strict"
	case AlignDrop:
		return "drop"
	}
	return fmt.Sprintf("AlignPolicy(%d)", int(p))
}

// ParseAlignPolicy parses the name printed by AlignPolicy.String
func ParseAlignPolicy(s string) (AlignPolicy, error) {
	switch strings.ToLower(s) {
	case "strict":
		return AlignStrict, nil
	case "drop":
		return AlignDrop, nil
	}
	return 0, fmt.Errorf("[ERROR] ParseAlignPolicy: unknown policy %q", s)
}

// Atlas names the parcellation a set of extractions was made with
type Atlas struct {
	Name      string
	Dimension string
}

// Pattern returns the file name fragment of one strategy's extractions
func (a Atlas) Pattern(strategy string) string {
	return fmt.Sprintf("atlas-%s_nroi-%s_desc-%s", a.Name, a.Dimension, strategy)
}

func (a Atlas) String() string {
	return fmt.Sprintf("atlas-%s_nroi-%s", a.Name, a.Dimension)
}

// Collection holds one connectome per subject. Subjects, Matrices and the
// phenotype returned with a collection share one order.
type Collection struct {
	Subjects []string
	Matrices []*mat64.SymDense
	Labels   []string
	Regions  int
}

// Len returns the number of subjects
func (c *Collection) Len() int {
	return len(c.Subjects)
}

// Edges returns the number of unique region pairs
func (c *Collection) Edges() int {
	return c.Regions * (c.Regions - 1) / 2
}

// Mean returns the group average connectome
func (c *Collection) Mean() (*mat64.SymDense, error) {
	return calc.Mean(c.Matrices)
}

// subset keeps the subjects at the given positions
func (c *Collection) subset(keep []int) *Collection {
	out := &Collection{
		Subjects: make([]string, 0, len(keep)),
		Matrices: make([]*mat64.SymDense, 0, len(keep)),
		Labels:   c.Labels,
		Regions:  c.Regions,
	}
	for _, i := range keep {
		out.Subjects = append(out.Subjects, c.Subjects[i])
		out.Matrices = append(out.Matrices, c.Matrices[i])
	}
	return out
}
