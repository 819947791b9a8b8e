package connectome

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/KyungWonPark/fmriqc/internal/calc"
	"github.com/KyungWonPark/fmriqc/internal/io"
	"github.com/gonum/matrix/mat64"
	"go.uber.org/zap"
)

// DefaultMotionColumn is the phenotype column holding mean framewise displacement
const DefaultMotionColumn = "mean_framewise_displacement"

// DefaultCovariates are controlled for when none are configured
var DefaultCovariates = []string{"age", "gender"}

// Aggregator loads one strategy's extractions and joins them with the
// phenotype table.
type Aggregator struct {
	Estimator    Estimator
	MotionColumn string
	Covariates   []string
	Policy       AlignPolicy
	// MaxMeanFD excludes subjects above this mean FD when positive
	MaxMeanFD float64

	logger *zap.Logger
}

// NewAggregator returns an Aggregator with the default settings
func NewAggregator(logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		Estimator:    EstimatorPearson,
		MotionColumn: DefaultMotionColumn,
		Covariates:   append([]string(nil), DefaultCovariates...),
		Policy:       AlignStrict,
		logger:       logger,
	}
}

// Compute builds the connectome collection of every subject whose file name
// contains pattern, and the phenotype rows aligned with it.
func (a *Aggregator) Compute(atlas Atlas, root, dataset, pattern string) (*Collection, *io.Phenotype, error) {
	log := a.log().With(zap.String("atlas", atlas.String()), zap.String("pattern", pattern))

	files, err := discover(root, pattern)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("%w: no *%s_timeseries file under %s", ErrNoExtraction, pattern, root)
	}

	collection, err := a.load(files, log)
	if err != nil {
		return nil, nil, err
	}
	if collection.Len() == 0 {
		return nil, nil, fmt.Errorf("%w: every %s extraction under %s is empty", ErrNoExtraction, pattern, root)
	}

	phenotype, err := readPhenotype(root, dataset)
	if err != nil {
		return nil, nil, err
	}

	if !phenotype.Has(a.MotionColumn) {
		if err := a.deriveMotion(root, phenotype, collection.Subjects, log); err != nil {
			return nil, nil, err
		}
	}

	collection, phenotype, err = a.align(collection, phenotype, log)
	if err != nil {
		return nil, nil, err
	}
	if collection.Len() == 0 {
		return nil, nil, fmt.Errorf("%w: no %s subject left after joining the phenotype", ErrNoExtraction, pattern)
	}

	log.Info("connectomes computed",
		zap.Int("subjects", collection.Len()),
		zap.Int("regions", collection.Regions),
		zap.Stringer("estimator", a.Estimator),
	)

	return collection, phenotype, nil
}

func (a *Aggregator) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

type extraction struct {
	subject string
	path    string
}

// discover finds every time series file of a pattern, one per subject,
// ordered by subject id.
func discover(root, pattern string) ([]extraction, error) {
	var paths []string
	for _, dir := range []string{filepath.Join(root, "sub-*"), root} {
		for _, ext := range []string{"tsv", "npy"} {
			matches, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("*%s_timeseries.%s", pattern, ext)))
			if err != nil {
				return nil, fmt.Errorf("[ERROR] discover: %v", err)
			}
			paths = append(paths, matches...)
		}
	}

	bySubject := make(map[string]string, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		subject := io.NormalizeSubject(strings.SplitN(name, "_", 2)[0])
		if prev, dup := bySubject[subject]; dup {
			return nil, fmt.Errorf("[ERROR] discover: %s has two extractions: %s and %s", subject, prev, path)
		}
		bySubject[subject] = path
	}

	out := make([]extraction, 0, len(bySubject))
	for subject, path := range bySubject {
		out = append(out, extraction{subject: subject, path: path})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].subject < out[j].subject })

	return out, nil
}

func (a *Aggregator) load(files []extraction, log *zap.Logger) (*Collection, error) {
	collection := &Collection{}

	for _, file := range files {
		ts, err := io.ReadTimeSeries(file.path)
		var empty *io.EmptyFileError
		if errors.As(err, &empty) {
			log.Warn("empty extraction, subject skipped", zap.String("subject", file.subject), zap.String("path", file.path))
			continue
		}
		if err != nil {
			return nil, err
		}

		if collection.Regions == 0 {
			collection.Regions = ts.Regions()
			collection.Labels = ts.Labels
		} else if ts.Regions() != collection.Regions {
			return nil, fmt.Errorf("%w: %s has %d regions, %s has %d",
				ErrRegionMismatch, file.subject, ts.Regions(), collection.Subjects[0], collection.Regions)
		} else if len(ts.Labels) > 0 && len(collection.Labels) > 0 && !slices.Equal(ts.Labels, collection.Labels) {
			return nil, fmt.Errorf("%w: region labels of %s differ from %s",
				ErrRegionMismatch, file.subject, collection.Subjects[0])
		}

		if flat := flatRegions(ts.Data); flat > 0 {
			log.Warn("regions without variance give NaN edges",
				zap.String("subject", file.subject), zap.Int("regions", flat))
		}

		conn, err := Estimate(ts.Data, a.Estimator)
		if err != nil {
			return nil, fmt.Errorf("[ERROR] %s: %v", file.subject, err)
		}

		log.Debug("connectome", zap.String("subject", file.subject), zap.String("path", file.path))
		collection.Subjects = append(collection.Subjects, file.subject)
		collection.Matrices = append(collection.Matrices, conn)
	}

	return collection, nil
}

func flatRegions(ts *mat64.Dense) int {
	_, std := calc.RowStats(ts)

	flat := 0
	for _, s := range std {
		if s == 0 {
			flat++
		}
	}
	return flat
}

// readPhenotype prefers the dataset phenotype file over participants.tsv
func readPhenotype(root, dataset string) (*io.Phenotype, error) {
	candidates := []string{
		filepath.Join(root, fmt.Sprintf("dataset-%s_desc-phenotype.tsv", dataset)),
		filepath.Join(root, "participants.tsv"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return io.ReadPhenotype(path)
	}

	return nil, fmt.Errorf("%w: no phenotype table (%s)", ErrMisaligned, strings.Join(candidates, ", "))
}

// deriveMotion fills the motion column from each subject's confounds table.
// Subjects without one are left missing for the join to handle.
func (a *Aggregator) deriveMotion(root string, phenotype *io.Phenotype, subjects []string, log *zap.Logger) error {
	motion := make([]float64, phenotype.Len())
	for i := range motion {
		motion[i] = math.NaN()
	}

	for _, subject := range subjects {
		row, ok := phenotype.Lookup(subject)
		if !ok {
			continue
		}

		path, err := findConfounds(root, subject)
		if err != nil {
			return err
		}
		if path == "" {
			log.Debug("no confounds table", zap.String("subject", subject))
			continue
		}

		fd, err := io.MeanFramewiseDisplacement(path)
		if err != nil {
			return err
		}
		motion[row] = fd
	}

	log.Debug("motion derived from confounds", zap.String("column", a.MotionColumn))

	return phenotype.SetFloat(a.MotionColumn, motion)
}

func findConfounds(root, subject string) (string, error) {
	for _, glob := range []string{
		filepath.Join(root, subject, "*desc-confounds_timeseries.tsv"),
		filepath.Join(root, subject, "*", "*desc-confounds_timeseries.tsv"),
	} {
		matches, err := filepath.Glob(glob)
		if err != nil {
			return "", fmt.Errorf("[ERROR] findConfounds: %v", err)
		}
		if len(matches) > 0 {
			sort.Strings(matches)
			return matches[0], nil
		}
	}
	return "", nil
}

// align joins the collection with the phenotype by subject id under the
// aggregator's policy, then applies the motion exclusion.
func (a *Aggregator) align(collection *Collection, phenotype *io.Phenotype, log *zap.Logger) (*Collection, *io.Phenotype, error) {
	required := append([]string{a.MotionColumn}, a.Covariates...)
	for _, column := range required {
		if !phenotype.Has(column) {
			return nil, nil, fmt.Errorf("%w: phenotype has no %q column", ErrMisaligned, column)
		}
	}

	var keep []int
	var problems []string
	for i, subject := range collection.Subjects {
		if _, ok := phenotype.Lookup(subject); !ok {
			problems = append(problems, subject+" (no phenotype row)")
			continue
		}
		if missing := phenotype.Missing(subject, required); len(missing) > 0 {
			problems = append(problems, fmt.Sprintf("%s (missing %s)", subject, strings.Join(missing, ", ")))
			continue
		}
		keep = append(keep, i)
	}

	if len(problems) > 0 {
		if a.Policy == AlignStrict {
			return nil, nil, fmt.Errorf("%w: %s", ErrMisaligned, strings.Join(problems, "; "))
		}
		for _, problem := range problems {
			log.Warn("subject dropped", zap.String("reason", problem))
		}
	}

	if a.MaxMeanFD > 0 {
		kept := keep[:0]
		for _, i := range keep {
			subject := collection.Subjects[i]
			raw, _ := phenotype.Value(subject, a.MotionColumn)
			fd, err := io.ParseFloat(raw)
			if err != nil {
				return nil, nil, fmt.Errorf("[ERROR] align: %s %s: %v", subject, a.MotionColumn, err)
			}
			if fd > a.MaxMeanFD {
				log.Info("subject excluded for motion", zap.String("subject", subject), zap.Float64("mean_fd", fd))
				continue
			}
			kept = append(kept, i)
		}
		keep = kept
	}

	collection = collection.subset(keep)
	selected, missing := phenotype.Select(collection.Subjects)
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrMisaligned, strings.Join(missing, ", "))
	}

	for i, subject := range selected.Subjects {
		if subject != collection.Subjects[i] {
			return nil, nil, fmt.Errorf("%w: row %d is %s, connectome is %s", ErrMisaligned, i, subject, collection.Subjects[i])
		}
	}

	return collection, selected, nil
}
