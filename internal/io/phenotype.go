package io

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/gonum/matrix/mat64"
)

// SubjectPrefix is the BIDS prefix carried by every subject identifier
const SubjectPrefix = "sub-"

// NormalizeSubject returns the identifier with the BIDS subject prefix
func NormalizeSubject(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, SubjectPrefix) {
		return id
	}
	return SubjectPrefix + id
}

// Phenotype is a participant table keyed by subject identifier. Cells are kept
// as read; numeric access parses them on demand.
type Phenotype struct {
	Header   []string
	Subjects []string

	records  [][]string
	index    map[string]int
	colIndex map[string]int
}

// NewPhenotype builds a Phenotype from rows that line up with subjects. The
// header names every column of the records.
func NewPhenotype(header []string, subjects []string, records [][]string) (*Phenotype, error) {
	if len(subjects) != len(records) {
		return nil, fmt.Errorf("[ERROR] NewPhenotype: %d subjects for %d records", len(subjects), len(records))
	}

	p := &Phenotype{
		Header:   append([]string(nil), header...),
		Subjects: make([]string, 0, len(subjects)),
		records:  make([][]string, 0, len(records)),
		index:    make(map[string]int, len(subjects)),
		colIndex: make(map[string]int, len(header)),
	}

	for col, name := range header {
		if _, dup := p.colIndex[name]; dup {
			return nil, fmt.Errorf("[ERROR] NewPhenotype: duplicate column %q", name)
		}
		p.colIndex[name] = col
	}

	for i, subject := range subjects {
		if len(records[i]) != len(header) {
			return nil, fmt.Errorf("[ERROR] NewPhenotype: subject %s has %d cells for %d columns", subject, len(records[i]), len(header))
		}

		id := NormalizeSubject(subject)
		if _, dup := p.index[id]; dup {
			return nil, fmt.Errorf("[ERROR] NewPhenotype: duplicate subject %s", id)
		}
		p.index[id] = len(p.Subjects)
		p.Subjects = append(p.Subjects, id)
		p.records = append(p.records, append([]string(nil), records[i]...))
	}

	return p, nil
}

// ReadPhenotype reads a participants table. The subject column is
// participant_id when present, else the first column.
func ReadPhenotype(path string) (*Phenotype, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	delim := DetermineDelimiter(f, path)
	if _, err := f.Seek(0, 0); err != nil {
		return nil, pfx.Err(err)
	}

	r := csv.NewReader(bufio.NewReader(f))
	r.Comma = delim

	records, err := r.ReadAll()
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %v", path, err))
	}
	if len(records) == 0 {
		return nil, &EmptyFileError{Path: path}
	}

	header := records[0]
	idCol := 0
	for col, name := range header {
		if name == "participant_id" {
			idCol = col
			break
		}
	}

	subjects := make([]string, 0, len(records)-1)
	for _, record := range records[1:] {
		subjects = append(subjects, record[idCol])
	}

	return NewPhenotype(header, subjects, records[1:])
}

// Len returns the number of subjects
func (p *Phenotype) Len() int {
	return len(p.Subjects)
}

// Has reports whether the table has the column
func (p *Phenotype) Has(column string) bool {
	_, ok := p.colIndex[column]
	return ok
}

// Lookup returns the row of a subject
func (p *Phenotype) Lookup(subject string) (int, bool) {
	row, ok := p.index[NormalizeSubject(subject)]
	return row, ok
}

// Value returns a raw cell
func (p *Phenotype) Value(subject, column string) (string, bool) {
	row, ok := p.Lookup(subject)
	if !ok {
		return "", false
	}
	col, ok := p.colIndex[column]
	if !ok {
		return "", false
	}
	return p.records[row][col], true
}

// Float returns a column parsed as numbers in subject order; missing cells are NaN
func (p *Phenotype) Float(column string) ([]float64, error) {
	col, ok := p.colIndex[column]
	if !ok {
		return nil, fmt.Errorf("[ERROR] Float: no column %q", column)
	}

	out := make([]float64, len(p.records))
	for i, record := range p.records {
		v, err := ParseFloat(record[col])
		if err != nil {
			return nil, fmt.Errorf("[ERROR] Float: column %q subject %s: %v", column, p.Subjects[i], err)
		}
		out[i] = v
	}

	return out, nil
}

// SetFloat adds or replaces a numeric column
func (p *Phenotype) SetFloat(column string, values []float64) error {
	if len(values) != len(p.records) {
		return fmt.Errorf("[ERROR] SetFloat: %d values for %d subjects", len(values), len(p.records))
	}

	col, ok := p.colIndex[column]
	if !ok {
		col = len(p.Header)
		p.Header = append(p.Header, column)
		p.colIndex[column] = col
		for i := range p.records {
			p.records[i] = append(p.records[i], "")
		}
	}

	for i, v := range values {
		p.records[i][col] = FormatFloat(v)
	}

	return nil
}

// Missing returns the columns that are absent or empty for a subject
func (p *Phenotype) Missing(subject string, columns []string) []string {
	var missing []string
	for _, column := range columns {
		v, ok := p.Value(subject, column)
		if !ok || isMissing(v) {
			missing = append(missing, column)
		}
	}
	return missing
}

// Select returns a new table holding the given subjects in the given order,
// plus the subjects that have no row.
func (p *Phenotype) Select(subjects []string) (*Phenotype, []string) {
	var kept []string
	var rows [][]string
	var missing []string

	for _, subject := range subjects {
		row, ok := p.Lookup(subject)
		if !ok {
			missing = append(missing, NormalizeSubject(subject))
			continue
		}
		kept = append(kept, p.Subjects[row])
		rows = append(rows, p.records[row])
	}

	// Header and rows come from a valid table, so this cannot fail.
	out, _ := NewPhenotype(p.Header, kept, rows)
	return out, missing
}

// Covariates returns the design columns for the given phenotype columns in
// subject order. Numeric columns are used as is. Other columns are dummy coded
// against their first sorted level; a column with a single level contributes
// nothing. Missing cells are NaN.
func (p *Phenotype) Covariates(columns []string) (*mat64.Dense, []string, error) {
	if len(p.records) == 0 {
		return nil, nil, fmt.Errorf("[ERROR] Covariates: empty phenotype table")
	}

	var names []string
	var design [][]float64

	for _, column := range columns {
		col, ok := p.colIndex[column]
		if !ok {
			return nil, nil, fmt.Errorf("[ERROR] Covariates: no column %q", column)
		}

		if values, err := p.Float(column); err == nil {
			names = append(names, column)
			design = append(design, values)
			continue
		}

		levels := make(map[string]struct{})
		for _, record := range p.records {
			if v := strings.TrimSpace(record[col]); !isMissing(v) {
				levels[v] = struct{}{}
			}
		}
		sorted := make([]string, 0, len(levels))
		for level := range levels {
			sorted = append(sorted, level)
		}
		sort.Strings(sorted)

		for _, level := range sorted[min(1, len(sorted)):] {
			dummy := make([]float64, len(p.records))
			for i, record := range p.records {
				v := strings.TrimSpace(record[col])
				switch {
				case isMissing(v):
					dummy[i] = math.NaN()
				case v == level:
					dummy[i] = 1
				}
			}
			names = append(names, fmt.Sprintf("%s[%s]", column, level))
			design = append(design, dummy)
		}
	}

	if len(design) == 0 {
		return nil, nil, nil
	}

	matrix := mat64.NewDense(len(p.records), len(design), nil)
	for j, values := range design {
		for i, v := range values {
			matrix.Set(i, j, v)
		}
	}

	return matrix, names, nil
}

func isMissing(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, NA) || strings.EqualFold(v, "nan")
}
