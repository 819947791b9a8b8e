package io

import (
	"encoding/csv"
	"fmt"
	goio "io"
	"math"
	"os"
	"path/filepath"

	"github.com/carbocation/pfx"
)

// Table is a column oriented float table with a string row key
type Table struct {
	IndexName string
	Index     []string
	Columns   []string
	// Values[c][r] is column c at row r
	Values [][]float64

	rowIndex map[string]int
	colIndex map[string]int
}

// NewTable returns a table with the given rows and no columns
func NewTable(indexName string, index []string) (*Table, error) {
	t := &Table{
		IndexName: indexName,
		Index:     make([]string, 0, len(index)),
		rowIndex:  make(map[string]int, len(index)),
		colIndex:  make(map[string]int),
	}

	for _, key := range index {
		if _, dup := t.rowIndex[key]; dup {
			return nil, fmt.Errorf("[ERROR] NewTable: duplicate row %q", key)
		}
		t.rowIndex[key] = len(t.Index)
		t.Index = append(t.Index, key)
	}

	return t, nil
}

// Rows returns the number of rows
func (t *Table) Rows() int {
	return len(t.Index)
}

// AddColumn appends a column; values line up with Index
func (t *Table) AddColumn(name string, values []float64) error {
	if len(values) != len(t.Index) {
		return fmt.Errorf("[ERROR] AddColumn: %d values for %d rows", len(values), len(t.Index))
	}
	if _, dup := t.colIndex[name]; dup {
		return fmt.Errorf("[ERROR] AddColumn: duplicate column %q", name)
	}

	t.colIndex[name] = len(t.Columns)
	t.Columns = append(t.Columns, name)
	t.Values = append(t.Values, append([]float64(nil), values...))

	return nil
}

// Column returns a column by name
func (t *Table) Column(name string) ([]float64, bool) {
	c, ok := t.colIndex[name]
	if !ok {
		return nil, false
	}
	return t.Values[c], true
}

// At returns the value at a row key and column, NaN when either is absent
func (t *Table) At(key, column string) float64 {
	r, ok := t.rowIndex[key]
	if !ok {
		return math.NaN()
	}
	c, ok := t.colIndex[column]
	if !ok {
		return math.NaN()
	}
	return t.Values[c][r]
}

// Prefix returns a copy whose columns are renamed {prefix}_{column}
func (t *Table) Prefix(prefix string) *Table {
	out, _ := NewTable(t.IndexName, t.Index)
	for c, name := range t.Columns {
		out.AddColumn(prefix+"_"+name, t.Values[c])
	}
	return out
}

// Concat joins tables column-wise on their row keys. Rows keep first-seen
// order; a row missing from a table is NaN in that table's columns. Column
// names must be unique across tables.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("[ERROR] Concat: no tables")
	}

	var index []string
	seen := make(map[string]struct{})
	for _, t := range tables {
		for _, key := range t.Index {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			index = append(index, key)
		}
	}

	out, err := NewTable(tables[0].IndexName, index)
	if err != nil {
		return nil, err
	}

	for _, t := range tables {
		for c, name := range t.Columns {
			values := make([]float64, len(index))
			for r, key := range index {
				if src, ok := t.rowIndex[key]; ok {
					values[r] = t.Values[c][src]
				} else {
					values[r] = math.NaN()
				}
			}
			if err := out.AddColumn(name, values); err != nil {
				return nil, fmt.Errorf("[ERROR] Concat: %v", err)
			}
		}
	}

	return out, nil
}

// WriteTSV writes the row key as the first column followed by every column
func (t *Table) WriteTSV(w goio.Writer) error {
	tw := csv.NewWriter(w)
	tw.Comma = '\t'

	header := append([]string{t.IndexName}, t.Columns...)
	if err := tw.Write(header); err != nil {
		return pfx.Err(err)
	}

	line := make([]string, len(header))
	for r, key := range t.Index {
		line[0] = key
		for c := range t.Columns {
			line[c+1] = FormatFloat(t.Values[c][r])
		}
		if err := tw.Write(line); err != nil {
			return pfx.Err(err)
		}
	}

	tw.Flush()
	if err := tw.Error(); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// WriteFile writes the table to path, creating parent directories
func (t *Table) WriteFile(path string) error {
	return writeFile(path, t.WriteTSV)
}

func writeFile(path string, write func(goio.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return pfx.Err(err)
	}

	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}

	if err := write(f); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return pfx.Err(err)
	}

	return nil
}
