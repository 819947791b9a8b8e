package io

import (
	"encoding/csv"
	goio "io"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

// Float is a float64 that marshals to a table cell with NaN written as n/a
type Float float64

// MarshalCSV implements gocsv.TypeMarshaller
func (f Float) MarshalCSV() (string, error) {
	return FormatFloat(float64(f)), nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller
func (f *Float) UnmarshalCSV(s string) error {
	v, err := ParseFloat(s)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// WriteRecordsTSV writes a slice of csv-tagged structs as a tab separated table
func WriteRecordsTSV(w goio.Writer, records interface{}) error {
	tw := csv.NewWriter(w)
	tw.Comma = '\t'

	if err := gocsv.MarshalCSV(records, gocsv.NewSafeCSVWriter(tw)); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// WriteRecordsFile writes csv-tagged structs to path, creating parent directories
func WriteRecordsFile(path string, records interface{}) error {
	return writeFile(path, func(w goio.Writer) error {
		return WriteRecordsTSV(w, records)
	})
}
