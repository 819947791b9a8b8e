package io

import (
	goio "io"
	"path/filepath"
	"strings"

	"github.com/csimplestring/go-csv/detector"
)

// DetermineDelimiter returns the single most likely rune that would delimit the
// values in the reader, assuming a CSV-like file. Only common table delimiters
// are accepted; otherwise the file extension decides.
func DetermineDelimiter(r goio.Reader, path string) rune {
	d := detector.New()
	delimiters := d.DetectDelimiter(r, '"')

	for _, delim := range delimiters {
		if len(delim) == 0 {
			continue
		}
		switch c := rune(delim[0]); c {
		case '\t', ',', ';', '|':
			return c
		}
	}

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ','
	}

	return '\t'
}
