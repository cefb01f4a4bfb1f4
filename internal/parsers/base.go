// Package parsers reads bank statement entries and open internal records
// from CSV exports. Parsing is tolerant of real-world export variance:
// column aliases, currency symbols, and mixed date formats are handled, and
// a malformed row is reported without aborting the file.
package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"recon-matching-engine/pkg/errors"
)

// ParseError reports one rejected row.
type ParseError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Message, e.Err)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseStats summarizes one parse pass.
type ParseStats struct {
	RowsRead  int           `json:"rows_read"`
	RowsValid int           `json:"rows_valid"`
	RowErrors []*ParseError `json:"row_errors,omitempty"`
}

func (s *ParseStats) addError(line int, message string, err error) {
	s.RowErrors = append(s.RowErrors, &ParseError{Line: line, Message: message, Err: err})
}

// columnMap resolves logical field names to column indexes through a set of
// accepted header aliases. Header matching is case-insensitive and ignores
// surrounding whitespace.
type columnMap map[string]int

func buildColumnMap(header []string, aliases map[string][]string, required []string) (columnMap, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	cm := make(columnMap, len(aliases))
	for field, names := range aliases {
		for _, name := range names {
			if i, ok := index[name]; ok {
				cm[field] = i
				break
			}
		}
	}

	for _, field := range required {
		if _, ok := cm[field]; !ok {
			return nil, errors.InvalidInput("csv_header", strings.Join(header, ","), nil).
				WithSuggestion(fmt.Sprintf("no column found for required field '%s'", field))
		}
	}
	return cm, nil
}

// get returns the trimmed value of a mapped column, or "" when the field is
// unmapped or the row is short.
func (cm columnMap) get(row []string, field string) string {
	i, ok := cm[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// openCSV opens a file and wraps it in a reader tolerant of ragged rows.
func openCSV(path string) (*os.File, *csv.Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.InvalidInput("file", path, err).
			WithSuggestion("check that the file exists and is readable")
	}
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return file, reader, nil
}

// readHeader reads the first row of a file as the header.
func readHeader(reader *csv.Reader) ([]string, error) {
	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.InvalidInput("csv_header", "", nil).
			WithSuggestion("the file is empty")
	}
	if err != nil {
		return nil, errors.InvalidInput("csv_header", "", err)
	}
	return header, nil
}
