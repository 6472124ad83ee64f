package feeder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// CSVFeeder serves the rows of a CSV file. The first line names the columns.
type CSVFeeder struct {
	*MemoryFeeder
}

// NewCSVFeeder loads every data row of the file at path. Each row must have
// as many fields as the header, and column names must be unique.
func NewCSVFeeder(path string) (*CSVFeeder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	columns, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("CSV file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	if err := normalizeColumns(columns); err != nil {
		return nil, err
	}

	var records []Record
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV: %w", err)
		}
		rec := make(Record, len(columns))
		for i, name := range columns {
			rec[name] = row[i]
		}
		records = append(records, rec)
	}
	return &CSVFeeder{MemoryFeeder: NewMemoryFeeder(records)}, nil
}

// normalizeColumns trims header names in place and rejects blanks and duplicates.
func normalizeColumns(columns []string) error {
	seen := make(map[string]struct{}, len(columns))
	for i := range columns {
		name := strings.TrimSpace(columns[i])
		if name == "" {
			return fmt.Errorf("CSV column %d has no name", i+1)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("CSV column %q appears more than once", name)
		}
		seen[name] = struct{}{}
		columns[i] = name
	}
	return nil
}
