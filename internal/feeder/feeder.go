// Package feeder supplies data rows that parameterize successive requests.
//
// Every reader normalizes its source values (numbers, booleans, dates,
// spreadsheet cells) to strings at load time, so consumers only ever see a
// column name to string mapping.
package feeder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Record represents a single row of data with named fields.
type Record map[string]string

// Feeder provides per-request data from a dataset in sequence order.
// Implementations must be safe for concurrent use.
type Feeder interface {
	// Next returns the next record, or ErrExhausted once the sequence ends.
	Next(ctx context.Context) (Record, error)

	// Reset rewinds the sequence to its first record.
	Reset()

	// Close releases any resources held by the feeder.
	Close() error

	// Len returns the total number of records in the dataset.
	Len() int
}

// ErrExhausted is returned when a feeder has no more records.
var ErrExhausted = errors.New("feeder exhausted: no more records available")

// Supported data source types.
const (
	TypeCSV  = "csv"
	TypeJSON = "json"
	TypeYAML = "yaml"
	TypeXLSX = "xlsx"
)

// DetectType infers the data source type from the file extension.
func DetectType(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv":
		return TypeCSV, nil
	case ".json":
		return TypeJSON, nil
	case ".yaml", ".yml":
		return TypeYAML, nil
	case ".xlsx", ".xlsm":
		return TypeXLSX, nil
	case ".xls":
		return "", errors.New("legacy .xls workbooks are not supported; save the file as .xlsx")
	default:
		return "", fmt.Errorf("unsupported file format %q", ext)
	}
}

// Open loads the data file at path. An empty typ is inferred from the extension;
// sheet selects the worksheet for spreadsheets and is ignored otherwise.
func Open(path, typ, sheet string) (Feeder, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("data file path is required")
	}
	typ = strings.ToLower(strings.TrimSpace(typ))
	if typ == "" {
		detected, err := DetectType(path)
		if err != nil {
			return nil, err
		}
		typ = detected
	}
	switch typ {
	case TypeCSV:
		return NewCSVFeeder(path)
	case TypeJSON:
		return NewJSONFeeder(path)
	case TypeYAML, "yml":
		return NewYAMLFeeder(path)
	case TypeXLSX:
		return NewXLSXFeeder(path, sheet)
	default:
		return nil, fmt.Errorf("unsupported data type %q", typ)
	}
}
