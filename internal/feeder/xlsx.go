package feeder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXFeeder reads records from one worksheet of an Excel workbook.
type XLSXFeeder struct {
	*MemoryFeeder
}

// NewXLSXFeeder loads the named sheet, or the first sheet when sheet is empty.
// The first row holds column names; cells are read as their displayed text.
func NewXLSXFeeder(path, sheet string) (*XLSXFeeder, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		sheets := book.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("cannot find worksheet")
		}
		sheet = sheets[0]
	}

	rows, err := book.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read worksheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("worksheet %q is empty", sheet)
	}

	header := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		header[i] = strings.TrimSpace(name)
	}

	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		record := make(Record, len(header))
		for idx, name := range header {
			if name == "" {
				continue
			}
			// Trailing empty cells are omitted by the reader.
			if idx < len(row) {
				record[name] = row[idx]
			} else {
				record[name] = ""
			}
		}
		records = append(records, record)
	}

	return &XLSXFeeder{MemoryFeeder: NewMemoryFeeder(records)}, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
