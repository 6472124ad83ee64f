package feeder

import (
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
)

// JSONFeeder reads records from a JSON file containing an array of objects.
type JSONFeeder struct {
	*MemoryFeeder
}

// NewJSONFeeder creates a new JSON feeder from the given file path.
// Comments and trailing commas are allowed. Scalar values are rendered as
// their JSON text; nested values keep their raw JSON.
func NewJSONFeeder(path string) (*JSONFeeder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open JSON file: %w", err)
	}
	data = jsonc.ToJSON(data)
	if !gjson.ValidBytes(data) {
		return nil, errors.New("decode JSON: invalid document")
	}

	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("decode JSON: expected array of objects, got %s", root.Type)
	}

	var (
		records []Record
		loopErr error
	)
	root.ForEach(func(idx, item gjson.Result) bool {
		if !item.IsObject() {
			loopErr = fmt.Errorf("record %d is not an object", idx.Int())
			return false
		}
		record := make(Record)
		item.ForEach(func(key, value gjson.Result) bool {
			record[key.String()] = normalizeJSON(value)
			return true
		})
		if len(record) == 0 {
			loopErr = fmt.Errorf("record %d is empty", idx.Int())
			return false
		}
		records = append(records, record)
		return true
	})
	if loopErr != nil {
		return nil, loopErr
	}

	return &JSONFeeder{MemoryFeeder: NewMemoryFeeder(records)}, nil
}

func normalizeJSON(value gjson.Result) string {
	switch {
	case value.Type == gjson.Null:
		return ""
	case value.IsObject(), value.IsArray():
		return value.Raw
	default:
		return value.String()
	}
}
