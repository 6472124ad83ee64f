package feeder

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// YAMLFeeder reads records from a YAML file containing a list of mappings.
type YAMLFeeder struct {
	*MemoryFeeder
}

// NewYAMLFeeder creates a new YAML feeder from the given file path.
func NewYAMLFeeder(path string) (*YAMLFeeder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open YAML file: %w", err)
	}

	var raw []map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode YAML: %w", err)
	}

	records := make([]Record, 0, len(raw))
	for i, item := range raw {
		if len(item) == 0 {
			return nil, fmt.Errorf("record %d is empty", i)
		}
		record := make(Record, len(item))
		for key, value := range item {
			record[key] = normalizeScalar(value)
		}
		records = append(records, record)
	}

	return &YAMLFeeder{MemoryFeeder: NewMemoryFeeder(records)}, nil
}

func normalizeScalar(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format("2006-01-02")
		}
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}
