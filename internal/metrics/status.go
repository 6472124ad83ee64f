package metrics

import "sort"

// StatusCount is the number of responses observed for one status code.
type StatusCount struct {
	Code  int
	Count int
}

// FlattenStatusCodes converts a code->count map into rows sorted by
// descending count, then ascending code.
func FlattenStatusCodes(codes map[int]int) []StatusCount {
	if len(codes) == 0 {
		return nil
	}
	rows := make([]StatusCount, 0, len(codes))
	for code, count := range codes {
		rows = append(rows, StatusCount{Code: code, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Code < rows[j].Code
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}

// ErrorCount is the number of failures of one kind.
type ErrorCount struct {
	Kind  string
	Count int
}

// FlattenErrors converts a kind->count map into rows sorted by descending
// count, then kind.
func FlattenErrors(kinds map[string]int) []ErrorCount {
	if len(kinds) == 0 {
		return nil
	}
	rows := make([]ErrorCount, 0, len(kinds))
	for kind, count := range kinds {
		rows = append(rows, ErrorCount{Kind: kind, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Kind < rows[j].Kind
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
