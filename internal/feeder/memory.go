package feeder

import (
	"context"
	"sync"
)

// MemoryFeeder serves a fixed slice of records in order. The file readers
// load their rows eagerly and delegate to it.
type MemoryFeeder struct {
	records []Record
	index   int
	mu      sync.Mutex
}

// NewMemoryFeeder creates a feeder over a copy of records.
func NewMemoryFeeder(records []Record) *MemoryFeeder {
	copied := make([]Record, len(records))
	for i, rec := range records {
		copied[i] = cloneRecord(rec)
	}
	return &MemoryFeeder{records: copied}
}

// Next returns the next record in sequence order.
// Returns ErrExhausted when all records have been consumed.
func (f *MemoryFeeder) Next(ctx context.Context) (Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.index >= len(f.records) {
		return nil, ErrExhausted
	}

	record := f.records[f.index]
	f.index++
	// Callers get their own copy so the stored row stays immutable.
	return cloneRecord(record), nil
}

// Reset rewinds to the first record.
func (f *MemoryFeeder) Reset() {
	f.mu.Lock()
	f.index = 0
	f.mu.Unlock()
}

// Close is a no-op; records live in memory.
func (f *MemoryFeeder) Close() error {
	return nil
}

// Len returns the total number of records in the dataset.
func (f *MemoryFeeder) Len() int {
	return len(f.records)
}

func cloneRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
