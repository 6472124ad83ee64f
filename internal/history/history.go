// Package history appends run summaries to a JSON Lines file so results can
// be compared across runs.
package history

import (
	"bufio"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/oklog/ulid/v2"

	"github.com/loadfire/loadfire/internal/metrics"
)

// Entry is one recorded run.
type Entry struct {
	ID           string        `json:"id"`
	Timestamp    time.Time     `json:"timestamp"`
	Target       string        `json:"target"`
	Method       string        `json:"method"`
	RequestCount int           `json:"request_count"`
	Stats        metrics.Stats `json:"stats"`
}

// NewEntry stamps a run with a fresh ULID and the current time.
func NewEntry(target, method string, requests int, stats metrics.Stats) Entry {
	now := time.Now().UTC()
	return Entry{
		ID:           ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Timestamp:    now,
		Target:       target,
		Method:       method,
		RequestCount: requests,
		Stats:        stats,
	}
}

// Append writes e as one line at the end of path, creating the file and its
// directory when missing. Concurrent writers are serialized by a lock file.
func Append(path string, e Entry) error {
	if path == "" {
		return errors.New("history path is empty")
	}
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock history file: %w", err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("write history file: %w", err)
	}
	return f.Close()
}

// Load reads every entry in path in file order. A missing file yields no
// entries.
func Load(path string) ([]Entry, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock history file: %w", err)
	}
	defer lock.Unlock()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for n := 1; scanner.Scan(); n++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("history line %d: %w", n, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}
	return entries, nil
}

// Previous returns the most recent entry recorded for the same target and
// method.
func Previous(entries []Entry, target, method string) (Entry, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Target == target && entries[i].Method == method {
			return entries[i], true
		}
	}
	return Entry{}, false
}
