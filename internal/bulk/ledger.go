// Package bulk drives directory-scale ingestion against the service API
// with bounded concurrency, per-file retry, and durable progress ledgers.
package bulk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Ledger is a durable filename -> note map, flushed as one JSON file.
// Loading tolerates a missing or corrupt file; losing a ledger only costs
// re-ingesting documents the digest check will skip anyway.
type Ledger struct {
	path string

	mu      sync.Mutex
	entries map[string]string
}

func LoadLedger(path string) *Ledger {
	l := &Ledger{path: path, entries: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		return l
	}
	if err := json.Unmarshal(data, &l.entries); err != nil {
		l.entries = make(map[string]string)
	}
	return l
}

func (l *Ledger) Set(name, note string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[name] = note
}

func (l *Ledger) Delete(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, name)
}

func (l *Ledger) Has(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[name]
	return ok
}

func (l *Ledger) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.entries))
	for name := range l.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Flush writes the ledger atomically via a temp file rename.
func (l *Ledger) Flush() error {
	l.mu.Lock()
	data, err := json.MarshalIndent(l.entries, "", "  ")
	l.mu.Unlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	return os.Rename(tmp, l.path)
}
