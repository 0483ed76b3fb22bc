package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	statsFilePrefix = "stats-"
	statsFileSuffix = ".json"
)

// DirStore writes each snapshot as stats-<unix-ms>.json in a directory.
// The millisecond timestamp makes lexicographic order equal chronological
// order, which is what eviction sorts by.
type DirStore struct {
	dir        string
	maxEntries int
}

// NewDirStore creates the directory if needed and returns a store keeping
// at most maxEntries files.
func NewDirStore(dir string, maxEntries int) (*DirStore, error) {
	if maxEntries < 1 {
		return nil, fmt.Errorf("store: max entries must be positive, got %d", maxEntries)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create stats dir: %w", err)
	}
	return &DirStore{dir: dir, maxEntries: maxEntries}, nil
}

func (s *DirStore) Write(e *StatsEntry) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal entry: %w", err)
	}

	name := fmt.Sprintf("%s%d%s", statsFilePrefix, e.UnixMilli(), statsFileSuffix)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("store: write entry: %w", err)
	}

	return s.evict()
}

func (s *DirStore) Close() error { return nil }

// evict removes the oldest stats files until at most maxEntries remain.
// Files not matching the stats naming pattern are left alone.
func (s *DirStore) evict() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("store: list stats dir: %w", err)
	}

	var names []string
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if strings.HasPrefix(name, statsFilePrefix) && strings.HasSuffix(name, statsFileSuffix) {
			names = append(names, name)
		}
	}
	if len(names) <= s.maxEntries {
		return nil
	}

	sort.Strings(names)
	for _, name := range names[:len(names)-s.maxEntries] {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			// a concurrent cleanup may have won the race; keep going
			slog.Debug("failed to evict stats file", "file", name, "err", err)
		}
	}
	return nil
}
