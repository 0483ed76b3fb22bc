package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrF64(v float64) *float64 { return &v }
func ptrU64(v uint64) *uint64   { return &v }
func ptrU32(v uint32) *uint32   { return &v }

func entryAt(ms int64) *StatsEntry {
	e := NewStatsEntry(time.UnixMilli(ms))
	e.NumCPUs = ptrF64(4)
	e.CPUUsage = ptrF64(1.5)
	e.MemoryUsageKB = ptrU64(4096000)
	e.MemoryTotalKB = ptrU64(16384000)
	return e
}

func TestStatsEntryJSON(t *testing.T) {
	t.Run("nil_fields_omitted", func(t *testing.T) {
		e := NewStatsEntry(time.UnixMilli(1692620000000))
		e.NumCPUs = ptrF64(2)
		data, err := json.Marshal(e)
		require.NoError(t, err)

		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		assert.Contains(t, m, "time")
		assert.Contains(t, m, "num_cpus")
		assert.NotContains(t, m, "cpu_usage")
		assert.NotContains(t, m, "memory_usage_kb")
		assert.NotContains(t, m, "num_gpus")
	})

	t.Run("time_is_fractional_seconds", func(t *testing.T) {
		e := NewStatsEntry(time.UnixMilli(1692620000500))
		assert.InDelta(t, 1692620000.5, e.Time, 1e-6)
		assert.Equal(t, int64(1692620000500), e.UnixMilli())
	})

	t.Run("gpu_fields_round_trip", func(t *testing.T) {
		e := NewStatsEntry(time.Now())
		e.NumGPUs = ptrU32(2)
		e.GPUUsage = ptrF64(1.25)
		e.GPUMemoryUsageKB = ptrU64(12288000)
		e.GPUMemoryTotalKB = ptrU64(32768000)

		data, err := json.Marshal(e)
		require.NoError(t, err)
		var back StatsEntry
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, uint32(2), *back.NumGPUs)
		assert.InDelta(t, 1.25, *back.GPUUsage, 1e-12)
	})
}

func TestDirStore(t *testing.T) {
	t.Run("writes_named_by_timestamp", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewDirStore(dir, 5)
		require.NoError(t, err)
		defer s.Close()

		require.NoError(t, s.Write(entryAt(1692620000000)))

		data, err := os.ReadFile(filepath.Join(dir, "stats-1692620000000.json"))
		require.NoError(t, err)

		var e StatsEntry
		require.NoError(t, json.Unmarshal(data, &e))
		assert.Equal(t, 4.0, *e.NumCPUs)
	})

	t.Run("evicts_oldest_beyond_limit", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewDirStore(dir, 3)
		require.NoError(t, err)

		for ms := int64(1000); ms <= 5000; ms += 1000 {
			require.NoError(t, s.Write(entryAt(ms)))
		}

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		var names []string
		for _, de := range entries {
			names = append(names, de.Name())
		}
		assert.ElementsMatch(t, []string{
			"stats-3000.json", "stats-4000.json", "stats-5000.json",
		}, names)
	})

	t.Run("ignores_unrelated_files", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("keep"), 0o644))

		s, err := NewDirStore(dir, 1)
		require.NoError(t, err)
		require.NoError(t, s.Write(entryAt(1000)))
		require.NoError(t, s.Write(entryAt(2000)))

		_, err = os.Stat(filepath.Join(dir, "README"))
		assert.NoError(t, err)
		_, err = os.Stat(filepath.Join(dir, "stats-1000.json"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("creates_missing_dir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "stats")
		_, err := NewDirStore(dir, 2)
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("rejects_non_positive_limit", func(t *testing.T) {
		_, err := NewDirStore(t.TempDir(), 0)
		assert.Error(t, err)
	})
}

func TestSQLiteStore(t *testing.T) {
	t.Run("round_trips_entries", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "stats.db")
		s, err := NewSQLiteStore(path, 10)
		require.NoError(t, err)
		defer s.Close()

		require.NoError(t, s.Write(entryAt(1000)))
		require.NoError(t, s.Write(entryAt(2000)))

		entries, err := s.Entries()
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, int64(1000), entries[0].UnixMilli())
		assert.Equal(t, int64(2000), entries[1].UnixMilli())
		assert.Equal(t, uint64(4096000), *entries[0].MemoryUsageKB)
	})

	t.Run("retention_keeps_newest", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "stats.db")
		s, err := NewSQLiteStore(path, 3)
		require.NoError(t, err)
		defer s.Close()

		for ms := int64(1000); ms <= 5000; ms += 1000 {
			require.NoError(t, s.Write(entryAt(ms)))
		}

		entries, err := s.Entries()
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, int64(3000), entries[0].UnixMilli())
		assert.Equal(t, int64(5000), entries[2].UnixMilli())
	})

	t.Run("reopens_existing_db", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "stats.db")
		s, err := NewSQLiteStore(path, 5)
		require.NoError(t, err)
		require.NoError(t, s.Write(entryAt(1000)))
		require.NoError(t, s.Close())

		s2, err := NewSQLiteStore(path, 5)
		require.NoError(t, err)
		defer s2.Close()
		entries, err := s2.Entries()
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("rejects_non_positive_limit", func(t *testing.T) {
		_, err := NewSQLiteStore(filepath.Join(t.TempDir(), "x.db"), 0)
		assert.Error(t, err)
	})
}
