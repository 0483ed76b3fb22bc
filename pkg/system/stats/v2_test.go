//go:build linux

package stats

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCPUMax(t *testing.T) {
	t.Run("two_cores", func(t *testing.T) {
		v, err := parseCPUMax("200000 100000")
		require.NoError(t, err)
		assert.InDelta(t, 2.0, v, 1e-12)
	})
	t.Run("half_core", func(t *testing.T) {
		v, err := parseCPUMax("50000 100000")
		require.NoError(t, err)
		assert.InDelta(t, 0.5, v, 1e-12)
	})
	t.Run("unlimited_quota", func(t *testing.T) {
		_, err := parseCPUMax("max 100000")
		assert.ErrorIs(t, err, ErrNoLimit)
	})
	t.Run("zero_period", func(t *testing.T) {
		_, err := parseCPUMax("100000 0")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoLimit)
	})
	t.Run("wrong_field_count", func(t *testing.T) {
		_, err := parseCPUMax("100000")
		assert.Error(t, err)
	})
	t.Run("garbage_quota", func(t *testing.T) {
		_, err := parseCPUMax("banana 100000")
		assert.Error(t, err)
	})
}

func TestCgroupV2NumCPUs(t *testing.T) {
	dir := t.TempDir()
	src := NewCgroupV2Source(dir)

	t.Run("reads_quota_over_period", func(t *testing.T) {
		writeFixture(t, dir, "cpu.max", "150000 100000\n")
		v, err := src.NumCPUs()
		require.NoError(t, err)
		assert.InDelta(t, 1.5, v, 1e-12)
	})
	t.Run("max_is_no_limit", func(t *testing.T) {
		writeFixture(t, dir, "cpu.max", "max 100000\n")
		_, err := src.NumCPUs()
		assert.ErrorIs(t, err, ErrNoLimit)
	})
}

func TestCgroupV2Memory(t *testing.T) {
	dir := t.TempDir()
	src := NewCgroupV2Source(dir)

	t.Run("usage_bytes_to_kb", func(t *testing.T) {
		writeFixture(t, dir, "memory.current", "1073741824\n")
		v, err := src.MemoryUsageKB()
		require.NoError(t, err)
		assert.Equal(t, uint64(1048576), v)
	})
	t.Run("total_bytes_to_kb", func(t *testing.T) {
		writeFixture(t, dir, "memory.max", "2147483648\n")
		v, err := src.MemoryTotalKB()
		require.NoError(t, err)
		assert.Equal(t, uint64(2097152), v)
	})
	t.Run("total_max_is_no_limit", func(t *testing.T) {
		writeFixture(t, dir, "memory.max", "max\n")
		_, err := src.MemoryTotalKB()
		assert.ErrorIs(t, err, ErrNoLimit)
	})
	t.Run("missing_file_errors", func(t *testing.T) {
		empty := t.TempDir()
		_, err := NewCgroupV2Source(empty).MemoryUsageKB()
		assert.Error(t, err)
	})
}

func TestCgroupV2CPUUsage(t *testing.T) {
	dir := t.TempDir()
	src := NewCgroupV2Source(dir)

	t.Run("static_counter_reads_zero", func(t *testing.T) {
		writeFixture(t, dir, "cpu.stat", "usage_usec 420000\nuser_usec 400000\nsystem_usec 20000\n")
		u, err := src.CPUUsage(time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, FromCgroupV2, u.From)
		assert.Equal(t, 0.0, u.Value)
	})
	t.Run("missing_usage_usec_errors", func(t *testing.T) {
		writeFixture(t, dir, "cpu.stat", "user_usec 400000\n")
		_, err := src.CPUUsage(time.Millisecond)
		assert.Error(t, err)
	})
}

func TestCgroupV2AvailableFor(t *testing.T) {
	dir := t.TempDir()
	src := NewCgroupV2Source(dir)

	t.Run("nothing_on_empty_dir", func(t *testing.T) {
		assert.False(t, src.AvailableFor(ResourceNumCPUs))
		assert.False(t, src.AvailableFor(ResourceCPUUsage))
		assert.False(t, src.AvailableFor(ResourceMemoryUsage))
		assert.False(t, src.AvailableFor(ResourceMemoryTotal))
	})
	t.Run("num_cpus_tracks_limit", func(t *testing.T) {
		writeFixture(t, dir, "cpu.max", "max 100000\n")
		assert.False(t, src.AvailableFor(ResourceNumCPUs))
		writeFixture(t, dir, "cpu.max", "100000 100000\n")
		assert.True(t, src.AvailableFor(ResourceNumCPUs))
	})
	t.Run("memory_total_tracks_limit", func(t *testing.T) {
		writeFixture(t, dir, "memory.max", "max\n")
		assert.False(t, src.AvailableFor(ResourceMemoryTotal))
		writeFixture(t, dir, "memory.max", "1048576\n")
		assert.True(t, src.AvailableFor(ResourceMemoryTotal))
	})
	t.Run("usage_tracks_file_presence", func(t *testing.T) {
		writeFixture(t, dir, "cpu.stat", "usage_usec 1\n")
		writeFixture(t, dir, "memory.current", "1024\n")
		assert.True(t, src.AvailableFor(ResourceCPUUsage))
		assert.True(t, src.AvailableFor(ResourceMemoryUsage))
	})
}

func TestCgroupV2Name(t *testing.T) {
	assert.Equal(t, "cgroup_v2", NewCgroupV2Source(t.TempDir()).Name())
}

func TestErrNoLimitWrapping(t *testing.T) {
	// callers match with errors.Is, so the sentinel must survive wrapping
	_, err := parseCPUMax("max 100000")
	assert.True(t, errors.Is(err, ErrNoLimit))
}
