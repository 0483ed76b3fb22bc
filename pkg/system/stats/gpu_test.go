//go:build linux

package stats

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGPUQuerier struct {
	out string
	err error
}

func (f fakeGPUQuerier) QueryGPUStats() (string, error) { return f.out, f.err }

func TestReadGPUStats(t *testing.T) {
	t.Run("aggregates_two_gpus", func(t *testing.T) {
		q := fakeGPUQuerier{out: "0, 75, 4000, 16000\n1, 50, 8000, 16000\n"}
		stats, err := ReadGPUStats(q)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), stats.NumGPUs)
		assert.InDelta(t, 1.25, stats.Usage, 1e-12)
		assert.Equal(t, uint64(12288000), stats.MemoryUsageKB)
		assert.Equal(t, uint64(32768000), stats.MemoryTotalKB)
	})

	t.Run("empty_output_is_zero_gpus", func(t *testing.T) {
		stats, err := ReadGPUStats(fakeGPUQuerier{out: ""})
		require.NoError(t, err)
		assert.Equal(t, GpuStats{}, stats)
	})

	t.Run("blank_lines_ignored", func(t *testing.T) {
		q := fakeGPUQuerier{out: "\n0, 10, 100, 200\n\n"}
		stats, err := ReadGPUStats(q)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), stats.NumGPUs)
	})

	t.Run("short_line_skipped_entirely", func(t *testing.T) {
		q := fakeGPUQuerier{out: "0, 10, 100, 200\n1, 20\n"}
		stats, err := ReadGPUStats(q)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), stats.NumGPUs)
		assert.InDelta(t, 0.10, stats.Usage, 1e-12)
	})

	t.Run("bad_field_contributes_zero_but_counts", func(t *testing.T) {
		q := fakeGPUQuerier{out: "0, [N/A], 100, 200\n"}
		stats, err := ReadGPUStats(q)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), stats.NumGPUs)
		assert.Equal(t, 0.0, stats.Usage)
		assert.Equal(t, uint64(102400), stats.MemoryUsageKB)
		assert.Equal(t, uint64(204800), stats.MemoryTotalKB)
	})

	t.Run("querier_error_propagates", func(t *testing.T) {
		wantErr := errors.New("nvidia-smi: not found")
		_, err := ReadGPUStats(fakeGPUQuerier{err: wantErr})
		assert.ErrorIs(t, err, wantErr)
	})
}
