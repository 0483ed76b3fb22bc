//go:build linux

package stats

import (
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// GPUQuerier produces the raw per-GPU stats text, one GPU per line. The
// only production implementation shells out to nvidia-smi; tests supply
// canned output.
type GPUQuerier interface {
	QueryGPUStats() (string, error)
}

// NvidiaSMI queries GPU stats through the nvidia-smi binary.
type NvidiaSMI struct{}

// QueryGPUStats runs nvidia-smi in CSV mode without headers or units, so
// every output line is exactly "index, util%, memUsedMiB, memTotalMiB".
func (NvidiaSMI) QueryGPUStats() (string, error) {
	out, err := exec.Command("nvidia-smi",
		"--query-gpu=index,utilization.gpu,memory.used,memory.total",
		"--format=csv,noheader,nounits").Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ReadGPUStats aggregates the querier's per-GPU lines into host totals.
//
// The aggregate is deliberately forgiving: a malformed line is skipped, a
// malformed field contributes zero. GPU stats are best-effort and a single
// flaky device should not block the CPU and memory readings. An error is
// returned only when the querier itself fails (nvidia-smi absent, driver
// not loaded), which callers treat as "no GPUs".
func ReadGPUStats(q GPUQuerier) (GpuStats, error) {
	raw, err := q.QueryGPUStats()
	if err != nil {
		return GpuStats{}, err
	}

	var stats GpuStats
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) < 4 {
			slog.Debug("skipping malformed nvidia-smi line", "line", line)
			continue
		}

		stats.NumGPUs++

		// fields[0] is the GPU index, unused in the aggregate
		if util, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64); err == nil {
			// utilization.gpu is a percentage; the aggregate sums fractions,
			// so two half-busy GPUs read 1.0
			stats.Usage += util / 100.0
		}
		if usedMiB, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 64); err == nil {
			stats.MemoryUsageKB += usedMiB * 1024
		}
		if totalMiB, err := strconv.ParseUint(strings.TrimSpace(fields[3]), 10, 64); err == nil {
			stats.MemoryTotalKB += totalMiB * 1024
		}
	}

	return stats, nil
}
