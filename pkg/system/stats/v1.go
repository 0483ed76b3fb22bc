//go:build linux

package stats

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ja7ad/hoststat/pkg/system/cgroup"
)

// v1MemoryNoLimit is what a 64-bit kernel writes to memory.limit_in_bytes
// and hierarchical_memory_limit when no limit is set (PAGE_COUNTER_MAX
// rounded down to the page size).
const v1MemoryNoLimit = uint64(9223372036854771712)

// cgroupV1Source reads per-controller files under the resolved v1 mount
// points. Any controller may be absent; its metrics then report
// ErrNotMounted and probe as unavailable.
type cgroupV1Source struct {
	// empty path = controller not mounted
	cpuQuotaPath  string
	cpuPeriodPath string
	cpuAcctPath   string
	memUsagePath  string
	memLimitPath  string
	memStatPath   string
}

// NewCgroupV1Source returns a source over the given controller mount
// points. Paths are precomputed once; they cannot change while the process
// lives.
func NewCgroupV1Source(mounts cgroup.V1MountPoints) Source {
	s := &cgroupV1Source{}
	if mounts.CPU != "" {
		s.cpuQuotaPath = filepath.Join(mounts.CPU, "cpu.cfs_quota_us")
		s.cpuPeriodPath = filepath.Join(mounts.CPU, "cpu.cfs_period_us")
	}
	if mounts.CPUAcct != "" {
		s.cpuAcctPath = filepath.Join(mounts.CPUAcct, "cpuacct.usage")
	}
	if mounts.Memory != "" {
		s.memUsagePath = filepath.Join(mounts.Memory, "memory.usage_in_bytes")
		s.memLimitPath = filepath.Join(mounts.Memory, "memory.limit_in_bytes")
		s.memStatPath = filepath.Join(mounts.Memory, "memory.stat")
	}
	return s
}

func (s *cgroupV1Source) Name() string { return "cgroup_v1" }

func (s *cgroupV1Source) NumCPUs() (float64, error) {
	if s.cpuQuotaPath == "" {
		return 0, fmt.Errorf("stats: cpu controller: %w", ErrNotMounted)
	}

	quota, err := readIntFile(s.cpuQuotaPath)
	if err != nil {
		return 0, err
	}
	// v1 signals "unlimited" with -1 (any non-positive value is no limit)
	if quota <= 0 {
		return 0, fmt.Errorf("stats: cfs quota is unlimited: %w", ErrNoLimit)
	}

	period, err := readIntFile(s.cpuPeriodPath)
	if err != nil {
		return 0, err
	}
	if period <= 0 {
		return 0, fmt.Errorf("stats: invalid cfs period %d", period)
	}

	return float64(quota) / float64(period), nil
}

func (s *cgroupV1Source) CPUUsage(sample time.Duration) (CPUUsage, error) {
	if s.cpuAcctPath == "" {
		return CPUUsage{}, fmt.Errorf("stats: cpuacct controller: %w", ErrNotMounted)
	}

	start := time.Now()

	// NB: cpuacct.usage is in nanoseconds, unlike cgroup v2's microseconds
	initial, err := readUintFile(s.cpuAcctPath)
	if err != nil {
		return CPUUsage{}, err
	}
	time.Sleep(sample)
	current, err := readUintFile(s.cpuAcctPath)
	if err != nil {
		return CPUUsage{}, err
	}

	elapsedNs := float64(time.Since(start).Nanoseconds())
	if elapsedNs <= 0 {
		slog.Warn("CPU sampling window was zero or negative, reporting zero usage")
		return CPUUsage{Value: 0, From: FromCgroupV1}, nil
	}

	deltaNs := float64(deltaU64(current, initial))
	return CPUUsage{Value: deltaNs / elapsedNs, From: FromCgroupV1}, nil
}

func (s *cgroupV1Source) MemoryUsageKB() (uint64, error) {
	if s.memUsagePath == "" {
		return 0, fmt.Errorf("stats: memory controller: %w", ErrNotMounted)
	}
	bytes, err := readUintFile(s.memUsagePath)
	if err != nil {
		return 0, err
	}
	return bytes / 1024, nil
}

// MemoryTotalKB resolves the memory ceiling in two tiers. memory.stat's
// hierarchical_memory_limit is preferred because it also reflects limits
// inherited from parent cgroups; memory.limit_in_bytes is the fallback.
// When both report the no-limit value the metric fails outright instead of
// passing the sentinel off as a real number.
func (s *cgroupV1Source) MemoryTotalKB() (uint64, error) {
	if s.memLimitPath == "" {
		return 0, fmt.Errorf("stats: memory controller: %w", ErrNotMounted)
	}

	if limit, err := s.hierarchicalMemoryLimit(); err == nil && limit != v1MemoryNoLimit {
		return limit / 1024, nil
	}

	limit, err := readUintFile(s.memLimitPath)
	if err != nil {
		return 0, err
	}
	if limit >= v1MemoryNoLimit {
		return 0, fmt.Errorf("stats: memory limit is unlimited: %w", ErrNoLimit)
	}
	return limit / 1024, nil
}

func (s *cgroupV1Source) hierarchicalMemoryLimit() (uint64, error) {
	lines, err := readLines(s.memStatPath)
	if err != nil {
		return 0, err
	}

	for _, line := range lines {
		if !strings.HasPrefix(line, "hierarchical_memory_limit") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			if v, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
				return v, nil
			}
		}
	}

	return 0, fmt.Errorf("stats: no hierarchical_memory_limit in %s", s.memStatPath)
}

func (s *cgroupV1Source) AvailableFor(resource ResourceType) bool {
	switch resource {
	case ResourceNumCPUs:
		_, err := s.NumCPUs()
		return err == nil
	case ResourceCPUUsage:
		return s.cpuAcctPath != "" && isFileReadable(s.cpuAcctPath)
	case ResourceMemoryUsage:
		return s.memUsagePath != "" && isFileReadable(s.memUsagePath)
	case ResourceMemoryTotal:
		// available when either tier yields a real limit
		_, err := s.MemoryTotalKB()
		return err == nil
	default:
		return false
	}
}
