//go:build linux

package stats

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// cpuMaxNoLimit is the quota token cgroup v2 writes when no CPU limit is
// set; memory.max uses the same token for unlimited memory.
const cpuMaxNoLimit = "max"

// cgroupV2Source reads the flat control files of the unified hierarchy.
type cgroupV2Source struct {
	cpuMaxPath     string
	cpuStatPath    string
	memCurrentPath string
	memMaxPath     string
}

// NewCgroupV2Source returns a source reading under the given unified-mount
// point (usually /sys/fs/cgroup). File paths are fixed for the process
// lifetime, so they are computed once here.
func NewCgroupV2Source(mountPoint string) Source {
	return &cgroupV2Source{
		cpuMaxPath:     filepath.Join(mountPoint, "cpu.max"),
		cpuStatPath:    filepath.Join(mountPoint, "cpu.stat"),
		memCurrentPath: filepath.Join(mountPoint, "memory.current"),
		memMaxPath:     filepath.Join(mountPoint, "memory.max"),
	}
}

func (s *cgroupV2Source) Name() string { return "cgroup_v2" }

func (s *cgroupV2Source) NumCPUs() (float64, error) {
	line, err := readFirstLine(s.cpuMaxPath)
	if err != nil {
		return 0, err
	}
	return parseCPUMax(line)
}

// parseCPUMax parses a cpu.max line: "<quota> <period>" in microseconds,
// where quota may be the literal "max" for unlimited.
func parseCPUMax(line string) (float64, error) {
	parts := strings.Fields(line)
	if len(parts) != 2 {
		return 0, fmt.Errorf("stats: invalid cpu.max format: %q", line)
	}
	if parts[0] == cpuMaxNoLimit {
		return 0, fmt.Errorf("stats: cpu.max quota is unlimited: %w", ErrNoLimit)
	}

	quota, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("stats: cpu.max quota %q: %w", parts[0], err)
	}
	period, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("stats: cpu.max period %q: %w", parts[1], err)
	}
	if period == 0 {
		return 0, fmt.Errorf("stats: cpu.max period is zero")
	}

	return float64(quota) / float64(period), nil
}

func (s *cgroupV2Source) CPUUsage(sample time.Duration) (CPUUsage, error) {
	start := time.Now()

	initial, err := s.usageUsec()
	if err != nil {
		return CPUUsage{}, err
	}
	time.Sleep(sample)
	current, err := s.usageUsec()
	if err != nil {
		return CPUUsage{}, err
	}

	// wall-clock time between the two readings; the sleep alone is not an
	// accurate measure of the window
	elapsedUsec := float64(time.Since(start).Microseconds())
	if elapsedUsec <= 0 {
		slog.Warn("CPU sampling window was zero or negative, reporting zero usage")
		return CPUUsage{Value: 0, From: FromCgroupV2}, nil
	}

	// usage_usec is cumulative CPU time across all cores, so the ratio is
	// already normalized: one core saturated for the whole window is 1.0
	deltaUsec := float64(deltaU64(current, initial))
	return CPUUsage{Value: deltaUsec / elapsedUsec, From: FromCgroupV2}, nil
}

func (s *cgroupV2Source) usageUsec() (uint64, error) {
	lines, err := readLines(s.cpuStatPath)
	if err != nil {
		return 0, err
	}

	for _, line := range lines {
		if !strings.HasPrefix(line, "usage_usec") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			if v, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
				return v, nil
			}
		}
	}

	return 0, fmt.Errorf("stats: no usage_usec in %s", s.cpuStatPath)
}

func (s *cgroupV2Source) MemoryUsageKB() (uint64, error) {
	bytes, err := readUintFile(s.memCurrentPath)
	if err != nil {
		return 0, err
	}
	return bytes / 1024, nil
}

func (s *cgroupV2Source) MemoryTotalKB() (uint64, error) {
	line, err := readFirstLine(s.memMaxPath)
	if err != nil {
		return 0, err
	}
	if line == cpuMaxNoLimit {
		return 0, fmt.Errorf("stats: memory.max is unlimited: %w", ErrNoLimit)
	}
	bytes, err := strconv.ParseUint(line, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("stats: %s: %w", s.memMaxPath, err)
	}
	return bytes / 1024, nil
}

func (s *cgroupV2Source) AvailableFor(resource ResourceType) bool {
	switch resource {
	case ResourceNumCPUs:
		// "max" quota means unlimited, which is unavailability rather than
		// a value to report
		_, err := s.NumCPUs()
		return err == nil
	case ResourceCPUUsage:
		return isFileReadable(s.cpuStatPath)
	case ResourceMemoryUsage:
		return isFileReadable(s.memCurrentPath)
	case ResourceMemoryTotal:
		_, err := s.MemoryTotalKB()
		return err == nil
	default:
		return false
	}
}
