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

// procSource reads host-wide stats from the /proc pseudo-filesystem. It is
// the universal fallback: it needs no cgroup configuration at all, but its
// numbers describe the whole host rather than this container.
type procSource struct {
	statPath    string
	meminfoPath string
}

// NewProcSource returns a source reading under the given procfs root
// (usually /proc).
func NewProcSource(procPath string) Source {
	return &procSource{
		statPath:    filepath.Join(procPath, "stat"),
		meminfoPath: filepath.Join(procPath, "meminfo"),
	}
}

func (s *procSource) Name() string { return "proc" }

// NumCPUs counts the per-core "cpuN" lines of /proc/stat, excluding the
// aggregate "cpu " line. Always a whole number, unlike the cgroup sources.
func (s *procSource) NumCPUs() (float64, error) {
	lines, err := readLines(s.statPath)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, line := range lines {
		if isPerCoreCPULine(line) {
			count++
		}
	}
	if count == 0 {
		// a count of zero is unusable downstream (it would scale host-wide
		// usage readings to nothing), so it is unavailability, not a value
		return 0, fmt.Errorf("%w: no per-core cpu lines in %s", ErrNoStatData, s.statPath)
	}
	return float64(count), nil
}

func isPerCoreCPULine(line string) bool {
	// "cpu" immediately followed by a digit; skips the aggregate line and
	// anything else that merely begins with cpu
	if !strings.HasPrefix(line, "cpu") || len(line) < 4 {
		return false
	}
	return line[3] >= '0' && line[3] <= '9'
}

// CPUUsage measures host-wide CPU usage over the sampling window.
//
// The returned value is a fraction of all cores in [0, 1], tagged FromProc:
// the caller must multiply by the core count to make it comparable with the
// cgroup sources. Jiffy duration is kernel-dependent, so only the ratio of
// deltas is meaningful, never absolute jiffy counts.
func (s *procSource) CPUUsage(sample time.Duration) (CPUUsage, error) {
	initial, err := s.totalCPUJiffies()
	if err != nil {
		return CPUUsage{}, err
	}
	time.Sleep(sample)
	current, err := s.totalCPUJiffies()
	if err != nil {
		return CPUUsage{}, err
	}

	return CPUUsage{Value: calculateCPUUsage(initial, current), From: FromProc}, nil
}

// totalCPUJiffies returns all counters of the aggregate "cpu" line.
func (s *procSource) totalCPUJiffies() ([]uint64, error) {
	lines, err := readLines(s.statPath)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrNoStatData
	}

	// the first line is the all-CPU aggregate
	fields := strings.Fields(lines[0])
	if len(fields) == 0 || fields[0] != "cpu" {
		return nil, ErrNoStatData
	}

	jiffies := make([]uint64, 0, len(fields)-1)
	for _, f := range fields[1:] {
		if v, err := strconv.ParseUint(f, 10, 64); err == nil {
			jiffies = append(jiffies, v)
		}
	}
	return jiffies, nil
}

// calculateCPUUsage derives a usage fraction from two aggregate-line
// readings: 1 - vacant/total, where vacant is idle + iowait.
func calculateCPUUsage(initial, current []uint64) float64 {
	// field order per man 5 proc_stat: user nice system idle iowait ...
	const (
		idleIdx        = 3
		iowaitIdx      = 4
		minRequiredLen = iowaitIdx + 1
	)

	if len(initial) < minRequiredLen || len(current) < minRequiredLen {
		slog.Debug("CPU reading incomplete",
			"initial_fields", len(initial), "current_fields", len(current))
		return 0
	}
	if len(initial) != len(current) {
		slog.Debug("CPU readings have different lengths",
			"initial_fields", len(initial), "current_fields", len(current))
		return 0
	}

	var initialTotal, currentTotal uint64
	for _, v := range initial {
		initialTotal += v
	}
	for _, v := range current {
		currentTotal += v
	}

	totalDelta := deltaU64(currentTotal, initialTotal)
	if totalDelta == 0 {
		// improbable, but possible with a very short window
		slog.Warn("CPU total time delta is zero - measurement interval may be too short?")
		return 0
	}

	vacantDelta := deltaU64(current[idleIdx]+current[iowaitIdx], initial[idleIdx]+initial[iowaitIdx])
	return 1.0 - float64(vacantDelta)/float64(totalDelta)
}

func (s *procSource) MemoryUsageKB() (uint64, error) {
	usage, _, err := s.meminfoKB()
	return usage, err
}

func (s *procSource) MemoryTotalKB() (uint64, error) {
	_, total, err := s.meminfoKB()
	return total, err
}

// meminfoKB parses MemTotal and MemAvailable from /proc/meminfo. Usage is
// total minus available, floored at zero: MemAvailable is an estimate and
// can transiently exceed MemTotal.
func (s *procSource) meminfoKB() (usageKB, totalKB uint64, err error) {
	lines, err := readLines(s.meminfoPath)
	if err != nil {
		return 0, 0, err
	}

	var availableKB uint64
	for _, line := range lines {
		if strings.HasPrefix(line, "MemTotal:") {
			totalKB = parseMeminfoValue(line)
		} else if strings.HasPrefix(line, "MemAvailable:") {
			availableKB = parseMeminfoValue(line)
		}
		if totalKB > 0 && availableKB > 0 {
			break
		}
	}

	if totalKB == 0 {
		return 0, 0, fmt.Errorf("%w: %s", ErrNoMemInfo, s.meminfoPath)
	}
	if availableKB > totalKB {
		availableKB = totalKB
	}
	return totalKB - availableKB, totalKB, nil
}

// parseMeminfoValue extracts the numeric field of a "Key:   value kB" line.
func parseMeminfoValue(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func (s *procSource) AvailableFor(resource ResourceType) bool {
	switch resource {
	case ResourceNumCPUs, ResourceCPUUsage:
		return isFileReadable(s.statPath)
	case ResourceMemoryUsage, ResourceMemoryTotal:
		return isFileReadable(s.meminfoPath)
	default:
		return false
	}
}
