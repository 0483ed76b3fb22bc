//go:build linux

package stats

import "time"

// ResourceType parameterizes availability probes and source selection.
type ResourceType int

const (
	ResourceNumCPUs ResourceType = iota
	ResourceCPUUsage
	ResourceMemoryUsage
	ResourceMemoryTotal
)

func (r ResourceType) String() string {
	switch r {
	case ResourceNumCPUs:
		return "num_cpus"
	case ResourceCPUUsage:
		return "cpu_usage"
	case ResourceMemoryUsage:
		return "memory_usage_kb"
	case ResourceMemoryTotal:
		return "memory_total_kb"
	default:
		return "unknown"
	}
}

// CPUProvenance records which kind of source produced a CPU usage reading.
// The tag is load-bearing: it tells the caller whether the value still needs
// to be scaled by the core count.
type CPUProvenance int

const (
	FromCgroupV2 CPUProvenance = iota
	FromCgroupV1
	FromProc
)

func (p CPUProvenance) String() string {
	switch p {
	case FromCgroupV2:
		return "cgroup_v2"
	case FromCgroupV1:
		return "cgroup_v1"
	case FromProc:
		return "proc"
	default:
		return "unknown"
	}
}

// CPUUsage is a raw CPU usage measurement plus its provenance.
//
// Cgroup values are already normalized (1.0 = one full core saturated, can
// exceed 1.0 on multi-core). Proc values are a fraction of all cores in
// [0, 1] and must still be multiplied by the core count to be comparable.
type CPUUsage struct {
	Value float64
	From  CPUProvenance
}

// Normalized returns the usage in units of fully busy cores. Cgroup readings
// pass through untouched; only proc readings are scaled.
func (u CPUUsage) Normalized(numCPUs float64) float64 {
	if u.From == FromProc {
		return u.Value * numCPUs
	}
	return u.Value
}

// GpuStats is the aggregate over all GPUs on the host. Per-GPU detail is
// discarded after aggregation.
type GpuStats struct {
	NumGPUs       uint32  // N = number of GPUs
	Usage         float64 // normalized usage across all GPUs (0.0 - N.0)
	MemoryUsageKB uint64  // sum of used memory across all GPUs
	MemoryTotalKB uint64  // sum of total memory across all GPUs
}

// Source is a uniform accessor over one system-stats backend (cgroup v2,
// cgroup v1 or procfs). Implementations hold only precomputed file paths;
// construction never touches the filesystem.
type Source interface {
	// NumCPUs returns the number of cores available to this process.
	// Cgroup sources may return fractions (e.g. 0.5 for quota 50000/100000).
	NumCPUs() (float64, error)

	// CPUUsage measures CPU usage over the given sampling window by reading
	// a cumulative counter twice. It blocks for roughly the window duration.
	CPUUsage(sample time.Duration) (CPUUsage, error)

	// MemoryUsageKB returns the currently used memory in kilobytes.
	MemoryUsageKB() (uint64, error)

	// MemoryTotalKB returns the memory ceiling in kilobytes. Sources report
	// an error rather than a bogus number when no limit is configured.
	MemoryTotalKB() (uint64, error)

	// AvailableFor probes whether this source can currently supply the
	// given resource, without performing a timed measurement.
	AvailableFor(resource ResourceType) bool

	// Name identifies the source in logs.
	Name() string
}
