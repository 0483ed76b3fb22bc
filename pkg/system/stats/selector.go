//go:build linux

package stats

import (
	"log/slog"
	"time"

	"github.com/ja7ad/hoststat/pkg/system/cgroup"
)

// Selector answers each metric from the first source that can supply it.
//
// Sources are ordered by specificity: cgroup v2, then cgroup v1, then
// procfs. The cgroup sources describe this container's allocation while
// procfs describes the whole host, so a more specific answer always wins.
// Selection is per metric and per call: a host may answer memory from
// cgroup v2 but fall through to procfs for CPU.
type Selector struct {
	sources []Source
}

// NewSelector builds the source chain for the detected cgroup layout. The
// procfs source is always present as the final fallback.
func NewSelector(version cgroup.Version, v2Mount string, v1Mounts cgroup.V1MountPoints, procPath string) *Selector {
	var sources []Source
	if version.HasV2() && v2Mount != "" {
		sources = append(sources, NewCgroupV2Source(v2Mount))
	}
	if version.HasV1() && !v1Mounts.Empty() {
		sources = append(sources, NewCgroupV1Source(v1Mounts))
	}
	sources = append(sources, NewProcSource(procPath))
	return &Selector{sources: sources}
}

// NewSelectorFromSources builds a selector over an explicit chain, in the
// given priority order.
func NewSelectorFromSources(sources ...Source) *Selector {
	return &Selector{sources: sources}
}

// Sources exposes the chain in selection order, mostly for logging what
// the agent will draw from.
func (s *Selector) Sources() []Source {
	return s.sources
}

func (s *Selector) NumCPUs() (float64, error) {
	for _, src := range s.sources {
		if !src.AvailableFor(ResourceNumCPUs) {
			continue
		}
		v, err := src.NumCPUs()
		if err != nil {
			slog.Debug("source failed, trying next",
				"source", src.Name(), "resource", ResourceNumCPUs, "err", err)
			continue
		}
		return v, nil
	}
	return 0, ErrNoSource
}

// CPUUsage samples usage over the given window. The provenance tag on the
// result tells the caller whether normalization is still needed.
func (s *Selector) CPUUsage(sample time.Duration) (CPUUsage, error) {
	for _, src := range s.sources {
		if !src.AvailableFor(ResourceCPUUsage) {
			continue
		}
		u, err := src.CPUUsage(sample)
		if err != nil {
			slog.Debug("source failed, trying next",
				"source", src.Name(), "resource", ResourceCPUUsage, "err", err)
			continue
		}
		return u, nil
	}
	return CPUUsage{}, ErrNoSource
}

func (s *Selector) MemoryUsageKB() (uint64, error) {
	for _, src := range s.sources {
		if !src.AvailableFor(ResourceMemoryUsage) {
			continue
		}
		v, err := src.MemoryUsageKB()
		if err != nil {
			slog.Debug("source failed, trying next",
				"source", src.Name(), "resource", ResourceMemoryUsage, "err", err)
			continue
		}
		return v, nil
	}
	return 0, ErrNoSource
}

func (s *Selector) MemoryTotalKB() (uint64, error) {
	for _, src := range s.sources {
		if !src.AvailableFor(ResourceMemoryTotal) {
			continue
		}
		v, err := src.MemoryTotalKB()
		if err != nil {
			slog.Debug("source failed, trying next",
				"source", src.Name(), "resource", ResourceMemoryTotal, "err", err)
			continue
		}
		return v, nil
	}
	return 0, ErrNoSource
}
