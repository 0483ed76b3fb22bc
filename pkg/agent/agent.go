//go:build linux

// Package agent runs the periodic measure-and-persist loop.
package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/ja7ad/hoststat/pkg/config"
	"github.com/ja7ad/hoststat/pkg/store"
	"github.com/ja7ad/hoststat/pkg/system/cgroup"
	"github.com/ja7ad/hoststat/pkg/system/stats"
	"github.com/ja7ad/hoststat/pkg/types"
)

const (
	selfCgroupPath = "/proc/self/cgroup"
	mountsPath     = "/proc/mounts"
	procPath       = "/proc"
)

// Agent takes one resource snapshot per interval and persists it. Metrics
// that cannot be measured are left out of the snapshot, never zero-filled:
// the agent degrades field by field instead of failing outright.
type Agent struct {
	cfg      config.Config
	selector *stats.Selector
	gpu      stats.GPUQuerier
	store    store.Store
	now      func() time.Time
}

// New inspects the host's cgroup layout and builds an agent around the
// backends it actually has.
func New(cfg config.Config, st store.Store) (*Agent, error) {
	version, err := cgroup.DetectVersionAt(selfCgroupPath, mountsPath)
	if err != nil {
		return nil, err
	}

	var v2Mount string
	if version.HasV2() {
		v2Mount, err = cgroup.ResolveV2MountPoint(mountsPath)
		if err != nil {
			slog.Warn("cgroup v2 detected but mount point not resolved", "err", err)
		}
	}
	var v1Mounts cgroup.V1MountPoints
	if version.HasV1() {
		v1Mounts, err = cgroup.ResolveV1MountPoints(mountsPath)
		if err != nil {
			slog.Warn("cgroup v1 detected but mount points not resolved", "err", err)
		}
	}

	selector := stats.NewSelector(version, v2Mount, v1Mounts, procPath)
	a := newWith(cfg, selector, stats.NvidiaSMI{}, st)

	names := make([]string, 0, len(selector.Sources()))
	for _, src := range selector.Sources() {
		names = append(names, src.Name())
	}
	slog.Info("detected system stats backends", "cgroup", version.String(), "sources", names)

	return a, nil
}

// newWith is the seam the tests use to inject fake backends.
func newWith(cfg config.Config, sel *stats.Selector, gpu stats.GPUQuerier, st store.Store) *Agent {
	return &Agent{cfg: cfg, selector: sel, gpu: gpu, store: st, now: time.Now}
}

// Collect takes one snapshot. It blocks for roughly the CPU sampling
// window. Collect never fails as a whole; the worst case is an entry
// carrying only a timestamp.
func (a *Agent) Collect() *store.StatsEntry {
	entry := store.NewStatsEntry(a.now())

	// core count first: the CPU usage reading may need it for scaling
	numCPUs, cpuErr := a.selector.NumCPUs()
	if cpuErr == nil {
		entry.NumCPUs = &numCPUs
	} else {
		slog.Debug("cpu count unavailable", "err", cpuErr)
	}

	if usage, err := a.selector.CPUUsage(a.cfg.CPUSampleRate); err != nil {
		slog.Debug("cpu usage unavailable", "err", err)
	} else if usage.From == stats.FromProc && cpuErr != nil {
		// a host-wide fraction cannot be put on the per-core scale
		// without the core count, so no number beats a wrong number
		slog.Debug("cpu usage dropped: proc reading with unknown core count")
	} else {
		v := usage.Normalized(numCPUs)
		entry.CPUUsage = &v
	}

	if used, err := a.selector.MemoryUsageKB(); err != nil {
		slog.Debug("memory usage unavailable", "err", err)
	} else {
		entry.MemoryUsageKB = &used
	}
	if total, err := a.selector.MemoryTotalKB(); err != nil {
		slog.Debug("memory total unavailable", "err", err)
	} else {
		entry.MemoryTotalKB = &total
	}

	if gpu, err := stats.ReadGPUStats(a.gpu); err != nil {
		// most hosts simply have no nvidia-smi
		slog.Debug("gpu stats unavailable", "err", err)
	} else {
		entry.NumGPUs = &gpu.NumGPUs
		entry.GPUUsage = &gpu.Usage
		entry.GPUMemoryUsageKB = &gpu.MemoryUsageKB
		entry.GPUMemoryTotalKB = &gpu.MemoryTotalKB
	}

	return entry
}

// Run collects and persists one snapshot per interval until the context
// is cancelled. A failed write is logged and the loop keeps going.
func (a *Agent) Run(ctx context.Context) error {
	slog.Info("agent started",
		"id", a.cfg.ID, "interval", a.cfg.StatInterval, "cpu_sample", a.cfg.CPUSampleRate)

	ticker := time.NewTicker(a.cfg.StatInterval)
	defer ticker.Stop()

	for {
		entry := a.Collect()
		if err := a.store.Write(entry); err != nil {
			slog.Error("failed to persist stats entry", "err", err)
		}
		logEntry(entry)

		select {
		case <-ctx.Done():
			slog.Info("agent stopping", "reason", context.Cause(ctx))
			return nil
		case <-ticker.C:
		}
	}
}

// logEntry writes the one-line interval summary.
func logEntry(e *store.StatsEntry) {
	attrs := make([]any, 0, 12)
	if e.NumCPUs != nil {
		attrs = append(attrs, "num_cpus", *e.NumCPUs)
	}
	if e.CPUUsage != nil {
		attrs = append(attrs, "cpu_usage", *e.CPUUsage)
	}
	if e.MemoryUsageKB != nil {
		attrs = append(attrs, "mem_used", kbHumanized(*e.MemoryUsageKB))
	}
	if e.MemoryTotalKB != nil {
		attrs = append(attrs, "mem_total", kbHumanized(*e.MemoryTotalKB))
	}
	if e.NumGPUs != nil {
		attrs = append(attrs, "num_gpus", *e.NumGPUs)
	}
	if e.GPUUsage != nil {
		attrs = append(attrs, "gpu_usage", *e.GPUUsage)
	}
	if e.GPUMemoryUsageKB != nil {
		attrs = append(attrs, "gpu_mem_used", kbHumanized(*e.GPUMemoryUsageKB))
	}
	slog.Info("stats collected", attrs...)
}

func kbHumanized(kb uint64) string {
	return types.KBytes(kb).Humanized()
}
