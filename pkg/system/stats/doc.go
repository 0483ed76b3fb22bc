// Package stats measures host CPU, memory and GPU usage from whichever
// backend the machine actually provides.
//
// Three Source implementations exist:
//
//   - cgroup v2: the unified hierarchy. cpu.max gives the core allocation
//     (quota/period), cpu.stat's usage_usec gives cumulative CPU time in
//     microseconds, memory.current and memory.max give usage and limit.
//     The literal "max" means no limit is configured.
//
//   - cgroup v1: one mount per controller. cpu.cfs_quota_us and
//     cpu.cfs_period_us give the allocation, cpuacct.usage gives cumulative
//     CPU time in NANOSECONDS, memory.usage_in_bytes gives usage. The
//     memory ceiling prefers memory.stat's hierarchical_memory_limit and
//     falls back to memory.limit_in_bytes; the 64-bit no-limit value
//     9223372036854771712 means no limit is configured.
//
//   - procfs: /proc/stat and /proc/meminfo. Always present, but describes
//     the whole host rather than this container's allocation.
//
// Selector chains the sources per the detected cgroup layout (see
// pkg/system/cgroup) and answers each metric from the first source able
// to supply it, so an unlimited cgroup falls through to procfs metric by
// metric rather than all or nothing.
//
// CPU usage units differ by backend. Cgroup readings are in units of
// fully busy cores (one saturated core over the window reads 1.0, eight
// read 8.0). Proc readings are a fraction of all cores in [0, 1]. The
// CPUUsage provenance tag records which one you got; call Normalized with
// the core count to put proc readings on the cgroup scale.
//
// Usage counters are sampled twice around a sleep, and the window is the
// measured wall-clock time between the reads, not the requested sleep.
// A counter that goes backwards (wrap or reset) reads as a zero delta.
//
// GPU stats come from nvidia-smi's CSV output and are aggregated across
// all devices; see ReadGPUStats. A host without the binary simply has no
// GPU stats.
package stats
