// Package store persists periodic stats snapshots with bounded retention.
//
// Two backends exist: DirStore writes one pretty-printed JSON file per
// snapshot into a directory, SQLiteStore appends rows to a local database.
// Both keep only the newest N entries and evict the rest on every write,
// so the footprint stays constant no matter how long the agent runs.
package store

import "time"

// StatsEntry is one snapshot of host resource usage. Every metric is
// optional: a nil field means the metric could not be measured this
// interval and is omitted from the serialized form rather than written
// as a misleading zero.
type StatsEntry struct {
	// Time is seconds since the Unix epoch, fractional.
	Time float64 `json:"time"`

	NumCPUs       *float64 `json:"num_cpus,omitempty"`
	CPUUsage      *float64 `json:"cpu_usage,omitempty"`
	MemoryUsageKB *uint64  `json:"memory_usage_kb,omitempty"`
	MemoryTotalKB *uint64  `json:"memory_total_kb,omitempty"`

	NumGPUs          *uint32  `json:"num_gpus,omitempty"`
	GPUUsage         *float64 `json:"gpu_usage,omitempty"`
	GPUMemoryUsageKB *uint64  `json:"gpu_memory_usage_kb,omitempty"`
	GPUMemoryTotalKB *uint64  `json:"gpu_memory_total_kb,omitempty"`
}

// NewStatsEntry returns an entry stamped with the given wall-clock time.
func NewStatsEntry(t time.Time) *StatsEntry {
	return &StatsEntry{Time: float64(t.UnixNano()) / float64(time.Second)}
}

// UnixMilli returns the entry timestamp in milliseconds, used by backends
// to derive stable, sortable entry names.
func (e *StatsEntry) UnixMilli() int64 {
	return int64(e.Time * 1000)
}

// Store is a retention-bounded sink for stats snapshots.
type Store interface {
	// Write persists one entry and evicts the oldest entries beyond the
	// retention limit.
	Write(e *StatsEntry) error

	// Close releases backend resources. DirStore has none; SQLiteStore
	// closes the database handle.
	Close() error
}
