//go:build linux

package stats

import "errors"

var (
	// ErrNoLimit indicates that a cgroup file exists but reports "no limit"
	// (v2 "max" sentinel, v1 non-positive quota or the 64-bit no-limit
	// value), so the metric cannot be answered with a real number.
	ErrNoLimit = errors.New("stats: no limit configured")

	// ErrNotMounted indicates that the cgroup controller backing a metric
	// was never mounted on this host.
	ErrNotMounted = errors.New("stats: controller not mounted")

	// ErrNoSource indicates that no candidate source could supply the
	// requested metric this interval.
	ErrNoSource = errors.New("stats: no source available")

	// ErrNoStatData indicates that /proc/stat had no usable CPU line.
	ErrNoStatData = errors.New("stats: no cpu data in proc stat")

	// ErrNoMemInfo indicates that /proc/meminfo had no MemTotal line.
	ErrNoMemInfo = errors.New("stats: no MemTotal in proc meminfo")
)
