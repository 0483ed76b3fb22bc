//go:build linux

// Package cgroup classifies the host's cgroup setup and resolves the
// filesystem paths backing each cgroup hierarchy.
package cgroup

import (
	"fmt"
	"os"
	"strings"
)

// Version is the cgroup API generation a process is managed by.
type Version int

const (
	V1      Version = iota + 1 // legacy multi-hierarchy cgroup v1
	V2                         // unified cgroup v2
	V1AndV2                    // hybrid: both hierarchies mounted, controllers split between them
)

func (v Version) String() string {
	switch v {
	case V1:
		return "cgroup v1"
	case V2:
		return "cgroup v2"
	case V1AndV2:
		return "cgroup hybrid"
	default:
		return "unknown"
	}
}

// HasV1 reports whether a v1 hierarchy is usable under this classification.
func (v Version) HasV1() bool { return v == V1 || v == V1AndV2 }

// HasV2 reports whether the v2 unified hierarchy is usable under this classification.
func (v Version) HasV2() bool { return v == V2 || v == V1AndV2 }

// /proc/mounts fields: device, mount point, fstype, options, dump, pass.
const (
	mountPointIndex = 1
	fsTypeIndex     = 2
	fsOptionsIndex  = 3

	fsTypeCgroupV1 = "cgroup"
	fsTypeCgroupV2 = "cgroup2"

	controllerCPU     = "cpu"
	controllerCPUAcct = "cpuacct"
	controllerMemory  = "memory"
)

// DetectVersion classifies the cgroup version from a /proc/[pid]/cgroup file.
//
// The unified v2 hierarchy shows up as a single "0::/..." record, while v1
// lists one record per mounted hierarchy. An empty file means the host's
// cgroup info is unreadable or malformed, which is an error rather than a
// classification.
//
// Note that this heuristic alone can never produce V1AndV2; use
// DetectVersionAt when hybrid hosts must be told apart from pure v1.
func DetectVersion(selfCgroupPath string) (Version, error) {
	content, err := os.ReadFile(selfCgroupPath)
	if err != nil {
		return 0, err
	}

	switch countLines(string(content)) {
	case 0:
		return 0, fmt.Errorf("cgroup: invalid cgroup file %s: no records", selfCgroupPath)
	case 1:
		return V2, nil
	default:
		return V1, nil
	}
}

// DetectVersionAt classifies like DetectVersion, then refines a V1 result to
// V1AndV2 when mountsPath also carries a cgroup2 mount. A host whose
// /proc/[pid]/cgroup lists multiple hierarchies but still mounts the unified
// hierarchy is running the hybrid layout, and its v2 files are worth
// preferring where present.
func DetectVersionAt(selfCgroupPath, mountsPath string) (Version, error) {
	version, err := DetectVersion(selfCgroupPath)
	if err != nil {
		return 0, err
	}
	if version != V1 {
		return version, nil
	}
	if _, err := ResolveV2MountPoint(mountsPath); err == nil {
		return V1AndV2, nil
	}
	return V1, nil
}

// V1MountPoints holds the resolved mount point per v1 controller. An empty
// string means the controller is not mounted, which downstream readers treat
// as that controller being unavailable rather than an error.
//
// Co-mounted controllers (commonly "cpu,cpuacct") resolve to the same path.
type V1MountPoints struct {
	CPU     string
	CPUAcct string
	Memory  string
}

// Empty reports whether no controller at all was resolved.
func (m V1MountPoints) Empty() bool {
	return m.CPU == "" && m.CPUAcct == "" && m.Memory == ""
}

// ResolveV2MountPoint returns the mount point of the cgroup v2 unified
// hierarchy from a /proc/mounts-formatted file. Most hosts mount it at
// /sys/fs/cgroup, but that is not guaranteed.
func ResolveV2MountPoint(mountsPath string) (string, error) {
	content, err := os.ReadFile(mountsPath)
	if err != nil {
		return "", err
	}

	for _, line := range strings.Split(string(content), "\n") {
		fields := strings.Fields(line)
		if len(fields) <= fsTypeIndex {
			continue
		}
		if fields[fsTypeIndex] == fsTypeCgroupV2 {
			// the unified hierarchy has a single mount point for all controllers
			return fields[mountPointIndex], nil
		}
	}

	return "", fmt.Errorf("cgroup: no cgroup2 mount point in %s", mountsPath)
}

// ResolveV1MountPoints scans a /proc/mounts-formatted file for v1 cgroup
// mounts and records where the cpu, cpuacct and memory controllers live. The
// controller names are in the mount options, not the path.
//
// When the file carries duplicate lines for the same controller (seen during
// container startup races), the last line wins.
func ResolveV1MountPoints(mountsPath string) (V1MountPoints, error) {
	content, err := os.ReadFile(mountsPath)
	if err != nil {
		return V1MountPoints{}, err
	}

	var points V1MountPoints
	for _, line := range strings.Split(string(content), "\n") {
		fields := strings.Fields(line)
		if len(fields) <= fsOptionsIndex {
			continue
		}
		if fields[fsTypeIndex] != fsTypeCgroupV1 {
			continue
		}

		mountPoint := fields[mountPointIndex]
		options := strings.Split(fields[fsOptionsIndex], ",")
		if optionsContain(options, controllerCPU) {
			points.CPU = mountPoint
		}
		if optionsContain(options, controllerCPUAcct) {
			points.CPUAcct = mountPoint
		}
		if optionsContain(options, controllerMemory) {
			points.Memory = mountPoint
		}
	}

	return points, nil
}

func optionsContain(options []string, name string) bool {
	for _, opt := range options {
		if opt == name {
			return true
		}
	}
	return false
}

func countLines(content string) int {
	n := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
