// Package types holds small value types shared across the agent.
package types

import "fmt"

// Bytes is a byte count with human-oriented formatting for log output.
type Bytes uint64

// KBytes returns the byte count for a size expressed in kilobytes, the
// unit stats entries are denominated in.
func KBytes(kb uint64) Bytes { return Bytes(kb * 1024) }

// Humanized renders the count with an automatic 1024-based unit
// (B, KB, MB, GB, TB), two decimals above the byte range.
func (b Bytes) Humanized() string {
	v := float64(b)
	switch {
	case b >= 1<<40:
		return fmt.Sprintf("%.2f TB", v/(1<<40))
	case b >= 1<<30:
		return fmt.Sprintf("%.2f GB", v/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.2f MB", v/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.2f KB", v/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
