// Package sharedpages holds the domain types shared by the scanner,
// the frame index and the report layers: processes, memory mappings,
// decoded pagemap records and the errors raised while reading them.
package sharedpages

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// PID identifies a process on the host.
type PID uint64

// ParsePID parses a decimal process identifier. Zero is rejected.
func ParsePID(s string) (PID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("pid cannot be empty")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid pid %q: %w", s, err)
	}
	if v == 0 {
		return 0, fmt.Errorf("invalid pid %q: must be positive", s)
	}
	return PID(v), nil
}

func (p PID) String() string { return strconv.FormatUint(uint64(p), 10) }

// Process is a scan target. Equality and ordering are defined by PID
// alone; Cmdline is carried for display and may differ between two
// values describing the same process.
type Process struct {
	PID     PID    `json:"pid"`
	Cmdline string `json:"cmdline,omitempty"`
}

// Same reports whether p and o identify the same process.
func (p Process) Same(o Process) bool {
	return p.PID == o.PID
}

// CompareProcesses orders processes by PID. Suitable for slices.SortFunc.
func CompareProcesses(a, b Process) int {
	return cmp.Compare(a.PID, b.PID)
}

func (p Process) String() string {
	if p.Cmdline == "" {
		return p.PID.String()
	}
	return fmt.Sprintf("%d (%s)", p.PID, p.Cmdline)
}
