package sharedpages

import (
	"fmt"
	"strings"
)

// AddressRange is a half-open interval [Start, End) of virtual
// addresses in bytes.
type AddressRange struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// Len returns the size of the range in bytes.
func (r AddressRange) Len() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

func (r AddressRange) String() string {
	return fmt.Sprintf("%08x-%08x", r.Start, r.End)
}

// Mapping is one virtual address range of a process as listed in
// /proc/PID/maps. Permissions and Device are opaque strings taken
// verbatim from the kernel. Path is empty for anonymous mappings.
type Mapping struct {
	Range       AddressRange `json:"range"`
	Permissions string       `json:"permissions"`
	Offset      uint64       `json:"offset"`
	Device      string       `json:"device"`
	Inode       uint64       `json:"inode"`
	Path        string       `json:"path,omitempty"`
}

// pathColumn is where the kernel starts the path field on 64-bit
// hosts (seq_setwidth of 25 + 6*sizeof(void *) - 1, then one pad).
const pathColumn = 73

// String renders the mapping in the kernel's maps format.
func (m Mapping) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %08x %s %d", m.Range, m.Permissions, m.Offset, m.Device, m.Inode)
	if m.Path == "" {
		return b.String()
	}
	if pad := pathColumn - 1 - b.Len(); pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	b.WriteByte(' ')
	b.WriteString(m.Path)
	return b.String()
}

// IsVsyscall reports whether m is the legacy vsyscall gate page. It
// lies above the task size, so pagemap has no records for it.
func (m Mapping) IsVsyscall() bool {
	return m.Path == "[vsyscall]"
}

// MappingPages associates a mapping with the decoded status of each
// of its virtual pages, in address order.
type MappingPages struct {
	Mapping Mapping      `json:"mapping"`
	Pages   []PageStatus `json:"pages"`
}
