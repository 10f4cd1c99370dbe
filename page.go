package sharedpages

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PageStatus is one decoded 64-bit /proc/PID/pagemap record.
//
// Bit layout (Documentation/admin-guide/mm/pagemap.rst):
//
//	bits 0-54  page frame number, valid only when bit 63 is set
//	bit  55    soft-dirty
//	bit  56    page exclusively mapped
//	bit  61    file-page or shared-anon
//	bit  62    page swapped
//	bit  63    page present in RAM
//
// When the page is swapped, bits 0-54 hold swap type and offset
// instead of a frame number.
type PageStatus uint64

// MaxFrameNumber is the largest frame number bits 0-54 can hold.
const MaxFrameNumber = frameMask

const (
	frameMask = 1<<55 - 1

	bitSoftDirty         = 55
	bitExclusivelyMapped = 56
	bitFileOrSharedAnon  = 61
	bitSwapped           = 62
	bitPresent           = 63
)

func (p PageStatus) bit(n uint) bool {
	return uint64(p)>>n&1 == 1
}

// Present reports whether the page is resident in RAM.
func (p PageStatus) Present() bool { return p.bit(bitPresent) }

// Swapped reports whether the page is in swap.
func (p PageStatus) Swapped() bool { return p.bit(bitSwapped) }

// FileMapped reports bit 61. The kernel uses the same bit for
// file-backed pages and shared anonymous pages, so FileMapped and
// SharedAnonymous always agree.
func (p PageStatus) FileMapped() bool { return p.bit(bitFileOrSharedAnon) }

// SharedAnonymous reports bit 61; see FileMapped.
func (p PageStatus) SharedAnonymous() bool { return p.bit(bitFileOrSharedAnon) }

// ExclusivelyMapped reports whether only this process maps the page.
func (p PageStatus) ExclusivelyMapped() bool { return p.bit(bitExclusivelyMapped) }

// SoftDirty reports whether the page was written since the soft-dirty
// bits were last cleared.
func (p PageStatus) SoftDirty() bool { return p.bit(bitSoftDirty) }

// FrameNumber returns bits 0-54 as stored. Only meaningful when
// Present is true; use Frame to get the value together with that check.
func (p PageStatus) FrameNumber() uint64 { return uint64(p) & frameMask }

// Frame returns the page frame number and true when the page is
// resident, or 0 and false otherwise.
func (p PageStatus) Frame() (uint64, bool) {
	if !p.Present() {
		return 0, false
	}
	return p.FrameNumber(), true
}

func (p PageStatus) String() string {
	var flags []string
	if p.Present() {
		flags = append(flags, "present")
	}
	if p.Swapped() {
		flags = append(flags, "swapped")
	}
	if p.FileMapped() {
		flags = append(flags, "file|shared-anon")
	}
	if p.ExclusivelyMapped() {
		flags = append(flags, "exclusive")
	}
	if p.SoftDirty() {
		flags = append(flags, "soft-dirty")
	}
	if len(flags) == 0 {
		flags = append(flags, "none")
	}
	return fmt.Sprintf("pfn=%#x [%s]", p.FrameNumber(), strings.Join(flags, ","))
}

// pageStatusJSON is the wire shape used by MarshalJSON.
type pageStatusJSON struct {
	Present           bool    `json:"present"`
	Swapped           bool    `json:"swapped"`
	FileMapped        bool    `json:"file_mapped"`
	SharedAnonymous   bool    `json:"shared_anonymous"`
	ExclusivelyMapped bool    `json:"exclusively_mapped"`
	SoftDirty         bool    `json:"soft_dirty"`
	Frame             *uint64 `json:"frame,omitempty"`
}

// MarshalJSON renders the decoded flags rather than the raw integer.
func (p PageStatus) MarshalJSON() ([]byte, error) {
	v := pageStatusJSON{
		Present:           p.Present(),
		Swapped:           p.Swapped(),
		FileMapped:        p.FileMapped(),
		SharedAnonymous:   p.SharedAnonymous(),
		ExclusivelyMapped: p.ExclusivelyMapped(),
		SoftDirty:         p.SoftDirty(),
	}
	if pfn, ok := p.Frame(); ok {
		v.Frame = &pfn
	}
	return json.Marshal(v)
}
