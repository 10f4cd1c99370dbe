package frameindex

import "github.com/frobware/go-sharedpages"

// PageRange is a half-open interval [From, To) of page frame numbers
// where every frame is owned by exactly Owners.
type PageRange struct {
	From   uint64   `json:"from"`
	To     uint64   `json:"to"`
	Owners OwnerSet `json:"owners"`
}

// Pages returns the number of frames in the range.
func (r PageRange) Pages() uint64 {
	return r.To - r.From
}

// Compress walks the index in ascending frame order and emits maximal
// ranges of consecutive frames with identical owner sets. Two
// numerically adjacent frames whose owner sets differ in any way start
// separate ranges. Every frame in idx lands in exactly one range, and
// the ranges are ordered by From. Keys above sharedpages.MaxFrameNumber
// are not frame numbers and are skipped, which keeps To from
// overflowing.
func Compress(idx Index) []PageRange {
	var (
		ranges []PageRange
		cur    PageRange
		open   bool
	)

	for _, pfn := range idx.Frames() {
		if pfn > sharedpages.MaxFrameNumber {
			break
		}
		owners := idx[pfn]
		if open && pfn == cur.To && owners.Equal(cur.Owners) {
			cur.To++
			continue
		}
		if open {
			ranges = append(ranges, cur)
		}
		cur = PageRange{From: pfn, To: pfn + 1, Owners: owners}
		open = true
	}

	if open {
		ranges = append(ranges, cur)
	}

	return ranges
}

// Expand is the inverse of Compress: it returns an index with one
// entry per frame covered by ranges.
func Expand(ranges []PageRange) Index {
	idx := make(Index)
	for _, r := range ranges {
		for pfn := r.From; pfn < r.To; pfn++ {
			idx[pfn] = r.Owners
		}
	}
	return idx
}

// SharedOnly returns the ranges whose frames are mapped by more than
// one process.
func SharedOnly(ranges []PageRange) []PageRange {
	var out []PageRange
	for _, r := range ranges {
		if r.Owners.Shared() {
			out = append(out, r)
		}
	}
	return out
}
