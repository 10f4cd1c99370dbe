package sharedpages

import (
	"iter"

	"github.com/bits-and-blooms/bitset"
)

// PageRun is a run of consecutive virtual pages within one mapping.
// Start is the index of the first page relative to the mapping start.
type PageRun struct {
	Start uint `json:"start"`
	Count uint `json:"count"`
}

// Residency returns a bitset with one bit per page of the mapping, set
// when that page is resident in RAM.
func (mp MappingPages) Residency() *bitset.BitSet {
	b := bitset.New(uint(len(mp.Pages)))
	for i, p := range mp.Pages {
		if p.Present() {
			b.Set(uint(i))
		}
	}
	return b
}

// Swapped returns the number of pages of the mapping that are in swap.
func (mp MappingPages) Swapped() int {
	n := 0
	for _, p := range mp.Pages {
		if p.Swapped() {
			n++
		}
	}
	return n
}

// Runs returns the runs of set bits in b, in ascending order.
func Runs(b *bitset.BitSet) iter.Seq[PageRun] {
	return func(yield func(PageRun) bool) {
		start, ok := b.NextSet(0)
		for ok {
			end, endOk := b.NextClear(start)
			if !endOk {
				yield(PageRun{Start: start, Count: b.Len() - start})
				return
			}
			if !yield(PageRun{Start: start, Count: end - start}) {
				return
			}
			start, ok = b.NextSet(end + 1)
		}
	}
}
