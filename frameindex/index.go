// Package frameindex maps physical page frame numbers to the set of
// processes that map them, and compresses that mapping into ranges.
//
// # Immutability
//
// An Index produced by Partial, Merge or Reduce is never modified by
// this package afterwards, and OwnerSet values are shared between
// indices rather than copied. Callers must treat both as read-only.
// This is what makes Merge safe to run on partial results produced by
// concurrent scans without any locking.
package frameindex

import (
	"iter"
	"maps"
	"slices"

	"github.com/frobware/go-sharedpages"
)

// OwnerSet is a set of processes identified by PID, sorted ascending
// with no duplicates.
type OwnerSet []sharedpages.PID

// NewOwnerSet returns the sorted, de-duplicated set of pids.
func NewOwnerSet(pids ...sharedpages.PID) OwnerSet {
	s := slices.Clone(pids)
	slices.Sort(s)
	return OwnerSet(slices.Compact(s))
}

// Contains reports whether pid is in the set.
func (s OwnerSet) Contains(pid sharedpages.PID) bool {
	_, found := slices.BinarySearch(s, pid)
	return found
}

// Equal reports whether s and o hold exactly the same processes.
func (s OwnerSet) Equal(o OwnerSet) bool {
	return slices.Equal(s, o)
}

// Shared reports whether more than one process is in the set.
func (s OwnerSet) Shared() bool {
	return len(s) > 1
}

// Union returns the union of s and o. When one side already contains
// the other, that side is returned as is.
func (s OwnerSet) Union(o OwnerSet) OwnerSet {
	switch {
	case len(o) == 0:
		return s
	case len(s) == 0:
		return o
	}

	out := make(OwnerSet, 0, len(s)+len(o))
	i, j := 0, 0
	for i < len(s) && j < len(o) {
		switch {
		case s[i] < o[j]:
			out = append(out, s[i])
			i++
		case s[i] > o[j]:
			out = append(out, o[j])
			j++
		default:
			out = append(out, s[i])
			i++
			j++
		}
	}
	out = append(out, s[i:]...)
	out = append(out, o[j:]...)

	switch len(out) {
	case len(s):
		return s
	case len(o):
		return o
	}
	return out
}

// Index maps a page frame number to the processes that map it.
type Index map[uint64]OwnerSet

// Partial builds the index contributed by a single process: every
// frame in frames is owned by pid alone. Values above
// sharedpages.MaxFrameNumber cannot come from a pagemap record and are
// dropped.
func Partial(pid sharedpages.PID, frames iter.Seq[uint64]) Index {
	owner := OwnerSet{pid}
	idx := make(Index)
	for pfn := range frames {
		if pfn > sharedpages.MaxFrameNumber {
			continue
		}
		idx[pfn] = owner
	}
	return idx
}

// Merge returns a new index holding the union of a and b. For a frame
// present in both, the owner set is the union of both owner sets.
// Merge is commutative and associative, and leaves a and b untouched.
func Merge(a, b Index) Index {
	return Reduce(a, b)
}

// Reduce merges any number of indices, in any order, into a new index.
func Reduce(parts ...Index) Index {
	size := 0
	for _, p := range parts {
		size = max(size, len(p))
	}

	out := make(Index, size)
	for _, p := range parts {
		for pfn, owners := range p {
			out[pfn] = out[pfn].Union(owners)
		}
	}
	return out
}

// Frames returns the frame numbers in the index in ascending order.
func (idx Index) Frames() []uint64 {
	return slices.Sorted(maps.Keys(idx))
}

// Equal reports whether idx and o hold the same frames with the same
// owner sets.
func (idx Index) Equal(o Index) bool {
	return maps.EqualFunc(idx, o, OwnerSet.Equal)
}
