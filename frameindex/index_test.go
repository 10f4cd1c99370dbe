package frameindex_test

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/frobware/go-sharedpages"
	"github.com/frobware/go-sharedpages/frameindex"
)

func TestNewOwnerSet(t *testing.T) {
	s := frameindex.NewOwnerSet(5, 1, 5, 3)
	assert.Equal(t, frameindex.OwnerSet{1, 3, 5}, s)
	assert.True(t, s.Contains(3))
	assert.False(t, s.Contains(4))
	assert.True(t, s.Shared())
	assert.False(t, frameindex.NewOwnerSet(9).Shared())
	assert.Empty(t, frameindex.NewOwnerSet())
}

func TestOwnerSet_Union(t *testing.T) {
	tests := []struct {
		name string
		a, b frameindex.OwnerSet
		want frameindex.OwnerSet
	}{
		{"disjoint", frameindex.NewOwnerSet(1, 5), frameindex.NewOwnerSet(2, 9), frameindex.NewOwnerSet(1, 2, 5, 9)},
		{"overlap", frameindex.NewOwnerSet(1, 2, 3), frameindex.NewOwnerSet(2, 3, 4), frameindex.NewOwnerSet(1, 2, 3, 4)},
		{"subset", frameindex.NewOwnerSet(1, 2, 3), frameindex.NewOwnerSet(2), frameindex.NewOwnerSet(1, 2, 3)},
		{"equal", frameindex.NewOwnerSet(7), frameindex.NewOwnerSet(7), frameindex.NewOwnerSet(7)},
		{"empty left", nil, frameindex.NewOwnerSet(4), frameindex.NewOwnerSet(4)},
		{"empty right", frameindex.NewOwnerSet(4), nil, frameindex.NewOwnerSet(4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Union(tt.b))
			assert.Equal(t, tt.want, tt.b.Union(tt.a))
		})
	}
}

func TestOwnerSet_UnionLeavesInputsAlone(t *testing.T) {
	a := frameindex.NewOwnerSet(1, 3)
	b := frameindex.NewOwnerSet(2)
	_ = a.Union(b)
	assert.Equal(t, frameindex.OwnerSet{1, 3}, a)
	assert.Equal(t, frameindex.OwnerSet{2}, b)
}

func TestPartial(t *testing.T) {
	idx := frameindex.Partial(7, slices.Values([]uint64{3, 1, 3}))
	assert.Len(t, idx, 2)
	assert.Equal(t, frameindex.NewOwnerSet(7), idx[1])
	assert.Equal(t, []uint64{1, 3}, idx.Frames())
}

func TestPartial_DropsWideFrames(t *testing.T) {
	idx := frameindex.Partial(7, slices.Values([]uint64{sharedpages.MaxFrameNumber, sharedpages.MaxFrameNumber + 1, 1 << 63}))
	assert.Equal(t, []uint64{sharedpages.MaxFrameNumber}, idx.Frames())
}

func TestMerge(t *testing.T) {
	a := frameindex.Partial(1, slices.Values([]uint64{10, 11}))
	b := frameindex.Partial(2, slices.Values([]uint64{11, 12}))

	got := frameindex.Merge(a, b)
	want := frameindex.Index{
		10: frameindex.NewOwnerSet(1),
		11: frameindex.NewOwnerSet(1, 2),
		12: frameindex.NewOwnerSet(2),
	}
	assert.True(t, want.Equal(got), "got %v", got)

	assert.Len(t, a, 2, "inputs are not modified")
	assert.Equal(t, frameindex.NewOwnerSet(1), a[11])
}

// randomPartial builds the partial index of pid over frames drawn from
// a small window so that partials overlap.
func randomPartial(r *rand.Rand, pid sharedpages.PID) frameindex.Index {
	frames := make([]uint64, r.IntN(40))
	for i := range frames {
		frames[i] = r.Uint64N(64)
	}
	return frameindex.Partial(pid, slices.Values(frames))
}

func TestMerge_CommutativeAndAssociative(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		a := randomPartial(r, sharedpages.PID(r.IntN(5)+1))
		b := randomPartial(r, sharedpages.PID(r.IntN(5)+1))
		c := randomPartial(r, sharedpages.PID(r.IntN(5)+1))

		assert.True(t, frameindex.Merge(a, b).Equal(frameindex.Merge(b, a)))
		assert.True(t, frameindex.Merge(frameindex.Merge(a, b), c).Equal(frameindex.Merge(a, frameindex.Merge(b, c))))
		assert.True(t, frameindex.Reduce(c, a, b).Equal(frameindex.Merge(a, frameindex.Merge(b, c))))
	}
}

func TestMerge_Identity(t *testing.T) {
	a := frameindex.Partial(3, slices.Values([]uint64{1, 2}))
	assert.True(t, frameindex.Merge(a, frameindex.Index{}).Equal(a))
	assert.Empty(t, frameindex.Reduce())
}
