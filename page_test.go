package sharedpages_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-sharedpages"
)

func TestPageStatus_Zero(t *testing.T) {
	var p sharedpages.PageStatus
	assert.False(t, p.Present())
	assert.False(t, p.Swapped())
	assert.False(t, p.FileMapped())
	assert.False(t, p.SharedAnonymous())
	assert.False(t, p.ExclusivelyMapped())
	assert.False(t, p.SoftDirty())
	assert.Zero(t, p.FrameNumber())

	_, ok := p.Frame()
	assert.False(t, ok)
	assert.Equal(t, "pfn=0x0 [none]", p.String())
}

func TestPageStatus_FrameOnly(t *testing.T) {
	p := sharedpages.PageStatus(1)
	assert.Equal(t, uint64(1), p.FrameNumber())
	assert.False(t, p.Present())

	_, ok := p.Frame()
	assert.False(t, ok, "frame is not valid without the present bit")
}

func TestPageStatus_Bits(t *testing.T) {
	tests := []struct {
		name  string
		raw   uint64
		check func(sharedpages.PageStatus) bool
	}{
		{"soft-dirty", 1 << 55, sharedpages.PageStatus.SoftDirty},
		{"exclusive", 1 << 56, sharedpages.PageStatus.ExclusivelyMapped},
		{"file", 1 << 61, sharedpages.PageStatus.FileMapped},
		{"shared-anon", 1 << 61, sharedpages.PageStatus.SharedAnonymous},
		{"swapped", 1 << 62, sharedpages.PageStatus.Swapped},
		{"present", 1 << 63, sharedpages.PageStatus.Present},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := sharedpages.PageStatus(tt.raw)
			assert.True(t, tt.check(p))
			assert.Zero(t, p.FrameNumber(), "flag bits must not leak into the frame number")
			assert.False(t, tt.check(sharedpages.PageStatus(^tt.raw)))
		})
	}
}

func TestPageStatus_FrameMask(t *testing.T) {
	p := sharedpages.PageStatus(^uint64(0))
	assert.Equal(t, uint64(1<<55-1), p.FrameNumber())

	pfn, ok := sharedpages.PageStatus(1<<63 | 0xabcdef).Frame()
	assert.True(t, ok)
	assert.Equal(t, uint64(0xabcdef), pfn)
}

func TestPageStatus_String(t *testing.T) {
	p := sharedpages.PageStatus(1<<63 | 1<<61 | 0x42)
	assert.Equal(t, "pfn=0x42 [present,file|shared-anon]", p.String())
}

func TestPageStatus_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(sharedpages.PageStatus(1<<63 | 7))
	require.NoError(t, err)
	assert.JSONEq(t, `{"present":true,"swapped":false,"file_mapped":false,"shared_anonymous":false,
		"exclusively_mapped":false,"soft_dirty":false,"frame":7}`, string(data))

	data, err = json.Marshal(sharedpages.PageStatus(1 << 62))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "frame")
}
