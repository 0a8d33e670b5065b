package exfat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFAT_ChainWriteReadFree(t *testing.T) {
	f := NewFAT(16)
	chain := []int{5, 6, 9}
	f.WriteChain(chain)

	assert.Equal(t, uint32(6), f.Get(5))
	assert.Equal(t, uint32(9), f.Get(6))
	assert.Equal(t, uint32(ClusterEOF), f.Get(9))

	assert.Equal(t, chain, f.ReadChain(5))

	f.FreeChain(5)
	assert.Equal(t, uint32(ClusterFree), f.Get(5))
	assert.Equal(t, uint32(ClusterFree), f.Get(6))
	assert.Equal(t, uint32(ClusterFree), f.Get(9))
}

func TestFAT_BytesRoundTrip(t *testing.T) {
	f := NewFAT(8)
	f.WriteChain([]int{2, 3, 4})

	data := f.Bytes()
	got := ParseFAT(data)

	assert.Equal(t, f.Get(2), got.Get(2))
	assert.Equal(t, f.Get(3), got.Get(3))
	assert.Equal(t, f.Get(4), got.Get(4))
	require.Equal(t, uint32(0xFFFFFFF8), getU32(data[0:4]), "entry 0 must carry the media descriptor")
	require.Equal(t, uint32(0xFFFFFFFF), getU32(data[4:8]), "entry 1 must be 0xFFFFFFFF")
}

func TestBitmap_AllocContiguousThenChain(t *testing.T) {
	bm := NewBitmap(20)
	bm.Reserve(2, 3) // clusters 2,3,4 reserved as in a fresh volume

	first, ok := bm.AllocContiguous(5, 4)
	require.True(t, ok)
	assert.Equal(t, 5, first)

	bm.Free(5, 2)
	next, ok := bm.FindFree(5)
	require.True(t, ok)
	assert.Equal(t, 5, next)

	chain := bm.AllocChain(5, 2)
	assert.Equal(t, []int{5, 6}, chain)
}

func TestBitmap_FromBytesPreservesState(t *testing.T) {
	bm := NewBitmap(32)
	bm.Reserve(2, 5)

	bm2 := NewBitmapFromBytes(bm.Bytes(), 32)
	_, ok := bm2.FindContiguous(2, 5)
	assert.False(t, ok, "reserved range must still read as allocated after round-tripping through bytes")

	first, ok := bm2.FindFree(2)
	require.True(t, ok)
	assert.Equal(t, 7, first)
}
