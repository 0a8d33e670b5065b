package elfcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBin_FlattensByVirtualAddressWithImplicitBSS(t *testing.T) {
	segs := []Segment{
		{VAddr: 0x1000, Memsz: 4, Filesz: 4, Data: []byte{1, 2, 3, 4}},
		{VAddr: 0x1010, Memsz: 8, Filesz: 4, Data: []byte{5, 6, 7, 8}}, // 4 bytes of BSS tail
	}

	buf, base, err := Bin(segs)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1000), base)
	assert.Equal(t, 0x18, len(buf))
	assert.Equal(t, []byte{1, 2, 3, 4}, buf[0:4])
	assert.Equal(t, []byte{5, 6, 7, 8}, buf[0x10:0x14])
	assert.Equal(t, []byte{0, 0, 0, 0}, buf[0x14:0x18], "memsz tail beyond filesz must read as zero")
}

func TestPflat_KeyedByPhysicalAddressWithCallerBase(t *testing.T) {
	segs := []Segment{
		{VAddr: 0xffff800000001000, Paddr: 0x200000, Memsz: 4, Filesz: 4, Data: []byte{0xaa, 0xbb, 0xcc, 0xdd}},
	}

	buf, err := Pflat(segs, 0x100000)
	require.NoError(t, err)
	assert.Equal(t, 0x100004, len(buf), "leading gap between base and first segment must be zero-padded")
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc, 0xdd}, buf[0x100000:0x100004])
}

func TestPflat_RejectsSegmentBelowBase(t *testing.T) {
	segs := []Segment{{Paddr: 0x1000, Memsz: 4, Filesz: 4, Data: []byte{1, 2, 3, 4}}}
	_, err := Pflat(segs, 0x2000)
	assert.Error(t, err)
}

func TestAlignUpAndPagesFor(t *testing.T) {
	assert.Equal(t, uint64(0x1000), alignUp(1, pageSize))
	assert.Equal(t, uint64(0x1000), alignUp(pageSize, pageSize))
	assert.Equal(t, uint64(0x2000), alignUp(pageSize+1, pageSize))

	assert.Equal(t, uint64(1), pagesFor(1))
	assert.Equal(t, uint64(1), pagesFor(pageSize))
	assert.Equal(t, uint64(2), pagesFor(pageSize+1))
}
