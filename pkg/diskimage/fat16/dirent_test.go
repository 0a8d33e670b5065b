package fat16

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsLFN(t *testing.T) {
	assert.False(t, needsLFN("KERNEL.BIN"))
	assert.True(t, needsLFN("kernel.bin"))
	assert.False(t, needsLFN("BOOTX64.EFI")) // clean 8.3 name: 7-char base, 3-char ext
	assert.True(t, needsLFN("LONGFILENAME.TXT"))
	assert.True(t, needsLFN("A+B.TXT"))
}

func TestShortNameAllocator_CollisionGetsTilde(t *testing.T) {
	alloc := NewShortNameAllocator()
	first := alloc.Allocate("longfilename-one.txt")
	second := alloc.Allocate("longfilename-two.txt")

	assert.NotEqual(t, first, second)
	assert.Contains(t, string(second[:8]), "~")
}

func TestBuildLFNEntries_LastEntryFlaggedAndChecksummed(t *testing.T) {
	short := NewShortNameAllocator().Allocate("longfilename.txt")
	entries := BuildLFNEntries("longfilename.txt", short)
	require.NotEmpty(t, entries)

	last := entries[0] // on-disk order: last logical chunk first
	assert.Equal(t, byte(0x42), last[0], "first on-disk LFN entry must be the last sequence number (2) ORed with 0x40")
	assert.Equal(t, lfnChecksum(short), last[13])
	assert.Equal(t, byte(AttrLongName), last[11])
}

func TestBuildEntrySet_ShortNameOnlyNeedsNoLFN(t *testing.T) {
	alloc := NewShortNameAllocator()
	raw := BuildEntrySet(DirEntry{LongName: "KERNEL.BIN", FirstCluster: 5, FileSize: 1024}, alloc)
	require.Len(t, raw, EntrySize)
	assert.Equal(t, byte(AttrArchive), raw[11])
}
