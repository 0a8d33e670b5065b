package exfat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEntrySet_RoundTrip(t *testing.T) {
	e := Entry{
		Name:         "kernel.elf",
		FirstCluster: 42,
		DataLength:   4096,
		Contiguous:   true,
		Mode:         0xF00,
		UID:          1,
		GID:          2,
	}

	raw := BuildEntrySet(e)
	require.Equal(t, 0, len(raw)%entrySize)

	got, consumed := ParseEntrySet(raw)
	require.NotNil(t, got)
	assert.Equal(t, len(raw)/entrySize, consumed)
	assert.Equal(t, e.Name, got.Name)
	assert.Equal(t, e.FirstCluster, got.FirstCluster)
	assert.Equal(t, e.DataLength, got.DataLength)
	assert.Equal(t, e.Contiguous, got.Contiguous)
	assert.Equal(t, e.Mode, got.Mode)
	assert.False(t, got.Directory)
}

func TestBuildEntrySet_ChecksumCoversWholeSet(t *testing.T) {
	raw := BuildEntrySet(Entry{Name: "a-long-enough-name-to-need-two-filename-entries.bin", DataLength: 10})
	want := EntrySetChecksum(raw)
	got := getU16(raw[2:4])
	assert.Equal(t, want, got, "checksum field must match EntrySetChecksum over the full entry set")
}

func TestBuildEntrySet_DirectoryAttribute(t *testing.T) {
	raw := BuildEntrySet(Entry{Name: "sub", Directory: true, FirstCluster: 9})
	got, _ := ParseEntrySet(raw)
	require.NotNil(t, got)
	assert.True(t, got.Directory)
}

func TestParseEntrySet_RejectsNonFileEntry(t *testing.T) {
	raw := make([]byte, entrySize)
	raw[0] = EntryTypeStreamExtension
	got, consumed := ParseEntrySet(raw)
	assert.Nil(t, got)
	assert.Zero(t, consumed)
}
