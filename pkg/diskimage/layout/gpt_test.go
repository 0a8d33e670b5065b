package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderBuild_CRCVerifiesAfterZeroingField(t *testing.T) {
	entries := BuildEntries([]PartitionSpec{
		{
			TypeGUID:   EFISystemPartitionTypeGUID,
			UniqueGUID: NewGUID(),
			FirstLBA:   ESPStartLBA,
			LastLBA:    ESPStartLBA + 100,
			Name:       "ESP",
		},
	})

	h := Header{
		DiskGUID:            NewGUID(),
		CurrentLBA:          GPTHeaderLBA,
		BackupLBA:           1000,
		FirstUsableLBA:      ESPStartLBA,
		LastUsableLBA:       900,
		PartitionEntryLBA:   GPTEntriesLBA,
		NumPartitionEntries: GPTEntryCount,
		Entries:             entries,
	}

	data := h.Build()
	require.Len(t, data, SectorSize)

	var hdr92 [92]byte
	copy(hdr92[:], data[:92])
	want := GPTHeaderCRC(hdr92)

	got := uint32(data[16]) | uint32(data[17])<<8 | uint32(data[18])<<16 | uint32(data[19])<<24
	assert.Equal(t, want, got, "recomputing the CRC over the zeroed header must reproduce the stored value")
}

func TestNewGUID_SetsVersionAndVariantBits(t *testing.T) {
	g := NewGUID()
	assert.Equal(t, byte(0x40), g[6]&0xF0)
	assert.Equal(t, byte(0x80), g[8]&0xC0)
}

func TestBuildEntries_UnusedSlotsZeroed(t *testing.T) {
	entries := BuildEntries([]PartitionSpec{{TypeGUID: EFISystemPartitionTypeGUID}})
	require.Len(t, entries, GPTEntryCount*GPTEntrySize)

	second := entries[GPTEntrySize : 2*GPTEntrySize]
	for _, b := range second {
		require.Zero(t, b)
	}
}
