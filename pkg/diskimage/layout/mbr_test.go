package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtectiveMBR_SingleTypeEEEntrySpansDisk(t *testing.T) {
	sector := ProtectiveMBR(DiskSectors(64))
	require.Len(t, sector, SectorSize)

	assert.Equal(t, byte(0x55), sector[510])
	assert.Equal(t, byte(0xAA), sector[511])

	const off = 446
	assert.Equal(t, byte(0x00), sector[off], "protective MBR entry must not be marked bootable")
	assert.Equal(t, byte(0xEE), sector[off+4])

	startLBA := uint32(sector[off+8]) | uint32(sector[off+9])<<8 | uint32(sector[off+10])<<16 | uint32(sector[off+11])<<24
	assert.Equal(t, uint32(1), startLBA)
}

func TestWriteMBRPartitionTable_ZeroesUnusedSlots(t *testing.T) {
	sector := make([]byte, SectorSize)
	WriteMBRPartitionTable(sector, []PartitionEntry{
		{Bootable: true, Type: 0x0C, StartLBA: 2048, SectorCount: 1024},
	})

	const off = 446
	assert.Equal(t, byte(0x80), sector[off])
	assert.Equal(t, byte(0x0C), sector[off+4])

	for i := 1; i < 4; i++ {
		slot := sector[off+i*16 : off+i*16+16]
		for _, b := range slot {
			require.Zero(t, b)
		}
	}
}
