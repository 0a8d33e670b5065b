package layout

import "github.com/anyos-project/anytoolchain/internal/buildutil"

// PartitionEntry is one of the four classic MBR partition table slots.
type PartitionEntry struct {
	Bootable    bool
	Type        byte
	StartLBA    uint32
	SectorCount uint32
}

// WriteMBRPartitionTable writes up to four partition entries into the
// 64-byte MBR partition table at bytes 446..509 of sector 0, followed by
// the boot signature at bytes 510..511. sector0 must already hold Stage 1
// at bytes 0..445 (spec §4.4.1: "Stage 1 is crafted small enough to leave
// this space free").
func WriteMBRPartitionTable(sector0 []byte, entries []PartitionEntry) {
	const tableOffset = 446
	for i := 0; i < 4; i++ {
		off := tableOffset + i*16
		if i >= len(entries) {
			for j := 0; j < 16; j++ {
				sector0[off+j] = 0
			}
			continue
		}
		writePartitionEntry(sector0[off:off+16], entries[i])
	}
	sector0[510] = 0x55
	sector0[511] = 0xAA
}

func writePartitionEntry(dst []byte, e PartitionEntry) {
	if e.Bootable {
		dst[0] = 0x80
	} else {
		dst[0] = 0x00
	}
	// CHS fields are not interpreted by any consumer of this toolchain's
	// images; LBA addressing is used throughout, so the legacy CHS triplets
	// are left at the conventional "overflow" placeholder.
	dst[1], dst[2], dst[3] = 0xFE, 0xFF, 0xFF
	dst[4] = e.Type
	dst[5], dst[6], dst[7] = 0xFE, 0xFF, 0xFF
	putU32LE(dst[8:12], e.StartLBA)
	putU32LE(dst[12:16], e.SectorCount)
}

func putU32LE(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

// ProtectiveMBR builds the GPT protective MBR (spec §4.4.1): sector 0
// with a single partition entry of type 0xEE spanning the disk (or
// 0xFFFFFFFF when the disk exceeds 32-bit LBA addressing), preventing
// legacy tools from treating a GPT disk as unformatted.
func ProtectiveMBR(totalSectors uint64) []byte {
	buf := buildutil.NewBuf(SectorSize)
	buf.Zero(SectorSize)
	sector := buf.Bytes()

	span := totalSectors - 1
	if span > 0xFFFFFFFF {
		span = 0xFFFFFFFF
	}
	WriteMBRPartitionTable(sector, []PartitionEntry{
		{Bootable: false, Type: 0xEE, StartLBA: 1, SectorCount: uint32(span)},
	})
	return sector
}
