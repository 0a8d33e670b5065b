// Package fat16 implements the classic FAT16 formatter used for the
// UEFI ESP partition (spec §4.4.3): BPB, one FAT pair, a 512-entry root
// directory, and long-filename (VFAT) entries alongside 8.3 short names.
package fat16

import "github.com/anyos-project/anytoolchain/internal/buildutil"

const (
	SectorSize     = 512
	RootEntryCount = 512
	EntrySize      = 32

	ClusterFree = 0x0000
	ClusterEOF  = 0xFFFF
	ClusterBad  = 0xFFF7

	AttrReadOnly  = 0x01
	AttrHidden    = 0x02
	AttrSystem    = 0x04
	AttrVolumeID  = 0x08
	AttrDirectory = 0x10
	AttrArchive   = 0x20
	AttrLongName  = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeID
)

// BPBParams are the fields a FAT16 BIOS Parameter Block needs.
type BPBParams struct {
	SectorsPerCluster byte
	ReservedSectors   uint16
	NumberOfFATs      byte
	SectorsPerFAT     uint16
	TotalSectors      uint32
	VolumeSerial      uint32
	VolumeLabel       string // padded/truncated to 11 bytes
}

// BuildBootSector renders a 512-byte FAT16 boot sector (BPB + a minimal
// BS_ stub) with the 0x55AA signature.
func BuildBootSector(p BPBParams) []byte {
	buf := buildutil.NewBuf(SectorSize)

	buf.WriteByte(0xEB) // jmp short
	buf.WriteByte(0x3C)
	buf.WriteByte(0x90)
	buf.Write([]byte("ANYTLCHN")) // OEM name, 8 bytes

	buf.Uint16LE(SectorSize)
	buf.WriteByte(p.SectorsPerCluster)
	buf.Uint16LE(p.ReservedSectors)
	buf.WriteByte(p.NumberOfFATs)
	buf.Uint16LE(RootEntryCount)
	buf.Uint16LE(0) // TotalSectors16, 0 since we always use the 32-bit field
	buf.WriteByte(0xF8) // media descriptor, fixed disk
	buf.Uint16LE(p.SectorsPerFAT)
	buf.Uint16LE(63) // sectors per track, nominal
	buf.Uint16LE(255) // heads, nominal
	buf.Uint32LE(0)   // hidden sectors; caller's partition offset is tracked by mkimage, not the BPB
	buf.Uint32LE(p.TotalSectors)

	buf.WriteByte(0x80) // drive number
	buf.WriteByte(0)    // reserved
	buf.WriteByte(0x29) // boot signature, extended BPB present
	buf.Uint32LE(p.VolumeSerial)
	buf.Write(padLabel(p.VolumeLabel, 11))
	buf.Write([]byte("FAT16   ")) // filesystem type, 8 bytes

	buf.Zero(SectorSize - buf.Len() - 2)
	buf.WriteByte(0x55)
	buf.WriteByte(0xAA)
	return buf.Bytes()
}

func padLabel(s string, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = ' '
	}
	copy(out, s)
	return out
}
