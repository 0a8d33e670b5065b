package iso9660

import "github.com/anyos-project/anytoolchain/internal/buildutil"

// BuildBootRecordVolumeDescriptor renders the Boot Record Volume
// Descriptor at block 17: identifies El Torito and points at the boot
// catalog's LBA at offset 71 (spec §4.4.4).
func BuildBootRecordVolumeDescriptor(bootCatalogLBA uint32) []byte {
	buf := buildutil.NewBuf(BlockSize)
	buf.WriteByte(VolumeDescriptorTypeBootRecord)
	buf.Write([]byte("CD001"))
	buf.WriteByte(VolumeDescriptorVersion)
	buf.Write(strDChars(ElToritoSystemID, 32))
	buf.Zero(32) // boot identifier, unused
	buf.Uint32LE(bootCatalogLBA)
	buf.Zero(BlockSize - buf.Len())
	return buf.Bytes()
}

// BuildVolumeDescriptorSetTerminator renders the terminator descriptor
// at block 18.
func BuildVolumeDescriptorSetTerminator() []byte {
	buf := buildutil.NewBuf(BlockSize)
	buf.WriteByte(VolumeDescriptorTypeTerminator)
	buf.Write([]byte("CD001"))
	buf.WriteByte(VolumeDescriptorVersion)
	buf.Zero(BlockSize - buf.Len())
	return buf.Bytes()
}

// BuildBootCatalog renders the El Torito boot catalog at block 19: a
// 32-byte validation entry (checksum chosen so the 16-bit LE word sum
// over the entry is zero mod 2^16, spec §8 testable property 9) followed
// by the default entry at offset 32 (bootable, no-emulation, load
// segment 0, sector count in 512-byte units, load RBA).
func BuildBootCatalog(bootImageLBA uint32, sectorCount512 uint16) []byte {
	buf := buildutil.NewBuf(BlockSize)

	buf.Write(buildValidationEntry())

	buf.WriteByte(0x88) // bootable
	buf.WriteByte(0x00) // no emulation
	buf.Uint16LE(0)      // load segment (0 == BIOS default 0x7C0)
	buf.WriteByte(0)     // system type, unused for no-emulation
	buf.WriteByte(0)     // unused
	buf.Uint16LE(sectorCount512)
	buf.Uint32LE(bootImageLBA)
	buf.Zero(20) // unused

	buf.Zero(BlockSize - buf.Len())
	return buf.Bytes()
}

// buildValidationEntry renders the 32-byte validation entry with a
// checksum chosen so the 16-bit LE word sum over the whole entry is
// zero mod 2^16 (spec §8 testable property 9).
func buildValidationEntry() []byte {
	e := make([]byte, 32)
	e[0] = 0x01 // header ID
	e[1] = 0x00 // platform: 80x86
	// bytes 2-27: reserved/ID strings, left zero
	e[30] = 0x55
	e[31] = 0xAA

	var sum uint16
	for i := 0; i < 32; i += 2 {
		if i == 28 {
			continue // checksum word itself, computed below
		}
		sum += uint16(e[i]) | uint16(e[i+1])<<8
	}
	putU16LE(e[28:30], -sum)
	return e
}
