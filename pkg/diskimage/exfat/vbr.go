package exfat

import "github.com/anyos-project/anytoolchain/internal/buildutil"

// BootSectorParams are the fields of the exFAT Main Boot Sector (spec
// §3 "Filesystem context", §4.4.2).
type BootSectorParams struct {
	PartitionOffset   uint64
	VolumeLength      uint64 // in sectors
	FATOffset         uint32 // in sectors, from the partition start
	FATLength         uint32 // in sectors
	ClusterHeapOffset uint32 // in sectors
	ClusterCount      uint32
	RootDirCluster    uint32
	VolumeSerial      uint32
	BytesPerSectorShift   byte // 9 => 512-byte sectors
	SectorsPerClusterShift byte
	NumberOfFATs      byte
}

// BuildBootSector renders one 512-byte Main Boot Sector. The checksum
// over the first 11 sectors of the boot region is computed separately by
// BuildBootRegion once every sector is assembled.
func BuildBootSector(p BootSectorParams) []byte {
	buf := buildutil.NewBuf(512)
	buf.Zero(3) // jmp boot (unused: this volume is never booted directly)
	buf.Write([]byte("EXFAT   "))
	buf.Zero(53) // must-be-zero region
	buf.Uint64LE(p.PartitionOffset)
	buf.Uint64LE(p.VolumeLength)
	buf.Uint32LE(p.FATOffset)
	buf.Uint32LE(p.FATLength)
	buf.Uint32LE(p.ClusterHeapOffset)
	buf.Uint32LE(p.ClusterCount)
	buf.Uint32LE(p.RootDirCluster)
	buf.Uint32LE(p.VolumeSerial)
	buf.Uint16LE(0x0100) // FileSystemRevision 1.00
	buf.Uint16LE(0)      // VolumeFlags (checksum-excluded field)
	buf.WriteByte(p.BytesPerSectorShift)
	buf.WriteByte(p.SectorsPerClusterShift)
	buf.WriteByte(p.NumberOfFATs)
	buf.WriteByte(0x80) // DriveSelect
	buf.WriteByte(0)    // PercentInUse (checksum-excluded field)
	buf.Zero(7)         // reserved
	buf.Zero(390)       // boot code
	buf.Uint16LE(0xAA55)
	return buf.Bytes()
}

// BuildBootRegion assembles the full 12-sector (6144-byte) boot region:
// the main boot sector, 8 extended boot sectors, the OEM parameters
// sector, a reserved sector, and a checksum sector holding the 32-bit
// boot checksum repeated every 4 bytes (spec §4.4.2). The same region is
// written twice (main at sector 0, backup at sector 12).
func BuildBootRegion(bootSector []byte) []byte {
	region := buildutil.NewBuf(12 * 512)
	region.Write(bootSector)
	for i := 0; i < 8; i++ { // extended boot sectors: zero body, trailing 0x55AA signature
		region.Zero(512 - 4)
		region.Zero(2)
		region.WriteByte(0x55)
		region.WriteByte(0xAA)
	}
	region.Zero(512) // OEM parameters sector (unused)
	region.Zero(512) // reserved sector

	sum := BootChecksum(region.Bytes())
	checksumSector := make([]byte, 512)
	for i := 0; i < 512; i += 4 {
		checksumSector[i] = byte(sum)
		checksumSector[i+1] = byte(sum >> 8)
		checksumSector[i+2] = byte(sum >> 16)
		checksumSector[i+3] = byte(sum >> 24)
	}
	region.Write(checksumSector)
	return region.Bytes()
}
