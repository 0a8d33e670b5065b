package iso9660

import "github.com/anyos-project/anytoolchain/internal/buildutil"

// PVDParams are the fields the Primary Volume Descriptor needs.
type PVDParams struct {
	VolumeID       string
	VolumeSpaceSize uint32 // total blocks
	PathTableSize   uint32
	PathTableLLBA   uint32
	PathTableMLBA   uint32
	RootExtentLBA   uint32
	RootExtentSize  uint32
}

// BuildPVD renders the 2048-byte Primary Volume Descriptor at block 16.
func BuildPVD(p PVDParams) []byte {
	buf := buildutil.NewBuf(BlockSize)

	buf.WriteByte(VolumeDescriptorTypePrimary)
	buf.Write([]byte("CD001"))
	buf.WriteByte(VolumeDescriptorVersion)
	buf.WriteByte(0) // unused

	buf.Write(strDChars("", 32))          // system identifier
	buf.Write(strDChars(p.VolumeID, 32))  // volume identifier
	buf.Zero(8)                           // unused

	bothEndianU32(buf, p.VolumeSpaceSize)
	buf.Zero(32) // unused

	bothEndianU16(buf, 1) // volume set size
	bothEndianU16(buf, 1) // volume sequence number
	bothEndianU16(buf, BlockSize)
	bothEndianU32(buf, p.PathTableSize)

	buf.Uint32LE(p.PathTableLLBA)
	buf.Uint32LE(0) // optional path table L, unused
	var be32 [4]byte
	putBE32(be32[:], p.PathTableMLBA)
	buf.Write(be32[:])
	putBE32(be32[:], 0) // optional path table M, unused
	buf.Write(be32[:])

	// Root directory record, embedded in the PVD.
	buf.Write(rootDirectoryRecord(p.RootExtentLBA, p.RootExtentSize))

	buf.Write(strDChars("", 128)) // volume set identifier
	buf.Write(strDChars("ANYOS-PROJECT", 128)) // publisher
	buf.Write(strDChars("", 128)) // data preparer
	buf.Write(strDChars("", 128)) // application identifier
	buf.Write(strDChars("", 37))  // copyright file
	buf.Write(strDChars("", 37))  // abstract file
	buf.Write(strDChars("", 37))  // bibliographic file

	buf.Write(decDateTime()) // volume creation
	buf.Write(decDateTime()) // volume modification
	buf.Write(decDateTime()) // volume expiration
	buf.Write(decDateTime()) // volume effective

	buf.WriteByte(1) // file structure version
	buf.WriteByte(0) // reserved

	buf.Zero(BlockSize - buf.Len())
	return buf.Bytes()
}

func putBE32(dst []byte, v uint32) {
	dst[0] = byte(v >> 24)
	dst[1] = byte(v >> 16)
	dst[2] = byte(v >> 8)
	dst[3] = byte(v)
}

// rootDirectoryRecord builds the 34-byte directory record for "." used
// to describe the root directory inside the PVD itself.
func rootDirectoryRecord(extentLBA, extentSize uint32) []byte {
	buf := buildutil.NewBuf(34)
	buf.WriteByte(34) // record length
	buf.WriteByte(0)  // extended attribute record length
	bothEndianU32(buf, extentLBA)
	bothEndianU32(buf, extentSize)
	buf.Write(dirRecordDateTime())
	buf.WriteByte(0x02) // flags: directory
	buf.WriteByte(0)    // file unit size
	buf.WriteByte(0)    // interleave gap size
	bothEndianU16(buf, 1) // volume sequence number
	buf.WriteByte(1)    // file identifier length
	buf.WriteByte(0)    // file identifier: 0x00 == "."
	return buf.Bytes()
}
