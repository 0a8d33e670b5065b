// Package iso9660 implements the ISO-9660 + El Torito image writer used
// for the CD-bootable mode (spec §4.4.1/§4.4.4): volume descriptors, an
// El Torito no-emulation boot catalog, L/M path tables, and directory
// extents built from a sysroot tree.
package iso9660

import "github.com/anyos-project/anytoolchain/internal/buildutil"

const (
	BlockSize = 2048

	PVDBlock            = 16
	BootRecordBlock      = 17
	TerminatorBlock      = 18
	BootCatalogBlock     = 19
	PathTableLBlock      = 20
	PathTableMBlock      = 21
	BootImageBlock       = 22
	BootImageBlocks      = 32 * 1024 / BlockSize // 32 KiB no-emulation image
	DirectoryExtentStart = 38

	VolumeDescriptorTypePrimary    = 1
	VolumeDescriptorTypeBootRecord = 0
	VolumeDescriptorTypeTerminator = 255
	VolumeDescriptorVersion        = 1

	ElToritoSystemID = "EL TORITO SPECIFICATION"
)

func putU16LE(dst []byte, v uint16) { dst[0], dst[1] = byte(v), byte(v>>8) }
func putU32LE(dst []byte, v uint32) {
	dst[0], dst[1], dst[2], dst[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}

// bothEndianU16 appends v as little-endian then big-endian, the ISO-9660
// "both-endian" field convention.
func bothEndianU16(buf *buildutil.Buf, v uint16) {
	buf.Uint16LE(v)
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v))
}

// bothEndianU32 appends v as little-endian then big-endian.
func bothEndianU32(buf *buildutil.Buf, v uint32) {
	buf.Uint32LE(v)
	buf.WriteByte(byte(v >> 24))
	buf.WriteByte(byte(v >> 16))
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v))
}

// decDateTime renders the 17-byte ISO-9660 volume descriptor timestamp
// format: 16 ASCII digits (YYYYMMDDHHMMSSCC centiseconds) plus a signed
// GMT-offset byte. An all-zero-digit timestamp (as used here, since this
// toolchain's builds must be reproducible) represents "not specified"
// per the standard.
func decDateTime() []byte {
	out := make([]byte, 17)
	for i := 0; i < 16; i++ {
		out[i] = '0'
	}
	out[16] = 0
	return out
}

// dirRecordDateTime is the 7-byte binary timestamp directory records
// use (years-since-1900, month, day, hour, minute, second, GMT offset).
// All-zero represents an unspecified time, matching decDateTime's choice
// for reproducible builds.
func dirRecordDateTime() []byte {
	return make([]byte, 7)
}

// strDChars uppercases and space-pads/truncates s to n bytes, the
// d-characters convention ISO-9660 identifiers use.
func strDChars(s string, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = ' '
	}
	up := []byte(toUpperASCII(s))
	if len(up) > n {
		up = up[:n]
	}
	copy(out, up)
	return out
}

func toUpperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
