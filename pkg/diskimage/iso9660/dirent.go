package iso9660

import (
	"strings"

	"github.com/anyos-project/anytoolchain/internal/buildutil"
)

// DirRecord is one ISO-9660 directory record (spec §4.4.4).
type DirRecord struct {
	Name      string // "" or "." / ".." handled by the special-identifier callers
	Directory bool
	ExtentLBA uint32
	DataLength uint32
}

// FileIdentifier renders name per spec §4.4.4: uppercased, suffixed
// ";1" (a "." is inserted before ";1" if the name has no extension),
// directories left bare (uppercased, no version suffix).
func FileIdentifier(name string, directory bool) string {
	up := toUpperASCII(name)
	if directory {
		return up
	}
	if !strings.Contains(up, ".") {
		up += "."
	}
	return up + ";1"
}

// BuildDirRecord renders one directory record for a named entry (not a
// "." or ".." self-reference, which BuildSelfRecords handles).
func BuildDirRecord(r DirRecord) []byte {
	ident := FileIdentifier(r.Name, r.Directory)
	return buildRecord(ident, r.Directory, r.ExtentLBA, r.DataLength)
}

// BuildSelfRecords renders the "." and ".." records every directory
// extent begins with.
func BuildSelfRecords(selfLBA, selfLen, parentLBA, parentLen uint32) []byte {
	var out []byte
	out = append(out, buildSpecialRecord(0x00, selfLBA, selfLen)...)
	out = append(out, buildSpecialRecord(0x01, parentLBA, parentLen)...)
	return out
}

func buildSpecialRecord(ident byte, extentLBA, dataLength uint32) []byte {
	buf := buildutil.NewBuf(34)
	length := 34
	buf.WriteByte(byte(length))
	buf.WriteByte(0)
	bothEndianU32(buf, extentLBA)
	bothEndianU32(buf, dataLength)
	buf.Write(dirRecordDateTime())
	buf.WriteByte(0x02) // directory flag
	buf.WriteByte(0)
	buf.WriteByte(0)
	bothEndianU16(buf, 1)
	buf.WriteByte(1)
	buf.WriteByte(ident)
	return buf.Bytes()
}

func buildRecord(ident string, directory bool, extentLBA, dataLength uint32) []byte {
	idBytes := []byte(ident)
	recLen := 33 + len(idBytes)
	if recLen%2 != 0 {
		recLen++
	}

	buf := buildutil.NewBuf(recLen)
	buf.WriteByte(byte(recLen))
	buf.WriteByte(0) // extended attribute record length
	bothEndianU32(buf, extentLBA)
	bothEndianU32(buf, dataLength)
	buf.Write(dirRecordDateTime())

	flags := byte(0)
	if directory {
		flags = 0x02
	}
	buf.WriteByte(flags)
	buf.WriteByte(0) // file unit size
	buf.WriteByte(0) // interleave gap size
	bothEndianU16(buf, 1)
	buf.WriteByte(byte(len(idBytes)))
	buf.Write(idBytes)
	if len(idBytes)%2 == 0 {
		buf.WriteByte(0) // padding byte
	}
	return buf.Bytes()
}
