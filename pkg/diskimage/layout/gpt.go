package layout

import (
	"crypto/rand"
	"hash/crc32"

	"github.com/anyos-project/anytoolchain/internal/buildutil"
)

// GUID is a 16-byte GPT/EFI globally unique identifier, stored as the
// raw mixed-endian byte layout the UEFI spec defines (not re-encoded
// here; callers that need the canonical string form are outside this
// package's scope).
type GUID [16]byte

// NewGUID returns a random v4-ish GUID suitable for disk/partition
// identifiers; the partition-entry GUID only needs to be unique within
// the image, not cryptographically random, but crypto/rand is the
// simplest source of 16 unpredictable bytes available without adding a
// UUID dependency the rest of the pack never uses.
func NewGUID() GUID {
	var g GUID
	_, _ = rand.Read(g[:])
	g[6] = (g[6] & 0x0F) | 0x40
	g[8] = (g[8] & 0x3F) | 0x80
	return g
}

// PartitionSpec describes one GPT partition table entry.
type PartitionSpec struct {
	TypeGUID   GUID
	UniqueGUID GUID
	FirstLBA   uint64
	LastLBA    uint64
	Name       string // UTF-16LE encoded, truncated to 36 code units
	Attributes uint64
}

// EFISystemPartitionTypeGUID is the well-known "ESP" type GUID
// (C12A7328-F81F-11D2-BA4B-00A0C93EC93B) in its on-disk mixed-endian
// byte order.
var EFISystemPartitionTypeGUID = GUID{
	0x28, 0x73, 0x2A, 0xC1, 0x1F, 0xF8, 0xD2, 0x11,
	0xBA, 0x4B, 0x00, 0xA0, 0xC9, 0x3E, 0xC9, 0x3B,
}

// BasicDataPartitionTypeGUID (EBD0A0A2-B9E5-4433-87C0-68B6B72699C7) is
// used for this toolchain's exFAT data partition.
var BasicDataPartitionTypeGUID = GUID{
	0xA2, 0xA0, 0xD0, 0xEB, 0xE5, 0xB9, 0x33, 0x44,
	0x87, 0xC0, 0x68, 0xB6, 0xB7, 0x26, 0x99, 0xC7,
}

func writeEntry(dst []byte, p PartitionSpec) {
	copy(dst[0:16], p.TypeGUID[:])
	copy(dst[16:32], p.UniqueGUID[:])
	putU64LE(dst[32:40], p.FirstLBA)
	putU64LE(dst[40:48], p.LastLBA)
	putU64LE(dst[48:56], p.Attributes)
	name := encodeUTF16LE(p.Name, 36)
	copy(dst[56:128], name)
}

func putU64LE(dst []byte, v uint64) {
	for i := 0; i < 8; i++ {
		dst[i] = byte(v >> (8 * i))
	}
}

func encodeUTF16LE(s string, maxUnits int) []byte {
	out := make([]byte, 0, maxUnits*2)
	for _, r := range s {
		if len(out)/2 >= maxUnits {
			break
		}
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}

// BuildEntries renders the GPT partition entry array (GPTEntryCount
// slots of GPTEntrySize bytes each, unused slots zeroed).
func BuildEntries(specs []PartitionSpec) []byte {
	buf := buildutil.NewBuf(GPTEntryCount * GPTEntrySize)
	buf.Zero(GPTEntryCount * GPTEntrySize)
	entries := buf.Bytes()
	for i, p := range specs {
		if i >= GPTEntryCount {
			break
		}
		writeEntry(entries[i*GPTEntrySize:(i+1)*GPTEntrySize], p)
	}
	return entries
}

// Header holds the fields of a GPT header (spec §4.4.1: primary at LBA
// 1, entries at LBA 2, backup at the last sectors).
type Header struct {
	DiskGUID           GUID
	CurrentLBA         uint64
	BackupLBA          uint64
	FirstUsableLBA     uint64
	LastUsableLBA      uint64
	PartitionEntryLBA  uint64
	NumPartitionEntries uint32
	Entries            []byte // pre-built via BuildEntries
}

// Build renders the 92-byte-significant, 512-byte (sector-padded) GPT
// header with both CRC fields correctly computed: the partition-array
// CRC first (needed by the header CRC itself), then the header CRC per
// spec §8 testable property 10.
func (h Header) Build() []byte {
	buf := buildutil.NewBuf(SectorSize)
	buf.Write([]byte("EFI PART"))
	buf.Uint32LE(0x00010000) // revision 1.0
	buf.Uint32LE(92)         // header size
	buf.Uint32LE(0)          // header CRC32, patched below
	buf.Uint32LE(0)          // reserved
	buf.Uint64LE(h.CurrentLBA)
	buf.Uint64LE(h.BackupLBA)
	buf.Uint64LE(h.FirstUsableLBA)
	buf.Uint64LE(h.LastUsableLBA)
	buf.Write(h.DiskGUID[:])
	buf.Uint64LE(h.PartitionEntryLBA)
	buf.Uint32LE(h.NumPartitionEntries)
	buf.Uint32LE(GPTEntrySize)
	buf.Uint32LE(crc32.ChecksumIEEE(h.Entries))
	buf.Zero(SectorSize - buf.Len())

	out := buf.Bytes()
	var hdr92 [92]byte
	copy(hdr92[:], out[:92])
	crc := GPTHeaderCRC(hdr92)
	buf.PutUint32LE(16, crc)
	return buf.Bytes()
}
