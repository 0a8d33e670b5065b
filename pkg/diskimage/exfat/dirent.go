package exfat

const (
	EntryTypeFile            = 0x85
	EntryTypeStreamExtension = 0xC0
	EntryTypeFileName        = 0xC1
	EntryTypeDeletedMask     = 0x7F // clearing bit 7 marks an entry deleted (spec §4.4.5)

	AttrReadOnly  = 0x0001
	AttrHidden    = 0x0002
	AttrSystem    = 0x0004
	AttrDirectory = 0x0010
	AttrArchive   = 0x0020

	entrySize = 32
	namesPerFileNameEntry = 15
)

// Entry is one file-or-directory's worth of directory entries: one File
// entry, one Stream Extension entry, and ceil(len(name)/15) FileName
// entries, per spec §4.4.2 "entry set".
type Entry struct {
	Name         string
	Directory    bool
	FirstCluster uint32
	DataLength   uint64
	Contiguous   bool
	UID, GID, Mode uint16
}

// BuildEntrySet renders the full byte sequence for one directory entry
// (spec §4.4.2), with the set checksum already computed and patched in.
func BuildEntrySet(e Entry) []byte {
	nameUnits := ToUTF16(e.Name)
	upcased := UpcaseString(nameUnits)
	nameEntryCount := (len(nameUnits) + namesPerFileNameEntry - 1) / namesPerFileNameEntry
	if nameEntryCount == 0 {
		nameEntryCount = 1
	}

	out := make([]byte, entrySize*(2+nameEntryCount))

	attrs := uint16(AttrArchive)
	if e.Directory {
		attrs = AttrDirectory
	}

	fileEntry := out[0:entrySize]
	fileEntry[0] = EntryTypeFile
	fileEntry[1] = byte(1 + nameEntryCount) // SecondaryCount
	putU16(fileEntry[4:6], attrs)
	putU16(fileEntry[6:8], e.UID)
	putU16(fileEntry[8:10], e.GID)
	putU16(fileEntry[10:12], e.Mode)

	stream := out[entrySize : 2*entrySize]
	stream[0] = EntryTypeStreamExtension
	flags := byte(0x01) // AllocationPossible
	if e.Contiguous {
		flags |= 0x02 // NoFatChain
	}
	stream[1] = flags
	stream[3] = byte(len(nameUnits))
	putU16(stream[4:6], NameHash(upcased))
	putU64(stream[8:16], e.DataLength) // ValidDataLength == DataLength (no sparse files)
	putU32(stream[20:24], e.FirstCluster)
	putU64(stream[24:32], e.DataLength)

	for i := 0; i < nameEntryCount; i++ {
		dst := out[entrySize*(2+i) : entrySize*(3+i)]
		dst[0] = EntryTypeFileName
		for j := 0; j < namesPerFileNameEntry; j++ {
			idx := i*namesPerFileNameEntry + j
			if idx >= len(nameUnits) {
				putU16(dst[2+2*j:4+2*j], 0xFFFF)
				continue
			}
			putU16(dst[2+2*j:4+2*j], nameUnits[idx])
		}
	}

	checksum := EntrySetChecksum(out)
	putU16(out[2:4], checksum)
	return out
}

// ParseEntrySet reads an entry set back from raw directory bytes starting
// at the File entry, using its SecondaryCount to determine the set's
// total length. Returns nil if entries[0] is not a live File entry.
func ParseEntrySet(entries []byte) (*Entry, int) {
	if len(entries) < entrySize || entries[0] != EntryTypeFile {
		return nil, 0
	}
	secondaryCount := int(entries[1])
	total := (1 + secondaryCount) * entrySize
	if total > len(entries) {
		return nil, 0
	}

	attrs := getU16(entries[4:6])
	e := &Entry{
		Directory: attrs&AttrDirectory != 0,
		UID:       getU16(entries[6:8]),
		GID:       getU16(entries[8:10]),
		Mode:      getU16(entries[10:12]),
	}

	if secondaryCount < 1 || entries[entrySize] != EntryTypeStreamExtension {
		return nil, 0
	}
	stream := entries[entrySize : 2*entrySize]
	nameLen := int(stream[3])
	e.Contiguous = stream[1]&0x02 != 0
	e.FirstCluster = getU32(stream[20:24])
	e.DataLength = getU64(stream[24:32])

	var nameUnits []uint16
	nameEntries := secondaryCount - 1
	for i := 0; i < nameEntries; i++ {
		off := entrySize * (2 + i)
		if entries[off] != EntryTypeFileName {
			break
		}
		for j := 0; j < namesPerFileNameEntry && len(nameUnits) < nameLen; j++ {
			nameUnits = append(nameUnits, getU16(entries[off+2+2*j:off+4+2*j]))
		}
	}
	e.Name = fromUTF16(nameUnits)

	return e, total / entrySize
}

func putU16(dst []byte, v uint16) { dst[0], dst[1] = byte(v), byte(v>>8) }
func putU32(dst []byte, v uint32) {
	dst[0], dst[1], dst[2], dst[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
func putU64(dst []byte, v uint64) {
	for i := 0; i < 8; i++ {
		dst[i] = byte(v >> (8 * i))
	}
}

func getU16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func getU64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func fromUTF16(units []uint16) string {
	out := make([]rune, len(units))
	for i, u := range units {
		out[i] = rune(u)
	}
	return string(out)
}
