package fat16

import "strings"

const charsPerLFNEntry = 13

// needsLFN reports whether name requires a long-filename entry prelude
// (spec §4.4.3): anything that isn't already a clean uppercase 8.3 name
// free of the disallowed characters.
func needsLFN(name string) bool {
	if strings.ContainsAny(name, ` +,;=[]`) {
		return true
	}
	if name != strings.ToUpper(name) {
		return true
	}
	base, ext, _ := split83(name)
	if strings.Count(name, ".") > 1 {
		return true
	}
	return len(base) > 8 || len(ext) > 3
}

func split83(name string) (base, ext string, ok bool) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:], true
	}
	return name, "", true
}

// ShortNameAllocator hands out unique 8.3 short names, appending a
// "~N" collision counter to the base when two long names collapse to
// the same uppercased (base, ext) pair (spec §4.4.3).
type ShortNameAllocator struct {
	counts map[string]int // uppercased "base.ext" -> next collision counter
}

// NewShortNameAllocator returns an empty allocator.
func NewShortNameAllocator() *ShortNameAllocator {
	return &ShortNameAllocator{counts: make(map[string]int)}
}

// Allocate returns the 11-byte space-padded short name for longName,
// uppercased and truncated to 8.3, with a "~N" tail inserted if needed
// to disambiguate a collision.
func (a *ShortNameAllocator) Allocate(longName string) [11]byte {
	base, ext, _ := split83(longName)
	base = sanitize83(strings.ToUpper(base))
	ext = sanitize83(strings.ToUpper(ext))
	if len(ext) > 3 {
		ext = ext[:3]
	}

	shortBase := base
	if len(shortBase) > 8 {
		shortBase = shortBase[:8]
	}
	key := shortBase + "." + ext

	if n := a.counts[key]; n > 0 || needsLFN(longName) {
		n++
		a.counts[key] = n
		tail := itoa(n)
		maxBase := 8 - len(tail) - 1
		if maxBase > len(base) {
			maxBase = len(base)
		}
		if maxBase < 0 {
			maxBase = 0
		}
		shortBase = base[:maxBase] + "~" + tail
	} else {
		a.counts[key] = 1
	}

	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	copy(out[0:8], shortBase)
	copy(out[8:11], ext)
	return out
}

func sanitize83(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(` +,;=[]`, r) || r == '.' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// lfnChecksum computes the standard VFAT checksum of an 11-byte short
// name, stored in every LFN entry belonging to that short name's entry
// set.
func lfnChecksum(shortName [11]byte) byte {
	var sum byte
	for _, c := range shortName {
		sum = ((sum & 1) << 7) + (sum >> 1) + c
	}
	return sum
}

// BuildLFNEntries renders the sequence of 0x0F long-filename entries for
// longName, in on-disk order (the last logical chunk first, its
// sequence byte ORed with 0x40, per spec §4.4.3), each carrying the
// given short name's checksum.
func BuildLFNEntries(longName string, shortName [11]byte) [][]byte {
	units := toUTF16(longName)
	n := (len(units) + charsPerLFNEntry - 1) / charsPerLFNEntry
	if n == 0 {
		n = 1
	}
	checksum := lfnChecksum(shortName)

	entries := make([][]byte, n)
	for i := 0; i < n; i++ {
		seq := byte(i + 1)
		if i == n-1 {
			seq |= 0x40
		}
		chunk := make([]uint16, charsPerLFNEntry)
		for j := range chunk {
			idx := i*charsPerLFNEntry + j
			if idx < len(units) {
				chunk[j] = units[idx]
			} else if idx == len(units) {
				chunk[j] = 0x0000
			} else {
				chunk[j] = 0xFFFF
			}
		}

		e := make([]byte, EntrySize)
		e[0] = seq
		putUnits(e[1:11], chunk[0:5])
		e[11] = AttrLongName
		e[12] = 0
		e[13] = checksum
		putUnits(e[14:26], chunk[5:11])
		putU16(e[26:28], 0)
		putUnits(e[28:32], chunk[11:13])

		// entries are emitted in reverse chunk order on disk
		entries[n-1-i] = e
	}
	return entries
}

func putUnits(dst []byte, units []uint16) {
	for i, u := range units {
		putU16(dst[2*i:2*i+2], u)
	}
}

func putU16(dst []byte, v uint16) { dst[0], dst[1] = byte(v), byte(v>>8) }

func toUTF16(s string) []uint16 {
	out := make([]uint16, 0, len(s))
	for _, r := range s {
		out = append(out, uint16(r))
	}
	return out
}

// DirEntry is one FAT16 short-name directory entry (the 0x85-style
// File entry in exFAT terms, here the classic 32-byte DOS entry).
type DirEntry struct {
	LongName     string
	Directory    bool
	FirstCluster uint16
	FileSize     uint32
}

// BuildEntrySet renders the LFN prelude (if longName needs one) plus the
// short-name entry for e, using alloc to assign e's unique 8.3 name.
func BuildEntrySet(e DirEntry, alloc *ShortNameAllocator) []byte {
	short := alloc.Allocate(e.LongName)

	var out []byte
	if needsLFN(e.LongName) {
		for _, lfn := range BuildLFNEntries(e.LongName, short) {
			out = append(out, lfn...)
		}
	}

	attr := byte(AttrArchive)
	if e.Directory {
		attr = AttrDirectory
	}

	d := make([]byte, EntrySize)
	copy(d[0:11], short[:])
	d[11] = attr
	putU16(d[26:28], e.FirstCluster)
	putU32(d[28:32], e.FileSize)
	out = append(out, d...)
	return out
}

func putU32(dst []byte, v uint32) {
	dst[0], dst[1], dst[2], dst[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
