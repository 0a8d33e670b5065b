package iso9660

// PathTableEntry is one row of an ISO-9660 path table: a directory's
// name, the LBA of its extent, and the 1-based index of its parent
// directory's own path table entry (the root's parent is itself, index
// 1, per the standard's convention).
type PathTableEntry struct {
	Name        string // "" for the root
	ExtentLBA   uint32
	ParentIndex uint16
}

// BuildPathTable renders a path table in either the little-endian (L)
// or big-endian (M) on-disk form (spec §4.4.4: "path tables (L and M
// forms)"), padding the whole table to an even byte length.
func BuildPathTable(entries []PathTableEntry, bigEndian bool) []byte {
	var out []byte
	for _, e := range entries {
		name := e.Name
		identLen := byte(1)
		ident := []byte{0x00}
		if name != "" {
			ident = []byte(toUpperASCII(name))
			identLen = byte(len(ident))
		}

		row := make([]byte, 8+len(ident))
		row[0] = identLen
		row[1] = 0 // extended attribute record length
		if bigEndian {
			putBE32(row[2:6], e.ExtentLBA)
			row[6], row[7] = byte(e.ParentIndex>>8), byte(e.ParentIndex)
		} else {
			putU32LE(row[2:6], e.ExtentLBA)
			putU16LE(row[6:8], e.ParentIndex)
		}
		copy(row[8:], ident)
		if len(ident)%2 != 0 {
			row = append(row, 0)
		}
		out = append(out, row...)
	}
	return out
}
