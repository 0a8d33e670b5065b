// Package objlink implements the static ELF64 object linker (anyld):
// ingesting .o/ar inputs, merging sections, resolving symbols, selecting
// exports, laying out and relocating an ET_DYN output.
package objlink

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

const arMagic = "!<arch>\n"

// arMember is one file extracted from an `ar` archive.
type arMember struct {
	Name string
	Data []byte
}

// readArchive parses a GNU-style ar archive, resolving the `//` long-name
// table and `/N` references into real member names (spec §4.2.1).
func readArchive(data []byte) ([]arMember, error) {
	if !bytes.HasPrefix(data, []byte(arMagic)) {
		return nil, fmt.Errorf("objlink: not an ar archive (bad magic)")
	}

	pos := len(arMagic)
	var longNames []byte
	var members []arMember

	for pos+60 <= len(data) {
		header := data[pos : pos+60]
		pos += 60

		name := strings.TrimRight(string(header[0:16]), " ")
		sizeStr := strings.TrimSpace(string(header[48:58]))
		size, err := strconv.Atoi(sizeStr)
		if err != nil {
			return nil, fmt.Errorf("objlink: malformed ar header size %q: %w", sizeStr, err)
		}
		if pos+size > len(data) {
			return nil, fmt.Errorf("objlink: ar member %q overruns archive", name)
		}
		content := data[pos : pos+size]
		pos += size
		if size%2 == 1 {
			pos++ // 2-byte alignment padding
		}

		switch {
		case name == "//":
			longNames = content
			continue
		case name == "/" || name == "/SYM64/":
			continue // symbol index table, not needed: we resolve by scanning all members
		case strings.HasPrefix(name, "/"):
			offsetStr := strings.TrimSuffix(name[1:], "")
			off, err := strconv.Atoi(offsetStr)
			if err != nil {
				return nil, fmt.Errorf("objlink: malformed long-name reference %q", name)
			}
			name = extractLongName(longNames, off)
		default:
			name = strings.TrimSuffix(name, "/")
		}

		members = append(members, arMember{Name: name, Data: content})
	}

	return members, nil
}

func extractLongName(table []byte, offset int) string {
	if offset < 0 || offset >= len(table) {
		return fmt.Sprintf("<invalid-long-name@%d>", offset)
	}
	end := bytes.IndexByte(table[offset:], '\n')
	if end < 0 {
		end = len(table) - offset
	}
	return strings.TrimRight(string(table[offset:offset+end]), "/")
}
