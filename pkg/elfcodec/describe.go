package elfcodec

import (
	"fmt"

	"github.com/anyos-project/anytoolchain/pkg/utils"
)

// Describe reports, without writing an output file, the segment table
// and the format-specific header fields that Convert would emit for the
// same (format, inPath, opts) — the --describe expansion used for
// build-script debugging.
func Describe(format Format, inPath string, opts Options) (string, error) {
	f, err := OpenELF(inPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	segs, err := LoadSegments(f)
	if err != nil {
		return "", err
	}

	out := fmt.Sprintf("format: %s\nmachine: %v\nsegments:\n", format, f.Machine)
	for _, s := range segs {
		perm := "R"
		if s.Write {
			perm += "W"
		}
		if s.Execute {
			perm += "X"
		}
		out += fmt.Sprintf("  vaddr=%s paddr=%s filesz=%s memsz=%s %s\n",
			utils.FormatUintHex(s.VAddr, 10), utils.FormatUintHex(s.Paddr, 10),
			utils.FormatUintHex(s.Filesz, 8), utils.FormatUintHex(s.Memsz, 8), perm)
	}

	switch format {
	case FormatBin:
		_, base, err := Bin(segs)
		if err != nil {
			return "", err
		}
		out += fmt.Sprintf("flattened base: 0x%x\n", base)

	case FormatPflat:
		buf, err := Pflat(segs, opts.Base)
		if err != nil {
			return "", err
		}
		out += fmt.Sprintf("pflat base: 0x%x, size: 0x%x\n", opts.Base, len(buf))

	case FormatDlib:
		var ro, rw []Segment
		for _, s := range segs {
			if s.Write {
				rw = append(rw, s)
			} else {
				ro = append(ro, s)
			}
		}
		roBuf, roBase, err := flattenGroup(ro)
		if err != nil {
			return "", err
		}
		rwBuf, _, rwMemsz, err := flattenRW(rw)
		if err != nil {
			return "", err
		}
		dataPages := pagesFor(uint64(len(rwBuf)))
		out += fmt.Sprintf("dlib header: base=0x%x ro_pages=%d data_pages=%d bss_pages=%d\n",
			roBase, pagesFor(uint64(len(roBuf))), dataPages, pagesFor(rwMemsz)-dataPages)

	case FormatKdrv:
		sym := opts.ExportsSymbol
		if sym == "" {
			sym = DefaultExportsSymbol
		}
		val, err := FindSymbol(f, sym)
		if err != nil {
			return "", err
		}
		base := segs[0].VAddr &^ (pageSize - 1)
		for _, s := range segs {
			if s.VAddr < base {
				base = s.VAddr &^ (pageSize - 1)
			}
		}
		out += fmt.Sprintf("kdrv header: exports_symbol=%s exports_offset=0x%x\n", sym, pageSize+(val-base))

	default:
		return "", fmt.Errorf("elfcodec: unknown format %q", format)
	}

	return out, nil
}
