package elfcodec

import (
	"debug/elf"
	"fmt"
	"sort"

	"github.com/anyos-project/anytoolchain/internal/buildutil"
)

const (
	kdrvMagic      = "KDRV"
	kdrvVersion    = 1
	kdrvABIVersion = 1

	// DefaultExportsSymbol is the symbol name looked up when no
	// --exports-symbol flag is given (spec §4.3).
	DefaultExportsSymbol = "DRIVER_EXPORTS"
)

// Kdrv is ELF64-only: it sorts PT_LOAD segments by virtual address,
// page-aligns the base, separates code (non-writable) from data
// (writable), and locates exportsSymbol to compute exports_offset.
func Kdrv(f *elf.File, segs []Segment, exportsSymbol string, path string) error {
	if f.Class != elf.ELFCLASS64 {
		return fmt.Errorf("elfcodec: kdrv requires ELF64 input")
	}

	sorted := make([]Segment, len(segs))
	copy(sorted, segs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].VAddr < sorted[j].VAddr })

	base := sorted[0].VAddr &^ (pageSize - 1)

	var code, data []Segment
	for _, s := range sorted {
		if s.Write {
			data = append(data, s)
		} else {
			code = append(code, s)
		}
	}

	codeBuf, err := flattenAt(code, base)
	if err != nil {
		return fmt.Errorf("elfcodec: kdrv: code segments: %w", err)
	}
	dataBuf, dataMemsz, err := flattenAtWithMemsz(data, base)
	if err != nil {
		return fmt.Errorf("elfcodec: kdrv: data segments: %w", err)
	}

	if exportsSymbol == "" {
		exportsSymbol = DefaultExportsSymbol
	}
	symVal, err := FindSymbol(f, exportsSymbol)
	if err != nil {
		return fmt.Errorf("elfcodec: kdrv: %w", err)
	}
	if symVal < base {
		return fmt.Errorf("elfcodec: kdrv: exports symbol %q at 0x%x is below image base 0x%x", exportsSymbol, symVal, base)
	}
	exportsOffset := uint64(pageSize) + (symVal - base)

	codePages := pagesFor(uint64(len(codeBuf)))
	dataPages := pagesFor(uint64(len(dataBuf)))
	bssPages := pagesFor(dataMemsz) - dataPages

	out := buildutil.NewBuf(headerSize + int(codePages+dataPages)*pageSize)
	out.Write([]byte(kdrvMagic))
	out.Uint32LE(kdrvVersion)
	out.Uint32LE(kdrvABIVersion)
	out.Uint32LE(0) // flags
	out.Uint64LE(exportsOffset)
	out.Uint32LE(uint32(codePages))
	out.Uint32LE(uint32(dataPages))
	out.Uint32LE(uint32(bssPages))
	out.Grow(headerSize)

	out.Write(codeBuf)
	out.AlignToWith(pageSize, 0)
	out.Write(dataBuf)
	out.AlignToWith(pageSize, 0)

	return writeFile(path, out.Bytes())
}

// flattenAt flattens segs' file content into a buffer anchored at base,
// page-rounded up.
func flattenAt(segs []Segment, base uint64) ([]byte, error) {
	if len(segs) == 0 {
		return nil, nil
	}
	buf, minAddr, err := flatten(segs, func(s Segment) uint64 { return s.VAddr })
	if err != nil {
		return nil, err
	}
	if minAddr < base {
		return nil, fmt.Errorf("elfcodec: segment at 0x%x precedes page-aligned base 0x%x", minAddr, base)
	}
	fileEnd := minAddr
	for _, s := range segs {
		if end := s.VAddr + uint64(len(s.Data)); end > fileEnd {
			fileEnd = end
		}
	}
	if n := fileEnd - minAddr; n < uint64(len(buf)) {
		buf = buf[:n]
	}
	if minAddr == base {
		return padToPage(buf), nil
	}
	padded := make([]byte, minAddr-base+uint64(len(buf)))
	copy(padded[minAddr-base:], buf)
	return padToPage(padded), nil
}

// flattenAtWithMemsz is flattenAt plus the group's page-rounded total
// in-memory size, for BSS-page accounting.
func flattenAtWithMemsz(segs []Segment, base uint64) ([]byte, uint64, error) {
	buf, err := flattenAt(segs, base)
	if err != nil {
		return nil, 0, err
	}
	if len(segs) == 0 {
		return buf, 0, nil
	}
	var memMax uint64
	for _, s := range segs {
		if end := s.VAddr + s.Memsz - base; end > memMax {
			memMax = end
		}
	}
	return buf, alignUp(memMax, pageSize), nil
}
