// Package elfcodec translates an ELF64 input into one of four flat,
// loader-specific output formats (spec §4.3). It is pure format
// translation: no relocation is applied, unlike pkg/objlink.
package elfcodec

import (
	"debug/elf"
	"fmt"
)

// Segment is one PT_LOAD program header's file data plus its placement.
type Segment struct {
	VAddr   uint64
	Paddr   uint64
	Memsz   uint64
	Filesz  uint64
	Data    []byte
	Write   bool // segment is writable (PF_W set)
	Execute bool
}

// LoadSegments reads every PT_LOAD segment of f, in program-header order.
func LoadSegments(f *elf.File) ([]Segment, error) {
	var segs []Segment
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		data := make([]byte, p.Filesz)
		if _, err := p.ReadAt(data, 0); err != nil {
			return nil, fmt.Errorf("elfcodec: reading PT_LOAD at vaddr 0x%x: %w", p.Vaddr, err)
		}
		segs = append(segs, Segment{
			VAddr:   p.Vaddr,
			Paddr:   p.Paddr,
			Memsz:   p.Memsz,
			Filesz:  p.Filesz,
			Data:    data,
			Write:   p.Flags&elf.PF_W != 0,
			Execute: p.Flags&elf.PF_X != 0,
		})
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("elfcodec: input has no PT_LOAD segments")
	}
	return segs, nil
}

// OpenELF validates and returns the parsed ELF64 input at path.
func OpenELF(path string) (*elf.File, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfcodec: %s: %w", path, err)
	}
	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("elfcodec: %s: expected ELF64, got %v", path, f.Class)
	}
	return f, nil
}

// FindSymbol returns the value of the named symbol in f, or an error if
// it isn't defined.
func FindSymbol(f *elf.File, name string) (uint64, error) {
	syms, err := f.Symbols()
	if err != nil {
		return 0, fmt.Errorf("elfcodec: reading symbols: %w", err)
	}
	for _, s := range syms {
		if s.Name == name && s.Section != elf.SHN_UNDEF {
			return s.Value, nil
		}
	}
	return 0, fmt.Errorf("elfcodec: symbol %q not defined", name)
}
