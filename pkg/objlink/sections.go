package objlink

import (
	"debug/elf"
	"strings"

	"github.com/anyos-project/anytoolchain/internal/buildutil"
)

// OutputKind is one of the five section-merging buckets (spec §4.2.2).
type OutputKind int

const (
	KindDiscarded OutputKind = iota
	KindText
	KindRodata
	KindData
	KindBss
)

func (k OutputKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindRodata:
		return "rodata"
	case KindData:
		return "data"
	case KindBss:
		return "bss"
	default:
		return "discarded"
	}
}

// classify buckets one input section by name, falling back to flags for
// unrecognized allocated sections (spec §4.2.2).
func classify(name string, flags elf.SectionFlag) OutputKind {
	switch {
	case hasAnyPrefix(name, ".text", ".init"):
		return KindText
	case hasAnyPrefix(name, ".rodata", ".data.rel.ro"):
		return KindRodata
	case hasAnyPrefix(name, ".data", ".init_array", ".fini_array", ".got", ".tdata"):
		return KindData
	case hasAnyPrefix(name, ".bss", ".tbss"):
		return KindBss
	case hasAnyPrefix(name, ".eh_frame", ".debug", ".note", ".comment", ".group"):
		return KindDiscarded
	}

	if flags&elf.SHF_ALLOC == 0 {
		return KindDiscarded
	}
	switch {
	case flags&elf.SHF_EXECINSTR != 0:
		return KindText
	case flags&elf.SHF_WRITE != 0:
		return KindData
	default:
		return KindRodata
	}
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// placement records where one input section ended up in the merged
// output: which bucket, and the byte offset (or, for bss, the reserved
// offset) within it.
type placement struct {
	Kind   OutputKind
	Offset uint64
}

type inputSectionKey struct {
	obj int
	sec int
}

// Merger accumulates every surviving input section into three growable
// buffers (text/rodata/data) plus a running bss size, recording each
// input section's placement for later symbol address resolution.
type Merger struct {
	Text, Rodata, Data *buildutil.Buf
	BssSize            uint64
	bssAlign           uint64

	placements map[inputSectionKey]placement
}

func NewMerger() *Merger {
	return &Merger{
		Text:       buildutil.NewBuf(0),
		Rodata:     buildutil.NewBuf(0),
		Data:       buildutil.NewBuf(0),
		placements: make(map[inputSectionKey]placement),
	}
}

// Merge classifies and appends every allocatable section of every input
// object, in input order.
func (m *Merger) Merge(inputs []InputObject) error {
	for oi, in := range inputs {
		for si, sec := range in.File.Sections {
			kind := classify(sec.Name, sec.Flags)
			align := sec.Addralign
			if align == 0 {
				align = 1
			}

			switch kind {
			case KindDiscarded:
				continue
			case KindBss:
				m.bssAlign = maxU64(m.bssAlign, align)
				m.BssSize = alignUp(m.BssSize, align)
				m.placements[inputSectionKey{oi, si}] = placement{Kind: KindBss, Offset: m.BssSize}
				m.BssSize += sec.Size
				continue
			}

			buf := m.bufFor(kind)
			buf.Align(int(align))
			offset := uint64(buf.Len())
			m.placements[inputSectionKey{oi, si}] = placement{Kind: kind, Offset: offset}

			if sec.Type == elf.SHT_NOBITS {
				buf.Zero(int(sec.Size))
				continue
			}
			data, err := sec.Data()
			if err != nil {
				return err
			}
			buf.Write(data)
		}
	}
	return nil
}

func (m *Merger) bufFor(kind OutputKind) *buildutil.Buf {
	switch kind {
	case KindText:
		return m.Text
	case KindRodata:
		return m.Rodata
	default:
		return m.Data
	}
}

// Placement returns where input section si of object oi landed.
func (m *Merger) Placement(oi, si int) (placement, bool) {
	p, ok := m.placements[inputSectionKey{oi, si}]
	return p, ok
}

func alignUp(v, align uint64) uint64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
