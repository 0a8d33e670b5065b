package objlink

const (
	pageSize        = 0x1000
	ehdrSize        = 64
	phdrEntrySize   = 56
	numProgHeaders  = 3 // PT_LOAD (RX), PT_LOAD (RW), PT_DYNAMIC (spec §4.2.7)
	dynEntrySize    = 16
	elfSymEntrySize = 24
	relaEntrySize   = 24
)

// Layout is the computed address/offset map of one ET_DYN output. Every
// region's file offset equals its virtual address: the output is meant
// to be mapped directly by a loader that does not relocate segments
// independently of the file (spec §4.2.4).
type Layout struct {
	// Base is the caller-supplied load base (spec §4.2.4, `anyld -b`).
	// Every *VA field below is a plain file offset (Base excluded); VA()
	// adds Base back in for anything a consumer treats as a runtime
	// address (symbol values, relocation patch sites, p_vaddr/sh_addr).
	Base uint64

	EhdrVA, PhdrVA                        uint64
	DynsymVA, DynstrVA, HashVA, RelaDynVA uint64
	DynsymSize, DynstrSize, HashSize      uint64
	RelaDynSize                           uint64

	TextVA, RodataVA, DataVA, DynamicVA, BssVA           uint64
	TextSize, RodataSize, DataSize, DynamicSize, BssSize uint64

	FileSize uint64 // everything up to and including .dynamic; .bss is NOBITS
	MemSize  uint64 // FileSize plus .bss
}

// ComputeLayout lays out page 0 (header, dynamic symbol/string/hash
// tables and .rela.dyn), then .text, .rodata, .data, .dynamic and .bss
// in that order, per spec §4.2.4. relaDynCount is the number of dynamic
// relocation entries the output will need, determined by a dry run over
// the relocations before addresses are known (see PlanDynamicRelocs).
func ComputeLayout(m *Merger, dynsymCount int, dynstrSize uint64, hash *HashSection, relaDynCount, dynEntryCount int, base uint64) *Layout {
	l := &Layout{Base: base}

	l.EhdrVA = 0
	l.PhdrVA = ehdrSize
	l.DynsymVA = l.PhdrVA + uint64(numProgHeaders)*phdrEntrySize
	l.DynsymSize = uint64(dynsymCount) * elfSymEntrySize

	l.DynstrVA = l.DynsymVA + l.DynsymSize
	l.DynstrSize = dynstrSize

	l.HashVA = l.DynstrVA + l.DynstrSize
	l.HashSize = hash.Size()

	l.RelaDynVA = l.HashVA + l.HashSize
	l.RelaDynSize = uint64(relaDynCount) * relaEntrySize

	page0End := l.RelaDynVA + l.RelaDynSize

	l.TextVA = alignUp(page0End, pageSize)
	l.TextSize = uint64(m.Text.Len())

	l.RodataVA = alignUp(l.TextVA+l.TextSize, 16)
	l.RodataSize = uint64(m.Rodata.Len())

	l.DataVA = alignUp(l.RodataVA+l.RodataSize, pageSize)
	l.DataSize = uint64(m.Data.Len())

	l.DynamicVA = alignUp(l.DataVA+l.DataSize, 8)
	l.DynamicSize = uint64(dynEntryCount) * dynEntrySize

	l.BssVA = alignUp(l.DynamicVA+l.DynamicSize, pageSize)
	l.BssSize = m.BssSize

	l.FileSize = l.DynamicVA + l.DynamicSize
	l.MemSize = l.BssVA + l.BssSize

	return l
}

// VA returns the runtime virtual address of an OutputKind's merged
// buffer: its file offset plus the load base.
func (l *Layout) VA(kind OutputKind) uint64 {
	switch kind {
	case KindText:
		return l.Base + l.TextVA
	case KindRodata:
		return l.Base + l.RodataVA
	case KindData:
		return l.Base + l.DataVA
	case KindBss:
		return l.Base + l.BssVA
	default:
		return 0
	}
}
