package objlink

import (
	"debug/elf"
	"os"

	"github.com/anyos-project/anytoolchain/internal/buildutil"
)

// dynTag mirrors the handful of DT_* constants this writer emits;
// debug/elf doesn't expose Elf64_Dyn encoding helpers of its own.
type dynTag int64

const (
	dtNull      dynTag = 0
	dtHash      dynTag = 4
	dtStrtab    dynTag = 5
	dtSymtab    dynTag = 6
	dtRela      dynTag = 7
	dtRelaSz    dynTag = 8
	dtRelaEnt   dynTag = 9
	dtStrSz     dynTag = 10
	dtSymEnt    dynTag = 11
	dtSoname    dynTag = 14
	dtRelaCount dynTag = 0x6ffffffa
)

// NumDynamicEntries returns how many Elf64_Dyn entries the output's
// .dynamic section holds: the 9 always-present tags, plus DT_RELACOUNT
// when there is at least one dynamic relocation, plus DT_SONAME when a
// library name was given (spec §4.2.7).
func NumDynamicEntries(hasRelaCount, hasSoname bool) int {
	n := 9
	if hasRelaCount {
		n++
	}
	if hasSoname {
		n++
	}
	return n
}

// e_shoff sits at a fixed byte offset in every Elf64_Ehdr regardless of
// field values, so it can always be patched after the fact once the
// section header table's real position is known.
const ehdrShoffOffset = 40

// WriteOptions configures the final ET_DYN assembly.
type WriteOptions struct {
	Machine elf.Machine
	Entry   uint64
	SoName  string
}

// sectionNames is the fixed, ordered set of section headers this writer
// always emits (spec §4.2.4/§4.2.5): null, 9 real sections, .shstrtab.
var sectionNames = []string{"", ".dynsym", ".dynstr", ".hash", ".rela.dyn", ".text", ".rodata", ".data", ".dynamic", ".bss", ".shstrtab"}

// Write assembles the full ELF64 ET_DYN image described by layout and
// writes it to path.
func Write(path string, layout *Layout, merger *Merger, dynsym, dynstr *buildutil.Buf, hash *HashSection, relaDyn []DynReloc, opts WriteOptions) error {
	out := buildutil.NewBuf(int(layout.FileSize) * 2)

	writeEhdr(out, layout, opts, len(sectionNames))
	writePhdrs(out, layout)

	out.Grow(int(layout.DynsymVA))
	out.Write(dynsym.Bytes())

	out.Grow(int(layout.DynstrVA))
	out.Write(dynstr.Bytes())

	out.Grow(int(layout.HashVA))
	writeHash(out, hash)

	relativeType := relativeRelocType(opts.Machine)
	out.Grow(int(layout.RelaDynVA))
	for _, r := range relaDyn {
		writeRela(out, r.Offset, uint64(relativeType), int64(r.Addend))
	}

	out.Grow(int(layout.TextVA))
	out.Write(merger.Text.Bytes())

	out.Grow(int(layout.RodataVA))
	out.Write(merger.Rodata.Bytes())

	out.Grow(int(layout.DataVA))
	out.Write(merger.Data.Bytes())

	shstrtab, nameOffsets := buildShstrtab()

	out.Grow(int(layout.DynamicVA))
	writeDynamic(out, layout, len(relaDyn), opts.SoName != "")

	shstrtabVA := out.Len()
	out.Write(shstrtab.Bytes())

	shoff := out.Len()
	writeShdrs(out, layout, uint64(shstrtabVA), uint64(shstrtab.Len()), nameOffsets)
	out.PutUint64LE(ehdrShoffOffset, uint64(shoff))

	return os.WriteFile(path, out.Bytes(), 0o755)
}

func writeEhdr(out *buildutil.Buf, l *Layout, opts WriteOptions, numSections int) {
	var ident [16]byte
	ident[0], ident[1], ident[2], ident[3] = 0x7f, 'E', 'L', 'F'
	ident[4] = 2 // ELFCLASS64
	ident[5] = 1 // ELFDATA2LSB
	ident[6] = 1 // EV_CURRENT
	out.Write(ident[:])

	out.Uint16LE(uint16(elf.ET_DYN))
	out.Uint16LE(uint16(opts.Machine))
	out.Uint32LE(1) // e_version
	out.Uint64LE(opts.Entry)
	out.Uint64LE(l.PhdrVA)
	out.Uint64LE(0) // e_shoff, patched once the section header table is written
	out.Uint32LE(0) // e_flags
	out.Uint16LE(ehdrSize)
	out.Uint16LE(phdrEntrySize)
	out.Uint16LE(numProgHeaders)
	out.Uint16LE(64) // e_shentsize
	out.Uint16LE(uint16(numSections))
	out.Uint16LE(uint16(numSections - 1)) // e_shstrndx: .shstrtab is always last
}

// writePhdrs emits the spec's three program headers: one RX PT_LOAD
// covering page 0 (header, dynamic tables) through .rodata, one RW
// PT_LOAD covering .data through .bss, and a PT_DYNAMIC pointing at
// .dynamic (spec §4.2.7).
func writePhdrs(out *buildutil.Buf, l *Layout) {
	const ptLoad, ptDynamic = 1, 2
	const pfX, pfW, pfR = 1, 2, 4

	rxEnd := l.RodataVA + l.RodataSize
	writePhdr(out, ptLoad, pfR|pfX, 0, l.Base, rxEnd, rxEnd)
	writePhdr(out, ptLoad, pfR|pfW, l.DataVA, l.Base+l.DataVA, l.FileSize-l.DataVA, l.MemSize-l.DataVA)
	writePhdr(out, ptDynamic, pfR|pfW, l.DynamicVA, l.Base+l.DynamicVA, l.DynamicSize, l.DynamicSize)
}

func writePhdr(out *buildutil.Buf, typ, flags uint32, offset, vaddr, filesz, memsz uint64) {
	out.Uint32LE(typ)
	out.Uint32LE(flags)
	out.Uint64LE(offset)
	out.Uint64LE(vaddr)
	out.Uint64LE(vaddr) // p_paddr
	out.Uint64LE(filesz)
	out.Uint64LE(memsz)
	out.Uint64LE(pageSize) // p_align
}

func writeHash(out *buildutil.Buf, h *HashSection) {
	out.Uint32LE(h.Nbucket)
	out.Uint32LE(h.Nchain)
	for _, b := range h.Bucket {
		out.Uint32LE(b)
	}
	for _, c := range h.Chain {
		out.Uint32LE(c)
	}
}

// relativeRelocType returns the R_*_RELATIVE constant used for every
// entry this linker emits into .rela.dyn (only R_X86_64_64/R_AARCH64_ABS64
// ever become dynamic relocations; see isDynamicRelocType).
func relativeRelocType(machine elf.Machine) uint32 {
	switch machine {
	case elf.EM_AARCH64:
		return uint32(elf.R_AARCH64_RELATIVE)
	default:
		return uint32(elf.R_X86_64_RELATIVE)
	}
}

func writeRela(out *buildutil.Buf, offset, symAndType uint64, addend int64) {
	out.Uint64LE(offset)
	out.Uint64LE(symAndType)
	out.Uint64LE(uint64(addend))
}

func writeDynamic(out *buildutil.Buf, l *Layout, relaCount int, hasSoname bool) {
	entry := func(tag dynTag, val uint64) {
		out.Uint64LE(uint64(tag))
		out.Uint64LE(val)
	}
	entry(dtHash, l.Base+l.HashVA)
	entry(dtStrtab, l.Base+l.DynstrVA)
	entry(dtSymtab, l.Base+l.DynsymVA)
	entry(dtStrSz, l.DynstrSize)
	entry(dtSymEnt, elfSymEntrySize)
	entry(dtRela, l.Base+l.RelaDynVA)
	entry(dtRelaSz, l.RelaDynSize)
	entry(dtRelaEnt, relaEntrySize)
	if relaCount > 0 {
		entry(dtRelaCount, uint64(relaCount))
	}
	if hasSoname {
		entry(dtSoname, 1) // SoName is always the first string in .dynstr
	}
	entry(dtNull, 0)
}

// buildShstrtab returns the section header string table and the byte
// offset of each real section name within it.
func buildShstrtab() (*buildutil.Buf, map[string]uint32) {
	buf := buildutil.NewBuf(128)
	offsets := make(map[string]uint32)
	buf.WriteByte(0)

	for _, n := range sectionNames {
		if n == "" {
			continue
		}
		offsets[n] = uint32(buf.Len())
		buf.Write([]byte(n))
		buf.WriteByte(0)
	}
	return buf, offsets
}

type shdrFields struct {
	nameOff      uint32
	typ          uint32
	flags        uint64
	addr, offset uint64
	size         uint64
	link, info   uint32
	align, entsz uint64
}

func writeShdrs(out *buildutil.Buf, l *Layout, shstrtabVA, shstrtabSize uint64, names map[string]uint32) {
	const shfAlloc, shfWrite, shfExecinstr = uint64(2), uint64(1), uint64(4)

	shdrs := []shdrFields{
		{},
		{names[".dynsym"], uint32(elf.SHT_DYNSYM), shfAlloc, l.Base + l.DynsymVA, l.DynsymVA, l.DynsymSize, 2, 1, 8, elfSymEntrySize},
		{names[".dynstr"], uint32(elf.SHT_STRTAB), shfAlloc, l.Base + l.DynstrVA, l.DynstrVA, l.DynstrSize, 0, 0, 1, 0},
		{names[".hash"], uint32(elf.SHT_HASH), shfAlloc, l.Base + l.HashVA, l.HashVA, l.HashSize, 1, 0, 8, 4},
		{names[".rela.dyn"], uint32(elf.SHT_RELA), shfAlloc, l.Base + l.RelaDynVA, l.RelaDynVA, l.RelaDynSize, 1, 0, 8, relaEntrySize},
		{names[".text"], uint32(elf.SHT_PROGBITS), shfAlloc | shfExecinstr, l.Base + l.TextVA, l.TextVA, l.TextSize, 0, 0, 16, 0},
		{names[".rodata"], uint32(elf.SHT_PROGBITS), shfAlloc, l.Base + l.RodataVA, l.RodataVA, l.RodataSize, 0, 0, 16, 0},
		{names[".data"], uint32(elf.SHT_PROGBITS), shfAlloc | shfWrite, l.Base + l.DataVA, l.DataVA, l.DataSize, 0, 0, 16, 0},
		{names[".dynamic"], uint32(elf.SHT_DYNAMIC), shfAlloc | shfWrite, l.Base + l.DynamicVA, l.DynamicVA, l.DynamicSize, 2, 0, 8, dynEntrySize},
		{names[".bss"], uint32(elf.SHT_NOBITS), shfAlloc | shfWrite, l.Base + l.BssVA, l.DynamicVA + l.DynamicSize, l.BssSize, 0, 0, 16, 0},
		{names[".shstrtab"], uint32(elf.SHT_STRTAB), 0, 0, shstrtabVA, shstrtabSize, 0, 0, 1, 0},
	}

	for _, s := range shdrs {
		out.Uint32LE(s.nameOff)
		out.Uint32LE(s.typ)
		out.Uint64LE(s.flags)
		out.Uint64LE(s.addr)
		out.Uint64LE(s.offset)
		out.Uint64LE(s.size)
		out.Uint32LE(s.link)
		out.Uint32LE(s.info)
		out.Uint64LE(s.align)
		out.Uint64LE(s.entsz)
	}
}
