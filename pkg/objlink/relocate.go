package objlink

import (
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/anyos-project/anytoolchain/internal/buildutil"
	"github.com/anyos-project/anytoolchain/pkg/utils"
)

// pendingReloc is one relocation entry read from an input object's
// SHT_RELA section, resolved against the Merger's placements so its
// target buffer and offset are already known; only the final virtual
// addresses (which need a completed Layout) remain to be filled in.
type pendingReloc struct {
	obj       int
	machine   elf.Machine
	relType   uint32
	symIndex  int
	symName   string
	addend    int64
	kind      OutputKind
	baseOff   uint64 // where the target section landed in its merged buffer
	siteOff   uint64 // r_offset: byte offset of the fixup site within that section
}

// CollectRelocations reads every SHT_RELA section across all inputs,
// dropping relocations that target a section the merger discarded.
func CollectRelocations(inputs []InputObject, merger *Merger) ([]pendingReloc, error) {
	var out []pendingReloc

	for oi, in := range inputs {
		for _, sec := range in.File.Sections {
			if sec.Type != elf.SHT_RELA {
				continue
			}
			p, ok := merger.Placement(oi, int(sec.Info))
			if !ok {
				continue // relocations against a discarded section are moot
			}

			data, err := sec.Data()
			if err != nil {
				return nil, fmt.Errorf("objlink: %s: reading %s: %w", in.Name, sec.Name, err)
			}
			if len(data)%relaEntrySize != 0 {
				return nil, fmt.Errorf("objlink: %s: %s: truncated relocation entry", in.Name, sec.Name)
			}

			symtab, err := in.File.Symbols()
			if err != nil {
				return nil, fmt.Errorf("objlink: %s: %w", in.Name, err)
			}

			for off := 0; off < len(data); off += relaEntrySize {
				e := data[off : off+relaEntrySize]
				rOffset := binary.LittleEndian.Uint64(e[0:8])
				rInfo := binary.LittleEndian.Uint64(e[8:16])
				rAddend := int64(binary.LittleEndian.Uint64(e[16:24]))

				symIndex := int(rInfo >> 32)
				relType := uint32(rInfo)

				name := ""
				if symIndex >= 1 && symIndex-1 < len(symtab) {
					name = symtab[symIndex-1].Name
				}

				out = append(out, pendingReloc{
					obj:      oi,
					machine:  in.File.Machine,
					relType:  relType,
					symIndex: symIndex,
					symName:  name,
					addend:   rAddend,
					kind:     p.Kind,
					baseOff:  p.Offset,
					siteOff:  rOffset,
				})
			}
		}
	}

	return out, nil
}

// isDynamicRelocType reports whether a relocation type resolves to a
// load-address-dependent absolute value, and so needs a runtime
// RELATIVE fixup in .rela.dyn rather than a value baked in at link time.
// 32-bit absolute relocations are resolved statically instead (the
// hobby images this linker targets are loaded at a fixed base, so a
// truncated 32-bit RELATIVE isn't representable and isn't needed).
func isDynamicRelocType(machine elf.Machine, relType uint32) bool {
	switch machine {
	case elf.EM_X86_64:
		return relType == uint32(elf.R_X86_64_64)
	case elf.EM_AARCH64:
		return relType == uint32(elf.R_AARCH64_ABS64)
	default:
		return false
	}
}

// CountDynamicRelocs is the dry-run pass layout uses to size .rela.dyn
// before file offsets are known (spec §4.2.4).
func CountDynamicRelocs(pending []pendingReloc) int {
	n := 0
	for _, p := range pending {
		if isDynamicRelocType(p.machine, p.relType) {
			n++
		}
	}
	return n
}

// DynReloc is one R_*_RELATIVE entry written into the output's .rela.dyn.
type DynReloc struct {
	Offset uint64
	Addend uint64
}

// ApplyRelocations patches every collected relocation into the merged
// buffers now that a Layout has assigned final virtual addresses, and
// returns the RELATIVE entries that belong in .rela.dyn.
func ApplyRelocations(pending []pendingReloc, merger *Merger, layout *Layout, st *SymbolTable) ([]DynReloc, error) {
	var dyn []DynReloc

	for _, p := range pending {
		sym, _ := st.Lookup(p.obj, p.symIndex, p.symName)
		var s uint64
		if sym != nil && sym.Defined {
			s = layout.VA(sym.Kind) + sym.Offset
		}

		buf := merger.bufFor(p.kind)
		site := int(p.baseOff + p.siteOff)
		P := layout.VA(p.kind) + p.baseOff + p.siteOff
		A := uint64(p.addend)

		if isDynamicRelocType(p.machine, p.relType) {
			value := s + A
			buf.PutUint64LE(site, value)
			dyn = append(dyn, DynReloc{Offset: P, Addend: value})
			continue
		}

		if err := applyStatic(p.machine, p.relType, buf, site, s, A, P, p.symName); err != nil {
			return nil, fmt.Errorf("objlink: relocating against %s: %w", p.symName, err)
		}
	}

	return dyn, nil
}

func applyStatic(machine elf.Machine, relType uint32, buf *buildutil.Buf, site int, S, A, P uint64, symName string) error {
	switch machine {
	case elf.EM_X86_64:
		return applyX86_64(elf.R_X86_64(relType), buf, site, S, A, P, symName)
	case elf.EM_AARCH64:
		return applyAArch64(elf.R_AARCH64(relType), buf, site, S, A, P, symName)
	default:
		return fmt.Errorf("unsupported machine %v", machine)
	}
}

func uint32At(b *buildutil.Buf, offset int) uint32 {
	return binary.LittleEndian.Uint32(b.Bytes()[offset : offset+4])
}

// fitsSigned reports whether v fits in a two's-complement field of the
// given bit width.
func fitsSigned(v int64, bits uint) bool {
	lo := -(int64(1) << (bits - 1))
	hi := int64(1)<<(bits-1) - 1
	return v >= lo && v <= hi
}

// fitsUnsigned reports whether v fits in an unsigned field of the given
// bit width.
func fitsUnsigned(v uint64, bits uint) bool {
	return bits >= 64 || v>>bits == 0
}

func applyX86_64(relType elf.R_X86_64, b *buildutil.Buf, site int, S, A, P uint64, symName string) error {
	switch relType {
	case elf.R_X86_64_32:
		v := S + A
		if !fitsUnsigned(v, 32) {
			return fmt.Errorf("R_X86_64_32 overflow for symbol %s: value 0x%x does not fit in 32 bits", symName, v)
		}
		b.PutUint32LE(site, uint32(v))
	case elf.R_X86_64_32S:
		v := int64(S + A)
		if !fitsSigned(v, 32) {
			return fmt.Errorf("R_X86_64_32S overflow for symbol %s: value %d does not fit in a signed 32-bit field", symName, v)
		}
		b.PutUint32LE(site, uint32(v))
	case elf.R_X86_64_PC32, elf.R_X86_64_PLT32:
		v := int64(S+A) - int64(P)
		if !fitsSigned(v, 32) {
			return fmt.Errorf("%v overflow for symbol %s: displacement %d does not fit in a signed 32-bit field", relType, symName, v)
		}
		b.PutUint32LE(site, uint32(v))
	case elf.R_X86_64_PC64:
		b.PutUint64LE(site, S+A-P)
	case elf.R_X86_64_NONE:
	default:
		return fmt.Errorf("unsupported x86_64 relocation type %v", relType)
	}
	return nil
}

func applyAArch64(relType elf.R_AARCH64, b *buildutil.Buf, site int, S, A, P uint64, symName string) error {
	switch relType {
	case elf.R_AARCH64_ABS32:
		v := S + A
		if !fitsUnsigned(v, 32) {
			return fmt.Errorf("R_AARCH64_ABS32 overflow for symbol %s: value 0x%x does not fit in 32 bits", symName, v)
		}
		b.PutUint32LE(site, uint32(v))
	case elf.R_AARCH64_PREL32:
		v := int64(S+A) - int64(P)
		if !fitsSigned(v, 32) {
			return fmt.Errorf("R_AARCH64_PREL32 overflow for symbol %s: displacement %d does not fit in a signed 32-bit field", symName, v)
		}
		b.PutUint32LE(site, uint32(v))
	case elf.R_AARCH64_PREL64:
		b.PutUint64LE(site, S+A-P)
	case elf.R_AARCH64_CALL26, elf.R_AARCH64_JUMP26:
		delta := int64(S+A) - int64(P)
		if delta%4 != 0 {
			return fmt.Errorf("%v misaligned for symbol %s: displacement %d is not 4-byte aligned", relType, symName, delta)
		}
		imm := delta >> 2
		if !fitsSigned(imm, 26) {
			return fmt.Errorf("%v overflow for symbol %s: branch target out of ±128MB range", relType, symName)
		}
		word := uint32At(b, site)
		view := utils.CreateBitView(&word)
		view.Write(uint32(imm)&0x3ffffff, 0, 26)
		b.PutUint32LE(site, word)
	case elf.R_AARCH64_ADR_PREL_PG_HI21:
		pageDelta := (int64(S+A) &^ 0xfff) - (int64(P) &^ 0xfff)
		rel := pageDelta >> 12
		if !fitsSigned(rel, 21) {
			return fmt.Errorf("R_AARCH64_ADR_PREL_PG_HI21 overflow for symbol %s: page displacement out of ±4GB range", symName)
		}
		urel := uint32(rel)
		word := uint32At(b, site)
		view := utils.CreateBitView(&word)
		view.Write(urel&0x3, 29, 2)
		view.Write((urel>>2)&0x7ffff, 5, 19)
		b.PutUint32LE(site, word)
	case elf.R_AARCH64_ADD_ABS_LO12_NC:
		lo12 := uint32(S+A) & 0xfff
		word := uint32At(b, site)
		view := utils.CreateBitView(&word)
		view.Write(lo12, 10, 12)
		b.PutUint32LE(site, word)
	case elf.R_AARCH64_LDST8_ABS_LO12_NC, elf.R_AARCH64_LDST16_ABS_LO12_NC,
		elf.R_AARCH64_LDST32_ABS_LO12_NC, elf.R_AARCH64_LDST64_ABS_LO12_NC,
		elf.R_AARCH64_LDST128_ABS_LO12_NC:
		var shift uint32
		switch relType {
		case elf.R_AARCH64_LDST16_ABS_LO12_NC:
			shift = 1
		case elf.R_AARCH64_LDST32_ABS_LO12_NC:
			shift = 2
		case elf.R_AARCH64_LDST64_ABS_LO12_NC:
			shift = 3
		case elf.R_AARCH64_LDST128_ABS_LO12_NC:
			shift = 4
		}
		lo12 := (uint32(S+A) & 0xfff) >> shift
		word := uint32At(b, site)
		view := utils.CreateBitView(&word)
		view.Write(lo12, 10, 12)
		b.PutUint32LE(site, word)
	case elf.R_AARCH64_NONE:
	default:
		return fmt.Errorf("unsupported AArch64 relocation type %v", relType)
	}
	return nil
}
