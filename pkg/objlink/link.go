package objlink

import (
	"fmt"
	"log/slog"

	"github.com/anyos-project/anytoolchain/internal/buildutil"
)

// LinkOptions configures one invocation of Link.
type LinkOptions struct {
	Inputs      []string
	Output      string
	DefFile     string // optional .def export list
	SoName      string
	EntrySymbol string // defaults to "_start"
	Base        uint64 // load base virtual address (spec §4.2.4, `anyld -b`)
}

// Link runs the whole static-link pipeline: load inputs, merge sections,
// resolve symbols, select exports, size and apply relocations, lay out
// and write the ET_DYN output (spec §4.2).
func Link(opts LinkOptions, logger *slog.Logger) error {
	inputs, err := LoadInputs(opts.Inputs)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("objlink: no input objects")
	}
	machine := inputs[0].File.Machine

	merger := NewMerger()
	if err := merger.Merge(inputs); err != nil {
		return err
	}

	st, err := BuildSymbolTable(inputs, merger)
	if err != nil {
		return err
	}

	var def *DefFile
	if opts.DefFile != "" {
		def, err = ParseDefFile(opts.DefFile)
		if err != nil {
			return err
		}
		if opts.SoName == "" && def.Library != "" {
			opts.SoName = def.Library
		}
	}

	exportNames, warnings := SelectExports(st, def)
	for _, w := range warnings {
		logger.Warn(w.String())
	}

	pending, err := CollectRelocations(inputs, merger)
	if err != nil {
		return err
	}
	dynCount := CountDynamicRelocs(pending)

	dynNames := append([]string{""}, exportNames...)
	hash := BuildHash(dynNames)
	dynstrBuf, dynstrOffsets := buildDynstr(dynNames, opts.SoName)

	dynEntryCount := NumDynamicEntries(dynCount > 0, opts.SoName != "")
	layout := ComputeLayout(merger, len(dynNames), uint64(dynstrBuf.Len()), hash, dynCount, dynEntryCount, opts.Base)

	dynsymBuf := buildDynsym(dynNames, dynstrOffsets, st, layout)

	relaDyn, err := ApplyRelocations(pending, merger, layout, st)
	if err != nil {
		return err
	}

	entrySym := opts.EntrySymbol
	if entrySym == "" {
		entrySym = "_start"
	}
	var entry uint64
	if s, ok := st.Global[entrySym]; ok && s.Defined {
		entry = layout.VA(s.Kind) + s.Offset
	} else {
		logger.Warn("entry symbol not found, output entry point set to 0", "symbol", entrySym)
	}

	logger.Info("linked",
		"inputs", len(inputs), "machine", machine,
		"exports", len(exportNames), "dynamic_relocs", len(relaDyn),
		"text_size", layout.TextSize, "data_size", layout.DataSize, "bss_size", layout.BssSize)

	return Write(opts.Output, layout, merger, dynsymBuf, dynstrBuf, hash, relaDyn, WriteOptions{
		Machine: machine,
		Entry:   entry,
		SoName:  opts.SoName,
	})
}

// buildDynstr builds the dynamic string table: leading NUL, then (when
// given) the SONAME at offset 1 as required by spec §4.2.7, then each
// exported name NUL-terminated in order.
func buildDynstr(names []string, soName string) (*buildutil.Buf, map[string]uint32) {
	buf := buildutil.NewBuf(64)
	buf.WriteByte(0)
	if soName != "" {
		buf.Write([]byte(soName))
		buf.WriteByte(0)
	}

	offsets := make(map[string]uint32, len(names))
	for _, n := range names {
		if n == "" {
			offsets[n] = 0
			continue
		}
		offsets[n] = uint32(buf.Len())
		buf.Write([]byte(n))
		buf.WriteByte(0)
	}
	return buf, offsets
}

// buildDynsym builds the dynamic symbol table in the same order as
// names, resolving each symbol's value against the completed layout.
func buildDynsym(names []string, dynstrOffsets map[string]uint32, st *SymbolTable, layout *Layout) *buildutil.Buf {
	const stbGlobal, sttObject = 1, 1
	buf := buildutil.NewBuf(len(names) * elfSymEntrySize)

	for _, n := range names {
		if n == "" {
			buf.Zero(elfSymEntrySize)
			continue
		}
		s := st.Global[n]
		var value uint64
		var shndx uint16 = 1 // any non-zero placeholder section index; the loader here keys off DT_* tables, not st_shndx
		if s != nil && s.Defined {
			value = layout.VA(s.Kind) + s.Offset
		} else {
			shndx = 0 // SHN_UNDEF
		}

		buf.Uint32LE(dynstrOffsets[n])
		buf.WriteByte(byte(stbGlobal<<4 | sttObject))
		buf.WriteByte(0)
		buf.Uint16LE(shndx)
		buf.Uint64LE(value)
		buf.Uint64LE(0) // st_size: not tracked per export in this subset
	}
	return buf
}
