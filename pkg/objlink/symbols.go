package objlink

import (
	"debug/elf"
	"fmt"
	"sort"
	"strings"
)

// ResolvedSymbol is where one symbol ended up after merging: which output
// bucket, and its offset within that bucket's buffer (meaningless when
// Defined is false).
type ResolvedSymbol struct {
	Name           string
	Kind           OutputKind
	Offset         uint64
	Defined        bool
	Weak           bool
	DefiningObject string
}

// localKey addresses one symbol by its defining object and its original
// ELF symbol table index — relocations reference symbols this way, not
// by name, which is why local/section symbols need their own table
// distinct from the name-keyed global one (spec §4.2.3).
type localKey struct {
	obj   int
	index int
}

// SymbolTable is the result of one link's symbol resolution pass: a
// name-keyed table for GLOBAL/WEAK bindings (where cross-object
// resolution and collision rules apply) and an index-keyed table for
// LOCAL bindings and STT_SECTION symbols (which may duplicate names and
// are only ever referenced from within their own object).
type SymbolTable struct {
	Global map[string]*ResolvedSymbol
	Local  map[localKey]*ResolvedSymbol
}

// BuildSymbolTable resolves every symbol across inputs against the
// placements already computed by a Merger (spec §4.2.3).
func BuildSymbolTable(inputs []InputObject, merger *Merger) (*SymbolTable, error) {
	st := &SymbolTable{Global: make(map[string]*ResolvedSymbol), Local: make(map[localKey]*ResolvedSymbol)}

	for oi, in := range inputs {
		syms, err := in.File.Symbols()
		if err != nil && err != elf.ErrNoSymbols {
			return nil, fmt.Errorf("objlink: %s: reading symbols: %w", in.Name, err)
		}

		for si, sym := range syms {
			// debug/elf's Symbols() omits the null symbol at index 0, so
			// the real ELF symbol table index is si+1.
			actualIndex := si + 1
			typ := elf.ST_TYPE(sym.Info)
			if typ == elf.STT_FILE {
				continue
			}
			bind := elf.ST_BIND(sym.Info)

			resolved := &ResolvedSymbol{Name: sym.Name, Weak: bind == elf.STB_WEAK, DefiningObject: in.Name}
			switch {
			case sym.Section == elf.SHN_UNDEF:
				resolved.Defined = false
			case sym.Section == elf.SHN_ABS:
				resolved.Defined = true
				resolved.Kind = KindData
				resolved.Offset = sym.Value
			case sym.Section < elf.SHN_LORESERVE:
				if p, ok := merger.Placement(oi, int(sym.Section)); ok {
					resolved.Defined = true
					resolved.Kind = p.Kind
					resolved.Offset = p.Offset + sym.Value
				}
			}

			if bind == elf.STB_LOCAL || typ == elf.STT_SECTION {
				st.Local[localKey{oi, actualIndex}] = resolved
				continue
			}

			existing, has := st.Global[sym.Name]
			if !has {
				st.Global[sym.Name] = resolved
				continue
			}
			if err := mergeGlobal(existing, resolved); err != nil {
				return nil, err
			}
		}
	}

	var undefined []string
	for name, s := range st.Global {
		if !s.Defined && !s.Weak {
			undefined = append(undefined, name)
		}
	}
	if len(undefined) > 0 {
		sort.Strings(undefined)
		return st, fmt.Errorf("objlink: undefined symbol(s): %s", strings.Join(undefined, ", "))
	}

	return st, nil
}

// mergeGlobal applies the strong/weak/undefined collision rules for a
// name already present in the global table.
func mergeGlobal(existing, incoming *ResolvedSymbol) error {
	strongExisting := existing.Defined && !existing.Weak
	strongIncoming := incoming.Defined && !incoming.Weak

	switch {
	case strongExisting && strongIncoming:
		return fmt.Errorf("objlink: duplicate strong symbol %q defined in %s and %s",
			existing.Name, existing.DefiningObject, incoming.DefiningObject)
	case strongIncoming:
		*existing = *incoming
	case strongExisting:
		// existing strong definition wins; nothing to do.
	case incoming.Defined && !existing.Defined:
		*existing = *incoming
	}
	return nil
}

// Lookup resolves the symbol used by a relocation at (obj, symIndex),
// trying the object-local table first (covers LOCAL bindings and
// STT_SECTION symbols) and falling back to the name-keyed global table.
func (st *SymbolTable) Lookup(obj, symIndex int, name string) (*ResolvedSymbol, bool) {
	if s, ok := st.Local[localKey{obj, symIndex}]; ok {
		return s, true
	}
	s, ok := st.Global[name]
	return s, ok
}
