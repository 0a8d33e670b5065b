package objlink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func symtabFixture() *SymbolTable {
	return &SymbolTable{
		Global: map[string]*ResolvedSymbol{
			"kernel_main": {Name: "kernel_main", Defined: true, Kind: KindText},
			"idt_init":    {Name: "idt_init", Defined: true, Kind: KindText},
			"weak_hook":   {Name: "weak_hook", Defined: false, Weak: true},
		},
		Local: map[localKey]*ResolvedSymbol{},
	}
}

func TestSelectExports_NoDefFileExportsAllDefinedGlobals(t *testing.T) {
	names, warnings := SelectExports(symtabFixture(), nil)
	assert.Empty(t, warnings)
	assert.ElementsMatch(t, []string{"kernel_main", "idt_init"}, names)
}

func TestSelectExports_DefFileFiltersToExplicitList(t *testing.T) {
	def := &DefFile{Exports: []string{"kernel_main"}}
	names, warnings := SelectExports(symtabFixture(), def)
	assert.Equal(t, []string{"kernel_main"}, names)
	assert.Empty(t, warnings)
}

func TestSelectExports_MissingExportWarnsWithSuggestion(t *testing.T) {
	def := &DefFile{Exports: []string{"kernel_man"}} // typo
	names, warnings := SelectExports(symtabFixture(), def)
	assert.Empty(t, names)
	require.Len(t, warnings, 1)
	assert.Equal(t, "kernel_man", warnings[0].Requested)
	assert.Equal(t, "kernel_main", warnings[0].Suggestion)
}

func TestParseDefFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exports.def")
	content := "; comment\nLIBRARY mykernel\nEXPORTS\n  kernel_main\n  idt_init  ; trailing note\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	def, err := ParseDefFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mykernel", def.Library)
	assert.Equal(t, []string{"kernel_main", "idt_init"}, def.Exports)
}
