package objlink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeGlobal_StrongWinsOverUndefined(t *testing.T) {
	existing := &ResolvedSymbol{Name: "foo", Defined: false, DefiningObject: "a.o"}
	incoming := &ResolvedSymbol{Name: "foo", Defined: true, Kind: KindText, Offset: 16, DefiningObject: "b.o"}

	require.NoError(t, mergeGlobal(existing, incoming))
	assert.True(t, existing.Defined)
	assert.Equal(t, KindText, existing.Kind)
	assert.Equal(t, uint64(16), existing.Offset)
}

func TestMergeGlobal_StrongWinsOverWeak(t *testing.T) {
	existing := &ResolvedSymbol{Name: "foo", Defined: true, Weak: true, Kind: KindData, Offset: 4, DefiningObject: "weak.o"}
	incoming := &ResolvedSymbol{Name: "foo", Defined: true, Weak: false, Kind: KindText, Offset: 8, DefiningObject: "strong.o"}

	require.NoError(t, mergeGlobal(existing, incoming))
	assert.Equal(t, KindText, existing.Kind)
	assert.Equal(t, "strong.o", existing.DefiningObject)
}

func TestMergeGlobal_ExistingStrongKeptOverIncomingWeak(t *testing.T) {
	existing := &ResolvedSymbol{Name: "foo", Defined: true, Weak: false, Kind: KindText, Offset: 8, DefiningObject: "strong.o"}
	incoming := &ResolvedSymbol{Name: "foo", Defined: true, Weak: true, Kind: KindData, Offset: 4, DefiningObject: "weak.o"}

	require.NoError(t, mergeGlobal(existing, incoming))
	assert.Equal(t, KindText, existing.Kind)
	assert.Equal(t, "strong.o", existing.DefiningObject)
}

func TestMergeGlobal_TwoStrongDefinitionsIsHardError(t *testing.T) {
	existing := &ResolvedSymbol{Name: "foo", Defined: true, Kind: KindText, DefiningObject: "a.o"}
	incoming := &ResolvedSymbol{Name: "foo", Defined: true, Kind: KindText, DefiningObject: "b.o"}

	err := mergeGlobal(existing, incoming)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.o")
	assert.Contains(t, err.Error(), "b.o")
}

func TestMergeGlobal_WeakVsWeakMergesSilently(t *testing.T) {
	existing := &ResolvedSymbol{Name: "foo", Defined: true, Weak: true, Kind: KindText, DefiningObject: "a.o"}
	incoming := &ResolvedSymbol{Name: "foo", Defined: true, Weak: true, Kind: KindData, DefiningObject: "b.o"}

	require.NoError(t, mergeGlobal(existing, incoming))
	assert.Equal(t, KindText, existing.Kind, "first weak definition stays; no error either way")
}

func TestMergeGlobal_UndefinedVsUndefinedMergesSilently(t *testing.T) {
	existing := &ResolvedSymbol{Name: "foo", Defined: false, DefiningObject: "a.o"}
	incoming := &ResolvedSymbol{Name: "foo", Defined: false, DefiningObject: "b.o"}

	require.NoError(t, mergeGlobal(existing, incoming))
	assert.False(t, existing.Defined)
}

func TestLookup_PrefersLocalOverGlobalByIndex(t *testing.T) {
	st := &SymbolTable{
		Global: map[string]*ResolvedSymbol{"x": {Name: "x", Defined: true, Kind: KindData}},
		Local:  map[localKey]*ResolvedSymbol{{obj: 0, index: 5}: {Name: "x", Defined: true, Kind: KindText}},
	}

	s, ok := st.Lookup(0, 5, "x")
	require.True(t, ok)
	assert.Equal(t, KindText, s.Kind, "local symbol at this exact index must win over any same-named global")

	s, ok = st.Lookup(0, 99, "x")
	require.True(t, ok)
	assert.Equal(t, KindData, s.Kind, "falls back to the global table when no local entry exists at that index")
}
