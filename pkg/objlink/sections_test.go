package objlink

import (
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_ByName(t *testing.T) {
	cases := map[string]OutputKind{
		".text":        KindText,
		".text.hot":    KindText,
		".init":        KindText,
		".rodata":      KindRodata,
		".rodata.str1": KindRodata,
		".data":        KindData,
		".data.rel.ro": KindRodata,
		".bss":         KindBss,
		".tbss":        KindBss,
		".eh_frame":    KindDiscarded,
		".debug_info":  KindDiscarded,
		".comment":     KindDiscarded,
	}
	for name, want := range cases {
		assert.Equalf(t, want, classify(name, 0), "classify(%q)", name)
	}
}

func TestClassify_FallsBackToFlagsForUnknownNames(t *testing.T) {
	assert.Equal(t, KindDiscarded, classify(".custom", 0))
	assert.Equal(t, KindText, classify(".custom", elf.SHF_ALLOC|elf.SHF_EXECINSTR))
	assert.Equal(t, KindData, classify(".custom", elf.SHF_ALLOC|elf.SHF_WRITE))
	assert.Equal(t, KindRodata, classify(".custom", elf.SHF_ALLOC))
}

func TestAlignUp(t *testing.T) {
	assert.EqualValues(t, 0, alignUp(0, 16))
	assert.EqualValues(t, 16, alignUp(1, 16))
	assert.EqualValues(t, 16, alignUp(16, 16))
	assert.EqualValues(t, 32, alignUp(17, 16))
	assert.EqualValues(t, 5, alignUp(5, 1))
	assert.EqualValues(t, 5, alignUp(5, 0))
}
