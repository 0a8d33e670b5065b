package objlink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeLayout_RegionOrderingAndAlignment(t *testing.T) {
	m := NewMerger()
	m.Text.Write(make([]byte, 100))
	m.Rodata.Write(make([]byte, 10))
	m.Data.Write(make([]byte, 50))
	m.BssSize = 200

	hash := BuildHash([]string{"", "a", "b"})
	l := ComputeLayout(m, 3, 32, hash, 1, NumDynamicEntries(true, false), 0)

	require.Less(t, l.EhdrVA, l.PhdrVA)
	require.Less(t, l.PhdrVA, l.DynsymVA)
	require.Less(t, l.DynsymVA, l.DynstrVA)
	require.Less(t, l.DynstrVA, l.HashVA)
	require.Less(t, l.HashVA, l.RelaDynVA)
	require.LessOrEqual(t, l.RelaDynVA+l.RelaDynSize, l.TextVA)

	assert.Zero(t, l.TextVA%pageSize, ".text must start on a page boundary")
	assert.Zero(t, l.RodataVA%16, ".rodata must be 16-byte aligned")
	assert.Zero(t, l.DataVA%pageSize, ".data must start on a page boundary")
	assert.Zero(t, l.DynamicVA%8, ".dynamic must be 8-byte aligned")
	assert.Zero(t, l.BssVA%pageSize, ".bss must start on a page boundary")

	assert.GreaterOrEqual(t, l.RodataVA, l.TextVA+l.TextSize)
	assert.GreaterOrEqual(t, l.DataVA, l.RodataVA+l.RodataSize)
	assert.GreaterOrEqual(t, l.DynamicVA, l.DataVA+l.DataSize)
	assert.GreaterOrEqual(t, l.BssVA, l.DynamicVA+l.DynamicSize)

	assert.Equal(t, l.DynamicVA+l.DynamicSize, l.FileSize)
	assert.Equal(t, l.BssVA+l.BssSize, l.MemSize)
}

func TestComputeLayout_VAHelper(t *testing.T) {
	m := NewMerger()
	hash := BuildHash([]string{""})
	l := ComputeLayout(m, 1, 1, hash, 0, NumDynamicEntries(false, false), 0)

	assert.Equal(t, l.TextVA, l.VA(KindText))
	assert.Equal(t, l.RodataVA, l.VA(KindRodata))
	assert.Equal(t, l.DataVA, l.VA(KindData))
	assert.Equal(t, l.BssVA, l.VA(KindBss))
	assert.Equal(t, uint64(0), l.VA(KindDiscarded))
}
