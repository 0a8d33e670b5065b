package elfcodec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDlib_HeaderAndPageRounding(t *testing.T) {
	segs := []Segment{
		{VAddr: 0x1000, Memsz: 10, Filesz: 10, Data: make([]byte, 10), Write: false},       // RO
		{VAddr: 0x2000, Memsz: pageSize + 10, Filesz: 10, Data: make([]byte, 10), Write: true}, // RW with BSS tail
	}

	path := filepath.Join(t.TempDir(), "out.dlib")
	require.NoError(t, Dlib(segs, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), headerSize)

	assert.Equal(t, dlibMagic, string(data[0:4]))
	version := uint32(data[4]) | uint32(data[5])<<8 | uint32(data[6])<<16 | uint32(data[7])<<24
	assert.EqualValues(t, dlibVersion, version)

	roPages := uint32(data[24]) | uint32(data[25])<<8 | uint32(data[26])<<16 | uint32(data[27])<<24
	dataPages := uint32(data[28]) | uint32(data[29])<<8 | uint32(data[30])<<16 | uint32(data[31])<<24
	bssPages := uint32(data[32]) | uint32(data[33])<<8 | uint32(data[34])<<16 | uint32(data[35])<<24

	assert.EqualValues(t, 1, roPages)
	assert.EqualValues(t, 1, dataPages)
	assert.EqualValues(t, 1, bssPages, "memsz tail beyond one page of RW file content must round to one BSS page")

	assert.Equal(t, headerSize+int(roPages+dataPages)*pageSize, len(data))
}
