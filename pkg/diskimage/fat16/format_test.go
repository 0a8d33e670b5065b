package fat16

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_BootSectorSignatureAndBPB(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "BOOTX64.EFI"), []byte("efi-stub"), 0o644))

	const totalSectors = 3 * 1024 * 1024 / SectorSize // 3 MiB ESP, spec default
	image, err := Format(root, totalSectors, 0xABCD, "ANYOS-ESP")
	require.NoError(t, err)
	require.Len(t, image, totalSectors*SectorSize)

	assert.Equal(t, byte(0x55), image[510])
	assert.Equal(t, byte(0xAA), image[511])
	assert.Equal(t, byte(0xF8), image[21], "media descriptor byte in BPB")
}

func TestFAT_ChainAndBytesRoundTrip(t *testing.T) {
	f := NewFAT(10)
	f.WriteChain([]int{3, 4, 7})

	assert.Equal(t, uint16(4), f.Get(3))
	assert.Equal(t, uint16(ClusterEOF), f.Get(7))

	data := f.Bytes()
	assert.Equal(t, byte(0xF8), data[0])
	assert.Equal(t, byte(0xFF), data[1])
}
