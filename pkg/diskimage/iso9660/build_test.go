package iso9660

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_ValidationEntryChecksumsToZero(t *testing.T) {
	entry := buildValidationEntry()
	var sum uint16
	for i := 0; i < 32; i += 2 {
		sum += uint16(entry[i]) | uint16(entry[i+1])<<8
	}
	assert.Equal(t, uint16(0), sum, "spec §8 testable property 9")
}

func TestBuild_ProducesReadablePVDAndRootDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "KERNEL.TXT"), []byte("kernel-stub"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "system"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "system", "driver.bin"), []byte("drv"), 0o644))

	systemArea := make([]byte, 32*1024)
	copy(systemArea, []byte("stage1+stage2"))

	image, err := Build(BuildParams{
		SystemArea: systemArea,
		Sysroot:    root,
		VolumeID:   "ANYOS",
	})
	require.NoError(t, err)

	assert.Equal(t, byte(VolumeDescriptorTypePrimary), image[PVDBlock*BlockSize])
	assert.Equal(t, []byte("CD001"), image[PVDBlock*BlockSize+1:PVDBlock*BlockSize+6])
	assert.Equal(t, byte(VolumeDescriptorTypeBootRecord), image[BootRecordBlock*BlockSize])
	assert.Equal(t, byte(VolumeDescriptorTypeTerminator), image[TerminatorBlock*BlockSize])

	assert.Equal(t, systemArea[:13], image[:13])
}
