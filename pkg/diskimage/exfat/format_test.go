package exfat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTotalSectors = 2048 // 1MiB image, plenty of clusters for small fixtures

func writeSysroot(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

func rootEntries(t *testing.T, image []byte) map[string]liveEntry {
	t.Helper()
	ctx := ContextFromImage(image, 0)
	chain := ctx.FAT.ReadChain(ctx.RootCluster)
	require.NotEmpty(t, chain)
	raw := ctx.readDirBytes(chain)
	out := make(map[string]liveEntry)
	for _, le := range scanEntries(raw) {
		out[le.entry.Name] = le
	}
	return out
}

func TestFormat_ProducesReadableRootDirectory(t *testing.T) {
	sysroot := writeSysroot(t, map[string]string{
		"a.txt":     "hello",
		"b.txt":     "world",
		"dir/c.txt": "sub",
	})

	image, err := Format(sysroot, testTotalSectors, 0, 0xC0FFEE, nil)
	require.NoError(t, err)
	require.Len(t, image, testTotalSectors*sectorSize)

	entries := rootEntries(t, image)
	require.Contains(t, entries, "a.txt")
	require.Contains(t, entries, "b.txt")
	require.Contains(t, entries, "dir")
	assert.True(t, entries["dir"].entry.Directory)
	assert.Equal(t, uint64(5), entries["a.txt"].entry.DataLength)
}

func TestSync_LeavesUnchangedFilesClustersAlone(t *testing.T) {
	sysroot := writeSysroot(t, map[string]string{
		"a.txt": "hello",
		"b.txt": "world",
	})

	image1, err := Format(sysroot, testTotalSectors, 0, 1, nil)
	require.NoError(t, err)
	before := rootEntries(t, image1)

	require.NoError(t, os.WriteFile(filepath.Join(sysroot, "a.txt"), []byte("hello!!"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sysroot, "d.txt"), []byte("new"), 0o644))

	image2 := append([]byte(nil), image1...)
	image2, err = Sync(image2, sysroot, 0, nil)
	require.NoError(t, err)
	after := rootEntries(t, image2)

	require.Contains(t, after, "b.txt")
	assert.Equal(t, before["b.txt"].entry.FirstCluster, after["b.txt"].entry.FirstCluster,
		"an unchanged file must keep its original cluster, per the incremental-sync invariant")
	assert.Equal(t, before["b.txt"].entry.DataLength, after["b.txt"].entry.DataLength)

	require.Contains(t, after, "a.txt")
	ctx := ContextFromImage(image2, 0)
	assert.Equal(t, []byte("hello!!"), ctx.fileBytes(after["a.txt"].entry))

	require.Contains(t, after, "d.txt")
	assert.Equal(t, []byte("new"), ctx.fileBytes(after["d.txt"].entry))
}

func TestSync_NeverDeletesFilesAbsentFromSysroot(t *testing.T) {
	sysroot := writeSysroot(t, map[string]string{"keep.txt": "x", "gone.txt": "y"})

	image, err := Format(sysroot, testTotalSectors, 0, 1, nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(sysroot, "gone.txt")))

	image, err = Sync(append([]byte(nil), image...), sysroot, 0, nil)
	require.NoError(t, err)

	entries := rootEntries(t, image)
	assert.Contains(t, entries, "gone.txt", "sync must never remove files absent from sysroot")
	assert.Contains(t, entries, "keep.txt")
}
