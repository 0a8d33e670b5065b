package exfat

import (
	"bytes"
	"os"
	"path"
	"sort"

	"github.com/anyos-project/anytoolchain/pkg/utils"
)

// Sync applies an incremental update (spec §4.4.5) to an existing exFAT
// partition image: files present in sysroot but byte-identical to what's
// already on disk are left untouched (their clusters are never rewritten,
// so a diffing tool comparing two runs sees no churn for unchanged
// content); changed files have their old entry set marked deleted and
// their old clusters freed, then a fresh entry set is appended; new files
// and directories are added; nothing present on disk but absent from
// sysroot is ever removed. Returns the full mutated partition image.
func Sync(existingImage []byte, sysroot string, baseSector uint64, perms []PermRule) ([]byte, error) {
	ctx := ContextFromImage(existingImage, baseSector)
	if perms == nil {
		perms = DefaultPermRules()
	}

	rootChain := ctx.FAT.ReadChain(ctx.RootCluster)
	if len(rootChain) == 0 {
		rootChain = []int{ctx.RootCluster}
	}

	if _, err := syncDirectory(ctx, rootChain, sysroot, "", perms); err != nil {
		return nil, err
	}

	copy(ctx.image[int(ctx.FATOffsetSectors)*sectorSize:], ctx.FAT.Bytes())
	ctx.writeAt(FirstDataCluster, ctx.Bitmap.Bytes())

	return ctx.image, nil
}

// liveEntry records one live File entry set's parsed content and its
// byte span within a directory's raw entry buffer, so a changed or
// stale entry can be located and marked deleted in place.
type liveEntry struct {
	entry       *Entry
	start, length int
}

// syncDirectory diffs one host directory against the exFAT directory
// occupying chain, mutating ctx in place, and returns the directory's
// (possibly grown) cluster chain.
func syncDirectory(ctx *Context, chain []int, hostDir, relPath string, perms []PermRule) ([]int, error) {
	raw := ctx.readDirBytes(chain)
	byName := utils.GenMap(scanEntries(raw), func(le liveEntry) string { return le.entry.Name })

	dirents, err := os.ReadDir(hostDir)
	if err != nil {
		return nil, err
	}
	sort.Slice(dirents, func(i, j int) bool { return dirents[i].Name() < dirents[j].Name() })

	for _, de := range dirents {
		childRel := de.Name()
		if relPath != "" {
			childRel = path.Join(relPath, de.Name())
		}
		childHost := path.Join(hostDir, de.Name())
		mode := ModeFor(childRel, perms)
		le, exists := byName[de.Name()]

		if de.IsDir() {
			if exists && le.entry.Directory {
				childChain := ctx.chainFor(le.entry)
				newChildChain, err := syncDirectory(ctx, childChain, childHost, childRel, perms)
				if err != nil {
					return nil, err
				}
				newLen := uint64(len(newChildChain) * ctx.ClusterSize())
				if newLen != le.entry.DataLength || newChildChain[0] != childChain[0] {
					updated := Entry{
						Name:         de.Name(),
						Directory:    true,
						FirstCluster: uint32(newChildChain[0]),
						DataLength:   newLen,
						Mode:         le.entry.Mode,
						UID:          le.entry.UID,
						GID:          le.entry.GID,
					}
					copy(raw[le.start:le.start+le.length], BuildEntrySet(updated))
				}
				continue
			}

			childEntries, err := buildDirectoryEntries(ctx, childHost, childRel, perms)
			if err != nil {
				return nil, err
			}
			first := ctx.allocateDirectory(childEntries, 0)
			raw = append(raw, BuildEntrySet(Entry{
				Name:         de.Name(),
				Directory:    true,
				FirstCluster: uint32(first),
				DataLength:   uint64(ctx.ClustersFor(len(childEntries)) * ctx.ClusterSize()),
				Mode:         mode,
			})...)
			continue
		}

		data, err := os.ReadFile(childHost)
		if err != nil {
			return nil, err
		}

		if exists && !le.entry.Directory && ctx.fileUnchanged(le.entry, data) {
			continue
		}

		if exists && !le.entry.Directory {
			markDeleted(raw, le.start, le.length)
			ctx.freeEntry(le.entry)
		}

		first, contiguous := ctx.allocateFile(data)
		raw = append(raw, BuildEntrySet(Entry{
			Name:         de.Name(),
			FirstCluster: uint32(first),
			DataLength:   uint64(len(data)),
			Contiguous:   contiguous,
			Mode:         mode,
		})...)
	}

	return ctx.writeDirBytes(chain, raw), nil
}

// scanEntries walks a directory's raw bytes and returns every live File
// entry set it contains. Deleted entry sets (type byte's bit 7 cleared)
// and the root directory's special bitmap/upcase/volume-label entries
// are skipped, but their span is still accounted for so the scan doesn't
// desynchronize.
func scanEntries(raw []byte) []liveEntry {
	var out []liveEntry
	i := 0
	for i+entrySize <= len(raw) {
		t := raw[i]
		if t == 0x00 {
			i += entrySize
			continue
		}
		if t&0x7F == EntryTypeFile&0x7F {
			secondaryCount := int(raw[i+1])
			total := (1 + secondaryCount) * entrySize
			if i+total > len(raw) {
				break
			}
			if t == EntryTypeFile {
				if e, _ := ParseEntrySet(raw[i : i+total]); e != nil {
					out = append(out, liveEntry{entry: e, start: i, length: total})
				}
			}
			i += total
			continue
		}
		i += entrySize
	}
	return out
}

// markDeleted clears bit 7 of every entry's type byte within [start,
// start+length), the exFAT convention for deleting an entry set without
// disturbing neighboring entries (spec §4.4.5).
func markDeleted(raw []byte, start, length int) {
	for off := start; off < start+length; off += entrySize {
		raw[off] &= EntryTypeDeletedMask
	}
}

// chainFor returns the cluster chain backing e's data, following the FAT
// for chained files/directories or deriving a contiguous run from e's
// recorded length for NoFatChain ones.
func (c *Context) chainFor(e *Entry) []int {
	if e.FirstCluster == 0 {
		return nil
	}
	if e.Contiguous {
		return rangeOf(int(e.FirstCluster), c.ClustersFor(int(e.DataLength)))
	}
	return c.FAT.ReadChain(int(e.FirstCluster))
}

// fileBytes reads back e's on-disk content.
func (c *Context) fileBytes(e *Entry) []byte {
	if e.FirstCluster == 0 {
		return nil
	}
	out := make([]byte, 0, e.DataLength)
	for _, cl := range c.chainFor(e) {
		off := int(c.ClusterByteOffset(cl))
		out = append(out, c.image[off:off+c.ClusterSize()]...)
	}
	if uint64(len(out)) > e.DataLength {
		out = out[:e.DataLength]
	}
	return out
}

// fileUnchanged reports whether e's on-disk content is byte-identical to
// data, the condition under which a sync leaves a file's clusters alone
// (spec §4.4.5, testable property 8).
func (c *Context) fileUnchanged(e *Entry, data []byte) bool {
	if e.DataLength != uint64(len(data)) {
		return false
	}
	return bytes.Equal(c.fileBytes(e), data)
}

// freeEntry releases the clusters backing a superseded file entry.
func (c *Context) freeEntry(e *Entry) {
	if e.FirstCluster == 0 {
		return
	}
	if e.Contiguous {
		c.Bitmap.Free(int(e.FirstCluster), c.ClustersFor(int(e.DataLength)))
		return
	}
	for _, cl := range c.FAT.ReadChain(int(e.FirstCluster)) {
		c.Bitmap.Free(cl, 1)
	}
	c.FAT.FreeChain(int(e.FirstCluster))
}

// readDirBytes concatenates a directory's cluster chain into one buffer.
func (c *Context) readDirBytes(chain []int) []byte {
	out := make([]byte, 0, len(chain)*c.ClusterSize())
	for _, cl := range chain {
		off := int(c.ClusterByteOffset(cl))
		out = append(out, c.image[off:off+c.ClusterSize()]...)
	}
	return out
}

// writeDirBytes writes data back into a directory's cluster chain,
// extending the chain (allocating and linking new clusters via the FAT)
// if data no longer fits, and returns the chain actually used.
func (c *Context) writeDirBytes(chain []int, data []byte) []int {
	need := c.ClustersFor(len(data))
	if need < 1 {
		need = 1
	}
	if need > len(chain) {
		extra := c.Bitmap.AllocChain(c.NextFreeCluster, need-len(chain))
		c.FAT.Set(chain[len(chain)-1], uint32(extra[0]))
		c.FAT.WriteChain(extra)
		c.advanceHint(extra)
		chain = append(append([]int{}, chain...), extra...)
	}
	c.writeChain(chain, data)
	return chain
}
