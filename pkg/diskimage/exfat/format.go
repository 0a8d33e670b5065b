package exfat

import (
	"os"
	"path"
	"sort"
)

// Format builds a complete exFAT volume from scratch, populated from the
// sysroot directory tree, and returns the partition's raw bytes (spec
// §4.4.2). serial seeds the volume serial number field.
func Format(sysroot string, totalSectors uint64, baseSector uint64, serial uint32, perms []PermRule) ([]byte, error) {
	ctx := NewContext(baseSector, totalSectors)
	ctx.image = make([]byte, totalSectors*sectorSize)

	ctx.Bitmap.Reserve(FirstDataCluster, 3) // clusters 2 (bitmap), 3 (upcase), 4 (root)

	upcase := buildUpcaseTable()
	ctx.writeAt(3, upcase)

	var rootEntries []byte
	rootEntries = append(rootEntries, buildBitmapEntry(ctx)...)
	rootEntries = append(rootEntries, buildUpcaseEntry(len(upcase))...)
	rootEntries = append(rootEntries, buildVolumeLabelEntry("ANYOS")...)

	if perms == nil {
		perms = DefaultPermRules()
	}

	if sysroot != "" {
		children, err := buildDirectoryEntries(ctx, sysroot, "", perms)
		if err != nil {
			return nil, err
		}
		rootEntries = append(rootEntries, children...)
	}

	ctx.allocateDirectory(rootEntries, ctx.RootCluster)

	// Bitmap cluster is rendered last: every allocation up to this point
	// (including the ones the walk above just performed) must be
	// reflected in it.
	ctx.writeAt(FirstDataCluster, ctx.Bitmap.Bytes())

	bootSector := BuildBootSector(ctx.bootSectorParams(serial))
	bootRegion := BuildBootRegion(bootSector)
	copy(ctx.image[0:], bootRegion)
	copy(ctx.image[12*sectorSize:], bootRegion) // backup boot region

	copy(ctx.image[int(ctx.FATOffsetSectors)*sectorSize:], ctx.FAT.Bytes())

	return ctx.image, nil
}

// buildDirectoryEntries walks one host directory (sysroot-relative path
// relPath) and returns the entry-set bytes for everything it directly
// contains. Subdirectories are fully built and allocated before their
// parent's entry is emitted, since the parent's Stream Extension entry
// needs the child's already-assigned first cluster.
func buildDirectoryEntries(ctx *Context, hostDir, relPath string, perms []PermRule) ([]byte, error) {
	dirents, err := os.ReadDir(hostDir)
	if err != nil {
		return nil, err
	}
	sort.Slice(dirents, func(i, j int) bool { return dirents[i].Name() < dirents[j].Name() })

	var out []byte
	for _, de := range dirents {
		childRel := de.Name()
		if relPath != "" {
			childRel = path.Join(relPath, de.Name())
		}
		childHost := path.Join(hostDir, de.Name())
		mode := ModeFor(childRel, perms)

		if de.IsDir() {
			childEntries, err := buildDirectoryEntries(ctx, childHost, childRel, perms)
			if err != nil {
				return nil, err
			}
			first := ctx.allocateDirectory(childEntries, 0)
			out = append(out, BuildEntrySet(Entry{
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
		first, contiguous := ctx.allocateFile(data)
		out = append(out, BuildEntrySet(Entry{
			Name:         de.Name(),
			FirstCluster: uint32(first),
			DataLength:   uint64(len(data)),
			Contiguous:   contiguous,
			Mode:         mode,
		})...)
	}
	return out, nil
}

func buildUpcaseTable() []byte {
	table := make([]byte, 256*2)
	for cp := 0; cp < 128; cp++ {
		u := Upcase(uint16(cp))
		putU16(table[cp*2:cp*2+2], u)
	}
	for cp := 128; cp < 256; cp++ {
		putU16(table[cp*2:cp*2+2], uint16(cp))
	}
	return table
}

func buildBitmapEntry(ctx *Context) []byte {
	e := make([]byte, entrySize)
	e[0] = 0x81 // Allocation Bitmap
	e[1] = 0    // BitmapFlags: first (and only) bitmap
	putU32(e[20:24], FirstDataCluster)
	putU64(e[24:32], uint64(len(ctx.Bitmap.Bytes())))
	return e
}

func buildUpcaseEntry(tableLen int) []byte {
	e := make([]byte, entrySize)
	e[0] = 0x82 // Upcase Table
	putU32(e[4:8], UpcaseTableChecksum())
	putU32(e[20:24], 3) // fixed upcase cluster
	putU64(e[24:32], uint64(tableLen))
	return e
}

func buildVolumeLabelEntry(label string) []byte {
	e := make([]byte, entrySize)
	e[0] = 0x83
	units := ToUTF16(label)
	if len(units) > 11 {
		units = units[:11]
	}
	e[1] = byte(len(units))
	for i, u := range units {
		putU16(e[2+2*i:4+2*i], u)
	}
	return e
}
