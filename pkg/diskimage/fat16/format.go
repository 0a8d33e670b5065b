package fat16

import (
	"os"
	"path"
	"sort"
)

// Format builds a complete FAT16 volume from the given sysroot
// directory tree and returns the partition's raw bytes. sysroot is
// typically the ESP contents (`/EFI/BOOT/BOOTX64.EFI`, and if a kernel
// is supplied, `/System/kernel.bin`, per spec §4.4.1).
func Format(sysroot string, totalSectors int, serial uint32, volumeLabel string) ([]byte, error) {
	ctx := NewContext(totalSectors)

	var rootEntries []byte
	if sysroot != "" {
		entries, err := buildDirectoryEntries(ctx, sysroot, "")
		if err != nil {
			return nil, err
		}
		rootEntries = entries
	}

	rootOffset := (ctx.ReservedSectors + NumberOfFATs*ctx.FATSectors) * SectorSize
	copy(ctx.image[rootOffset:], rootEntries)

	bootSector := BuildBootSector(BPBParams{
		SectorsPerCluster: byte(ctx.SectorsPerCluster),
		ReservedSectors:   uint16(ctx.ReservedSectors),
		NumberOfFATs:      NumberOfFATs,
		SectorsPerFAT:     uint16(ctx.FATSectors),
		TotalSectors:      uint32(totalSectors),
		VolumeSerial:      serial,
		VolumeLabel:       volumeLabel,
	})
	copy(ctx.image[0:], bootSector)

	fatRegionSize := ctx.FATSectors * SectorSize
	padded := make([]byte, fatRegionSize)
	copy(padded, ctx.FAT.Bytes())

	fat1Offset := ctx.ReservedSectors * SectorSize
	fat2Offset := fat1Offset + fatRegionSize
	copy(ctx.image[fat1Offset:], padded)
	copy(ctx.image[fat2Offset:], padded) // FAT #2, identical mirror

	return ctx.image, nil
}

func buildDirectoryEntries(ctx *Context, hostDir, relPath string) ([]byte, error) {
	dirents, err := os.ReadDir(hostDir)
	if err != nil {
		return nil, err
	}
	sort.Slice(dirents, func(i, j int) bool { return dirents[i].Name() < dirents[j].Name() })

	alloc := NewShortNameAllocator()
	var out []byte
	for _, de := range dirents {
		childHost := path.Join(hostDir, de.Name())

		if de.IsDir() {
			childRel := de.Name()
			if relPath != "" {
				childRel = path.Join(relPath, de.Name())
			}
			childEntries, err := buildDirectoryEntries(ctx, childHost, childRel)
			if err != nil {
				return nil, err
			}
			first := ctx.allocateDirectory(childEntries)
			out = append(out, BuildEntrySet(DirEntry{
				LongName:     de.Name(),
				Directory:    true,
				FirstCluster: uint16(first),
			}, alloc)...)
			continue
		}

		data, err := os.ReadFile(childHost)
		if err != nil {
			return nil, err
		}
		first := ctx.allocateFile(data)
		out = append(out, BuildEntrySet(DirEntry{
			LongName:     de.Name(),
			FirstCluster: uint16(first),
			FileSize:     uint32(len(data)),
		}, alloc)...)
	}
	return out, nil
}
