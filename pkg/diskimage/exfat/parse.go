package exfat

// ParseBootSector reads back the geometry fields an exFAT Main Boot
// Sector encodes, for the incremental-update path (spec §4.4.5).
func ParseBootSector(data []byte) BootSectorParams {
	return BootSectorParams{
		PartitionOffset:        getU64(data[64:72]),
		VolumeLength:           getU64(data[72:80]),
		FATOffset:              getU32(data[80:84]),
		FATLength:              getU32(data[84:88]),
		ClusterHeapOffset:      getU32(data[88:92]),
		ClusterCount:           getU32(data[92:96]),
		RootDirCluster:         getU32(data[96:100]),
		VolumeSerial:           getU32(data[100:104]),
		BytesPerSectorShift:    data[108],
		SectorsPerClusterShift: data[109],
		NumberOfFATs:           data[110],
	}
}

// ContextFromImage reconstructs a Context (geometry, FAT cache, bitmap,
// next-free hint) from an existing exFAT partition's raw bytes, as the
// first step of an incremental sync.
func ContextFromImage(data []byte, baseSector uint64) *Context {
	p := ParseBootSector(data)
	spc := 1 << p.SectorsPerClusterShift

	ctx := &Context{
		BaseSector:               baseSector,
		TotalSectors:             p.VolumeLength,
		SectorsPerCluster:        spc,
		ClusterCount:             int(p.ClusterCount),
		FATOffsetSectors:         p.FATOffset,
		FATLengthSectors:         p.FATLength,
		ClusterHeapOffsetSectors: p.ClusterHeapOffset,
		RootCluster:              int(p.RootDirCluster),
		image:                    data,
	}

	fatOff := int(p.FATOffset) * sectorSize
	fatLen := int(p.FATLength) * sectorSize
	ctx.FAT = ParseFAT(data[fatOff : fatOff+fatLen])

	bitmapBytes := (int(p.ClusterCount) + 7) / 8
	bitmapOff := int(ctx.ClusterByteOffset(FirstDataCluster))
	ctx.Bitmap = NewBitmapFromBytes(data[bitmapOff:bitmapOff+bitmapBytes], int(p.ClusterCount)+FirstDataCluster)

	ctx.NextFreeCluster = FirstDataCluster
	if c, ok := ctx.Bitmap.FindFree(FirstDataCluster); ok {
		ctx.NextFreeCluster = c
	}

	return ctx
}
