package exfat

// Context is the exFAT filesystem context (spec §3 "Filesystem
// context"): everything needed to allocate clusters, walk the directory
// tree and render the final on-disk image.
type Context struct {
	BaseSector       uint64 // sector offset of this partition within the disk image
	TotalSectors     uint64
	SectorsPerCluster int
	ClusterCount     int
	FATOffsetSectors uint32
	FATLengthSectors uint32
	ClusterHeapOffsetSectors uint32
	RootCluster      int
	NextFreeCluster  int

	FAT    *FAT
	Bitmap *Bitmap

	image []byte // the partition's raw bytes, sized TotalSectors*SectorSize
}

const sectorSize = 512

// BytesPerSectorShift/DefaultSectorsPerCluster pair used throughout:
// 512-byte sectors (shift 9), 4KiB clusters (8 sectors/cluster) by
// default, matching common exFAT formatting defaults.
const (
	BytesPerSectorShift    = 9
	DefaultSectorsPerCluster = 8
)

// NewContext computes the geometry for a fresh exFAT volume spanning
// totalSectors sectors at baseSector within the disk image, with the
// default 4KiB cluster size.
func NewContext(baseSector, totalSectors uint64) *Context {
	const reservedSectors = 24 // boot region (main+backup, 12 sectors each)

	spc := DefaultSectorsPerCluster
	fatSectors := totalSectors / 4096
	if fatSectors < 1 {
		fatSectors = 1
	}

	heapOffset := reservedSectors + fatSectors
	clusterSectors := totalSectors - heapOffset
	clusterCount := int(clusterSectors) / spc
	if clusterCount < 4 {
		clusterCount = 4
	}

	ctx := &Context{
		BaseSector:               baseSector,
		TotalSectors:             totalSectors,
		SectorsPerCluster:        spc,
		ClusterCount:             clusterCount,
		FATOffsetSectors:         reservedSectors,
		FATLengthSectors:         uint32(fatSectors),
		ClusterHeapOffsetSectors: uint32(heapOffset),
		RootCluster:              4,
		NextFreeCluster:          5, // clusters 2,3,4 are reserved for bitmap/upcase/root
		FAT:                      NewFAT(clusterCount),
		Bitmap:                   NewBitmap(clusterCount + FirstDataCluster),
	}
	return ctx
}

// ClusterByteOffset returns this context's byte offset (within the
// partition) of the first byte of the given cluster.
func (c *Context) ClusterByteOffset(cluster int) int64 {
	heapSector := int64(c.ClusterHeapOffsetSectors) + int64(cluster-FirstDataCluster)*int64(c.SectorsPerCluster)
	return heapSector * sectorSize
}

// ClusterSize returns the byte size of one cluster.
func (c *Context) ClusterSize() int {
	return c.SectorsPerCluster * sectorSize
}

// ClustersFor returns how many clusters are needed to hold n bytes.
func (c *Context) ClustersFor(n int) int {
	sz := c.ClusterSize()
	return (n + sz - 1) / sz
}

// BootSectorParams renders this context's geometry as BootSectorParams.
func (c *Context) bootSectorParams(serial uint32) BootSectorParams {
	var sectorsPerClusterShift byte
	for v := c.SectorsPerCluster; v > 1; v >>= 1 {
		sectorsPerClusterShift++
	}
	return BootSectorParams{
		PartitionOffset:        c.BaseSector,
		VolumeLength:           c.TotalSectors,
		FATOffset:              c.FATOffsetSectors,
		FATLength:              c.FATLengthSectors,
		ClusterHeapOffset:      c.ClusterHeapOffsetSectors,
		ClusterCount:           uint32(c.ClusterCount),
		RootDirCluster:         uint32(c.RootCluster),
		VolumeSerial:           serial,
		BytesPerSectorShift:    BytesPerSectorShift,
		SectorsPerClusterShift: sectorsPerClusterShift,
		NumberOfFATs:           1,
	}
}
