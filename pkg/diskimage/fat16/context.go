package fat16

// NumberOfFATs is fixed at the classic "one FAT pair" (spec §4.4.3).
const NumberOfFATs = 2

// Context holds the geometry and allocation state for one FAT16 volume
// (the UEFI ESP, spec §4.4.1/§4.4.3).
type Context struct {
	SectorsPerCluster int
	ReservedSectors   int
	FATSectors        int // size of ONE of the two FAT copies
	RootDirSectors    int
	DataStartSector   int
	ClusterCount      int

	FAT    *FAT
	Bitmap *Bitmap

	image []byte
}

// NewContext computes a FAT16 volume's geometry for totalSectors
// sectors, sized for a small ESP (spec default 3 MiB).
func NewContext(totalSectors int) *Context {
	const (
		reservedSectors   = 1
		sectorsPerCluster = 1
	)

	rootDirSectors := (RootEntryCount * EntrySize) / SectorSize

	// Two passes: estimate cluster count ignoring FAT size, then size the
	// FAT region to cover it (FAT16's classic circular geometry problem,
	// solved here by the standard "good enough" single correction pass).
	usable := totalSectors - reservedSectors - rootDirSectors
	fatSectors := (usable/sectorsPerCluster*2 + SectorSize - 1) / SectorSize
	if fatSectors < 1 {
		fatSectors = 1
	}
	dataStart := reservedSectors + NumberOfFATs*fatSectors + rootDirSectors
	clusterCount := (totalSectors - dataStart) / sectorsPerCluster

	return &Context{
		SectorsPerCluster: sectorsPerCluster,
		ReservedSectors:   reservedSectors,
		FATSectors:        fatSectors,
		RootDirSectors:    rootDirSectors,
		DataStartSector:   dataStart,
		ClusterCount:      clusterCount,
		FAT:               NewFAT(clusterCount),
		Bitmap:            NewBitmap(clusterCount),
		image:             make([]byte, totalSectors*SectorSize),
	}
}

func (c *Context) clusterOffset(cluster int) int {
	return (c.DataStartSector+(cluster-2)*c.SectorsPerCluster) * SectorSize
}

func (c *Context) clusterSize() int { return c.SectorsPerCluster * SectorSize }

func (c *Context) clustersFor(n int) int {
	sz := c.clusterSize()
	return (n + sz - 1) / sz
}

func (c *Context) writeChain(chain []int, data []byte) {
	sz := c.clusterSize()
	for i, cl := range chain {
		start := i * sz
		end := start + sz
		if end > len(data) {
			end = len(data)
		}
		off := c.clusterOffset(cl)
		copy(c.image[off:], data[start:end])
	}
}

// allocateFile writes data into a freshly allocated cluster chain and
// returns its first cluster (0 for an empty file).
func (c *Context) allocateFile(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := c.clustersFor(len(data))
	chain := c.Bitmap.AllocChain(2, n)
	c.FAT.WriteChain(chain)
	c.writeChain(chain, data)
	return chain[0]
}

// allocateDirectory writes entries into a freshly allocated cluster
// chain (subdirectories only; the root directory has its own fixed
// region, handled separately in format.go).
func (c *Context) allocateDirectory(entries []byte) int {
	n := c.clustersFor(len(entries))
	if n < 1 {
		n = 1
	}
	chain := c.Bitmap.AllocChain(2, n)
	c.FAT.WriteChain(chain)
	c.writeChain(chain, entries)
	return chain[0]
}
