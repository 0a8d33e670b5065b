package exfat

// writeAt copies data into ctx.image starting at the given cluster,
// spanning as many consecutive clusters as data requires and
// zero-padding the tail of the last one. The image buffer must already
// be sized for ctx.TotalSectors*sectorSize.
func (c *Context) writeAt(firstCluster int, data []byte) {
	off := c.ClusterByteOffset(firstCluster)
	n := copy(c.image[off:], data)
	end := off + int64(c.ClustersFor(len(data))*c.ClusterSize())
	for i := off + int64(n); i < end && i < int64(len(c.image)); i++ {
		c.image[i] = 0
	}
}

// advanceHint moves NextFreeCluster past the highest cluster number a
// just-completed allocation touched, so the next allocation's forward
// scan (spec §3: "next_cluster is a hint") starts past it.
func (c *Context) advanceHint(clusters []int) {
	for _, cl := range clusters {
		if cl+1 > c.NextFreeCluster {
			c.NextFreeCluster = cl + 1
		}
	}
}

// allocateFile allocates space for data, preferring a contiguous run
// (spec §4.4.2), and writes it into the image immediately. Zero-length
// data allocates no cluster at all (a valid exFAT file with FirstCluster
// 0, per the format's convention for empty files).
func (c *Context) allocateFile(data []byte) (firstCluster int, contiguous bool) {
	if len(data) == 0 {
		return 0, true
	}
	n := c.ClustersFor(len(data))

	if first, ok := c.Bitmap.AllocContiguous(c.NextFreeCluster, n); ok {
		c.writeAt(first, data)
		c.advanceHint(rangeOf(first, n))
		return first, true
	}

	chain := c.Bitmap.AllocChain(c.NextFreeCluster, n)
	c.FAT.WriteChain(chain)
	c.writeChain(chain, data)
	c.advanceHint(chain)
	return chain[0], false
}

// allocateDirectory writes entries into a directory's cluster chain.
// When fixedFirst is nonzero (the root directory, whose first cluster
// is always 4), that cluster is reused as the chain head and only the
// overflow, if any, is freshly allocated and chained onto it (spec
// §4.4.2: "Directory allocation uses chained clusters via FAT when a
// run of free entry slots of the required length cannot be found in the
// current cluster").
func (c *Context) allocateDirectory(entries []byte, fixedFirst int) int {
	n := c.ClustersFor(len(entries))
	if n < 1 {
		n = 1
	}

	var chain []int
	if fixedFirst != 0 {
		chain = append(chain, fixedFirst)
		if n > 1 {
			chain = append(chain, c.Bitmap.AllocChain(c.NextFreeCluster, n-1)...)
		}
	} else {
		chain = c.Bitmap.AllocChain(c.NextFreeCluster, n)
	}

	c.FAT.WriteChain(chain)
	c.writeChain(chain, entries)
	c.advanceHint(chain)
	return chain[0]
}

func (c *Context) writeChain(chain []int, data []byte) {
	clusterSize := c.ClusterSize()
	for i, cl := range chain {
		start := i * clusterSize
		end := start + clusterSize
		if end > len(data) {
			end = len(data)
		}
		c.writeAt(cl, data[start:end])
	}
}

func rangeOf(first, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = first + i
	}
	return out
}
