package iso9660

import (
	"os"
	"path"
	"sort"
)

// BuildParams gathers everything Build needs to assemble a complete
// CD-bootable image (spec §4.4.1/§4.4.4): the combined BIOS system area
// (Stage 1 + Stage 2, so the same image also boots from HDD), an
// optional kernel flat binary, and the sysroot tree that becomes the
// filesystem's file data.
type BuildParams struct {
	SystemArea []byte // Stage 1 + Stage 2, written verbatim at block 0
	Kernel     []byte // optional
	Sysroot    string
	VolumeID   string
}

type node struct {
	name     string
	isDir    bool
	hostPath string
	size     uint32
	children []*node

	lba        uint32
	extentLen  uint32 // directories only: rounded-up byte length
	pathIndex  uint16 // 1-based path table index, directories only
	parentIdx  uint16
}

// Build assembles a full ISO-9660 + El Torito image (spec §4.4.4). Layout
// follows spec §4.4.1 exactly: the 32 KiB system area, PVD at block 16,
// Boot Record Volume Descriptor at 17, terminator at 18, boot catalog at
// 19, path tables at 20-21, the no-emulation boot image at block 22, then
// directory extents, kernel data, and file data.
func Build(p BuildParams) ([]byte, error) {
	root := &node{name: "", isDir: true}
	if p.Sysroot != "" {
		if err := walk(root, p.Sysroot); err != nil {
			return nil, err
		}
	}
	computeExtentLengths(root)

	nextLBA := uint32(DirectoryExtentStart)
	dirs := assignDirLBAs(root, &nextLBA)

	var kernelLBA, kernelBlocks uint32
	if len(p.Kernel) > 0 {
		kernelLBA = nextLBA
		kernelBlocks = blocksFor(len(p.Kernel))
		nextLBA += kernelBlocks
	}

	assignFileLBAs(root, &nextLBA)

	totalBlocks := nextLBA

	image := make([]byte, int(totalBlocks)*BlockSize)
	copy(image, p.SystemArea)

	pathEntries := buildPathEntries(dirs)
	pathTableL := BuildPathTable(pathEntries, false)
	pathTableM := BuildPathTable(pathEntries, true)

	copy(image[PathTableLBlock*BlockSize:], pathTableL)
	copy(image[PathTableMBlock*BlockSize:], pathTableM)

	bootImage := make([]byte, BootImageBlocks*BlockSize)
	copy(bootImage, p.SystemArea)
	copy(image[BootImageBlock*BlockSize:], bootImage)

	copy(image[BootRecordBlock*BlockSize:], BuildBootRecordVolumeDescriptor(BootCatalogBlock))
	copy(image[TerminatorBlock*BlockSize:], BuildVolumeDescriptorSetTerminator())
	copy(image[BootCatalogBlock*BlockSize:], BuildBootCatalog(BootImageBlock, uint16(BootImageBlocks*BlockSize/512)))

	pvd := BuildPVD(PVDParams{
		VolumeID:        p.VolumeID,
		VolumeSpaceSize: totalBlocks,
		PathTableSize:   uint32(len(pathTableL)),
		PathTableLLBA:   PathTableLBlock,
		PathTableMLBA:   PathTableMBlock,
		RootExtentLBA:   root.lba,
		RootExtentSize:  root.extentLen,
	})
	copy(image[PVDBlock*BlockSize:], pvd)

	writeDirectoryExtents(image, root)

	if len(p.Kernel) > 0 {
		copy(image[int(kernelLBA)*BlockSize:], p.Kernel)
	}

	writeFileData(image, root)

	return image, nil
}

func blocksFor(n int) uint32 {
	return uint32((n + BlockSize - 1) / BlockSize)
}

func walk(n *node, hostDir string) error {
	dirents, err := os.ReadDir(hostDir)
	if err != nil {
		return err
	}
	sort.Slice(dirents, func(i, j int) bool { return dirents[i].Name() < dirents[j].Name() })

	for _, de := range dirents {
		child := &node{name: de.Name(), hostPath: path.Join(hostDir, de.Name())}
		if de.IsDir() {
			child.isDir = true
			if err := walk(child, child.hostPath); err != nil {
				return err
			}
		} else {
			info, err := de.Info()
			if err != nil {
				return err
			}
			child.size = uint32(info.Size())
		}
		n.children = append(n.children, child)
	}
	return nil
}

// computeExtentLengths computes each directory's on-disk extent length
// (self + parent records, plus one record per child), independent of LBA
// assignment since record length only depends on identifier length.
func computeExtentLengths(n *node) {
	if !n.isDir {
		return
	}
	length := 68 // "." and ".." self records, 34 bytes each
	for _, c := range n.children {
		ident := FileIdentifier(c.name, c.isDir)
		recLen := 33 + len(ident)
		if recLen%2 != 0 {
			recLen++
		}
		length += recLen
		computeExtentLengths(c)
	}
	n.extentLen = uint32(((length + BlockSize - 1) / BlockSize) * BlockSize)
}

// assignDirLBAs walks directories in lexicographic order (spec §4.4.4:
// "LBA assignment walks directories in lexicographic order"), a
// pre-order traversal since a directory's own children are already
// sorted by name during walk. Returns the flattened list in assignment
// order, for the path tables.
func assignDirLBAs(root *node, next *uint32) []*node {
	var order []*node
	var visit func(n *node, parentIdx uint16)
	visit = func(n *node, parentIdx uint16) {
		n.lba = *next
		*next += n.extentLen / BlockSize
		n.pathIndex = uint16(len(order) + 1)
		n.parentIdx = parentIdx
		order = append(order, n)
		for _, c := range n.children {
			if c.isDir {
				visit(c, n.pathIndex)
			}
		}
	}
	visit(root, 1)
	return order
}

func assignFileLBAs(n *node, next *uint32) {
	for _, c := range n.children {
		if c.isDir {
			assignFileLBAs(c, next)
			continue
		}
		c.lba = *next
		*next += blocksFor(int(c.size))
		if c.size == 0 {
			*next++ // at least one block so a zero-length file still gets a distinct extent
		}
	}
}

func buildPathEntries(dirs []*node) []PathTableEntry {
	entries := make([]PathTableEntry, len(dirs))
	for i, d := range dirs {
		entries[i] = PathTableEntry{Name: d.name, ExtentLBA: d.lba, ParentIndex: d.parentIdx}
	}
	return entries
}

// writeDirectoryExtents renders every directory's extent bytes
// (self/parent records plus one record per child), recursing with each
// directory's own LBA/length standing in as "parent" for the root (whose
// ".." conventionally points at itself).
func writeDirectoryExtents(image []byte, n *node) {
	writeDirectoryExtent(image, n, n.lba, n.extentLen)
}

func writeDirectoryExtent(image []byte, n *node, parentLBA, parentLen uint32) {
	buf := make([]byte, 0, n.extentLen)
	buf = append(buf, BuildSelfRecords(n.lba, n.extentLen, parentLBA, parentLen)...)
	for _, c := range n.children {
		buf = append(buf, BuildDirRecord(DirRecord{
			Name:       c.name,
			Directory:  c.isDir,
			ExtentLBA:  c.lba,
			DataLength: extentSize(c),
		})...)
	}
	copy(image[int(n.lba)*BlockSize:], buf)

	for _, c := range n.children {
		if c.isDir {
			writeDirectoryExtent(image, c, n.lba, n.extentLen)
		}
	}
}

func extentSize(n *node) uint32 {
	if n.isDir {
		return n.extentLen
	}
	return n.size
}

func writeFileData(image []byte, n *node) {
	for _, c := range n.children {
		if c.isDir {
			writeFileData(image, c)
			continue
		}
		data, err := os.ReadFile(c.hostPath)
		if err != nil {
			continue
		}
		copy(image[int(c.lba)*BlockSize:], data)
	}
}
