package elfcodec

import (
	"fmt"

	"github.com/anyos-project/anytoolchain/internal/buildutil"
)

const (
	headerSize  = 4096
	pageSizeLog = 12
	pageSize    = 1 << pageSizeLog
)

// dlibMagic/dlibVersion identify the dlib header format (spec §4.3).
const (
	dlibMagic   = "DLIB"
	dlibVersion = 3
)

// Dlib partitions segs into RO and RW groups by the write flag, rounds
// each to whole pages, and writes a 4096-byte header followed by the
// concatenated RO and RW content.
func Dlib(segs []Segment, path string) error {
	var ro, rw []Segment
	for _, s := range segs {
		if s.Write {
			rw = append(rw, s)
		} else {
			ro = append(ro, s)
		}
	}

	roBuf, roBase, err := flattenGroup(ro)
	if err != nil {
		return fmt.Errorf("elfcodec: dlib: RO segments: %w", err)
	}
	rwBuf, rwBase, rwMemsz, err := flattenRW(rw)
	if err != nil {
		return fmt.Errorf("elfcodec: dlib: RW segments: %w", err)
	}

	baseVAddr := roBase
	if len(ro) == 0 {
		baseVAddr = rwBase
	}

	roPages := pagesFor(uint64(len(roBuf)))
	dataPages := pagesFor(uint64(len(rwBuf)))
	bssPages := pagesFor(rwMemsz) - dataPages
	totalPages := roPages + dataPages + bssPages

	out := buildutil.NewBuf(headerSize + int(roPages+dataPages)*pageSize)
	out.Write([]byte(dlibMagic))
	out.Uint32LE(dlibVersion)
	out.Uint32LE(headerSize)
	out.Uint32LE(0) // flags
	out.Uint64LE(baseVAddr)
	out.Uint32LE(uint32(roPages))
	out.Uint32LE(uint32(dataPages))
	out.Uint32LE(uint32(bssPages))
	out.Uint32LE(uint32(totalPages))
	out.Grow(headerSize)

	out.Write(roBuf)
	out.AlignToWith(pageSize, 0)
	out.Write(rwBuf)
	out.AlignToWith(pageSize, 0)

	return writeFile(path, out.Bytes())
}

// flattenGroup flattens a same-permission group of segments by virtual
// address, rounding the result up to a whole page (RO size, per spec).
func flattenGroup(segs []Segment) ([]byte, uint64, error) {
	if len(segs) == 0 {
		return nil, 0, nil
	}
	buf, base, err := flatten(segs, func(s Segment) uint64 { return s.VAddr })
	if err != nil {
		return nil, 0, err
	}
	return padToPage(buf), base, nil
}

// flattenRW flattens the RW group's file content (rounded up to a page)
// and separately reports its total in-memory size (also page-rounded),
// so the caller can derive a BSS page count.
func flattenRW(segs []Segment) ([]byte, uint64, uint64, error) {
	if len(segs) == 0 {
		return nil, 0, 0, nil
	}
	var memMax, fileMax, base uint64
	base = segs[0].VAddr
	for _, s := range segs {
		if s.VAddr < base {
			base = s.VAddr
		}
		if end := s.VAddr + s.Memsz; end > memMax {
			memMax = end
		}
		if end := s.VAddr + uint64(len(s.Data)); end > fileMax {
			fileMax = end
		}
	}

	fileBuf, _, err := flatten(segs, func(s Segment) uint64 { return s.VAddr })
	if err != nil {
		return nil, 0, 0, err
	}
	if fileMax < base {
		fileMax = base
	}
	if n := fileMax - base; n < uint64(len(fileBuf)) {
		fileBuf = fileBuf[:n]
	}
	return padToPage(fileBuf), base, alignUp(memMax-base, pageSize), nil
}

func padToPage(b []byte) []byte {
	n := alignUp(uint64(len(b)), pageSize)
	if n == uint64(len(b)) {
		return b
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func pagesFor(n uint64) uint64 { return alignUp(n, pageSize) / pageSize }

func alignUp(n, align uint64) uint64 {
	if align == 0 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}
