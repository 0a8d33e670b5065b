package elfcodec

import "fmt"

// flatten builds a zero-initialized buffer spanning [minAddr, maxAddr)
// across segs, keyed by whichever address field addrOf selects, and
// copies each segment's file data to its offset within that buffer.
// BSS (the memsz tail beyond filesz) is implicit: the buffer starts
// zeroed and is never written past filesz for that segment.
func flatten(segs []Segment, addrOf func(Segment) uint64) ([]byte, uint64, error) {
	if len(segs) == 0 {
		return nil, 0, fmt.Errorf("elfcodec: no segments to flatten")
	}

	minAddr := addrOf(segs[0])
	maxAddr := addrOf(segs[0]) + segs[0].Memsz
	for _, s := range segs[1:] {
		base := addrOf(s)
		if base < minAddr {
			minAddr = base
		}
		if end := base + s.Memsz; end > maxAddr {
			maxAddr = end
		}
	}

	buf := make([]byte, maxAddr-minAddr)
	for _, s := range segs {
		off := addrOf(s) - minAddr
		if off+uint64(len(s.Data)) > uint64(len(buf)) {
			return nil, 0, fmt.Errorf("elfcodec: segment at 0x%x overruns flattened buffer", addrOf(s))
		}
		copy(buf[off:], s.Data)
	}
	return buf, minAddr, nil
}

// Bin flattens segs by virtual address, per spec §4.3's "bin" mode.
func Bin(segs []Segment) ([]byte, uint64, error) {
	return flatten(segs, func(s Segment) uint64 { return s.VAddr })
}

// Pflat flattens segs by physical address relative to a caller-supplied
// base, per spec §4.3's "pflat" mode. The output is anchored at the
// caller's base, not the computed minimum, so the caller controls where
// a PC-relative kernel expects to be loaded.
func Pflat(segs []Segment, base uint64) ([]byte, error) {
	buf, minAddr, err := flatten(segs, func(s Segment) uint64 { return s.Paddr })
	if err != nil {
		return nil, err
	}
	if minAddr < base {
		return nil, fmt.Errorf("elfcodec: lowest physical address 0x%x is below base 0x%x", minAddr, base)
	}
	// Re-flatten anchored at base so a gap between base and the first
	// segment's physical address is represented as leading zero bytes.
	if minAddr == base {
		return buf, nil
	}
	padded := make([]byte, minAddr-base+uint64(len(buf)))
	copy(padded[minAddr-base:], buf)
	return padded, nil
}
