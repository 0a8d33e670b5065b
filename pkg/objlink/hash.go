package objlink

// sysvHash implements the System V ELF hash function (used by .hash /
// DT_HASH), per the generic ABI:
//
//	h = 0
//	for each byte c: h = (h<<4)+c; g = h&0xf0000000; if g != 0 { h ^= g>>24 }; h &^= g
func sysvHash(name string) uint32 {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = (h << 4) + uint32(name[i])
		if g := h & 0xf0000000; g != 0 {
			h ^= g >> 24
		}
		h &^= 0xf0000000
	}
	return h
}

// HashSection is the built .hash section contents: nbucket, nchain,
// bucket[nbucket], chain[nchain] — all 32-bit LE, per the generic ABI
// §"Hash Table".
type HashSection struct {
	Nbucket uint32
	Nchain  uint32
	Bucket  []uint32
	Chain   []uint32
}

// BuildHash builds a .hash section over the given ordered dynamic symbol
// names. names[0] is expected to be the empty-name null symbol, per the
// ABI's requirement that chain index 0 always be STN_UNDEF.
func BuildHash(names []string) *HashSection {
	n := len(names)
	nbuckets := n | 1
	if nbuckets < 3 {
		nbuckets = 3
	}

	h := &HashSection{
		Nbucket: uint32(nbuckets),
		Nchain:  uint32(n),
		Bucket:  make([]uint32, nbuckets),
		Chain:   make([]uint32, n),
	}

	for i := 1; i < n; i++ {
		b := sysvHash(names[i]) % uint32(nbuckets)
		h.Chain[i] = h.Bucket[b]
		h.Bucket[b] = uint32(i)
	}

	return h
}

// Size returns the byte size of the encoded section.
func (h *HashSection) Size() uint64 {
	return uint64(4 * (2 + len(h.Bucket) + len(h.Chain)))
}
