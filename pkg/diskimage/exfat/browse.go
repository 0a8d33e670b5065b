package exfat

// ListDir returns every live entry directly inside the directory backed
// by chain, for read-only browsing tools (SPEC_FULL.md's `mkimage
// inspect`) built on top of an already-parsed Context.
func ListDir(ctx *Context, chain []int) []Entry {
	raw := ctx.readDirBytes(chain)
	var out []Entry
	for _, le := range scanEntries(raw) {
		out = append(out, *le.entry)
	}
	return out
}

// ChainFor exposes chainFor for read-only browsing tools that need an
// entry's cluster chain without mutating the volume.
func ChainFor(ctx *Context, e *Entry) []int {
	return ctx.chainFor(e)
}

// ReadFile exposes fileBytes for read-only browsing tools.
func ReadFile(ctx *Context, e *Entry) []byte {
	return ctx.fileBytes(e)
}
