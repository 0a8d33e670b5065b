package elfcodec

import "fmt"

// Format names one of the four output modes (spec §4.3).
type Format string

const (
	FormatBin   Format = "bin"
	FormatPflat Format = "pflat"
	FormatDlib  Format = "dlib"
	FormatKdrv  Format = "kdrv"
)

// Options bundles the per-format parameters a CLI invocation supplies.
type Options struct {
	Base          uint64 // pflat
	ExportsSymbol string // kdrv
}

// Convert runs one codec pass: reads the ELF64 input at inPath, and
// writes outPath in the requested format.
func Convert(format Format, inPath, outPath string, opts Options) error {
	f, err := OpenELF(inPath)
	if err != nil {
		return err
	}
	defer f.Close()

	segs, err := LoadSegments(f)
	if err != nil {
		return err
	}

	switch format {
	case FormatBin:
		buf, _, err := Bin(segs)
		if err != nil {
			return err
		}
		return writeFile(outPath, buf)

	case FormatPflat:
		buf, err := Pflat(segs, opts.Base)
		if err != nil {
			return err
		}
		return writeFile(outPath, buf)

	case FormatDlib:
		return Dlib(segs, outPath)

	case FormatKdrv:
		return Kdrv(f, segs, opts.ExportsSymbol, outPath)

	default:
		return fmt.Errorf("elfcodec: unknown format %q", format)
	}
}
