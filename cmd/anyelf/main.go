// Command anyelf converts a linked ELF64 image into one of the
// bootloader/kernel/driver-loader payload formats (spec §4.3, §6).
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/anyos-project/anytoolchain/pkg/elfcodec"
	"github.com/spf13/cobra"
)

var (
	exportsSymbol string
	describe      bool
)

var rootCmd = &cobra.Command{
	Use:   "anyelf {bin|pflat|dlib|kdrv} in.elf out [base]",
	Short: "Flatten or repackage a linked ELF into a bootloader-consumable payload",
	Args:  cobra.RangeArgs(2, 4),
	RunE:  runConvert,
}

func init() {
	rootCmd.Flags().StringVar(&exportsSymbol, "exports-symbol", "DRIVER_EXPORTS", "kdrv: symbol naming the driver export table")
	rootCmd.Flags().BoolVar(&describe, "describe", false, "print the computed layout instead of writing an output file")
}

func runConvert(cmd *cobra.Command, args []string) error {
	format := elfcodec.Format(strings.ToLower(args[0]))
	switch format {
	case elfcodec.FormatBin, elfcodec.FormatPflat, elfcodec.FormatDlib, elfcodec.FormatKdrv:
	default:
		return fmt.Errorf("anyelf: unknown format %q (want bin, pflat, dlib or kdrv)", args[0])
	}

	inPath := args[1]
	opts := elfcodec.Options{ExportsSymbol: exportsSymbol}

	if describe {
		out, err := elfcodec.Describe(format, inPath, opts)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	if len(args) < 3 {
		return fmt.Errorf("anyelf: output path required unless --describe is given")
	}
	outPath := args[2]

	if format == elfcodec.FormatPflat && len(args) > 3 {
		base, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(args[3]), "0x"), 16, 64)
		if err != nil {
			return fmt.Errorf("anyelf: invalid base %q: %w", args[3], err)
		}
		opts.Base = base
	}

	return elfcodec.Convert(format, inPath, outPath, opts)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "anyelf:", err)
		os.Exit(1)
	}
}
