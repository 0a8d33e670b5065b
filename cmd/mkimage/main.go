// Command mkimage formats a bootable disk image (BIOS, UEFI or ISO-9660)
// from a stage1/stage2 bootloader, an optional kernel, and a sysroot
// directory tree (spec §4.4, §6 "C4 image writer CLI").
package main

import (
	"fmt"
	"os"

	"github.com/anyos-project/anytoolchain/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	uefiMode bool
	isoMode  bool

	stage1Path     string
	stage2Path     string
	kernelPath     string
	bootloaderPath string
	outputPath     string
	sysrootPath    string
	imageSizeMiB   int
	fsStartSector  uint64
	reset          bool
	permMapPath    string
	volumeLabel    string

	verbose bool
	logFile string
)

var rootCmd = &cobra.Command{
	Use:   "mkimage",
	Short: "Format a bootable disk image from a bootloader, kernel and sysroot",
	RunE:  runMkimage,
}

func init() {
	rootCmd.Flags().BoolVar(&uefiMode, "uefi", false, "build a UEFI-bootable image (protective MBR + GPT + FAT16 ESP)")
	rootCmd.Flags().BoolVar(&isoMode, "iso", false, "build an ISO-9660 + El Torito image, bootable from HDD and CD")
	rootCmd.Flags().StringVar(&stage1Path, "stage1", "", "BIOS Stage 1 binary (512 bytes)")
	rootCmd.Flags().StringVar(&stage2Path, "stage2", "", "BIOS Stage 2 binary")
	rootCmd.Flags().StringVar(&kernelPath, "kernel", "", "kernel flat binary")
	rootCmd.Flags().StringVar(&bootloaderPath, "bootloader", "", "UEFI bootloader (BOOTX64.EFI)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output image path (required)")
	rootCmd.Flags().StringVar(&sysrootPath, "sysroot", "", "host directory copied into the image's filesystem root")
	rootCmd.Flags().IntVar(&imageSizeMiB, "image-size", 64, "total image size in MiB")
	rootCmd.Flags().Uint64Var(&fsStartSector, "fs-start", 8192, "BIOS mode: sector where the exFAT partition begins")
	rootCmd.Flags().BoolVar(&reset, "reset", false, "rebuild the exFAT partition from scratch instead of an incremental sync")
	rootCmd.Flags().StringVar(&permMapPath, "perm-map", "", "file of path-prefix,mode rules overriding the exFAT default permission map")
	rootCmd.Flags().StringVar(&volumeLabel, "volume-label", "ANYOS", "filesystem volume label/ID")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "also write JSON log records to this file")
	_ = rootCmd.MarkFlagRequired("output")
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(inspectCmd)
}

func initConfig() {
	viper.SetEnvPrefix("MKIMAGE")
	viper.AutomaticEnv()
}

func runMkimage(cmd *cobra.Command, args []string) error {
	if uefiMode && isoMode {
		return fmt.Errorf("mkimage: --uefi and --iso are mutually exclusive")
	}

	logger, closeFn, err := logging.New("mkimage", logging.Options{Verbose: verbose, LogFile: logFile})
	if err != nil {
		return err
	}
	defer closeFn()

	perms, err := loadPermMap(permMapPath)
	if err != nil {
		return fmt.Errorf("mkimage: --perm-map: %w", err)
	}

	opts := buildOptions{
		Stage1Path:     stage1Path,
		Stage2Path:     stage2Path,
		KernelPath:     kernelPath,
		BootloaderPath: bootloaderPath,
		OutputPath:     outputPath,
		SysrootPath:    sysrootPath,
		ImageSizeMiB:   imageSizeMiB,
		FSStartSector:  fsStartSector,
		Reset:          reset,
		VolumeLabel:    volumeLabel,
		Perms:          perms,
	}

	switch {
	case isoMode:
		return buildISO(opts, logger)
	case uefiMode:
		return buildUEFI(opts, logger)
	default:
		return buildBIOS(opts, logger)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mkimage:", err)
		os.Exit(1)
	}
}
