package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/anyos-project/anytoolchain/pkg/diskimage/iso9660"
)

const systemAreaBytes = 32 * 1024 // spec §4.4.1: "the 32 KiB system area"

// buildISO assembles an ISO-9660 + El Torito image per spec §4.4.1/§4.4.4:
// the same Stage 1 + Stage 2 bytes that make a BIOS image bootable from
// hard disk sit in the 32 KiB system area here too, so the image boots
// identically from a CD drive via El Torito no-emulation.
func buildISO(opts buildOptions, logger *slog.Logger) error {
	stage1, err := readFileOrEmpty(opts.Stage1Path)
	if err != nil {
		return fmt.Errorf("mkimage: reading --stage1: %w", err)
	}
	stage2, err := readFileOrEmpty(opts.Stage2Path)
	if err != nil {
		return fmt.Errorf("mkimage: reading --stage2: %w", err)
	}
	kernel, err := readFileOrEmpty(opts.KernelPath)
	if err != nil {
		return fmt.Errorf("mkimage: reading --kernel: %w", err)
	}
	if len(stage1)+len(stage2) > systemAreaBytes {
		return fmt.Errorf("mkimage: --stage1 + --stage2 is %d bytes, must fit in the %d-byte system area", len(stage1)+len(stage2), systemAreaBytes)
	}

	systemArea := make([]byte, systemAreaBytes)
	copy(systemArea, stage1)
	copy(systemArea[len(stage1):], stage2)

	image, err := iso9660.Build(iso9660.BuildParams{
		SystemArea: systemArea,
		Kernel:     kernel,
		Sysroot:    opts.SysrootPath,
		VolumeID:   opts.VolumeLabel,
	})
	if err != nil {
		return fmt.Errorf("mkimage: building ISO image: %w", err)
	}

	logger.Info("wrote ISO image", "output", opts.OutputPath, "blocks", len(image)/iso9660.BlockSize)
	return os.WriteFile(opts.OutputPath, image, 0o644)
}
