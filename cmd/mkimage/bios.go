package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/anyos-project/anytoolchain/pkg/diskimage/exfat"
	"github.com/anyos-project/anytoolchain/pkg/diskimage/layout"
)

// buildBIOS assembles a legacy-BIOS image per spec §4.4.1: sector 0 is
// Stage 1 plus the MBR partition table, sectors 1..63 are Stage 2
// (patched with the kernel's sector count and start LBA), sector 64
// begins the kernel flat binary, and the exFAT partition begins at
// --fs-start.
func buildBIOS(opts buildOptions, logger *slog.Logger) error {
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

	totalSectors := layout.DiskSectors(opts.ImageSizeMiB)
	if opts.FSStartSector >= totalSectors {
		return fmt.Errorf("mkimage: --fs-start %d is beyond the %d-sector image", opts.FSStartSector, totalSectors)
	}

	image := make([]byte, totalSectors*layout.SectorSize)

	if len(stage1) > layout.SectorSize {
		return fmt.Errorf("mkimage: --stage1 is %d bytes, must fit in one %d-byte sector", len(stage1), layout.SectorSize)
	}
	copy(image[layout.Stage1LBA*layout.SectorSize:], stage1)

	stage2MaxBytes := layout.Stage2Length * layout.SectorSize
	if len(stage2) > stage2MaxBytes {
		return fmt.Errorf("mkimage: --stage2 is %d bytes, must fit in %d sectors", len(stage2), layout.Stage2Length)
	}
	stage2Buf := make([]byte, stage2MaxBytes)
	copy(stage2Buf, stage2)

	kernelSectors := uint16((len(kernel) + layout.SectorSize - 1) / layout.SectorSize)
	putU16LE(stage2Buf[layout.Stage2SectorCountOffset:], kernelSectors)
	putU32LE(stage2Buf[layout.Stage2StartLBAOffset:], uint32(layout.KernelLBA))
	copy(image[layout.Stage2LBA*layout.SectorSize:], stage2Buf)

	kernelMaxBytes := int(opts.FSStartSector-layout.KernelLBA) * layout.SectorSize
	if len(kernel) > kernelMaxBytes {
		return fmt.Errorf("mkimage: --kernel is %d bytes, must fit before --fs-start (%d bytes available)", len(kernel), kernelMaxBytes)
	}
	copy(image[layout.KernelLBA*layout.SectorSize:], kernel)

	layout.WriteMBRPartitionTable(image[:layout.SectorSize], []layout.PartitionEntry{
		{Bootable: true, Type: 0x83, StartLBA: uint32(opts.FSStartSector), SectorCount: uint32(totalSectors - opts.FSStartSector)},
	})

	fsSectors := totalSectors - opts.FSStartSector
	fsImage, err := buildOrSyncExfat(opts, fsSectors, opts.FSStartSector, totalSectors)
	if err != nil {
		return err
	}
	copy(image[opts.FSStartSector*layout.SectorSize:], fsImage)

	logger.Info("wrote BIOS image", "output", opts.OutputPath, "total_sectors", totalSectors, "fs_start", opts.FSStartSector)
	return os.WriteFile(opts.OutputPath, image, 0o644)
}

// buildOrSyncExfat formats a fresh exFAT partition, or incrementally
// syncs the existing one from opts.OutputPath when it already has the
// expected size and --reset wasn't given (spec §4.4.5).
func buildOrSyncExfat(opts buildOptions, fsSectors, fsStartSector, totalSectors uint64) ([]byte, error) {
	if !opts.Reset {
		if existing, ok := readExistingPartition(opts.OutputPath, fsStartSector, fsSectors, totalSectors); ok {
			return exfat.Sync(existing, opts.SysrootPath, fsStartSector, opts.Perms)
		}
	}
	return exfat.Format(opts.SysrootPath, fsSectors, fsStartSector, defaultSerial, opts.Perms)
}

const defaultSerial = 0x434f4f4c // "COOL", arbitrary fixed serial for reproducible rebuilds

// readExistingPartition reads back the exFAT partition from an existing
// output image when the whole image already has exactly the expected
// size and --reset wasn't given (spec §4.4.5).
func readExistingPartition(path string, fsStartSector, fsSectors, totalSectors uint64) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	if uint64(len(data)) != totalSectors*layout.SectorSize {
		return nil, false
	}
	start := fsStartSector * layout.SectorSize
	end := start + fsSectors*layout.SectorSize
	return append([]byte(nil), data[start:end]...), true
}

func putU16LE(dst []byte, v uint16) { dst[0], dst[1] = byte(v), byte(v>>8) }
func putU32LE(dst []byte, v uint32) {
	dst[0], dst[1], dst[2], dst[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
