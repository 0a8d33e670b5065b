package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/anyos-project/anytoolchain/pkg/diskimage/fat16"
	"github.com/anyos-project/anytoolchain/pkg/diskimage/layout"
)

const gptEntriesSectors = layout.GPTEntryCount * layout.GPTEntrySize / layout.SectorSize // 32 sectors

// buildUEFI assembles a UEFI-bootable image per spec §4.4.1: a
// protective MBR, a primary GPT header/entries pair, a FAT16 ESP holding
// /EFI/BOOT/BOOTX64.EFI (and /System/kernel.bin when a kernel is given),
// an exFAT data partition for the rest of the space, and a backup GPT at
// the end of the disk.
func buildUEFI(opts buildOptions, logger *slog.Logger) error {
	bootloader, err := readFileOrEmpty(opts.BootloaderPath)
	if err != nil {
		return fmt.Errorf("mkimage: reading --bootloader: %w", err)
	}
	kernel, err := readFileOrEmpty(opts.KernelPath)
	if err != nil {
		return fmt.Errorf("mkimage: reading --kernel: %w", err)
	}

	totalSectors := layout.DiskSectors(opts.ImageSizeMiB)
	espSectors := layout.ESPSizeBytes / layout.SectorSize
	espEnd := layout.ESPStartLBA + espSectors - 1
	fsStart := espEnd + 1

	backupEntriesStart := totalSectors - 1 - gptEntriesSectors
	backupHeaderLBA := totalSectors - 1
	lastUsableLBA := backupEntriesStart - 1
	firstUsableLBA := uint64(layout.GPTEntriesLBA + gptEntriesSectors)

	if uint64(fsStart) >= lastUsableLBA {
		return fmt.Errorf("mkimage: --image-size %dMiB is too small for the ESP and GPT overhead", opts.ImageSizeMiB)
	}

	image := make([]byte, totalSectors*layout.SectorSize)

	espSysroot, err := stageESPSysroot(bootloader, kernel)
	if err != nil {
		return err
	}
	defer os.RemoveAll(espSysroot)

	espImage, err := fat16.Format(espSysroot, espSectors, defaultSerial, "ANYOS-ESP")
	if err != nil {
		return fmt.Errorf("mkimage: formatting ESP: %w", err)
	}
	copy(image[layout.ESPStartLBA*layout.SectorSize:], espImage)

	fsSectors := lastUsableLBA - uint64(fsStart) + 1
	fsImage, err := buildOrSyncExfat(opts, fsSectors, uint64(fsStart), totalSectors)
	if err != nil {
		return err
	}
	copy(image[uint64(fsStart)*layout.SectorSize:], fsImage)

	diskGUID := layout.NewGUID()
	espSpec := layout.PartitionSpec{
		TypeGUID:   layout.EFISystemPartitionTypeGUID,
		UniqueGUID: layout.NewGUID(),
		FirstLBA:   uint64(layout.ESPStartLBA),
		LastLBA:    uint64(espEnd),
		Name:       "EFI System Partition",
	}
	dataSpec := layout.PartitionSpec{
		TypeGUID:   layout.BasicDataPartitionTypeGUID,
		UniqueGUID: layout.NewGUID(),
		FirstLBA:   uint64(fsStart),
		LastLBA:    lastUsableLBA,
		Name:       "anyos-data",
	}
	specs := []layout.PartitionSpec{espSpec, dataSpec}
	entries := layout.BuildEntries(specs)

	primary := layout.Header{
		DiskGUID:            diskGUID,
		CurrentLBA:          layout.GPTHeaderLBA,
		BackupLBA:           backupHeaderLBA,
		FirstUsableLBA:      firstUsableLBA,
		LastUsableLBA:       lastUsableLBA,
		PartitionEntryLBA:   layout.GPTEntriesLBA,
		NumPartitionEntries: layout.GPTEntryCount,
		Entries:             entries,
	}
	backup := layout.Header{
		DiskGUID:            diskGUID,
		CurrentLBA:          backupHeaderLBA,
		BackupLBA:           layout.GPTHeaderLBA,
		FirstUsableLBA:      firstUsableLBA,
		LastUsableLBA:       lastUsableLBA,
		PartitionEntryLBA:   backupEntriesStart,
		NumPartitionEntries: layout.GPTEntryCount,
		Entries:             entries,
	}

	copy(image[0:], layout.ProtectiveMBR(totalSectors))
	copy(image[layout.GPTHeaderLBA*layout.SectorSize:], primary.Build())
	copy(image[layout.GPTEntriesLBA*layout.SectorSize:], entries)
	copy(image[backupEntriesStart*layout.SectorSize:], entries)
	copy(image[backupHeaderLBA*layout.SectorSize:], backup.Build())

	logger.Info("wrote UEFI image", "output", opts.OutputPath, "total_sectors", totalSectors, "esp_start", layout.ESPStartLBA, "fs_start", fsStart)
	return os.WriteFile(opts.OutputPath, image, 0o644)
}

// stageESPSysroot copies bootloader/kernel (and, if present, the real
// --sysroot's non-System-partition content isn't relevant to the ESP)
// into a throwaway directory laid out as /EFI/BOOT/BOOTX64.EFI and
// /System/kernel.bin, the ESP tree fat16.Format expects.
func stageESPSysroot(bootloader, kernel []byte) (string, error) {
	dir, err := os.MkdirTemp("", "mkimage-esp-")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir+"/EFI/BOOT", 0o755); err != nil {
		return dir, err
	}
	if err := os.WriteFile(dir+"/EFI/BOOT/BOOTX64.EFI", bootloader, 0o644); err != nil {
		return dir, err
	}
	if len(kernel) > 0 {
		if err := os.MkdirAll(dir+"/System", 0o755); err != nil {
			return dir, err
		}
		if err := os.WriteFile(dir+"/System/kernel.bin", kernel, 0o644); err != nil {
			return dir, err
		}
	}
	return dir, nil
}
