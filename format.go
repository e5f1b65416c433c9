package fat32

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/soypat/fat32vol/internal/mbr"
)

// FormatConfig controls the layout Format lays down. Zero values pick sane
// defaults for a small-to-medium volume.
type FormatConfig struct {
	// SectorsPerCluster must be a power of two no greater than 128. Zero
	// picks 8 (4 KiB clusters at 512 bytes/sector).
	SectorsPerCluster uint8
	// VolumeLabel is copied into the boot sector's 11-byte label field,
	// truncated or space-padded as needed.
	VolumeLabel string
	// NoMBR lays down a superfloppy image (BPB at sector 0) instead of an
	// MBR with one partition entry.
	NoMBR bool
}

const (
	defaultSectorsPerCluster = 8
	formatReservedSectors    = 32
	formatBackupBootSector   = 6
)

// Format writes a fresh FAT32 image spanning sectorCount sectors of adapter,
// in order: MBR (unless cfg.NoMBR), BPB, two FSInfo copies, two zeroed FAT
// copies with their first three entries seeded, and a cleared root
// directory cluster. It does not mount the result; call Mount afterward.
func Format(ctx context.Context, adapter BlockDevice, sectorCount uint32, cfg FormatConfig) error {
	spc := cfg.SectorsPerCluster
	if spc == 0 {
		spc = defaultSectorsPerCluster
	}
	if spc&(spc-1) != 0 || spc > 128 {
		return fmt.Errorf("%w: sectors-per-cluster %d is not a power of two <= 128", ErrParam, spc)
	}

	bpbBase := uint32(0)
	if !cfg.NoMBR {
		bpbBase = 1 // one sector for the MBR itself.
		var sect [512]byte
		bs, err := mbr.ToBootSector(sect[:])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		pte := mbr.MakePTE(0, mbr.PartitionTypeFAT32LBA, bpbBase, sectorCount-bpbBase, 0, 0)
		bs.SetPartitionTable(0, pte)
		binary.LittleEndian.PutUint16(sect[mbrSignatureOff:], mbrSignature)
		if err := checkCtx(ctx); err != nil {
			return err
		}
		if err := adapter.WriteSector(0, &sect); err != nil {
			return fmt.Errorf("%w: writing MBR: %v", ErrIO, err)
		}
	}

	volSectors := sectorCount - bpbBase
	fatSz := fatSectorsFor(volSectors, uint32(spc))
	dataSector := bpbBase + formatReservedSectors + 2*fatSz
	totalClusters := (volSectors - formatReservedSectors - 2*fatSz) / uint32(spc)
	if totalClusters < 65525 {
		return fmt.Errorf("%w: %s too small for FAT32 at %d sectors/cluster",
			ErrParam, humanize.Bytes(uint64(sectorCount)*512), spc)
	}

	var boot [512]byte
	bpb := biosParamBlock{data: boot[:]}
	boot[bsJmpBoot] = 0xEB
	boot[bsJmpBoot+1] = 0x58
	boot[bsJmpBoot+2] = 0x90
	bpb.setOEMName("FAT32VOL")
	label := cfg.VolumeLabel
	if label == "" {
		label = "NO NAME"
	}
	bpb.setVolumeLabel(label)
	bpb.setSectorSize(512)
	bpb.setSectorsPerCluster(uint8(spc))
	bpb.setReservedSectors(formatReservedSectors)
	bpb.setNumFATs(2)
	bpb.setFatSz32(fatSz)
	bpb.setTotSec32(volSectors)
	boot[bpbMedia] = 0xF8
	bpb.setRootCluster(firstDataCluster)
	bpb.setFSInfoSector(1)
	bpb.setBackupBootSector(formatBackupBootSector)
	bpb.setExtBootSig(0x29)
	bpb.setFilesystemType("FAT32   ")
	bpb.setBootSignature(mbrSignature)
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := adapter.WriteSector(bpbBase, &boot); err != nil {
		return fmt.Errorf("%w: writing BPB: %v", ErrIO, err)
	}
	if err := adapter.WriteSector(bpbBase+formatBackupBootSector, &boot); err != nil {
		return fmt.Errorf("%w: writing backup BPB: %v", ErrIO, err)
	}

	var fsi [512]byte
	fsiView := fsinfoSector{data: fsi[:]}
	fsiView.setSignatures()
	fsiView.setFreeCount(totalClusters - 1)
	fsiView.setNextFree(firstDataCluster + 1)
	for _, off := range []uint32{1, formatBackupBootSector + 1} {
		if err := checkCtx(ctx); err != nil {
			return err
		}
		if err := adapter.WriteSector(bpbBase+off, &fsi); err != nil {
			return fmt.Errorf("%w: writing FSInfo: %v", ErrIO, err)
		}
	}

	var fatSec [512]byte
	fs := fatSector{data: fatSec[:]}
	fs.setEntry(0, 0x0FFFFFF8)
	fs.setEntry(1, clusterEOC)
	fs.setEntry(2, clusterEOC)
	for _, fatStart := range []uint32{bpbBase + formatReservedSectors, bpbBase + formatReservedSectors + fatSz} {
		if err := checkCtx(ctx); err != nil {
			return err
		}
		if err := adapter.WriteSector(fatStart, &fatSec); err != nil {
			return fmt.Errorf("%w: writing FAT first sector: %v", ErrIO, err)
		}
		var zero [512]byte
		for s := uint32(1); s < fatSz; s++ {
			if err := checkCtx(ctx); err != nil {
				return err
			}
			if err := adapter.WriteSector(fatStart+s, &zero); err != nil {
				return fmt.Errorf("%w: zeroing FAT sector %d: %v", ErrIO, fatStart+s, err)
			}
		}
	}

	var zero [512]byte
	for s := uint32(0); s < uint32(spc); s++ {
		if err := checkCtx(ctx); err != nil {
			return err
		}
		if err := adapter.WriteSector(dataSector+s, &zero); err != nil {
			return fmt.Errorf("%w: clearing root directory: %v", ErrIO, err)
		}
	}
	return nil
}

// fatSectorsFor estimates the FAT size in sectors needed to address
// volSectors/spc clusters, rounding up and adding slack for the FAT's own
// reserved early entries.
func fatSectorsFor(volSectors, spc uint32) uint32 {
	clusters := volSectors / spc
	entries := clusters + firstDataCluster + 8
	return (entries*4 + 511) / 512
}

func checkCtx(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrIO, ctx.Err())
	default:
		return nil
	}
}
