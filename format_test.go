package fat32

import (
	"context"
	"testing"
)

// minimalSectorCount is the smallest sector count (at 1 sector/cluster) that
// satisfies FAT32's >=65525-cluster floor, plus one sector for the MBR.
const minimalSectorCount = 66600

func formatAndMount(t *testing.T, cfg FormatConfig) (*Volume, *MemDevice) {
	t.Helper()
	dev := NewMemDevice()
	if cfg.SectorsPerCluster == 0 {
		cfg.SectorsPerCluster = 1
	}
	if err := Format(context.Background(), dev, minimalSectorCount, cfg); err != nil {
		t.Fatalf("Format: %v", err)
	}
	reg := &Registry{}
	vol, err := reg.Mount(dev, "t")
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	return vol, dev
}

func TestFormatMountRoundtrip(t *testing.T) {
	vol, _ := formatAndMount(t, FormatConfig{})
	if vol.rootCluster != firstDataCluster {
		t.Fatalf("rootCluster = %d, want %d", vol.rootCluster, firstDataCluster)
	}
	if vol.freeCount == 0 {
		t.Fatalf("freeCount should be nonzero right after format")
	}
	entries, err := vol.readdir(vol.rootCluster)
	if err != nil {
		t.Fatalf("readdir root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("freshly formatted root should be empty, got %d entries", len(entries))
	}
}

func TestFormatRejectsOddSectorsPerCluster(t *testing.T) {
	dev := NewMemDevice()
	err := Format(context.Background(), dev, minimalSectorCount, FormatConfig{SectorsPerCluster: 3})
	if err == nil {
		t.Fatal("expected error for non-power-of-two sectors per cluster")
	}
}

func TestFormatNoMBR(t *testing.T) {
	dev := NewMemDevice()
	if err := Format(context.Background(), dev, minimalSectorCount-1, FormatConfig{SectorsPerCluster: 1, NoMBR: true}); err != nil {
		t.Fatalf("Format with NoMBR: %v", err)
	}
	reg := &Registry{}
	if _, err := reg.Mount(dev, "t"); err != nil {
		t.Fatalf("Mount superfloppy image: %v", err)
	}
}
