package fat32

import (
	"context"
	"testing"
)

func TestFATGetPutClassification(t *testing.T) {
	vol, _ := formatAndMount(t, FormatConfig{})

	if _, class, err := vol.getFAT(0); err != nil || class != classLast {
		t.Fatalf("cluster 0 media marker: class=%v err=%v", class, err)
	}
	if _, class, err := vol.getFAT(2); err != nil || class != classLast {
		t.Fatalf("root directory single cluster should be classLast, got %v (%v)", class, err)
	}

	if err := vol.putFAT(3, 4); err != nil {
		t.Fatalf("putFAT: %v", err)
	}
	next, class, err := vol.getFAT(3)
	if err != nil {
		t.Fatal(err)
	}
	if class != classUsed || next != 4 {
		t.Fatalf("getFAT(3) = %d, %v; want 4, classUsed", next, class)
	}
}

func TestPutFATPreservesUpperNibble(t *testing.T) {
	vol, _ := formatAndMount(t, FormatConfig{})
	sector, idx := vol.fatEntrySector(10)
	if err := vol.win.update(sector); err != nil {
		t.Fatal(err)
	}
	fs := fatSector{data: vol.win.buf[:]}
	fs.setEntry(idx, 0xF0000005)
	vol.win.markDirty()
	if err := vol.win.sync(); err != nil {
		t.Fatal(err)
	}

	if err := vol.putFAT(10, clusterEOC); err != nil {
		t.Fatal(err)
	}
	if err := vol.win.update(sector); err != nil {
		t.Fatal(err)
	}
	raw := fatSector{data: vol.win.buf[:]}.entry(idx)
	if raw&^clusterMask != 0xF0000000 {
		t.Fatalf("upper nibble was clobbered: %#x", raw)
	}
}

func TestClusterChainLength(t *testing.T) {
	vol, _ := formatAndMount(t, FormatConfig{})
	c1, err := vol.allocate()
	if err != nil {
		t.Fatal(err)
	}
	c2, err := vol.extend(c1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := vol.extend(c2); err != nil {
		t.Fatal(err)
	}
	n, err := vol.clusterChainLength(c1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("clusterChainLength = %d, want 3", n)
	}
}

func TestFormatContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dev := NewMemDevice()
	err := Format(ctx, dev, minimalSectorCount, FormatConfig{SectorsPerCluster: 1})
	if err == nil {
		t.Fatal("expected an error from a pre-cancelled context")
	}
}
