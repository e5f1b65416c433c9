package fat32

import (
	"context"
	"testing"
)

func TestScandiskCleanVolume(t *testing.T) {
	vol, _ := formatAndMount(t, FormatConfig{})
	if err := vol.Mkdir("/docs"); err != nil {
		t.Fatal(err)
	}
	f, err := vol.OpenFile("/docs/note.txt", ModeWrite|ModeCreate)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("notes")); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	report, err := vol.Scandisk(context.Background())
	if err != nil {
		t.Fatalf("Scandisk: %v", err)
	}
	if report.Findings != nil {
		t.Fatalf("clean volume reported findings: %v", report.Findings)
	}
	if report.ClustersUsed == 0 {
		t.Fatal("expected at least the root and note.txt's cluster to be counted")
	}
}

func TestScandiskFindsOrphanCluster(t *testing.T) {
	vol, _ := formatAndMount(t, FormatConfig{})
	orphan, err := vol.allocate()
	if err != nil {
		t.Fatal(err)
	}

	report, err := vol.Scandisk(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.ClustersOrphan != 1 {
		t.Fatalf("ClustersOrphan = %d, want 1", report.ClustersOrphan)
	}
	if report.Findings == nil {
		t.Fatalf("expected a finding for orphan cluster %d", orphan)
	}
}
