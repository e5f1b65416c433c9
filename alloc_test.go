package fat32

import (
	"errors"
	"testing"
)

func TestAllocateExtendFree(t *testing.T) {
	vol, _ := formatAndMount(t, FormatConfig{})
	freeBefore := vol.freeCount

	head, err := vol.allocate()
	if err != nil {
		t.Fatal(err)
	}
	if vol.freeCount != freeBefore-1 {
		t.Fatalf("freeCount after allocate = %d, want %d", vol.freeCount, freeBefore-1)
	}
	_, class, err := vol.getFAT(head)
	if err != nil || class != classLast {
		t.Fatalf("freshly allocated cluster should be classLast: %v %v", class, err)
	}

	next, err := vol.extend(head)
	if err != nil {
		t.Fatal(err)
	}
	_, class, err = vol.getFAT(head)
	if err != nil || class != classUsed {
		t.Fatalf("extended cluster should become classUsed: %v %v", class, err)
	}

	if err := vol.free(head); err != nil {
		t.Fatal(err)
	}
	if vol.freeCount != freeBefore {
		t.Fatalf("freeCount after free = %d, want %d", vol.freeCount, freeBefore)
	}
	if _, class, _ := vol.getFAT(head); class != classFree {
		t.Fatalf("freed cluster %d should be classFree", head)
	}
	if _, class, _ := vol.getFAT(next); class != classFree {
		t.Fatalf("freed cluster %d should be classFree", next)
	}
}

func TestExtendPrefersAdjacentCluster(t *testing.T) {
	vol, _ := formatAndMount(t, FormatConfig{})
	head, err := vol.allocate()
	if err != nil {
		t.Fatal(err)
	}
	next, err := vol.extend(head)
	if err != nil {
		t.Fatal(err)
	}
	if next != head+1 {
		t.Fatalf("extend should probe head+1 first on a clean volume: got %d, want %d", next, head+1)
	}
}

func TestAllocateFull(t *testing.T) {
	vol, _ := formatAndMount(t, FormatConfig{})
	var last uint32
	var err error
	for i := uint32(0); i < vol.totalClusters; i++ {
		last, err = vol.extend(last)
		if err != nil {
			if errors.Is(err, ErrFull) {
				return
			}
			t.Fatalf("unexpected error filling volume: %v", err)
		}
	}
	t.Fatal("expected ErrFull once every cluster was allocated")
}
