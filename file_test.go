package fat32

import (
	"errors"
	"testing"
)

func TestFileWriteReadRoundtrip(t *testing.T) {
	vol, _ := formatAndMount(t, FormatConfig{})
	f, err := vol.OpenFile("/greeting.txt", ModeRead|ModeWrite|ModeCreate)
	if err != nil {
		t.Fatalf("OpenFile create: %v", err)
	}
	want := []byte("hello, fat32 world")
	if n, err := f.Write(want); err != nil || n != len(want) {
		t.Fatalf("Write: n=%d err=%v", n, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f2, err := vol.OpenFile("/greeting.txt", ModeRead)
	if err != nil {
		t.Fatalf("OpenFile read: %v", err)
	}
	defer f2.Close()
	if f2.Size() != uint32(len(want)) {
		t.Fatalf("Size() = %d, want %d", f2.Size(), len(want))
	}
	got := make([]byte, len(want))
	n, err := f2.Read(got)
	if err != nil || n != len(want) {
		t.Fatalf("Read: n=%d err=%v", n, err)
	}
	if string(got) != string(want) {
		t.Fatalf("Read back %q, want %q", got, want)
	}
}

func TestFileReadPastEndReturnsEOF(t *testing.T) {
	vol, _ := formatAndMount(t, FormatConfig{})
	f, err := vol.OpenFile("/empty.bin", ModeRead|ModeWrite|ModeCreate)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var buf [8]byte
	if _, err := f.Read(buf[:]); !errors.Is(err, ErrEOF) {
		t.Fatalf("Read of empty file: got %v, want ErrEOF", err)
	}
}

func TestFileSpanningMultipleClusters(t *testing.T) {
	vol, _ := formatAndMount(t, FormatConfig{SectorsPerCluster: 1})
	f, err := vol.OpenFile("/big.bin", ModeRead|ModeWrite|ModeCreate)
	if err != nil {
		t.Fatal(err)
	}
	data := make([]byte, vol.bytesPerCluster()*3+17)
	for i := range data {
		data[i] = byte(i)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f2, err := vol.OpenFile("/big.bin", ModeRead)
	if err != nil {
		t.Fatal(err)
	}
	defer f2.Close()
	got := make([]byte, len(data))
	total := 0
	for total < len(got) {
		n, err := f2.Read(got[total:])
		total += n
		if err != nil {
			break
		}
	}
	if total != len(data) {
		t.Fatalf("read back %d bytes, want %d", total, len(data))
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("mismatch at byte %d: got %d want %d", i, got[i], data[i])
		}
	}
}

func TestFileTruncate(t *testing.T) {
	vol, _ := formatAndMount(t, FormatConfig{})
	f, err := vol.OpenFile("/t.bin", ModeRead|ModeWrite|ModeCreate)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("some bytes")); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f2, err := vol.OpenFile("/t.bin", ModeRead|ModeWrite|ModeTruncate)
	if err != nil {
		t.Fatal(err)
	}
	if f2.Size() != 0 {
		t.Fatalf("Size() after truncate-open = %d, want 0", f2.Size())
	}
	if err := f2.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestFileAppend(t *testing.T) {
	vol, _ := formatAndMount(t, FormatConfig{})
	f, err := vol.OpenFile("/a.log", ModeWrite|ModeCreate)
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("first "))
	f.Close()

	f2, err := vol.OpenFile("/a.log", ModeWrite|ModeAppend)
	if err != nil {
		t.Fatal(err)
	}
	f2.Write([]byte("second"))
	f2.Close()

	f3, err := vol.OpenFile("/a.log", ModeRead)
	if err != nil {
		t.Fatal(err)
	}
	defer f3.Close()
	buf := make([]byte, f3.Size())
	n, _ := f3.Read(buf)
	if string(buf[:n]) != "first second" {
		t.Fatalf("got %q, want %q", buf[:n], "first second")
	}
}

func TestOpenFileRejectsDirectory(t *testing.T) {
	vol, _ := formatAndMount(t, FormatConfig{})
	if err := vol.Mkdir("/sub"); err != nil {
		t.Fatal(err)
	}
	if _, err := vol.OpenFile("/sub", ModeRead); !errors.Is(err, ErrDenied) {
		t.Fatalf("OpenFile on a directory: got %v, want ErrDenied", err)
	}
}

func TestOpenFileMissingWithoutCreate(t *testing.T) {
	vol, _ := formatAndMount(t, FormatConfig{})
	if _, err := vol.OpenFile("/nope.txt", ModeRead); !errors.Is(err, ErrPath) {
		t.Fatalf("OpenFile missing file: got %v, want ErrPath", err)
	}
}
