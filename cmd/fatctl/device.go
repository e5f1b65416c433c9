package main

import (
	"fmt"
	"os"
)

// fileDevice adapts an *os.File to fat32.BlockDevice, treating the file as
// a flat array of 512-byte sectors.
type fileDevice struct {
	f *os.File
}

func openDevice(path string) (*fileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &fileDevice{f: f}, nil
}

func (d *fileDevice) ReadSector(sector uint32, buf *[512]byte) error {
	n, err := d.f.ReadAt(buf[:], int64(sector)*512)
	if err != nil && n != 512 {
		return fmt.Errorf("reading sector %d: %w", sector, err)
	}
	return nil
}

func (d *fileDevice) WriteSector(sector uint32, buf *[512]byte) error {
	_, err := d.f.WriteAt(buf[:], int64(sector)*512)
	if err != nil {
		return fmt.Errorf("writing sector %d: %w", sector, err)
	}
	return nil
}

func (d *fileDevice) sectorCount() (uint32, error) {
	fi, err := d.f.Stat()
	if err != nil {
		return 0, err
	}
	return uint32(fi.Size() / 512), nil
}

func (d *fileDevice) Close() error { return d.f.Close() }
