package fat32

import "fmt"

// windowCache is the volume's single-sector metadata cache: FAT sectors,
// FSInfo, and directory clusters all flow through it. File data never does
// — each open File keeps its own private buffer (see file.go) so that
// reading a file's data cannot evict a directory sector mid-operation.
type windowCache struct {
	dev    BlockDevice
	sector uint32
	valid  bool
	dirty  bool
	buf    [512]byte
}

// update loads sector into the window, flushing a dirty window first. It is
// a no-op if the window already holds sector.
func (w *windowCache) update(sector uint32) error {
	if w.valid && w.sector == sector {
		return nil
	}
	if err := w.sync(); err != nil {
		return err
	}
	if err := w.dev.ReadSector(sector, &w.buf); err != nil {
		w.invalidate()
		return fmt.Errorf("%w: reading sector %d: %v", ErrIO, sector, err)
	}
	w.sector = sector
	w.valid = true
	return nil
}

// sync writes the window back if dirty.
func (w *windowCache) sync() error {
	if !w.dirty {
		return nil
	}
	if err := w.dev.WriteSector(w.sector, &w.buf); err != nil {
		return fmt.Errorf("%w: writing sector %d: %v", ErrIO, w.sector, err)
	}
	w.dirty = false
	return nil
}

func (w *windowCache) markDirty() { w.dirty = true }

// invalidate forgets the window's current contents without flushing it.
// Used after a low-level failure that leaves the buffer contents suspect.
func (w *windowCache) invalidate() {
	w.valid = false
	w.dirty = false
}
