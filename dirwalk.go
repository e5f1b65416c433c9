package fat32

import "fmt"

// dirCursor addresses one 32-byte slot inside a directory's cluster chain.
type dirCursor struct {
	startCluster  uint32 // directory's first cluster (root for the root dir)
	cluster       uint32 // current cluster
	sectorInClust uint32 // 0..sectorsPerCluster-1
	offset        int    // byte offset within sector, multiple of 32
}

func (v *Volume) openDir(startCluster uint32) dirCursor {
	return dirCursor{startCluster: startCluster, cluster: startCluster}
}

func (v *Volume) cursorSector(c *dirCursor) uint32 {
	return v.clusterToSector(c.cluster) + c.sectorInClust
}

// record loads the cursor's current 512-byte sector into the window and
// returns a dirRecord view over its 32 bytes.
func (v *Volume) record(c *dirCursor) (dirRecord, error) {
	if err := v.win.update(v.cursorSector(c)); err != nil {
		return dirRecord{}, err
	}
	return dirRecord{data: v.win.buf[c.offset : c.offset+sizeDirEntry]}, nil
}

// next advances the cursor by one 32-byte entry without extending the
// directory's chain. Returns ErrEOF once the chain is exhausted.
func (v *Volume) next(c *dirCursor) error {
	c.offset += sizeDirEntry
	if c.offset < int(v.bytesPerSector) {
		return nil
	}
	c.offset = 0
	c.sectorInClust++
	if c.sectorInClust < v.sectorsPerCluster() {
		return nil
	}
	c.sectorInClust = 0
	next, class, err := v.getFAT(c.cluster)
	if err != nil {
		return err
	}
	switch class {
	case classLast:
		return ErrEOF
	case classUsed:
		c.cluster = next
		return nil
	default:
		return fmt.Errorf("%w: directory chain hit cluster class %d", ErrBroken, class)
	}
}

// nextOrExtend behaves like next, but stretches the directory's chain by one
// freshly cleared cluster instead of returning ErrEOF. Used only by insert,
// per this engine's resolved extend-on-insert policy.
func (v *Volume) nextOrExtend(c *dirCursor) error {
	err := v.next(c)
	if err == nil {
		return nil
	}
	if err != ErrEOF {
		return err
	}
	newClust, aerr := v.extend(c.cluster)
	if aerr != nil {
		return aerr
	}
	if err := v.clearCluster(newClust); err != nil {
		return err
	}
	c.cluster = newClust
	c.sectorInClust = 0
	c.offset = 0
	return nil
}
