package fat32

import "fmt"

// allocate finds one free cluster, marks it as the end of a new chain, and
// returns its number. Equivalent to extend(0).
func (v *Volume) allocate() (uint32, error) {
	return v.extend(0)
}

// extend allocates one free cluster and links it after prev (unless prev is
// 0, meaning "start a new chain"). Search policy: if extending an existing
// chain, first probe prev+1 (the common case of sequential writes); failing
// that, scan linearly from lastUsed+1, wrapping around the cluster space
// once before giving up with ErrFull.
func (v *Volume) extend(prev uint32) (uint32, error) {
	var found uint32
	if prev != 0 {
		candidate := prev + 1
		if candidate >= v.totalClusters+firstDataCluster {
			candidate = firstDataCluster
		}
		_, class, err := v.getFAT(candidate)
		if err != nil {
			return 0, err
		}
		if class == classFree {
			found = candidate
		}
	}

	if found == 0 {
		start := v.lastUsed + 1
		if start >= v.totalClusters+firstDataCluster {
			start = firstDataCluster
		}
		c := start
		for {
			_, class, err := v.getFAT(c)
			if err != nil {
				return 0, err
			}
			if class == classFree {
				found = c
				break
			}
			c++
			if c >= v.totalClusters+firstDataCluster {
				c = firstDataCluster
			}
			if c == start {
				return 0, fmt.Errorf("%w: no free clusters", ErrFull)
			}
		}
	}

	if err := v.putFAT(found, clusterEOC); err != nil {
		return 0, err
	}
	if prev != 0 {
		if err := v.putFAT(prev, found); err != nil {
			return 0, err
		}
	}
	v.lastUsed = found
	if v.freeCount > 0 {
		v.freeCount--
	}
	v.fsiDirty = true
	v.debug("alloc.extend", "prev", prev, "new", found, "freeCount", v.freeCount)
	if err := v.syncFS(); err != nil {
		return 0, err
	}
	return found, nil
}

// free walks the chain starting at head, zeroing every entry and
// incrementing freeCount, stopping at the terminal link.
func (v *Volume) free(head uint32) error {
	c := head
	for {
		next, class, err := v.getFAT(c)
		if err != nil {
			return err
		}
		if class != classUsed && class != classLast {
			return fmt.Errorf("%w: cluster %d already free or bad while freeing chain", ErrBroken, c)
		}
		if err := v.putFAT(c, clusterFree); err != nil {
			return err
		}
		v.freeCount++
		v.fsiDirty = true
		if class == classLast {
			break
		}
		c = next
	}
	v.debug("alloc.free", "head", head, "freeCount", v.freeCount)
	return v.syncFS()
}

// clearCluster zeroes every sector of cluster through the window, used when
// allocating a fresh directory cluster.
func (v *Volume) clearCluster(cluster uint32) error {
	first := v.clusterToSector(cluster)
	var zero [512]byte
	for s := uint32(0); s < v.sectorsPerCluster(); s++ {
		sector := first + s
		if v.win.valid && v.win.sector == sector {
			v.win.buf = zero
			v.win.markDirty()
			continue
		}
		if err := v.dev.WriteSector(sector, &zero); err != nil {
			return fmt.Errorf("%w: clearing sector %d: %v", ErrIO, sector, err)
		}
	}
	return nil
}

// syncFS flushes the window and, if the free-cluster bookkeeping changed,
// rewrites the FSInfo sector, flushing once more afterward. This keeps
// freeCount always a lower bound on actual free space after a crash: the
// counters are only made durable after the FAT writes that justify them.
func (v *Volume) syncFS() error {
	if err := v.win.sync(); err != nil {
		return err
	}
	if !v.fsiDirty {
		return nil
	}
	if err := v.win.update(v.fsInfoSector); err != nil {
		return err
	}
	fsi := fsinfoSector{data: v.win.buf[:]}
	fsi.setFreeCount(v.freeCount)
	fsi.setNextFree(v.lastUsed)
	v.win.markDirty()
	if err := v.win.sync(); err != nil {
		return err
	}
	v.fsiDirty = false
	return nil
}
