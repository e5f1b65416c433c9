package fat32

import "fmt"

// Mode is a bitmask of file open flags, mirroring the teacher package's
// Mode type.
type Mode uint8

const (
	ModeRead Mode = 1 << iota
	ModeWrite
	ModeAppend
	ModeCreate
	ModeTruncate
)

// File is an open file handle. Its buffer is private: it never shares the
// volume's metadata window, so reading or writing file data cannot evict a
// directory sector mid-operation.
type File struct {
	vol    *Volume
	mode   Mode
	parent uint32 // parent directory's first cluster
	loc    dirEntryLoc

	startCluster uint32
	cluster      uint32
	clusterIdx   uint32 // chain index that cluster currently represents
	sectorAbs    uint32 // absolute sector currently held in buf
	sectorLoaded bool

	offset uint32
	size   uint32
	attr   uint8

	buf        [512]byte
	bufDirty   bool
	modified   bool
	accessed   bool
	closed     bool
}

// OpenFile resolves path within vol and opens it according to mode.
func (v *Volume) OpenFile(path string, mode Mode) (*File, error) {
	dirCluster, leaf, err := v.resolveParent(path)
	if err != nil {
		return nil, err
	}
	loc, info, err := v.search(dirCluster, leaf)
	notFound := err == ErrEOF
	if err != nil && !notFound {
		return nil, err
	}
	if notFound {
		if mode&ModeCreate == 0 {
			return nil, fmt.Errorf("%w: %q does not exist", ErrPath, path)
		}
		clust, aerr := v.allocate()
		if aerr != nil {
			return nil, aerr
		}
		if err := v.insert(dirCluster, leaf, attrArchive, clust); err != nil {
			return nil, err
		}
		loc, info, err = v.search(dirCluster, leaf)
		if err != nil {
			return nil, err
		}
	} else if info.IsDir() {
		return nil, fmt.Errorf("%w: %q is a directory", ErrDenied, path)
	}

	f := &File{
		vol:          v,
		mode:         mode,
		parent:       dirCluster,
		loc:          loc,
		startCluster: info.Cluster,
		cluster:      info.Cluster,
		size:         info.Size,
		attr:         info.Attr,
	}
	if mode&ModeTruncate != 0 {
		if f.startCluster != 0 {
			if err := v.free(f.startCluster); err != nil {
				return nil, err
			}
		}
		f.startCluster = 0
		f.cluster = 0
		f.clusterIdx = 0
		f.size = 0
		f.modified = true
	}
	if mode&ModeAppend != 0 {
		if err := f.Seek(int64(f.size), seekStart); err != nil {
			return nil, err
		}
	}
	v.debug("file.open", "path", path, "mode", mode, "size", f.size)
	return f, nil
}

// Seek whence values, matching io.SeekStart/Current/End numerically so
// callers may pass io.Seek* directly.
const (
	seekStart   = 0
	seekCurrent = 1
	seekEnd     = 2
)

// Seek repositions the file's cursor. A target inside the file's current
// cluster chain is accepted even past the current size. A target beyond the
// chain extends the chain at once when the file is open for write, and fails
// with ErrEOF otherwise. The size changes only when data is written.
func (f *File) Seek(offset int64, whence int) error {
	var target int64
	switch whence {
	case seekStart:
		target = offset
	case seekCurrent:
		target = int64(f.offset) + offset
	case seekEnd:
		target = int64(f.size) + offset
	default:
		return fmt.Errorf("%w: invalid whence %d", ErrParam, whence)
	}
	if target < 0 || target > 0xFFFFFFFF {
		return ErrEOF
	}
	return f.seekTo(uint32(target))
}

func (f *File) seekTo(target uint32) error {
	v := f.vol
	wantCluster := target / v.bytesPerCluster()
	if f.startCluster == 0 {
		if f.mode&ModeWrite == 0 {
			return fmt.Errorf("%w: empty file", ErrEOF)
		}
		clust, err := v.allocate()
		if err != nil {
			return err
		}
		f.startCluster = clust
		f.cluster = clust
		f.clusterIdx = 0
	}
	if wantCluster < f.clusterIdx {
		f.cluster = f.startCluster
		f.clusterIdx = 0
	}
	for f.clusterIdx < wantCluster {
		next, class, err := v.getFAT(f.cluster)
		if err != nil {
			return err
		}
		if class == classLast {
			if f.mode&ModeWrite == 0 {
				return fmt.Errorf("%w: seek past end of file", ErrEOF)
			}
			next, err = v.extend(f.cluster)
			if err != nil {
				return err
			}
		} else if class != classUsed {
			return fmt.Errorf("%w: file chain hit cluster class %d", ErrBroken, class)
		}
		f.cluster = next
		f.clusterIdx++
	}
	sectorInCluster := (target / uint32(v.bytesPerSector)) & v.clusterMaskSector
	if err := f.loadSector(v.clusterToSector(f.cluster) + sectorInCluster); err != nil {
		return err
	}
	f.offset = target
	return nil
}

func (f *File) loadSector(sector uint32) error {
	if f.sectorLoaded && f.sectorAbs == sector {
		return nil
	}
	if err := f.flushBuffer(); err != nil {
		return err
	}
	if err := f.vol.dev.ReadSector(sector, &f.buf); err != nil {
		return fmt.Errorf("%w: reading sector %d: %v", ErrIO, sector, err)
	}
	f.sectorAbs = sector
	f.sectorLoaded = true
	return nil
}

func (f *File) flushBuffer() error {
	if !f.bufDirty {
		return nil
	}
	if err := f.vol.dev.WriteSector(f.sectorAbs, &f.buf); err != nil {
		return fmt.Errorf("%w: writing sector %d: %v", ErrIO, f.sectorAbs, err)
	}
	f.bufDirty = false
	return nil
}

// Read fills p with up to len(p) bytes starting at the file's cursor.
// Returns ErrEOF with n == 0 when the cursor is already at size; a call that
// reaches size after copying some bytes returns them with a nil error.
func (f *File) Read(p []byte) (int, error) {
	if f.mode&ModeRead == 0 {
		return 0, fmt.Errorf("%w: file not opened for read", ErrDenied)
	}
	var total int
	for total < len(p) {
		if f.offset >= f.size {
			if total == 0 {
				return 0, ErrEOF
			}
			return total, nil
		}
		if err := f.seekTo(f.offset); err != nil {
			return total, err
		}
		idx := f.offset % uint32(f.vol.bytesPerSector)
		room := uint32(512) - idx
		tail := f.size - f.offset
		n := uint32(len(p) - total)
		if n > room {
			n = room
		}
		if n > tail {
			n = tail
		}
		copy(p[total:], f.buf[idx:idx+n])
		total += int(n)
		f.offset += n
		f.accessed = true
	}
	return total, nil
}

// Write appends p at the file's cursor, extending the cluster chain and
// size as needed.
func (f *File) Write(p []byte) (int, error) {
	if f.mode&ModeWrite == 0 {
		return 0, fmt.Errorf("%w: file not opened for write", ErrDenied)
	}
	var total int
	for total < len(p) {
		if err := f.seekTo(f.offset); err != nil {
			return total, err
		}
		idx := f.offset % uint32(f.vol.bytesPerSector)
		room := uint32(512) - idx
		n := uint32(len(p) - total)
		if n > room {
			n = room
		}
		copy(f.buf[idx:idx+n], p[total:total+int(n)])
		f.bufDirty = true
		total += int(n)
		f.offset += n
		if f.offset > f.size {
			f.size = f.offset
		}
		f.modified = true
	}
	return total, nil
}

// Sync flushes the file's private buffer and, if its metadata changed,
// rewrites its SFN record's size/attribute/timestamps.
func (f *File) Sync() error {
	if err := f.flushBuffer(); err != nil {
		return err
	}
	if !f.modified && !f.accessed {
		return nil
	}
	v := f.vol
	rec, err := v.record(&f.loc.sfn)
	if err != nil {
		return err
	}
	now := v.now()
	if f.modified {
		rec.setSize(f.size)
		rec.setCluster(f.startCluster)
		rec.setAttr(f.attr | attrArchive)
		rec.setTimes(rec.createdAt(), now, now)
	} else {
		rec.setTimes(rec.createdAt(), rec.modifiedAt(), now)
	}
	v.win.markDirty()
	f.modified = false
	f.accessed = false
	return v.syncFS()
}

// Close syncs and invalidates the handle. Using f after Close is undefined.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	err := f.Sync()
	if err != nil {
		f.vol.logerror("file.close sync failed", "error", err)
	}
	f.closed = true
	return err
}

// Size returns the file's current length in bytes.
func (f *File) Size() uint32 { return f.size }

// Mode returns the mode the file was opened with.
func (f *File) Mode() Mode { return f.mode }
