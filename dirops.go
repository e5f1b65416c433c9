package fat32

import (
	"fmt"
	"strings"
)

// dirEntryLoc pins down where one logical directory entry lives: the
// location of its group start (first LFN fragment, or the SFN itself if the
// entry carries no LFN) and the location of the SFN record proper.
type dirEntryLoc struct {
	groupStart dirCursor
	sfn        dirCursor
}

// EntryInfo describes one decoded directory entry, returned by stat and
// readdir.
type EntryInfo struct {
	Name       string
	ShortName  string
	Attr       uint8
	Size       uint32
	Cluster    uint32
	ModifiedAt Timestamp
	CreatedAt  Timestamp
}

func (e EntryInfo) IsDir() bool { return e.Attr&attrDirectory != 0 }

// search scans dir from its first entry for name (case-insensitive ASCII,
// matched by re-encoding name and comparing to the on-disk SFN bytes — the
// encode-and-compare policy). Returns ErrEOF if name is not found.
func (v *Volume) search(dirStart uint32, name string) (dirEntryLoc, EntryInfo, error) {
	sfnQuery, sfnErr := encodeSFN(name)
	c := v.openDir(dirStart)
	for {
		rec, rerr := v.record(&c)
		if rerr != nil {
			return dirEntryLoc{}, EntryInfo{}, rerr
		}
		if rec.isFree() {
			return dirEntryLoc{}, EntryInfo{}, ErrEOF
		}
		if rec.isDeleted() {
			if err := v.next(&c); err != nil {
				return dirEntryLoc{}, EntryInfo{}, err
			}
			continue
		}
		groupStart := c
		var longName []byte
		if rec.isLFN() {
			ln, sfnCursor, info, err := v.decodeGroup(c)
			if err != nil {
				return dirEntryLoc{}, EntryInfo{}, err
			}
			longName = ln
			if strings.EqualFold(string(longName), name) {
				return dirEntryLoc{groupStart: groupStart, sfn: sfnCursor}, info, nil
			}
			c = sfnCursor
			if err := v.next(&c); err != nil {
				return dirEntryLoc{}, EntryInfo{}, err
			}
			continue
		}
		// Lone SFN entry, no LFN group: match by re-encoding the query and
		// comparing raw short-name bytes, not by decoding and casefolding.
		if sfnErr == nil && sfnQuery == rec.shortName() {
			info := entryInfoFromRecord(rec, decodeSFN(rec.shortName()))
			return dirEntryLoc{groupStart: groupStart, sfn: c}, info, nil
		}
		if err := v.next(&c); err != nil {
			return dirEntryLoc{}, EntryInfo{}, err
		}
	}
}

// decodeGroup reads the LFN chain starting at c (already positioned on the
// first, logically-last fragment) plus its terminating SFN. Returns the
// decoded long name, the cursor at the SFN, and the entry info.
func (v *Volume) decodeGroup(c dirCursor) ([]byte, dirCursor, EntryInfo, error) {
	first, err := v.record(&c)
	if err != nil {
		return nil, c, EntryInfo{}, err
	}
	if !first.isLastFragmentRecord() {
		return nil, c, EntryInfo{}, fmt.Errorf("%w: LFN group missing last-fragment flag", ErrBroken)
	}
	lastOrd := longNameRecord{data: first.data}.sequence()
	if lastOrd == 0 || lastOrd > lfnMaxFrags {
		return nil, c, EntryInfo{}, fmt.Errorf("%w: invalid LFN sequence %d", ErrBroken, lastOrd)
	}
	name := make([]byte, 0, lastOrd*lfnCharsPerEntry)
	checksum := longNameRecord{data: first.data}.checksum()
	terminated := false
	for seq := lastOrd; seq >= 1; seq-- {
		rec, err := v.record(&c)
		if err != nil {
			return nil, c, EntryInfo{}, err
		}
		ln := longNameRecord{data: rec.data}
		if ln.sequence() != seq || ln.checksum() != checksum {
			return nil, c, EntryInfo{}, fmt.Errorf("%w: LFN group sequence/checksum mismatch", ErrBroken)
		}
		var units [lfnCharsPerEntry]uint16
		ln.readUnits(&units)
		frag, term, ok := decodeLFNUnits(units, nil)
		if !ok {
			return nil, c, EntryInfo{}, fmt.Errorf("%w: malformed LFN fragment", ErrBroken)
		}
		// Fragments are stored in reverse order on disk; this loop visits
		// them from the highest sequence (last logical fragment) down to 1,
		// so prepend rather than append.
		name = append(frag, name...)
		if term {
			terminated = true
		}
		if seq > 1 {
			if err := v.next(&c); err != nil {
				return nil, c, EntryInfo{}, err
			}
		}
	}
	_ = terminated
	if err := v.next(&c); err != nil {
		return nil, c, EntryInfo{}, err
	}
	sfnRec, err := v.record(&c)
	if err != nil {
		return nil, c, EntryInfo{}, err
	}
	if sfnRec.isLFN() || sfnRec.isFree() || sfnRec.isDeleted() {
		return nil, c, EntryInfo{}, fmt.Errorf("%w: LFN group not followed by SFN", ErrBroken)
	}
	if sfnRec.sfnChecksum() != checksum {
		return nil, c, EntryInfo{}, fmt.Errorf("%w: LFN checksum does not match its SFN", ErrBroken)
	}
	info := entryInfoFromRecord(sfnRec, string(name))
	return name, c, info, nil
}

func entryInfoFromRecord(rec dirRecord, name string) EntryInfo {
	return EntryInfo{
		Name:       name,
		ShortName:  decodeSFN(rec.shortName()),
		Attr:       rec.attr(),
		Size:       rec.size(),
		Cluster:    rec.cluster(),
		ModifiedAt: rec.modifiedAt().unpack(),
		CreatedAt:  rec.createdAt().unpack(),
	}
}

func (d dirRecord) isLastFragmentRecord() bool {
	return longNameRecord{data: d.data}.isLastFragment()
}

// insert writes a new LFN+SFN group into dir for name, attr and
// firstCluster. It fails with ErrDenied if a same-named entry already
// exists — this implementation never generates a numeric SFN tail.
func (v *Volume) insert(dirStart uint32, name string, attr uint8, firstCluster uint32) error {
	if _, _, err := v.search(dirStart, name); err == nil {
		return fmt.Errorf("%w: %q already exists", ErrDenied, name)
	} else if err != ErrEOF {
		return err
	}

	sfn, err := encodeSFN(name)
	if err != nil {
		// No 8.3 form: cut base and extension to 8 and 3 bytes; the LFN
		// group carries the full name.
		short, ext := name, ""
		if i := strings.LastIndexByte(name, '.'); i > 0 {
			short, ext = name[:i], name[i+1:]
		}
		short, ext = short[:min(len(short), 8)], ext[:min(len(ext), 3)]
		if ext != "" {
			short += "." + ext
		}
		if sfn, err = encodeSFN(short); err != nil {
			return err
		}
	}
	checksum := sfnChecksum(sfn)
	fragCount := lfnFragmentCount(name)
	needed := fragCount + 1

	// Find `needed` consecutive free/terminator slots, stretching the chain
	// with nextOrExtend as required by the resolved Open Question.
	c := v.openDir(dirStart)
	runStart := c
	run := 0
	hitTerminator := false
	for run < needed {
		rec, rerr := v.record(&c)
		if rerr != nil {
			return rerr
		}
		if rec.isFree() {
			hitTerminator = true
			run++
			if run == needed {
				break
			}
			if err := v.nextOrExtend(&c); err != nil {
				return err
			}
			continue
		}
		if rec.isDeleted() {
			run++
			if run == needed {
				break
			}
			if err := v.nextOrExtend(&c); err != nil {
				return err
			}
			continue
		}
		// Occupied: restart the run from the next slot.
		if err := v.nextOrExtend(&c); err != nil {
			return err
		}
		runStart = c
		run = 0
	}

	if hitTerminator {
		// The slot after the new group must carry a fresh terminator,
		// unless it was already a terminator covered implicitly by running
		// off the directory's logical end.
		end := c
		if err := v.nextOrExtend(&end); err != nil {
			return err
		}
		endRec, err := v.record(&end)
		if err != nil {
			return err
		}
		if !endRec.isFree() {
			endRec.markFree()
			v.win.markDirty()
		}
	}

	// Rewind to runStart and write the LFN fragments (reverse sequence)
	// followed by the SFN.
	cur := runStart
	for seq := fragCount; seq >= 1; seq-- {
		rec, err := v.record(&cur)
		if err != nil {
			return err
		}
		ln := longNameRecord{data: rec.data}
		ord := byte(seq)
		if seq == fragCount {
			ord |= lfnLastFlag
		}
		ln.setOrd(ord)
		ln.setAttr()
		ln.setChecksum(checksum)
		units, _ := encodeLFNUnits(name, seq-1)
		ln.writeUnits(units)
		v.win.markDirty()
		if seq > 1 {
			if err := v.nextOrExtend(&cur); err != nil {
				return err
			}
		}
	}
	if err := v.nextOrExtend(&cur); err != nil {
		return err
	}
	sfnRec, err := v.record(&cur)
	if err != nil {
		return err
	}
	sfnRec.setShortName(sfn)
	sfnRec.setAttr(attr)
	sfnRec.setCluster(firstCluster)
	sfnRec.setSize(0)
	now := v.now()
	sfnRec.setTimes(now, now, now)
	v.win.markDirty()
	v.info("dirops.insert", "name", name, "cluster", firstCluster)
	return v.syncFS()
}

// remove marks every entry of a group (LFN fragments plus the terminating
// SFN) as deleted. The directory chain itself is never shrunk.
func (v *Volume) remove(loc dirEntryLoc) error {
	c := loc.groupStart
	for {
		rec, err := v.record(&c)
		if err != nil {
			return err
		}
		rec.markDeleted()
		v.win.markDirty()
		if c == loc.sfn {
			break
		}
		if err := v.next(&c); err != nil {
			return err
		}
	}
	return v.syncFS()
}

// createSubdirectory allocates a cluster for a new subdirectory of parent,
// writes its "." and ".." entries, and inserts it into parent.
func (v *Volume) createSubdirectory(parentCluster uint32, name string) (uint32, error) {
	newClust, err := v.allocate()
	if err != nil {
		return 0, err
	}
	if err := v.clearCluster(newClust); err != nil {
		return 0, err
	}
	sector := v.clusterToSector(newClust)
	if err := v.win.update(sector); err != nil {
		return 0, err
	}
	now := v.now()
	dot := dirRecord{data: v.win.buf[0:sizeDirEntry]}
	dot.setShortName(encodeDotName("."))
	dot.setAttr(attrDirectory)
	dot.setCluster(newClust)
	dot.setTimes(now, now, now)
	dotdot := dirRecord{data: v.win.buf[sizeDirEntry : 2*sizeDirEntry]}
	dotdot.setShortName(encodeDotName(".."))
	dotdot.setAttr(attrDirectory)
	parentRef := parentCluster
	if parentCluster == v.rootCluster {
		parentRef = 0
	}
	dotdot.setCluster(parentRef)
	dotdot.setTimes(now, now, now)
	v.win.markDirty()

	if err := v.insert(parentCluster, name, attrDirectory, newClust); err != nil {
		return 0, err
	}
	return newClust, nil
}

// unlink removes name from dir. Directories must contain only "." / ".." /
// free entries or the call fails with ErrDenied.
func (v *Volume) unlink(dirStart uint32, name string) error {
	loc, info, err := v.search(dirStart, name)
	if err != nil {
		return err
	}
	if info.Attr&(attrReadonly|attrSystem|attrVolumeID) != 0 {
		return fmt.Errorf("%w: %q is protected", ErrDenied, name)
	}
	if info.IsDir() {
		empty, err := v.directoryIsEmpty(info.Cluster)
		if err != nil {
			return err
		}
		if !empty {
			return fmt.Errorf("%w: directory %q is not empty", ErrDenied, name)
		}
		if err := v.free(info.Cluster); err != nil {
			return err
		}
	} else if info.Cluster != 0 {
		if err := v.free(info.Cluster); err != nil {
			return err
		}
	}
	return v.remove(loc)
}

func (v *Volume) directoryIsEmpty(cluster uint32) (bool, error) {
	c := v.openDir(cluster)
	for {
		rec, err := v.record(&c)
		if err != nil {
			return false, err
		}
		if rec.isFree() {
			return true, nil
		}
		if !rec.isDeleted() && !rec.isLFN() {
			short := decodeSFN(rec.shortName())
			if short != "." && short != ".." {
				return false, nil
			}
		}
		if err := v.next(&c); err != nil {
			if err == ErrEOF {
				return true, nil
			}
			return false, err
		}
	}
}

// readdir returns every live entry of dir in on-disk order.
func (v *Volume) readdir(dirStart uint32) ([]EntryInfo, error) {
	var out []EntryInfo
	c := v.openDir(dirStart)
	for {
		rec, err := v.record(&c)
		if err != nil {
			return out, err
		}
		if rec.isFree() {
			return out, nil
		}
		if rec.isDeleted() {
			if err := v.next(&c); err != nil {
				return out, errOrNil(err)
			}
			continue
		}
		if rec.isLFN() {
			_, sfnCursor, info, err := v.decodeGroup(c)
			if err != nil {
				return out, err
			}
			out = append(out, info)
			c = sfnCursor
			if err := v.next(&c); err != nil {
				return out, errOrNil(err)
			}
			continue
		}
		short := decodeSFN(rec.shortName())
		out = append(out, entryInfoFromRecord(rec, short))
		if err := v.next(&c); err != nil {
			return out, errOrNil(err)
		}
	}
}

func errOrNil(err error) error {
	if err == ErrEOF {
		return nil
	}
	return err
}
