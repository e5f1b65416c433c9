package fat32

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/soypat/fat32vol/internal/mbr"
)

// Volume is one mounted FAT32 partition. Every higher-level operation in
// this package (directory walk, file I/O, path resolution) hangs off a
// *Volume; there is deliberately no global state inside a Volume beyond
// what a single mount needs.
type Volume struct {
	dev  BlockDevice
	name string // logical mount name, first path component.

	bytesPerSector    uint16
	clusterShift      uint8 // log2(sectorsPerCluster)
	clusterMaskSector uint32
	fatSector         uint32 // first sector of the active FAT
	fatMirrorSector   uint32 // 0 when mirroring is disabled
	fatSectors        uint32 // sectors per FAT copy
	dataSector        uint32 // first sector of cluster 2
	fsInfoSector      uint32
	rootCluster       uint32
	totalClusters     uint32

	lastUsed  uint32
	freeCount uint32
	fsiDirty  bool

	win windowCache

	clock func() Timestamp
	log   *slog.Logger
}

// Name returns the volume's logical mount name.
func (v *Volume) Name() string { return v.name }

func (v *Volume) bytesPerCluster() uint32 {
	return uint32(v.bytesPerSector) << v.clusterShift
}

func (v *Volume) sectorsPerCluster() uint32 { return 1 << v.clusterShift }

// clusterToSector returns the first sector of a data cluster. Clusters 0
// and 1 are not valid data clusters; callers never pass them.
func (v *Volume) clusterToSector(cluster uint32) uint32 {
	return v.dataSector + (cluster-firstDataCluster)*v.sectorsPerCluster()
}

// SetClock installs a timestamp provider used for every directory-entry
// timestamp written from this point forward.
func (v *Volume) SetClock(clock func() Timestamp) {
	if clock == nil {
		clock = func() Timestamp { return DefaultTimestamp }
	}
	v.clock = clock
}

func (v *Volume) now() packedTime {
	if v.clock == nil {
		return packTimestamp(DefaultTimestamp)
	}
	return packTimestamp(v.clock())
}

// Registry is a process-wide collection of mounted volumes keyed by their
// logical mount name. It replaces the intrusive singly linked volume list
// of this engine's pedigree with an owned, name-indexed map — see the
// Open Question resolution in DESIGN.md.
type Registry struct {
	mu      sync.Mutex
	volumes map[string]*Volume
}

// DefaultRegistry is the package-wide registry used by Mount/Unmount
// when no explicit Registry is supplied, mirroring how most embedded FAT32
// deployments have exactly one process-wide volume table.
var DefaultRegistry = &Registry{}

// Mount validates the block device's layout, registers the resulting
// Volume under name, and returns it. name is the registry key (see Lookup);
// it is not part of the paths passed to the Volume's own methods, which are
// resolved from the volume's root (e.g. "/dir/file", not "/name/dir/file").
func (r *Registry) Mount(dev BlockDevice, name string) (*Volume, error) {
	if name == "" || len(name) > 31 {
		return nil, fmt.Errorf("%w: mount name must be 1-31 bytes", ErrParam)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.volumes == nil {
		r.volumes = make(map[string]*Volume)
	}
	if _, exists := r.volumes[name]; exists {
		return nil, fmt.Errorf("%w: mount name %q already in use", ErrParam, name)
	}

	vol, err := decodeVolume(dev)
	if err != nil {
		return nil, err
	}
	vol.name = name
	vol.clock = func() Timestamp { return DefaultTimestamp }
	r.volumes[name] = vol
	return vol, nil
}

// Unmount flushes and removes vol from the registry. Using vol after
// Unmount returns is undefined.
func (r *Registry) Unmount(vol *Volume) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.volumes == nil || r.volumes[vol.name] != vol {
		return fmt.Errorf("%w: volume not mounted in this registry", ErrParam)
	}
	if err := vol.syncFS(); err != nil {
		return err
	}
	delete(r.volumes, vol.name)
	return nil
}

// Lookup returns the mounted volume with the given name, or ErrPath.
func (r *Registry) Lookup(name string) (*Volume, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vol, ok := r.volumes[name]
	if !ok {
		return nil, fmt.Errorf("%w: no volume mounted as %q", ErrPath, name)
	}
	return vol, nil
}

// Mount is a convenience wrapping DefaultRegistry.Mount.
func Mount(dev BlockDevice, name string) (*Volume, error) { return DefaultRegistry.Mount(dev, name) }

// Unmount is a convenience wrapping DefaultRegistry.Unmount.
func Unmount(vol *Volume) error { return DefaultRegistry.Unmount(vol) }

// decodeVolume implements the layout decoder (component B): it locates the
// FAT32 partition (superfloppy or MBR-partitioned), validates the BPB and
// FSInfo sector, and populates the resulting Volume's geometry.
func decodeVolume(dev BlockDevice) (*Volume, error) {
	var sect0 [512]byte
	if err := dev.ReadSector(0, &sect0); err != nil {
		return nil, fmt.Errorf("%w: reading sector 0: %v", ErrIO, err)
	}

	bpbBase := uint32(0)
	bpb := biosParamBlock{data: sect0[:]}
	if !validBPB(bpb) {
		// Not a superfloppy; sector 0 must be an MBR.
		if binary.LittleEndian.Uint16(sect0[mbrSignatureOff:]) != mbrSignature {
			return nil, fmt.Errorf("%w: no boot signature at sector 0", ErrNoFAT)
		}
		lba, ok := findFAT32Partition(sect0[:])
		if !ok {
			return nil, fmt.Errorf("%w: no FAT32LBA partition entry", ErrNoFAT)
		}
		bpbBase = lba
		var sect [512]byte
		if err := dev.ReadSector(bpbBase, &sect); err != nil {
			return nil, fmt.Errorf("%w: reading BPB at sector %d: %v", ErrIO, bpbBase, err)
		}
		sect0 = sect
		bpb = biosParamBlock{data: sect0[:]}
		if !validBPB(bpb) {
			return nil, fmt.Errorf("%w: partition does not hold a valid FAT32 BPB", ErrNoFAT)
		}
	}

	reserved := uint32(bpb.reservedSectors())
	fatSectors := bpb.fatSz32()
	numFATs := uint32(bpb.numFATs())
	dataSector := bpbBase + reserved + numFATs*fatSectors
	totalSectors := bpb.totSec32()
	if totalSectors == 0 {
		totalSectors = uint32(bpb.totSec16())
	}
	spc := uint32(bpb.sectorsPerCluster())
	if spc == 0 || spc&(spc-1) != 0 {
		return nil, fmt.Errorf("%w: sectors-per-cluster %d not a power of two", ErrNoFAT, spc)
	}
	dataSectors := totalSectors - (dataSector - bpbBase)
	totalClusters := dataSectors / spc
	if totalClusters < 65525 {
		return nil, fmt.Errorf("%w: cluster count %d too small for FAT32", ErrNoFAT, totalClusters)
	}

	shift := uint8(0)
	for spc > 1 {
		spc >>= 1
		shift++
	}

	vol := &Volume{
		dev:               dev,
		bytesPerSector:    bpb.sectorSize(),
		clusterShift:      shift,
		clusterMaskSector: (1 << shift) - 1,
		fatSector:         bpbBase + reserved,
		fatSectors:        fatSectors,
		dataSector:        dataSector,
		fsInfoSector:      bpbBase + uint32(bpb.fsInfoSector()),
		rootCluster:       bpb.rootCluster(),
		totalClusters:     totalClusters,
		lastUsed:          2,
	}
	extFlags := bpb.extFlags()
	if extFlags&0x80 != 0 {
		// Mirroring disabled: only the FAT named by the low nibble is kept
		// current, and it is the one this package reads and writes.
		active := uint32(extFlags & 0xF)
		vol.fatSector = bpbBase + reserved + active*fatSectors
		vol.fatMirrorSector = 0
	} else if numFATs >= 2 {
		vol.fatMirrorSector = vol.fatSector + fatSectors
	}
	vol.win.dev = dev

	var fsiBuf [512]byte
	if err := dev.ReadSector(vol.fsInfoSector, &fsiBuf); err != nil {
		return nil, fmt.Errorf("%w: reading FSInfo: %v", ErrIO, err)
	}
	fsi := fsinfoSector{data: fsiBuf[:]}
	if !fsi.signaturesValid() {
		return nil, fmt.Errorf("%w: invalid FSInfo signatures", ErrNoFAT)
	}
	if fsi.freeCount() == 0xFFFFFFFF || fsi.nextFree() == 0xFFFFFFFF {
		return nil, fmt.Errorf("%w: FSInfo free count or next-free hint unset", ErrNoFAT)
	}
	free := fsi.freeCount()
	if free > totalClusters {
		free = totalClusters
	}
	vol.freeCount = free
	next := fsi.nextFree()
	if next < firstDataCluster || next >= totalClusters+firstDataCluster {
		next = firstDataCluster
	}
	vol.lastUsed = next

	return vol, nil
}

func validBPB(bpb biosParamBlock) bool {
	if !bpb.jumpOK() {
		return false
	}
	if bpb.numFATs() != 2 {
		return false
	}
	if extFlags := bpb.extFlags(); extFlags&0x80 != 0 {
		if uint32(extFlags&0xF) >= uint32(bpb.numFATs()) {
			return false
		}
	}
	if bpb.rootEntCnt() != 0 || bpb.totSec16() != 0 || bpb.fatSz16() != 0 {
		return false
	}
	if bpb.fsInfoSector() != 1 {
		return false
	}
	if bpb.sectorSize() != 512 {
		return false
	}
	fstype := bpb.filesystemType()
	if string(fstype[:]) != "FAT32   " {
		return false
	}
	if bpb.bootSignature() != mbrSignature {
		return false
	}
	return true
}

// findFAT32Partition scans the four MBR partition table entries for the
// first one typed FAT32LBA, returning its starting LBA.
func findFAT32Partition(sector []byte) (lba uint32, ok bool) {
	bs, err := mbr.ToBootSector(sector)
	if err != nil {
		return 0, false
	}
	for i := 0; i < 4; i++ {
		pte := bs.PartitionTable(i)
		if pte.PartitionType() == mbr.PartitionTypeFAT32LBA {
			return pte.StartLBA(), true
		}
	}
	return 0, false
}
