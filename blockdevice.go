package fat32

// BlockDevice is the sole external collaborator a caller must supply. Sectors
// are always 512 bytes; the implementation never asks for any other size.
// A failed call must return a non-nil error; it must not partially fill buf.
type BlockDevice interface {
	ReadSector(sector uint32, buf *[512]byte) error
	WriteSector(sector uint32, buf *[512]byte) error
}

// MemDevice is an in-memory BlockDevice backed by a sparse sector map, the
// same shape as the sparse-map test double used against this engine's
// predecessor. It is exported because it is useful beyond this package's own
// tests: formatting and round-tripping a volume entirely in memory.
type MemDevice struct {
	sectors map[uint32]*[512]byte
}

// NewMemDevice returns an empty block device. Sectors read before being
// written come back zeroed.
func NewMemDevice() *MemDevice {
	return &MemDevice{sectors: make(map[uint32]*[512]byte)}
}

func (m *MemDevice) ReadSector(sector uint32, buf *[512]byte) error {
	if src, ok := m.sectors[sector]; ok {
		*buf = *src
	} else {
		*buf = [512]byte{}
	}
	return nil
}

func (m *MemDevice) WriteSector(sector uint32, buf *[512]byte) error {
	cp := *buf
	m.sectors[sector] = &cp
	return nil
}

// SectorCount reports how many distinct sectors have been written, which is
// not the same as the device's logical size.
func (m *MemDevice) SectorCount() int { return len(m.sectors) }
