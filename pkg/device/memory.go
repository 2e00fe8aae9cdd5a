package device

import (
	"fmt"

	. "github.com/weberc2/sectorfs/pkg/types"
)

// MemoryDevice is a block device backed by an in-memory buffer, primarily
// for tests and throwaway images.
type MemoryDevice struct {
	buf     []byte
	sectors Sector
}

func NewMemoryDevice(sectors Sector) *MemoryDevice {
	return &MemoryDevice{
		buf:     make([]byte, Byte(sectors)*SectorSize),
		sectors: sectors,
	}
}

func (dev *MemoryDevice) ReadSector(sector Sector, buffer []byte) error {
	if err := dev.check(sector, buffer); err != nil {
		return fmt.Errorf("reading sector `%d` from memory device: %w", sector, err)
	}
	offset := Byte(sector) * SectorSize
	copy(buffer, dev.buf[offset:offset+SectorSize])
	return nil
}

func (dev *MemoryDevice) WriteSector(sector Sector, buffer []byte) error {
	if err := dev.check(sector, buffer); err != nil {
		return fmt.Errorf("writing sector `%d` to memory device: %w", sector, err)
	}
	offset := Byte(sector) * SectorSize
	copy(dev.buf[offset:offset+SectorSize], buffer)
	return nil
}

func (dev *MemoryDevice) SectorCount() Sector { return dev.sectors }

func (dev *MemoryDevice) check(sector Sector, buffer []byte) error {
	if sector >= dev.sectors {
		return OutOfRangeErr
	}
	if Byte(len(buffer)) != SectorSize {
		return ShortBufErr
	}
	return nil
}

var _ Device = (*MemoryDevice)(nil)
