package device

import (
	. "github.com/weberc2/sectorfs/pkg/types"
)

// Device is a fixed-sector block device. Buffers passed to ReadSector and
// WriteSector are always exactly one sector long.
type Device interface {
	ReadSector(sector Sector, buffer []byte) error
	WriteSector(sector Sector, buffer []byte) error
	SectorCount() Sector
}

const (
	OutOfRangeErr ConstError = "sector out of range"
	ShortBufErr   ConstError = "buffer is not one sector"
)
