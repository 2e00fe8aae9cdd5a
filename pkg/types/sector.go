package types

// Sector identifies one fixed-size region on the block device. Sector
// numbers are 32 bits wide on disk; `SectorNil` (0) means "unallocated"
// everywhere a sector number is stored.
type Sector uint32

// Byte is a count of bytes or a byte offset.
type Byte int64

const (
	SectorSize Byte   = 512
	SectorNil  Sector = 0

	// Reserved sectors, fixed at format time.
	HeaderSector  Sector = 0
	FreeMapSector Sector = 1
	RootSector    Sector = 2
)
