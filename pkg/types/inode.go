package types

const (
	// InodeMagic identifies an on-disk inode ("INOD").
	InodeMagic uint32 = 0x494e4f44

	DirectCount      = 123
	IndirectPointers = 128

	// MaxFileSectors is the largest number of data sectors one inode can
	// map: the direct pointers, one indirect block, and a doubly-indirect
	// block of indirect blocks.
	MaxFileSectors = DirectCount + IndirectPointers + IndirectPointers*IndirectPointers

	MaxFileSize = Byte(MaxFileSectors) * SectorSize
)

// DiskInode is the on-disk representation of a file or directory. Its
// encoded form occupies exactly one sector.
type DiskInode struct {
	Length         Byte
	Magic          uint32
	Direct         [DirectCount]Sector
	Indirect       Sector
	DoublyIndirect Sector
	IsDir          bool
}

// IndirectBlock is a sector's worth of sector numbers. A doubly-indirect
// block has the same shape; its entries point at indirect blocks.
type IndirectBlock [IndirectPointers]Sector
