package types

// SectorAllocator hands out single sectors and takes them back. The inode
// layer assumes implementations serialize their own state internally.
type SectorAllocator interface {
	Allocate() (Sector, bool)
	Release(Sector)
}
