package types

const (
	// NameMax is the longest directory entry name, in bytes, not counting
	// the NUL padding.
	NameMax = 14

	// DirEntrySize is the fixed width of one encoded directory entry.
	DirEntrySize Byte = 24
)

type DirEntry struct {
	InUse  bool
	Sector Sector
	Name   string
}
