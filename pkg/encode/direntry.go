package encode

import (
	. "github.com/weberc2/sectorfs/pkg/types"
)

// EncodeDirEntry lays one fixed-width directory entry out across
// `DirEntrySize` bytes. The name is NUL-padded to `NameMax + 1` bytes.
func EncodeDirEntry(entry *DirEntry, b *[DirEntrySize]byte) {
	p := b[:]

	var inUse uint8
	if entry.InUse {
		inUse = 1
	}
	putU8(p, dirEntryInUseStart, inUse)
	putSector(p, dirEntrySectorStart, entry.Sector)

	for i := Byte(0); i < dirEntryNameSize; i++ {
		p[dirEntryNameStart+i] = 0
	}
	copy(p[dirEntryNameStart:dirEntryNameEnd], entry.Name)
}

// DecodeDirEntry reads an entry back out; the name is truncated at the
// first NUL.
func DecodeDirEntry(entry *DirEntry, b *[DirEntrySize]byte) {
	p := b[:]

	entry.InUse = getU8(p, dirEntryInUseStart) != 0
	entry.Sector = getSector(p, dirEntrySectorStart)

	name := p[dirEntryNameStart:dirEntryNameEnd]
	n := 0
	for n < len(name) && name[n] != 0 {
		n++
	}
	entry.Name = string(name[:n])
}

const (
	dirEntryInUseStart = 0
	dirEntryInUseSize  = 1
	dirEntryInUseEnd   = dirEntryInUseStart + dirEntryInUseSize

	dirEntryPad0Size = 3

	dirEntrySectorStart = dirEntryInUseEnd + dirEntryPad0Size
	dirEntrySectorSize  = 4
	dirEntrySectorEnd   = dirEntrySectorStart + dirEntrySectorSize

	dirEntryNameStart = dirEntrySectorEnd
	dirEntryNameSize  = NameMax + 1
	dirEntryNameEnd   = dirEntryNameStart + dirEntryNameSize

	dirEntryPad1Size = DirEntrySize - dirEntryNameEnd
)

// One trailing pad byte brings the entry to its fixed 24-byte width.
var (
	_ [dirEntryPad1Size - 1]byte
	_ [1 - dirEntryPad1Size]byte
)
