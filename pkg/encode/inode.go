package encode

import (
	. "github.com/weberc2/sectorfs/pkg/types"
)

// EncodeDiskInode lays the inode out across exactly one sector.
func EncodeDiskInode(inode *DiskInode, b *[SectorSize]byte) {
	p := b[:]

	putU32(p, inodeLengthStart, uint32(inode.Length))
	putU32(p, inodeMagicStart, inode.Magic)

	for i := Byte(0); i < DirectCount; i++ {
		putSector(p, inodeDirectStart+i*sectorPointerSize, inode.Direct[i])
	}

	putSector(p, inodeIndirectStart, inode.Indirect)
	putSector(p, inodeDoublyIndirectStart, inode.DoublyIndirect)

	var isDir uint8
	if inode.IsDir {
		isDir = 1
	}
	putU8(p, inodeIsDirStart, isDir)
}

// DecodeDiskInode reads the inode back out of a sector image. The magic
// field is carried through, not validated; callers that care compare it
// against `InodeMagic`.
func DecodeDiskInode(inode *DiskInode, b *[SectorSize]byte) {
	p := b[:]

	inode.Length = Byte(int32(getU32(p, inodeLengthStart)))
	inode.Magic = getU32(p, inodeMagicStart)

	for i := Byte(0); i < DirectCount; i++ {
		inode.Direct[i] = getSector(p, inodeDirectStart+i*sectorPointerSize)
	}

	inode.Indirect = getSector(p, inodeIndirectStart)
	inode.DoublyIndirect = getSector(p, inodeDoublyIndirectStart)
	inode.IsDir = getU8(p, inodeIsDirStart) != 0
}

// EncodeIndirect lays an indirect (or doubly-indirect) block out across
// exactly one sector.
func EncodeIndirect(block *IndirectBlock, b *[SectorSize]byte) {
	for i := Byte(0); i < IndirectPointers; i++ {
		putSector(b[:], i*sectorPointerSize, block[i])
	}
}

func DecodeIndirect(block *IndirectBlock, b *[SectorSize]byte) {
	for i := Byte(0); i < IndirectPointers; i++ {
		block[i] = getSector(b[:], i*sectorPointerSize)
	}
}

const (
	sectorPointerSize Byte = 4

	inodeLengthStart = 0
	inodeLengthSize  = 4
	inodeLengthEnd   = inodeLengthStart + inodeLengthSize

	inodeMagicStart = inodeLengthEnd
	inodeMagicSize  = 4
	inodeMagicEnd   = inodeMagicStart + inodeMagicSize

	inodeDirectStart = inodeMagicEnd
	inodeDirectSize  = DirectCount * sectorPointerSize
	inodeDirectEnd   = inodeDirectStart + inodeDirectSize

	inodeIndirectStart = inodeDirectEnd
	inodeIndirectSize  = sectorPointerSize
	inodeIndirectEnd   = inodeIndirectStart + inodeIndirectSize

	inodeDoublyIndirectStart = inodeIndirectEnd
	inodeDoublyIndirectSize  = sectorPointerSize
	inodeDoublyIndirectEnd   = inodeDoublyIndirectStart + inodeDoublyIndirectSize

	inodeIsDirStart = inodeDoublyIndirectEnd
	inodeIsDirSize  = 1
	inodeIsDirEnd   = inodeIsDirStart + inodeIsDirSize

	inodePadSize = SectorSize - inodeIsDirEnd
)

// The encoded inode must fill its sector exactly (3 pad bytes after the
// isDir flag).
var (
	_ [inodePadSize - 3]byte
	_ [3 - inodePadSize]byte
)
