package inode

import (
	"fmt"

	. "github.com/weberc2/sectorfs/pkg/types"
)

// The block map numbers a file's data blocks from 1. Block n lives in the
// direct pointers, then the indirect block, then the doubly-indirect
// tree, in that order.

func inDirect(n Byte) bool {
	return n <= DirectCount
}

func inIndirect(n Byte) bool {
	return n > DirectCount && n-DirectCount <= IndirectPointers
}

func inDoubly(n Byte) bool {
	return n-DirectCount > IndirectPointers &&
		n-DirectCount-IndirectPointers <= IndirectPointers*IndirectPointers
}

func tooBig(n Byte) bool {
	return n-DirectCount-IndirectPointers > IndirectPointers*IndirectPointers
}

func directIndex(n Byte) Byte {
	return n - 1
}

func indirectIndex(n Byte) Byte {
	return n - DirectCount - 1
}

func doublyIndex1(n Byte) Byte {
	return (n - DirectCount - IndirectPointers - 1) / IndirectPointers
}

func doublyIndex2(n Byte) Byte {
	return (n - DirectCount - IndirectPointers - 1) % IndirectPointers
}

// byteToSector maps a byte offset within the inode at `inodeSector` to
// the data sector holding it. Returns `SectorNil` when the offset is not
// mapped. Every metadata sector is consulted through the cache; nothing
// is held in memory between calls.
func (st *Store) byteToSector(inodeSector Sector, pos Byte) (Sector, error) {
	var di DiskInode
	if err := st.readDiskInode(inodeSector, &di); err != nil {
		return SectorNil, fmt.Errorf(
			"mapping offset `%d` of inode `%d`: %w",
			pos,
			inodeSector,
			err,
		)
	}

	n := pos/SectorSize + 1
	switch {
	case inDirect(n):
		return di.Direct[directIndex(n)], nil

	case inIndirect(n):
		var block IndirectBlock
		if err := st.readIndirect(di.Indirect, &block); err != nil {
			return SectorNil, fmt.Errorf(
				"mapping offset `%d` of inode `%d`: %w",
				pos,
				inodeSector,
				err,
			)
		}
		return block[indirectIndex(n)], nil

	case inDoubly(n):
		var doubly, block IndirectBlock
		if err := st.readIndirect(di.DoublyIndirect, &doubly); err != nil {
			return SectorNil, fmt.Errorf(
				"mapping offset `%d` of inode `%d`: %w",
				pos,
				inodeSector,
				err,
			)
		}
		if err := st.readIndirect(doubly[doublyIndex1(n)], &block); err != nil {
			return SectorNil, fmt.Errorf(
				"mapping offset `%d` of inode `%d`: %w",
				pos,
				inodeSector,
				err,
			)
		}
		return block[doublyIndex2(n)], nil
	}

	return SectorNil, nil
}
