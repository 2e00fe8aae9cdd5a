package inode

import (
	"fmt"

	. "github.com/weberc2/sectorfs/pkg/types"
)

// releaseAll returns every sector reachable from the inode at `sector`,
// plus the inode sector itself, to the free map. Pointer arrays are
// filled front-to-back, so the walk stops at the first nil entry.
func (st *Store) releaseAll(sector Sector) error {
	var di DiskInode
	if err := st.readDiskInode(sector, &di); err != nil {
		return fmt.Errorf("freeing inode `%d`: %w", sector, err)
	}
	if err := st.releaseDisk(&di); err != nil {
		return fmt.Errorf("freeing inode `%d`: %w", sector, err)
	}
	st.alloc.Release(sector)
	return nil
}

// releaseDisk returns every data and indirection sector reachable from
// `di` to the free map, leaving the inode sector itself alone.
func (st *Store) releaseDisk(di *DiskInode) error {
	for i := 0; i < DirectCount; i++ {
		if di.Direct[i] == SectorNil {
			break
		}
		st.alloc.Release(di.Direct[i])
	}

	if di.Indirect != SectorNil {
		var block IndirectBlock
		if err := st.readIndirect(di.Indirect, &block); err != nil {
			return err
		}
		for i := 0; i < IndirectPointers; i++ {
			if block[i] == SectorNil {
				break
			}
			st.alloc.Release(block[i])
		}
		st.alloc.Release(di.Indirect)
	}

	if di.DoublyIndirect != SectorNil {
		var doubly IndirectBlock
		if err := st.readIndirect(di.DoublyIndirect, &doubly); err != nil {
			return err
		}
		for k := 0; k < IndirectPointers; k++ {
			if doubly[k] == SectorNil {
				break
			}
			var block IndirectBlock
			if err := st.readIndirect(doubly[k], &block); err != nil {
				return err
			}
			for i := 0; i < IndirectPointers; i++ {
				if block[i] == SectorNil {
					break
				}
				st.alloc.Release(block[i])
			}
			st.alloc.Release(doubly[k])
		}
		st.alloc.Release(di.DoublyIndirect)
	}

	return nil
}
