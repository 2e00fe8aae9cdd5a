package inode

import (
	"fmt"

	"github.com/weberc2/sectorfs/pkg/math"
	. "github.com/weberc2/sectorfs/pkg/types"
)

const (
	OutOfSpaceErr ConstError = "out of space"
	TooBigErr     ConstError = "file too large"
)

// extendTo grows `di` so it maps at least `newLength` bytes, zero-filling
// every newly allocated data sector. Growth is all-or-nothing: every
// needed sector (data plus indirection) is claimed from the free map up
// front, and if any single allocation fails the whole batch is released
// and `di` is left untouched. Only a fully successful extension mutates
// the inode.
func (st *Store) extendTo(di *DiskInode, newLength Byte) error {
	if di.Length >= newLength {
		return nil
	}

	current := math.DivRoundUp(di.Length, SectorSize)
	target := math.DivRoundUp(newLength, SectorSize)

	needed := target - current
	if needed <= 0 {
		di.Length = newLength
		return nil
	}

	if tooBig(target) {
		return fmt.Errorf("extending inode to `%d` bytes: %w", newLength, TooBigErr)
	}

	// Data sectors alone aren't the whole bill: crossing into the
	// indirect or doubly-indirect regions costs the indirection blocks
	// themselves.
	switch {
	case current == 0 || inDirect(current):
		if inIndirect(target) {
			needed += 1
		} else if inDoubly(target) {
			needed += 1 + 1 + doublyIndex1(target) + 1
		}
	case inIndirect(current):
		if inDoubly(target) {
			needed += 1 + doublyIndex1(target) + 1
		}
	default:
		needed += doublyIndex1(target) - doublyIndex1(current)
	}

	scratch := make([]Sector, 0, needed)
	for i := Byte(0); i < needed; i++ {
		sector, ok := st.alloc.Allocate()
		if !ok {
			for _, s := range scratch {
				st.alloc.Release(s)
			}
			return fmt.Errorf(
				"extending inode to `%d` bytes: %w",
				newLength,
				OutOfSpaceErr,
			)
		}
		scratch = append(scratch, sector)
	}

	next := 0
	take := func() Sector {
		s := scratch[next]
		next++
		return s
	}

	var zeros [SectorSize]byte
	dataNeeded := target - current

	for i := 0; i < DirectCount && dataNeeded > 0; i++ {
		if di.Direct[i] == SectorNil {
			di.Direct[i] = take()
			if _, err := st.cache.Write(di.Direct[i], zeros[:], 0); err != nil {
				return fmt.Errorf(
					"extending inode to `%d` bytes: zeroing sector `%d`: %w",
					newLength,
					di.Direct[i],
					err,
				)
			}
			dataNeeded--
		}
	}

	if dataNeeded > 0 {
		var block IndirectBlock
		if di.Indirect == SectorNil {
			di.Indirect = take()
		} else if err := st.readIndirect(di.Indirect, &block); err != nil {
			return fmt.Errorf("extending inode to `%d` bytes: %w", newLength, err)
		}

		for i := 0; i < IndirectPointers && dataNeeded > 0; i++ {
			if block[i] == SectorNil {
				block[i] = take()
				if _, err := st.cache.Write(block[i], zeros[:], 0); err != nil {
					return fmt.Errorf(
						"extending inode to `%d` bytes: zeroing sector `%d`: %w",
						newLength,
						block[i],
						err,
					)
				}
				dataNeeded--
			}
		}

		if err := st.writeIndirect(di.Indirect, &block); err != nil {
			return fmt.Errorf("extending inode to `%d` bytes: %w", newLength, err)
		}
	}

	if dataNeeded > 0 {
		var doubly IndirectBlock
		if di.DoublyIndirect == SectorNil {
			di.DoublyIndirect = take()
		} else if err := st.readIndirect(di.DoublyIndirect, &doubly); err != nil {
			return fmt.Errorf("extending inode to `%d` bytes: %w", newLength, err)
		}

		k := Byte(0)
		if inDoubly(current) {
			k = doublyIndex1(current)
		}
		z := doublyIndex1(target)

		for ; k <= z && dataNeeded > 0; k++ {
			var block IndirectBlock
			if doubly[k] == SectorNil {
				doubly[k] = take()
			} else if err := st.readIndirect(doubly[k], &block); err != nil {
				return fmt.Errorf(
					"extending inode to `%d` bytes: %w",
					newLength,
					err,
				)
			}

			for i := 0; i < IndirectPointers && dataNeeded > 0; i++ {
				if block[i] == SectorNil {
					block[i] = take()
					// Doubly-indirect leaf sectors are zeroed with a
					// direct device write rather than through the cache.
					if err := st.dev.WriteSector(block[i], zeros[:]); err != nil {
						return fmt.Errorf(
							"extending inode to `%d` bytes: zeroing sector `%d`: %w",
							newLength,
							block[i],
							err,
						)
					}
					dataNeeded--
				}
			}

			if err := st.writeIndirect(doubly[k], &block); err != nil {
				return fmt.Errorf(
					"extending inode to `%d` bytes: %w",
					newLength,
					err,
				)
			}
		}

		if err := st.writeIndirect(di.DoublyIndirect, &doubly); err != nil {
			return fmt.Errorf("extending inode to `%d` bytes: %w", newLength, err)
		}
	}

	di.Length = newLength
	return nil
}
