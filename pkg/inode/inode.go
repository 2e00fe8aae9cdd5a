package inode

import (
	"fmt"
	"sync"

	"github.com/weberc2/sectorfs/pkg/math"
	. "github.com/weberc2/sectorfs/pkg/types"
)

// Inode is the in-memory handle for one on-disk inode. It carries
// identity and open-state only; every metadata field (length, block map)
// is re-read through the cache on demand, so there is no copy to go
// stale.
type Inode struct {
	store  *Store
	sector Sector

	mu sync.Mutex

	// Guarded by store.mu.
	openCount      int
	denyWriteCount int

	removed bool
	isDir   bool
}

// Sector is the on-disk inode's sector number, which doubles as the
// inode's stable identity (its "inumber").
func (ino *Inode) Sector() Sector { return ino.sector }

// Store is the open-inode set this inode belongs to.
func (ino *Inode) Store() *Store { return ino.store }

func (ino *Inode) IsDir() bool { return ino.isDir }

// Removed reports whether the inode has been marked for deletion. A nil
// inode counts as removed so lookups can chain without nil checks.
func (ino *Inode) Removed() bool {
	if ino == nil {
		return true
	}
	return ino.removed
}

// Remove marks the inode to be deleted once the last opener closes it.
func (ino *Inode) Remove() {
	ino.removed = true
}

func (ino *Inode) OpenCount() int {
	if ino == nil {
		return 0
	}
	ino.store.mu.Lock()
	defer ino.store.mu.Unlock()
	return ino.openCount
}

// Reopen registers another opener of the same inode.
func (ino *Inode) Reopen() *Inode {
	if ino == nil {
		return nil
	}
	ino.store.mu.Lock()
	defer ino.store.mu.Unlock()
	ino.openCount++
	return ino
}

// DenyWrite pins the inode against modification; writes return 0 bytes
// while any opener holds a deny. Invariant: 0 <= denyWriteCount <=
// openCount.
func (ino *Inode) DenyWrite() {
	ino.store.mu.Lock()
	defer ino.store.mu.Unlock()
	ino.denyWriteCount++
}

// AllowWrite undoes one DenyWrite; each denier must call it before
// closing.
func (ino *Inode) AllowWrite() {
	ino.store.mu.Lock()
	defer ino.store.mu.Unlock()
	ino.denyWriteCount--
}

// Length reports the inode's byte length, always via the on-disk inode
// through the cache, never a cached in-memory copy.
func (ino *Inode) Length() (Byte, error) {
	var di DiskInode
	if err := ino.store.readDiskInode(ino.sector, &di); err != nil {
		return 0, fmt.Errorf("reading length of inode `%d`: %w", ino.sector, err)
	}
	return di.Length, nil
}

// ReadAt copies up to `len(p)` bytes starting at `offset` into `p`. A
// read that would cross the end of the file reads nothing and returns 0.
func (ino *Inode) ReadAt(p []byte, offset Byte) (Byte, error) {
	length, err := ino.Length()
	if err != nil {
		return 0, fmt.Errorf("reading inode `%d`: %w", ino.sector, err)
	}
	if offset+Byte(len(p)) > length {
		return 0, nil
	}

	size := Byte(len(p))
	var read Byte
	for size > 0 {
		ino.mu.Lock()
		sector, err := ino.store.byteToSector(ino.sector, offset)
		ino.mu.Unlock()
		if err != nil {
			return read, fmt.Errorf("reading inode `%d`: %w", ino.sector, err)
		}
		if sector == SectorNil {
			break
		}

		sectorOffset := offset % SectorSize

		ino.mu.Lock()
		length, err = ino.Length()
		ino.mu.Unlock()
		if err != nil {
			return read, fmt.Errorf("reading inode `%d`: %w", ino.sector, err)
		}

		chunk := math.Min(size, math.Min(length-offset, SectorSize-sectorOffset))
		if chunk <= 0 {
			break
		}

		if _, err := ino.store.cache.Read(
			sector,
			p[read:read+chunk],
			sectorOffset,
		); err != nil {
			return read, fmt.Errorf("reading inode `%d`: %w", ino.sector, err)
		}

		size -= chunk
		offset += chunk
		read += chunk
	}
	return read, nil
}

// WriteAt copies `p` into the inode starting at `offset`, extending and
// zero-filling the file first if the write lands past the current end.
// Writes return 0 while the inode is pinned by DenyWrite. Extension is
// atomic: on failure the write is abandoned with the inode unchanged.
func (ino *Inode) WriteAt(p []byte, offset Byte) (Byte, error) {
	ino.store.mu.Lock()
	denied := ino.denyWriteCount > 0
	ino.store.mu.Unlock()
	if denied {
		return 0, nil
	}

	ino.mu.Lock()
	if err := ino.extendLocked(offset + Byte(len(p))); err != nil {
		ino.mu.Unlock()
		return 0, fmt.Errorf("writing inode `%d`: %w", ino.sector, err)
	}
	ino.mu.Unlock()

	// Map every chunk before copying any data. Block-map entries never
	// change once set, so the plan can't go stale, and a bulk write
	// won't evict its own indirection metadata mid-loop and have to
	// fetch it back.
	size := Byte(len(p))
	var sectors []Sector
	for mapped := Byte(0); mapped < size; {
		pos := offset + mapped
		ino.mu.Lock()
		sector, err := ino.store.byteToSector(ino.sector, pos)
		ino.mu.Unlock()
		if err != nil {
			return 0, fmt.Errorf("writing inode `%d`: %w", ino.sector, err)
		}
		if sector == SectorNil {
			break
		}
		sectors = append(sectors, sector)
		mapped += SectorSize - pos%SectorSize
	}

	var written Byte
	for _, sector := range sectors {
		sectorOffset := offset % SectorSize
		chunk := math.Min(size, SectorSize-sectorOffset)
		if chunk <= 0 {
			break
		}

		if _, err := ino.store.cache.Write(
			sector,
			p[written:written+chunk],
			sectorOffset,
		); err != nil {
			return written, fmt.Errorf("writing inode `%d`: %w", ino.sector, err)
		}

		size -= chunk
		offset += chunk
		written += chunk
	}
	return written, nil
}

// extendLocked grows the file to `newLength` if it is shorter. Assumes
// the caller holds the inode mutex.
func (ino *Inode) extendLocked(newLength Byte) error {
	length, err := ino.Length()
	if err != nil {
		return err
	}
	if newLength <= length {
		return nil
	}

	var di DiskInode
	if err := ino.store.readDiskInode(ino.sector, &di); err != nil {
		return err
	}
	if err := ino.store.extendTo(&di, newLength); err != nil {
		return err
	}
	return ino.store.writeDiskInode(ino.sector, &di)
}

// Close drops one opener. The last close of a removed inode returns every
// sector reachable from its block map, plus the inode sector itself, to
// the free map.
func (ino *Inode) Close() error {
	if ino == nil {
		return nil
	}

	st := ino.store
	st.mu.Lock()
	ino.openCount--
	if ino.openCount > 0 {
		st.mu.Unlock()
		return nil
	}
	delete(st.open, ino.sector)
	st.mu.Unlock()

	if !ino.removed {
		return nil
	}
	if err := st.releaseAll(ino.sector); err != nil {
		return fmt.Errorf("closing removed inode `%d`: %w", ino.sector, err)
	}
	return nil
}
