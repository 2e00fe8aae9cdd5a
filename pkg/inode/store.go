package inode

import (
	"fmt"
	"sync"

	"github.com/weberc2/sectorfs/pkg/cache"
	"github.com/weberc2/sectorfs/pkg/device"
	"github.com/weberc2/sectorfs/pkg/encode"
	. "github.com/weberc2/sectorfs/pkg/types"
)

// Store tracks every open inode. At most one in-memory inode exists per
// sector; all openers of a sector share it.
type Store struct {
	cache *cache.Cache
	dev   device.Device
	alloc SectorAllocator

	mu   sync.Mutex
	open map[Sector]*Inode
}

func NewStore(c *cache.Cache, dev device.Device, alloc SectorAllocator) *Store {
	return &Store{
		cache: c,
		dev:   dev,
		alloc: alloc,
		open:  make(map[Sector]*Inode),
	}
}

// Create initializes an on-disk inode at `sector` with `length` bytes of
// zeroed data. The inode sector itself is written straight to the device,
// bypassing the cache, so the newly materialized inode is consistent on
// disk immediately. On failure every sector allocated along the way has
// been returned to the free map.
func (st *Store) Create(sector Sector, length Byte, isDir bool) error {
	di := DiskInode{Magic: InodeMagic, IsDir: isDir}

	if err := st.extendTo(&di, length); err != nil {
		return fmt.Errorf(
			"creating inode at sector `%d` with length `%d`: %w",
			sector,
			length,
			err,
		)
	}

	var buf [SectorSize]byte
	encode.EncodeDiskInode(&di, &buf)
	if err := st.dev.WriteSector(sector, buf[:]); err != nil {
		st.releaseDisk(&di)
		return fmt.Errorf(
			"creating inode at sector `%d` with length `%d`: %w",
			sector,
			length,
			err,
		)
	}
	return nil
}

// Open returns the in-memory inode for `sector`, bumping its open count
// if some other caller already has it open.
func (st *Store) Open(sector Sector) (*Inode, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if ino, exists := st.open[sector]; exists {
		ino.openCount++
		return ino, nil
	}

	var di DiskInode
	if err := st.readDiskInode(sector, &di); err != nil {
		return nil, fmt.Errorf("opening inode at sector `%d`: %w", sector, err)
	}

	ino := &Inode{
		store:     st,
		sector:    sector,
		openCount: 1,
		isDir:     di.IsDir,
	}
	st.open[sector] = ino
	return ino, nil
}

// OpenCount reports how many callers currently have `sector` open.
func (st *Store) OpenCount(sector Sector) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	if ino, exists := st.open[sector]; exists {
		return ino.openCount
	}
	return 0
}

func (st *Store) readDiskInode(sector Sector, di *DiskInode) error {
	var buf [SectorSize]byte
	if _, err := st.cache.Read(sector, buf[:], 0); err != nil {
		return err
	}
	encode.DecodeDiskInode(di, &buf)
	return nil
}

func (st *Store) writeDiskInode(sector Sector, di *DiskInode) error {
	var buf [SectorSize]byte
	encode.EncodeDiskInode(di, &buf)
	_, err := st.cache.Write(sector, buf[:], 0)
	return err
}

func (st *Store) readIndirect(sector Sector, block *IndirectBlock) error {
	var buf [SectorSize]byte
	if _, err := st.cache.Read(sector, buf[:], 0); err != nil {
		return err
	}
	encode.DecodeIndirect(block, &buf)
	return nil
}

func (st *Store) writeIndirect(sector Sector, block *IndirectBlock) error {
	var buf [SectorSize]byte
	encode.EncodeIndirect(block, &buf)
	_, err := st.cache.Write(sector, buf[:], 0)
	return err
}
