package filesystem

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/weberc2/sectorfs/pkg/cache"
	"github.com/weberc2/sectorfs/pkg/device"
	"github.com/weberc2/sectorfs/pkg/dir"
	"github.com/weberc2/sectorfs/pkg/encode"
	"github.com/weberc2/sectorfs/pkg/file"
	"github.com/weberc2/sectorfs/pkg/freemap"
	"github.com/weberc2/sectorfs/pkg/inode"
	. "github.com/weberc2/sectorfs/pkg/types"
)

const (
	// RootEntryCount sizes the root directory created at format time.
	RootEntryCount = 16

	TruncatedErr ConstError = "device smaller than formatted volume"
)

// FileSystem owns every piece of mutable state: the device, the sector
// cache, the free map, and the open-inode set. Nothing here is a
// process-wide singleton; two FileSystems over two devices don't share
// anything.
type FileSystem struct {
	dev     device.Device
	cache   *cache.Cache
	freeMap *freemap.FreeMap
	inodes  *inode.Store
	header  VolumeHeader
}

// Format writes a fresh, empty filesystem onto `dev` — volume header,
// free map, and root directory — and returns it mounted.
func Format(dev device.Device) (*FileSystem, error) {
	sectors := dev.SectorCount()

	fs := &FileSystem{dev: dev}
	fs.cache = cache.New(dev)
	fs.freeMap = freemap.New(sectors)
	fs.inodes = inode.NewStore(fs.cache, dev, fs.freeMap)
	fs.header = VolumeHeader{
		Version: HeaderVersion,
		Sectors: sectors,
		ID:      [16]byte(uuid.New()),
	}

	fs.freeMap.Reserve(HeaderSector)
	fs.freeMap.Reserve(FreeMapSector)
	fs.freeMap.Reserve(RootSector)

	var buf [SectorSize]byte
	encode.EncodeVolumeHeader(&fs.header, &buf)
	if _, err := fs.cache.Write(HeaderSector, buf[:], 0); err != nil {
		return nil, fmt.Errorf("formatting volume: %w", err)
	}

	// The free map persists as a regular file; creating it claims its
	// own data sectors out of the in-memory bitmap before the bitmap is
	// written down.
	if err := fs.inodes.Create(
		FreeMapSector,
		fs.freeMap.Size(),
		false,
	); err != nil {
		return nil, fmt.Errorf("formatting volume: free map file: %w", err)
	}

	if err := dir.Create(fs.inodes, RootSector, RootEntryCount); err != nil {
		return nil, fmt.Errorf("formatting volume: root directory: %w", err)
	}

	if err := fs.storeFreeMap(); err != nil {
		return nil, fmt.Errorf("formatting volume: %w", err)
	}

	if err := fs.cache.FlushAll(); err != nil {
		return nil, fmt.Errorf("formatting volume: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"volume":  uuid.UUID(fs.header.ID).String(),
		"sectors": sectors,
	}).Info("formatted volume")

	return fs, nil
}

// Mount opens a previously formatted device: verifies the header and
// loads the free map.
func Mount(dev device.Device) (*FileSystem, error) {
	fs := &FileSystem{dev: dev}
	fs.cache = cache.New(dev)

	var buf [SectorSize]byte
	if _, err := fs.cache.Read(HeaderSector, buf[:], 0); err != nil {
		return nil, fmt.Errorf("mounting volume: %w", err)
	}
	if err := encode.DecodeVolumeHeader(&fs.header, &buf); err != nil {
		return nil, fmt.Errorf("mounting volume: %w", err)
	}
	if fs.header.Sectors > dev.SectorCount() {
		return nil, fmt.Errorf(
			"mounting volume: header names `%d` sectors, device has `%d`: %w",
			fs.header.Sectors,
			dev.SectorCount(),
			TruncatedErr,
		)
	}

	fs.freeMap = freemap.New(fs.header.Sectors)
	fs.inodes = inode.NewStore(fs.cache, dev, fs.freeMap)

	if err := fs.loadFreeMap(); err != nil {
		return nil, fmt.Errorf("mounting volume: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"volume":  uuid.UUID(fs.header.ID).String(),
		"sectors": fs.header.Sectors,
	}).Info("mounted volume")

	return fs, nil
}

// Shutdown persists the free map and flushes every dirty cache slot.
// After a clean Shutdown the on-device image is complete: every
// successful write, directory entry, and allocation is durable.
func (fs *FileSystem) Shutdown() error {
	if err := fs.storeFreeMap(); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := fs.cache.Shutdown(); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"volume": uuid.UUID(fs.header.ID).String(),
	}).Info("filesystem shut down")
	return nil
}

// Header exposes the volume header read at mount (or written at format).
func (fs *FileSystem) Header() VolumeHeader { return fs.header }

// FreeMap exposes the sector allocator, chiefly for diagnostics and
// tests that need to observe or exhaust free space.
func (fs *FileSystem) FreeMap() *freemap.FreeMap { return fs.freeMap }

// CacheStats snapshots the cache's counters.
func (fs *FileSystem) CacheStats() cache.Stats { return fs.cache.Stats() }

// ResetCache flushes and reinitializes the sector cache. Diagnostic,
// quiescent-state only: no reads or writes may be in flight.
func (fs *FileSystem) ResetCache() error {
	if err := fs.cache.Reset(); err != nil {
		return fmt.Errorf("resetting cache: %w", err)
	}
	return nil
}

func (fs *FileSystem) storeFreeMap() error {
	ino, err := fs.inodes.Open(FreeMapSector)
	if err != nil {
		return fmt.Errorf("storing free map: %w", err)
	}
	defer ino.Close()

	if _, err := ino.WriteAt(fs.freeMap.Bytes(), 0); err != nil {
		return fmt.Errorf("storing free map: %w", err)
	}
	return nil
}

func (fs *FileSystem) loadFreeMap() error {
	ino, err := fs.inodes.Open(FreeMapSector)
	if err != nil {
		return fmt.Errorf("loading free map: %w", err)
	}
	defer ino.Close()

	b := make([]byte, fs.freeMap.Size())
	if _, err := ino.ReadAt(b, 0); err != nil {
		return fmt.Errorf("loading free map: %w", err)
	}
	fs.freeMap.Load(b)
	return nil
}

// Root opens the root directory as a file handle (the `/` special case).
func (fs *FileSystem) Root() (*file.File, error) {
	ino, err := fs.inodes.Open(RootSector)
	if err != nil {
		return nil, fmt.Errorf("opening root: %w", err)
	}
	return file.Open(ino)
}
