package freemap

import (
	"sync"

	"github.com/weberc2/sectorfs/pkg/math"
	. "github.com/weberc2/sectorfs/pkg/types"
)

const bitsPerByte = 8

// FreeMap allocates and releases single sectors out of a bitmap (one bit
// per device sector, high = in use). All operations serialize on an
// internal mutex; callers never need external locking.
//
// The bitmap itself persists as the payload of a regular file whose inode
// lives at `FreeMapSector`; loading and storing that file is the
// filesystem facade's job (the free map doesn't know about inodes).
type FreeMap struct {
	mu      sync.Mutex
	bytes   []byte
	sectors Sector
}

// New returns a free map for a device with `sectors` sectors, with every
// sector free.
func New(sectors Sector) *FreeMap {
	return &FreeMap{
		bytes:   make([]byte, math.DivRoundUp(Byte(sectors), bitsPerByte)),
		sectors: sectors,
	}
}

// Allocate claims the lowest free sector. Returns false when the device
// is full.
func (fm *FreeMap) Allocate() (Sector, bool) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	for i, byt := range fm.bytes {
		if bit := byteFirstZero(byt); bit != 0xff {
			sector := Sector(i*bitsPerByte) + Sector(bit)
			if sector >= fm.sectors {
				return SectorNil, false
			}
			fm.bytes[i] = byteSetHigh(byt, bit)
			return sector, true
		}
	}
	return SectorNil, false
}

// Release returns a sector to the pool.
func (fm *FreeMap) Release(sector Sector) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	b := &fm.bytes[sector/bitsPerByte]
	*b = byteSetLow(*b, uint8(sector%bitsPerByte))
}

// Reserve marks a specific sector as in use (format-time bookkeeping for
// the reserved sectors).
func (fm *FreeMap) Reserve(sector Sector) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	b := &fm.bytes[sector/bitsPerByte]
	*b = byteSetHigh(*b, uint8(sector%bitsPerByte))
}

// FreeCount reports how many sectors are currently free.
func (fm *FreeMap) FreeCount() Sector {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	var free Sector
	for sector := Sector(0); sector < fm.sectors; sector++ {
		if byteIsZero(fm.bytes[sector/bitsPerByte], uint8(sector%bitsPerByte)) {
			free++
		}
	}
	return free
}

// Size is the bitmap's length in bytes, which is also the length of its
// backing file.
func (fm *FreeMap) Size() Byte {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return Byte(len(fm.bytes))
}

// Bytes copies the bitmap out for persistence.
func (fm *FreeMap) Bytes() []byte {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	out := make([]byte, len(fm.bytes))
	copy(out, fm.bytes)
	return out
}

// Load replaces the bitmap with a previously persisted image.
func (fm *FreeMap) Load(b []byte) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	copy(fm.bytes, b)
}

func byteIsZero(byt byte, bit uint8) bool {
	return byt&(0b1000_0000>>bit) == 0
}

func byteSetHigh(byt byte, bit uint8) byte {
	return byt | (0b1000_0000 >> bit)
}

func byteSetLow(byt byte, bit uint8) byte {
	return byt & ^(0b1000_0000 >> bit)
}

func byteFirstZero(byt byte) uint8 {
	for bit := uint8(0); bit < bitsPerByte; bit++ {
		if byteIsZero(byt, bit) {
			return bit
		}
	}
	return 0xff
}

var _ SectorAllocator = (*FreeMap)(nil)
