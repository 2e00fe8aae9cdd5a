package cache

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/weberc2/sectorfs/pkg/device"
	"github.com/weberc2/sectorfs/pkg/math"
	. "github.com/weberc2/sectorfs/pkg/types"
)

// SlotCount is the fixed capacity of the cache, in sectors.
const SlotCount = 63

// slot holds one resident sector. A slot's sector number changes only
// while both the cache index lock and the slot mutex are held; the used
// bit, the payload, and the dirty bit a write sets change under the slot
// mutex alone. That split is what lets the eviction sweep stay
// non-blocking.
type slot struct {
	mu     sync.Mutex
	sector Sector
	valid  bool
	dirty  bool
	used   bool
	data   [SectorSize]byte
}

// Cache is a write-back cache of device sectors with clock replacement.
// It is owned by the filesystem handle that created it; there is no
// process-global cache.
type Cache struct {
	dev   device.Device
	mu    sync.Mutex // index lock: slot identity and the clock hand
	slots [SlotCount]slot
	hand  int

	tries        uint64
	hits         uint64
	deviceReads  uint64
	deviceWrites uint64
}

// Stats is a snapshot of the cache's monotonic counters.
type Stats struct {
	Tries        uint64
	Hits         uint64
	DeviceReads  uint64
	DeviceWrites uint64
}

func New(dev device.Device) *Cache {
	return &Cache{dev: dev}
}

// Read copies up to `len(p)` bytes out of `sector` starting at `offset`
// within the sector. Returns the number of bytes copied; an offset past
// the end of the sector reads 0 bytes.
func (c *Cache) Read(sector Sector, p []byte, offset Byte) (Byte, error) {
	if offset > SectorSize {
		return 0, nil
	}

	s, err := c.acquire(sector, false)
	if err != nil {
		return 0, fmt.Errorf("reading sector `%d` through cache: %w", sector, err)
	}

	n := math.Min(Byte(len(p)), SectorSize-offset)
	copy(p[:n], s.data[offset:offset+n])
	s.used = true
	s.mu.Unlock()
	return n, nil
}

// Write copies up to `len(p)` bytes into `sector` starting at `offset`
// within the sector and marks the slot dirty. The data reaches the device
// on eviction, FlushAll, or Shutdown.
func (c *Cache) Write(sector Sector, p []byte, offset Byte) (Byte, error) {
	if offset > SectorSize {
		return 0, nil
	}

	// A write that covers the whole sector doesn't need the old contents;
	// claiming the slot without the device fetch keeps freshly extended
	// files from generating reads.
	wholeSector := offset == 0 && Byte(len(p)) >= SectorSize

	s, err := c.acquire(sector, wholeSector)
	if err != nil {
		return 0, fmt.Errorf("writing sector `%d` through cache: %w", sector, err)
	}

	n := math.Min(Byte(len(p)), SectorSize-offset)
	copy(s.data[offset:offset+n], p[:n])
	s.used = true
	s.dirty = true
	s.mu.Unlock()
	return n, nil
}

// acquire returns the slot holding `sector` with its mutex held, fetching
// the sector into a victim slot on a miss. With `skipFetch` the payload is
// left as-is on a miss; the caller must overwrite all of it.
func (c *Cache) acquire(sector Sector, skipFetch bool) (*slot, error) {
	c.mu.Lock()
	atomic.AddUint64(&c.tries, 1)

	for i := range c.slots {
		s := &c.slots[i]
		if s.valid && s.sector == sector {
			// Safe to block here: slot holders never take the index lock,
			// so the index -> slot order cannot invert.
			s.mu.Lock()
			atomic.AddUint64(&c.hits, 1)
			c.mu.Unlock()
			return s, nil
		}
	}

	s, err := c.evict()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	s.sector = sector
	s.valid = true
	s.dirty = false
	c.mu.Unlock()

	if !skipFetch {
		if err := c.dev.ReadSector(sector, s.data[:]); err != nil {
			s.valid = false
			s.mu.Unlock()
			return nil, err
		}
		atomic.AddUint64(&c.deviceReads, 1)
	}
	return s, nil
}

// evict runs the clock sweep and returns a victim slot with its mutex
// held. Called with the index lock held. Slots whose mutex is busy are in
// active use and are skipped, so the sweep never blocks; it rotates until
// a victim turns up.
func (c *Cache) evict() (*slot, error) {
	for {
		s := &c.slots[c.hand]
		if s.mu.TryLock() {
			if !s.valid {
				c.advance()
				return s, nil
			}
			if s.used {
				s.used = false
			} else {
				if s.dirty {
					if err := c.flushSlot(s); err != nil {
						s.mu.Unlock()
						return nil, err
					}
				}
				c.advance()
				return s, nil
			}
			s.mu.Unlock()
		}
		c.advance()
	}
}

// advance moves the hand past the slot just examined so the next sweep
// starts at its successor rather than immediately revisiting the most
// recent insertion.
func (c *Cache) advance() {
	c.hand = (c.hand + 1) % SlotCount
}

// flushSlot writes a dirty slot's payload back to the device. Called with
// the slot mutex held.
func (c *Cache) flushSlot(s *slot) error {
	if err := c.dev.WriteSector(s.sector, s.data[:]); err != nil {
		return err
	}
	atomic.AddUint64(&c.deviceWrites, 1)
	s.dirty = false
	return nil
}

// FlushAll writes every dirty slot back to the device. Unlike the
// eviction sweep this blocks on each slot mutex; a holder may be about to
// dirty the payload and has to finish first.
func (c *Cache) FlushAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.slots {
		s := &c.slots[i]
		s.mu.Lock()
		if s.dirty {
			if err := c.flushSlot(s); err != nil {
				s.mu.Unlock()
				return fmt.Errorf("flushing sector `%d`: %w", s.sector, err)
			}
		}
		s.mu.Unlock()
	}
	return nil
}

// Shutdown flushes every dirty slot. The cache must not be used again
// except through Reset.
func (c *Cache) Shutdown() error {
	if err := c.FlushAll(); err != nil {
		return fmt.Errorf("shutting down cache: %w", err)
	}
	return nil
}

// Reset flushes the cache, then discards every slot and zeroes the
// statistics counters. Reset is a diagnostic, quiescent-state operation:
// callers must ensure no reads or writes are in flight.
func (c *Cache) Reset() error {
	if err := c.FlushAll(); err != nil {
		return fmt.Errorf("resetting cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.slots {
		s := &c.slots[i]
		s.sector = SectorNil
		s.valid = false
		s.dirty = false
		s.used = false
	}
	c.hand = 0
	atomic.StoreUint64(&c.tries, 0)
	atomic.StoreUint64(&c.hits, 0)
	atomic.StoreUint64(&c.deviceReads, 0)
	atomic.StoreUint64(&c.deviceWrites, 0)
	return nil
}

func (c *Cache) Stats() Stats {
	return Stats{
		Tries:        atomic.LoadUint64(&c.tries),
		Hits:         atomic.LoadUint64(&c.hits),
		DeviceReads:  atomic.LoadUint64(&c.deviceReads),
		DeviceWrites: atomic.LoadUint64(&c.deviceWrites),
	}
}
