package cache

import (
	"bytes"
	"math/rand"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/weberc2/sectorfs/pkg/device"
	. "github.com/weberc2/sectorfs/pkg/types"
)

func TestWriteThenRead(t *testing.T) {
	c := New(device.NewMemoryDevice(256))

	var data [SectorSize]byte
	rand.Seed(1)
	rand.Read(data[:])

	n, err := c.Write(7, data[:], 0)
	if err != nil {
		t.Fatalf("Write(): unexpected err: %v", err)
	}
	if n != SectorSize {
		t.Fatalf("Write(): wanted `%d`; found `%d`", SectorSize, n)
	}

	var out [SectorSize]byte
	if _, err := c.Read(7, out[:], 0); err != nil {
		t.Fatalf("Read(): unexpected err: %v", err)
	}
	if !bytes.Equal(data[:], out[:]) {
		t.Fatalf("Read(): sector contents differ from what was written")
	}
}

func TestWriteThenReadOverlap(t *testing.T) {
	c := New(device.NewMemoryDevice(256))

	data := []byte("overlap contents")
	if _, err := c.Write(3, data, 200); err != nil {
		t.Fatalf("Write(): unexpected err: %v", err)
	}

	out := make([]byte, len(data))
	if _, err := c.Read(3, out, 200); err != nil {
		t.Fatalf("Read(): unexpected err: %v", err)
	}
	if !bytes.Equal(data, out) {
		t.Fatalf("Read(): wanted `%s`; found `%s`", data, out)
	}
}

func TestReadPastSectorEnd(t *testing.T) {
	c := New(device.NewMemoryDevice(256))

	var buf [16]byte
	n, err := c.Read(0, buf[:], SectorSize+1)
	if err != nil {
		t.Fatalf("Read(): unexpected err: %v", err)
	}
	if n != 0 {
		t.Fatalf("Read() past sector end: wanted `0` bytes; found `%d`", n)
	}
}

func TestShortCopyAtSectorEnd(t *testing.T) {
	c := New(device.NewMemoryDevice(256))

	var buf [100]byte
	n, err := c.Write(5, buf[:], SectorSize-60)
	if err != nil {
		t.Fatalf("Write(): unexpected err: %v", err)
	}
	if n != 60 {
		t.Fatalf("Write() at sector end: wanted `60` bytes; found `%d`", n)
	}
}

func TestFlushAllWritesBack(t *testing.T) {
	dev := device.NewMemoryDevice(256)
	c := New(dev)

	var data [SectorSize]byte
	rand.Seed(2)
	rand.Read(data[:])
	if _, err := c.Write(9, data[:], 0); err != nil {
		t.Fatalf("Write(): unexpected err: %v", err)
	}

	if err := c.FlushAll(); err != nil {
		t.Fatalf("FlushAll(): unexpected err: %v", err)
	}

	var out [SectorSize]byte
	if err := dev.ReadSector(9, out[:]); err != nil {
		t.Fatalf("ReadSector(): unexpected err: %v", err)
	}
	if !bytes.Equal(data[:], out[:]) {
		t.Fatalf("FlushAll(): device contents differ from what was written")
	}

	// Nothing is dirty after a flush: a second flush touches the device
	// not at all.
	writes := c.Stats().DeviceWrites
	if err := c.FlushAll(); err != nil {
		t.Fatalf("FlushAll(): unexpected err: %v", err)
	}
	if got := c.Stats().DeviceWrites; got != writes {
		t.Fatalf(
			"FlushAll() twice: wanted `%d` device writes; found `%d`",
			writes,
			got,
		)
	}
}

func TestEvictionWritesBack(t *testing.T) {
	dev := device.NewMemoryDevice(256)
	c := New(dev)

	var data [SectorSize]byte
	rand.Seed(3)
	rand.Read(data[:])
	if _, err := c.Write(10, data[:], 0); err != nil {
		t.Fatalf("Write(): unexpected err: %v", err)
	}

	// Cycle enough distinct sectors through the cache to force sector 10
	// out, then read it back through the cache.
	var scratch [SectorSize]byte
	for sector := Sector(11); sector < 11+SlotCount+5; sector++ {
		if _, err := c.Write(sector, scratch[:], 0); err != nil {
			t.Fatalf("Write(): unexpected err: %v", err)
		}
	}

	var out [SectorSize]byte
	if _, err := c.Read(10, out[:], 0); err != nil {
		t.Fatalf("Read(): unexpected err: %v", err)
	}
	if !bytes.Equal(data[:], out[:]) {
		t.Fatalf("Read() after eviction: contents differ from what was written")
	}
}

func TestRepeatReadHits(t *testing.T) {
	c := New(device.NewMemoryDevice(256))

	var buf [SectorSize]byte
	if _, err := c.Read(4, buf[:], 0); err != nil {
		t.Fatalf("Read(): unexpected err: %v", err)
	}
	if _, err := c.Read(4, buf[:], 0); err != nil {
		t.Fatalf("Read(): unexpected err: %v", err)
	}

	stats := c.Stats()
	if stats.Tries != 2 {
		t.Fatalf("Stats().Tries: wanted `2`; found `%d`", stats.Tries)
	}
	if stats.Hits != 1 {
		t.Fatalf("Stats().Hits: wanted `1`; found `%d`", stats.Hits)
	}
	if stats.DeviceReads != 1 {
		t.Fatalf("Stats().DeviceReads: wanted `1`; found `%d`", stats.DeviceReads)
	}
}

func TestWholeSectorWriteMissSkipsFetch(t *testing.T) {
	c := New(device.NewMemoryDevice(256))

	var data [SectorSize]byte
	if _, err := c.Write(8, data[:], 0); err != nil {
		t.Fatalf("Write(): unexpected err: %v", err)
	}

	if got := c.Stats().DeviceReads; got != 0 {
		t.Fatalf(
			"whole-sector write miss: wanted `0` device reads; found `%d`",
			got,
		)
	}
}

func TestReset(t *testing.T) {
	dev := device.NewMemoryDevice(256)
	c := New(dev)

	data := []byte("survives the reset")
	if _, err := c.Write(12, data, 0); err != nil {
		t.Fatalf("Write(): unexpected err: %v", err)
	}

	if err := c.Reset(); err != nil {
		t.Fatalf("Reset(): unexpected err: %v", err)
	}

	stats := c.Stats()
	if stats.Tries != 0 || stats.Hits != 0 || stats.DeviceReads != 0 ||
		stats.DeviceWrites != 0 {
		t.Fatalf("Reset(): counters not zeroed: %+v", stats)
	}

	out := make([]byte, len(data))
	if _, err := c.Read(12, out, 0); err != nil {
		t.Fatalf("Read(): unexpected err: %v", err)
	}
	if !bytes.Equal(data, out) {
		t.Fatalf("Read() after Reset(): wanted `%s`; found `%s`", data, out)
	}
}

func TestConcurrentDistinctSectors(t *testing.T) {
	c := New(device.NewMemoryDevice(1024))

	var group errgroup.Group
	for i := 0; i < 8; i++ {
		base := Sector(i * 100)
		group.Go(func() error {
			var data [SectorSize]byte
			for round := 0; round < 50; round++ {
				sector := base + Sector(round%20)
				data[0] = byte(sector)
				if _, err := c.Write(sector, data[:], 0); err != nil {
					return err
				}
				var out [SectorSize]byte
				if _, err := c.Read(sector, out[:], 0); err != nil {
					return err
				}
				if out[0] != byte(sector) {
					t.Errorf(
						"sector `%d`: wanted first byte `%d`; found `%d`",
						sector,
						byte(sector),
						out[0],
					)
				}
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		t.Fatalf("concurrent read/write: unexpected err: %v", err)
	}
}
