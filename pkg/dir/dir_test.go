package dir

import (
	"errors"
	"testing"

	"github.com/weberc2/sectorfs/pkg/cache"
	"github.com/weberc2/sectorfs/pkg/device"
	"github.com/weberc2/sectorfs/pkg/freemap"
	"github.com/weberc2/sectorfs/pkg/inode"
	. "github.com/weberc2/sectorfs/pkg/types"
)

func testDir(t *testing.T) (*Dir, *inode.Store, *freemap.FreeMap) {
	t.Helper()
	dev := device.NewMemoryDevice(512)
	fm := freemap.New(512)
	fm.Reserve(HeaderSector)
	fm.Reserve(FreeMapSector)
	fm.Reserve(RootSector)
	st := inode.NewStore(cache.New(dev), dev, fm)

	if err := Create(st, RootSector, 16); err != nil {
		t.Fatalf("Create(): unexpected err: %v", err)
	}
	ino, err := st.Open(RootSector)
	if err != nil {
		t.Fatalf("Open(): unexpected err: %v", err)
	}
	d, err := Open(ino)
	if err != nil {
		t.Fatalf("Open(): unexpected err: %v", err)
	}
	return d, st, fm
}

// addFile creates a fresh file inode and binds it into the directory.
func addFile(t *testing.T, d *Dir, st *inode.Store, fm *freemap.FreeMap, name string) Sector {
	t.Helper()
	sector, ok := fm.Allocate()
	if !ok {
		t.Fatalf("Allocate(): unexpected failure")
	}
	if err := st.Create(sector, 0, false); err != nil {
		t.Fatalf("Create(): unexpected err: %v", err)
	}
	if err := d.Add(name, sector); err != nil {
		t.Fatalf("Add(`%s`): unexpected err: %v", name, err)
	}
	return sector
}

func TestAddThenLookup(t *testing.T) {
	d, st, fm := testDir(t)
	sector := addFile(t, d, st, fm, "notes.txt")

	ino, err := d.Lookup("notes.txt")
	if err != nil {
		t.Fatalf("Lookup(): unexpected err: %v", err)
	}
	defer ino.Close()

	if ino.Sector() != sector {
		t.Fatalf("Lookup(): wanted sector `%d`; found `%d`", sector, ino.Sector())
	}
}

func TestLookupMissing(t *testing.T) {
	d, _, _ := testDir(t)

	if _, err := d.Lookup("nope"); !errors.Is(err, NotFoundErr) {
		t.Fatalf("Lookup(): wanted `%v`; found `%v`", NotFoundErr, err)
	}
}

func TestAddDuplicate(t *testing.T) {
	d, st, fm := testDir(t)
	addFile(t, d, st, fm, "twice")

	if err := d.Add("twice", 99); !errors.Is(err, ExistsErr) {
		t.Fatalf("Add() duplicate: wanted `%v`; found `%v`", ExistsErr, err)
	}
}

func TestNameBounds(t *testing.T) {
	d, st, fm := testDir(t)

	// Exactly 14 bytes is legal; 15 is not.
	addFile(t, d, st, fm, "exactly14chars")

	if err := d.Add("fifteen15chars!", 99); !errors.Is(err, NameTooLongErr) {
		t.Fatalf("Add() long name: wanted `%v`; found `%v`", NameTooLongErr, err)
	}
	if err := d.Add("", 99); !errors.Is(err, BadNameErr) {
		t.Fatalf("Add() empty name: wanted `%v`; found `%v`", BadNameErr, err)
	}
	if err := d.Add("a/b", 99); !errors.Is(err, BadNameErr) {
		t.Fatalf("Add() name with slash: wanted `%v`; found `%v`", BadNameErr, err)
	}
}

func TestRemove(t *testing.T) {
	d, st, fm := testDir(t)
	addFile(t, d, st, fm, "doomed")

	if err := d.Remove("doomed"); err != nil {
		t.Fatalf("Remove(): unexpected err: %v", err)
	}
	if _, err := d.Lookup("doomed"); !errors.Is(err, NotFoundErr) {
		t.Fatalf("Lookup() after remove: wanted `%v`; found `%v`", NotFoundErr, err)
	}
	if err := d.Remove("doomed"); !errors.Is(err, NotFoundErr) {
		t.Fatalf("Remove() twice: wanted `%v`; found `%v`", NotFoundErr, err)
	}
}

func TestRemoveReusesSlot(t *testing.T) {
	d, st, fm := testDir(t)
	addFile(t, d, st, fm, "first")
	addFile(t, d, st, fm, "second")

	length := dirLength(t, d)

	if err := d.Remove("first"); err != nil {
		t.Fatalf("Remove(): unexpected err: %v", err)
	}
	addFile(t, d, st, fm, "third")

	// The new entry lands in the cleared slot; the directory didn't
	// grow.
	if got := dirLength(t, d); got != length {
		t.Fatalf("directory length: wanted `%d`; found `%d`", length, got)
	}
}

func TestGrowsPastInitialCapacity(t *testing.T) {
	d, st, fm := testDir(t)

	names := []string{
		"f00", "f01", "f02", "f03", "f04", "f05", "f06", "f07",
		"f08", "f09", "f10", "f11", "f12", "f13", "f14", "f15",
		"f16", "f17",
	}
	for _, name := range names {
		addFile(t, d, st, fm, name)
	}

	for _, name := range names {
		ino, err := d.Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(`%s`): unexpected err: %v", name, err)
		}
		ino.Close()
	}
}

func TestReadNextSkipsDots(t *testing.T) {
	d, st, fm := testDir(t)

	// Simulate a non-root directory's reserved entries.
	if err := d.Add(".", RootSector); err != nil {
		t.Fatalf("Add(`.`): unexpected err: %v", err)
	}
	if err := d.Add("..", RootSector); err != nil {
		t.Fatalf("Add(`..`): unexpected err: %v", err)
	}
	addFile(t, d, st, fm, "visible")

	var names []string
	for {
		name, ok, err := d.ReadNext()
		if err != nil {
			t.Fatalf("ReadNext(): unexpected err: %v", err)
		}
		if !ok {
			break
		}
		names = append(names, name)
	}

	if len(names) != 1 || names[0] != "visible" {
		t.Fatalf("ReadNext(): wanted [`visible`]; found `%v`", names)
	}
}

func TestEmpty(t *testing.T) {
	d, st, fm := testDir(t)

	if err := d.Add(".", RootSector); err != nil {
		t.Fatalf("Add(`.`): unexpected err: %v", err)
	}
	if err := d.Add("..", RootSector); err != nil {
		t.Fatalf("Add(`..`): unexpected err: %v", err)
	}

	empty, err := d.Empty()
	if err != nil {
		t.Fatalf("Empty(): unexpected err: %v", err)
	}
	if !empty {
		t.Fatalf("Empty(): wanted `true` with only dot entries; found `false`")
	}

	addFile(t, d, st, fm, "occupant")
	if empty, _ = d.Empty(); empty {
		t.Fatalf("Empty(): wanted `false` with an occupant; found `true`")
	}
}

func dirLength(t *testing.T, d *Dir) Byte {
	t.Helper()
	length, err := d.Inode().Length()
	if err != nil {
		t.Fatalf("Length(): unexpected err: %v", err)
	}
	return length
}
