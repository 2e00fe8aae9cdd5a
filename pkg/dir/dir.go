package dir

import (
	"fmt"
	"strings"

	"github.com/weberc2/sectorfs/pkg/encode"
	"github.com/weberc2/sectorfs/pkg/inode"
	. "github.com/weberc2/sectorfs/pkg/types"
)

const (
	NotFoundErr    ConstError = "no such entry"
	ExistsErr      ConstError = "entry already exists"
	BadNameErr     ConstError = "invalid entry name"
	NameTooLongErr ConstError = "entry name too long"
	NotADirErr     ConstError = "not a directory"
)

// Dir wraps an open directory inode together with a read cursor for
// iteration. The cursor belongs to whoever owns the handle; two handles
// over the same inode iterate independently.
type Dir struct {
	ino *inode.Inode
	pos Byte
}

// Create builds an on-disk directory inode at `sector` sized for
// `entryCount` entries. The caller populates `.` and `..` afterwards;
// the root directory never gets them.
func Create(st *inode.Store, sector Sector, entryCount int) error {
	if err := st.Create(
		sector,
		Byte(entryCount)*DirEntrySize,
		true,
	); err != nil {
		return fmt.Errorf(
			"creating directory at sector `%d` for `%d` entries: %w",
			sector,
			entryCount,
			err,
		)
	}
	return nil
}

// Open wraps an open inode as a directory handle. The inode must be a
// directory; the handle shares (not reopens) the inode.
func Open(ino *inode.Inode) (*Dir, error) {
	if ino == nil {
		return nil, fmt.Errorf("opening directory: %w", NotFoundErr)
	}
	if !ino.IsDir() {
		return nil, fmt.Errorf(
			"opening inode `%d` as directory: %w",
			ino.Sector(),
			NotADirErr,
		)
	}
	return &Dir{ino: ino}, nil
}

// Reopen returns an independent handle over the same directory, bumping
// the inode's open count.
func (d *Dir) Reopen() *Dir {
	return &Dir{ino: d.ino.Reopen()}
}

func (d *Dir) Inode() *inode.Inode { return d.ino }

func (d *Dir) Close() error {
	if d == nil {
		return nil
	}
	return d.ino.Close()
}

// Pos and SetPos expose the readdir cursor so callers that persist
// iteration state across calls (file descriptors) can carry it.
func (d *Dir) Pos() Byte       { return d.pos }
func (d *Dir) SetPos(pos Byte) { d.pos = pos }

// Lookup scans for an in-use entry named `name` and opens its inode.
func (d *Dir) Lookup(name string) (*inode.Inode, error) {
	entry, _, found, err := d.scan(name)
	if err != nil {
		return nil, fmt.Errorf(
			"looking up `%s` in directory `%d`: %w",
			name,
			d.ino.Sector(),
			err,
		)
	}
	if !found {
		return nil, fmt.Errorf(
			"looking up `%s` in directory `%d`: %w",
			name,
			d.ino.Sector(),
			NotFoundErr,
		)
	}

	ino, err := d.ino.Store().Open(entry.Sector)
	if err != nil {
		return nil, fmt.Errorf(
			"looking up `%s` in directory `%d`: %w",
			name,
			d.ino.Sector(),
			err,
		)
	}
	return ino, nil
}

// Add binds `name` to the inode at `sector`, reusing the first free slot
// or appending (growing the directory) when every slot is in use.
func (d *Dir) Add(name string, sector Sector) error {
	if err := checkName(name); err != nil {
		return fmt.Errorf(
			"adding `%s` to directory `%d`: %w",
			name,
			d.ino.Sector(),
			err,
		)
	}

	_, freeOffset, found, err := d.scan(name)
	if err != nil {
		return fmt.Errorf(
			"adding `%s` to directory `%d`: %w",
			name,
			d.ino.Sector(),
			err,
		)
	}
	if found {
		return fmt.Errorf(
			"adding `%s` to directory `%d`: %w",
			name,
			d.ino.Sector(),
			ExistsErr,
		)
	}

	entry := DirEntry{InUse: true, Sector: sector, Name: name}
	if err := d.writeEntry(freeOffset, &entry); err != nil {
		return fmt.Errorf(
			"adding `%s` to directory `%d`: %w",
			name,
			d.ino.Sector(),
			err,
		)
	}
	return nil
}

// Remove clears the named entry's in-use flag (entries are never
// compacted) and marks the referent inode for deletion on last close.
func (d *Dir) Remove(name string) error {
	entry, offset, found, err := d.scan(name)
	if err != nil {
		return fmt.Errorf(
			"removing `%s` from directory `%d`: %w",
			name,
			d.ino.Sector(),
			err,
		)
	}
	if !found {
		return fmt.Errorf(
			"removing `%s` from directory `%d`: %w",
			name,
			d.ino.Sector(),
			NotFoundErr,
		)
	}

	ino, err := d.ino.Store().Open(entry.Sector)
	if err != nil {
		return fmt.Errorf(
			"removing `%s` from directory `%d`: %w",
			name,
			d.ino.Sector(),
			err,
		)
	}

	entry.InUse = false
	if err := d.writeEntry(offset, &entry); err != nil {
		ino.Close()
		return fmt.Errorf(
			"removing `%s` from directory `%d`: %w",
			name,
			d.ino.Sector(),
			err,
		)
	}

	ino.Remove()
	if err := ino.Close(); err != nil {
		return fmt.Errorf(
			"removing `%s` from directory `%d`: %w",
			name,
			d.ino.Sector(),
			err,
		)
	}
	return nil
}

// ReadNext advances the cursor to the next in-use entry, skipping the
// reserved `.` and `..` entries. The second return is false once the
// directory is exhausted.
func (d *Dir) ReadNext() (string, bool, error) {
	for {
		var entry DirEntry
		ok, err := d.readEntry(d.pos, &entry)
		if err != nil {
			return "", false, fmt.Errorf(
				"reading directory `%d` at offset `%d`: %w",
				d.ino.Sector(),
				d.pos,
				err,
			)
		}
		if !ok {
			return "", false, nil
		}
		d.pos += DirEntrySize

		if !entry.InUse || entry.Name == "." || entry.Name == ".." {
			continue
		}
		return entry.Name, true, nil
	}
}

// Empty reports whether the directory holds no in-use entries besides
// `.` and `..`.
func (d *Dir) Empty() (bool, error) {
	for offset := Byte(0); ; offset += DirEntrySize {
		var entry DirEntry
		ok, err := d.readEntry(offset, &entry)
		if err != nil {
			return false, fmt.Errorf(
				"checking directory `%d` for entries: %w",
				d.ino.Sector(),
				err,
			)
		}
		if !ok {
			return true, nil
		}
		if entry.InUse && entry.Name != "." && entry.Name != ".." {
			return false, nil
		}
	}
}

// scan walks every entry. When an in-use entry named `name` turns up it
// is returned with its offset and found=true; otherwise freeOffset is
// the first free slot, or the end of the directory if every slot is in
// use.
func (d *Dir) scan(name string) (entry DirEntry, freeOffset Byte, found bool, err error) {
	offset := Byte(0)
	freeOffset = -1
	for {
		var e DirEntry
		ok, err := d.readEntry(offset, &e)
		if err != nil {
			return DirEntry{}, 0, false, err
		}
		if !ok {
			break
		}
		if e.InUse && e.Name == name {
			return e, offset, true, nil
		}
		if !e.InUse && freeOffset < 0 {
			freeOffset = offset
		}
		offset += DirEntrySize
	}
	if freeOffset < 0 {
		freeOffset = offset
	}
	return DirEntry{}, freeOffset, false, nil
}

// readEntry decodes the entry at `offset`; ok=false past the end.
func (d *Dir) readEntry(offset Byte, entry *DirEntry) (bool, error) {
	var buf [DirEntrySize]byte
	n, err := d.ino.ReadAt(buf[:], offset)
	if err != nil {
		return false, err
	}
	if n < DirEntrySize {
		return false, nil
	}
	encode.DecodeDirEntry(entry, &buf)
	return true, nil
}

// writeEntry encodes the entry at `offset`, growing the directory when
// appending past the end.
func (d *Dir) writeEntry(offset Byte, entry *DirEntry) error {
	var buf [DirEntrySize]byte
	encode.EncodeDirEntry(entry, &buf)
	n, err := d.ino.WriteAt(buf[:], offset)
	if err != nil {
		return err
	}
	if n < DirEntrySize {
		return fmt.Errorf("short entry write (`%d` of `%d` bytes)", n, DirEntrySize)
	}
	return nil
}

func checkName(name string) error {
	if name == "" || strings.Contains(name, "/") {
		return BadNameErr
	}
	if len(name) > NameMax {
		return NameTooLongErr
	}
	return nil
}
