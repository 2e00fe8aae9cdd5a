package file

import (
	"fmt"

	"github.com/weberc2/sectorfs/pkg/inode"
	. "github.com/weberc2/sectorfs/pkg/types"
)

// File is an open-file handle: an inode plus a position. Handles over
// the same inode maintain independent positions. A handle may wrap a
// directory inode (opening "/" yields one); directory iteration shares
// the same position field as its cursor.
type File struct {
	ino       *inode.Inode
	pos       Byte
	denyWrite bool
}

// Open wraps an open inode in a fresh handle positioned at 0. Ownership
// of the opener's reference transfers to the handle.
func Open(ino *inode.Inode) (*File, error) {
	if ino == nil {
		return nil, fmt.Errorf("opening file: %w", NilInodeErr)
	}
	return &File{ino: ino}, nil
}

// Reopen returns an independent handle over the same inode.
func (f *File) Reopen() (*File, error) {
	return Open(f.ino.Reopen())
}

func (f *File) Inode() *inode.Inode { return f.ino }

// Inumber is the stable identifier of the underlying inode.
func (f *File) Inumber() Sector { return f.ino.Sector() }

func (f *File) IsDir() bool { return f.ino.IsDir() }

func (f *File) Length() (Byte, error) { return f.ino.Length() }

// Read copies up to `len(p)` bytes from the current position, advancing
// it by the number of bytes read.
func (f *File) Read(p []byte) (Byte, error) {
	n, err := f.ino.ReadAt(p, f.pos)
	f.pos += n
	return n, err
}

// ReadAt reads from `offset` without touching the position.
func (f *File) ReadAt(p []byte, offset Byte) (Byte, error) {
	return f.ino.ReadAt(p, offset)
}

// Write copies `p` at the current position, advancing it by the number
// of bytes written.
func (f *File) Write(p []byte) (Byte, error) {
	n, err := f.ino.WriteAt(p, f.pos)
	f.pos += n
	return n, err
}

// WriteAt writes at `offset` without touching the position.
func (f *File) WriteAt(p []byte, offset Byte) (Byte, error) {
	return f.ino.WriteAt(p, offset)
}

// Seek sets the position. Seeking past the end is legal; the next write
// extends the file.
func (f *File) Seek(pos Byte) {
	f.pos = pos
}

// Tell reports the position.
func (f *File) Tell() Byte { return f.pos }

// Deny pins the file against writes (for example while its image
// executes) until Allow or Close.
func (f *File) Deny() {
	if !f.denyWrite {
		f.denyWrite = true
		f.ino.DenyWrite()
	}
}

// Allow lifts this handle's pin.
func (f *File) Allow() {
	if f.denyWrite {
		f.denyWrite = false
		f.ino.AllowWrite()
	}
}

// Close releases the handle's pin (if any) and drops its reference to
// the inode.
func (f *File) Close() error {
	if f == nil {
		return nil
	}
	f.Allow()
	return f.ino.Close()
}

const (
	NilInodeErr ConstError = "no inode"
)
