package filesystem

import (
	"fmt"

	"github.com/weberc2/sectorfs/pkg/dir"
	"github.com/weberc2/sectorfs/pkg/file"
	. "github.com/weberc2/sectorfs/pkg/types"
)

// Session is one caller's view of the filesystem: the shared FileSystem
// plus a private current directory for relative path resolution.
// Sessions start at the root.
type Session struct {
	fs  *FileSystem
	cwd Sector
}

func (fs *FileSystem) NewSession() *Session {
	return &Session{fs: fs, cwd: RootSector}
}

// Cwd is the current directory's inode sector.
func (s *Session) Cwd() Sector { return s.cwd }

// Chdir re-points the session's current directory.
func (s *Session) Chdir(path string) error {
	d, err := s.fs.resolveDir(path, s.cwd)
	if err != nil {
		return fmt.Errorf("changing directory to `%s`: %w", path, err)
	}
	s.cwd = d.Inode().Sector()
	if err := d.Close(); err != nil {
		return fmt.Errorf("changing directory to `%s`: %w", path, err)
	}
	return nil
}

func (s *Session) Create(path string, initialSize Byte) error {
	return s.fs.create(path, initialSize, false, s.cwd)
}

func (s *Session) Mkdir(path string) error {
	return s.fs.create(path, 0, true, s.cwd)
}

func (s *Session) Open(path string) (*file.File, error) {
	return s.fs.open(path, s.cwd)
}

func (s *Session) Remove(path string) error {
	return s.fs.remove(path, s.cwd)
}

// Readdir yields the next entry name from an open directory handle,
// skipping `.` and `..`. The handle's position carries the iteration
// cursor, so interleaved calls over distinct handles don't interfere.
func (s *Session) Readdir(f *file.File) (string, bool, error) {
	d, err := dir.Open(f.Inode().Reopen())
	if err != nil {
		f.Inode().Close()
		return "", false, fmt.Errorf("reading directory: %w", err)
	}
	defer d.Close()

	d.SetPos(f.Tell())
	name, ok, err := d.ReadNext()
	if err != nil {
		return "", false, fmt.Errorf("reading directory: %w", err)
	}
	f.Seek(d.Pos())
	return name, ok, nil
}
