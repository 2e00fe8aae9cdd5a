package filesystem

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/weberc2/sectorfs/pkg/dir"
	"github.com/weberc2/sectorfs/pkg/file"
	"github.com/weberc2/sectorfs/pkg/inode"
	. "github.com/weberc2/sectorfs/pkg/types"
)

const (
	IsRootErr   ConstError = "cannot remove the root directory"
	IsCwdErr    ConstError = "cannot remove the current directory"
	NotEmptyErr ConstError = "directory not empty"
	BusyErr     ConstError = "directory is open elsewhere"
)

// Create makes a file (or, via Mkdir, a directory) at `path` with
// `initialSize` bytes of zeroed data, resolving relative paths against
// the root.
func (fs *FileSystem) Create(path string, initialSize Byte) error {
	return fs.create(path, initialSize, false, RootSector)
}

// Mkdir makes a directory at `path`, populating its `.` and `..`
// entries.
func (fs *FileSystem) Mkdir(path string) error {
	return fs.create(path, 0, true, RootSector)
}

// Open opens `path` as a file handle; "/" opens the root directory.
func (fs *FileSystem) Open(path string) (*file.File, error) {
	return fs.open(path, RootSector)
}

// Remove deletes the file or empty directory at `path`.
func (fs *FileSystem) Remove(path string) error {
	return fs.remove(path, RootSector)
}

func (fs *FileSystem) create(path string, initialSize Byte, isDir bool, cwd Sector) error {
	parent, name, err := fs.resolve(path, cwd)
	if err != nil {
		return fmt.Errorf("creating `%s`: %w", path, err)
	}
	defer parent.Close()

	if name == "" {
		return fmt.Errorf("creating `%s`: %w", path, dir.ExistsErr)
	}

	sector, ok := fs.freeMap.Allocate()
	if !ok {
		return fmt.Errorf("creating `%s`: %w", path, inode.OutOfSpaceErr)
	}

	if isDir {
		err = dir.Create(fs.inodes, sector, 2)
	} else {
		err = fs.inodes.Create(sector, initialSize, false)
	}
	if err != nil {
		fs.freeMap.Release(sector)
		return fmt.Errorf("creating `%s`: %w", path, err)
	}

	if err := parent.Add(name, sector); err != nil {
		fs.freeMap.Release(sector)
		return fmt.Errorf("creating `%s`: %w", path, err)
	}

	if isDir {
		if err := fs.initDirEntries(sector, parent); err != nil {
			parent.Remove(name)
			return fmt.Errorf("creating `%s`: %w", path, err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"path":   path,
		"sector": sector,
		"dir":    isDir,
	}).Debug("created")
	return nil
}

// initDirEntries writes the `.` and `..` entries every non-root
// directory starts with.
func (fs *FileSystem) initDirEntries(sector Sector, parent *dir.Dir) error {
	ino, err := fs.inodes.Open(sector)
	if err != nil {
		return err
	}
	d, err := dir.Open(ino)
	if err != nil {
		ino.Close()
		return err
	}
	defer d.Close()

	if err := d.Add(".", sector); err != nil {
		return err
	}
	return d.Add("..", parent.Inode().Sector())
}

func (fs *FileSystem) open(path string, cwd Sector) (*file.File, error) {
	if path == "/" {
		return fs.Root()
	}

	parent, name, err := fs.resolve(path, cwd)
	if err != nil {
		return nil, fmt.Errorf("opening `%s`: %w", path, err)
	}
	defer parent.Close()

	var ino *inode.Inode
	if name == "" {
		ino = parent.Inode().Reopen()
	} else if ino, err = parent.Lookup(name); err != nil {
		return nil, fmt.Errorf("opening `%s`: %w", path, err)
	}

	f, err := file.Open(ino)
	if err != nil {
		ino.Close()
		return nil, fmt.Errorf("opening `%s`: %w", path, err)
	}
	return f, nil
}

func (fs *FileSystem) remove(path string, cwd Sector) error {
	parent, name, err := fs.resolve(path, cwd)
	if err != nil {
		return fmt.Errorf("removing `%s`: %w", path, err)
	}
	defer parent.Close()

	if name == "" {
		return fmt.Errorf("removing `%s`: %w", path, IsRootErr)
	}

	child, err := parent.Lookup(name)
	if err != nil {
		return fmt.Errorf("removing `%s`: %w", path, err)
	}

	if child.Sector() == RootSector {
		child.Close()
		return fmt.Errorf("removing `%s`: %w", path, IsRootErr)
	}
	if child.Sector() == cwd {
		child.Close()
		return fmt.Errorf("removing `%s`: %w", path, IsCwdErr)
	}

	if child.IsDir() {
		if err := fs.removeDir(path, name, parent, child); err != nil {
			return err
		}
	} else {
		if err := parent.Remove(name); err != nil {
			child.Close()
			return fmt.Errorf("removing `%s`: %w", path, err)
		}
		if err := child.Close(); err != nil {
			return fmt.Errorf("removing `%s`: %w", path, err)
		}
	}

	logrus.WithFields(logrus.Fields{"path": path}).Debug("removed")
	return nil
}

// removeDir deletes a directory: it must be empty and must have no
// opener besides this removal check (the check itself accounts for the
// single open count it holds).
func (fs *FileSystem) removeDir(path, name string, parent *dir.Dir, child *inode.Inode) error {
	d, err := dir.Open(child)
	if err != nil {
		child.Close()
		return fmt.Errorf("removing `%s`: %w", path, err)
	}

	empty, err := d.Empty()
	if err != nil {
		d.Close()
		return fmt.Errorf("removing `%s`: %w", path, err)
	}
	if !empty {
		d.Close()
		return fmt.Errorf("removing `%s`: %w", path, NotEmptyErr)
	}

	if child.OpenCount() > 1 {
		d.Close()
		return fmt.Errorf("removing `%s`: %w", path, BusyErr)
	}

	if err := parent.Remove(name); err != nil {
		d.Close()
		return fmt.Errorf("removing `%s`: %w", path, err)
	}
	if err := d.Close(); err != nil {
		return fmt.Errorf("removing `%s`: %w", path, err)
	}
	return nil
}
