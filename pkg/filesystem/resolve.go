package filesystem

import (
	"fmt"
	"strings"

	"github.com/weberc2/sectorfs/pkg/dir"
	. "github.com/weberc2/sectorfs/pkg/types"
)

const (
	EmptyPathErr ConstError = "empty path"
	NotADirErr   ConstError = "not a directory"
)

// resolve walks `path` one component at a time, starting at the root for
// absolute paths (or when the caller has no current directory) and at
// `cwd` otherwise. It returns the containing directory, open, plus the
// final component's name. Resolving exactly "/" (or a path that reduces
// to the starting directory) returns that directory with an empty name.
//
// Every non-final component must name an existing, non-removed
// directory. `.` and `..` need no special handling; they resolve through
// the two entries every non-root directory is born with. Empty
// components and trailing slashes are tolerated.
func (fs *FileSystem) resolve(path string, cwd Sector) (*dir.Dir, string, error) {
	if path == "" {
		return nil, "", fmt.Errorf("resolving path: %w", EmptyPathErr)
	}

	start := RootSector
	if path[0] != '/' && cwd != SectorNil {
		start = cwd
	}

	var components []string
	for _, c := range strings.Split(path, "/") {
		if c != "" {
			components = append(components, c)
		}
	}

	ino, err := fs.inodes.Open(start)
	if err != nil {
		return nil, "", fmt.Errorf("resolving `%s`: %w", path, err)
	}
	d, err := dir.Open(ino)
	if err != nil {
		ino.Close()
		return nil, "", fmt.Errorf("resolving `%s`: %w", path, err)
	}

	if len(components) == 0 {
		return d, "", nil
	}

	for _, name := range components[:len(components)-1] {
		next, err := d.Lookup(name)
		if err != nil {
			d.Close()
			return nil, "", fmt.Errorf("resolving `%s`: %w", path, err)
		}
		if !next.IsDir() || next.Removed() {
			next.Close()
			d.Close()
			return nil, "", fmt.Errorf(
				"resolving `%s`: component `%s`: %w",
				path,
				name,
				NotADirErr,
			)
		}

		d.Close()
		if d, err = dir.Open(next); err != nil {
			next.Close()
			return nil, "", fmt.Errorf("resolving `%s`: %w", path, err)
		}
	}

	return d, components[len(components)-1], nil
}

// resolveDir resolves `path` all the way down and requires the result to
// be a directory; the directory is returned open.
func (fs *FileSystem) resolveDir(path string, cwd Sector) (*dir.Dir, error) {
	parent, name, err := fs.resolve(path, cwd)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return parent, nil
	}
	defer parent.Close()

	ino, err := parent.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("resolving `%s` as directory: %w", path, err)
	}
	if !ino.IsDir() || ino.Removed() {
		ino.Close()
		return nil, fmt.Errorf("resolving `%s` as directory: %w", path, NotADirErr)
	}

	d, err := dir.Open(ino)
	if err != nil {
		ino.Close()
		return nil, fmt.Errorf("resolving `%s` as directory: %w", path, err)
	}
	return d, nil
}
