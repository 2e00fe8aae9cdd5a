package device

import (
	"fmt"
	"os"

	. "github.com/weberc2/sectorfs/pkg/types"
)

// FileDevice is a block device backed by an ordinary file (a disk image).
type FileDevice struct {
	file    *os.File
	sectors Sector
}

// OpenFileDevice opens an existing disk image and derives the sector count
// from its size.
func OpenFileDevice(path string) (*FileDevice, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening image `%s`: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("opening image `%s`: %w", path, err)
	}
	return &FileDevice{
		file:    file,
		sectors: Sector(Byte(info.Size()) / SectorSize),
	}, nil
}

// CreateFileDevice creates (or truncates) a disk image sized for `sectors`
// sectors.
func CreateFileDevice(path string, sectors Sector) (*FileDevice, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating image `%s`: %w", path, err)
	}
	if err := file.Truncate(int64(Byte(sectors) * SectorSize)); err != nil {
		file.Close()
		return nil, fmt.Errorf("creating image `%s`: %w", path, err)
	}
	return &FileDevice{file: file, sectors: sectors}, nil
}

func (dev *FileDevice) ReadSector(sector Sector, buffer []byte) error {
	if err := dev.check(sector, buffer); err != nil {
		return fmt.Errorf(
			"reading sector `%d` from image `%s`: %w",
			sector,
			dev.file.Name(),
			err,
		)
	}
	if _, err := dev.file.ReadAt(
		buffer,
		int64(Byte(sector)*SectorSize),
	); err != nil {
		return fmt.Errorf(
			"reading sector `%d` from image `%s`: %w",
			sector,
			dev.file.Name(),
			err,
		)
	}
	return nil
}

func (dev *FileDevice) WriteSector(sector Sector, buffer []byte) error {
	if err := dev.check(sector, buffer); err != nil {
		return fmt.Errorf(
			"writing sector `%d` to image `%s`: %w",
			sector,
			dev.file.Name(),
			err,
		)
	}
	if _, err := dev.file.WriteAt(
		buffer,
		int64(Byte(sector)*SectorSize),
	); err != nil {
		return fmt.Errorf(
			"writing sector `%d` to image `%s`: %w",
			sector,
			dev.file.Name(),
			err,
		)
	}
	return nil
}

func (dev *FileDevice) SectorCount() Sector { return dev.sectors }

func (dev *FileDevice) Close() error { return dev.file.Close() }

func (dev *FileDevice) check(sector Sector, buffer []byte) error {
	if sector >= dev.sectors {
		return OutOfRangeErr
	}
	if Byte(len(buffer)) != SectorSize {
		return ShortBufErr
	}
	return nil
}

var _ Device = (*FileDevice)(nil)
