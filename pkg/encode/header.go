package encode

import (
	"fmt"

	. "github.com/weberc2/sectorfs/pkg/types"
)

// EncodeVolumeHeader lays the volume header out across sector 0's image.
func EncodeVolumeHeader(header *VolumeHeader, b *[SectorSize]byte) {
	p := b[:]

	putU32(p, headerMagicStart, HeaderMagic)
	putU32(p, headerVersionStart, header.Version)
	putSector(p, headerSectorsStart, header.Sectors)
	copy(p[headerIDStart:headerIDEnd], header.ID[:])
}

// DecodeVolumeHeader reads the header back out, validating the magic.
func DecodeVolumeHeader(header *VolumeHeader, b *[SectorSize]byte) error {
	p := b[:]

	if magic := getU32(p, headerMagicStart); magic != HeaderMagic {
		return fmt.Errorf(
			"decoding volume header: magic `%#x`: %w",
			magic,
			BadMagicErr,
		)
	}

	header.Version = getU32(p, headerVersionStart)
	header.Sectors = getSector(p, headerSectorsStart)
	copy(header.ID[:], p[headerIDStart:headerIDEnd])
	return nil
}

const (
	BadMagicErr ConstError = "not a formatted volume"
)

const (
	headerMagicStart = 0
	headerMagicSize  = 4
	headerMagicEnd   = headerMagicStart + headerMagicSize

	headerVersionStart = headerMagicEnd
	headerVersionSize  = 4
	headerVersionEnd   = headerVersionStart + headerVersionSize

	headerSectorsStart = headerVersionEnd
	headerSectorsSize  = 4
	headerSectorsEnd   = headerSectorsStart + headerSectorsSize

	headerIDStart = headerSectorsEnd
	headerIDSize  = 16
	headerIDEnd   = headerIDStart + headerIDSize
)
