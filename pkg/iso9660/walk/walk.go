// Package walk implements the ISO 9660 directory-enumeration algorithm: it
// reads every logical block belonging to a directory's extent, parses the
// child directory records it contains, and folds them into the
// deduplicated, RR-continuation-aware child list the mount procedure and
// the path resolver both read through.
package walk

import (
	"fmt"

	"github.com/bgrewell/archivefs/pkg/consts"
	"github.com/bgrewell/archivefs/pkg/iso9660/directory"
	"github.com/bgrewell/archivefs/pkg/iso9660/susp"
)

// SectorReader resolves a single 2048-byte logical block by its LBA. It is
// satisfied by a bytesource.Source-backed volume reader.
type SectorReader func(lba uint32) ([]byte, error)

// ExtentReader resolves size bytes starting offset bytes into the logical
// block lba — the shape susp.Parse needs to chase CE continuation areas.
type ExtentReader func(lba uint32, offset uint32, size uint32) ([]byte, error)

// Children walks every sector of the directory extent starting at lba for
// dataLength bytes, parsing each child directory record, and returns them
// in on-disk order with "."  and ".." and RE-marked (relocated-original)
// records removed and duplicate identifiers (the same name recorded more
// than once, keeping only the first occurrence) folded out. rockRidgeOffset
// is the SP skip count inherited from the volume root; joliet selects
// UCS-2 identifier decode.
func Children(lba uint32, dataLength uint32, joliet bool, rockRidgeOffset int, readSector SectorReader, readExtent susp.ExtentReader) ([]*directory.DirectoryRecord, error) {
	raw, err := readExtentSectors(lba, dataLength, readSector)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []*directory.DirectoryRecord

	sectorCount := int((dataLength + consts.ISO9660_SECTOR_SIZE - 1) / consts.ISO9660_SECTOR_SIZE)
	for sector := 0; sector < sectorCount; sector++ {
		base := sector * consts.ISO9660_SECTOR_SIZE
		end := base + consts.ISO9660_SECTOR_SIZE
		if end > len(raw) {
			end = len(raw)
		}
		pos := base
		for pos < end {
			length := int(raw[pos])
			if length == 0 {
				// Zero-byte padding to the end of the sector: the next
				// record, if any, starts at the following sector.
				break
			}
			if pos+length > end {
				return nil, fmt.Errorf("walk: directory record at byte %d overruns its sector", pos)
			}

			dr := &directory.DirectoryRecord{Joliet: joliet}
			if err := dr.Unmarshal(raw[pos : pos+length]); err != nil {
				return nil, fmt.Errorf("walk: unmarshal directory record at byte %d: %w", pos, err)
			}
			dr.ParseRockRidge(rockRidgeOffset, readExtent)
			pos += length

			if dr.IsSpecial() {
				continue
			}
			if dr.RockRidge.Relocated {
				continue
			}

			key := dr.FileIdentifier
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, dr)
		}
	}

	return out, nil
}

// DotRecord parses and returns the "." record for a directory extent —
// the sole carrier of the SP/ER entries that establish whether Rock Ridge
// is active and, if so, how many bytes of system-use to skip on every
// other record in the volume.
func DotRecord(lba uint32, readSector SectorReader) (*directory.DirectoryRecord, error) {
	sector, err := readSector(lba)
	if err != nil {
		return nil, fmt.Errorf("walk: read dot record sector: %w", err)
	}
	if len(sector) < 1 {
		return nil, fmt.Errorf("walk: empty root directory sector")
	}
	length := int(sector[0])
	if length < 1 || length > len(sector) {
		return nil, fmt.Errorf("walk: malformed dot record length %d", length)
	}
	dr := &directory.DirectoryRecord{}
	if err := dr.Unmarshal(sector[:length]); err != nil {
		return nil, fmt.Errorf("walk: unmarshal dot record: %w", err)
	}
	return dr, nil
}

func readExtentSectors(lba uint32, dataLength uint32, readSector SectorReader) ([]byte, error) {
	sectorCount := int((dataLength + consts.ISO9660_SECTOR_SIZE - 1) / consts.ISO9660_SECTOR_SIZE)
	out := make([]byte, 0, sectorCount*consts.ISO9660_SECTOR_SIZE)
	for i := 0; i < sectorCount; i++ {
		sector, err := readSector(lba + uint32(i))
		if err != nil {
			return nil, fmt.Errorf("walk: read sector %d: %w", lba+uint32(i), err)
		}
		out = append(out, sector...)
	}
	return out, nil
}
