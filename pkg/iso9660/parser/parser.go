// Package parser reads the ISO 9660 volume descriptor set: the fixed
// sequence of 2048-byte descriptors starting at logical sector 16 that
// carries the boot record, primary volume descriptor, any supplementary
// (Joliet) volume descriptors, and the set terminator. Directory-tree
// traversal lives in pkg/iso9660/walk; this package only exposes the
// descriptors themselves.
package parser

import (
	"errors"

	"github.com/bgrewell/archivefs/pkg/consts"
	"github.com/bgrewell/archivefs/pkg/iso9660/descriptor"
	"io"
)

func NewParser(r io.ReaderAt) *Parser {
	return &Parser{r: r}
}

type Parser struct {
	r io.ReaderAt
}

func (p *Parser) readSector(sector int64) ([consts.ISO9660_SECTOR_SIZE]byte, error) {
	var buf [consts.ISO9660_SECTOR_SIZE]byte
	n, err := p.r.ReadAt(buf[:], sector*consts.ISO9660_SECTOR_SIZE)
	if err != nil {
		return buf, err
	}
	if n != len(buf) {
		return buf, errors.New("failed to read full sector")
	}
	return buf, nil
}

func readHeader(buf [consts.ISO9660_SECTOR_SIZE]byte) (descriptor.VolumeDescriptorHeader, error) {
	header := descriptor.VolumeDescriptorHeader{}
	if err := header.Unmarshal([7]byte(buf[:7])); err != nil {
		return header, err
	}
	if string(buf[1:6]) != consts.ISO9660_STD_IDENTIFIER {
		return header, errors.New("invalid ISO9660 signature")
	}
	return header, nil
}

// GetBootRecord scans the volume descriptor set for a Boot Record (type 0).
func (p *Parser) GetBootRecord() (*descriptor.BootRecordDescriptor, error) {
	sector := int64(consts.ISO9660_SYSTEM_AREA_SECTORS)
	for {
		buf, err := p.readSector(sector)
		if err != nil {
			return nil, err
		}
		header, err := readHeader(buf)
		if err != nil {
			return nil, err
		}
		if header.VolumeDescriptorType == descriptor.TYPE_TERMINATOR_DESCRIPTOR {
			return nil, errors.New("no boot record found in the volume descriptor set")
		}
		if header.VolumeDescriptorType == descriptor.TYPE_BOOT_RECORD {
			bootRecord := &descriptor.BootRecordDescriptor{VolumeDescriptorHeader: header}
			if err := bootRecord.Unmarshal(buf); err != nil {
				return nil, err
			}
			return bootRecord, nil
		}
		sector++
	}
}

// GetPrimaryVolumeDescriptor scans the volume descriptor set for the
// Primary Volume Descriptor (type 1), which every ISO 9660 image carries
// exactly once.
func (p *Parser) GetPrimaryVolumeDescriptor() (*descriptor.PrimaryVolumeDescriptor, error) {
	sector := int64(consts.ISO9660_SYSTEM_AREA_SECTORS)
	for {
		buf, err := p.readSector(sector)
		if err != nil {
			return nil, err
		}
		header, err := readHeader(buf)
		if err != nil {
			return nil, err
		}
		if header.VolumeDescriptorType == descriptor.TYPE_TERMINATOR_DESCRIPTOR {
			return nil, errors.New("no primary volume descriptor found in the volume descriptor set")
		}
		if header.VolumeDescriptorType == descriptor.TYPE_PRIMARY_DESCRIPTOR {
			pvd := &descriptor.PrimaryVolumeDescriptor{VolumeDescriptorHeader: header}
			if err := pvd.Unmarshal(buf); err != nil {
				return nil, err
			}
			return pvd, nil
		}
		sector++
	}
}

// GetSupplementaryVolumeDescriptors scans the volume descriptor set for
// every Supplementary Volume Descriptor (type 2), one of which is Joliet
// when its escape sequence names a UCS-2 level.
func (p *Parser) GetSupplementaryVolumeDescriptors() ([]*descriptor.SupplementaryVolumeDescriptor, error) {
	sector := int64(consts.ISO9660_SYSTEM_AREA_SECTORS)
	var svds []*descriptor.SupplementaryVolumeDescriptor
	for {
		buf, err := p.readSector(sector)
		if err != nil {
			return nil, err
		}
		header, err := readHeader(buf)
		if err != nil {
			return nil, err
		}
		if header.VolumeDescriptorType == descriptor.TYPE_TERMINATOR_DESCRIPTOR {
			return svds, nil
		}
		if header.VolumeDescriptorType == descriptor.TYPE_SUPPLEMENTARY_DESCRIPTOR {
			svd := &descriptor.SupplementaryVolumeDescriptor{VolumeDescriptorHeader: header}
			if err := svd.Unmarshal(buf); err != nil {
				return nil, err
			}
			svds = append(svds, svd)
		}
		sector++
	}
}

// GetVolumePartitionDescriptors scans the volume descriptor set for every
// Volume Partition Descriptor (type 3). These are rare in practice - most
// ISO 9660 images carry none - so an empty, nil-error result is normal.
func (p *Parser) GetVolumePartitionDescriptors() ([]*descriptor.VolumePartitionDescriptor, error) {
	sector := int64(consts.ISO9660_SYSTEM_AREA_SECTORS)
	var vpds []*descriptor.VolumePartitionDescriptor
	for {
		buf, err := p.readSector(sector)
		if err != nil {
			return nil, err
		}
		header, err := readHeader(buf)
		if err != nil {
			return nil, err
		}
		if header.VolumeDescriptorType == descriptor.TYPE_TERMINATOR_DESCRIPTOR {
			return vpds, nil
		}
		if header.VolumeDescriptorType == descriptor.TYPE_PARTITION_DESCRIPTOR {
			vpd := &descriptor.VolumePartitionDescriptor{VolumeDescriptorHeader: header}
			if err := vpd.Unmarshal(buf); err != nil {
				return nil, err
			}
			vpds = append(vpds, vpd)
		}
		sector++
	}
}

// GetVolumeDescriptorSet bundles the whole descriptor set - boot record,
// primary descriptor, partition descriptors, supplementary descriptors, and
// the terminator - into a single value for callers that want the complete
// picture rather than one descriptor type at a time.
func (p *Parser) GetVolumeDescriptorSet() (*descriptor.VolumeDescriptorSet, error) {
	set := &descriptor.VolumeDescriptorSet{}

	if boot, err := p.GetBootRecord(); err == nil {
		set.Boot = boot
	}

	pvd, err := p.GetPrimaryVolumeDescriptor()
	if err != nil {
		return nil, err
	}
	set.Primary = pvd

	partitions, err := p.GetVolumePartitionDescriptors()
	if err != nil {
		return nil, err
	}
	set.Partition = partitions

	svds, err := p.GetSupplementaryVolumeDescriptors()
	if err != nil {
		return nil, err
	}
	set.Supplementary = svds

	sector := int64(consts.ISO9660_SYSTEM_AREA_SECTORS)
	for {
		buf, err := p.readSector(sector)
		if err != nil {
			return nil, err
		}
		header, err := readHeader(buf)
		if err != nil {
			return nil, err
		}
		if header.VolumeDescriptorType == descriptor.TYPE_TERMINATOR_DESCRIPTOR {
			term := &descriptor.VolumeDescriptorSetTerminator{VolumeDescriptorHeader: header}
			set.Terminator = term
			return set, nil
		}
		sector++
	}
}

// ReadSector exposes the raw descriptor-set sector reader to callers (the
// mount procedure's directory walker) that need to resolve arbitrary
// logical blocks by LBA rather than by descriptor-set position.
func (p *Parser) ReadSector(lba uint32) ([]byte, error) {
	buf, err := p.readSector(int64(lba))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(buf))
	copy(out, buf[:])
	return out, nil
}

// ReadExtent resolves size bytes starting offset bytes into logical block
// lba, for SUSP CE continuation-area resolution.
func (p *Parser) ReadExtent(lba uint32, offset uint32, size uint32) ([]byte, error) {
	buf, err := p.ReadSector(lba)
	if err != nil {
		return nil, err
	}
	if int(offset+size) > len(buf) {
		return nil, errors.New("extent read overruns logical block")
	}
	return buf[offset : offset+size], nil
}
