package descriptor

import (
	"fmt"
	"strings"
	"time"

	"github.com/bgrewell/archivefs/pkg/consts"
	"github.com/bgrewell/archivefs/pkg/iso9660/directory"
	"github.com/bgrewell/archivefs/pkg/iso9660/encoding"
	"github.com/bgrewell/archivefs/pkg/logging"
)

const (
	// Partition System Use Size is the size of a sector minus 88 bytes
	PARTITION_SYSTEM_USE_SIZE = consts.ISO9660_SECTOR_SIZE - 88
)

type VolumePartitionDescriptor struct {
	VolumeDescriptorHeader
	VolumePartitionDescriptorBody
}

func (d *VolumePartitionDescriptor) DescriptorType() VolumeDescriptorType {
	return TYPE_PARTITION_DESCRIPTOR
}

// VolumeIdentifier has no Volume Partition Descriptor counterpart; the
// closest analogous field is VolumePartitionIdentifier.
func (d *VolumePartitionDescriptor) VolumeIdentifier() string {
	return d.VolumePartitionDescriptorBody.VolumePartitionIdentifier
}

func (d *VolumePartitionDescriptor) SystemIdentifier() string {
	return d.VolumePartitionDescriptorBody.SystemIdentifier
}

// VolumeSetIdentifier and the identifier accessors below have no Volume
// Partition Descriptor counterpart; it carries none of the Primary/
// Supplementary Volume Descriptor's bibliographic fields.
func (d *VolumePartitionDescriptor) VolumeSetIdentifier() string { return "" }

func (d *VolumePartitionDescriptor) PublisherIdentifier() string { return "" }

func (d *VolumePartitionDescriptor) DataPreparerIdentifier() string { return "" }

func (d *VolumePartitionDescriptor) ApplicationIdentifier() string { return "" }

func (d *VolumePartitionDescriptor) CopyrightFileIdentifier() string { return "" }

func (d *VolumePartitionDescriptor) AbstractFileIdentifier() string { return "" }

func (d *VolumePartitionDescriptor) BibliographicFileIdentifier() string { return "" }

// The timestamp accessors return the zero time: a Volume Partition
// Descriptor carries no volume timestamps.
func (d *VolumePartitionDescriptor) VolumeCreationDateTime() time.Time { return time.Time{} }

func (d *VolumePartitionDescriptor) VolumeModificationDateTime() time.Time { return time.Time{} }

func (d *VolumePartitionDescriptor) VolumeExpirationDateTime() time.Time { return time.Time{} }

func (d *VolumePartitionDescriptor) VolumeEffectiveDateTime() time.Time { return time.Time{} }

func (d *VolumePartitionDescriptor) HasJoliet() bool { return false }

func (d *VolumePartitionDescriptor) HasRockRidge() bool { return false }

// RootDirectory is nil: a Volume Partition Descriptor dedicates a logical
// block range to non-ISO 9660 content, not a directory tree.
func (d *VolumePartitionDescriptor) RootDirectory() *directory.DirectoryRecord {
	return nil
}

type VolumePartitionDescriptorBody struct {
	// Unused field should always be 0x00
	UnusedField1 byte `json:"unusedField1"`
	// System Identifier specifies a system which can recognize and act upon the content of the Logical Sectors within
	// logical Sector Numbers 0 to 15 of the volume.
	//  | (a-characters)
	SystemIdentifier string `json:"system_identifier"`
	// Volume Partition Identifier specifies an identification of the Volume Partition.
	//  | (d-characters)
	VolumePartitionIdentifier string `json:"volume_partition_identifier"`
	// Volume Partition Location specifies the number of Logical Block Number of the first Logical Block allocated to
	// the Volume Partition
	//  | Encoding: BothByteOrder
	VolumePartitionLocation uint32 `json:"volume_partition_location"`
	// Volume Partition Size specifies the number of Logical Blocks in which the Volume Partition is recorded.
	//  | Encoding: BothByteOrder
	VolumePartitionSize uint32 `json:"volume_partition_size"`
	// System Use Area
	SystemUse [PARTITION_SYSTEM_USE_SIZE]byte `json:"system_use"`
	// --- Fields that are not part of the ISO9660 object ---
	// Object Location (in bytes)
	ObjectLocation int64 `json:"object_location"`
	// Object Size (in bytes)
	ObjectSize uint32 `json:"object_size"`
	// Logger
	Logger *logging.Logger
}

func (v VolumePartitionDescriptorBody) Type() string {
	return "Volume Descriptor"
}

func (v VolumePartitionDescriptorBody) Name() string {
	return "Volume Partition Descriptor"
}

func (v VolumePartitionDescriptorBody) Description() string {
	return fmt.Sprintf("%s: %s", v.SystemIdentifier, v.VolumePartitionIdentifier)
}

func (v VolumePartitionDescriptorBody) Properties() map[string]interface{} {
	return map[string]interface{}{
		"VolumePartitionLocation": v.VolumePartitionLocation,
		"VolumePartitionSize":     v.VolumePartitionSize,
	}
}

func (v VolumePartitionDescriptorBody) Offset() int64 {
	return v.ObjectLocation
}

func (v VolumePartitionDescriptorBody) Size() int {
	return int(v.ObjectSize)
}


func (d *VolumePartitionDescriptor) Unmarshal(data [consts.ISO9660_SECTOR_SIZE]byte) error {
	if err := d.VolumeDescriptorHeader.Unmarshal([consts.ISO9660_VOLUME_DESC_HEADER_SIZE]byte(data[:consts.ISO9660_VOLUME_DESC_HEADER_SIZE])); err != nil {
		return fmt.Errorf("failed to unmarshal volume partition descriptor header: %w", err)
	}
	if err := d.VolumePartitionDescriptorBody.Unmarshal(data[7:]); err != nil {
		return fmt.Errorf("failed to unmarshal volume partition descriptor body: %w", err)
	}
	d.ObjectSize = consts.ISO9660_SECTOR_SIZE
	return nil
}

// Unmarshal decodes a Volume Partition Descriptor's body from the bytes
// following the 7-byte Volume Descriptor Header.
func (v *VolumePartitionDescriptorBody) Unmarshal(data []byte) error {
	offset := 0

	v.UnusedField1 = data[offset]
	offset += 1

	v.SystemIdentifier = strings.TrimRight(string(data[offset:offset+32]), " ")
	offset += 32

	v.VolumePartitionIdentifier = strings.TrimRight(string(data[offset:offset+32]), " ")
	offset += 32

	var locationField [8]byte
	copy(locationField[:], data[offset:offset+8])
	location, err := encoding.UnmarshalUint32LSBMSB(locationField)
	if err != nil {
		return fmt.Errorf("failed to unmarshal volume partition location: %w", err)
	}
	v.VolumePartitionLocation = location
	offset += 8

	var sizeField [8]byte
	copy(sizeField[:], data[offset:offset+8])
	size, err := encoding.UnmarshalUint32LSBMSB(sizeField)
	if err != nil {
		return fmt.Errorf("failed to unmarshal volume partition size: %w", err)
	}
	v.VolumePartitionSize = size
	offset += 8

	copy(v.SystemUse[:], data[offset:offset+PARTITION_SYSTEM_USE_SIZE])

	return nil
}
