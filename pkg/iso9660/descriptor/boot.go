package descriptor

import (
	"fmt"
	"github.com/bgrewell/archivefs/pkg/consts"
	"github.com/bgrewell/archivefs/pkg/iso9660/directory"
	"github.com/bgrewell/archivefs/pkg/logging"
	"strings"
	"time"
)

const (
	// Boot System Use Size is the size of a sector minus 71 bytes
	BOOT_SYSTEM_USE_SIZE = consts.ISO9660_SECTOR_SIZE - 71
)

type BootRecordDescriptor struct {
	VolumeDescriptorHeader
	BootRecordBody
}

// VolumeIdentifier has no real counterpart on a Boot Record; the closest
// analogous field is BootIdentifier, the boot system's own name for the
// record.
func (d *BootRecordDescriptor) VolumeIdentifier() string {
	return d.BootRecordBody.BootIdentifier
}

func (d *BootRecordDescriptor) SystemIdentifier() string {
	return d.BootRecordBody.BootSystemIdentifier
}

// VolumeSetIdentifier and the identifier accessors below have no Boot
// Record counterpart; a Boot Record carries none of the Primary/
// Supplementary Volume Descriptor's bibliographic fields.
func (d *BootRecordDescriptor) VolumeSetIdentifier() string { return "" }

func (d *BootRecordDescriptor) PublisherIdentifier() string { return "" }

func (d *BootRecordDescriptor) DataPreparerIdentifier() string { return "" }

func (d *BootRecordDescriptor) ApplicationIdentifier() string { return "" }

func (d *BootRecordDescriptor) CopyrightFileIdentifier() string { return "" }

func (d *BootRecordDescriptor) AbstractFileIdentifier() string { return "" }

func (d *BootRecordDescriptor) BibliographicFileIdentifier() string { return "" }

// The timestamp accessors return the zero time: a Boot Record carries no
// volume timestamps.
func (d *BootRecordDescriptor) VolumeCreationDateTime() time.Time { return time.Time{} }

func (d *BootRecordDescriptor) VolumeModificationDateTime() time.Time { return time.Time{} }

func (d *BootRecordDescriptor) VolumeExpirationDateTime() time.Time { return time.Time{} }

func (d *BootRecordDescriptor) VolumeEffectiveDateTime() time.Time { return time.Time{} }

func (d *BootRecordDescriptor) HasJoliet() bool { return false }

func (d *BootRecordDescriptor) HasRockRidge() bool { return false }

// RootDirectory is nil: a Boot Record describes a boot catalog, not a
// directory tree.
func (d *BootRecordDescriptor) RootDirectory() *directory.DirectoryRecord {
	return nil
}

type BootRecordBody struct {
	// Boot System Identifier specifies and identification of a system which can recognize and act upon the contents of
	// the Boot Identifier and Boot System Use fields in the Boot Record. (a-characters)
	BootSystemIdentifier string `json:"boot_system_identifier"`
	// Boot Identifier shall specify an identification of the boot system specified in the Boot System Use field of the
	// Boot Record. (a-characters)
	BootIdentifier string `json:"boot_identifier"`
	// Boot System Use is a byte field that is used by the boot system specified by the identifier.
	BootSystemUse [BOOT_SYSTEM_USE_SIZE]byte `json:"boot_system_use"`
	// Logger
	Logger *logging.Logger
}


// Unmarshal parses a 2048-byte sector into the BootRecordDescriptor.
func (d *BootRecordDescriptor) Unmarshal(data [consts.ISO9660_SECTOR_SIZE]byte) error {
	offset := 0

	// 1. Unmarshal the VolumeDescriptorHeader (first 7 bytes).
	var headerBytes [7]byte
	copy(headerBytes[:], data[0:7])
	if err := d.VolumeDescriptorHeader.Unmarshal(headerBytes); err != nil {
		return fmt.Errorf("failed to unmarshal VolumeDescriptorHeader: %w", err)
	}
	offset += 7

	// 2. Boot System Identifier: 32 bytes.
	// Trim trailing spaces.
	d.BootRecordBody.BootSystemIdentifier = strings.TrimRight(string(data[offset:offset+32]), " ")
	offset += 32

	// 3. Boot Identifier: 32 bytes.
	d.BootRecordBody.BootIdentifier = strings.TrimRight(string(data[offset:offset+32]), " ")
	offset += 32

	// 4. Boot System Use: remaining BOOT_SYSTEM_USE_SIZE bytes.
	copy(d.BootRecordBody.BootSystemUse[:], data[offset:offset+BOOT_SYSTEM_USE_SIZE])
	offset += BOOT_SYSTEM_USE_SIZE

	if offset != consts.ISO9660_SECTOR_SIZE {
		return fmt.Errorf("unmarshal BootRecordDescriptor: incorrect offset %d", offset)
	}
	return nil
}
