// Package record decodes the PKZIP central-directory record layer: the End
// Of Central Directory, central directory entries, and local file headers.
// Each is a typed view parsed out of a byte slice handed in by the caller;
// this package does no I/O of its own.
package record

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/bgrewell/archivefs/pkg/codec"
	"github.com/bgrewell/archivefs/pkg/vfs"
)

const (
	SignatureEOCD         = 0x06054b50
	SignatureCentralDir   = 0x02014b50
	SignatureLocalHeader  = 0x04034b50
	eocdFixedSize         = 22
	centralDirFixedSize   = 46
	localHeaderFixedSize  = 30
	maxCommentLength      = 65535
)

// UTF8NameFlag is general-purpose bit 11 (0x0800): entry name and comment
// are UTF-8 rather than CP437.
const UTF8NameFlag uint16 = 0x0800

// EOCD is the End Of Central Directory record.
type EOCD struct {
	Disk                 uint16
	CentralDirStartDisk  uint16
	EntriesOnThisDisk    uint16
	TotalEntries         uint16
	CentralDirSize       uint32
	CentralDirOffset     uint32
	CommentLength        uint16
}

// LocateEOCD scans backward from the end of a size-byte archive looking for
// the EOCD signature, per PKZIP APPNOTE 4.3.16: the search window is bounded
// to the maximum comment length (65535 bytes) so it never reads past
// size-22 plus that bound, and never needs to read the whole file.
func LocateEOCD(data []byte) (EOCD, int64, error) {
	size := int64(len(data))
	if size < eocdFixedSize {
		return EOCD{}, 0, fmt.Errorf("zip record: archive too short for EOCD: %w", vfs.ErrIO)
	}

	windowStart := size - eocdFixedSize - maxCommentLength
	if windowStart < 0 {
		windowStart = 0
	}

	for start := size - eocdFixedSize; start >= windowStart; start-- {
		if binary.LittleEndian.Uint32(data[start:start+4]) != SignatureEOCD {
			continue
		}
		commentLen := binary.LittleEndian.Uint16(data[start+20 : start+22])
		if start+eocdFixedSize+int64(commentLen) != size {
			// The comment length must account for exactly the remaining
			// bytes; otherwise this is a coincidental match inside a
			// comment or file data.
			continue
		}
		eocd := EOCD{
			Disk:                binary.LittleEndian.Uint16(data[start+4 : start+6]),
			CentralDirStartDisk: binary.LittleEndian.Uint16(data[start+6 : start+8]),
			EntriesOnThisDisk:   binary.LittleEndian.Uint16(data[start+8 : start+10]),
			TotalEntries:        binary.LittleEndian.Uint16(data[start+10 : start+12]),
			CentralDirSize:      binary.LittleEndian.Uint32(data[start+12 : start+16]),
			CentralDirOffset:    binary.LittleEndian.Uint32(data[start+16 : start+20]),
			CommentLength:       commentLen,
		}
		return eocd, start, nil
	}

	return EOCD{}, 0, fmt.Errorf("zip record: end of central directory not found: %w", vfs.ErrIO)
}

// CentralDirectoryEntry is one 46-byte-plus-variable-length record in the
// central directory.
type CentralDirectoryEntry struct {
	VersionMadeBy      uint16
	VersionNeeded      uint16
	Flags              uint16
	CompressionMethod  uint16
	DOSTime            uint16
	DOSDate            uint16
	CRC32              uint32
	CompressedSize     uint32
	UncompressedSize   uint32
	StartDisk          uint16
	InternalAttrs      uint16
	ExternalAttrs      uint32
	HeaderOffset       uint32
	Name               string
	Extra              []byte
	Comment            []byte

	// Size is the total on-disk footprint of this record (46 + name +
	// extra + comment), so the caller can advance to the next entry.
	Size int
}

// Unmarshal decodes one CentralDirectoryEntry starting at the beginning of
// data. data must contain at least the fixed 46-byte part; the variable
// trailer is read according to its own length fields.
func (e *CentralDirectoryEntry) Unmarshal(data []byte) error {
	if len(data) < centralDirFixedSize {
		return fmt.Errorf("zip record: central directory entry too short: %w", vfs.ErrInvalidArgument)
	}
	if binary.LittleEndian.Uint32(data[0:4]) != SignatureCentralDir {
		return fmt.Errorf("zip record: bad central directory signature: %w", vfs.ErrInvalidArgument)
	}

	e.VersionMadeBy = binary.LittleEndian.Uint16(data[4:6])
	e.VersionNeeded = binary.LittleEndian.Uint16(data[6:8])
	e.Flags = binary.LittleEndian.Uint16(data[8:10])
	e.CompressionMethod = binary.LittleEndian.Uint16(data[10:12])
	e.DOSTime = binary.LittleEndian.Uint16(data[12:14])
	e.DOSDate = binary.LittleEndian.Uint16(data[14:16])
	e.CRC32 = binary.LittleEndian.Uint32(data[16:20])
	e.CompressedSize = binary.LittleEndian.Uint32(data[20:24])
	e.UncompressedSize = binary.LittleEndian.Uint32(data[24:28])
	nameLen := int(binary.LittleEndian.Uint16(data[28:30]))
	extraLen := int(binary.LittleEndian.Uint16(data[30:32]))
	commentLen := int(binary.LittleEndian.Uint16(data[32:34]))
	e.StartDisk = binary.LittleEndian.Uint16(data[34:36])
	e.InternalAttrs = binary.LittleEndian.Uint16(data[36:38])
	e.ExternalAttrs = binary.LittleEndian.Uint32(data[38:42])
	e.HeaderOffset = binary.LittleEndian.Uint32(data[42:46])

	e.Size = centralDirFixedSize + nameLen + extraLen + commentLen
	if len(data) < e.Size {
		return fmt.Errorf("zip record: central directory entry overruns buffer: %w", vfs.ErrInvalidArgument)
	}

	nameBytes := data[centralDirFixedSize : centralDirFixedSize+nameLen]
	if e.Flags&UTF8NameFlag != 0 {
		e.Name = codec.UTF8(nameBytes)
	} else {
		e.Name = codec.CP437(nameBytes)
	}
	e.Name = strings.ReplaceAll(e.Name, "\\", "/")

	e.Extra = append([]byte(nil), data[centralDirFixedSize+nameLen:centralDirFixedSize+nameLen+extraLen]...)
	e.Comment = append([]byte(nil), data[centralDirFixedSize+nameLen+extraLen:e.Size]...)

	return nil
}

// IsDirectory reports whether this entry denotes a directory: a trailing
// slash on the name, or (when absent) the MS-DOS directory attribute bit.
func (e *CentralDirectoryEntry) IsDirectory() bool {
	if strings.HasSuffix(e.Name, "/") {
		return true
	}
	const msdosDirAttr = 0x10
	return e.ExternalAttrs&msdosDirAttr != 0
}

// CleanName strips a single trailing slash, the form the directory index
// and path resolver key entries by.
func (e *CentralDirectoryEntry) CleanName() string {
	return strings.TrimSuffix(e.Name, "/")
}

// ModTime decodes the entry's packed MS-DOS date/time fields.
func (e *CentralDirectoryEntry) ModTime() time.Time {
	return codec.DecodeDOSDateTime(e.DOSDate, e.DOSTime)
}

// LocalFileHeader is the 30-byte-plus-variable-length record immediately
// preceding a file's compressed bytes.
type LocalFileHeader struct {
	Flags             uint16
	CompressionMethod uint16
	NameLength        uint16
	ExtraLength       uint16
}

// Unmarshal decodes the fixed 30-byte part of a local file header.
func (h *LocalFileHeader) Unmarshal(data []byte) error {
	if len(data) < localHeaderFixedSize {
		return fmt.Errorf("zip record: local file header too short: %w", vfs.ErrInvalidArgument)
	}
	if binary.LittleEndian.Uint32(data[0:4]) != SignatureLocalHeader {
		return fmt.Errorf("zip record: bad local file header signature: %w", vfs.ErrInvalidArgument)
	}
	h.Flags = binary.LittleEndian.Uint16(data[6:8])
	h.CompressionMethod = binary.LittleEndian.Uint16(data[8:10])
	h.NameLength = binary.LittleEndian.Uint16(data[26:28])
	h.ExtraLength = binary.LittleEndian.Uint16(data[28:30])
	return nil
}

// DataOffset returns the byte offset, relative to the start of this header,
// at which the entry's compressed data begins.
func (h *LocalFileHeader) DataOffset() int64 {
	return int64(localHeaderFixedSize) + int64(h.NameLength) + int64(h.ExtraLength)
}
