package record

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildEOCD assembles a minimal 22-byte EOCD record, optionally followed by
// a comment of commentLen bytes.
func buildEOCD(cdOffset, cdSize uint32, totalEntries uint16, commentLen uint16) []byte {
	buf := make([]byte, eocdFixedSize+int(commentLen))
	binary.LittleEndian.PutUint32(buf[0:4], SignatureEOCD)
	binary.LittleEndian.PutUint16(buf[4:6], 0)            // disk
	binary.LittleEndian.PutUint16(buf[6:8], 0)            // central dir start disk
	binary.LittleEndian.PutUint16(buf[8:10], totalEntries) // entries on this disk
	binary.LittleEndian.PutUint16(buf[10:12], totalEntries)
	binary.LittleEndian.PutUint32(buf[12:16], cdSize)
	binary.LittleEndian.PutUint32(buf[16:20], cdOffset)
	binary.LittleEndian.PutUint16(buf[20:22], commentLen)
	return buf
}

func TestLocateEOCDNoComment(t *testing.T) {
	eocd := buildEOCD(100, 200, 3, 0)

	got, offset, err := LocateEOCD(eocd)
	require.NoError(t, err)
	require.Equal(t, int64(0), offset)
	require.Equal(t, uint32(100), got.CentralDirOffset)
	require.Equal(t, uint32(200), got.CentralDirSize)
	require.Equal(t, uint16(3), got.TotalEntries)
}

func TestLocateEOCDWithComment(t *testing.T) {
	comment := "hello archive"
	eocd := buildEOCD(50, 75, 1, uint16(len(comment)))
	copy(eocd[eocdFixedSize:], comment)

	// Prepend some unrelated archive bytes to ensure the backward scan
	// finds the real record rather than false-positive matching.
	full := append([]byte("PKpayload-not-the-eocd-record"), eocd...)

	got, offset, err := LocateEOCD(full)
	require.NoError(t, err)
	require.Equal(t, int64(len("PKpayload-not-the-eocd-record")), offset)
	require.Equal(t, uint32(50), got.CentralDirOffset)
}

func TestLocateEOCDRejectsCoincidentalSignature(t *testing.T) {
	// A stray EOCD signature inside the real EOCD's comment, with a
	// comment-length field that does NOT account for the remaining bytes,
	// must be skipped in favor of the real EOCD before it.
	real := buildEOCD(10, 20, 1, eocdFixedSize)

	fake := make([]byte, eocdFixedSize)
	binary.LittleEndian.PutUint32(fake[0:4], SignatureEOCD)
	binary.LittleEndian.PutUint16(fake[20:22], 9999) // bogus, doesn't fit

	copy(real[eocdFixedSize:], fake)
	full := real

	got, _, err := LocateEOCD(full)
	require.NoError(t, err)
	require.Equal(t, uint32(10), got.CentralDirOffset)
}

func TestLocateEOCDNotFound(t *testing.T) {
	_, _, err := LocateEOCD([]byte("too short"))
	require.Error(t, err)
}

// buildCentralDirEntry assembles one central directory record for name,
// with the given flags and compression method.
func buildCentralDirEntry(name string, flags, method uint16) []byte {
	nameBytes := []byte(name)
	buf := make([]byte, centralDirFixedSize+len(nameBytes))
	binary.LittleEndian.PutUint32(buf[0:4], SignatureCentralDir)
	binary.LittleEndian.PutUint16(buf[8:10], flags)
	binary.LittleEndian.PutUint16(buf[10:12], method)
	binary.LittleEndian.PutUint32(buf[20:24], 123) // compressed size
	binary.LittleEndian.PutUint32(buf[24:28], 456) // uncompressed size
	binary.LittleEndian.PutUint16(buf[28:30], uint16(len(nameBytes)))
	binary.LittleEndian.PutUint32(buf[42:46], 0) // header offset
	copy(buf[centralDirFixedSize:], nameBytes)
	return buf
}

func TestCentralDirectoryEntryUnmarshalUTF8Name(t *testing.T) {
	data := buildCentralDirEntry("dir/file.txt", UTF8NameFlag, 8)

	var e CentralDirectoryEntry
	require.NoError(t, e.Unmarshal(data))
	require.Equal(t, "dir/file.txt", e.Name)
	require.Equal(t, uint16(8), e.CompressionMethod)
	require.Equal(t, uint32(123), e.CompressedSize)
	require.Equal(t, uint32(456), e.UncompressedSize)
	require.Equal(t, len(data), e.Size)
	require.False(t, e.IsDirectory())
}

func TestCentralDirectoryEntryUnmarshalDirectory(t *testing.T) {
	data := buildCentralDirEntry("some/dir/", UTF8NameFlag, 0)

	var e CentralDirectoryEntry
	require.NoError(t, e.Unmarshal(data))
	require.True(t, e.IsDirectory())
	require.Equal(t, "some/dir", e.CleanName())
}

func TestCentralDirectoryEntryBackslashNormalized(t *testing.T) {
	data := buildCentralDirEntry(`some\windows\path.txt`, UTF8NameFlag, 0)

	var e CentralDirectoryEntry
	require.NoError(t, e.Unmarshal(data))
	require.Equal(t, "some/windows/path.txt", e.Name)
}

func TestCentralDirectoryEntryMSDOSDirAttribute(t *testing.T) {
	data := buildCentralDirEntry("noslash", UTF8NameFlag, 0)
	binary.LittleEndian.PutUint32(data[38:42], 0x10) // MS-DOS directory bit

	var e CentralDirectoryEntry
	require.NoError(t, e.Unmarshal(data))
	require.True(t, e.IsDirectory())
}

func TestCentralDirectoryEntryBadSignature(t *testing.T) {
	data := buildCentralDirEntry("x", UTF8NameFlag, 0)
	binary.LittleEndian.PutUint32(data[0:4], 0xdeadbeef)

	var e CentralDirectoryEntry
	require.Error(t, e.Unmarshal(data))
}

func buildLocalHeader(nameLen, extraLen uint16) []byte {
	buf := make([]byte, localHeaderFixedSize)
	binary.LittleEndian.PutUint32(buf[0:4], SignatureLocalHeader)
	binary.LittleEndian.PutUint16(buf[26:28], nameLen)
	binary.LittleEndian.PutUint16(buf[28:30], extraLen)
	return buf
}

func TestLocalFileHeaderUnmarshalAndDataOffset(t *testing.T) {
	data := buildLocalHeader(8, 4)

	var h LocalFileHeader
	require.NoError(t, h.Unmarshal(data))
	require.Equal(t, uint16(8), h.NameLength)
	require.Equal(t, uint16(4), h.ExtraLength)
	require.Equal(t, int64(30+8+4), h.DataOffset())
}

func TestLocalFileHeaderBadSignature(t *testing.T) {
	data := buildLocalHeader(0, 0)
	binary.LittleEndian.PutUint32(data[0:4], 0)

	var h LocalFileHeader
	require.Error(t, h.Unmarshal(data))
}
