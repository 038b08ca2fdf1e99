package directory

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func putBoth32(dst []byte, v uint32) {
	binary.LittleEndian.PutUint32(dst[0:4], v)
	binary.BigEndian.PutUint32(dst[4:8], v)
}

func putBoth16(dst []byte, v uint16) {
	binary.LittleEndian.PutUint16(dst[0:2], v)
	binary.BigEndian.PutUint16(dst[2:4], v)
}

// buildRecord assembles a complete fixed-layout Directory Record, per
// record.go's Unmarshal field order, for a file identifier with the given
// flags byte and trailing system-use bytes.
func buildRecord(fileID string, flags byte, systemUse []byte) []byte {
	idBytes := []byte(fileID)
	fiLen := len(idBytes)
	pad := 0
	if fiLen%2 == 0 {
		pad = 1
	}
	total := 33 + fiLen + pad + len(systemUse)

	buf := make([]byte, total)
	buf[0] = byte(total)
	buf[1] = 0 // extended attribute record length
	putBoth32(buf[2:10], 100)      // location of extent
	putBoth32(buf[10:18], 2048)    // data length
	copy(buf[18:25], []byte{0, 1, 1, 0, 0, 0, 0}) // recording date/time
	buf[25] = flags
	buf[26] = 0 // file unit size
	buf[27] = 0 // interleave gap size
	putBoth16(buf[28:32], 1)
	buf[32] = byte(fiLen)
	copy(buf[33:33+fiLen], idBytes)
	offset := 33 + fiLen
	if pad == 1 {
		buf[offset] = 0x00
		offset++
	}
	copy(buf[offset:], systemUse)
	return buf
}

func TestUnmarshalFileRecord(t *testing.T) {
	data := buildRecord("HELLO.TXT;1", 0, nil)

	var dr DirectoryRecord
	require.NoError(t, dr.Unmarshal(data))
	require.Equal(t, uint32(100), dr.LocationOfExtent)
	require.Equal(t, uint32(2048), dr.DataLength)
	require.False(t, dr.IsDirectory())
	require.Equal(t, "HELLO.TXT", dr.FileName())
}

func TestUnmarshalDirectoryRecord(t *testing.T) {
	data := buildRecord("SUBDIR", 0x02, nil)

	var dr DirectoryRecord
	require.NoError(t, dr.Unmarshal(data))
	require.True(t, dr.IsDirectory())
	require.Equal(t, "SUBDIR", dr.FileName())
}

func TestUnmarshalSpecialDotEntry(t *testing.T) {
	data := buildRecord("\x00", 0x02, nil)

	var dr DirectoryRecord
	require.NoError(t, dr.Unmarshal(data))
	require.True(t, dr.IsSpecial())
	require.Equal(t, ".", dr.FileName())
}

func TestUnmarshalSpecialDotDotEntry(t *testing.T) {
	data := buildRecord("\x01", 0x02, nil)

	var dr DirectoryRecord
	require.NoError(t, dr.Unmarshal(data))
	require.True(t, dr.IsSpecial())
	require.Equal(t, "..", dr.FileName())
}

func TestFileNameStripsVersionAndTrailingDot(t *testing.T) {
	data := buildRecord("ARCHIVE.TAR.;1", 0, nil)

	var dr DirectoryRecord
	require.NoError(t, dr.Unmarshal(data))
	require.Equal(t, "ARCHIVE.TAR", dr.FileName())
}

func TestUnmarshalJolietIdentifier(t *testing.T) {
	// UCS-2BE "hi.txt"
	ucs2 := []byte{0x00, 'h', 0x00, 'i', 0x00, '.', 0x00, 't', 0x00, 'x', 0x00, 't'}
	data := buildRecord(string(ucs2), 0, nil)

	var dr DirectoryRecord
	dr.Joliet = true
	require.NoError(t, dr.Unmarshal(data))
	require.Equal(t, "hi.txt", dr.FileIdentifier)
}

func TestUnmarshalRejectsBadPadding(t *testing.T) {
	data := buildRecord("AB", 0, nil) // even-length identifier, padding byte present
	data[33+2] = 0x01                // corrupt the padding byte

	var dr DirectoryRecord
	require.Error(t, dr.Unmarshal(data))
}

func TestUnmarshalCapturesSystemUse(t *testing.T) {
	su := []byte{'P', 'X', 0x00}
	data := buildRecord("FILE.TXT;1", 0, su)

	var dr DirectoryRecord
	require.NoError(t, dr.Unmarshal(data))
	require.Equal(t, su, dr.SystemUse)
}

func TestParseRockRidgeAlternateNameOverridesFileName(t *testing.T) {
	// NM entry: sig 'N','M', length=4+1+len(name), version=1, flags=0, name
	name := "a-much-longer-filename.txt"
	payload := append([]byte{0x00}, name...)
	nm := append([]byte{'N', 'M', byte(4 + len(payload)), 1}, payload...)
	data := buildRecord("SHORTNM.TXT;1", 0, nm)

	var dr DirectoryRecord
	require.NoError(t, dr.Unmarshal(data))
	dr.ParseRockRidge(0, nil)
	require.Equal(t, name, dr.FileName())
}

func TestGetPermissionsMasksWriteBits(t *testing.T) {
	data := buildRecord("FILE.TXT;1", 0, nil)
	var dr DirectoryRecord
	require.NoError(t, dr.Unmarshal(data))

	mode := dr.GetPermissions(false)
	require.Zero(t, mode&0o222)
}

func TestGetTimestampsFallsBackToRecordingTime(t *testing.T) {
	data := buildRecord("FILE.TXT;1", 0, nil)
	var dr DirectoryRecord
	require.NoError(t, dr.Unmarshal(data))

	creation, modification := dr.GetTimestamps(false)
	require.Equal(t, dr.RecordingDateAndTime, creation)
	require.Equal(t, dr.RecordingDateAndTime, modification)
}
