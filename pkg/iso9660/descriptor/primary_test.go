package descriptor

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// putBoth32/putBoth16 write a field in both little- and big-endian order,
// the encoding ECMA-119 uses for numeric fields in volume descriptors.
func putBoth32(dst []byte, v uint32) {
	binary.LittleEndian.PutUint32(dst[0:4], v)
	binary.BigEndian.PutUint32(dst[4:8], v)
}

func putBoth16(dst []byte, v uint16) {
	binary.LittleEndian.PutUint16(dst[0:2], v)
	binary.BigEndian.PutUint16(dst[2:4], v)
}

func padD(s string, n int) []byte {
	buf := make([]byte, n)
	copy(buf, s)
	for i := len(s); i < n; i++ {
		buf[i] = ' '
	}
	return buf
}

func unspecifiedDateTime(dst []byte) {
	for i := 0; i < 16; i++ {
		dst[i] = '0'
	}
	dst[16] = 0
}

// buildPVDBody hand-assembles a valid 2041-byte PrimaryVolumeDescriptorBody,
// following the same field-by-field layout Unmarshal decodes.
func buildPVDBody() []byte {
	body := make([]byte, PRIMARY_VOLUME_DESCRIPTOR_BODY_SIZE)
	body[0] = 0 // unused
	copy(body[1:33], padD("SYS_ID", 32))
	copy(body[33:65], padD("VOL_ID", 32))
	putBoth32(body[73:81], 12345) // volume space size
	putBoth16(body[113:117], 7)   // volume set size
	putBoth16(body[117:121], 1)   // volume sequence number
	putBoth16(body[121:125], 2048)
	putBoth32(body[125:133], 4096) // path table size
	binary.LittleEndian.PutUint32(body[133:137], 20)
	binary.BigEndian.PutUint32(body[141:145], 20)

	// Root directory record: a minimal 34-byte "\x00" special entry.
	root := body[149 : 149+34]
	root[0] = 34
	putBoth32(root[2:10], 18)
	putBoth32(root[10:18], 2048)
	copy(root[18:25], []byte{0, 1, 1, 0, 0, 0, 0})
	root[25] = 0x02 // directory
	putBoth16(root[28:32], 1)
	root[32] = 1
	root[33] = 0

	unspecifiedDateTime(body[806:823])
	unspecifiedDateTime(body[823:840])
	unspecifiedDateTime(body[840:857])
	unspecifiedDateTime(body[857:874])
	body[874] = 1 // file structure version

	return body
}

func TestPrimaryVolumeDescriptorBodyUnmarshal(t *testing.T) {
	var pvdb PrimaryVolumeDescriptorBody
	require.NoError(t, pvdb.Unmarshal(buildPVDBody()))

	require.Equal(t, "SYS_ID", pvdb.SystemIdentifier)
	require.Equal(t, "VOL_ID", pvdb.VolumeIdentifier)
	require.Equal(t, uint32(12345), pvdb.VolumeSpaceSize)
	require.Equal(t, uint16(7), pvdb.VolumeSetSize)
	require.Equal(t, uint16(1), pvdb.VolumeSequenceNumber)
	require.Equal(t, uint16(2048), pvdb.LogicalBlockSize)
	require.Equal(t, uint32(4096), pvdb.PathTableSize)
	require.Equal(t, uint8(1), pvdb.FileStructureVersion)
	require.NotNil(t, pvdb.RootDirectoryRecord)
	require.True(t, pvdb.RootDirectoryRecord.FileFlags.Directory)
}

func TestPrimaryVolumeDescriptorBodyUnmarshalRejectsShortData(t *testing.T) {
	var pvdb PrimaryVolumeDescriptorBody
	err := pvdb.Unmarshal(make([]byte, 100))
	require.Error(t, err)
}
