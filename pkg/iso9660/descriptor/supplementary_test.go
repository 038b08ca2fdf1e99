package descriptor

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildSVDBody hand-assembles a valid SUPPLEMENTARY_VOLUME_DESCRIPTOR_BODY_SIZE-byte
// SupplementaryVolumeDescriptorBody, following the same field-by-field layout
// Unmarshal decodes. escape controls the Joliet escape sequence bytes; pass ""
// for a non-Joliet SVD (an Enhanced Volume Descriptor-shaped body).
func buildSVDBody(escape string) []byte {
	body := make([]byte, SUPPLEMENTARY_VOLUME_DESCRIPTOR_BODY_SIZE)
	if escape != "" {
		copy(body[81:81+len(escape)], escape)
	}
	putBoth32(body[73:81], 12345) // volume space size
	putBoth16(body[113:117], 7)   // volume set size
	putBoth16(body[117:121], 1)   // volume sequence number
	putBoth16(body[121:125], 2048)
	putBoth32(body[125:133], 4096) // path table size
	binary.LittleEndian.PutUint32(body[133:137], 20)
	binary.BigEndian.PutUint32(body[141:145], 20)

	if escape != "" {
		copy(body[1:33], ucs2BESpacePadded("SYS_ID", 16))
		copy(body[33:65], ucs2BESpacePadded("VOL_ID", 16))
	} else {
		copy(body[1:33], padD("SYS_ID", 32))
		copy(body[33:65], padD("VOL_ID", 32))
	}

	// Root directory record: a minimal 34-byte "\x00" special entry.
	root := body[149 : 149+34]
	root[0] = 34
	putBoth32(root[2:10], 19)
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

// ucs2BESpacePadded encodes s as big-endian UCS-2 into a field runeCount
// runes wide, padding with UCS-2 spaces the way a real Joliet volume does
// (the decoder applies no trimming, unlike the ASCII d1-character fields).
func ucs2BESpacePadded(s string, runeCount int) []byte {
	out := make([]byte, runeCount*2)
	i := 0
	for _, r := range s {
		out[i*2], out[i*2+1] = byte(r>>8), byte(r)
		i++
	}
	for ; i < runeCount; i++ {
		out[i*2], out[i*2+1] = 0x00, 0x20
	}
	return out
}

func TestSupplementaryVolumeDescriptorBodyUnmarshalPlain(t *testing.T) {
	var svdb SupplementaryVolumeDescriptorBody
	require.NoError(t, svdb.Unmarshal(buildSVDBody("")))

	require.False(t, svdb.IsJoliet())
	require.Equal(t, "SYS_ID", svdb.SystemIdentifier)
	require.Equal(t, "VOL_ID", svdb.VolumeIdentifier)
	require.Equal(t, uint32(19), svdb.RootDirectoryRecord.LocationOfExtent)
	require.NotNil(t, svdb.RootDirectoryRecord)
	require.False(t, svdb.RootDirectoryRecord.Joliet)
}

func TestSupplementaryVolumeDescriptorBodyUnmarshalJoliet(t *testing.T) {
	var svdb SupplementaryVolumeDescriptorBody
	require.NoError(t, svdb.Unmarshal(buildSVDBody("%/E")))

	require.True(t, svdb.IsJoliet())
	require.Equal(t, "SYS_ID", strings.TrimRight(svdb.SystemIdentifier, " "))
	require.Equal(t, "VOL_ID", strings.TrimRight(svdb.VolumeIdentifier, " "))
	require.True(t, svdb.RootDirectoryRecord.Joliet)
}

func TestSupplementaryVolumeDescriptorBodyIsJolietAllLevels(t *testing.T) {
	for _, escape := range []string{"%/@", "%/C", "%/E"} {
		var svdb SupplementaryVolumeDescriptorBody
		require.NoError(t, svdb.Unmarshal(buildSVDBody(escape)))
		require.True(t, svdb.IsJoliet(), "escape sequence %q should be detected as Joliet", escape)
	}
}

func TestSupplementaryVolumeDescriptorBodyUnmarshalRejectsShortData(t *testing.T) {
	var svdb SupplementaryVolumeDescriptorBody
	err := svdb.Unmarshal(make([]byte, 100))
	require.Error(t, err)
}
