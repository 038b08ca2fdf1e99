package susp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// entry builds one SUSP system-use entry: 2-byte signature, 1-byte total
// length (header + payload), 1-byte version, followed by payload.
func entry(sig [2]byte, version byte, payload []byte) []byte {
	buf := make([]byte, 4+len(payload))
	buf[0] = sig[0]
	buf[1] = sig[1]
	buf[2] = byte(4 + len(payload))
	buf[3] = version
	copy(buf[4:], payload)
	return buf
}

func le32both(v uint32) []byte {
	b := make([]byte, 8)
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 24)
	b[5] = byte(v >> 16)
	b[6] = byte(v >> 8)
	b[7] = byte(v)
	return b
}

func TestParsePX(t *testing.T) {
	payload := append(append(append(append([]byte{}, le32both(0o100644)...), le32both(1)...), le32both(1000)...), le32both(1000)...)
	data := entry([2]byte{'P', 'X'}, 1, payload)

	info := Parse(data, 0, nil)
	require.NotNil(t, info.Mode)
	require.Equal(t, uint32(0o100644), *info.Mode)
	require.Equal(t, uint32(1), *info.Links)
	require.Equal(t, uint32(1000), *info.UID)
	require.Equal(t, uint32(1000), *info.GID)
}

func TestParseNMSimple(t *testing.T) {
	data := entry([2]byte{'N', 'M'}, 1, append([]byte{0x00}, "really-long-name.txt"...))

	info := Parse(data, 0, nil)
	require.Equal(t, "really-long-name.txt", info.AlternateName())
}

func TestParseNMContinuation(t *testing.T) {
	first := entry([2]byte{'N', 'M'}, 1, append([]byte{nmFlagContinue}, "part-one-"...))
	second := entry([2]byte{'N', 'M'}, 1, append([]byte{0x00}, "part-two"...))
	data := append(first, second...)

	info := Parse(data, 0, nil)
	require.Equal(t, "part-one-part-two", info.AlternateName())
}

func TestParseSLPath(t *testing.T) {
	var payload []byte
	payload = append(payload, 0x00) // SL flags byte
	payload = append(payload, slCompRoot, 0)
	payload = append(payload, slCompParent, 0)
	content := []byte("target.txt")
	payload = append(payload, 0x00, byte(len(content)))
	payload = append(payload, content...)
	data := entry([2]byte{'S', 'L'}, 1, payload)

	info := Parse(data, 0, nil)
	require.True(t, info.IsSymlink())
	require.Equal(t, "/../target.txt", info.SymlinkPath())
}

func TestParseTFShortForm(t *testing.T) {
	// 7-byte recording date/time: year offset 0, month 1, day 1, rest zero.
	stamp := []byte{0, 1, 1, 0, 0, 0, 0}
	payload := append([]byte{tfModify}, stamp...)
	data := entry([2]byte{'T', 'F'}, 1, payload)

	info := Parse(data, 0, nil)
	require.NotNil(t, info.ModificationTime)
}

func TestParseRRLegacyMarker(t *testing.T) {
	data := entry([2]byte{'R', 'R'}, 1, nil)

	info := Parse(data, 0, nil)
	require.True(t, info.SawLegacyRR)
	require.True(t, info.HasRockRidge())
}

func TestParseERIdentifiesExtension(t *testing.T) {
	id := "IEEE_P1282"
	payload := append([]byte{byte(len(id)), 0, 0, 1}, id...)
	data := entry([2]byte{'E', 'R'}, 1, payload)

	info := Parse(data, 0, nil)
	require.Equal(t, id, info.ExtensionIdentifier)
	require.True(t, info.HasRockRidge())
}

func TestParseSTStopsWalk(t *testing.T) {
	st := entry([2]byte{'S', 'T'}, 1, nil)
	px := entry([2]byte{'P', 'X'}, 1, make([]byte, 32))
	data := append(st, px...)

	info := Parse(data, 0, nil)
	require.Nil(t, info.Mode)
}

func TestParseCEFollowsContinuation(t *testing.T) {
	contData := entry([2]byte{'N', 'M'}, 1, append([]byte{0x00}, "from-continuation"...))

	cePayload := append(append(le32both(123), le32both(0)...), le32both(uint32(len(contData)))...)
	ceData := entry([2]byte{'C', 'E'}, 1, cePayload)

	reader := func(lba uint32, offset uint32, size uint32) ([]byte, error) {
		require.Equal(t, uint32(123), lba)
		require.Equal(t, uint32(0), offset)
		return contData[:size], nil
	}

	info := Parse(ceData, 0, reader)
	require.Equal(t, "from-continuation", info.AlternateName())
}

func TestDetectRockRidgeRequiresSP(t *testing.T) {
	er := entry([2]byte{'E', 'R'}, 1, append([]byte{10, 0, 0, 1}, "IEEE_P1282"...))

	_, ok := DetectRockRidge(er, nil)
	require.False(t, ok)
}

func TestDetectRockRidgeSucceeds(t *testing.T) {
	sp := entry([2]byte{'S', 'P'}, 1, []byte{0xBE, 0xEF, 5})
	er := entry([2]byte{'E', 'R'}, 1, append([]byte{10, 0, 0, 1}, "IEEE_P1282"...))
	data := append(sp, er...)

	skip, ok := DetectRockRidge(data, nil)
	require.True(t, ok)
	require.Equal(t, 5, skip)
}
