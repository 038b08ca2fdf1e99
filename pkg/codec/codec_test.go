package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestASCII(t *testing.T) {
	require.Equal(t, "HELLO", ASCII([]byte("HELLO      ")))
	require.Equal(t, "", ASCII([]byte("   ")))
}

func TestUTF8(t *testing.T) {
	require.Equal(t, "hello.txt", UTF8([]byte("hello.txt")))
	require.Equal(t, "caf�", UTF8([]byte{'c', 'a', 'f', 0xff}))
}

func TestCP437(t *testing.T) {
	// 0x81 in CP437 maps to U+00FC (ü).
	got := CP437([]byte{'u', 0x81})
	require.Equal(t, "uü", got)
}

func TestUTF16BE(t *testing.T) {
	got := UTF16BE([]byte{0x00, 0x48, 0x00, 0x69})
	require.Equal(t, "Hi", got)
}

func TestDecodeDOSDateTime(t *testing.T) {
	// 2023-06-15 13:30:42-ish packed fields.
	date := uint16(((2023 - 1980) << 9) | (6 << 5) | 15)
	dosTime := uint16((13 << 11) | (30 << 5) | (21))
	got := DecodeDOSDateTime(date, dosTime)
	require.Equal(t, 2023, got.Year())
	require.Equal(t, time.Month(6), got.Month())
	require.Equal(t, 15, got.Day())
	require.Equal(t, 13, got.Hour())
	require.Equal(t, 30, got.Minute())
	require.Equal(t, 42, got.Second())
}

func TestDecodeDOSDateTimeClampsOutOfRange(t *testing.T) {
	// month=0, day=0 from the packed fields should clamp rather than panic.
	got := DecodeDOSDateTime(0, 0)
	require.Equal(t, time.Month(1), got.Month())
	require.Equal(t, 1, got.Day())
}
