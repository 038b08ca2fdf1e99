package encoding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUnmarshalUint32LSBMSB(t *testing.T) {
	tests := []struct {
		name    string
		input   [8]byte
		want    uint32
		wantErr bool
	}{
		{
			name:  "simple",
			input: [8]byte{0x04, 0x03, 0x02, 0x01, 0x01, 0x02, 0x03, 0x04},
			want:  0x01020304,
		},
		{
			name:    "mismatch",
			input:   [8]byte{0x04, 0x03, 0x02, 0x01, 0xA1, 0xB2, 0xC3, 0xD4},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnmarshalUint32LSBMSB(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestUnmarshalUint16LSBMSB(t *testing.T) {
	tests := []struct {
		name    string
		input   [4]byte
		want    uint16
		wantErr bool
	}{
		{
			name:  "simple",
			input: [4]byte{0x34, 0x12, 0x12, 0x34},
			want:  0x1234,
		},
		{
			name:    "mismatch",
			input:   [4]byte{0x34, 0x12, 0xA1, 0xB2},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnmarshalUint16LSBMSB(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestUnmarshalDateTime(t *testing.T) {
	t.Run("unspecified is zero time", func(t *testing.T) {
		var b [17]byte
		for i := 0; i < 16; i++ {
			b[i] = '0'
		}
		got, err := UnmarshalDateTime(b)
		require.NoError(t, err)
		require.True(t, got.IsZero())
	})

	t.Run("positive offset", func(t *testing.T) {
		var b [17]byte
		copy(b[:16], []byte("2025010203040550"))
		b[16] = 32 // +8 hours
		got, err := UnmarshalDateTime(b)
		require.NoError(t, err)
		require.Equal(t, 2025, got.Year())
		require.Equal(t, time.Month(1), got.Month())
		require.Equal(t, 2, got.Day())
		require.Equal(t, 3, got.Hour())
		_, off := got.Zone()
		require.Equal(t, 8*3600, off)
	})

	t.Run("offset out of range", func(t *testing.T) {
		var b [17]byte
		copy(b[:16], []byte("2025051010300000"))
		b[16] = 56
		_, err := UnmarshalDateTime(b)
		require.Error(t, err)
	})
}

func TestUnmarshalRecordingDateTime(t *testing.T) {
	t.Run("all zero is zero time", func(t *testing.T) {
		got, err := UnmarshalRecordingDateTime([7]byte{})
		require.NoError(t, err)
		require.True(t, got.IsZero())
	})

	t.Run("negative offset", func(t *testing.T) {
		input := [7]byte{50, 5, 10, 23, 59, 59, 0xE8} // 1950-05-10 23:59:59, -6h
		got, err := UnmarshalRecordingDateTime(input)
		require.NoError(t, err)
		require.Equal(t, 1950, got.Year())
		require.Equal(t, time.Month(5), got.Month())
		_, off := got.Zone()
		require.Equal(t, -6*3600, off)
	})
}

func TestDecodeUCS2BigEndian(t *testing.T) {
	got := DecodeUCS2BigEndian([]byte{0x00, 0x48, 0x00, 0x69})
	require.Equal(t, "Hi", got)
}
