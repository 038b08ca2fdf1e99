package encoding

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/bgrewell/archivefs/pkg/codec"
)

// UnmarshalUint32LSBMSB converts an 8-byte field encoded in both little‑
// and big‑endian orders back to a uint32 value. It verifies that both halves
// are equal. If they are not, it returns an error.
func UnmarshalUint32LSBMSB(data [8]byte) (uint32, error) {
	// Decode little-endian value from the first four bytes.
	little := binary.LittleEndian.Uint32(data[0:4])
	// Decode big-endian value from the last four bytes.
	big := binary.BigEndian.Uint32(data[4:8])
	if little != big {
		return 0, fmt.Errorf("mismatched both-byte orders: little-endian value %d != big-endian value %d", little, big)
	}
	return little, nil
}

// UnmarshalUint16LSBMSB converts a 4-byte field encoded in both little‑
// and big‑endian orders back to a uint16 value. It verifies that both halves
// match; if they do not, it returns an error.
func UnmarshalUint16LSBMSB(data [4]byte) (uint16, error) {
	// Read the little-endian value from the first two bytes.
	little := binary.LittleEndian.Uint16(data[0:2])
	// Read the big-endian value from the last two bytes.
	big := binary.BigEndian.Uint16(data[2:4])
	if little != big {
		return 0, fmt.Errorf("mismatched both-byte orders: little-endian value %d != big-endian value %d", little, big)
	}
	return little, nil
}

// UnmarshalDateTime converts a 17-byte ISO9660 date/time field into a time.Time.
// It expects the first 16 bytes to be ASCII digits representing
// YYYY MM DD hh mm ss cc, and the 17th byte as the offset in 15-minute intervals.
// Note: This format is used in Volume Descriptors
func UnmarshalDateTime(b [17]byte) (time.Time, error) {
	// Detect "unspecified" => 16 ASCII '0' + offset=0
	isUnspecified := true
	for i := 0; i < 16; i++ {
		if b[i] != '0' {
			isUnspecified = false
			break
		}
	}
	if isUnspecified && b[16] == 0 {
		return time.Time{}, nil
	}

	dtStr := string(b[:16])
	var (
		year, mon, day int
		hour, min, sec int
		hundredths     int
	)
	_, err := fmt.Sscanf(dtStr, "%4d%2d%2d%2d%2d%2d%2d",
		&year, &mon, &day, &hour, &min, &sec, &hundredths)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse error: %v", err)
	}
	nsec := hundredths * 10_000_000

	offset15 := int8(b[16])
	if offset15 < -48 || offset15 > 52 {
		return time.Time{}, fmt.Errorf("offset %d out of ISO9660 bounds", offset15)
	}
	offsetSec := int(offset15) * 900 // 15 min = 900s

	// Use UTC if offset=0, else a numeric zone for offset
	var loc *time.Location
	if offsetSec == 0 {
		loc = time.UTC
	} else {
		// name = "" => prints like "UTC-0800" in logs
		loc = time.FixedZone("", offsetSec)
	}

	return time.Date(year, time.Month(mon), day, hour, min, sec, nsec, loc), nil
}

// UnmarshalRecordingDateTime converts a 7-byte Recording Date and Time field into a time.Time.
// The fields are interpreted as follows:
//
//	Byte 1: years since 1900,
//	Byte 2: month (1-12),
//	Byte 3: day,
//	Byte 4: hour,
//	Byte 5: minute,
//	Byte 6: second,
//	Byte 7: offset from GMT in 15-minute intervals (as a signed value).
//
// If all seven bytes are zero, it indicates that the date/time are not specified.
// Note: This type format is used in DirectoryRecords
func UnmarshalRecordingDateTime(b [7]byte) (time.Time, error) {
	// If all fields are zero, return the zero time.
	allZero := true
	for _, v := range b {
		if v != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return time.Time{}, nil
	}

	year := int(b[0]) + 1900
	month := time.Month(b[1])
	day := int(b[2])
	hour := int(b[3])
	minute := int(b[4])
	second := int(b[5])
	// b[6] is stored as a byte but represents a signed 8-bit integer.
	offset15 := int8(b[6])
	offsetSec := int(offset15) * 15 * 60

	loc := time.FixedZone("ISO9660", offsetSec)
	return time.Date(year, month, day, hour, minute, second, 0, loc), nil
}

// DecodeUCS2BigEndian converts a Joliet UCS-2 Big-Endian field to a Go
// (UTF-8) string, via the shared golang.org/x/text-backed decoder in
// pkg/codec.
func DecodeUCS2BigEndian(ucs2 []byte) string {
	return codec.UTF16BE(ucs2)
}
