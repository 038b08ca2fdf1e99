// Package codec centralizes the text and timestamp decoders shared by the
// ISO 9660 and ZIP readers: fixed-width ASCII fields, lenient UTF-8 (ZIP
// general-purpose flag bit 11), Joliet's UCS-2/UTF-16BE names, and the
// MS-DOS date/time pairs stored in ZIP central directory records.
package codec

import (
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// utf16BEDecoder is shared across calls; golang.org/x/text decoders are
// safe for concurrent use once constructed.
var utf16BEDecoder = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()

// cp437Decoder decodes legacy ZIP entry names: the APPNOTE default before
// general-purpose flag bit 11 (language encoding flag) opted names into
// UTF-8.
var cp437Decoder = charmap.CodePage437.NewDecoder()

// CP437 decodes a ZIP entry name recorded without the UTF-8 flag set.
func CP437(b []byte) string {
	out, err := cp437Decoder.String(string(b))
	if err != nil {
		return strings.ToValidUTF8(string(b), "?")
	}
	return out
}

// ASCII trims trailing ISO9660 filler (space) bytes from a fixed-width
// a-character or d-character field.
func ASCII(b []byte) string {
	return strings.TrimRight(string(b), " ")
}

// UTF8 decodes a byte slice as UTF-8, substituting the Unicode replacement
// character for any invalid sequence rather than failing. ZIP entry names
// use this path when general-purpose flag bit 11 is set.
func UTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

// UTF16BE decodes a Joliet name field (big-endian UCS-2, no byte-order
// mark) into a Go string. Invalid code units decode as the Unicode
// replacement character rather than truncating the name.
func UTF16BE(b []byte) string {
	out, _, err := transform.String(utf16BEDecoder, string(b))
	if err != nil {
		// Fall back to a conservative manual decode rather than losing the
		// name entirely; malformed Joliet names are rare but not fatal.
		return manualUTF16BE(b)
	}
	return out
}

func manualUTF16BE(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return string(utf16Decode(units))
}

// utf16Decode is the last-resort manual surrogate-pair decoder for input
// the x/text transformer rejects outright.
func utf16Decode(units []uint16) []rune {
	runes := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		switch {
		case u < 0xD800 || u > 0xDFFF:
			runes = append(runes, rune(u))
		case u <= 0xDBFF && i+1 < len(units) && units[i+1] >= 0xDC00 && units[i+1] <= 0xDFFF:
			r := (rune(u)-0xD800)<<10 | (rune(units[i+1]) - 0xDC00)
			runes = append(runes, r+0x10000)
			i++
		default:
			runes = append(runes, '�')
		}
	}
	return runes
}

// DecodeDOSDateTime converts a ZIP central directory's packed MS-DOS date
// and time fields into a time.Time in UTC. Out-of-range fields (a "0"
// day/month some tools emit for synthetic entries) are clamped rather than
// rejected, matching common archiver leniency.
func DecodeDOSDateTime(date, dosTime uint16) time.Time {
	year := int(date>>9) + 1980
	month := int((date >> 5) & 0x0F)
	day := int(date & 0x1F)
	hour := int((dosTime >> 11) & 0x1F)
	minute := int((dosTime >> 5) & 0x3F)
	second := int(dosTime&0x1F) * 2

	if month < 1 {
		month = 1
	} else if month > 12 {
		month = 12
	}
	if day < 1 {
		day = 1
	}
	if hour > 23 {
		hour = 23
	}
	if minute > 59 {
		minute = 59
	}
	if second > 59 {
		second = 59
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
}
