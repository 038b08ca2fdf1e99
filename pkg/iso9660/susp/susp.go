// Package susp implements the System Use Sharing Protocol walk described by
// IEEE P1282 (Rock Ridge) atop ISO 9660 directory records: SP/ER extension
// identification, CE continuation-area chasing, and the PX/PN/SL/NM/CL/PL/
// RE/TF/RR entry variants that give ISO 9660 entries POSIX semantics.
package susp

import (
	"time"

	"github.com/bgrewell/archivefs/pkg/iso9660/encoding"
)

// maxContinuationDepth bounds CE-follow recursion against crafted loops.
const maxContinuationDepth = 32

// ExtentReader resolves size bytes from a continuation area named by a CE
// entry (LBA plus byte offset within that logical block).
type ExtentReader func(lba uint32, offset uint32, size uint32) ([]byte, error)

// SLComponent is one path component of a symlink target, in source order.
type SLComponent struct {
	Continue bool // this component's content continues into the next component record
	Current  bool // "."
	Parent   bool // ".."
	Root     bool // "/"
	Content  string
}

// Info is the accumulated Rock Ridge state for a single directory record,
// built by walking every SUSP entry (including ones reached through CE
// continuation areas) in its system-use field.
type Info struct {
	// SawSP/SPSkip record the SP entry, present only on a volume's "."
	// root record.
	SawSP  bool
	SPSkip uint8

	// ExtensionIdentifier is the ER entry's identifier string, e.g.
	// "IEEE_P1282" for Rock Ridge 1.12 or "RRIP_1991A" for 1.09.
	ExtensionIdentifier string
	SawLegacyRR         bool // a bare "RR" entry (pre-1.09 Rock Ridge marker)

	Mode         *uint32
	Links        *uint32
	UID          *uint32
	GID          *uint32
	SerialNumber *uint32

	DeviceMajor *uint32
	DeviceMinor *uint32

	nameParts    []string
	nameChaining bool // previous NM instance set the CONTINUE bit

	symlinkComponents []SLComponent
	slChaining        bool // previous SL entry set the CONTINUE bit

	ChildLBA  *uint32 // CL: this placeholder stands in for the directory at ChildLBA
	ParentLBA *uint32 // PL: in a relocated directory's "..", the true parent's LBA
	Relocated bool     // RE: this is the original, now-hidden, location

	CreationTime     *time.Time
	ModificationTime *time.Time
	AccessTime       *time.Time
	AttributeTime    *time.Time
	BackupTime       *time.Time
	ExpirationTime   *time.Time
	EffectiveTime    *time.Time
}

// HasRockRidge reports whether any Rock Ridge extension marker was seen:
// a recognized extension identifier or the legacy RR marker.
func (info *Info) HasRockRidge() bool {
	if info == nil {
		return false
	}
	return info.ExtensionIdentifier != "" || info.SawLegacyRR
}

// AlternateName returns the concatenated NM chain, or "" if no NM entry was
// present.
func (info *Info) AlternateName() string {
	if info == nil || len(info.nameParts) == 0 {
		return ""
	}
	out := ""
	for _, p := range info.nameParts {
		out += p
	}
	return out
}

// IsSymlink reports whether any SL entry was present.
func (info *Info) IsSymlink() bool {
	return info != nil && len(info.symlinkComponents) > 0
}

// SymlinkPath renders the SL component chain into a slash-separated path,
// per the component-flag dispatch in the ISO record layer's symlinkPath
// rule: CURRENT -> "./", PARENT -> "../", ROOT -> "/", else the decoded
// content followed by "/" unless the component continues.
func (info *Info) SymlinkPath() string {
	if info == nil {
		return ""
	}
	out := ""
	for _, c := range info.symlinkComponents {
		switch {
		case c.Current:
			out += "./"
		case c.Parent:
			out += "../"
		case c.Root:
			out += "/"
		default:
			out += c.Content
			if !c.Continue {
				out += "/"
			}
		}
	}
	for len(out) > 0 && out[len(out)-1] == '/' {
		out = out[:len(out)-1]
	}
	return out
}

// IsRelocatedPlaceholder reports whether this record is a CL placeholder
// whose real directory contents live at ChildLBA.
func (info *Info) IsRelocatedPlaceholder() bool {
	return info != nil && info.ChildLBA != nil
}

// Parse walks the SUSP area of a single directory record's system-use
// field, starting rockRidgeOffset bytes in (the SP-reported skip count
// inherited from the volume root), and returns the accumulated Rock Ridge
// state. A CE entry whose continuation area cannot be read truncates the
// walk at that point rather than failing it, per the archive's general
// leniency toward over-reserved system-use areas.
func Parse(data []byte, rockRidgeOffset int, readExtent ExtentReader) *Info {
	info := &Info{}
	walk(info, data, rockRidgeOffset, readExtent, 0)
	return info
}

func walk(info *Info, data []byte, start int, readExtent ExtentReader, depth int) {
	if depth > maxContinuationDepth {
		return
	}
	i := start
	for {
		if len(data)-i < 4 {
			return
		}
		sig := [2]byte{data[i], data[i+1]}
		length := int(data[i+2])
		version := data[i+3]
		if length < 4 || i+length > len(data) {
			return
		}
		payload := data[i+4 : i+length]

		switch sig {
		case [2]byte{'S', 'P'}:
			if len(payload) >= 3 && payload[0] == 0xBE && payload[1] == 0xEF {
				info.SawSP = true
				info.SPSkip = payload[2]
			}
		case [2]byte{'S', 'T'}:
			return
		case [2]byte{'E', 'R'}, [2]byte{'E', 'S'}:
			parseER(info, payload)
		case [2]byte{'R', 'R'}:
			info.SawLegacyRR = true
		case [2]byte{'P', 'X'}:
			parsePX(info, payload)
		case [2]byte{'P', 'N'}:
			parsePN(info, payload)
		case [2]byte{'S', 'L'}:
			parseSL(info, payload)
		case [2]byte{'N', 'M'}:
			parseNM(info, payload)
		case [2]byte{'C', 'L'}:
			if lba, ok := bothOrder32(payload); ok {
				info.ChildLBA = &lba
			}
		case [2]byte{'P', 'L'}:
			if lba, ok := bothOrder32(payload); ok {
				info.ParentLBA = &lba
			}
		case [2]byte{'R', 'E'}:
			info.Relocated = true
		case [2]byte{'T', 'F'}:
			parseTF(info, payload, version)
		case [2]byte{'C', 'E'}:
			if readExtent != nil {
				if cont, ok := parseCEAndRead(payload, readExtent); ok {
					walk(info, cont, 0, readExtent, depth+1)
				}
			}
			return
		}

		i += length
	}
}

func bothOrder32(payload []byte) (uint32, bool) {
	if len(payload) < 8 {
		return 0, false
	}
	var b [8]byte
	copy(b[:], payload[:8])
	v, err := encoding.UnmarshalUint32LSBMSB(b)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseCEAndRead(payload []byte, readExtent ExtentReader) ([]byte, bool) {
	if len(payload) < 24 {
		return nil, false
	}
	extent, ok1 := bothOrder32(payload[0:8])
	offset, ok2 := bothOrder32(payload[8:16])
	size, ok3 := bothOrder32(payload[16:24])
	if !ok1 || !ok2 || !ok3 {
		return nil, false
	}
	data, err := readExtent(extent, offset, size)
	if err != nil {
		return nil, false
	}
	return data, true
}

func parseER(info *Info, payload []byte) {
	if len(payload) < 4 {
		return
	}
	idLen := int(payload[0])
	descLen := int(payload[1])
	srcLen := int(payload[2])
	rest := payload[4:]
	if idLen > len(rest) {
		return
	}
	info.ExtensionIdentifier = string(rest[:idLen])
	_ = descLen
	_ = srcLen
}

func parsePX(info *Info, payload []byte) {
	if len(payload) < 32 {
		return
	}
	if mode, ok := bothOrder32(payload[0:8]); ok {
		info.Mode = &mode
	}
	if links, ok := bothOrder32(payload[8:16]); ok {
		info.Links = &links
	}
	if uid, ok := bothOrder32(payload[16:24]); ok {
		info.UID = &uid
	}
	if gid, ok := bothOrder32(payload[24:32]); ok {
		info.GID = &gid
	}
	if len(payload) >= 40 {
		if serial, ok := bothOrder32(payload[32:40]); ok {
			info.SerialNumber = &serial
		}
	}
}

func parsePN(info *Info, payload []byte) {
	if len(payload) < 16 {
		return
	}
	if major, ok := bothOrder32(payload[0:8]); ok {
		info.DeviceMajor = &major
	}
	if minor, ok := bothOrder32(payload[8:16]); ok {
		info.DeviceMinor = &minor
	}
}

const (
	nmFlagContinue = 0x01
	nmFlagCurrent  = 0x02
	nmFlagParent   = 0x04
)

func parseNM(info *Info, payload []byte) {
	if len(payload) < 1 {
		return
	}
	flags := payload[0]
	name := string(payload[1:])

	if flags&nmFlagCurrent != 0 {
		info.nameParts = append(info.nameParts, ".")
	} else if flags&nmFlagParent != 0 {
		info.nameParts = append(info.nameParts, "..")
	} else {
		info.nameParts = append(info.nameParts, name)
	}
	info.nameChaining = flags&nmFlagContinue != 0
}

const (
	slCompContinue = 0x01
	slCompCurrent  = 0x02
	slCompParent   = 0x04
	slCompRoot     = 0x08
)

func parseSL(info *Info, payload []byte) {
	if len(payload) < 1 {
		return
	}
	i := 1
	for i+2 <= len(payload) {
		flags := payload[i]
		length := int(payload[i+1])
		i += 2
		if i+length > len(payload) {
			break
		}
		content := string(payload[i : i+length])
		i += length

		info.symlinkComponents = append(info.symlinkComponents, SLComponent{
			Continue: flags&slCompContinue != 0,
			Current:  flags&slCompCurrent != 0,
			Parent:   flags&slCompParent != 0,
			Root:     flags&slCompRoot != 0,
			Content:  content,
		})
	}
}

const (
	tfCreation   = 0x01
	tfModify     = 0x02
	tfAccess     = 0x04
	tfAttributes = 0x08
	tfBackup     = 0x10
	tfExpiration = 0x20
	tfEffective  = 0x40
	tfLongForm   = 0x80
)

func parseTF(info *Info, payload []byte, _ byte) {
	if len(payload) < 1 {
		return
	}
	flags := payload[0]
	longForm := flags&tfLongForm != 0
	stampSize := 7
	if longForm {
		stampSize = 17
	}

	i := 1
	readStamp := func() (time.Time, bool) {
		if i+stampSize > len(payload) {
			return time.Time{}, false
		}
		var t time.Time
		var err error
		if longForm {
			var b [17]byte
			copy(b[:], payload[i:i+17])
			t, err = encoding.UnmarshalDateTime(b)
		} else {
			var b [7]byte
			copy(b[:], payload[i:i+7])
			t, err = encoding.UnmarshalRecordingDateTime(b)
		}
		i += stampSize
		return t, err == nil
	}

	if flags&tfCreation != 0 {
		if t, ok := readStamp(); ok {
			info.CreationTime = &t
		}
	}
	if flags&tfModify != 0 {
		if t, ok := readStamp(); ok {
			info.ModificationTime = &t
		}
	}
	if flags&tfAccess != 0 {
		if t, ok := readStamp(); ok {
			info.AccessTime = &t
		}
	}
	if flags&tfAttributes != 0 {
		if t, ok := readStamp(); ok {
			info.AttributeTime = &t
		}
	}
	if flags&tfBackup != 0 {
		if t, ok := readStamp(); ok {
			info.BackupTime = &t
		}
	}
	if flags&tfExpiration != 0 {
		if t, ok := readStamp(); ok {
			info.ExpirationTime = &t
		}
	}
	if flags&tfEffective != 0 {
		if t, ok := readStamp(); ok {
			info.EffectiveTime = &t
		}
	}
}

// DetectRockRidge inspects the root directory's "." record system-use
// field for the SP magic followed by an RR or ER(IEEE_P1282) marker, per
// the mount procedure's one-time root check. It returns the SP skip count
// to apply to every subsequent record, or ok=false if Rock Ridge is not
// active on this volume.
func DetectRockRidge(dotSystemUse []byte, readExtent ExtentReader) (skip int, ok bool) {
	info := Parse(dotSystemUse, 0, readExtent)
	if !info.SawSP {
		return 0, false
	}
	if !info.HasRockRidge() {
		return 0, false
	}
	return int(info.SPSkip), true
}
