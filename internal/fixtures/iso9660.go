package fixtures

import (
	"encoding/binary"
)

const sectorSize = 2048

// putBoth32 writes v as an 8-byte both-byte-order field (little-endian then
// big-endian), the encoding ECMA-119 uses for every 32-bit numeric field.
func putBoth32(dst []byte, v uint32) {
	binary.LittleEndian.PutUint32(dst[0:4], v)
	binary.BigEndian.PutUint32(dst[4:8], v)
}

// putBoth16 writes v as a 4-byte both-byte-order field.
func putBoth16(dst []byte, v uint16) {
	binary.LittleEndian.PutUint16(dst[0:2], v)
	binary.BigEndian.PutUint16(dst[2:4], v)
}

// unspecifiedDateTime fills a 17-byte Volume Descriptor date/time field
// with the "not specified" encoding: sixteen ASCII '0' digits and a zero
// GMT offset byte.
func unspecifiedDateTime(dst []byte) {
	for i := 0; i < 16; i++ {
		dst[i] = '0'
	}
	dst[16] = 0
}

// suspEntry assembles one System Use Sharing Protocol entry: a 2-byte
// signature, 1-byte total length, 1-byte version, and payload.
func suspEntry(sig string, version byte, payload []byte) []byte {
	buf := make([]byte, 4+len(payload))
	buf[0] = sig[0]
	buf[1] = sig[1]
	buf[2] = byte(len(buf))
	buf[3] = version
	copy(buf[4:], payload)
	return buf
}

func pxEntry(mode, links, uid, gid uint32) []byte {
	payload := make([]byte, 32)
	putBoth32(payload[0:8], mode)
	putBoth32(payload[8:16], links)
	putBoth32(payload[16:24], uid)
	putBoth32(payload[24:32], gid)
	return suspEntry("PX", 1, payload)
}

// clEntry marks a placeholder record as standing in for the directory
// recorded at childLBA (Rock Ridge CL: relocated-directory child pointer).
func clEntry(childLBA uint32) []byte {
	payload := make([]byte, 8)
	putBoth32(payload, childLBA)
	return suspEntry("CL", 1, payload)
}

// reEntry marks a directory record as the real, now-relocated, location of
// a directory whose logical position is recorded elsewhere via CL.
func reEntry() []byte {
	return suspEntry("RE", 1, nil)
}

// plEntry records, on a relocated directory's ".." entry, the LBA of its
// true logical parent (Rock Ridge PL).
func plEntry(parentLBA uint32) []byte {
	payload := make([]byte, 8)
	putBoth32(payload, parentLBA)
	return suspEntry("PL", 1, payload)
}

func nmEntry(name string) []byte {
	payload := append([]byte{0x00}, name...)
	return suspEntry("NM", 1, payload)
}

func spEntry() []byte {
	return suspEntry("SP", 1, []byte{0xBE, 0xEF, 0x00})
}

func erEntry(id string) []byte {
	payload := append([]byte{byte(len(id)), 0, 0, 1}, id...)
	return suspEntry("ER", 1, payload)
}

// isoRecord builds one fixed-layout ISO 9660 Directory Record: identifier,
// extent LBA, data length, directory flag, and an optional trailing
// system-use (Rock Ridge) blob.
func isoRecord(identifier string, lba, length uint32, isDir bool, systemUse []byte) []byte {
	idBytes := []byte(identifier)
	fiLen := len(idBytes)
	pad := 0
	if fiLen%2 == 0 {
		pad = 1
	}
	total := 33 + fiLen + pad + len(systemUse)

	buf := make([]byte, total)
	buf[0] = byte(total)
	buf[1] = 0
	putBoth32(buf[2:10], lba)
	putBoth32(buf[10:18], length)
	copy(buf[18:25], []byte{0, 1, 1, 0, 0, 0, 0})
	if isDir {
		buf[25] = 0x02
	}
	buf[26] = 0
	buf[27] = 0
	putBoth16(buf[28:32], 1)
	buf[32] = byte(fiLen)
	copy(buf[33:33+fiLen], idBytes)
	offset := 33 + fiLen
	if pad == 1 {
		offset++
	}
	copy(buf[offset:], systemUse)
	return buf
}

// ucs2BE encodes an ASCII string as big-endian UCS-2, the Joliet file
// identifier encoding.
func ucs2BE(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		out = append(out, byte(r>>8), byte(r))
	}
	return out
}

// jolietRecord builds a Directory Record whose File Identifier is encoded
// UCS-2BE, except for the single-byte "." (\x00) and ".." (\x01) special
// identifiers, which stay raw even under Joliet.
func jolietRecord(identifier string, lba, length uint32, isDir bool, systemUse []byte) []byte {
	var idBytes []byte
	if identifier == "\x00" || identifier == "\x01" {
		idBytes = []byte(identifier)
	} else {
		idBytes = ucs2BE(identifier)
	}
	fiLen := len(idBytes)
	pad := 0
	if fiLen%2 == 0 {
		pad = 1
	}
	total := 33 + fiLen + pad + len(systemUse)

	buf := make([]byte, total)
	buf[0] = byte(total)
	buf[1] = 0
	putBoth32(buf[2:10], lba)
	putBoth32(buf[10:18], length)
	copy(buf[18:25], []byte{0, 1, 1, 0, 0, 0, 0})
	if isDir {
		buf[25] = 0x02
	}
	buf[26] = 0
	buf[27] = 0
	putBoth16(buf[28:32], 1)
	buf[32] = byte(fiLen)
	copy(buf[33:33+fiLen], idBytes)
	offset := 33 + fiLen
	if pad == 1 {
		offset++
	}
	copy(buf[offset:], systemUse)
	return buf
}

// packRecords concatenates directory records into a single sector-sized
// block, zero-padded to sectorSize.
func packRecords(records ...[]byte) []byte {
	buf := make([]byte, sectorSize)
	offset := 0
	for _, r := range records {
		copy(buf[offset:], r)
		offset += len(r)
	}
	return buf
}

// ThreeFileISO builds a minimal, Rock-Ridge-enabled ISO 9660 image with
// three entries: a top-level file, a subdirectory, and a file nested in
// that subdirectory. Sector layout:
//
//	0-15  system area (zero)
//	16    Primary Volume Descriptor
//	17    Volume Descriptor Set Terminator
//	18    root directory extent
//	19    "subdir" directory extent
//	20    "hello.txt" data
//	21    "nested.txt" data
func ThreeFileISO() []byte {
	const (
		rootLBA     = 18
		subdirLBA   = 19
		helloLBA    = 20
		nestedLBA   = 21
		totalSectors = 22
	)

	helloContent := []byte("Hello, World!")
	nestedContent := []byte("nested file contents")

	rootDot := isoRecord("\x00", rootLBA, sectorSize, true, append(spEntry(), erEntry("IEEE_P1282")...))
	rootDotDot := isoRecord("\x01", rootLBA, sectorSize, true, nil)
	helloRec := isoRecord("HELLO.TXT;1", helloLBA, uint32(len(helloContent)), false,
		append(pxEntry(0o100444, 1, 0, 0), nmEntry("hello.txt")...))
	subdirRec := isoRecord("SUBDIR", subdirLBA, sectorSize, true, pxEntry(0o040555, 2, 0, 0))
	rootSector := packRecords(rootDot, rootDotDot, helloRec, subdirRec)

	subDot := isoRecord("\x00", subdirLBA, sectorSize, true, nil)
	subDotDot := isoRecord("\x01", rootLBA, sectorSize, true, nil)
	nestedRec := isoRecord("NESTED.TXT;1", nestedLBA, uint32(len(nestedContent)), false,
		append(pxEntry(0o100444, 1, 0, 0), nmEntry("nested.txt")...))
	subdirSector := packRecords(subDot, subDotDot, nestedRec)

	image := make([]byte, totalSectors*sectorSize)

	pvd := make([]byte, sectorSize)
	pvd[0] = 1 // TYPE_PRIMARY_DESCRIPTOR
	copy(pvd[1:6], "CD001")
	pvd[6] = 1
	body := pvd[7:]
	body[0] = 0 // unused
	copy(body[1:33], padD("FIXTURES"))
	copy(body[33:65], padD("ARCHIVEFS"))
	putBoth32(body[73:81], totalSectors) // volume space size
	putBoth16(body[113:117], 1)          // volume set size
	putBoth16(body[117:121], 1)          // volume sequence number
	putBoth16(body[121:125], sectorSize) // logical block size
	putBoth32(body[125:133], 0)          // path table size
	copy(body[149:149+34], isoRecord("\x00", rootLBA, sectorSize, true, nil))
	unspecifiedDateTime(body[806:823])
	unspecifiedDateTime(body[823:840])
	unspecifiedDateTime(body[840:857])
	unspecifiedDateTime(body[857:874])
	body[874] = 1 // file structure version
	copy(image[16*sectorSize:], pvd)

	term := make([]byte, sectorSize)
	term[0] = 0xFF
	copy(term[1:6], "CD001")
	term[6] = 1
	copy(image[17*sectorSize:], term)

	copy(image[rootLBA*sectorSize:], rootSector)
	copy(image[subdirLBA*sectorSize:], subdirSector)
	copy(image[helloLBA*sectorSize:], padSector(helloContent))
	copy(image[nestedLBA*sectorSize:], padSector(nestedContent))

	return image
}

// JolietISO builds an image carrying both a plain ISO 9660 tree and a
// Joliet Supplementary Volume Descriptor tree, so a mount exercises the
// automatic Joliet-preferred root selection rather than the primary tree.
// The two trees deliberately disagree (the primary root is empty) so that
// a mount reading the wrong one fails the test instead of passing by
// accident. Sector layout:
//
//	0-15  system area (zero)
//	16    Primary Volume Descriptor
//	17    Supplementary Volume Descriptor (Joliet level 3)
//	18    Volume Descriptor Set Terminator
//	19    primary root directory extent (empty)
//	20    Joliet root directory extent
//	21    "hello.txt" data (reachable only through the Joliet tree)
func JolietISO() []byte {
	const (
		primaryRootLBA = 19
		jolietRootLBA  = 20
		helloLBA       = 21
		totalSectors   = 22
	)

	helloContent := []byte("Hello, Joliet!")

	primaryDot := isoRecord("\x00", primaryRootLBA, sectorSize, true, nil)
	primaryDotDot := isoRecord("\x01", primaryRootLBA, sectorSize, true, nil)
	primaryRootSector := packRecords(primaryDot, primaryDotDot)

	jolietDot := jolietRecord("\x00", jolietRootLBA, sectorSize, true, nil)
	jolietDotDot := jolietRecord("\x01", jolietRootLBA, sectorSize, true, nil)
	helloRec := jolietRecord("hello.txt", helloLBA, uint32(len(helloContent)), false, nil)
	jolietRootSector := packRecords(jolietDot, jolietDotDot, helloRec)

	image := make([]byte, totalSectors*sectorSize)

	pvd := make([]byte, sectorSize)
	pvd[0] = 1 // TYPE_PRIMARY_DESCRIPTOR
	copy(pvd[1:6], "CD001")
	pvd[6] = 1
	pvdBody := pvd[7:]
	copy(pvdBody[1:33], padD("FIXTURES"))
	copy(pvdBody[33:65], padD("ARCHIVEFS"))
	putBoth32(pvdBody[73:81], totalSectors)
	putBoth16(pvdBody[113:117], 1)
	putBoth16(pvdBody[117:121], 1)
	putBoth16(pvdBody[121:125], sectorSize)
	putBoth32(pvdBody[125:133], 0)
	copy(pvdBody[149:149+34], isoRecord("\x00", primaryRootLBA, sectorSize, true, nil))
	unspecifiedDateTime(pvdBody[806:823])
	unspecifiedDateTime(pvdBody[823:840])
	unspecifiedDateTime(pvdBody[840:857])
	unspecifiedDateTime(pvdBody[857:874])
	pvdBody[874] = 1
	copy(image[16*sectorSize:], pvd)

	svd := make([]byte, sectorSize)
	svd[0] = 2 // TYPE_SUPPLEMENTARY_DESCRIPTOR
	copy(svd[1:6], "CD001")
	svd[6] = 1
	svdBody := svd[7:]
	copy(svdBody[1:33], ucs2BE("FIXTURES")) // system identifier (UCS-2, unpadded)
	copy(svdBody[33:65], ucs2BE("ARCHIVEFS"))
	putBoth32(svdBody[73:81], totalSectors)
	copy(svdBody[81:84], "%/E") // Joliet level 3 escape sequence
	putBoth16(svdBody[113:117], 1)
	putBoth16(svdBody[117:121], 1)
	putBoth16(svdBody[121:125], sectorSize)
	putBoth32(svdBody[125:133], 0)
	copy(svdBody[149:149+34], isoRecord("\x00", jolietRootLBA, sectorSize, true, nil))
	unspecifiedDateTime(svdBody[806:823])
	unspecifiedDateTime(svdBody[823:840])
	unspecifiedDateTime(svdBody[840:857])
	unspecifiedDateTime(svdBody[857:874])
	svdBody[874] = 1
	copy(image[17*sectorSize:], svd)

	term := make([]byte, sectorSize)
	term[0] = 0xFF
	copy(term[1:6], "CD001")
	term[6] = 1
	copy(image[18*sectorSize:], term)

	copy(image[primaryRootLBA*sectorSize:], primaryRootSector)
	copy(image[jolietRootLBA*sectorSize:], jolietRootSector)
	copy(image[helloLBA*sectorSize:], padSector(helloContent))

	return image
}

// RelocatedDirectoryISO builds a Rock-Ridge-enabled image where a directory
// is relocated via CL/RE: the root carries a CL placeholder named "DEEP"
// whose real contents live under "RR_MOVED", and the copy of "DEEP" that
// physically lives in "RR_MOVED" carries RE so it is hidden from
// RR_MOVED's own listing. The relocated directory's ".." record carries PL
// pointing back to the root. Sector layout:
//
//	0-15  system area (zero)
//	16    Primary Volume Descriptor
//	17    Volume Descriptor Set Terminator
//	18    root directory extent
//	19    "RR_MOVED" directory extent
//	20    relocated "DEEP" directory extent
//	21    "late.txt" data
func RelocatedDirectoryISO() []byte {
	const (
		rootLBA      = 18
		rrMovedLBA   = 19
		deepLBA      = 20
		lateLBA      = 21
		totalSectors = 22
	)

	lateContent := []byte("relocated directory contents")

	rootDot := isoRecord("\x00", rootLBA, sectorSize, true, append(spEntry(), erEntry("IEEE_P1282")...))
	rootDotDot := isoRecord("\x01", rootLBA, sectorSize, true, nil)
	deepPlaceholder := isoRecord("DEEP", 0, 0, true,
		append(pxEntry(0o040555, 2, 0, 0), clEntry(deepLBA)...))
	rrMovedRec := isoRecord("RR_MOVED", rrMovedLBA, sectorSize, true, pxEntry(0o040555, 2, 0, 0))
	rootSector := packRecords(rootDot, rootDotDot, deepPlaceholder, rrMovedRec)

	movedDot := isoRecord("\x00", rrMovedLBA, sectorSize, true, nil)
	movedDotDot := isoRecord("\x01", rootLBA, sectorSize, true, nil)
	deepInMoved := isoRecord("DEEP", deepLBA, sectorSize, true,
		append(pxEntry(0o040555, 2, 0, 0), reEntry()...))
	rrMovedSector := packRecords(movedDot, movedDotDot, deepInMoved)

	deepDot := isoRecord("\x00", deepLBA, sectorSize, true, nil)
	deepDotDot := isoRecord("\x01", rootLBA, sectorSize, true,
		append(pxEntry(0o040555, 2, 0, 0), plEntry(rootLBA)...))
	lateRec := isoRecord("LATE.TXT;1", lateLBA, uint32(len(lateContent)), false,
		append(pxEntry(0o100444, 1, 0, 0), nmEntry("late.txt")...))
	deepSector := packRecords(deepDot, deepDotDot, lateRec)

	image := make([]byte, totalSectors*sectorSize)

	pvd := make([]byte, sectorSize)
	pvd[0] = 1 // TYPE_PRIMARY_DESCRIPTOR
	copy(pvd[1:6], "CD001")
	pvd[6] = 1
	body := pvd[7:]
	copy(body[1:33], padD("FIXTURES"))
	copy(body[33:65], padD("ARCHIVEFS"))
	putBoth32(body[73:81], totalSectors)
	putBoth16(body[113:117], 1)
	putBoth16(body[117:121], 1)
	putBoth16(body[121:125], sectorSize)
	putBoth32(body[125:133], 0)
	copy(body[149:149+34], isoRecord("\x00", rootLBA, sectorSize, true, nil))
	unspecifiedDateTime(body[806:823])
	unspecifiedDateTime(body[823:840])
	unspecifiedDateTime(body[840:857])
	unspecifiedDateTime(body[857:874])
	body[874] = 1
	copy(image[16*sectorSize:], pvd)

	term := make([]byte, sectorSize)
	term[0] = 0xFF
	copy(term[1:6], "CD001")
	term[6] = 1
	copy(image[17*sectorSize:], term)

	copy(image[rootLBA*sectorSize:], rootSector)
	copy(image[rrMovedLBA*sectorSize:], rrMovedSector)
	copy(image[deepLBA*sectorSize:], deepSector)
	copy(image[lateLBA*sectorSize:], padSector(lateContent))

	return image
}

func padD(s string) []byte {
	buf := make([]byte, 32)
	copy(buf, s)
	for i := len(s); i < 32; i++ {
		buf[i] = ' '
	}
	return buf
}

func padSector(content []byte) []byte {
	buf := make([]byte, sectorSize)
	copy(buf, content)
	return buf
}
