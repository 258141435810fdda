package cfb

import (
	"encoding/binary"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// filetimeEpoch is 1601-01-01 UTC, the epoch of the Windows FILETIME
// structure: a 64-bit count of 100-ns ticks since then.
var filetimeEpoch = time.Date(1601, time.January, 1, 0, 0, 0, 0, time.UTC)

func filetimeToTime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	secs := int64(ft/10000000) + filetimeEpoch.Unix()
	nsec := int64(ft%10000000) * 100
	return time.Unix(secs, nsec).UTC()
}

func timeToFiletime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	secs := t.Unix() - filetimeEpoch.Unix()
	if secs < 0 {
		return 0
	}
	return uint64(secs)*10000000 + uint64(t.Nanosecond()/100)
}

// filetimePlausible rejects timestamps wildly outside the range any real
// Office-era document could carry. Out-of-range timestamps are warned
// about but kept rather than rejected.
func filetimePlausible(t time.Time) bool {
	if t.IsZero() {
		return true
	}
	return t.Year() >= 1980 && t.Year() <= 2100
}

var utf16LECodec = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// decodeName decodes a directory entry's 64-byte raw name buffer using
// nameLenBytes (the on-disk NameLength field, in bytes including the NUL
// terminator). It terminates at the first NUL code unit; if the buffer
// holds no NUL, it warns and truncates to nameLenBytes/2 - 1 code units.
func decodeName(raw [64]byte, nameLenBytes uint16, d *diagnostics, idx int) (string, bool) {
	if nameLenBytes == 0 {
		return "", true
	}
	if nameLenBytes < 2 || nameLenBytes > 64 || nameLenBytes%2 != 0 {
		if d != nil {
			d.warn(WarnDirName, idx, endOfChain, "invalid name length field")
		}
		return "", false
	}
	nChars := int(nameLenBytes/2) - 1
	if nChars < 0 {
		nChars = 0
	}
	// look for a NUL code unit within the declared length (or the whole
	// buffer, if the declared length lacks one)
	units := make([]uint16, 32)
	for i := 0; i < 32; i++ {
		units[i] = binary.LittleEndian.Uint16(raw[i*2 : i*2+2])
	}
	end := -1
	for i := 0; i < 32; i++ {
		if units[i] == 0 {
			end = i
			break
		}
	}
	if end == -1 {
		if d != nil {
			d.warn(WarnDirName, idx, endOfChain, "name buffer has no NUL terminator; truncating")
		}
		end = nChars
		if end > 32 {
			end = 32
		}
	}
	b := make([]byte, end*2)
	for i := 0; i < end; i++ {
		binary.LittleEndian.PutUint16(b[i*2:i*2+2], units[i])
	}
	dec, err := utf16LECodec.NewDecoder().Bytes(b)
	if err != nil {
		if d != nil {
			d.warn(WarnDirName, idx, endOfChain, "name is not valid UTF-16LE")
		}
		return "", false
	}
	return string(dec), true
}

// encodeName encodes name as a 64-byte UTF-16LE buffer plus the on-disk
// NameLength field (byte count including the NUL terminator).
func encodeName(name string) ([64]byte, uint16) {
	var raw [64]byte
	if name == "" {
		return raw, 0
	}
	enc, err := utf16LECodec.NewEncoder().Bytes([]byte(name))
	if err != nil {
		enc = nil
	}
	n := len(enc) / 2
	if n > 31 {
		n = 31
		enc = enc[:62]
	}
	copy(raw[:], enc)
	// NUL terminator already zero from allocation
	return raw, uint16((n + 1) * 2)
}

// decodeDirEntry parses one 128-byte directory record. idx is its
// position in the flat array, used only to label diagnostics.
func decodeDirEntry(buf []byte, idx int, v3 bool, d *diagnostics) *entry {
	e := &entry{parent: -1}

	var raw [64]byte
	copy(raw[:], buf[0:64])
	nameLen := binary.LittleEndian.Uint16(buf[64:66])
	name, ok := decodeName(raw, nameLen, d, idx)
	if ok {
		e.name = name
	}

	e.objType = buf[66]
	e.color = buf[67]
	e.left = binary.LittleEndian.Uint32(buf[68:72])
	e.right = binary.LittleEndian.Uint32(buf[72:76])
	e.child = binary.LittleEndian.Uint32(buf[76:80])
	copy(e.clsid[:], buf[80:96])
	e.stateBits = binary.LittleEndian.Uint32(buf[96:100])

	created := binary.LittleEndian.Uint64(buf[100:108])
	modified := binary.LittleEndian.Uint64(buf[108:116])
	e.created = filetimeToTime(created)
	e.modified = filetimeToTime(modified)
	if !filetimePlausible(e.created) || !filetimePlausible(e.modified) {
		if d != nil {
			d.warn(WarnDirTime, idx, endOfChain, "timestamp outside plausible range")
		}
	}

	e.startSect = binary.LittleEndian.Uint32(buf[116:120])
	size := binary.LittleEndian.Uint64(buf[120:128])
	if v3 {
		if size>>32 != 0 {
			if d != nil {
				d.warn(WarnDirSize, idx, endOfChain, "non-zero size high bits in v3 file; forcing to zero")
			}
			size &= 0xFFFFFFFF
		}
	}
	e.size = size

	switch e.objType {
	case objRootStorage:
		if e.left != noStream || e.right != noStream {
			if d != nil {
				d.warn(WarnDirType, idx, endOfChain, "root entry has siblings; ignoring")
			}
			e.left, e.right = noStream, noStream
		}
	case objStream:
		if e.child != noStream {
			if d != nil {
				d.warn(WarnDirType, idx, endOfChain, "stream entry has a child; ignoring")
			}
			e.child = noStream
		}
	case objStorage:
		if e.startSect != 0 || e.size != 0 {
			if d != nil {
				d.warn(WarnDirType, idx, endOfChain, "storage entry has non-zero start sector or size; ignoring")
			}
			e.startSect, e.size = 0, 0
		}
	case objInvalid:
		// unused slot; caller skips these
	default:
		if d != nil {
			d.warn(WarnDirType, idx, endOfChain, "unrecognized object type")
		}
	}
	return e
}

// encodeDirEntry serializes e into a 128-byte record using the
// left/right/child links and color supplied by the red-black tree
// builder.
func encodeDirEntry(e *entry, left, right, child uint32, color uint8) []byte {
	buf := make([]byte, dirEntrySize)
	raw, nameLen := encodeName(e.name)
	copy(buf[0:64], raw[:])
	binary.LittleEndian.PutUint16(buf[64:66], nameLen)
	buf[66] = e.objType
	buf[67] = color
	binary.LittleEndian.PutUint32(buf[68:72], left)
	binary.LittleEndian.PutUint32(buf[72:76], right)
	binary.LittleEndian.PutUint32(buf[76:80], child)
	copy(buf[80:96], e.clsid[:])
	binary.LittleEndian.PutUint32(buf[96:100], e.stateBits)
	binary.LittleEndian.PutUint64(buf[100:108], timeToFiletime(e.created))
	binary.LittleEndian.PutUint64(buf[108:116], timeToFiletime(e.modified))
	binary.LittleEndian.PutUint32(buf[116:120], e.startSect)
	binary.LittleEndian.PutUint64(buf[120:128], e.size)
	return buf
}
