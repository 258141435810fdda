package cfb

import "encoding/binary"

const lenHeader = 512

// header is the decoded 512-byte container header, including the 109
// inline DIFAT entries. Entries held in dedicated DIFSECT sectors are
// not part of it; readDifat collects those.
type header struct {
	minorVersion   uint16
	majorVersion   uint16 // dll_version: 3 or 4
	sectorShift    uint16
	miniShift      uint16
	dirSectCount   uint32 // unused for v3
	fatSectCount   uint32
	dirStart       uint32
	miniCutoff     uint32
	miniFatStart   uint32
	miniFatCount   uint32
	difatStart     uint32
	difatCount     uint32
	inlineDifat    [109]uint32

	sectorSize uint32 // derived: 1 << sectorShift
}

// decodeHeader parses the fixed 76-byte preamble plus the 109 inline
// DIFAT entries from a 512-byte buffer. It does not walk additional
// DIFSECT sectors; see readDifat (fat.go) for that.
func decodeHeader(buf []byte, d *diagnostics) (*header, error) {
	if len(buf) < lenHeader {
		return nil, newErr(ErrHeaderError, "header buffer too short")
	}
	sig := binary.LittleEndian.Uint64(buf[0:8])
	if sig != signature {
		return nil, newErr(ErrInvalidMagic, "bad magic bytes")
	}
	h := &header{}
	h.minorVersion = binary.LittleEndian.Uint16(buf[24:26])
	h.majorVersion = binary.LittleEndian.Uint16(buf[26:28])
	bom := binary.LittleEndian.Uint16(buf[28:30])
	if bom != byteOrderMark {
		return nil, newErr(ErrInvalidBom, "byte-order mark is not little-endian")
	}
	h.sectorShift = binary.LittleEndian.Uint16(buf[30:32])
	h.miniShift = binary.LittleEndian.Uint16(buf[32:34])

	if h.sectorShift != 9 && h.sectorShift != 12 {
		return nil, newErr(ErrHeaderError, "sector shift must be 9 or 12")
	}
	if h.miniShift != 6 {
		return nil, newErr(ErrHeaderError, "mini sector shift must be 6")
	}
	h.sectorSize = 1 << h.sectorShift

	if h.majorVersion != 3 && h.majorVersion != 4 {
		if d != nil {
			d.warn(WarnHeaderVersion, -1, endOfChain, "unrecognized dll_version; falling back to sector-shift-derived behavior")
		}
	}

	h.dirSectCount = binary.LittleEndian.Uint32(buf[40:44])
	h.fatSectCount = binary.LittleEndian.Uint32(buf[44:48])
	h.dirStart = binary.LittleEndian.Uint32(buf[48:52])
	// buf[52:56] transaction signature, ignored
	h.miniCutoff = binary.LittleEndian.Uint32(buf[56:60])
	h.miniFatStart = binary.LittleEndian.Uint32(buf[60:64])
	h.miniFatCount = binary.LittleEndian.Uint32(buf[64:68])
	h.difatStart = binary.LittleEndian.Uint32(buf[68:72])
	h.difatCount = binary.LittleEndian.Uint32(buf[72:76])

	for i := 0; i < difatInline; i++ {
		off := 76 + i*4
		h.inlineDifat[i] = binary.LittleEndian.Uint32(buf[off : off+4])
	}
	return h, nil
}

// encodeHeader serializes h plus the first 109 FAT sector pointers into
// a full sector-sized buffer, zero-padded past byte 511 when sectorSize
// is 4096.
func encodeHeader(h *header, fatSectors []uint32) []byte {
	buf := make([]byte, h.sectorSize)
	binary.LittleEndian.PutUint64(buf[0:8], signature)
	// bytes 8:24 CLSID, left zero
	binary.LittleEndian.PutUint16(buf[24:26], h.minorVersion)
	binary.LittleEndian.PutUint16(buf[26:28], h.majorVersion)
	binary.LittleEndian.PutUint16(buf[28:30], byteOrderMark)
	binary.LittleEndian.PutUint16(buf[30:32], h.sectorShift)
	binary.LittleEndian.PutUint16(buf[32:34], h.miniShift)
	// bytes 34:40 reserved, left zero
	binary.LittleEndian.PutUint32(buf[40:44], h.dirSectCount)
	binary.LittleEndian.PutUint32(buf[44:48], h.fatSectCount)
	binary.LittleEndian.PutUint32(buf[48:52], h.dirStart)
	// bytes 52:56 transaction signature, left zero
	binary.LittleEndian.PutUint32(buf[56:60], h.miniCutoff)
	binary.LittleEndian.PutUint32(buf[60:64], h.miniFatStart)
	binary.LittleEndian.PutUint32(buf[64:68], h.miniFatCount)
	binary.LittleEndian.PutUint32(buf[68:72], h.difatStart)
	binary.LittleEndian.PutUint32(buf[72:76], h.difatCount)

	for i := 0; i < difatInline; i++ {
		off := 76 + i*4
		if i < len(fatSectors) {
			binary.LittleEndian.PutUint32(buf[off:off+4], fatSectors[i])
		} else {
			binary.LittleEndian.PutUint32(buf[off:off+4], freeSect)
		}
	}
	// remaining bytes (512 onward, when sectorSize == 4096) stay zero
	return buf
}
