package cfb

import "encoding/binary"

// maxFatSectorsPerByte bounds the number of FAT/mini-FAT sectors a file
// of a given size may plausibly declare, guarding against hostile or
// corrupt headers that would otherwise drive unbounded allocation.
const maxFatSectorsPerByte = 1.0 / 256 // one FAT sector per 256 bytes of file is already generous

func sanityCap(fileSize int64) int {
	cap := int(float64(fileSize)*maxFatSectorsPerByte) + 16
	if cap < 4096 {
		cap = 4096
	}
	return cap
}

// readDifat walks the DIFAT: the 109 inline entries from the header,
// then any additional entries reached by following h.difatStart through
// DIFSECT sectors. Returns the list of FAT sector indices in DIFAT
// order.
func readDifat(h *header, store *sectorStore, fileSize int64, d *diagnostics) ([]uint32, error) {
	difat := make([]uint32, 0, difatInline+int(h.difatCount)*int(h.sectorSize/4-1))
	for _, v := range h.inlineDifat {
		if v == freeSect {
			continue
		}
		difat = append(difat, v)
	}

	if h.difatCount == 0 {
		return difat, nil
	}

	cap := sanityCap(fileSize)
	perSector := int(h.sectorSize/4) - 1

	slow, fast := h.difatStart, h.difatStart
	sect := h.difatStart
	count := 0
	for sect != endOfChain && sect != freeSect {
		if count > cap || len(difat) > cap {
			return nil, newErr(ErrLargeNormalFat, "DIFAT chain exceeds sanity limit")
		}
		buf, err := store.read(sect)
		if err != nil {
			return nil, err
		}
		for j := 0; j < perSector; j++ {
			v := binary.LittleEndian.Uint32(buf[j*4 : j*4+4])
			if v != freeSect {
				difat = append(difat, v)
			}
		}
		next := binary.LittleEndian.Uint32(buf[len(buf)-4:])
		count++

		// tortoise-and-hare loop detection over the DIFSECT chain
		slow = difatNext(store, slow)
		if fast != endOfChain && fast != freeSect {
			fast = difatNext(store, fast)
		}
		if fast != endOfChain && fast != freeSect {
			fast = difatNext(store, fast)
		}
		if slow != endOfChain && slow != freeSect && slow == fast {
			return nil, newErr(ErrMasterLoop, "cycle detected in DIFAT chain")
		}

		sect = next
	}
	return difat, nil
}

// difatNext reads the "next DIFSECT" link (the final 4 bytes) of the
// DIFSECT at sn, used only for the tortoise/hare loop check in
// readDifat so that a malformed link does not hang the reader.
func difatNext(store *sectorStore, sn uint32) uint32 {
	buf, err := store.read(sn)
	if err != nil {
		return endOfChain
	}
	return binary.LittleEndian.Uint32(buf[len(buf)-4:])
}

// buildFAT assembles the flat FAT array by concatenating the contents of
// each FAT sector named in difat, in DIFAT order. It also sanity-warns
// (not fails) when a FAT sector is not self-marked fatSect.
func buildFAT(difat []uint32, store *sectorStore, fileSize int64, d *diagnostics) ([]uint32, error) {
	cap := sanityCap(fileSize)
	if len(difat) > cap {
		return nil, newErr(ErrLargeNormalFat, "FAT exceeds sanity limit")
	}
	entries := store.size / 4
	fat := make([]uint32, 0, len(difat)*int(entries))
	for _, sn := range difat {
		buf, err := store.read(sn)
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j < entries; j++ {
			fat = append(fat, binary.LittleEndian.Uint32(buf[j*4:j*4+4]))
		}
	}
	for _, sn := range difat {
		if d != nil && int(sn) < len(fat) && fat[sn] != fatSect {
			d.warn(WarnMasterSectorMismarked, -1, sn, "FAT sector not self-marked FATSECT")
		}
	}
	return fat, nil
}

// buildMiniFAT walks miniFatStart through the (already built) FAT,
// concatenating mini-FAT sector contents into a flat array. Returns
// nil, nil if there is no mini-FAT.
func buildMiniFAT(h *header, fat []uint32, store *sectorStore, fileSize int64, d *diagnostics) ([]uint32, error) {
	if h.miniFatStart == endOfChain || h.miniFatCount == 0 {
		return nil, nil
	}
	chain, err := walkChain(h.miniFatStart, fat, ErrNormalLoop, d, h.miniFatStart)
	if err != nil {
		return nil, err
	}
	cap := sanityCap(fileSize)
	if len(chain) > cap {
		return nil, newErr(ErrLargeMiniFat, "mini-FAT exceeds sanity limit")
	}
	entries := store.size / 4
	mfat := make([]uint32, 0, len(chain)*int(entries))
	for _, sn := range chain {
		buf, err := store.read(sn)
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j < entries; j++ {
			mfat = append(mfat, binary.LittleEndian.Uint32(buf[j*4:j*4+4]))
		}
	}
	return mfat, nil
}

// --- write side: the sizing fixpoint and sector assignment ---

// layout is the result of the writer's sizing fixpoint: sector counts
// and the physical sector ranges assigned to each metadata region.
type layout struct {
	sectorSize uint32

	dirSectors     []uint32
	miniStorage    []uint32 // physical sectors holding the packed mini-stream
	miniFatSectors []uint32
	fatSectors     []uint32
	difatSectors   []uint32

	totalMiniSectors int // count of logical mini-sectors across all mini streams
	logicalSectors   uint32
}

// fixpoint computes (fatSectors, difatSectors): iterate until both
// counts stop changing, bounded at 20 rounds. dirSectors, normalSectors,
// miniStorageSectors and miniFatSectors are the (fixed, content-derived)
// sector counts of those four regions; they do not depend on the
// FAT/DIFAT sizes being solved for.
func fixpoint(dirSectors, normalSectors, miniStorageSectors, miniFatSectors int, entriesPerSector int) (fatSectors, difatSectors int, err error) {
	difatRefs := entriesPerSector - 1
	for i := 0; i < 20; i++ {
		total := dirSectors + normalSectors + miniStorageSectors + miniFatSectors + fatSectors + difatSectors
		newFat := ceilDiv(total, entriesPerSector)
		newDifat := 0
		if newFat > difatInline {
			newDifat = ceilDiv(newFat-difatInline, difatRefs)
		}
		if newFat == fatSectors && newDifat == difatSectors {
			return fatSectors, difatSectors, nil
		}
		fatSectors, difatSectors = newFat, newDifat
	}
	return 0, 0, newErr(ErrWrite, "sizing fixpoint did not converge within 20 iterations")
}

func ceilDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
