package cfb

import (
	"encoding/binary"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// fixedStorageTime is stamped onto every storage entry that the caller
// hasn't set an explicit time on, for bit-reproducible output. Streams
// and the root keep zero timestamps unless set.
var fixedStorageTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Writer builds a new OLE Compound Document from scratch. Construct
// entities with CreateStorage/CreateStream, then call WriteTo once; the
// layout (sector assignment, FAT, DIFAT, directory red-black trees) is
// computed in a single deterministic pass.
type Writer struct {
	cfg   config
	arena *arena

	plan    *layout
	h       *header
	fat     []uint32
	miniFat []uint32
	parts   streamPartition
}

// NewWriter creates an empty container with just a root storage.
func NewWriter(opts ...Option) *Writer {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	root := &entry{objType: objRootStorage, parent: -1, left: noStream, right: noStream, child: noStream}
	return &Writer{cfg: cfg, arena: &arena{entries: []*entry{root}}}
}

// Root returns the writer's root storage.
func (w *Writer) Root() *Entity { return w.arena.entity(0) }

// CreateStorage adds a new, empty storage under parent. Sibling names
// within a storage must be case-insensitively unique.
func (w *Writer) CreateStorage(parent *Entity, name string) (*Entity, error) {
	pe, err := w.checkParent(parent, name)
	if err != nil {
		return nil, err
	}
	idx := uint32(len(w.arena.entries))
	e := &entry{
		name: name, objType: objStorage, parent: int(parent.idx),
		left: noStream, right: noStream, child: noStream,
		created: fixedStorageTime, modified: fixedStorageTime,
	}
	w.arena.entries = append(w.arena.entries, e)
	pe.children = append(pe.children, idx)
	return w.arena.entity(idx), nil
}

// CreateStream adds a new stream under parent holding data. data is
// copied in full; the writer has no incremental-append API, so a
// stream's payload must be known up front.
func (w *Writer) CreateStream(parent *Entity, name string, data []byte) (*Entity, error) {
	pe, err := w.checkParent(parent, name)
	if err != nil {
		return nil, err
	}
	idx := uint32(len(w.arena.entries))
	buf := make([]byte, len(data))
	copy(buf, data)
	e := &entry{
		name: name, objType: objStream, parent: int(parent.idx),
		left: noStream, right: noStream, child: noStream,
		data: buf, size: uint64(len(buf)),
	}
	w.arena.entries = append(w.arena.entries, e)
	pe.children = append(pe.children, idx)
	return w.arena.entity(idx), nil
}

func (w *Writer) checkParent(parent *Entity, name string) (*entry, error) {
	if parent == nil || parent.owner != w.arena {
		return nil, newErr(ErrWrite, "parent does not belong to this writer")
	}
	pe := parent.e()
	if !pe.isStorage() {
		return nil, newErr(ErrWrite, "parent is not a storage: "+pe.name)
	}
	if utf16Len(name) == 0 || utf16Len(name) > 31 {
		return nil, newErr(ErrWrite, "name must be 1-31 UTF-16 code units: "+name)
	}
	upper := strings.ToUpper(name)
	for _, idx := range pe.children {
		if strings.ToUpper(w.arena.entries[idx].name) == upper {
			return nil, newErr(ErrWrite, "sibling name already in use: "+name)
		}
	}
	return pe, nil
}

// SetCLSID stamps a class identifier on a storage or the root. Streams
// never carry a CLSID.
func (w *Writer) SetCLSID(e *Entity, id uuid.UUID) error {
	if e == nil || e.owner != w.arena {
		return newErr(ErrWrite, "entity does not belong to this writer")
	}
	en := e.e()
	if !en.isStorage() {
		return newErr(ErrWrite, "only a storage or the root may carry a CLSID")
	}
	copy(en.clsid[:], id[:])
	return nil
}

// SetTimes overrides an entity's creation/modification times, which
// otherwise default to fixedStorageTime for storages, and stay zeroed
// for streams and the root.
func (w *Writer) SetTimes(e *Entity, created, modified time.Time) error {
	if e == nil || e.owner != w.arena {
		return newErr(ErrWrite, "entity does not belong to this writer")
	}
	en := e.e()
	en.created, en.modified = created, modified
	return nil
}

// streamPartition buckets every stream entry in the arena by the mini
// cutoff.
type streamPartition struct {
	normal []uint32
	mini   []uint32
	zero   []uint32
}

func (w *Writer) partitionStreams() streamPartition {
	var p streamPartition
	for i, e := range w.arena.entries {
		if !e.isStream() {
			continue
		}
		idx := uint32(i)
		switch {
		case e.size == 0:
			p.zero = append(p.zero, idx)
		case e.size < w.cfg.miniCutoff:
			p.mini = append(p.mini, idx)
		default:
			p.normal = append(p.normal, idx)
		}
	}
	return p
}

// finalize runs the sizing fixpoint, assigns physical sectors to every
// region, and builds the FAT.
const v3MaxStreamSize = 1 << 31 // 2 GiB: practical ceiling for a v3 (512-byte sector) container

func (w *Writer) finalize() (*header, []uint32, streamPartition, error) {
	if w.cfg.dllVersion == 3 {
		for _, e := range w.arena.entries {
			if e.isStream() && e.size > v3MaxStreamSize {
				return nil, nil, streamPartition{}, newErr(ErrWrite, "stream exceeds the 2 GiB v3 size limit: "+e.name)
			}
		}
	}
	p := w.partitionStreams()
	sectorSize := w.cfg.sectorSize
	entriesPerSector := int(sectorSize / 4)
	dirPerSector := int(sectorSize / dirEntrySize)

	dirSectors := ceilDiv(len(w.arena.entries), dirPerSector)
	if dirSectors == 0 {
		dirSectors = 1 // the root entry alone still needs one directory sector
	}

	normalSectors := 0
	for _, idx := range p.normal {
		normalSectors += ceilDiv(int(w.arena.entries[idx].size), int(sectorSize))
	}

	totalMiniSectors := 0
	for _, idx := range p.mini {
		totalMiniSectors += ceilDiv(int(w.arena.entries[idx].size), int(miniSectorSz))
	}
	miniStorageSectors := ceilDiv(totalMiniSectors*int(miniSectorSz), int(sectorSize))
	miniFatSectors := ceilDiv(totalMiniSectors*4, int(sectorSize))

	fatSectors, difatSectors, err := fixpoint(dirSectors, normalSectors, miniStorageSectors, miniFatSectors, entriesPerSector)
	if err != nil {
		return nil, nil, p, err
	}

	cur := uint32(0)
	alloc := func(n int) []uint32 {
		out := make([]uint32, n)
		for i := range out {
			out[i] = cur
			cur++
		}
		return out
	}

	dirChain := alloc(dirSectors)
	for _, idx := range p.normal {
		e := w.arena.entries[idx]
		n := ceilDiv(int(e.size), int(sectorSize))
		e.sectorChain = alloc(n)
		e.startSect = endOfChain
		if n > 0 {
			e.startSect = e.sectorChain[0]
		}
	}
	for _, idx := range p.zero {
		e := w.arena.entries[idx]
		e.startSect = endOfChain
		e.sectorChain = nil
		e.miniSectorChain = nil
	}

	miniIdx := 0
	for _, idx := range p.mini {
		e := w.arena.entries[idx]
		n := ceilDiv(int(e.size), int(miniSectorSz))
		chain := make([]uint32, n)
		for i := range chain {
			chain[i] = uint32(miniIdx)
			miniIdx++
		}
		e.miniSectorChain = chain
		e.startSect = endOfChain
		if n > 0 {
			e.startSect = chain[0]
		}
	}
	miniFat := make([]uint32, miniIdx)
	for _, idx := range p.mini {
		chain := w.arena.entries[idx].miniSectorChain
		for i, sn := range chain {
			if i == len(chain)-1 {
				miniFat[sn] = endOfChain
			} else {
				miniFat[sn] = chain[i+1]
			}
		}
	}
	w.miniFat = miniFat

	miniStorageChain := alloc(miniStorageSectors)
	miniFatChain := alloc(miniFatSectors)
	fatChain := alloc(fatSectors)
	difatChain := alloc(difatSectors)

	root := w.arena.entries[0]
	if totalMiniSectors > 0 {
		root.startSect = miniStorageChain[0]
		root.size = uint64(totalMiniSectors) * uint64(miniSectorSz)
	} else {
		root.startSect = endOfChain
		root.size = 0
	}

	logical := cur
	fat := make([]uint32, logical)
	for i := range fat {
		fat[i] = freeSect
	}
	chainFAT := func(chain []uint32) {
		for i, sn := range chain {
			if i == len(chain)-1 {
				fat[sn] = endOfChain
			} else {
				fat[sn] = chain[i+1]
			}
		}
	}
	chainFAT(dirChain)
	chainFAT(miniStorageChain)
	chainFAT(miniFatChain)
	for _, idx := range p.normal {
		chainFAT(w.arena.entries[idx].sectorChain)
	}
	for _, sn := range fatChain {
		fat[sn] = fatSect
	}
	for _, sn := range difatChain {
		fat[sn] = difSect
	}

	h := &header{
		minorVersion: 0x003E,
		majorVersion: w.cfg.dllVersion,
		sectorShift:  sectorShift(sectorSize),
		miniShift:    miniSectorLog,
		fatSectCount: uint32(len(fatChain)),
		dirStart:     dirChain[0],
		miniCutoff:   uint32(w.cfg.miniCutoff),
		difatStart:   endOfChain,
		sectorSize:   sectorSize,
	}
	if w.cfg.dllVersion == 4 {
		h.dirSectCount = uint32(len(dirChain))
	}
	if len(miniFatChain) > 0 {
		h.miniFatStart = miniFatChain[0]
		h.miniFatCount = uint32(len(miniFatChain))
	} else {
		h.miniFatStart = endOfChain
	}
	if len(difatChain) > 0 {
		h.difatStart = difatChain[0]
		h.difatCount = uint32(len(difatChain))
	}

	return h, fat, p, w.serializeWith(h, fat, dirChain, miniStorageChain, miniFatChain, fatChain, difatChain, p)
}

// serializeWith stashes the computed sector chains where WriteTo can
// find them; kept as a separate step so finalize's arithmetic and the
// byte-level emission in WriteTo stay readable on their own.
func (w *Writer) serializeWith(h *header, fat []uint32, dirChain, miniStorageChain, miniFatChain, fatChain, difatChain []uint32, p streamPartition) error {
	w.plan = &layout{
		sectorSize:       h.sectorSize,
		dirSectors:       dirChain,
		miniStorage:      miniStorageChain,
		miniFatSectors:   miniFatChain,
		fatSectors:       fatChain,
		difatSectors:     difatChain,
		totalMiniSectors: len(w.miniFat),
		logicalSectors:   uint32(len(fat)),
	}
	w.h = h
	w.fat = fat
	w.parts = p
	return nil
}

// encodeDirectory rebuilds a red-black tree for every storage's children
// and serializes all directory entries in arena order, padding the
// result to the directory region's full size.
func (w *Writer) encodeDirectory(totalBytes int) []byte {
	left := make(map[uint32]uint32)
	right := make(map[uint32]uint32)
	color := make(map[uint32]uint8)
	child := make(map[uint32]uint32)

	for i, e := range w.arena.entries {
		if !e.isStorage() {
			continue
		}
		t := newRBTree()
		for _, cidx := range e.children {
			t.insert(cidx, w.arena.entries[cidx].name)
		}
		t.links(left, right, color)
		child[uint32(i)] = t.rootIndex()
	}

	buf := make([]byte, 0, len(w.arena.entries)*int(dirEntrySize))
	for i, e := range w.arena.entries {
		l, r, c, col := noStream, noStream, noStream, colorBlack
		if v, ok := left[uint32(i)]; ok {
			l = v
		}
		if v, ok := right[uint32(i)]; ok {
			r = v
		}
		if v, ok := child[uint32(i)]; ok {
			c = v
		}
		if v, ok := color[uint32(i)]; ok {
			col = v
		}
		buf = append(buf, encodeDirEntry(e, l, r, c, col)...)
	}
	return padTo(buf, totalBytes)
}

// encodeMiniStorage packs every mini stream's bytes into the root's
// mini-stream payload at the logical mini-sector offsets assigned
// during finalize.
func (w *Writer) encodeMiniStorage(totalBytes int) []byte {
	buf := make([]byte, totalBytes)
	unit := int(miniSectorSz)
	for _, idx := range w.parts.mini {
		e := w.arena.entries[idx]
		for i, sn := range e.miniSectorChain {
			off := int(sn) * unit
			start := i * unit
			end := start + unit
			if end > len(e.data) {
				end = len(e.data)
			}
			if start >= end {
				continue
			}
			copy(buf[off:off+unit], e.data[start:end])
		}
	}
	return buf
}

// encodeMiniFAT serializes the mini-FAT built alongside the mini-stream
// chains in finalize.
func (w *Writer) encodeMiniFAT(totalBytes int) []byte {
	buf := make([]byte, len(w.miniFat)*4)
	for i, v := range w.miniFat {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], v)
	}
	return padFree(buf, totalBytes)
}

// WriteTo serializes the container to out, in sector-aligned order:
// header, directory, normal payload, mini storage, mini-FAT, FAT,
// DIFAT.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	h, fat, p, err := w.finalize()
	if err != nil {
		return 0, err
	}
	sectorSize := int(h.sectorSize)

	var fatSectorsInline []uint32
	if len(w.plan.fatSectors) <= difatInline {
		fatSectorsInline = w.plan.fatSectors
	} else {
		fatSectorsInline = w.plan.fatSectors[:difatInline]
	}
	headerBuf := encodeHeader(h, fatSectorsInline)

	var total int64
	write := func(b []byte) error {
		n, err := out.Write(b)
		total += int64(n)
		return err
	}
	if err := write(headerBuf); err != nil {
		return total, err
	}

	dirData := w.encodeDirectory(int(h.sectorSize) * len(w.plan.dirSectors))
	if err := write(dirData); err != nil {
		return total, err
	}

	for _, idx := range p.normal {
		e := w.arena.entries[idx]
		if err := write(padTo(e.data, len(e.sectorChain)*sectorSize)); err != nil {
			return total, err
		}
	}

	miniPayload := w.encodeMiniStorage(len(w.plan.miniStorage) * sectorSize)
	if err := write(miniPayload); err != nil {
		return total, err
	}

	miniFatData := w.encodeMiniFAT(len(w.plan.miniFatSectors) * sectorSize)
	if err := write(miniFatData); err != nil {
		return total, err
	}

	fatData := make([]byte, len(fat)*4)
	for i, v := range fat {
		binary.LittleEndian.PutUint32(fatData[i*4:i*4+4], v)
	}
	if err := write(padFree(fatData, len(w.plan.fatSectors)*sectorSize)); err != nil {
		return total, err
	}

	difatData := encodeDifatSectors(w.plan.fatSectors, w.plan.difatSectors, h.sectorSize)
	if err := write(difatData); err != nil {
		return total, err
	}
	return total, nil
}

func padTo(b []byte, n int) []byte {
	if len(b) >= n {
		return b[:n]
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// padFree pads b to n bytes with 0xFF, the byte pattern of freeSect
// (0xFFFFFFFF) repeated: unused tail slots in a FAT or mini-FAT sector
// must read back as free, not as spurious links to sector zero.
func padFree(b []byte, n int) []byte {
	if len(b) >= n {
		return b[:n]
	}
	out := make([]byte, n)
	copy(out, b)
	for i := len(b); i < n; i++ {
		out[i] = 0xFF
	}
	return out
}

// encodeDifatSectors builds the DIFSECT payload chain: each sector holds
// (sectorSize/4 - 1) FAT sector pointers beyond the first 109 (already
// inline in the header), followed by the next-DIFSECT link.
func encodeDifatSectors(fatSectors, difatSectors []uint32, sectorSize uint32) []byte {
	if len(difatSectors) == 0 {
		return nil
	}
	overflow := fatSectors[difatInline:]
	perSector := int(sectorSize/4) - 1
	out := make([]byte, 0, len(difatSectors)*int(sectorSize))
	for i := range difatSectors {
		buf := make([]byte, sectorSize)
		for j := 0; j < perSector; j++ {
			pos := i*perSector + j
			v := freeSect
			if pos < len(overflow) {
				v = overflow[pos]
			}
			binary.LittleEndian.PutUint32(buf[j*4:j*4+4], uint32(v))
		}
		next := endOfChain
		if i < len(difatSectors)-1 {
			next = difatSectors[i+1]
		}
		binary.LittleEndian.PutUint32(buf[sectorSize-4:], next)
		out = append(out, buf...)
	}
	return out
}
