// Package cfb reads, writes and edits OLE Compound Documents (Compound
// File Binary, also known as OLE2), the hierarchical single-file
// container format used by legacy Microsoft Office documents and by many
// proprietary applications to embed a miniature file system inside one
// binary file.
//
// Reading:
//
//	f, _ := os.Open("test.doc")
//	defer f.Close()
//	r, err := cfb.NewReader(f, size)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, child := range r.Root().Children() {
//		fmt.Println(child.Name())
//	}
//
// Writing:
//
//	w := cfb.NewWriter()
//	w.CreateStream(w.Root(), "Hi", []byte("abc"))
//	var buf bytes.Buffer
//	w.WriteTo(&buf)
//
// Editing an existing container:
//
//	e, err := cfb.NewEditor(f, size)
//	e.Rename("/A/B", "C")
//	e.Save(out)
package cfb

import "unicode/utf16"

const (
	signature     uint64 = 0xE11AB1A1E011CFD0 // D0 CF 11 E0 A1 B1 1A E1 read little-endian
	byteOrderMark uint16 = 0xFFFE
	dirEntrySize  uint32 = 128
	miniSectorLog uint16 = 6  // mini sectors are always 64 bytes
	miniSectorSz  uint32 = 64 // 1 << miniSectorLog

	difatInline = 109 // DIFAT entries that fit inline in the header
)

// sector sentinels: reserved values a real sector index never takes
const (
	maxRegSect uint32 = 0xFFFFFFFA // largest regular sector index
	difSect    uint32 = 0xFFFFFFFC // this sector holds DIFAT entries
	fatSect    uint32 = 0xFFFFFFFD // this sector holds FAT entries
	endOfChain uint32 = 0xFFFFFFFE // chain terminator
	freeSect   uint32 = 0xFFFFFFFF // unallocated
	noStream   uint32 = 0xFFFFFFFF // absent sibling/child pointer
)

// object types of a directory entry
const (
	objInvalid     uint8 = 0x0
	objStorage     uint8 = 0x1
	objStream      uint8 = 0x2
	objRootStorage uint8 = 0x5
)

const (
	colorRed   uint8 = 0x0
	colorBlack uint8 = 0x1
)

// config gathers the recognized options: sector_size, mini_cutoff and
// dll_version. All other header fields are derived.
type config struct {
	sectorSize  uint32
	miniCutoff  uint64
	dllVersion  uint16
	sink        DiagnosticSink
}

func defaultConfig() config {
	return config{
		sectorSize: 512,
		miniCutoff: 4096,
		dllVersion: 3,
		sink:       LogSink{},
	}
}

// Option configures a Reader, Writer or Editor.
type Option func(*config)

// WithSectorSize sets the sector size used by a Writer. Must be 512 or
// 4096; any other value is ignored. Readers derive sector size from the
// container header and ignore this option.
func WithSectorSize(n uint32) Option {
	return func(c *config) {
		if n == 512 || n == 4096 {
			c.sectorSize = n
		}
	}
}

// WithMiniCutoff overrides the mini-stream routing threshold (default
// 4096 bytes, canonical per the CFB specification).
func WithMiniCutoff(n uint64) Option {
	return func(c *config) { c.miniCutoff = n }
}

// WithDLLVersion sets the header's major version (3 or 4). Version 4
// advanced features beyond 4 KiB sectors are not supported.
func WithDLLVersion(v uint16) Option {
	return func(c *config) {
		if v == 3 || v == 4 {
			c.dllVersion = v
		}
	}
}

// WithDiagnosticSink installs a sink that receives every recoverable
// warning emitted while reading a container. The default sink
// (LogSink) logs each warning once via the standard log package.
func WithDiagnosticSink(s DiagnosticSink) Option {
	return func(c *config) { c.sink = s }
}

func sectorShift(size uint32) uint16 {
	var s uint16
	for 1<<s < size {
		s++
	}
	return s
}

// utf16Len reports the number of UTF-16 code units (not bytes) that
// would encode s, used to validate the 31-code-unit name limit.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += len(utf16.Encode([]rune{r}))
	}
	return n
}
