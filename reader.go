package cfb

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// Reader provides read-only access to an OLE Compound Document. Its
// lifecycle is: open -> parse header -> walk DIFAT -> build FAT -> parse
// the flat directory array -> build the tree from the root entry ->
// build mini-FAT -> ready.
type Reader struct {
	arena      *arena
	store      *sectorStore
	fat        []uint32
	miniFat    []uint32
	rootStream *Stream
	cfg        config
	closed     bool

	ID       uuid.UUID // CLSID of the root storage, if set
	Created  time.Time
	Modified time.Time
}

// NewReader opens an OLE Compound Document of the given total size from
// ra. size is required because io.ReaderAt alone cannot report length
// (e.g. when ra wraps an in-memory buffer or a network range).
func NewReader(ra io.ReaderAt, size int64, opts ...Option) (*Reader, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	d := newDiagnostics(cfg.sink)

	// the header always occupies exactly the first 512 bytes, regardless
	// of the container's actual sector size (sectors >512 just pad the
	// rest of sector 0 with zeroes), so a fixed-size probe suffices.
	probe := newSectorStore(ra, 512)
	buf, err := probe.header(lenHeader)
	if err != nil {
		return nil, err
	}
	h, err := decodeHeader(buf, d)
	if err != nil {
		return nil, err
	}
	store := newSectorStore(ra, h.sectorSize)

	difat, err := readDifat(h, store, size, d)
	if err != nil {
		return nil, err
	}
	fat, err := buildFAT(difat, store, size, d)
	if err != nil {
		return nil, err
	}

	v3 := h.majorVersion == 3
	entries, err := readDirEntries(h, fat, store, v3, d)
	if err != nil {
		return nil, err
	}
	if err := buildTree(entries, d); err != nil {
		return nil, err
	}

	r := &Reader{
		arena: &arena{entries: entries},
		store: store,
		fat:   fat,
		cfg:   cfg,
	}

	root := entries[0]
	if root.startSect != endOfChain {
		rootChain, err := walkChain(root.startSect, fat, ErrNormalLoop, d, root.startSect)
		if err != nil {
			return nil, err
		}
		closed := &r.closed
		r.rootStream = newNormalStream(store, rootChain, root.size, d, closed)
	}

	miniFat, err := buildMiniFAT(h, fat, store, size, d)
	if err != nil {
		return nil, err
	}
	r.miniFat = miniFat

	if id, ok := (&Entity{owner: r.arena, idx: 0}).CLSID(); ok {
		r.ID = id
	}
	if t, ok := (&Entity{owner: r.arena, idx: 0}).Created(); ok {
		r.Created = t
	}
	if t, ok := (&Entity{owner: r.arena, idx: 0}).Modified(); ok {
		r.Modified = t
	}
	return r, nil
}

// Root returns the container's root storage.
func (r *Reader) Root() *Entity { return r.arena.entity(0) }

// Open returns a read cursor for the given stream entity. e must belong
// to this Reader and be a stream (ErrNotStream otherwise). Streams
// smaller than the configured mini cutoff (WithMiniCutoff, default 4096)
// and non-empty are routed through the mini-FAT; the cutoff recorded in
// the container header is not consulted.
func (r *Reader) Open(e *Entity) (*Stream, error) {
	if e == nil || e.owner != r.arena {
		return nil, newErr(ErrNotFound, "entity does not belong to this reader")
	}
	en := e.e()
	if !en.isStream() {
		return nil, newErr(ErrNotStream, "not a stream: "+en.name)
	}
	d := newDiagnostics(r.cfg.sink)
	closed := &r.closed

	if en.size == 0 {
		return newNormalStream(r.store, nil, 0, d, closed), nil
	}
	if en.size < r.cfg.miniCutoff {
		if r.rootStream == nil || r.miniFat == nil {
			return nil, newErr(ErrNoMiniFat, "stream belongs in the mini-FAT but none exists")
		}
		chain, err := walkChain(en.startSect, r.miniFat, ErrNormalLoop, d, en.startSect)
		if err != nil {
			return nil, err
		}
		return newMiniStream(r.rootStream, chain, en.size, d, closed), nil
	}
	chain, err := walkChain(en.startSect, r.fat, ErrNormalLoop, d, en.startSect)
	if err != nil {
		return nil, err
	}
	return newNormalStream(r.store, chain, en.size, d, closed), nil
}

// OpenPath looks up a slash-separated, case-insensitive path (leading
// slash denotes the root; "/" alone is the root itself) and opens it as
// a stream.
func (r *Reader) OpenPath(path string) (*Stream, error) {
	e, err := lookupPath(r.Root(), path)
	if err != nil {
		return nil, err
	}
	return r.Open(e)
}

// Close releases the reader. Subsequent use of any Stream obtained from
// it is an error. Close itself never fails: the backing io.ReaderAt is
// owned and closed by the caller that supplied it, exactly as
// io.ReaderAt carries no Close.
func (r *Reader) Close() error {
	r.closed = true
	return nil
}

// lookupPath walks a "/A/B/leaf"-style path from root, case-
// insensitively.
func lookupPath(root *Entity, path string) (*Entity, error) {
	if path == "" || path == "/" {
		return root, nil
	}
	parts := splitPath(path)
	cur := root
	for _, p := range parts {
		next, err := cur.Child(p)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				parts = append(parts, path[start:i])
			}
			start = i + 1
		}
	}
	return parts
}
