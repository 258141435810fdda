package cfb

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// entry is the dense, index-addressed record behind every directory
// object: a small fixed value type, with parent/child/sibling links
// encoded as indices into a single arena rather than as pointers, so
// the inherently cyclic on-disk graph (and a malformed one with real
// cycles) never produces Go reference cycles.
type entry struct {
	name       string
	objType    uint8
	color      uint8
	left       uint32
	right      uint32
	child      uint32
	clsid      [16]byte
	stateBits  uint32
	created    time.Time
	modified   time.Time
	startSect  uint32
	size       uint64

	// populated by the read path (directory tree builder)
	children []uint32 // indices into the arena, in canonical order
	parent   int      // -1 for the root

	// populated by the write path (layout planner)
	data            []byte
	sectorChain     []uint32
	miniSectorChain []uint32
}

func (e *entry) isRoot() bool    { return e.objType == objRootStorage }
func (e *entry) isStorage() bool { return e.objType == objStorage || e.objType == objRootStorage }
func (e *entry) isStream() bool  { return e.objType == objStream }

// Entity is the public, read-only view of a directory object: a storage
// (directory-like) or a stream (file-like). The zero value is not
// usable; obtain one from a Reader, Writer or Editor.
type Entity struct {
	owner *arena
	idx   uint32
}

// arena owns the flat entry slice shared by every Entity handed out by
// one Reader/Writer/Editor.
type arena struct {
	entries []*entry
}

func (a *arena) get(idx uint32) *entry {
	if idx == noStream || int(idx) >= len(a.entries) {
		return nil
	}
	return a.entries[idx]
}

func (a *arena) entity(idx uint32) *Entity {
	if a.get(idx) == nil {
		return nil
	}
	return &Entity{owner: a, idx: idx}
}

func (e *Entity) e() *entry { return e.owner.get(e.idx) }

// Name is the entry's name, decoded from UTF-16LE.
func (e *Entity) Name() string { return e.e().name }

// IsDir reports whether this entity is a storage (or the root).
func (e *Entity) IsDir() bool { return e.e().isStorage() }

// IsFile reports whether this entity is a stream.
func (e *Entity) IsFile() bool { return e.e().isStream() }

// Size is the stream's declared payload length. It is zero for storages
// other than the root; the root's size is the length of its mini storage.
func (e *Entity) Size() uint64 { return e.e().size }

// Created returns the entry's creation time and whether it was set
// (a zero FILETIME means unset).
func (e *Entity) Created() (time.Time, bool) {
	t := e.e().created
	return t, !t.IsZero()
}

// Modified returns the entry's modification time and whether it was
// set.
func (e *Entity) Modified() (time.Time, bool) {
	t := e.e().modified
	return t, !t.IsZero()
}

// CLSID returns the entry's class identifier as a uuid.UUID and whether
// it is non-zero. The CLSID is exposed verbatim; this package never
// interprets what it names.
func (e *Entity) CLSID() (uuid.UUID, bool) {
	var id uuid.UUID
	copy(id[:], e.e().clsid[:])
	return id, id != uuid.Nil
}

// Children returns this storage's children. For a Reader-backed entity
// the order is canonical (by (length, upper-case) of the name, i.e. the
// in-order traversal of its red-black tree); for a Writer- or
// Editor-backed entity it is the order in which the children were added.
// Returns nil for a stream.
func (e *Entity) Children() []*Entity {
	en := e.e()
	if !en.isStorage() {
		return nil
	}
	out := make([]*Entity, 0, len(en.children))
	for _, idx := range en.children {
		out = append(out, e.owner.entity(idx))
	}
	return out
}

// Child looks up a direct child by name, case-insensitively, falling
// back to a case-sensitive match if no case-folded match exists (a
// tolerance for malformed containers). Returns ErrNotFound if absent.
func (e *Entity) Child(name string) (*Entity, error) {
	en := e.e()
	if !en.isStorage() {
		return nil, newErr(ErrNotStream, "not a storage: "+en.name)
	}
	upper := strings.ToUpper(name)
	var fallback *Entity
	for _, idx := range en.children {
		c := e.owner.entity(idx)
		if strings.ToUpper(c.Name()) == upper {
			return c, nil
		}
		if fallback == nil && c.Name() == name {
			fallback = c
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, newErr(ErrNotFound, "no such entry: "+name)
}

// canonicalLess implements the red-black tree's comparator: shorter
// names sort first; same-length names sort by upper-cased lexicographic
// order.
func canonicalLess(a, b string) bool {
	la, lb := utf16Len(a), utf16Len(b)
	if la != lb {
		return la < lb
	}
	return strings.ToUpper(a) < strings.ToUpper(b)
}
