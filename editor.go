package cfb

import (
	"io"
	"strings"
)

// Editor loads an existing container fully into memory and lets a caller
// mutate its directory tree, then re-emit it as a new container. It
// reuses the Writer's layout planner for Save: the tree it holds is the
// single source of truth, so there is no separate path-indexed cache to
// keep in sync.
type Editor struct {
	w *Writer
}

// NewEditor opens an existing container, reads every stream to
// completion, and holds the resulting tree in memory for editing.
func NewEditor(ra io.ReaderAt, size int64, opts ...Option) (*Editor, error) {
	r, err := NewReader(ra, size, opts...)
	if err != nil {
		return nil, err
	}

	cfg := r.cfg
	for _, o := range opts {
		o(&cfg)
	}
	root := &entry{objType: objRootStorage, parent: -1, left: noStream, right: noStream, child: noStream}
	srcRoot := r.Root().e()
	root.clsid = srcRoot.clsid
	root.created = srcRoot.created
	root.modified = srcRoot.modified
	root.stateBits = srcRoot.stateBits

	w := &Writer{cfg: cfg, arena: &arena{entries: []*entry{root}}}
	if err := copyChildren(w, r, r.Root(), 0); err != nil {
		r.Close()
		return nil, err
	}
	r.Close()
	return &Editor{w: w}, nil
}

// copyChildren recursively copies every child of src (from the reader's
// tree) under the writer-side entity at dstIdx, reading stream payloads
// to completion as it goes.
func copyChildren(w *Writer, r *Reader, src *Entity, dstIdx uint32) error {
	for _, c := range src.Children() {
		ce := c.e()
		parent := w.arena.entity(dstIdx)
		if ce.isStream() {
			var data []byte
			if ce.size > 0 {
				st, err := r.Open(c)
				if err != nil {
					return err
				}
				data, err = st.ReadAll()
				st.Close()
				if err != nil {
					return err
				}
			}
			dst, err := w.CreateStream(parent, ce.name, data)
			if err != nil {
				return err
			}
			dst.e().created = ce.created
			dst.e().modified = ce.modified
			dst.e().stateBits = ce.stateBits
		} else {
			dst, err := w.CreateStorage(parent, ce.name)
			if err != nil {
				return err
			}
			dst.e().clsid = ce.clsid
			dst.e().created = ce.created
			dst.e().modified = ce.modified
			dst.e().stateBits = ce.stateBits
			if err := copyChildren(w, r, c, dst.idx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Root returns the root storage of the tree being edited.
func (ed *Editor) Root() *Entity { return ed.w.Root() }

// Rename changes the name of the entity at path. The new name must stay
// unique (case-insensitively) among its siblings.
func (ed *Editor) Rename(path, newName string) error {
	e, err := lookupPath(ed.w.Root(), path)
	if err != nil {
		return err
	}
	en := e.e()
	if en.isRoot() {
		return newErr(ErrWrite, "cannot rename the root storage")
	}
	if utf16Len(newName) == 0 || utf16Len(newName) > 31 {
		return newErr(ErrWrite, "name must be 1-31 UTF-16 code units: "+newName)
	}
	upper := strings.ToUpper(newName)
	parent := ed.w.arena.entries[en.parent]
	for _, idx := range parent.children {
		if idx == e.idx {
			continue
		}
		if strings.ToUpper(ed.w.arena.entries[idx].name) == upper {
			return newErr(ErrWrite, "sibling name already in use: "+newName)
		}
	}
	en.name = newName
	return nil
}

// Delete removes the stream or storage at path. A storage is removed
// along with its entire subtree.
func (ed *Editor) Delete(path string) error {
	e, err := lookupPath(ed.w.Root(), path)
	if err != nil {
		return err
	}
	en := e.e()
	if en.isRoot() {
		return newErr(ErrWrite, "cannot delete the root storage")
	}
	parent := ed.w.arena.entries[en.parent]
	for i, idx := range parent.children {
		if idx == e.idx {
			parent.children = append(parent.children[:i:i], parent.children[i+1:]...)
			break
		}
	}
	removeEntityAndChildren(ed.w.arena, e.idx)
	return nil
}

// removeEntityAndChildren tombstones idx and, recursively, every entry
// reachable from its children list. Tombstoned slots are not compacted
// out of the arena, so every other entity's index stays stable across a
// Delete.
func removeEntityAndChildren(a *arena, idx uint32) {
	en := a.get(idx)
	if en == nil {
		return
	}
	for _, c := range en.children {
		removeEntityAndChildren(a, c)
	}
	en.objType = objInvalid
	en.data = nil
	en.children = nil
}

// AddStream creates a new stream under the storage at parentPath.
func (ed *Editor) AddStream(parentPath, name string, data []byte) (*Entity, error) {
	p, err := lookupPath(ed.w.Root(), parentPath)
	if err != nil {
		return nil, err
	}
	return ed.w.CreateStream(p, name, data)
}

// AddStorage creates a new, empty storage under the storage at
// parentPath.
func (ed *Editor) AddStorage(parentPath, name string) (*Entity, error) {
	p, err := lookupPath(ed.w.Root(), parentPath)
	if err != nil {
		return nil, err
	}
	return ed.w.CreateStorage(p, name)
}

// Save re-emits the edited tree as a new container, using the same
// layout planner a fresh Writer would.
func (ed *Editor) Save(out io.Writer) error {
	_, err := ed.w.WriteTo(out)
	return err
}
