package cfb

// readDirEntries decodes the flat directory array from the chain
// starting at h.dirStart: each sector holds sectorSize/128 entries.
func readDirEntries(h *header, fat []uint32, store *sectorStore, v3 bool, d *diagnostics) ([]*entry, error) {
	chain, err := walkChain(h.dirStart, fat, ErrNormalLoop, d, h.dirStart)
	if err != nil {
		return nil, err
	}
	perSector := int(store.size / dirEntrySize)
	entries := make([]*entry, 0, len(chain)*perSector)
	for _, sn := range chain {
		buf, err := store.read(sn)
		if err != nil {
			return nil, err
		}
		for i := 0; i < perSector; i++ {
			off := i * int(dirEntrySize)
			rec := buf[off : off+int(dirEntrySize)]
			// every slot gets an entry, even unused ones (objType
			// objInvalid), so its position keeps matching the on-disk
			// index that other entries' left/right/child fields
			// reference; buildTree skips objInvalid entries on its own.
			idx := len(entries)
			entries = append(entries, decodeDirEntry(rec, idx, v3, d))
		}
	}
	return entries, nil
}

// buildTree walks the red-black tree rooted at each storage's child
// pointer via recursive in-order traversal (left, self, right),
// populating entry.children in canonical order and entry.parent.
// Cycles (a node visited twice) fail with ErrDirLoop; out-of-range or
// invalid-typed indices are skipped with a warning.
func buildTree(entries []*entry, d *diagnostics) error {
	if len(entries) == 0 {
		return newErr(ErrDirLoop, "directory is empty; no root entry")
	}
	root := entries[0]
	if !root.isRoot() {
		if d != nil {
			d.warn(WarnDirType, 0, endOfChain, "entry 0 is not the root storage")
		}
	}
	seen := make([]bool, len(entries))
	seen[0] = true

	var walk func(storageIdx int) error
	walk = func(storageIdx int) error {
		st := entries[storageIdx]
		if !st.isStorage() {
			return nil
		}
		var ordered []uint32
		var inorder func(node uint32) error
		inorder = func(node uint32) error {
			if node == noStream {
				return nil
			}
			if int(node) >= len(entries) {
				if d != nil {
					d.warn(WarnDirIndex, storageIdx, endOfChain, "child/sibling index out of range")
				}
				return nil
			}
			if seen[node] {
				return newErr(ErrDirLoop, "directory tree revisits an entry")
			}
			seen[node] = true
			n := entries[node]
			if n.objType == objInvalid {
				if d != nil {
					d.warn(WarnDirIndex, int(node), endOfChain, "sibling/child points at an invalid entry")
				}
				return nil
			}
			if err := inorder(n.left); err != nil {
				return err
			}
			ordered = append(ordered, node)
			n.parent = storageIdx
			if err := inorder(n.right); err != nil {
				return err
			}
			return nil
		}
		if err := inorder(st.child); err != nil {
			return err
		}
		st.children = ordered
		for _, c := range ordered {
			if entries[c].isStorage() {
				if err := walk(int(c)); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(0)
}
