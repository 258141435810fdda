package cfb

// rbNode is a node of the write-side red-black tree. It tracks its
// entity's arena index rather than the entity itself, so the tree can
// be thrown away once its shape (color, left, right, parent) has been
// recorded back onto the entries.
type rbNode struct {
	idx                 uint32
	name                string
	color               uint8
	left, right, parent *rbNode
}

// rbTree is the textbook CLRS red-black tree, built fresh for each
// storage's children whenever a container is emitted. nIL is the shared
// black sentinel leaf.
type rbTree struct {
	nIL  *rbNode
	root *rbNode
}

func newRBTree() *rbTree {
	nIL := &rbNode{color: colorBlack}
	return &rbTree{nIL: nIL, root: nIL}
}

func (t *rbTree) leftRotate(x *rbNode) {
	y := x.right
	x.right = y.left
	if y.left != t.nIL {
		y.left.parent = x
	}
	y.parent = x.parent
	if x.parent == t.nIL {
		t.root = y
	} else if x == x.parent.left {
		x.parent.left = y
	} else {
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *rbTree) rightRotate(x *rbNode) {
	y := x.left
	x.left = y.right
	if y.right != t.nIL {
		y.right.parent = x
	}
	y.parent = x.parent
	if x.parent == t.nIL {
		t.root = y
	} else if x == x.parent.right {
		x.parent.right = y
	} else {
		x.parent.left = y
	}
	y.right = x
	x.parent = y
}

// insert adds idx/name as a new red leaf and restores the red-black
// properties, ordering siblings by canonicalLess: shorter names first,
// then upper-case lexicographic order for same-length names.
func (t *rbTree) insert(idx uint32, name string) {
	node := &rbNode{idx: idx, name: name, color: 0, left: t.nIL, right: t.nIL, parent: t.nIL}

	var y = t.nIL
	x := t.root
	for x != t.nIL {
		y = x
		if canonicalLess(node.name, x.name) {
			x = x.left
		} else {
			x = x.right
		}
	}
	node.parent = y
	if y == t.nIL {
		t.root = node
	} else if canonicalLess(node.name, y.name) {
		y.left = node
	} else {
		y.right = node
	}

	if node.parent == t.nIL {
		node.color = colorBlack
		return
	}
	if node.parent.parent == t.nIL {
		return
	}
	t.fixInsert(node)
}

func (t *rbTree) fixInsert(k *rbNode) {
	for k.parent.color == 0 { // parent is red
		if k.parent == k.parent.parent.left {
			u := k.parent.parent.right
			if u.color == 0 {
				u.color = colorBlack
				k.parent.color = colorBlack
				k.parent.parent.color = 0
				k = k.parent.parent
			} else {
				if k == k.parent.right {
					k = k.parent
					t.leftRotate(k)
				}
				k.parent.color = colorBlack
				k.parent.parent.color = 0
				t.rightRotate(k.parent.parent)
			}
		} else {
			u := k.parent.parent.left
			if u.color == 0 {
				u.color = colorBlack
				k.parent.color = colorBlack
				k.parent.parent.color = 0
				k = k.parent.parent
			} else {
				if k == k.parent.left {
					k = k.parent
					t.rightRotate(k)
				}
				k.parent.color = colorBlack
				k.parent.parent.color = 0
				t.leftRotate(k.parent.parent)
			}
		}
		if k == t.root {
			break
		}
	}
	t.root.color = colorBlack
}

// links records, for every node in the tree, the (left, right, color)
// that directory-entry serialization needs: a recursive traversal
// starting at the root, writing into the three maps keyed by arena
// index.
func (t *rbTree) links(left, right map[uint32]uint32, color map[uint32]uint8) {
	var walk func(n *rbNode)
	walk = func(n *rbNode) {
		if n == t.nIL {
			return
		}
		if n.left != t.nIL {
			left[n.idx] = n.left.idx
		} else {
			left[n.idx] = noStream
		}
		if n.right != t.nIL {
			right[n.idx] = n.right.idx
		} else {
			right[n.idx] = noStream
		}
		color[n.idx] = n.color
		walk(n.left)
		walk(n.right)
	}
	walk(t.root)
}

// rootIndex returns the arena index stored at the tree's root, or
// noStream for an empty tree.
func (t *rbTree) rootIndex() uint32 {
	if t.root == t.nIL {
		return noStream
	}
	return t.root.idx
}
