package cfb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalLessByLength(t *testing.T) {
	require.True(t, canonicalLess("a", "bb"))
	require.False(t, canonicalLess("bb", "a"))
}

func TestCanonicalLessByUpperCase(t *testing.T) {
	require.True(t, canonicalLess("Alpha", "bravo"))
	require.False(t, canonicalLess("bravo", "Alpha"))
}

func TestRBTreeInOrderMatchesCanonicalOrder(t *testing.T) {
	names := map[uint32]string{
		1: "Charlie",
		2: "a",
		3: "Bravo",
		4: "delta",
		5: "Z",
	}
	tree := newRBTree()
	for idx, name := range names {
		tree.insert(idx, name)
	}

	var order []string
	var walk func(n *rbNode)
	walk = func(n *rbNode) {
		if n == tree.nIL {
			return
		}
		walk(n.left)
		order = append(order, n.name)
		walk(n.right)
	}
	walk(tree.root)

	require.Len(t, order, len(names))
	for i := 1; i < len(order); i++ {
		require.True(t, canonicalLess(order[i-1], order[i]) || !canonicalLess(order[i], order[i-1]))
	}
	// shortest names must sort first
	require.Equal(t, "a", order[0])
	require.Equal(t, "Z", order[1])
}

func TestRBTreeRootBlack(t *testing.T) {
	tree := newRBTree()
	tree.insert(0, "one")
	require.Equal(t, colorBlack, tree.root.color)
}

func TestRBTreeLinksNoStreamForLeaves(t *testing.T) {
	tree := newRBTree()
	tree.insert(0, "solo")
	left := map[uint32]uint32{}
	right := map[uint32]uint32{}
	color := map[uint32]uint8{}
	tree.links(left, right, color)
	require.Equal(t, noStream, left[0])
	require.Equal(t, noStream, right[0])
	require.Equal(t, uint32(0), tree.rootIndex())
}
