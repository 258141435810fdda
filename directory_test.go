package cfb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func rawEntry(objType uint8, left, right, child uint32) *entry {
	return &entry{objType: objType, left: left, right: right, child: child, parent: -1}
}

func TestBuildTreeSimpleHierarchy(t *testing.T) {
	// 0: root -> child 1
	// 1: storage "A", child 2
	// 2: stream "B", no siblings
	entries := []*entry{
		rawEntry(objRootStorage, noStream, noStream, 1),
		rawEntry(objStorage, noStream, noStream, 2),
		rawEntry(objStream, noStream, noStream, noStream),
	}
	require.NoError(t, buildTree(entries, nil))
	require.Equal(t, []uint32{1}, entries[0].children)
	require.Equal(t, []uint32{2}, entries[1].children)
	require.Equal(t, 0, entries[1].parent)
	require.Equal(t, 1, entries[2].parent)
}

func TestBuildTreeDetectsCycle(t *testing.T) {
	// 1 and 2 point at each other as siblings, forming a cycle reachable
	// from root's child pointer.
	entries := []*entry{
		rawEntry(objRootStorage, noStream, noStream, 1),
		rawEntry(objStorage, 2, noStream, noStream),
		rawEntry(objStorage, 1, noStream, noStream),
	}
	err := buildTree(entries, nil)
	require.Error(t, err)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, ErrDirLoop, fe.Kind)
}

func TestBuildTreeSkipsInvalidSlotsWithoutShiftingIndices(t *testing.T) {
	// slot 1 is an unused/tombstoned entry; root's child points past it
	// directly at slot 2, which must still resolve to index 2.
	entries := []*entry{
		rawEntry(objRootStorage, noStream, noStream, 2),
		rawEntry(objInvalid, noStream, noStream, noStream),
		rawEntry(objStream, noStream, noStream, noStream),
	}
	require.NoError(t, buildTree(entries, nil))
	require.Equal(t, []uint32{2}, entries[0].children)
	require.Nil(t, entries[1].children)
}
