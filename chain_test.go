package cfb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWalkChainLinear(t *testing.T) {
	table := []uint32{1, 2, 3, endOfChain}
	chain, err := walkChain(0, table, ErrNormalLoop, nil, 0)
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1, 2, 3}, chain)
}

func TestWalkChainEmpty(t *testing.T) {
	chain, err := walkChain(endOfChain, nil, ErrNormalLoop, nil, 0)
	require.NoError(t, err)
	require.Nil(t, chain)
}

func TestWalkChainDetectsCycle(t *testing.T) {
	table := []uint32{1, 2, 0} // 0 -> 1 -> 2 -> 0
	_, err := walkChain(0, table, ErrNormalLoop, nil, 0)
	require.Error(t, err)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, ErrNormalLoop, fe.Kind)
}

func TestWalkChainSelfLoop(t *testing.T) {
	table := []uint32{0}
	_, err := walkChain(0, table, ErrNormalLoop, nil, 0)
	require.Error(t, err)
}

func TestWalkChainTruncatesPastTable(t *testing.T) {
	table := []uint32{99}
	chain, err := walkChain(0, table, ErrNormalLoop, nil, 0)
	require.NoError(t, err)
	require.Equal(t, []uint32{0}, chain)
}
