package pfsolver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockZeroResetsSizeAndData(t *testing.T) {
	b := NewBlock[float64](3)
	b.Data[0][0] = 7
	b.Zero(2)
	require.Equal(t, 2, b.K)
	require.Equal(t, 0.0, b.Data[0][0])
}

func TestNewScalarBlockWrapsValue(t *testing.T) {
	b := NewScalarBlock(complex(1, 2))
	require.Equal(t, 1, b.K)
	require.Equal(t, complex(1, 2), b.Get(0, 0))
}

func TestBlockPermIdentity(t *testing.T) {
	var p BlockPerm
	p.Identity(3)
	require.Equal(t, 3, p.Size)
	for i := 0; i < 3; i++ {
		require.EqualValues(t, i, p.P[i])
		require.EqualValues(t, i, p.Q[i])
	}
}

func TestNewPatternRejectsRowCountMismatch(t *testing.T) {
	_, err := NewPattern([]int32{0, 1}, []int32{0}, []int32{0, 1}, nil)
	require.ErrorIs(t, err, ErrAssembly)
}

func TestNewPatternRejectsMapLUYBusLengthMismatch(t *testing.T) {
	_, err := NewPattern([]int32{0, 1}, []int32{0}, []int32{0}, []int32{0, 1})
	require.ErrorIs(t, err, ErrAssembly)
}

func TestNewPatternAcceptsSymmetricTwoByTwo(t *testing.T) {
	pat, err := NewPattern([]int32{0, 2, 4}, []int32{0, 1, 0, 1}, []int32{0, 3}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, pat.N)
	require.Equal(t, 4, pat.NNZ())
}

func TestDefaultConfigMatchesFixedConstants(t *testing.T) {
	cfg := DefaultConfig()
	require.False(t, cfg.AllowPerturb)
	require.Equal(t, maxRefinement, cfg.MaxRefinement)
	require.Equal(t, 0, cfg.Annotate)
}
