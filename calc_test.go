package pfsolver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCabsRealAndComplex(t *testing.T) {
	require.Equal(t, 3.0, cabs(float64(-3)))
	require.InDelta(t, 5.0, cabs(complex(3, 4)), 1e-12)
}

func TestFromRealPromotesToComplex(t *testing.T) {
	require.Equal(t, complex(2, 0), fromReal[complex128](2))
	require.Equal(t, 2.0, fromReal[float64](2))
}

func TestIsFiniteRejectsNaNAndInf(t *testing.T) {
	require.True(t, isFinite(1.0))
	require.False(t, isFinite(1.0/zeroOf[float64]()))
	require.True(t, isFinite(complex(1, 1)))
}

func TestBlockAddSub(t *testing.T) {
	a := NewBlock[float64](2)
	a.Data[0][0], a.Data[1][1] = 1, 2
	b := NewBlock[float64](2)
	b.Data[0][0], b.Data[1][1] = 3, 4

	sum := blockAdd(&a, &b)
	require.Equal(t, 4.0, sum.Data[0][0])
	require.Equal(t, 6.0, sum.Data[1][1])

	diff := blockSub(&b, &a)
	require.Equal(t, 2.0, diff.Data[0][0])
	require.Equal(t, 2.0, diff.Data[1][1])
}

func TestBlockMatVec(t *testing.T) {
	a := NewBlock[float64](2)
	a.Data[0][0], a.Data[0][1] = 1, 2
	a.Data[1][0], a.Data[1][1] = 3, 4
	x := NewVec[float64](2)
	x.Data[0], x.Data[1] = 5, 6

	out := blockMatVec(&a, &x)
	require.Equal(t, 17.0, out.Data[0])
	require.Equal(t, 39.0, out.Data[1])
}

func TestPermuteGatherScatterRoundTrip(t *testing.T) {
	var perm [maxBlockDim]int8
	perm[0], perm[1] = 1, 0

	v := NewVec[float64](2)
	v.Data[0], v.Data[1] = 10, 20

	gathered := permuteGatherVec(&perm, 2, &v)
	require.Equal(t, 20.0, gathered.Data[0])
	require.Equal(t, 10.0, gathered.Data[1])

	scattered := permuteScatterVec(&perm, 2, &gathered)
	require.Equal(t, v.Data[0], scattered.Data[0])
	require.Equal(t, v.Data[1], scattered.Data[1])
}

func TestMinMax(t *testing.T) {
	require.Equal(t, 2, min(2, 5))
	require.Equal(t, 5, max(2, 5))
}
