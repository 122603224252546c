package pfsolver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// A single bus tied only to a reference source (no branch admittance, no
// load) has an exact fixed point at u=u_ref: the source's fictive
// subnetwork mismatch is zero there, so Newton should confirm convergence
// immediately after the linear seed already lands on the answer.
func TestDriverSolve_SingleBusSourceOnlyConvergesAtReference(t *testing.T) {
	pat := singleBusPattern()
	y := []Block[complex128]{scalarBlockC(0)}
	sources := []Source{{
		Bus:  0,
		YRef: scalarBlockC(complex(10, 0)),
		URef: complexVec(complex(1, 0)),
	}}

	cfg := DefaultConfig()
	driver := NewDriver(pat, 1, cfg)

	res, err := driver.Solve(y, nil, sources)
	require.NoError(t, err)
	require.LessOrEqual(t, res.Iterations, 4)
	require.InDelta(t, 1.0, real(res.U[0].Data[0]), 1e-9)
	require.InDelta(t, 0.0, imag(res.U[0].Data[0]), 1e-9)
}

func TestBuildLinearSeed_FoldsSourceIntoDiagonalAndRHS(t *testing.T) {
	pat := singleBusPattern()
	y := []Block[complex128]{scalarBlockC(complex(5, 0))}
	sources := []Source{{
		Bus:  0,
		YRef: scalarBlockC(complex(10, 0)),
		URef: complexVec(complex(1, 0)),
	}}

	data, rhs := BuildLinearSeed(pat, y, sources, 1)
	require.Equal(t, complex(15, 0), data[0].Data[0][0])
	require.Equal(t, complex(10, 0), rhs[0].Data[0])
}

func threeBusChainPattern() *Pattern {
	// Path topology 0-1-2, eliminated in natural order: no fill-in is
	// created since each node's only neighbors are adjacent in the chain.
	rowIndptr := []int32{0, 2, 5, 7}
	colIndices := []int32{0, 1, 0, 1, 2, 1, 2}
	diagLU := []int32{0, 3, 6}
	pat, err := NewPattern(rowIndptr, colIndices, diagLU, []int32{0, 1, 2, 3, 4, 5, 6})
	if err != nil {
		panic(err)
	}
	return pat
}

// Spec scenario 5: a small three-bus balanced network, source at bus 0,
// a const_pq load at bus 2, series-line admittances between 0-1 and 1-2.
// The source is stiff (y_ref=1000) relative to the line admittances
// (magnitude ~30) and the line admittances are in turn large relative to
// the load (magnitude ~0.54), which is the standard light-load regime
// flat-start Newton-Raphson converges in a handful of iterations for.
func TestDriverSolve_ThreeBusChainConvergesQuickly(t *testing.T) {
	pat := threeBusChainPattern()

	yLine := complex(10, -30)
	y := []Block[complex128]{
		scalarBlockC(yLine),   // Y00
		scalarBlockC(-yLine),  // Y01
		scalarBlockC(-yLine),  // Y10
		scalarBlockC(2 * yLine), // Y11 = yLine(0-1) + yLine(1-2)
		scalarBlockC(-yLine),  // Y12
		scalarBlockC(-yLine),  // Y21
		scalarBlockC(yLine),   // Y22
	}

	sources := []Source{{
		Bus:  0,
		YRef: scalarBlockC(complex(1000, 0)),
		URef: complexVec(complex(1, 0)),
	}}
	loads := []Load{{
		Bus:   2,
		Type:  ConstPQ,
		SBase: complexVec(complex(0.5, 0.2)),
	}}

	driver := NewDriver(pat, 1, DefaultConfig())
	res, err := driver.Solve(y, loads, sources)
	require.NoError(t, err)
	require.LessOrEqual(t, res.Iterations, 4)
	for i, u := range res.U {
		v := cabs(u.Data[0])
		require.GreaterOrEqualf(t, v, 0.9, "bus %d voltage magnitude %.6f below 0.9", i, v)
		require.LessOrEqualf(t, v, 1.0, "bus %d voltage magnitude %.6f above 1.0", i, v)
	}
}

// Spec scenario 6, exercised through the full Newton driver rather than a
// single Jacobian assembly: two identical const_y loads at the same bus
// must converge to the same voltage as one load with doubled base power.
func TestDriverSolve_TwoConstYLoadsMatchOneDoubledLoad(t *testing.T) {
	pat := singleBusPattern()
	y := []Block[complex128]{scalarBlockC(0)}
	sources := []Source{{
		Bus:  0,
		YRef: scalarBlockC(complex(10, 0)),
		URef: complexVec(complex(1, 0)),
	}}

	solve := func(loads []Load) complex128 {
		driver := NewDriver(pat, 1, DefaultConfig())
		res, err := driver.Solve(y, loads, sources)
		require.NoError(t, err)
		return res.U[0].Data[0]
	}

	single := solve([]Load{{Bus: 0, Type: ConstY, SBase: complexVec(complex(1.0, 0.4))}})
	doubled := solve([]Load{
		{Bus: 0, Type: ConstY, SBase: complexVec(complex(0.5, 0.2))},
		{Bus: 0, Type: ConstY, SBase: complexVec(complex(0.5, 0.2))},
	})

	require.InDelta(t, real(single), real(doubled), 1e-12)
	require.InDelta(t, imag(single), imag(doubled), 1e-12)
}

func TestDriverSolve_DidNotConvergeWrapsSentinel(t *testing.T) {
	pat := singleBusPattern()
	y := []Block[complex128]{scalarBlockC(0)}
	loads := []Load{{Bus: 0, Type: ConstPQ, SBase: complexVec(complex(1e9, 1e9))}}
	sources := []Source{{
		Bus:  0,
		YRef: scalarBlockC(complex(10, 0)),
		URef: complexVec(complex(1, 0)),
	}}

	cfg := DefaultConfig()
	cfg.MaxNewtonIter = 2
	driver := NewDriver(pat, 1, cfg)

	_, err := driver.Solve(y, loads, sources)
	require.ErrorIs(t, err, ErrDidNotConverge)
}
