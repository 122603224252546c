package pfsolver

import "math"

// FactorizeBlockInPlace performs full-pivoting in-place LU factorization
// of a k*k block M, mutating M to carry L (strictly lower, unit diagonal
// implicit) and U (upper including diagonal). tau is the absolute
// perturbation threshold; allowPerturb gates whether a too-small pivot is
// replaced rather than left to fail downstream. It reports whether any
// pivot was perturbed.
//
// k=1 runs the same loop with a trivial 1x1 trailing search, matching
// spec's "k=1 reduces the block case to scalars; share code".
func FactorizeBlockInPlace[T Number](m *Block[T], perm *BlockPerm, tau float64, allowPerturb bool) (perturbed bool, err error) {
	k := m.K
	perm.Identity(k)

	var rowTrans, colTrans [maxBlockDim]int8
	for i := 0; i < k; i++ {
		rowTrans[i] = int8(i)
		colTrans[i] = int8(i)
	}

	var maxPivot float64
	stopped := false

	for pivot := 0; pivot < k; pivot++ {
		if stopped {
			break
		}

		rb, cb, s := searchMaxAbsSq(m, pivot, k)

		if s == 0 {
			if !allowPerturb {
				stopped = true
				break
			}
		}

		pivotAbs := math.Sqrt(s)
		if pivotAbs < tau && allowPerturb {
			v := m.Data[rb][cb]
			m.Data[rb][cb] = perturbToTau(v, tau)
			pivotAbs = tau
			perturbed = true
		}

		rowTrans[pivot] = int8(rb)
		colTrans[pivot] = int8(cb)
		swapRows(m, pivot, rb, k)
		swapCols(m, pivot, cb, k)

		pv := m.Data[pivot][pivot]
		if pv != zeroOf[T]() {
			for i := pivot + 1; i < k; i++ {
				m.Data[i][pivot] /= pv
			}
			for i := pivot + 1; i < k; i++ {
				for j := pivot + 1; j < k; j++ {
					m.Data[i][j] -= m.Data[i][pivot] * m.Data[pivot][j]
				}
			}
		}

		if pivotAbs > maxPivot {
			maxPivot = pivotAbs
		}
	}

	perm.P = composeTranspositions(rowTrans, k, false)
	perm.Q = composeTranspositions(colTrans, k, false)

	sigma := 0.0
	if !perturbed {
		sigma = machineEpsilon * maxPivot
	}
	for i := 0; i < k; i++ {
		d := m.Data[i][i]
		a := cabs(d)
		// A literal zero diagonal is singular even when sigma collapses
		// to 0 (no pivot ever found nonzero, so machineEpsilon*maxPivot
		// is degenerate rather than a meaningful threshold).
		if !isFinite(d) || a == 0 || a < sigma {
			return perturbed, AnnotateErr(ErrSingular, "dblu: pivot %d magnitude %.3e below threshold %.3e", i, a, sigma)
		}
	}
	return perturbed, nil
}

// searchMaxAbsSq locates the entry of maximum squared magnitude in the
// trailing (k-pivot)x(k-pivot) submatrix, returning its global indices
// and that squared magnitude.
func searchMaxAbsSq[T Number](m *Block[T], pivot, k int) (rb, cb int, s float64) {
	rb, cb = pivot, pivot
	for i := pivot; i < k; i++ {
		for j := pivot; j < k; j++ {
			a := cabs(m.Data[i][j])
			sq := a * a
			if sq > s {
				s = sq
				rb, cb = i, j
			}
		}
	}
	return rb, cb, s
}

func perturbToTau[T Number](v T, tau float64) T {
	a := cabs(v)
	if a == 0 {
		return fromReal[T](tau)
	}
	factor := tau / a
	return v * fromReal[T](factor)
}

func swapRows[T Number](m *Block[T], a, b, k int) {
	if a == b {
		return
	}
	m.Data[a], m.Data[b] = m.Data[b], m.Data[a]
}

func swapCols[T Number](m *Block[T], a, b, k int) {
	if a == b {
		return
	}
	for i := 0; i < k; i++ {
		m.Data[i][a], m.Data[i][b] = m.Data[i][b], m.Data[i][a]
	}
}

// composeTranspositions replays the per-step row/column swaps into a
// single permutation array. With reverse=false the swaps are replayed in
// the order DBLU made them, giving gather indices (entry i names the
// original row or column now at position i); both P and Q are built this
// way. reverse=true replays them backwards, which gives the inverse
// (scatter) form.
func composeTranspositions(trans [maxBlockDim]int8, k int, reverse bool) [maxBlockDim]int8 {
	var idx [maxBlockDim]int8
	for i := 0; i < k; i++ {
		idx[i] = int8(i)
	}
	if reverse {
		for pivot := k - 1; pivot >= 0; pivot-- {
			t := trans[pivot]
			idx[pivot], idx[t] = idx[t], idx[pivot]
		}
	} else {
		for pivot := 0; pivot < k; pivot++ {
			t := trans[pivot]
			idx[pivot], idx[t] = idx[t], idx[pivot]
		}
	}
	return idx
}
