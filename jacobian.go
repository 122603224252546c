package pfsolver

import "math/cmplx"

// LoadType selects how a load's base power scales with bus voltage.
type LoadType int

const (
	ConstPQ LoadType = iota
	ConstI
	ConstY
)

// Load is a per-bus load descriptor; SBase carries one complex power
// value per phase (length busK).
type Load struct {
	Bus   int
	Type  LoadType
	SBase Vec[complex128]
}

// Source is a per-bus source descriptor, modeled as a fictive two-bus
// subnetwork of reference admittance YRef tied to reference voltage
// URef (both length/size busK).
type Source struct {
	Bus  int
	YRef Block[complex128]
	URef Vec[complex128]
}

// BusMismatch is the per-bus (p, q) power mismatch, each length busK.
type BusMismatch struct {
	P, Q Vec[float64]
}

// AssembleJacobian builds the block-sparse Newton-Raphson Jacobian jac
// and mismatch vector dpq (spec §4.3), both aligned with pat: jac has
// one (2*busK)x(2*busK) entry per pattern position, dpq one 2*busK
// vector per row. u holds current bus voltages (busK complex components
// per bus); y holds admittance data aligned with pat.MapLUYBus.
func AssembleJacobian(pat *Pattern, u []Vec[complex128], y []Block[complex128], loads []Load, sources []Source, busK int, jac []Block[float64], dpq []Vec[float64]) error {
	for r := 0; r < pat.N; r++ {
		var mismatch BusMismatch
		mismatch.P.Zero(busK)
		mismatch.Q.Zero(busK)

		start, end := pat.RowIndptr[r], pat.RowIndptr[r+1]
		for idx := start; idx < end; idx++ {
			jcol := int(pat.ColIndices[idx])

			var h, n, m, l Block[float64]
			yIdx := int32(-1)
			if pat.MapLUYBus != nil {
				yIdx = pat.MapLUYBus[idx]
			}
			if yIdx == -1 {
				h, n, m, l = NewBlock[float64](busK), NewBlock[float64](busK), NewBlock[float64](busK), NewBlock[float64](busK)
			} else {
				h, n, m, l = calculateHNML(&y[yIdx], &u[r], &u[jcol], busK)
			}
			setJacBlock(&jac[idx], busK, &h, &n, &m, &l)

			nRowSum := blockRowSum(&n, busK)
			hRowSum := blockRowSum(&h, busK)
			for a := 0; a < busK; a++ {
				mismatch.P.Data[a] -= nRowSum.Data[a]
				mismatch.Q.Data[a] -= hRowSum.Data[a]
			}
		}

		diagIdx := pat.DiagLU[r]
		h, n, m, l := getJacQuadrants(&jac[diagIdx], busK)
		for a := 0; a < busK; a++ {
			h.Data[a][a] += mismatch.Q.Data[a]
			n.Data[a][a] -= mismatch.P.Data[a]
			m.Data[a][a] -= mismatch.P.Data[a]
			l.Data[a][a] -= mismatch.Q.Data[a]
		}
		setJacBlock(&jac[diagIdx], busK, &h, &n, &m, &l)

		for li := range loads {
			ld := &loads[li]
			if ld.Bus != r {
				continue
			}
			if err := applyLoad(ld, &u[r], busK, &mismatch, &jac[diagIdx]); err != nil {
				return err
			}
		}

		for si := range sources {
			src := &sources[si]
			if src.Bus != r {
				continue
			}
			applySource(src, &u[r], busK, &mismatch, &jac[diagIdx])
		}

		dpq[r].K = 2 * busK
		for a := 0; a < busK; a++ {
			dpq[r].Data[a] = mismatch.P.Data[a]
			dpq[r].Data[busK+a] = mismatch.Q.Data[a]
		}
	}
	return nil
}

// calculateHNML computes S_ik = (u[i] (x) conj(u[k])) . conj(Y_ik)
// (Hadamard product with the outer product) and decomposes it into the
// four real Jacobian quadrants H=Im(S), N=Re(S), M=-N, L=H.
func calculateHNML(y *Block[complex128], ui, uk *Vec[complex128], k int) (h, n, m, l Block[float64]) {
	h, n, m, l = NewBlock[float64](k), NewBlock[float64](k), NewBlock[float64](k), NewBlock[float64](k)
	for a := 0; a < k; a++ {
		for b := 0; b < k; b++ {
			s := ui.Data[a] * cmplx.Conj(uk.Data[b]) * cmplx.Conj(y.Data[a][b])
			h.Data[a][b] = imag(s)
			n.Data[a][b] = real(s)
			m.Data[a][b] = -real(s)
			l.Data[a][b] = imag(s)
		}
	}
	return
}

// blockRowSum returns, for each internal row, the sum across columns —
// the identity in the scalar (k=1) case, per spec's "row_sum is identity
// in the scalar case".
func blockRowSum(b *Block[float64], k int) Vec[float64] {
	out := NewVec[float64](k)
	for a := 0; a < k; a++ {
		var sum float64
		for bb := 0; bb < k; bb++ {
			sum += b.Data[a][bb]
		}
		out.Data[a] = sum
	}
	return out
}

// setJacBlock packs the four busK*busK quadrants into jb, sized
// (2*busK)x(2*busK): [[H N] [M L]].
func setJacBlock(jb *Block[float64], k int, h, n, m, l *Block[float64]) {
	jb.K = 2 * k
	for a := 0; a < k; a++ {
		for b := 0; b < k; b++ {
			jb.Data[a][b] = h.Data[a][b]
			jb.Data[a][k+b] = n.Data[a][b]
			jb.Data[k+a][b] = m.Data[a][b]
			jb.Data[k+a][k+b] = l.Data[a][b]
		}
	}
}

// getJacQuadrants unpacks jb's four quadrants.
func getJacQuadrants(jb *Block[float64], k int) (h, n, m, l Block[float64]) {
	h, n, m, l = NewBlock[float64](k), NewBlock[float64](k), NewBlock[float64](k), NewBlock[float64](k)
	for a := 0; a < k; a++ {
		for b := 0; b < k; b++ {
			h.Data[a][b] = jb.Data[a][b]
			n.Data[a][b] = jb.Data[a][k+b]
			m.Data[a][b] = jb.Data[k+a][b]
			l.Data[a][b] = jb.Data[k+a][k+b]
		}
	}
	return
}

// addJacDiagonal adds per-phase values into the diagonals of the four
// quadrants of jb (sized 2*busK), as load/source corrections do.
func addJacDiagonal(jb *Block[float64], k int, dH, dN, dM, dL []float64) {
	for a := 0; a < k; a++ {
		jb.Data[a][a] += dH[a]
		jb.Data[a][k+a] += dN[a]
		jb.Data[k+a][a] += dM[a]
		jb.Data[k+a][k+a] += dL[a]
	}
}

func applyLoad(ld *Load, ui *Vec[complex128], busK int, mismatch *BusMismatch, jacDiag *Block[float64]) error {
	v := make([]float64, busK)
	for a := 0; a < busK; a++ {
		v[a] = cabs(ui.Data[a])
	}

	dN := make([]float64, busK)
	dL := make([]float64, busK)

	switch ld.Type {
	case ConstPQ:
		for a := 0; a < busK; a++ {
			mismatch.P.Data[a] += real(ld.SBase.Data[a])
			mismatch.Q.Data[a] += imag(ld.SBase.Data[a])
		}
	case ConstI:
		for a := 0; a < busK; a++ {
			val := ld.SBase.Data[a] * complex(v[a], 0)
			mismatch.P.Data[a] += real(val)
			mismatch.Q.Data[a] += imag(val)
			dN[a] = -real(val)
			dL[a] = -imag(val)
		}
		addJacDiagonal(jacDiag, busK, make([]float64, busK), dN, make([]float64, busK), dL)
	case ConstY:
		for a := 0; a < busK; a++ {
			val := ld.SBase.Data[a] * complex(v[a]*v[a], 0)
			mismatch.P.Data[a] += real(val)
			mismatch.Q.Data[a] += imag(val)
			dN[a] = -2 * real(val)
			dL[a] = -2 * imag(val)
		}
		addJacDiagonal(jacDiag, busK, make([]float64, busK), dN, make([]float64, busK), dL)
	default:
		return AnnotateErr(ErrAssembly, "jacobian: unrecognized load type %d at bus %d", ld.Type, ld.Bus)
	}
	return nil
}

func applySource(src *Source, ui *Vec[complex128], busK int, mismatch *BusMismatch, jacDiag *Block[float64]) {
	hmm, nmm, mmm, lmm := calculateHNML(&src.YRef, ui, ui, busK)

	var yNeg Block[complex128]
	yNeg.K = busK
	for a := 0; a < busK; a++ {
		for b := 0; b < busK; b++ {
			yNeg.Data[a][b] = -src.YRef.Data[a][b]
		}
	}
	hms, nms, _, _ := calculateHNML(&yNeg, ui, &src.URef, busK)

	nmmSum := blockRowSum(&nmm, busK)
	nmsSum := blockRowSum(&nms, busK)
	hmmSum := blockRowSum(&hmm, busK)
	hmsSum := blockRowSum(&hms, busK)

	pCal := make([]float64, busK)
	qCal := make([]float64, busK)
	for a := 0; a < busK; a++ {
		pCal[a] = nmmSum.Data[a] + nmsSum.Data[a]
		qCal[a] = hmmSum.Data[a] + hmsSum.Data[a]
	}

	for a := 0; a < busK; a++ {
		hmm.Data[a][a] -= qCal[a]
		nmm.Data[a][a] += pCal[a]
		mmm.Data[a][a] += pCal[a]
		lmm.Data[a][a] += qCal[a]

		mismatch.P.Data[a] -= pCal[a]
		mismatch.Q.Data[a] -= qCal[a]
	}

	addJacQuadrants(jacDiag, busK, &hmm, &nmm, &mmm, &lmm)
}

// addJacQuadrants adds each of h, n, m, l element-wise into the matching
// quadrant of jb — used to fold a source's fictive two-bus contribution
// into the bus's own diagonal Jacobian entry.
func addJacQuadrants(jb *Block[float64], k int, h, n, m, l *Block[float64]) {
	for a := 0; a < k; a++ {
		for b := 0; b < k; b++ {
			jb.Data[a][b] += h.Data[a][b]
			jb.Data[a][k+b] += n.Data[a][b]
			jb.Data[k+a][b] += m.Data[a][b]
			jb.Data[k+a][k+b] += l.Data[a][b]
		}
	}
}
