package pfsolver

// SparseLU owns a shared Pattern and factors/solves block-data vectors
// conforming to it. A single instance is reused across Newton-Raphson
// iterations: each call to Prefactorize overwrites data in place and
// refreshes the permutation array.
//
// K is fixed for the lifetime of the instance (1 for the symmetric/
// scalar case, larger for block cases); every data entry supplied to
// Prefactorize/SolveWithPrefactorized must carry that same K. Running
// DBLU unconditionally even when K=1 is what lets this file avoid a
// parallel scalar code path — a 1x1 full pivot search and a no-op
// triangular solve reduce exactly to the scalar rules spec.md spells out
// separately.
type SparseLU[T Number] struct {
	Pattern *Pattern
	K       int
	Cfg     *Config

	colPos        []int32
	tau           float64
	perturbedLast bool
	original      []Block[T]
}

// NewSparseLU constructs a solver bound to pattern, with every entry
// sized K*K. A nil cfg takes DefaultConfig(); k is clamped to
// maxBlockDim since that is the largest square dimension Block/Vec can
// back.
func NewSparseLU[T Number](pattern *Pattern, k int, cfg *Config) *SparseLU[T] {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &SparseLU[T]{
		Pattern: pattern,
		K:       min(k, maxBlockDim),
		Cfg:     cfg,
		colPos:  make([]int32, pattern.N),
	}
}

// Perturbed reports whether the most recent Prefactorize perturbed any
// pivot.
func (s *SparseLU[T]) Perturbed() bool { return s.perturbedLast }

// Prefactorize factors data in place following the pattern's natural row
// order (right-looking, spec.md §4.2.1). perms must have one entry per
// pattern row; it is overwritten.
func (s *SparseLU[T]) Prefactorize(data []Block[T], perms []BlockPerm, allowPerturb bool) error {
	pat := s.Pattern
	if len(data) != pat.NNZ() {
		return AnnotateErr(ErrAssembly, "sblu: data length %d does not match pattern nnz %d", len(data), pat.NNZ())
	}
	if len(perms) != pat.N {
		return AnnotateErr(ErrAssembly, "sblu: perms length %d does not match pattern rows %d", len(perms), pat.N)
	}

	s.perturbedLast = false
	s.original = nil
	s.tau = 0

	if allowPerturb {
		s.original = make([]Block[T], len(data))
		copy(s.original, data)
		s.tau = epsilonPerturbation * offDiagInfNorm(pat, data)
	}

	for i := range s.colPos {
		s.colPos[i] = pat.RowIndptr[i]
	}

	for r := 0; r < pat.N; r++ {
		pi := pat.DiagLU[r]
		rowStart, rowEnd := pat.RowIndptr[r], pat.RowIndptr[r+1]

		perturbed, err := FactorizeBlockInPlace(&data[pi], &perms[r], s.tau, allowPerturb)
		if err != nil {
			return err
		}
		if perturbed {
			s.perturbedLast = true
		}
		s.Trace(r, perturbed)

		// Step 2: apply pivot permutations to existing L-row (entries
		// left of the diagonal) and, via the symmetric pattern, the
		// corresponding U-column entries in the smaller rows.
		for idx := rowStart; idx < pi; idx++ {
			j := int(pat.ColIndices[idx])
			data[idx] = permuteRowsLeft(&perms[r].P, s.K, &data[idx])

			jIdx := s.colPos[j]
			data[jIdx] = permuteColsRight(&perms[r].Q, s.K, &data[jIdx])
			s.colPos[j]++
		}

		// Step 3: complete this row's U entries to the right of the
		// diagonal: permute, then forward-substitute against the
		// pivot's strictly-lower part.
		for idx := pi + 1; idx < rowEnd; idx++ {
			data[idx] = permuteRowsLeft(&perms[r].P, s.K, &data[idx])
			solveURowAgainstL(&data[pi], &data[idx], s.K)
		}

		// Step 4: for each row i > r adjacent to r (found via row r's
		// own right-of-pivot columns, using pattern symmetry), compute
		// its L-column entry and apply the Schur update to the rest of
		// row i using row r's freshly completed U entries.
		for idx := pi + 1; idx < rowEnd; idx++ {
			i := int(pat.ColIndices[idx])
			lIdx := s.colPos[i]
			data[lIdx] = permuteColsRight(&perms[r].Q, s.K, &data[lIdx])
			solveLColumnAgainstU(&data[pi], &data[lIdx], s.K)
			s.colPos[i]++

			rowIEnd := pat.RowIndptr[i+1]
			cursor := pat.RowIndptr[i]
			for idx2 := pi + 1; idx2 < rowEnd; idx2++ {
				j2 := pat.ColIndices[idx2]
				for cursor < rowIEnd && pat.ColIndices[cursor] < j2 {
					cursor++
				}
				subMatMulInPlace(&data[cursor], &data[lIdx], &data[idx2])
			}
		}

		s.colPos[r]++
	}

	if !s.perturbedLast {
		s.original = nil
	}
	return nil
}

// SolveWithPrefactorized solves A*x = rhs against the most recent
// Prefactorize call, running iterative refinement automatically if that
// factorization perturbed a pivot.
func (s *SparseLU[T]) SolveWithPrefactorized(data []Block[T], perms []BlockPerm, rhs []Vec[T], x []Vec[T]) error {
	s.solveOnce(data, perms, rhs, x)
	if !s.perturbedLast {
		return nil
	}
	return s.refine(data, perms, rhs, x)
}

// PrefactorizeAndSolve is the convenience composition of the two steps
// above.
func (s *SparseLU[T]) PrefactorizeAndSolve(data []Block[T], perms []BlockPerm, rhs []Vec[T], x []Vec[T], allowPerturb bool) error {
	if err := s.Prefactorize(data, perms, allowPerturb); err != nil {
		return err
	}
	return s.SolveWithPrefactorized(data, perms, rhs, x)
}

// solveOnce performs standard block forward/backward substitution with
// permutations (spec.md §4.2.2). x is fully overwritten; it may alias
// rhs's backing storage only through the caller's own aliasing choices,
// never through this function's own indexing.
func (s *SparseLU[T]) solveOnce(data []Block[T], perms []BlockPerm, rhs []Vec[T], x []Vec[T]) {
	pat := s.Pattern
	n := pat.N
	k := s.K

	for r := 0; r < n; r++ {
		xr := permuteGatherVec(&perms[r].P, k, &rhs[r])
		rowStart, pi := pat.RowIndptr[r], pat.DiagLU[r]
		for idx := rowStart; idx < pi; idx++ {
			j := int(pat.ColIndices[idx])
			subMatVecInPlace(&xr, &data[idx], &x[j])
		}
		for bi := 0; bi < k; bi++ {
			for bj := 0; bj < bi; bj++ {
				xr.Data[bi] -= data[pi].Data[bi][bj] * xr.Data[bj]
			}
		}
		x[r] = xr
	}

	for r := n - 1; r >= 0; r-- {
		pi, rowEnd := pat.DiagLU[r], pat.RowIndptr[r+1]
		xr := x[r]
		for idx := pi + 1; idx < rowEnd; idx++ {
			j := int(pat.ColIndices[idx])
			subMatVecInPlace(&xr, &data[idx], &x[j])
		}
		for bi := k - 1; bi >= 0; bi-- {
			for bj := k - 1; bj > bi; bj-- {
				xr.Data[bi] -= data[pi].Data[bi][bj] * xr.Data[bj]
			}
			xr.Data[bi] /= data[pi].Data[bi][bi]
		}
		x[r] = xr
	}

	// The U entries above each pivot were right-multiplied by that pivot's
	// Q during Prefactorize, so the backward sweep works in permuted
	// column order; Q is undone only once every row is solved.
	for r := 0; r < n; r++ {
		x[r] = permuteScatterVec(&perms[r].Q, k, &x[r])
	}
}

// solveURowAgainstL forward-substitutes u against pivot's strictly-lower
// part: u.row(br) -= sum_{bc<br} pivot(br,bc)*u.row(bc), operating on u's
// own k columns.
func solveURowAgainstL[T Number](pivot, u *Block[T], k int) {
	for br := 0; br < k; br++ {
		for bc := 0; bc < br; bc++ {
			factor := pivot.Data[br][bc]
			for c := 0; c < k; c++ {
				u.Data[br][c] -= factor * u.Data[bc][c]
			}
		}
	}
}

// solveLColumnAgainstU triangular-solves l's columns against pivot's
// upper part from the right: l.col(bc) -= sum_{br<bc} pivot(br,bc)*
// l.col(br), then l.col(bc) /= pivot(bc,bc). For k=1 this reduces exactly
// to the scalar rule "data /= pivot".
func solveLColumnAgainstU[T Number](pivot, l *Block[T], k int) {
	for bc := 0; bc < k; bc++ {
		for br := 0; br < bc; br++ {
			factor := pivot.Data[br][bc]
			for r := 0; r < k; r++ {
				l.Data[r][bc] -= factor * l.Data[r][br]
			}
		}
		diag := pivot.Data[bc][bc]
		for r := 0; r < k; r++ {
			l.Data[r][bc] /= diag
		}
	}
}

// offDiagInfNorm computes the off-diagonal block infinity norm used to
// scale the perturbation threshold: for each sparse row and each of its
// internal phase-rows, sum the off-diagonal entries' row-wise max-abs;
// take the max over every (row, phase-row) pair.
func offDiagInfNorm[T Number](pat *Pattern, data []Block[T]) float64 {
	var result float64
	for r := 0; r < pat.N; r++ {
		k := data[pat.DiagLU[r]].K
		var rowSum [maxBlockDim]float64
		start, end := pat.RowIndptr[r], pat.RowIndptr[r+1]
		for idx := start; idx < end; idx++ {
			if int(pat.ColIndices[idx]) == r {
				continue
			}
			b := &data[idx]
			for bi := 0; bi < k; bi++ {
				var m float64
				for bj := 0; bj < k; bj++ {
					if a := cabs(b.Data[bi][bj]); a > m {
						m = a
					}
				}
				rowSum[bi] += m
			}
		}
		for bi := 0; bi < k; bi++ {
			if rowSum[bi] > result {
				result = rowSum[bi]
			}
		}
	}
	return result
}
