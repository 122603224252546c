package pfsolver

import "fmt"

// traceIteration reports per-iteration Newton progress when Annotate >=
// 1, mirroring the teacher's Config.Annotate-gated WriteStatus: 0 stays
// silent, 1 prints a one-line summary, 2 additionally prints per-pivot
// detail from SBLU (see Trace below).
func (d *Driver) traceIteration(iter int, maxDev float64) {
	if d.Cfg.Annotate < 1 {
		return
	}
	fmt.Printf("newton: iter=%d max_dev=%.6e\n", iter, maxDev)
}

// Trace prints a per-pivot factorization note when Annotate >= 2.
func (s *SparseLU[T]) Trace(row int, perturbed bool) {
	if s.Cfg.Annotate < 2 {
		return
	}
	fmt.Printf("sblu: row=%d perturbed=%v\n", row, perturbed)
}
