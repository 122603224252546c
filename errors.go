package pfsolver

import (
	"errors"
	"fmt"
)

// Sentinel error categories, checkable via errors.Is at package
// boundaries (SBLU -> JA -> NRD), replacing the teacher's plain
// fmt.Errorf-only habit with wrapped sentinels.
var (
	// ErrSingular means a diagonal pivot was unusable (zero, non-finite
	// or, when perturbation is enabled, still zero after perturbation) and
	// no further factorization is possible, or that iterative refinement
	// exhausted its iteration budget.
	ErrSingular = errors.New("pfsolver: singular pivot")
	// ErrDidNotConverge means the Newton-Raphson outer loop exhausted its
	// iteration budget without meeting tolerance.
	ErrDidNotConverge = errors.New("pfsolver: did not converge")
	// ErrAssembly means the Jacobian assembler or pattern validation was
	// given inconsistent input (mismatched dimensions, malformed pattern,
	// unknown load type).
	ErrAssembly = errors.New("pfsolver: assembly error")
)

// AnnotateErr wraps sentinel with a formatted message, preserving
// errors.Is(result, sentinel).
func AnnotateErr(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}
