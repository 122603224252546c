// Package pfsolver implements the numerical core of a steady-state
// power-system simulator: a sparse block LU factorization engine with
// full pivoting, pivot perturbation and iterative refinement, wrapped by
// a Newton-Raphson power-flow iteration that repeatedly assembles and
// solves a block-sparse Jacobian.
package pfsolver

import "math"

// Number is the scalar field the core is parameterized over: real double
// for the symmetric (single-phase) case, complex double for the
// asymmetric (three-phase) case.
type Number interface {
	~float64 | ~complex128
}

// maxBlockDim is the largest square dimension a Block or Vec can hold.
// The power-flow Jacobian uses 2*k per bus (k in {1,3}), so 6 covers both
// the admittance/voltage case (k<=3) and the Jacobian case (2k<=6).
const maxBlockDim = 6

// Block is a K*K dense tensor, K in {1,2,3,6} depending on use site.
// K=1 degrades every block operation to the plain scalar case without a
// separate code path.
type Block[T Number] struct {
	K    int
	Data [maxBlockDim][maxBlockDim]T
}

// NewBlock returns a zero block of the given size.
func NewBlock[T Number](k int) Block[T] {
	return Block[T]{K: k}
}

// NewScalarBlock wraps a single scalar value as a K=1 block.
func NewScalarBlock[T Number](v T) Block[T] {
	b := Block[T]{K: 1}
	b.Data[0][0] = v
	return b
}

func (b *Block[T]) Get(i, j int) T    { return b.Data[i][j] }
func (b *Block[T]) Set(i, j int, v T) { b.Data[i][j] = v }

// Zero resets the block to a zero block of size k.
func (b *Block[T]) Zero(k int) {
	b.K = k
	for i := 0; i < maxBlockDim; i++ {
		for j := 0; j < maxBlockDim; j++ {
			b.Data[i][j] = zeroOf[T]()
		}
	}
}

// Vec is a K-length column vector, K in {1,2,3,6}.
type Vec[T Number] struct {
	K    int
	Data [maxBlockDim]T
}

func NewVec[T Number](k int) Vec[T] { return Vec[T]{K: k} }

func (v *Vec[T]) Get(i int) T    { return v.Data[i] }
func (v *Vec[T]) Set(i int, x T) { v.Data[i] = x }

func (v *Vec[T]) Zero(k int) {
	v.K = k
	for i := 0; i < maxBlockDim; i++ {
		v.Data[i] = zeroOf[T]()
	}
}

// BlockPerm records the row/column permutation chosen by DBLU's full
// pivot for one diagonal block. Size always equals that block's K; for
// K=1 both P and Q reduce to the trivial one-element identity, matching
// spec's "k=1 reduces the block case to scalars" without a separate
// zero-size representation.
type BlockPerm struct {
	Size int
	P, Q [maxBlockDim]int8
}

// Identity resets the permutation to the identity of the given size.
func (p *BlockPerm) Identity(size int) {
	p.Size = size
	for i := 0; i < size; i++ {
		p.P[i] = int8(i)
		p.Q[i] = int8(i)
	}
}

// Pattern is the shared, immutable sparsity pattern of a sparse block
// matrix, already symbolic-LU fill-in aware. It is built once upstream
// and referenced read-only by every SparseLU instance that factors data
// conforming to it; it must never be mutated after construction, and may
// be shared by reference across concurrently running solves.
type Pattern struct {
	N int // number of block rows/columns

	// RowIndptr[0..N]: row start offsets into the entry arrays.
	RowIndptr []int32
	// ColIndices[0..nnz): column index per entry, ascending within a row.
	ColIndices []int32
	// DiagLU[0..N): entry index of each row's diagonal.
	DiagLU []int32
	// MapLUYBus[0..nnz): index into the admittance data for entries that
	// originate from Y; -1 marks a fill-in-only position.
	MapLUYBus []int32
}

// NewPattern validates and wraps a pre-built symbolic-LU-aware sparsity
// pattern. The arrays are taken by reference; the caller must not mutate
// them afterwards.
func NewPattern(rowIndptr, colIndices, diagLU, mapLUYBus []int32) (*Pattern, error) {
	n := len(rowIndptr) - 1
	if n < 1 {
		return nil, AnnotateErr(ErrAssembly, "pattern: need at least one row")
	}
	nnz := rowIndptr[n]
	if int(nnz) != len(colIndices) {
		return nil, AnnotateErr(ErrAssembly, "pattern: colIndices length does not match row_indptr[n]")
	}
	if len(diagLU) != n {
		return nil, AnnotateErr(ErrAssembly, "pattern: diagLU must have one entry per row")
	}
	if mapLUYBus != nil && len(mapLUYBus) != int(nnz) {
		return nil, AnnotateErr(ErrAssembly, "pattern: mapLUYBus length does not match nnz")
	}
	for r := 0; r < n; r++ {
		start, end := rowIndptr[r], rowIndptr[r+1]
		for k := start + 1; k < end; k++ {
			if colIndices[k] <= colIndices[k-1] {
				return nil, AnnotateErr(ErrAssembly, "pattern: row %d columns not strictly ascending", r)
			}
		}
	}
	return &Pattern{
		N:          n,
		RowIndptr:  rowIndptr,
		ColIndices: colIndices,
		DiagLU:     diagLU,
		MapLUYBus:  mapLUYBus,
	}, nil
}

// NNZ returns the number of block entries (including fill-ins) described
// by the pattern.
func (p *Pattern) NNZ() int { return int(p.RowIndptr[p.N]) }

// Config carries the tunables shared by SparseLU and Driver. A nil
// Config passed to a constructor is replaced by DefaultConfig().
type Config struct {
	// AllowPerturb permits pivot perturbation during factorization; when
	// false, an unusable pivot fails the solve with ErrSingular instead.
	AllowPerturb bool
	// MaxRefinement bounds the iterative-refinement loop (spec: 5 extra
	// iterations beyond the initial correction, hard cap of 6 total).
	MaxRefinement int
	// MaxNewtonIter bounds the Newton-Raphson outer iteration.
	MaxNewtonIter int
	// ConvergenceTol is the max-deviation threshold for Newton convergence.
	ConvergenceTol float64
	// Annotate gates diagnostic tracing: 0 silent, 1 per-iteration
	// summary, 2 full per-pivot trace. See log.go.
	Annotate int
}

// DefaultConfig returns the module's baseline tunables.
func DefaultConfig() *Config {
	return &Config{
		AllowPerturb:   false,
		MaxRefinement:  maxRefinement,
		MaxNewtonIter:  20,
		ConvergenceTol: 1e-6,
		Annotate:       0,
	}
}

// Fixed numeric constants, per spec section 6.
const (
	epsilonPerturbation = 1e-13
	minDenomRatio       = 1e-4
	maxRefinement       = 5
)

var machineEpsilon = math.Nextafter(1, 2) - 1

func zeroOf[T Number]() T {
	var z T
	return z
}
