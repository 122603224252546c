package pfsolver

import (
	"math"
	"math/cmplx"

	"golang.org/x/exp/constraints"
)

// min and max generalize over any ordered type, the same gap the teacher
// fills with its own utils.go helper since math.Min/math.Max are
// float64-only. Used here for block sizes and refinement iteration caps.
func min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// cabs returns |v| for either field: math.Abs for real, cmplx.Abs for
// complex. Go generics give no single operator for this, so the scalar
// field is recovered with a type switch on the boxed value.
func cabs[T Number](v T) float64 {
	switch x := any(v).(type) {
	case float64:
		return math.Abs(x)
	case complex128:
		return cmplx.Abs(x)
	}
	panic("pfsolver: unsupported Number type")
}

// fromReal promotes a real float64 into the scalar field T.
func fromReal[T Number](v float64) T {
	var zero T
	var out any
	switch any(zero).(type) {
	case float64:
		out = v
	case complex128:
		out = complex(v, 0)
	default:
		panic("pfsolver: unsupported Number type")
	}
	return out.(T)
}

// isFinite reports whether every component of v is finite.
func isFinite[T Number](v T) bool {
	switch x := any(v).(type) {
	case float64:
		return !math.IsNaN(x) && !math.IsInf(x, 0)
	case complex128:
		re, im := real(x), imag(x)
		return !math.IsNaN(re) && !math.IsInf(re, 0) && !math.IsNaN(im) && !math.IsInf(im, 0)
	}
	panic("pfsolver: unsupported Number type")
}

// blockAdd returns a+b for K*K blocks of equal size.
func blockAdd[T Number](a, b *Block[T]) Block[T] {
	out := NewBlock[T](a.K)
	for i := 0; i < a.K; i++ {
		for j := 0; j < a.K; j++ {
			out.Data[i][j] = a.Data[i][j] + b.Data[i][j]
		}
	}
	return out
}

// blockSub returns a-b for K*K blocks of equal size.
func blockSub[T Number](a, b *Block[T]) Block[T] {
	out := NewBlock[T](a.K)
	for i := 0; i < a.K; i++ {
		for j := 0; j < a.K; j++ {
			out.Data[i][j] = a.Data[i][j] - b.Data[i][j]
		}
	}
	return out
}

// blockMatMul returns a*b (K*K times K*K -> K*K).
func blockMatMul[T Number](a, b *Block[T]) Block[T] {
	k := a.K
	out := NewBlock[T](k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			var sum T
			for p := 0; p < k; p++ {
				sum += a.Data[i][p] * b.Data[p][j]
			}
			out.Data[i][j] = sum
		}
	}
	return out
}

// blockMatVec returns a*x (K*K times K -> K), the "dot" primitive used by
// forward/backward substitution.
func blockMatVec[T Number](a *Block[T], x *Vec[T]) Vec[T] {
	k := a.K
	out := NewVec[T](k)
	for i := 0; i < k; i++ {
		var sum T
		for j := 0; j < k; j++ {
			sum += a.Data[i][j] * x.Data[j]
		}
		out.Data[i] = sum
	}
	return out
}

// subMatVecInPlace computes dst -= a*x.
func subMatVecInPlace[T Number](dst *Vec[T], a *Block[T], x *Vec[T]) {
	prod := blockMatVec(a, x)
	for i := 0; i < dst.K; i++ {
		dst.Data[i] -= prod.Data[i]
	}
}

// subMatMulInPlace computes dst -= a*b, the Schur-update primitive.
func subMatMulInPlace[T Number](dst, a, b *Block[T]) {
	prod := blockMatMul(a, b)
	for i := 0; i < dst.K; i++ {
		for j := 0; j < dst.K; j++ {
			dst.Data[i][j] -= prod.Data[i][j]
		}
	}
}

// vecAdd returns a+b.
func vecAdd[T Number](a, b *Vec[T]) Vec[T] {
	out := NewVec[T](a.K)
	for i := 0; i < a.K; i++ {
		out.Data[i] = a.Data[i] + b.Data[i]
	}
	return out
}

// vecSub returns a-b.
func vecSub[T Number](a, b *Vec[T]) Vec[T] {
	out := NewVec[T](a.K)
	for i := 0; i < a.K; i++ {
		out.Data[i] = a.Data[i] - b.Data[i]
	}
	return out
}

// absInfRow returns the inf-norm (max abs entry) of row i of block b.
func absInfRow[T Number](b *Block[T], i int) float64 {
	var m float64
	for j := 0; j < b.K; j++ {
		if a := cabs(b.Data[i][j]); a > m {
			m = a
		}
	}
	return m
}

// absInfVec returns the max abs component of v.
func absInfVec[T Number](v *Vec[T]) float64 {
	var m float64
	for i := 0; i < v.K; i++ {
		if a := cabs(v.Data[i]); a > m {
			m = a
		}
	}
	return m
}

// permuteGatherVec returns dst[i] = src[perm[i]] for i in [0,k).
func permuteGatherVec[T Number](perm *[maxBlockDim]int8, k int, src *Vec[T]) Vec[T] {
	out := NewVec[T](k)
	for i := 0; i < k; i++ {
		out.Data[i] = src.Data[perm[i]]
	}
	return out
}

// permuteScatterVec returns dst[perm[i]] = src[i] for i in [0,k).
func permuteScatterVec[T Number](perm *[maxBlockDim]int8, k int, src *Vec[T]) Vec[T] {
	out := NewVec[T](k)
	for i := 0; i < k; i++ {
		out.Data[perm[i]] = src.Data[i]
	}
	return out
}

// permuteRowsLeft returns the block with rows gathered per perm:
// out[i][*] = b[perm[i]][*].
func permuteRowsLeft[T Number](perm *[maxBlockDim]int8, k int, b *Block[T]) Block[T] {
	out := NewBlock[T](k)
	for i := 0; i < k; i++ {
		out.Data[i] = b.Data[perm[i]]
	}
	return out
}

// permuteColsRight returns the block with columns gathered per perm:
// out[*][j] = b[*][perm[j]].
func permuteColsRight[T Number](perm *[maxBlockDim]int8, k int, b *Block[T]) Block[T] {
	out := NewBlock[T](k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			out.Data[i][j] = b.Data[i][perm[j]]
		}
	}
	return out
}
