package tensor

import (
	"math"

	"github.com/gomlx/exceptions"

	"github.com/Zhaoxian-Wu/aihwkit/internal/parallel"
)

// Kernels below operate on float32 tensors only and treat every tensor of
// rank >= 2 as a matrix whose rows are all leading dimensions folded together.
// Misuse (wrong dtype, mismatched shapes) panics: callers are expected to
// validate shapes at their API boundary.

var kernelConfig = parallel.DefaultConfig()

// SetKernelConfig replaces the parallelism settings used by the kernels.
func SetKernelConfig(cfg parallel.Config) {
	kernelConfig = cfg
}

func requireFloat32(op string, ts ...*RawTensor) {
	for _, t := range ts {
		if t.DType() != Float32 {
			exceptions.Panicf("%s: only float32 tensors are supported, got %s", op, t.DType())
		}
	}
}

// MatMulTransB computes a @ b^T for a [.., K] and b [N, K], returning [.., N].
// This is the forward of a weight matrix stored as [out, in].
func MatMulTransB(a, b *RawTensor) *RawTensor {
	requireFloat32("MatMulTransB", a, b)
	rows, k := a.Shape().Rows(), a.Shape().Cols()
	if len(b.Shape()) != 2 || b.Shape()[1] != k {
		exceptions.Panicf("MatMulTransB: incompatible shapes %v and %v^T", a.Shape(), b.Shape())
	}
	n := b.Shape()[0]

	outShape := append(a.Shape()[:len(a.Shape())-1].Clone(), n)
	if len(a.Shape()) == 1 {
		outShape = Shape{n}
	}
	out := Zeros(outShape, a.Device())
	aData, bData, oData := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()

	parallel.Rows(rows, func(start, end int) {
		for i := start; i < end; i++ {
			aRow := aData[i*k : (i+1)*k]
			for j := 0; j < n; j++ {
				bRow := bData[j*k : (j+1)*k]
				var sum float32
				for p, v := range aRow {
					sum += v * bRow[p]
				}
				oData[i*n+j] = sum
			}
		}
	}, kernelConfig)
	return out
}

// MatMul computes a @ b for a [.., K] and b [K, N], returning [.., N].
// This is the backward (error propagation) of a weight matrix stored as [out, in].
func MatMul(a, b *RawTensor) *RawTensor {
	requireFloat32("MatMul", a, b)
	rows, k := a.Shape().Rows(), a.Shape().Cols()
	if len(b.Shape()) != 2 || b.Shape()[0] != k {
		exceptions.Panicf("MatMul: incompatible shapes %v and %v", a.Shape(), b.Shape())
	}
	n := b.Shape()[1]

	outShape := append(a.Shape()[:len(a.Shape())-1].Clone(), n)
	if len(a.Shape()) == 1 {
		outShape = Shape{n}
	}
	out := Zeros(outShape, a.Device())
	aData, bData, oData := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()

	parallel.Rows(rows, func(start, end int) {
		for i := start; i < end; i++ {
			oRow := oData[i*n : (i+1)*n]
			for p := 0; p < k; p++ {
				av := aData[i*k+p]
				if av == 0 {
					continue
				}
				bRow := bData[p*n : (p+1)*n]
				for j, bv := range bRow {
					oRow[j] += av * bv
				}
			}
		}
	}, kernelConfig)
	return out
}

// OuterSum computes d^T @ x summed over all rows: d [.., N], x [.., K] -> [N, K].
// It is the weight gradient of y = x @ W^T.
func OuterSum(d, x *RawTensor) *RawTensor {
	requireFloat32("OuterSum", d, x)
	rows := d.Shape().Rows()
	if x.Shape().Rows() != rows {
		exceptions.Panicf("OuterSum: row mismatch between %v and %v", d.Shape(), x.Shape())
	}
	n, k := d.Shape().Cols(), x.Shape().Cols()
	out := Zeros(Shape{n, k}, x.Device())
	dData, xData, oData := d.AsFloat32(), x.AsFloat32(), out.AsFloat32()

	// Parallel over output rows so each goroutine owns its slice of out.
	parallel.Rows(n, func(start, end int) {
		for r := 0; r < rows; r++ {
			xRow := xData[r*k : (r+1)*k]
			for j := start; j < end; j++ {
				dv := dData[r*n+j]
				if dv == 0 {
					continue
				}
				oRow := oData[j*k : (j+1)*k]
				for p, xv := range xRow {
					oRow[p] += dv * xv
				}
			}
		}
	}, kernelConfig)
	return out
}

// Add returns a + b element-wise. Shapes must be equal.
func Add(a, b *RawTensor) *RawTensor {
	return zipWith("Add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub returns a - b element-wise. Shapes must be equal.
func Sub(a, b *RawTensor) *RawTensor {
	return zipWith("Sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul returns a * b element-wise. Shapes must be equal.
func Mul(a, b *RawTensor) *RawTensor {
	return zipWith("Mul", a, b, func(x, y float32) float32 { return x * y })
}

func zipWith(op string, a, b *RawTensor, f func(x, y float32) float32) *RawTensor {
	requireFloat32(op, a, b)
	if !a.Shape().Equal(b.Shape()) {
		exceptions.Panicf("%s: shape mismatch %v vs %v", op, a.Shape(), b.Shape())
	}
	out := ZerosLike(a)
	aData, bData, oData := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()
	for i := range oData {
		oData[i] = f(aData[i], bData[i])
	}
	return out
}

// Scale returns x * s.
func Scale(x *RawTensor, s float32) *RawTensor {
	requireFloat32("Scale", x)
	out := ZerosLike(x)
	oData := out.AsFloat32()
	for i, v := range x.AsFloat32() {
		oData[i] = v * s
	}
	return out
}

// AddRowVector adds the vector v [N] to every row of x [.., N].
func AddRowVector(x, v *RawTensor) *RawTensor {
	requireFloat32("AddRowVector", x, v)
	n := x.Shape().Cols()
	if v.NumElements() != n {
		exceptions.Panicf("AddRowVector: vector %v does not match row width %d", v.Shape(), n)
	}
	out := x.Copy()
	oData, vData := out.AsFloat32(), v.AsFloat32()
	for i := range oData {
		oData[i] += vData[i%n]
	}
	return out
}

// SumRows sums x [.., N] over all rows into a [N] vector.
func SumRows(x *RawTensor) *RawTensor {
	requireFloat32("SumRows", x)
	n := x.Shape().Cols()
	out := Zeros(Shape{n}, x.Device())
	oData := out.AsFloat32()
	for i, v := range x.AsFloat32() {
		oData[i%n] += v
	}
	return out
}

// GatherColumns builds out[r, j] = x[r, index[j]] for x [.., K] and returns [.., len(index)].
// Negative indices select zero (padding).
func GatherColumns(x *RawTensor, index []int) *RawTensor {
	requireFloat32("GatherColumns", x)
	rows, k := x.Shape().Rows(), x.Shape().Cols()
	m := len(index)
	for _, idx := range index {
		if idx >= k {
			exceptions.Panicf("GatherColumns: index %d out of range for width %d", idx, k)
		}
	}
	out := Zeros(Shape{rows, m}, x.Device())
	xData, oData := x.AsFloat32(), out.AsFloat32()
	for r := 0; r < rows; r++ {
		for j, idx := range index {
			if idx >= 0 {
				oData[r*m+j] = xData[r*k+idx]
			}
		}
	}
	return out
}

// ScatterAddColumns is the adjoint of GatherColumns: it accumulates g [.., len(index)]
// into a zero tensor of the given shape at columns index.
func ScatterAddColumns(g *RawTensor, index []int, shape Shape) *RawTensor {
	requireFloat32("ScatterAddColumns", g)
	rows, m := g.Shape().Rows(), g.Shape().Cols()
	if m != len(index) {
		exceptions.Panicf("ScatterAddColumns: gradient width %d does not match %d indices", m, len(index))
	}
	if shape.Rows() != rows {
		exceptions.Panicf("ScatterAddColumns: target shape %v has %d rows, gradient has %d", shape, shape.Rows(), rows)
	}
	out := Zeros(shape, g.Device())
	k := shape.Cols()
	gData, oData := g.AsFloat32(), out.AsFloat32()
	for r := 0; r < rows; r++ {
		for j, idx := range index {
			if idx >= 0 {
				oData[r*k+idx] += gData[r*m+j]
			}
		}
	}
	return out
}

// MaxAbsDiff returns max |a - b| over all elements, or +Inf if shapes differ.
func MaxAbsDiff(a, b *RawTensor) float64 {
	if !a.Shape().Equal(b.Shape()) {
		return math.Inf(1)
	}
	av, bv := a.Float32s(), b.Float32s()
	var m float64
	for i := range av {
		m = max(m, math.Abs(float64(av[i]-bv[i])))
	}
	return m
}

// AllClose reports whether a and b have equal shapes and all values within tol.
func AllClose(a, b *RawTensor, tol float64) bool {
	return MaxAbsDiff(a, b) <= tol
}
