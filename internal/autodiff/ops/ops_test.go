package ops_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhaoxian-Wu/aihwkit/internal/autodiff/ops"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

type opLog struct {
	ops []ops.Operation
}

func (l *opLog) Record(op ops.Operation) { l.ops = append(l.ops, op) }

func TestReLU(t *testing.T) {
	log := &opLog{}
	x := tensor.MustFromFloat32([]float32{-1, 0, 2}, tensor.Shape{3}, tensor.CPU)

	y := ops.ReLU(log, x)
	assert.Equal(t, []float32{0, 0, 2}, y.AsFloat32())
	require.Len(t, log.ops, 1)

	g := log.ops[0].Backward(tensor.MustFromFloat32([]float32{5, 5, 5}, tensor.Shape{3}, tensor.CPU))
	assert.Equal(t, []float32{0, 0, 5}, g[0].AsFloat32())
}

func TestAddBias(t *testing.T) {
	x := tensor.MustFromFloat32([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.CPU)
	b := tensor.MustFromFloat32([]float32{1, -1}, tensor.Shape{2}, tensor.CPU)
	log := &opLog{}

	y := ops.AddBias(log, x, b)
	assert.Equal(t, []float32{2, 1, 4, 3}, y.AsFloat32())

	grads := log.ops[0].Backward(tensor.MustFromFloat32([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.CPU))
	assert.Equal(t, []float32{1, 2, 3, 4}, grads[0].AsFloat32())
	assert.Equal(t, []float32{4, 6}, grads[1].AsFloat32())
}

func TestMSE(t *testing.T) {
	p := tensor.MustFromFloat32([]float32{1, 3}, tensor.Shape{2, 1}, tensor.CPU)
	y := tensor.MustFromFloat32([]float32{0, 1}, tensor.Shape{2, 1}, tensor.CPU)
	log := &opLog{}

	loss := ops.MSE(log, p, y)
	assert.InDelta(t, 2.5, loss.AsFloat32()[0], 1e-6)

	grads := log.ops[0].Backward(tensor.MustFromFloat32([]float32{1}, tensor.Shape{1}, tensor.CPU))
	assert.Equal(t, []float32{1, 2}, grads[0].AsFloat32())
	assert.Nil(t, grads[1])
}

func TestMSE_ShapeMismatch(t *testing.T) {
	p := tensor.Zeros(tensor.Shape{2}, tensor.CPU)
	y := tensor.Zeros(tensor.Shape{3}, tensor.CPU)
	assert.Panics(t, func() { ops.MSE(nil, p, y) })
}
