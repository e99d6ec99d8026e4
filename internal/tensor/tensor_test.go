package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

func TestNewRaw_InvalidShape(t *testing.T) {
	_, err := tensor.NewRaw(tensor.Shape{2, 0}, tensor.Float32, tensor.CPU)
	require.Error(t, err)
}

func TestFromFloat32_LengthMismatch(t *testing.T) {
	_, err := tensor.FromFloat32([]float32{1, 2, 3}, tensor.Shape{2, 2}, tensor.CPU)
	require.Error(t, err)
}

func TestRawTensor_ToSameDeviceIsIdentity(t *testing.T) {
	x := tensor.MustFromFloat32([]float32{1, 2}, tensor.Shape{2}, tensor.CPU)
	assert.Same(t, x, x.To(tensor.CPU))
}

func TestRawTensor_ToOtherDeviceCopies(t *testing.T) {
	x := tensor.MustFromFloat32([]float32{1, 2}, tensor.Shape{2}, tensor.CPU)
	y := x.To(tensor.WebGPU)

	assert.Equal(t, tensor.WebGPU, y.Device())
	assert.False(t, y.SharesStorage(x))
	assert.Equal(t, x.AsFloat32(), y.AsFloat32())

	y.AsFloat32()[0] = 42
	assert.Equal(t, float32(1), x.AsFloat32()[0])
}

func TestRawTensor_CloneSharesCopyDoesNot(t *testing.T) {
	x := tensor.MustFromFloat32([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.CPU)

	c := x.Clone()
	assert.True(t, c.SharesStorage(x))
	assert.False(t, x.IsUnique())

	d := x.Copy()
	assert.False(t, d.SharesStorage(x))
	d.AsFloat32()[3] = -1
	assert.Equal(t, float32(4), x.AsFloat32()[3])
}

func TestRawTensor_CastRoundTrip(t *testing.T) {
	x := tensor.MustFromFloat32([]float32{0.5, -1.25, 2}, tensor.Shape{3}, tensor.CPU)

	h, err := x.Cast(tensor.Float16)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float16, h.DType())
	assert.Equal(t, 6, h.ByteSize())

	back, err := h.Cast(tensor.Float32)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1.25, 2}, back.AsFloat32())

	d, err := x.Cast(tensor.Float64)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -1.25, 2}, d.AsFloat64())
}

func TestRawTensor_CastIntegerRejected(t *testing.T) {
	x, err := tensor.NewRaw(tensor.Shape{2}, tensor.Int32, tensor.CPU)
	require.NoError(t, err)
	_, err = x.Cast(tensor.Float32)
	require.Error(t, err)
}

func TestRawTensor_CopyFrom(t *testing.T) {
	dst := tensor.Zeros(tensor.Shape{2}, tensor.CPU)
	src := tensor.MustFromFloat32([]float32{3, 4}, tensor.Shape{2}, tensor.CPU)
	require.NoError(t, dst.CopyFrom(src))
	assert.Equal(t, []float32{3, 4}, dst.AsFloat32())

	require.Error(t, dst.CopyFrom(tensor.Zeros(tensor.Shape{3}, tensor.CPU)))
}

func TestParseDevice(t *testing.T) {
	d, ok := tensor.ParseDevice("WebGPU")
	require.True(t, ok)
	assert.Equal(t, tensor.WebGPU, d)

	d, ok = tensor.ParseDevice("host")
	require.True(t, ok)
	assert.Equal(t, tensor.CPU, d)
	assert.False(t, d.IsAccelerator())

	_, ok = tensor.ParseDevice("tpu")
	assert.False(t, ok)
}

func TestShape_RowsCols(t *testing.T) {
	s := tensor.Shape{2, 3, 4}
	assert.Equal(t, 6, s.Rows())
	assert.Equal(t, 4, s.Cols())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
}
