package analog_test

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhaoxian-Wu/aihwkit/internal/analog"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

func row(device tensor.Device, values ...float32) *tensor.RawTensor {
	return tensor.MustFromFloat32(values, tensor.Shape{1, len(values)}, device)
}

func sharedFor(tile *recordingTile) *tensor.RawTensor {
	return tile.weights.Copy().To(tile.device)
}

func catchError(fn func()) error {
	return exceptions.TryCatch[error](fn)
}

func TestForwardBackward_DeferredAccumulatesTrace(t *testing.T) {
	tile := newRecordingTile(2, 3)
	ctx := analog.NewContext(tile)
	before := tile.weights.Copy()

	const n = 5
	for i := 0; i < n; i++ {
		x := row(tensor.CPU, 1, float32(i), 2)
		y, saved := analog.Forward(ctx, tile, x, nil, false)
		assert.Equal(t, tensor.Shape{1, 2}, y.Shape())
		assert.Equal(t, analog.UpdateDeferred, ctx.UpdateMode())

		gradInput, weightGrad := analog.Backward(saved, row(tensor.CPU, 0.5, -0.5))
		assert.Equal(t, tensor.Shape{1, 3}, gradInput.Shape())
		assert.Nil(t, weightGrad)
		assert.Equal(t, i+1, ctx.TraceLen())
	}

	assert.Len(t, ctx.InputTrace(), n)
	assert.Len(t, ctx.ErrorTrace(), n)
	assert.Equal(t, analog.TraceAccumulating, ctx.TraceState())
	assert.Zero(t, tile.called("Update"), "deferred mode leaves weights to the optimizer")
	assert.True(t, tensor.AllClose(before, tile.weights, 0))

	// Pairs are kept in call order.
	assert.Equal(t, []float32{1, 3, 2}, ctx.InputTrace()[3].AsFloat32())
}

func TestForwardBackward_DirectReturnsWeightGradient(t *testing.T) {
	tile := newRecordingTile(2, 3)
	ctx := analog.NewContext(tile)
	shared := sharedFor(tile)

	x := row(tensor.CPU, 1, 2, 3)
	_, saved := analog.Forward(ctx, tile, x, shared, false)
	assert.Equal(t, analog.UpdateDirect, ctx.UpdateMode())

	gradInput, weightGrad := analog.Backward(saved, row(tensor.CPU, 1, -1))

	require.NotNil(t, weightGrad)
	assert.Equal(t, shared.Shape(), weightGrad.Shape())
	assert.Equal(t, []float32{1, 2, 3, -1, -2, -3}, weightGrad.AsFloat32())
	// d @ W with W = [[.1 .2 .3] [.4 .5 .6]].
	assert.InDeltaSlice(t, []float32{-0.3, -0.3, -0.3}, gradInput.AsFloat32(), 1e-6)

	assert.Nil(t, tile.delta, "delta-weights target is detached after backward")
	assert.Equal(t, 1, tile.called("SetDeltaWeights"))
	assert.Equal(t, 1, tile.called("ResetDeltaWeights"))
	assert.Equal(t, 1, tile.called("Update"))
	assert.False(t, ctx.HasGradient(), "direct mode does not touch the trace")
	assert.True(t, tensor.AllClose(sharedFor(tile), shared, 0), "shared weights are not modified")
}

func TestForwardBackward_DirectCallsLeaveTraceAlone(t *testing.T) {
	tile := newRecordingTile(2, 3)
	ctx := analog.NewContext(tile)
	runDeferred(ctx, tile, 2)

	_, saved := analog.Forward(ctx, tile, row(tensor.CPU, 1, 1, 1), sharedFor(tile), false)
	_, weightGrad := analog.Backward(saved, row(tensor.CPU, 1, 1))

	assert.NotNil(t, weightGrad)
	assert.Equal(t, 2, ctx.TraceLen())
}

func TestForwardBackward_InterleavedPairs(t *testing.T) {
	tile := newRecordingTile(2, 3)
	ctx := analog.NewContext(tile)

	// Two forwards before their backwards, as with a layer applied twice.
	_, s1 := analog.Forward(ctx, tile, row(tensor.CPU, 1, 0, 0), nil, false)
	_, s2 := analog.Forward(ctx, tile, row(tensor.CPU, 0, 1, 0), nil, false)
	analog.Backward(s2, row(tensor.CPU, 2, 2))
	analog.Backward(s1, row(tensor.CPU, 1, 1))

	require.Equal(t, 2, ctx.TraceLen())
	assert.Equal(t, []float32{0, 1, 0}, ctx.InputTrace()[0].AsFloat32())
	assert.Equal(t, []float32{2, 2}, ctx.ErrorTrace()[0].AsFloat32())
	assert.Equal(t, []float32{1, 0, 0}, ctx.InputTrace()[1].AsFloat32())
}

func TestForward_DoesNotChangeWeights(t *testing.T) {
	tile := newRecordingTile(2, 3)
	ctx := analog.NewContext(tile)
	before := tile.weights.Copy()

	analog.Forward(ctx, tile, row(tensor.CPU, 1, 2, 3), nil, true)
	analog.Forward(ctx, tile, row(tensor.CPU, 1, 2, 3), sharedFor(tile), false)

	assert.True(t, tensor.AllClose(before, tile.weights, 0))
	assert.Zero(t, tile.called("Update"))
	assert.Zero(t, tile.called("UpdateIndexed"))
}

func TestForwardBackward_IndexedRouting(t *testing.T) {
	tile := newRecordingTile(2, 3)
	ctx := analog.NewContext(tile)
	ctx.SetIndexed(true)

	_, saved := analog.Forward(ctx, tile, row(tensor.CPU, 1, 2, 3), sharedFor(tile), false)
	analog.Backward(saved, row(tensor.CPU, 1, 1))
	runDeferred(ctx, tile, 1)

	assert.Equal(t, 2, tile.called("JointForwardIndexed"))
	assert.Equal(t, 2, tile.called("BackwardIndexed"))
	assert.Equal(t, 1, tile.called("UpdateIndexed"))
	assert.Zero(t, tile.called("JointForward"))
	assert.Zero(t, tile.called("Backward"))
	assert.Zero(t, tile.called("Update"))
}

func TestForward_OffloadsSavedInput(t *testing.T) {
	tile := newRecordingTile(2, 3)
	tile.device = tensor.WebGPU
	tile.runtime = analog.RuntimeConfig{OffloadInput: true}
	ctx := analog.NewContext(tile)

	// Deferred: the trace keeps the host copy.
	x := row(tensor.WebGPU, 1, 2, 3)
	_, saved := analog.Forward(ctx, tile, x, nil, false)
	assert.True(t, saved.Offloaded())
	assert.Equal(t, tensor.CPU, saved.SavedInput().Device())
	assert.Equal(t, tensor.WebGPU, x.Device(), "the caller's input is not moved")

	analog.Backward(saved, row(tensor.WebGPU, 1, 1))
	require.Equal(t, 1, ctx.TraceLen())
	assert.Equal(t, tensor.CPU, ctx.InputTrace()[0].Device())
	assert.Equal(t, tensor.WebGPU, ctx.ErrorTrace()[0].Device())

	// Direct: the input is restored to the tile device for the update.
	_, saved = analog.Forward(ctx, tile, x, sharedFor(tile), false)
	analog.Backward(saved, row(tensor.WebGPU, 1, 1))
	assert.Equal(t, []tensor.Device{tensor.WebGPU}, tile.updateDevices)
}

func TestForward_HostInputIsNotOffloaded(t *testing.T) {
	tile := newRecordingTile(2, 3)
	tile.runtime = analog.RuntimeConfig{OffloadInput: true}
	ctx := analog.NewContext(tile)

	x := row(tensor.CPU, 1, 2, 3)
	_, saved := analog.Forward(ctx, tile, x, nil, false)
	assert.False(t, saved.Offloaded())
	assert.Same(t, x, saved.SavedInput())
}

func TestBackward_OffloadsDeferredGradient(t *testing.T) {
	tile := newRecordingTile(2, 3)
	tile.device = tensor.CUDA
	tile.runtime = analog.RuntimeConfig{OffloadGradient: true}
	ctx := analog.NewContext(tile)

	x := row(tensor.CUDA, 1, 2, 3)
	_, saved := analog.Forward(ctx, tile, x, nil, false)
	analog.Backward(saved, row(tensor.CUDA, 1, 1))

	require.Equal(t, 1, ctx.TraceLen())
	assert.Equal(t, tensor.CPU, ctx.ErrorTrace()[0].Device())
	assert.Same(t, x, ctx.InputTrace()[0], "input offload is a separate policy")
}

func TestBackward_ReleasesSavedState(t *testing.T) {
	tile := newRecordingTile(2, 3)
	ctx := analog.NewContext(tile)

	_, saved := analog.Forward(ctx, tile, row(tensor.CPU, 1, 2, 3), nil, false)
	require.NotNil(t, saved.SavedInput())
	assert.Same(t, ctx, saved.Context())

	analog.Backward(saved, row(tensor.CPU, 1, 1))
	assert.True(t, saved.Consumed())
	assert.Nil(t, saved.SavedInput())

	err := catchError(func() { analog.Backward(saved, row(tensor.CPU, 1, 1)) })
	require.Error(t, err)
	assert.True(t, errors.Is(err, analog.ErrSavedStateReused))
	assert.Equal(t, 1, ctx.TraceLen())
}

func TestBackward_WithoutForwardPanics(t *testing.T) {
	err := catchError(func() { analog.Backward(nil, row(tensor.CPU, 1, 1)) })
	require.Error(t, err)
	assert.True(t, errors.Is(err, analog.ErrNoSavedState))
}

func TestForward_UnboundPanics(t *testing.T) {
	tile := newRecordingTile(2, 3)
	err := catchError(func() { analog.Forward(nil, tile, row(tensor.CPU, 1, 2, 3), nil, false) })
	require.Error(t, err)
	assert.True(t, errors.Is(err, analog.ErrUnbound))
}

func TestForward_SharedWeightsMismatchPanics(t *testing.T) {
	tile := newRecordingTile(2, 3)
	ctx := analog.NewContext(tile)

	wrongShape := tensor.Zeros(tensor.Shape{3, 2}, tensor.CPU)
	err := catchError(func() { analog.Forward(ctx, tile, row(tensor.CPU, 1, 2, 3), wrongShape, false) })
	require.Error(t, err)
	assert.True(t, errors.Is(err, analog.ErrSharedWeightsMismatch))
	assert.Zero(t, tile.called("EnsureSharedWeights"))

	intWeights, e := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Int32, tensor.CPU)
	require.NoError(t, e)
	err = catchError(func() { analog.Forward(ctx, tile, row(tensor.CPU, 1, 2, 3), intWeights, false) })
	assert.True(t, errors.Is(err, analog.ErrSharedWeightsMismatch))
}

func TestBackward_DirectModeFollowsContext(t *testing.T) {
	tile := newRecordingTile(2, 3)
	ctx := analog.NewContext(tile)

	// A direct forward followed by a deferred forward on the same context:
	// the mode in effect at backward time is the context's current one.
	_, direct := analog.Forward(ctx, tile, row(tensor.CPU, 1, 2, 3), sharedFor(tile), false)
	_, deferred := analog.Forward(ctx, tile, row(tensor.CPU, 3, 2, 1), nil, false)

	_, weightGrad := analog.Backward(deferred, row(tensor.CPU, 1, 1))
	assert.Nil(t, weightGrad)
	assert.Equal(t, 1, ctx.TraceLen())

	_, weightGrad = analog.Backward(direct, row(tensor.CPU, 1, 1))
	assert.Nil(t, weightGrad)
	assert.Equal(t, 2, ctx.TraceLen())
}

func TestBackward_DirectWithoutSharedWeightsPanics(t *testing.T) {
	tile := newRecordingTile(2, 3)
	ctx := analog.NewContext(tile)

	_, deferred := analog.Forward(ctx, tile, row(tensor.CPU, 1, 2, 3), nil, false)
	analog.Forward(ctx, tile, row(tensor.CPU, 1, 2, 3), sharedFor(tile), false)

	err := catchError(func() { analog.Backward(deferred, row(tensor.CPU, 1, 1)) })
	require.Error(t, err)
	assert.True(t, errors.Is(err, analog.ErrSharedWeightsMismatch))
	assert.Equal(t, 0, ctx.TraceLen())
}
