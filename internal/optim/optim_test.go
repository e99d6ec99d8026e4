package optim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhaoxian-Wu/aihwkit/internal/accel"
	"github.com/Zhaoxian-Wu/aihwkit/internal/analog"
	"github.com/Zhaoxian-Wu/aihwkit/internal/autodiff"
	"github.com/Zhaoxian-Wu/aihwkit/internal/nn"
	"github.com/Zhaoxian-Wu/aihwkit/internal/optim"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tile"
)

func scalarParam(name string, v float32) *nn.Parameter {
	return nn.NewParameter(name, tensor.MustFromFloat32([]float32{v}, tensor.Shape{1}, tensor.CPU))
}

func gradsFor(param *nn.Parameter, g float32) map[*tensor.RawTensor]*tensor.RawTensor {
	return map[*tensor.RawTensor]*tensor.RawTensor{
		param.Tensor(): tensor.MustFromFloat32([]float32{g}, tensor.Shape{1}, tensor.CPU),
	}
}

func TestSGD_SimpleUpdate(t *testing.T) {
	param := scalarParam("x", 2)
	optimizer := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1})

	optimizer.Step(gradsFor(param, 1))

	// x_new = x_old - lr * grad = 2.0 - 0.1 * 1.0 = 1.9
	assert.InDelta(t, 1.9, param.Tensor().AsFloat32()[0], 1e-6)
	require.NotNil(t, param.Grad())
	optimizer.ZeroGrad()
	assert.Nil(t, param.Grad())
}

func TestSGD_WithMomentum(t *testing.T) {
	param := scalarParam("x", 1)
	optimizer := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})

	// v1 = 1, x1 = 1 - 0.1 = 0.9
	optimizer.Step(gradsFor(param, 1))
	assert.InDelta(t, 0.9, param.Tensor().AsFloat32()[0], 1e-6)

	// v2 = 0.9 * 1 + 1 = 1.9, x2 = 0.9 - 0.19 = 0.71
	optimizer.Step(gradsFor(param, 1))
	assert.InDelta(t, 0.71, param.Tensor().AsFloat32()[0], 1e-6)
}

func TestSGD_SkipsParametersWithoutGradient(t *testing.T) {
	used, unused := scalarParam("used", 1), scalarParam("unused", 1)
	optimizer := optim.NewSGD([]*nn.Parameter{used, unused}, optim.SGDConfig{})

	optimizer.Step(gradsFor(used, 1))

	assert.InDelta(t, 0.99, used.Tensor().AsFloat32()[0], 1e-6)
	assert.Equal(t, float32(1), unused.Tensor().AsFloat32()[0])
	assert.Equal(t, float32(0.01), optimizer.GetLR())
	optimizer.SetLR(0.5)
	assert.Equal(t, float32(0.5), optimizer.GetLR())
}

func TestSGD_StateDict(t *testing.T) {
	param := scalarParam("x", 1)
	optimizer := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	optimizer.Step(gradsFor(param, 1))

	state := optimizer.StateDict()
	require.Contains(t, state, "velocity.0")

	restored := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	require.NoError(t, restored.LoadStateDict(state))
	optimizer.Step(gradsFor(param, 1))
	assert.InDelta(t, 1.9, optimizer.StateDict()["velocity.0"].AsFloat32()[0], 1e-6)

	err := restored.LoadStateDict(map[string]*tensor.RawTensor{"velocity.0": tensor.Zeros(tensor.Shape{2}, tensor.CPU)})
	assert.Error(t, err)

	plain := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{})
	assert.Empty(t, plain.StateDict())
}

func TestAdam_Step(t *testing.T) {
	param := scalarParam("x", 1)
	optimizer := optim.NewAdam([]*nn.Parameter{param}, optim.AdamConfig{LR: 0.1})

	// After bias correction the first step moves by lr * sign(grad).
	optimizer.Step(gradsFor(param, 2))

	assert.InDelta(t, 0.9, param.Tensor().AsFloat32()[0], 1e-5)
	assert.Equal(t, 1, optimizer.GetTimestep())
	assert.Equal(t, float32(0.1), optimizer.GetLR())
}

func TestAdam_StateDict(t *testing.T) {
	param := scalarParam("x", 1)
	optimizer := optim.NewAdam([]*nn.Parameter{param}, optim.AdamConfig{})
	optimizer.Step(gradsFor(param, 2))
	optimizer.Step(gradsFor(param, 2))

	state := optimizer.StateDict()
	assert.Contains(t, state, "m.0")
	assert.Contains(t, state, "v.0")

	restored := optim.NewAdam([]*nn.Parameter{param}, optim.AdamConfig{})
	require.NoError(t, restored.LoadStateDict(state))
	assert.Equal(t, 2, restored.GetTimestep())

	err := restored.LoadStateDict(map[string]*tensor.RawTensor{"m.0": tensor.Zeros(tensor.Shape{3}, tensor.CPU)})
	assert.Error(t, err)
}

// trainStep runs x=[1, 2] against target 1 through layer and returns the
// gradients. With zero weights the output error is -2.
func trainStep(t *testing.T, layer *nn.AnalogLinear, device tensor.Device) map[*tensor.RawTensor]*tensor.RawTensor {
	t.Helper()
	tape := autodiff.NewGradientTape()
	tape.StartRecording()
	x := tensor.MustFromFloat32([]float32{1, 2}, tensor.Shape{1, 2}, device)
	target := tensor.MustFromFloat32([]float32{1}, tensor.Shape{1, 1}, device)
	loss := nn.NewMSELoss().Forward(tape, layer.Forward(tape, x), target)
	return autodiff.Backward(tape, loss)
}

func zeroLayer(t *testing.T, cfg nn.AnalogLinearConfig) *nn.AnalogLinear {
	t.Helper()
	cfg.Tile.LR, cfg.Tile.DWMin, cfg.Tile.MaxPulses = 0.1, 0.01, 100
	layer, err := nn.NewAnalogLinear(2, 1, cfg)
	require.NoError(t, err)
	require.NoError(t, layer.LoadStateDict(map[string]*tensor.RawTensor{
		"weight": tensor.Zeros(tensor.Shape{1, 2}, tensor.CPU),
	}))
	return layer
}

func TestAnalogSGD_ConsumesTrace(t *testing.T) {
	layer := zeroLayer(t, nn.AnalogLinearConfig{})
	optimizer := optim.NewAnalogSGD(layer, nil, optim.AnalogSGDConfig{})

	grads := trainStep(t, layer, tensor.CPU)
	require.Equal(t, 1, layer.Context().TraceLen())
	optimizer.Step(grads)

	// dw = d^T x = [-2, -4]; pulses = round(0.1 * |dw| / 0.01) = [20, 40].
	assert.InDeltaSlice(t, []float32{0.2, 0.4}, layer.Tile().Weights().AsFloat32(), 1e-6)
	assert.InDeltaSlice(t, []float32{0.2, 0.4}, layer.Context().Data().AsFloat32(), 1e-6)
	assert.False(t, layer.Context().HasGradient())
	assert.Equal(t, analog.TraceIdle, layer.Context().TraceState())
	assert.Equal(t, tile.Stats{Updates: 1, Pulses: 60}, layer.Tile().Stats())
	assert.Equal(t, optim.AnalogStats{Steps: 1, TileUpdates: 1, ConsumedPairs: 1}, optimizer.Stats())

	// Nothing pending: the next step leaves the tile alone.
	optimizer.Step(nil)
	assert.Equal(t, int64(1), layer.Tile().Stats().Updates)
}

func TestAnalogSGD_ReplaysEveryPair(t *testing.T) {
	layer := zeroLayer(t, nn.AnalogLinearConfig{})
	optimizer := optim.NewAnalogSGD(layer, nil, optim.AnalogSGDConfig{})

	trainStep(t, layer, tensor.CPU)
	trainStep(t, layer, tensor.CPU)
	optimizer.Step(nil)

	assert.InDeltaSlice(t, []float32{0.4, 0.8}, layer.Tile().Weights().AsFloat32(), 1e-6)
	assert.Equal(t, int64(2), optimizer.Stats().ConsumedPairs)
	assert.Equal(t, int64(2), layer.Tile().Stats().Updates)
}

func TestAnalogSGD_PushesLearningRate(t *testing.T) {
	layer := zeroLayer(t, nn.AnalogLinearConfig{})
	optimizer := optim.NewAnalogSGD(layer, nil, optim.AnalogSGDConfig{LR: 0.05})
	assert.Equal(t, float32(0.05), optimizer.GetLR())

	optimizer.Step(trainStep(t, layer, tensor.CPU))

	assert.Equal(t, float32(0.05), layer.Tile().LearningRate())
	assert.InDeltaSlice(t, []float32{0.1, 0.2}, layer.Tile().Weights().AsFloat32(), 1e-6)
}

func TestAnalogSGD_DirectModeMatchesDeferred(t *testing.T) {
	layer := zeroLayer(t, nn.AnalogLinearConfig{Direct: true})
	digital := optim.NewSGD(layer.Parameters(), optim.SGDConfig{LR: 0.1})
	optimizer := optim.NewAnalogSGD(layer, digital, optim.AnalogSGDConfig{})

	optimizer.Step(trainStep(t, layer, tensor.CPU))

	// w -= 0.1 * [-2, -4], the same result as the pulsed update above.
	assert.InDeltaSlice(t, []float32{0.2, 0.4}, layer.Weight().Tensor().AsFloat32(), 1e-6)
	assert.InDeltaSlice(t, []float32{0.2, 0.4}, layer.Tile().Weights().AsFloat32(), 1e-6)
	assert.InDeltaSlice(t, []float32{0.2, 0.4}, layer.Context().Data().AsFloat32(), 1e-6)
	assert.Equal(t, int64(0), optimizer.Stats().TileUpdates)
	assert.Equal(t, int64(0), layer.Tile().Stats().Updates)
	assert.Equal(t, float32(0.1), optimizer.GetLR())
}

func TestAnalogSGD_IndexedTrace(t *testing.T) {
	layer := zeroLayer(t, nn.AnalogLinearConfig{IndexTable: []int{1, 0}})
	optimizer := optim.NewAnalogSGD(layer, nil, optim.AnalogSGDConfig{})

	optimizer.Step(trainStep(t, layer, tensor.CPU))

	// The tile reads x through the index table: [x1, x0] = [2, 1].
	assert.InDeltaSlice(t, []float32{0.4, 0.2}, layer.Tile().Weights().AsFloat32(), 1e-6)
}

func TestAnalogSGD_OffloadedTraceOnAccelerator(t *testing.T) {
	layer := zeroLayer(t, nn.AnalogLinearConfig{Tile: tile.Config{
		Probe:   accel.Always(true),
		Runtime: analog.RuntimeConfig{OffloadInput: true, OffloadGradient: true},
	}})
	require.NoError(t, layer.To(tensor.WebGPU))
	optimizer := optim.NewAnalogSGD(layer, nil, optim.AnalogSGDConfig{})

	grads := trainStep(t, layer, tensor.WebGPU)
	require.Equal(t, tensor.CPU, layer.Context().InputTrace()[0].Device())
	require.Equal(t, tensor.CPU, layer.Context().ErrorTrace()[0].Device())
	optimizer.Step(grads)

	assert.InDeltaSlice(t, []float32{0.2, 0.4}, layer.Tile().Weights().AsFloat32(), 1e-6)
	assert.Equal(t, tensor.WebGPU, layer.Context().Data().Device())
}

func TestAnalogSGD_FollowsReplacedContexts(t *testing.T) {
	layer := zeroLayer(t, nn.AnalogLinearConfig{})
	optimizer := optim.NewAnalogSGD(layer, nil, optim.AnalogSGDConfig{})

	// LoadStateDict in zeroLayer already replaced the first context; load again.
	require.NoError(t, layer.LoadStateDict(layer.StateDict()))
	optimizer.Step(trainStep(t, layer, tensor.CPU))

	assert.Equal(t, int64(1), optimizer.Stats().TileUpdates)
	assert.False(t, layer.Context().HasGradient())
}

func TestAnalogSGD_StateDictDelegates(t *testing.T) {
	bias := scalarParam("bias", 0)
	layer := zeroLayer(t, nn.AnalogLinearConfig{})
	digital := optim.NewSGD([]*nn.Parameter{bias}, optim.SGDConfig{LR: 0.1, Momentum: 0.5})
	optimizer := optim.NewAnalogSGD(nn.NewSequential(layer), digital, optim.AnalogSGDConfig{})

	optimizer.Step(gradsFor(bias, 1))
	assert.Contains(t, optimizer.StateDict(), "velocity.0")
	require.NoError(t, optimizer.LoadStateDict(optimizer.StateDict()))

	plain := optim.NewAnalogSGD(layer, nil, optim.AnalogSGDConfig{})
	assert.Empty(t, plain.StateDict())
	assert.NoError(t, plain.LoadStateDict(nil))
	plain.ZeroGrad()
}
