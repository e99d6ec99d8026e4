package nn

import (
	"fmt"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Zhaoxian-Wu/aihwkit/internal/analog"
	"github.com/Zhaoxian-Wu/aihwkit/internal/autodiff/ops"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tile"
)

// AnalogLinearConfig configures an AnalogLinear layer.
type AnalogLinearConfig struct {
	// Bias adds a digital bias vector after the analog product.
	Bias bool
	// Direct trains the analog weights in direct mode: the layer holds a
	// digital copy of the weights that is shared with the tile on every call
	// and updated by the digital optimizer from the weight gradient.
	// Otherwise calls accumulate a trace for the analog optimizer.
	Direct bool
	// IndexTable, if set, routes the layer through the tile's indexed path.
	// Entry j names the input column read by tile column j; -1 reads zero.
	// The input width then only has to cover the largest index.
	IndexTable []int
	// Tile configures the simulated tile.
	Tile tile.Config
}

// AnalogLinear implements a fully connected layer computed on an analog tile.
//
// Performs the transformation: y = x @ W.T + b
// where W lives on the tile and b is digital. W has shape
// [out_features, in_features].
//
// Example:
//
//	layer, err := nn.NewAnalogLinear(784, 128, nn.AnalogLinearConfig{Bias: true})
//	output := layer.Forward(tape, input) // shape: [32, 128]
type AnalogLinear struct {
	inFeatures  int
	outFeatures int
	cfg         AnalogLinearConfig

	tile   *tile.SimulatorTile
	ctx    *analog.Context
	weight *Parameter // shared weights, direct mode only
	bias   *Parameter // [out_features]

	training bool
}

var (
	_ Module       = (*AnalogLinear)(nil)
	_ AnalogModule = (*AnalogLinear)(nil)
	_ Trainable    = (*AnalogLinear)(nil)
	_ Movable      = (*AnalogLinear)(nil)
)

// NewAnalogLinear creates a new AnalogLinear layer in training mode.
//
// Tile weights are drawn uniformly from [-b, b], b = min(WMax, 1/sqrt(in)).
// Biases are initialized to zeros.
func NewAnalogLinear(inFeatures, outFeatures int, cfg AnalogLinearConfig) (*AnalogLinear, error) {
	if inFeatures <= 0 || outFeatures <= 0 {
		return nil, errors.Errorf("AnalogLinear: invalid size %dx%d", outFeatures, inFeatures)
	}
	t := tile.NewRandom(outFeatures, inFeatures, cfg.Tile)
	indexed := cfg.IndexTable != nil
	if indexed {
		if err := t.SetIndexTable(cfg.IndexTable); err != nil {
			return nil, errors.Wrap(err, "AnalogLinear")
		}
	}

	l := &AnalogLinear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		cfg:         cfg,
		tile:        t,
		ctx:         analog.NewContext(t),
		training:    true,
	}
	l.ctx.SetIndexed(indexed)
	if cfg.Direct {
		l.weight = NewParameter("weight", t.Weights())
	}
	if cfg.Bias {
		l.bias = NewParameter("bias", tensor.Zeros(tensor.Shape{outFeatures}, tensor.CPU))
	}
	return l, nil
}

// Forward computes the output of the layer.
//
// Input shape: [batch_size, in_features] (wider when indexed)
// Output shape: [batch_size, out_features]
func (l *AnalogLinear) Forward(rec ops.Recorder, input *tensor.RawTensor) *tensor.RawTensor {
	var shared *tensor.RawTensor
	if l.weight != nil {
		shared = l.weight.Tensor()
	}
	output := analog.Apply(rec, l.ctx, l.tile, input, shared, !l.training)
	if l.bias != nil {
		output = ops.AddBias(rec, output, l.bias.Tensor())
	}
	return output
}

// Parameters returns the digital parameters of this layer: the shared
// weights in direct mode and the bias if present.
func (l *AnalogLinear) Parameters() []*Parameter {
	var params []*Parameter
	if l.weight != nil {
		params = append(params, l.weight)
	}
	if l.bias != nil {
		params = append(params, l.bias)
	}
	return params
}

// AnalogContexts implements AnalogModule.
func (l *AnalogLinear) AnalogContexts() []*analog.Context {
	return []*analog.Context{l.ctx}
}

// Context returns the layer's analog context.
func (l *AnalogLinear) Context() *analog.Context {
	return l.ctx
}

// Tile returns the layer's tile.
func (l *AnalogLinear) Tile() *tile.SimulatorTile {
	return l.tile
}

// Weight returns the shared-weights parameter, nil unless in direct mode.
func (l *AnalogLinear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *AnalogLinear) Bias() *Parameter {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *AnalogLinear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *AnalogLinear) OutFeatures() int {
	return l.outFeatures
}

// Train switches between training (true) and evaluation (false).
func (l *AnalogLinear) Train(training bool) {
	l.training = training
}

// Training reports whether the layer is in training mode.
func (l *AnalogLinear) Training() bool {
	return l.training
}

// To moves the tile, its context and the digital parameters to device.
// On failure nothing is moved.
func (l *AnalogLinear) To(device tensor.Device) error {
	if err := l.ctx.To(device); err != nil {
		return err
	}
	l.tile = l.ctx.Tile().(*tile.SimulatorTile)
	for _, p := range l.Parameters() {
		p.moveTo(device)
	}
	return nil
}

// Snapshot returns the layer's analog weights as an unbound value.
func (l *AnalogLinear) Snapshot() *analog.Snapshot {
	return l.ctx.Snapshot()
}

// StateDict returns the layer state. "weight" is read from the tile, which
// holds the authoritative analog weights.
func (l *AnalogLinear) StateDict() map[string]*tensor.RawTensor {
	stateDict := map[string]*tensor.RawTensor{
		"weight": l.tile.Weights().To(tensor.CPU),
	}
	if l.bias != nil {
		stateDict["bias"] = l.bias.Tensor()
	}
	return stateDict
}

// LoadStateDict programs the tile with the stored weights and attaches a new
// context to them. The indexed setting is kept; any pending trace is dropped.
func (l *AnalogLinear) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	weightRaw, ok := stateDict["weight"]
	if !ok {
		return errors.New("missing weight in state dict")
	}
	expectedWeightShape := tensor.Shape{l.outFeatures, l.inFeatures}
	if !weightRaw.Shape().Equal(expectedWeightShape) {
		return errors.Errorf("weight shape mismatch: expected %v, got %v",
			expectedWeightShape, weightRaw.Shape())
	}

	var biasRaw *tensor.RawTensor
	if l.bias != nil {
		if biasRaw, ok = stateDict["bias"]; !ok {
			return errors.New("missing bias in state dict")
		}
		expectedBiasShape := tensor.Shape{l.outFeatures}
		if !biasRaw.Shape().Equal(expectedBiasShape) {
			return errors.Errorf("bias shape mismatch: expected %v, got %v",
				expectedBiasShape, biasRaw.Shape())
		}
		if biasRaw.DType() != tensor.Float32 {
			return errors.Errorf("bias dtype mismatch: expected float32, got %v", biasRaw.DType())
		}
	}

	if err := l.tile.SetWeights(weightRaw); err != nil {
		return err
	}
	programmed := l.tile.Weights()
	if l.weight != nil {
		if err := l.weight.Tensor().CopyFrom(programmed); err != nil {
			return errors.Wrap(err, "loading shared weights")
		}
	}
	if biasRaw != nil {
		if err := l.bias.Tensor().CopyFrom(biasRaw); err != nil {
			return errors.Wrap(err, "loading bias")
		}
	}

	indexed := l.ctx.Indexed()
	l.ctx = analog.AttachContext(l.tile, analog.NewSnapshot(programmed.To(l.tile.Device())))
	l.ctx.SetIndexed(indexed)
	klog.V(1).Infof("loaded weights into %s", l.tile.BriefInfo())
	return nil
}

// String implements fmt.Stringer.
func (l *AnalogLinear) String() string {
	mode := analog.UpdateDeferred
	if l.weight != nil {
		mode = analog.UpdateDirect
	}
	return fmt.Sprintf("AnalogLinear(in=%d, out=%d, bias=%t, mode=%s, indexed=%t, tile=%s)",
		l.inFeatures, l.outFeatures, l.bias != nil, mode, l.ctx.Indexed(), l.tile.BriefInfo())
}
