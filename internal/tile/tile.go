// Package tile provides a simulated analog crossbar tile.
//
// The simulator computes an ideal floating-point matrix-vector product for
// forward and backward, and changes its weights only through discrete pulses:
// every update is quantized to multiples of DWMin, capped at MaxPulses per
// weight and clipped to [-WMax, WMax]. It implements analog.Tile and is the
// backend the analog layers run against.
package tile

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Zhaoxian-Wu/aihwkit/internal/analog"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// SimulatorTile is a simulated analog tile holding an [out, in] weight matrix.
type SimulatorTile struct {
	id      uuid.UUID
	cfg     Config
	weights *tensor.RawTensor
	device  tensor.Device
	rng     *rand.Rand

	shared *tensor.RawTensor // authoritative weights while bound (direct mode)
	delta  *tensor.RawTensor // delta-weights target, see SetDeltaWeights
	index  []int             // indexed path column table
	ctx    *analog.Context

	stats Stats
}

// Stats counts the update activity of a tile.
type Stats struct {
	Updates int64 // pulsed updates applied
	Pulses  int64 // total pulses over all weights
	Clipped int64 // weights clipped at the bounds
}

var _ analog.Tile = (*SimulatorTile)(nil)

// New creates a tile on the host holding a copy of weights.
// weights must be a float [out, in] matrix; values are clipped to [-WMax, WMax].
func New(weights *tensor.RawTensor, cfg Config) (*SimulatorTile, error) {
	cfg = cfg.withDefaults()
	if len(weights.Shape()) != 2 {
		return nil, errors.Errorf("tile weights must be [out, in], got shape %v", weights.Shape())
	}
	w, err := weights.To(tensor.CPU).Cast(tensor.Float32)
	if err != nil {
		return nil, errors.Wrap(err, "tile weights")
	}
	if w == weights {
		w = w.Copy()
	}
	t := &SimulatorTile{
		id:      uuid.New(),
		cfg:     cfg,
		weights: w,
		device:  tensor.CPU,
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
	t.stats.Clipped += clip(t.weights.AsFloat32(), cfg.WMax)
	return t, nil
}

// NewRandom creates an out x in tile with weights drawn uniformly from
// [-b, b], b = min(WMax, 1/sqrt(in)).
func NewRandom(out, in int, cfg Config) *SimulatorTile {
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	bound := min(cfg.WMax, float32(1/math.Sqrt(float64(in))))

	w := tensor.Zeros(tensor.Shape{out, in}, tensor.CPU)
	data := w.AsFloat32()
	for i := range data {
		data[i] = (2*rng.Float32() - 1) * bound
	}
	return &SimulatorTile{
		id:      uuid.New(),
		cfg:     cfg,
		weights: w,
		device:  tensor.CPU,
		rng:     rng,
	}
}

// ID returns the tile identity. It is kept across device moves.
func (t *SimulatorTile) ID() uuid.UUID {
	return t.id
}

// Config returns the tile parameters.
func (t *SimulatorTile) Config() Config {
	return t.cfg
}

// LearningRate returns the learning rate of pulsed updates.
func (t *SimulatorTile) LearningRate() float32 {
	return t.cfg.LR
}

// SetLearningRate changes the learning rate of pulsed updates.
func (t *SimulatorTile) SetLearningRate(lr float32) {
	t.cfg.LR = lr
}

// Shape returns the [out, in] weight shape.
func (t *SimulatorTile) Shape() tensor.Shape {
	return t.weights.Shape().Clone()
}

// Stats returns the update counters.
func (t *SimulatorTile) Stats() Stats {
	return t.stats
}

// active returns the weights the numeric routines operate on.
func (t *SimulatorTile) active() *tensor.RawTensor {
	if t.shared != nil {
		return t.shared
	}
	return t.weights
}

// Weights implements analog.Tile.
func (t *SimulatorTile) Weights() *tensor.RawTensor {
	return t.active().Copy()
}

// SetWeights programs the tile to the given values, clipped to the bounds.
// Bound shared weights are programmed too.
func (t *SimulatorTile) SetWeights(weights *tensor.RawTensor) error {
	w, err := weights.Cast(tensor.Float32)
	if err != nil {
		return errors.Wrap(err, "SetWeights")
	}
	if err := t.weights.CopyFrom(w); err != nil {
		return errors.Wrap(err, "SetWeights")
	}
	t.stats.Clipped += clip(t.weights.AsFloat32(), t.cfg.WMax)
	if t.shared != nil {
		_ = t.shared.CopyFrom(t.weights) // same shape and dtype, checked on bind
	}
	return nil
}

// Device implements analog.Tile.
func (t *SimulatorTile) Device() tensor.Device {
	return t.device
}

// IsOnAccelerator implements analog.Tile.
func (t *SimulatorTile) IsOnAccelerator() bool {
	return t.device.IsAccelerator()
}

// Runtime implements analog.Tile.
func (t *SimulatorTile) Runtime() analog.RuntimeConfig {
	return t.cfg.Runtime
}

// Context implements analog.Tile.
func (t *SimulatorTile) Context() *analog.Context {
	return t.ctx
}

// SetContext implements analog.Tile.
func (t *SimulatorTile) SetContext(ctx *analog.Context) {
	t.ctx = ctx
}

// BriefInfo implements analog.Tile.
func (t *SimulatorTile) BriefInfo() string {
	s := t.weights.Shape()
	return fmt.Sprintf("SimulatorTile(%s, %dx%d, %s)", t.id.String()[:8], s[0], s[1], t.device)
}

// String implements fmt.Stringer.
func (t *SimulatorTile) String() string {
	return t.BriefInfo()
}

// ToAccelerator implements analog.Tile. It fails with analog.ErrNoAccelerator
// when the probe reports no usable accelerator.
func (t *SimulatorTile) ToAccelerator(device tensor.Device) (analog.Tile, error) {
	if !device.IsAccelerator() {
		return nil, errors.Wrapf(analog.ErrUnsupportedMove, "%s is not an accelerator", device)
	}
	if !t.cfg.Probe() {
		return nil, errors.Wrapf(analog.ErrNoAccelerator, "cannot move %s to %s", t.BriefInfo(), device)
	}
	moved := t.migrate(device)
	klog.V(1).Infof("tile %s migrated to %s", t.id, device)
	return moved, nil
}

// ToHost implements analog.Tile.
func (t *SimulatorTile) ToHost() (analog.Tile, error) {
	moved := t.migrate(tensor.CPU)
	klog.V(1).Infof("tile %s migrated to host", t.id)
	return moved, nil
}

// migrate returns a copy of the tile resident on device, holding the current
// active weights. Call-scoped bindings (shared weights, delta target) and the
// context are not carried over.
func (t *SimulatorTile) migrate(device tensor.Device) *SimulatorTile {
	return &SimulatorTile{
		id:      t.id,
		cfg:     t.cfg,
		weights: t.active().Copy().To(device),
		device:  device,
		rng:     t.rng,
		index:   append([]int(nil), t.index...),
		stats:   t.stats,
	}
}

// EnsureSharedWeights implements analog.Tile. The tensor becomes the
// authoritative weight buffer: forward, backward and updates use it in place.
func (t *SimulatorTile) EnsureSharedWeights(weights *tensor.RawTensor) {
	if !weights.Shape().Equal(t.weights.Shape()) || weights.DType() != tensor.Float32 {
		panic(errors.Wrapf(analog.ErrSharedWeightsMismatch, "%s cannot share %s weights of shape %v",
			t.BriefInfo(), weights.DType(), weights.Shape()))
	}
	t.shared = weights
}

// ReleaseSharedWeights copies the shared buffer back into the tile's own
// weights and unbinds it.
func (t *SimulatorTile) ReleaseSharedWeights() {
	if t.shared == nil {
		return
	}
	_ = t.weights.CopyFrom(t.shared) // same shape and dtype, checked on bind
	t.shared = nil
}

// SetDeltaWeights implements analog.Tile.
func (t *SimulatorTile) SetDeltaWeights(target *tensor.RawTensor) {
	t.delta = target
}

// ResetDeltaWeights implements analog.Tile.
func (t *SimulatorTile) ResetDeltaWeights() {
	t.delta = nil
}
