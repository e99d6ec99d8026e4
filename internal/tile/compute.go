package tile

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/Zhaoxian-Wu/aihwkit/internal/analog"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// Key under which the indexed forward stashes the caller's input shape.
const stashInputShape = "input_shape"

// asFloat32 returns x as a float32 tensor, casting other float dtypes.
func asFloat32(x *tensor.RawTensor) *tensor.RawTensor {
	if x.DType() == tensor.Float32 {
		return x
	}
	out, err := x.Cast(tensor.Float32)
	if err != nil {
		panic(errors.Wrap(err, "analog tile input"))
	}
	return out
}

func (t *SimulatorTile) checkWidth(op string, x *tensor.RawTensor, want int) {
	if got := x.Shape().Cols(); got != want {
		exceptions.Panicf("%s on %s: expected last dimension %d, got shape %v", op, t.BriefInfo(), want, x.Shape())
	}
}

func (t *SimulatorTile) forward(x *tensor.RawTensor, isTest bool) *tensor.RawTensor {
	y := tensor.MatMulTransB(x, t.active())
	if !isTest && t.cfg.OutNoise > 0 {
		data := y.AsFloat32()
		for i := range data {
			data[i] += t.cfg.OutNoise * float32(t.rng.NormFloat64())
		}
	}
	return y
}

// JointForward implements analog.Tile: y = x @ W^T.
func (t *SimulatorTile) JointForward(input *tensor.RawTensor, isTest bool, _ *analog.CallState) *tensor.RawTensor {
	x := asFloat32(input)
	t.checkWidth("forward", x, t.weights.Shape()[1])
	return t.forward(x, isTest)
}

// JointForwardIndexed implements analog.Tile. Column j of the tile reads
// input column index[j]; negative entries read zero. The result is
// [rows, out] with all leading input dimensions folded into rows.
func (t *SimulatorTile) JointForwardIndexed(input *tensor.RawTensor, isTest bool, call *analog.CallState) *tensor.RawTensor {
	index := t.requireIndex("indexed forward")
	x := asFloat32(input)
	call.Stash(stashInputShape, x.Shape().Clone())
	return t.forward(tensor.GatherColumns(x, index), isTest)
}

// Backward implements analog.Tile: d @ W.
func (t *SimulatorTile) Backward(gradOutput *tensor.RawTensor, _ *analog.CallState) *tensor.RawTensor {
	d := asFloat32(gradOutput)
	t.checkWidth("backward", d, t.weights.Shape()[0])
	return tensor.MatMul(d, t.active())
}

// BackwardIndexed implements analog.Tile. The gradient is scattered back to
// the input columns named by the index table and has the input's shape.
func (t *SimulatorTile) BackwardIndexed(gradOutput *tensor.RawTensor, call *analog.CallState) *tensor.RawTensor {
	index := t.requireIndex("indexed backward")
	v, ok := call.Stashed(stashInputShape)
	if !ok {
		panic(errors.Wrapf(analog.ErrNoSavedState, "indexed backward on %s", t.BriefInfo()))
	}
	d := asFloat32(gradOutput)
	t.checkWidth("indexed backward", d, t.weights.Shape()[0])
	return tensor.ScatterAddColumns(tensor.MatMul(d, t.active()), index, v.(tensor.Shape))
}

// Update implements analog.Tile.
//
// With a delta-weights target set, the weight gradient d^T @ x is written to
// the target and the tile is left unchanged. Otherwise the tile applies a
// pulsed update for -LR * d^T @ x.
func (t *SimulatorTile) Update(input, gradOutput *tensor.RawTensor) {
	x := asFloat32(input)
	t.checkWidth("update", x, t.weights.Shape()[1])
	t.update(x, asFloat32(gradOutput))
}

// UpdateIndexed implements analog.Tile, reading the input through the index table.
func (t *SimulatorTile) UpdateIndexed(input, gradOutput *tensor.RawTensor) {
	index := t.requireIndex("indexed update")
	t.update(tensor.GatherColumns(asFloat32(input), index), asFloat32(gradOutput))
}

func (t *SimulatorTile) update(x, d *tensor.RawTensor) {
	dw := tensor.OuterSum(d, x)
	if t.delta != nil {
		src, err := dw.Cast(t.delta.DType())
		if err == nil {
			err = t.delta.CopyFrom(src)
		}
		if err != nil {
			panic(errors.Wrapf(err, "writing delta weights on %s", t.BriefInfo()))
		}
		return
	}
	t.pulse(dw)
}

// pulse applies -LR * dw as an integer number of DWMin steps per weight.
func (t *SimulatorTile) pulse(dw *tensor.RawTensor) {
	w := t.active().AsFloat32()
	step := float64(t.cfg.DWMin)
	maxPulses := float64(t.cfg.MaxPulses)
	var pulses int64
	for i, g := range dw.AsFloat32() {
		n := math.Round(-float64(t.cfg.LR) * float64(g) / step)
		n = math.Max(-maxPulses, math.Min(maxPulses, n))
		if n == 0 {
			continue
		}
		w[i] += float32(n * step)
		pulses += int64(math.Abs(n))
	}
	t.stats.Updates++
	t.stats.Pulses += pulses
	t.stats.Clipped += clip(w, t.cfg.WMax)
}

// clip bounds values to [-bound, bound] and returns how many were changed.
func clip(values []float32, bound float32) int64 {
	var n int64
	for i, v := range values {
		switch {
		case v > bound:
			values[i] = bound
			n++
		case v < -bound:
			values[i] = -bound
			n++
		}
	}
	return n
}
