package analog_test

import (
	"fmt"

	"github.com/Zhaoxian-Wu/aihwkit/internal/analog"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// recordingTile is a test double that records every routine call.
// Forward is y = x @ W^T, backward is d @ W, update writes d^T @ x into the
// delta-weights target when one is set and otherwise subtracts it from W.
type recordingTile struct {
	name    string
	weights *tensor.RawTensor
	device  tensor.Device
	runtime analog.RuntimeConfig
	ctx     *analog.Context

	calls         []string
	shared        *tensor.RawTensor
	delta         *tensor.RawTensor
	updateDevices []tensor.Device
	moveErr       error
}

func newRecordingTile(out, in int) *recordingTile {
	data := make([]float32, out*in)
	for i := range data {
		data[i] = float32(i+1) / 10
	}
	return &recordingTile{
		name:    "T",
		weights: tensor.MustFromFloat32(data, tensor.Shape{out, in}, tensor.CPU),
		device:  tensor.CPU,
	}
}

func (r *recordingTile) log(call string) { r.calls = append(r.calls, call) }

func (r *recordingTile) called(call string) int {
	n := 0
	for _, c := range r.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (r *recordingTile) activeWeights() *tensor.RawTensor {
	if r.shared != nil {
		return r.shared
	}
	return r.weights
}

func (r *recordingTile) Weights() *tensor.RawTensor {
	r.log("Weights")
	return r.weights.Copy().To(r.device)
}

func (r *recordingTile) Device() tensor.Device { return r.device }

func (r *recordingTile) IsOnAccelerator() bool { return r.device.IsAccelerator() }

func (r *recordingTile) moved(device tensor.Device) (analog.Tile, error) {
	if r.moveErr != nil {
		return nil, r.moveErr
	}
	return &recordingTile{
		name:    r.name + "@" + device.String(),
		weights: r.weights.To(device),
		device:  device,
		runtime: r.runtime,
	}, nil
}

func (r *recordingTile) ToAccelerator(device tensor.Device) (analog.Tile, error) {
	r.log("ToAccelerator")
	return r.moved(device)
}

func (r *recordingTile) ToHost() (analog.Tile, error) {
	r.log("ToHost")
	return r.moved(tensor.CPU)
}

func (r *recordingTile) Runtime() analog.RuntimeConfig { return r.runtime }

func (r *recordingTile) JointForward(input *tensor.RawTensor, _ bool, call *analog.CallState) *tensor.RawTensor {
	r.log("JointForward")
	call.Stash("rows", input.Shape().Rows())
	return tensor.MatMulTransB(input, r.activeWeights())
}

func (r *recordingTile) JointForwardIndexed(input *tensor.RawTensor, _ bool, call *analog.CallState) *tensor.RawTensor {
	r.log("JointForwardIndexed")
	call.Stash("rows", input.Shape().Rows())
	return tensor.MatMulTransB(input, r.activeWeights())
}

func (r *recordingTile) Backward(gradOutput *tensor.RawTensor, call *analog.CallState) *tensor.RawTensor {
	r.log("Backward")
	if _, ok := call.Stashed("rows"); !ok {
		panic("backward without forward stash")
	}
	return tensor.MatMul(gradOutput, r.activeWeights())
}

func (r *recordingTile) BackwardIndexed(gradOutput *tensor.RawTensor, _ *analog.CallState) *tensor.RawTensor {
	r.log("BackwardIndexed")
	return tensor.MatMul(gradOutput, r.activeWeights())
}

func (r *recordingTile) EnsureSharedWeights(weights *tensor.RawTensor) {
	r.log("EnsureSharedWeights")
	r.shared = weights
}

func (r *recordingTile) SetDeltaWeights(target *tensor.RawTensor) {
	r.log("SetDeltaWeights")
	r.delta = target
}

func (r *recordingTile) ResetDeltaWeights() {
	r.log("ResetDeltaWeights")
	r.delta = nil
}

func (r *recordingTile) update(input, gradOutput *tensor.RawTensor) {
	r.updateDevices = append(r.updateDevices, input.Device())
	dw := tensor.OuterSum(gradOutput, input)
	if r.delta != nil {
		if err := r.delta.CopyFrom(dw); err != nil {
			panic(err)
		}
		return
	}
	if err := r.weights.CopyFrom(tensor.Sub(r.weights, tensor.Scale(dw, 0.1))); err != nil {
		panic(err)
	}
}

func (r *recordingTile) Update(input, gradOutput *tensor.RawTensor) {
	r.log("Update")
	r.update(input, gradOutput)
}

func (r *recordingTile) UpdateIndexed(input, gradOutput *tensor.RawTensor) {
	r.log("UpdateIndexed")
	r.update(input, gradOutput)
}

func (r *recordingTile) Context() *analog.Context { return r.ctx }

func (r *recordingTile) SetContext(ctx *analog.Context) {
	r.log("SetContext")
	r.ctx = ctx
}

func (r *recordingTile) BriefInfo() string {
	return fmt.Sprintf("recordingTile(%s, %v, %s)", r.name, []int(r.weights.Shape()), r.device)
}
