package ops

import "github.com/Zhaoxian-Wu/aihwkit/internal/tensor"

// ReLUOp represents a ReLU (Rectified Linear Unit) activation: output = max(0, x).
//
// Backward pass:
//   - d(ReLU(x))/dx = 1 if x > 0, else 0
type ReLUOp struct {
	input  *tensor.RawTensor // x
	output *tensor.RawTensor // max(0, x)
}

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{
		input:  input,
		output: output,
	}
}

// ReLU computes max(0, x) and records the operation.
func ReLU(rec Recorder, x *tensor.RawTensor) *tensor.RawTensor {
	out := tensor.ZerosLike(x)
	oData := out.AsFloat32()
	for i, v := range x.AsFloat32() {
		if v > 0 {
			oData[i] = v
		}
	}
	record(rec, NewReLUOp(x, out))
	return out
}

// Backward computes input gradient for ReLU.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor) []*tensor.RawTensor {
	gradInput := tensor.ZerosLike(outputGrad)
	gData, iData := gradInput.AsFloat32(), op.input.AsFloat32()
	for i, g := range outputGrad.AsFloat32() {
		if iData[i] > 0 {
			gData[i] = g
		}
	}
	return []*tensor.RawTensor{gradInput}
}

// Inputs returns the input tensor [x].
func (op *ReLUOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor max(0, x).
func (op *ReLUOp) Output() *tensor.RawTensor {
	return op.output
}
