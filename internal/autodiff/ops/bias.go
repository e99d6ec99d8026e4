package ops

import "github.com/Zhaoxian-Wu/aihwkit/internal/tensor"

// BiasOp adds a bias vector to every row: output = x + b.
//
// Backward pass:
//   - d/dx = outputGrad
//   - d/db = sum of outputGrad over rows
type BiasOp struct {
	inputs []*tensor.RawTensor // [x, b]
	output *tensor.RawTensor
}

// AddBias computes x + b (b broadcast over rows) and records the operation.
func AddBias(rec Recorder, x, b *tensor.RawTensor) *tensor.RawTensor {
	out := tensor.AddRowVector(x, b)
	record(rec, &BiasOp{inputs: []*tensor.RawTensor{x, b}, output: out})
	return out
}

// Backward computes input gradients for the bias addition.
func (op *BiasOp) Backward(outputGrad *tensor.RawTensor) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad.Copy(), tensor.SumRows(outputGrad)}
}

// Inputs returns [x, b].
func (op *BiasOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns x + b.
func (op *BiasOp) Output() *tensor.RawTensor {
	return op.output
}
