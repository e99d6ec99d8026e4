package analog

import (
	"github.com/Zhaoxian-Wu/aihwkit/internal/autodiff/ops"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// FunctionOp is the tape record of one analog call. Its Backward is the
// dispatcher's Backward: it always returns the input gradient and returns a
// weight gradient for the shared weights only in direct mode.
type FunctionOp struct {
	saved  *SavedState
	inputs []*tensor.RawTensor // [input, sharedWeights]; sharedWeights may be nil
	output *tensor.RawTensor
}

// Apply runs Forward and records the call on rec so that the autodiff engine
// calls Backward during its reverse pass. rec may be nil for inference.
func Apply(rec ops.Recorder, ctx *Context, tile Tile, input, sharedWeights *tensor.RawTensor, isTest bool) *tensor.RawTensor {
	out, saved := Forward(ctx, tile, input, sharedWeights, isTest)
	if rec != nil {
		rec.Record(&FunctionOp{
			saved:  saved,
			inputs: []*tensor.RawTensor{input, sharedWeights},
			output: out,
		})
	}
	return out
}

// Backward implements ops.Operation.
func (op *FunctionOp) Backward(outputGrad *tensor.RawTensor) []*tensor.RawTensor {
	gradInput, sharedWeightsGrad := Backward(op.saved, outputGrad)
	return []*tensor.RawTensor{gradInput, sharedWeightsGrad}
}

// Inputs implements ops.Operation.
func (op *FunctionOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output implements ops.Operation.
func (op *FunctionOp) Output() *tensor.RawTensor {
	return op.output
}

// Saved returns the call state held by the op.
func (op *FunctionOp) Saved() *SavedState {
	return op.saved
}
