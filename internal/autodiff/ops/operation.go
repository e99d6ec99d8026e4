// Package ops defines the operation interface recorded on the gradient tape
// and the generic operations that surround analog layers in a model.
//
// Supported operations:
//   - ReLUOp: rectified linear unit activation (d(ReLU(x))/dx = 1 if x > 0, else 0)
//   - BiasOp: digital bias added after an analog matrix-vector product
//   - MSEOp: mean squared error loss
//
// The analog function itself lives in the analog package and implements the
// same Operation interface.
package ops

import "github.com/Zhaoxian-Wu/aihwkit/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
// Each operation records its inputs and output during the forward pass,
// and computes input gradients during the backward pass.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns a slice of gradients corresponding to each input tensor;
	// a nil entry means no gradient flows to that input.
	Backward(outputGrad *tensor.RawTensor) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// Recorder receives operations during the forward pass.
// *autodiff.GradientTape implements it; a nil Recorder disables recording.
type Recorder interface {
	Record(op Operation)
}

func record(rec Recorder, op Operation) {
	if rec != nil {
		rec.Record(op)
	}
}
