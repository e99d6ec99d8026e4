package ops

import (
	"github.com/gomlx/exceptions"

	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// MSEOp computes the mean squared error between predictions and fixed targets.
//
// Loss = mean((predictions - targets)²), returned with shape [1].
// Targets are constants: no gradient is reported for them.
type MSEOp struct {
	predictions *tensor.RawTensor
	targets     *tensor.RawTensor
	output      *tensor.RawTensor
}

// MSE computes the mean squared error loss and records the operation.
func MSE(rec Recorder, predictions, targets *tensor.RawTensor) *tensor.RawTensor {
	if !predictions.Shape().Equal(targets.Shape()) {
		exceptions.Panicf("MSE: predictions %v and targets %v must have the same shape",
			predictions.Shape(), targets.Shape())
	}

	pData, tData := predictions.AsFloat32(), targets.AsFloat32()
	var sum float32
	for i, p := range pData {
		d := p - tData[i]
		sum += d * d
	}
	loss := tensor.Zeros(tensor.Shape{1}, predictions.Device())
	loss.AsFloat32()[0] = sum / float32(len(pData))

	record(rec, &MSEOp{predictions: predictions, targets: targets, output: loss})
	return loss
}

// Backward computes d(loss)/d(predictions) = 2 * (predictions - targets) / N.
func (op *MSEOp) Backward(outputGrad *tensor.RawTensor) []*tensor.RawTensor {
	scale := 2 * outputGrad.AsFloat32()[0] / float32(op.predictions.NumElements())
	grad := tensor.Scale(tensor.Sub(op.predictions, op.targets), scale)
	return []*tensor.RawTensor{grad, nil}
}

// Inputs returns [predictions, targets].
func (op *MSEOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.predictions, op.targets}
}

// Output returns the scalar loss.
func (op *MSEOp) Output() *tensor.RawTensor {
	return op.output
}
