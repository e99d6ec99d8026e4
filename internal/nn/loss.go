package nn

import (
	"github.com/Zhaoxian-Wu/aihwkit/internal/autodiff/ops"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// MSELoss computes Mean Squared Error loss.
//
// Loss = mean((predictions - targets)²)
//
// Example:
//
//	mse := nn.NewMSELoss()
//	predictions := model.Forward(tape, input)
//	loss := mse.Forward(tape, predictions, targets)
//	grads := autodiff.Backward(tape, loss)
type MSELoss struct{}

// NewMSELoss creates a new MSE loss function.
func NewMSELoss() *MSELoss {
	return &MSELoss{}
}

// Forward computes the MSE loss as a tensor of shape [1].
//
// Panics if predictions and targets have different shapes.
func (m *MSELoss) Forward(rec ops.Recorder, predictions, targets *tensor.RawTensor) *tensor.RawTensor {
	return ops.MSE(rec, predictions, targets)
}
