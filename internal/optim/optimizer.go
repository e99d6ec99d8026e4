// Package optim implements optimization algorithms for analog models.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum (digital parameters)
//   - Adam: Adaptive Moment Estimation (digital parameters)
//   - AnalogSGD: consumes the traces accumulated by analog contexts with
//     pulsed tile updates, and steps the digital parameters alongside
//
// Example usage:
//
//	digital := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.05})
//	optimizer := optim.NewAnalogSGD(model, digital, optim.AnalogSGDConfig{LR: 0.05})
//
//	for step := range steps {
//	    tape.StartRecording()
//	    loss := lossFn.Forward(tape, model.Forward(tape, input), targets)
//	    grads := autodiff.Backward(tape, loss)
//
//	    optimizer.Step(grads)
//	    optimizer.ZeroGrad()
//	}
package optim

import (
	"github.com/Zhaoxian-Wu/aihwkit/internal/nn"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
//
// All optimizers must implement:
//   - Step: Apply gradient updates to parameters
//   - ZeroGrad: Clear gradients before next iteration
//   - GetLR: Get current learning rate (for monitoring/scheduling)
type Optimizer interface {
	// Step applies gradient updates to all parameters.
	//
	// Takes the gradient map returned by autodiff.Backward and updates
	// parameters in-place.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float32 // Learning rate
}

// getGradient retrieves the gradient for a parameter and records it on the
// parameter.
//
// Returns nil if no gradient is found (parameter wasn't part of computation graph).
func getGradient(param *nn.Parameter, grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	grad := grads[param.Tensor()]
	if grad != nil {
		param.SetGrad(grad)
	}
	return grad
}
