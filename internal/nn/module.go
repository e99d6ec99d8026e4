// Package nn implements the layers analog models are built from.
//
// This package provides:
//   - Module interface: Base interface for all NN components
//   - Parameter: Digital trainable parameters (biases, direct-mode weights)
//   - AnalogLinear: Fully connected layer computed on an analog tile
//   - ReLU activation and MSE loss
//   - Sequential: Container for stacking layers
//   - Checkpoint: Model and optimizer state in a SafeTensors file
//
// Modules compute on *tensor.RawTensor and record their operations on an
// ops.Recorder (usually an autodiff.GradientTape). A nil recorder runs the
// module without gradient tracking.
package nn

import (
	"github.com/Zhaoxian-Wu/aihwkit/internal/analog"
	"github.com/Zhaoxian-Wu/aihwkit/internal/autodiff/ops"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential(
//	    must.M1(nn.NewAnalogLinear(4, 8, nn.AnalogLinearConfig{Bias: true})),
//	    nn.NewReLU(),
//	    must.M1(nn.NewAnalogLinear(8, 1, nn.AnalogLinearConfig{})),
//	)
type Module interface {
	// Forward computes the output of the module given an input tensor,
	// recording differentiable operations on rec.
	Forward(rec ops.Recorder, input *tensor.RawTensor) *tensor.RawTensor

	// Parameters returns the digital trainable parameters of this module.
	//
	// Analog weights are not parameters: they live on tiles and change
	// through the tile update routines (see AnalogModule).
	Parameters() []*Parameter

	// StateDict returns the module state by name.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict restores the module state from a state dictionary.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// AnalogModule is implemented by modules that hold analog contexts.
//
// The analog optimizer reads the contexts on every step, so bindings that are
// replaced by device moves or state loading are picked up.
type AnalogModule interface {
	AnalogContexts() []*analog.Context
}

// Trainable is implemented by modules that behave differently in training
// and evaluation (the analog forward adds noise only in training).
type Trainable interface {
	Train(training bool)
}

// Movable is implemented by modules that can move between devices.
type Movable interface {
	To(device tensor.Device) error
}
