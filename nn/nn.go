// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network layers built on analog tiles.
//
// # Overview
//
// AnalogLinear computes y = W x + b where W lives on a simulated analog
// tile. It trains in one of two modes:
//
//   - Deferred (default): backward records (input, error) pairs on the
//     layer's analog context; optim.AnalogSGD replays them as pulsed updates.
//   - Direct: the layer exposes a digital copy of W as a Parameter, backward
//     produces its gradient and any digital optimizer updates it.
//
// # Basic Usage
//
//	model := nn.NewSequential(
//	    nn.MustAnalogLinear(4, 8, nn.AnalogLinearConfig{Bias: true}),
//	    nn.NewReLU(),
//	    nn.MustAnalogLinear(8, 1, nn.AnalogLinearConfig{Bias: true}),
//	)
//	y := model.Forward(tape, x)
package nn

import (
	"github.com/Zhaoxian-Wu/aihwkit/internal/nn"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// Module is the interface every layer implements.
type Module = nn.Module

// AnalogModule is implemented by modules that own analog contexts.
type AnalogModule = nn.AnalogModule

// Trainable is implemented by modules that distinguish training and inference.
type Trainable = nn.Trainable

// Movable is implemented by modules that can move between devices.
type Movable = nn.Movable

// Parameter is a named trainable tensor.
type Parameter = nn.Parameter

// AnalogLinear is a fully connected layer whose weights live on an analog tile.
type AnalogLinear = nn.AnalogLinear

// AnalogLinearConfig configures AnalogLinear.
type AnalogLinearConfig = nn.AnalogLinearConfig

// ReLU is the rectified linear activation.
type ReLU = nn.ReLU

// Sequential chains modules.
type Sequential = nn.Sequential

// MSELoss is the mean squared error loss.
type MSELoss = nn.MSELoss

// Checkpoint is a saved training state.
type Checkpoint = nn.Checkpoint

// OptimizerState is implemented by optimizers whose state is checkpointed.
type OptimizerState = nn.OptimizerState

// NewParameter creates a named parameter around t.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return nn.NewParameter(name, t)
}

// NewAnalogLinear creates an analog fully connected layer.
func NewAnalogLinear(inFeatures, outFeatures int, cfg AnalogLinearConfig) (*AnalogLinear, error) {
	return nn.NewAnalogLinear(inFeatures, outFeatures, cfg)
}

// MustAnalogLinear is NewAnalogLinear that panics on error.
func MustAnalogLinear(inFeatures, outFeatures int, cfg AnalogLinearConfig) *AnalogLinear {
	l, err := nn.NewAnalogLinear(inFeatures, outFeatures, cfg)
	if err != nil {
		panic(err)
	}
	return l
}

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU {
	return nn.NewReLU()
}

// NewSequential chains modules in order.
func NewSequential(modules ...Module) *Sequential {
	return nn.NewSequential(modules...)
}

// NewMSELoss creates a mean squared error loss.
func NewMSELoss() *MSELoss {
	return nn.NewMSELoss()
}

// SaveCheckpoint writes model and optimizer state to path.
func SaveCheckpoint(path string, model Module, optimizer OptimizerState, epoch int) error {
	return nn.SaveCheckpoint(path, model, optimizer, epoch)
}

// LoadCheckpoint restores model and optimizer state from path.
func LoadCheckpoint(path string, model Module, optimizer OptimizerState) (*Checkpoint, error) {
	return nn.LoadCheckpoint(path, model, optimizer)
}
