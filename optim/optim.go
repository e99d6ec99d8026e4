// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimizers for analog models.
//
// SGD and Adam update digital parameters. AnalogSGD consumes the traces
// recorded by analog layers in deferred mode and steps an optional digital
// optimizer alongside.
//
//	digital := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.05})
//	opt := optim.NewAnalogSGD(model, digital, optim.AnalogSGDConfig{LR: 0.05})
//	opt.Step(grads)
package optim

import (
	"github.com/Zhaoxian-Wu/aihwkit/internal/nn"
	"github.com/Zhaoxian-Wu/aihwkit/internal/optim"
)

// Optimizer is the interface of all optimizers.
type Optimizer = optim.Optimizer

// SGD is stochastic gradient descent with optional momentum.
type SGD = optim.SGD

// SGDConfig configures SGD.
type SGDConfig = optim.SGDConfig

// Adam is the Adam optimizer.
type Adam = optim.Adam

// AdamConfig configures Adam.
type AdamConfig = optim.AdamConfig

// AnalogSGD applies pulsed tile updates from analog traces.
type AnalogSGD = optim.AnalogSGD

// AnalogSGDConfig configures AnalogSGD.
type AnalogSGDConfig = optim.AnalogSGDConfig

// AnalogStats counts the work done by AnalogSGD.
type AnalogStats = optim.AnalogStats

// NewSGD creates an SGD optimizer.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	return optim.NewSGD(params, config)
}

// NewAdam creates an Adam optimizer.
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	return optim.NewAdam(params, config)
}

// NewAnalogSGD creates an analog optimizer for model; digital may be nil.
func NewAnalogSGD(model nn.AnalogModule, digital Optimizer, config AnalogSGDConfig) *AnalogSGD {
	return optim.NewAnalogSGD(model, digital, config)
}
