// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff exposes the gradient tape used to train analog models.
//
//	tape := autodiff.NewGradientTape()
//	tape.StartRecording()
//	loss := lossFn.Forward(tape, model.Forward(tape, x), y)
//	grads := autodiff.Backward(tape, loss)
package autodiff

import (
	"github.com/Zhaoxian-Wu/aihwkit/internal/autodiff"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// GradientTape records operations for reverse-mode differentiation.
type GradientTape = autodiff.GradientTape

// NewGradientTape creates an empty tape that is not recording.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}

// Backward computes gradients of loss with respect to every recorded tensor
// and clears the tape.
func Backward(tape *GradientTape, loss *tensor.RawTensor) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(tape, loss)
}
