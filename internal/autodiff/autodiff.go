// Package autodiff implements the generic reverse-mode engine the analog
// layers plug into.
//
// Forward code records ops.Operation values on a GradientTape; Backward walks
// them in reverse and returns a map from tensor to gradient. The engine knows
// nothing about analog tiles: an analog layer is just another recorded
// operation whose Backward may decline to produce a weight gradient.
package autodiff

import (
	"github.com/gomlx/exceptions"

	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// Backward seeds the tape with ones shaped like loss and walks it in reverse.
//
// Example:
//
//	tape.StartRecording()
//	loss := ops.MSE(tape, model.Forward(tape, x), y)
//	grads := autodiff.Backward(tape, loss)
func Backward(tape *GradientTape, loss *tensor.RawTensor) map[*tensor.RawTensor]*tensor.RawTensor {
	if tape.NumOps() == 0 {
		exceptions.Panicf("backward: no operations recorded (did you forget to call StartRecording()?)")
	}

	seed := tensor.ZerosLike(loss)
	data := seed.AsFloat32()
	for i := range data {
		data[i] = 1
	}

	grads := tape.Backward(seed)
	tape.Clear()
	return grads
}
