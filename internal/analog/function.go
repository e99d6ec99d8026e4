package analog

import (
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// SavedState is what a Forward call keeps for its matching Backward.
// It is scoped to a single call and is released by Backward.
type SavedState struct {
	ctx           *Context
	tile          Tile
	sharedWeights *tensor.RawTensor
	call          *CallState

	input     *tensor.RawTensor // as saved, on host when offloaded
	offloaded bool
	consumed  bool
}

// Context returns the context of the call.
func (s *SavedState) Context() *Context {
	return s.ctx
}

// SavedInput returns the input kept for backward, as stored (on host when offloaded).
func (s *SavedState) SavedInput() *tensor.RawTensor {
	return s.input
}

// Offloaded reports whether the saved input was moved to host memory.
func (s *SavedState) Offloaded() bool {
	return s.offloaded
}

// Consumed reports whether Backward already ran for this state.
func (s *SavedState) Consumed() bool {
	return s.consumed
}

// Forward runs the tile's forward pass for one call.
//
// If sharedWeights is not nil it is bound into the tile as the authoritative
// weight buffer and the call runs in direct mode; otherwise it runs in
// deferred mode. The path (indexed or plain) follows ctx.Indexed(). Forward
// never changes weights; it returns the output and the state the matching
// Backward needs. When the tile's runtime asks for input offload, the saved
// input is moved to host memory.
func Forward(ctx *Context, tile Tile, input, sharedWeights *tensor.RawTensor, isTest bool) (*tensor.RawTensor, *SavedState) {
	if ctx == nil || tile == nil {
		panic(errors.Wrap(ErrUnbound, "analog.Forward"))
	}
	runtime := tile.Runtime()

	saved := &SavedState{
		ctx:  ctx,
		tile: tile,
		call: NewCallState(),
	}
	if sharedWeights != nil {
		checkSharedWeights(ctx, sharedWeights)
		saved.sharedWeights = sharedWeights
		tile.EnsureSharedWeights(sharedWeights)
		ctx.beginCall(UpdateDirect)
	} else {
		ctx.beginCall(UpdateDeferred)
	}

	var out *tensor.RawTensor
	if ctx.indexed {
		out = tile.JointForwardIndexed(input, isTest, saved.call)
	} else {
		out = tile.JointForward(input, isTest, saved.call)
	}

	saved.input = input
	if runtime.OffloadInput && input.Device() != tensor.CPU {
		saved.input = input.To(tensor.CPU)
		saved.offloaded = true
		klog.V(2).Infof("analog forward: offloaded %s of saved input to host",
			humanize.Bytes(uint64(input.ByteSize())))
	}

	klog.V(2).Infof("analog forward on %s: mode=%s indexed=%t test=%t",
		tile.BriefInfo(), ctx.mode, ctx.indexed, isTest)
	return out, saved
}

// Backward runs the tile's backward pass for the call saved by Forward.
//
// The input gradient is always computed and returned. The weight side
// depends on the update mode selected by the latest forward on the context:
//
//   - direct: a zero buffer shaped like the shared weights is bound as the
//     tile's delta-weights target, the tile's update routine fills it with
//     the weight gradient, the target is detached and the buffer is returned.
//   - deferred: nothing is computed now; (input, gradOutput) is appended to
//     the context's trace and the returned weight gradient is nil.
//
// Backward panics if saved is nil or was already consumed, and if direct mode
// lacks compatible shared weights.
func Backward(saved *SavedState, gradOutput *tensor.RawTensor) (gradInput, sharedWeightsGrad *tensor.RawTensor) {
	if saved == nil {
		panic(errors.Wrap(ErrNoSavedState, "analog.Backward"))
	}
	if saved.consumed {
		panic(errors.Wrap(ErrSavedStateReused, "analog.Backward"))
	}
	ctx, tile := saved.ctx, saved.tile
	runtime := tile.Runtime()

	if saved.sharedWeights != nil {
		tile.EnsureSharedWeights(saved.sharedWeights)
	}

	indexed := ctx.indexed
	if indexed {
		gradInput = tile.BackwardIndexed(gradOutput, saved.call)
	} else {
		gradInput = tile.Backward(gradOutput, saved.call)
	}

	switch ctx.mode {
	case UpdateDirect:
		if saved.sharedWeights == nil {
			panic(errors.Wrap(ErrSharedWeightsMismatch, "direct-mode backward without shared weights"))
		}
		checkSharedWeights(ctx, saved.sharedWeights)
		input := saved.input
		if saved.offloaded {
			input = input.To(tile.Device())
		}
		sharedWeightsGrad = tensor.ZerosLike(saved.sharedWeights)
		computeDeltaWeights(tile, sharedWeightsGrad, indexed, input, gradOutput)

	default:
		storedGrad := gradOutput
		if runtime.OffloadGradient {
			storedGrad = gradOutput.To(tensor.CPU)
		}
		ctx.record(saved.input, storedGrad)
	}

	klog.V(2).Infof("analog backward on %s: mode=%s indexed=%t trace=%d",
		tile.BriefInfo(), ctx.mode, indexed, ctx.TraceLen())
	saved.release()
	return gradInput, sharedWeightsGrad
}

// computeDeltaWeights runs the tile update with target as delta-weights buffer.
// The target is detached even if the update panics.
func computeDeltaWeights(tile Tile, target *tensor.RawTensor, indexed bool, input, gradOutput *tensor.RawTensor) {
	tile.SetDeltaWeights(target)
	defer tile.ResetDeltaWeights()
	if indexed {
		tile.UpdateIndexed(input, gradOutput)
	} else {
		tile.Update(input, gradOutput)
	}
}

func checkSharedWeights(ctx *Context, shared *tensor.RawTensor) {
	if !shared.Shape().Equal(ctx.data.Shape()) {
		panic(errors.Wrapf(ErrSharedWeightsMismatch, "shared weights shape %v, analog weights shape %v",
			shared.Shape(), ctx.data.Shape()))
	}
	if !shared.DType().IsFloat() {
		panic(errors.Wrapf(ErrSharedWeightsMismatch, "shared weights dtype %s is not floating point", shared.DType()))
	}
}

// release drops everything the call kept; the state cannot be used again.
func (s *SavedState) release() {
	s.consumed = true
	s.input = nil
	s.sharedWeights = nil
	s.call.clear()
}
