package analog

import "github.com/Zhaoxian-Wu/aihwkit/internal/tensor"

// RuntimeConfig is the placement policy a tile imposes on the dispatcher.
type RuntimeConfig struct {
	// OffloadInput moves the input saved for backward to host memory between
	// forward and backward.
	OffloadInput bool
	// OffloadGradient stores deferred-mode error tensors in host memory.
	OffloadGradient bool
}

// Tile is the capability interface of an analog tile backend.
//
// The tile is the authority on the physical weight state; the Context only
// mirrors it. A tile owns its Context (SetContext/Context) and the Context
// holds a back-reference to the tile that is re-established explicitly by
// Context.Reset.
type Tile interface {
	// Weights reads the current weights into a new tensor owned by the caller.
	Weights() *tensor.RawTensor
	// Device returns the device the tile computes on.
	Device() tensor.Device
	// IsOnAccelerator reports whether the tile lives on an accelerator device.
	IsOnAccelerator() bool
	// ToAccelerator returns the tile migrated to device.
	ToAccelerator(device tensor.Device) (Tile, error)
	// ToHost returns the tile migrated to host memory.
	ToHost() (Tile, error)
	// Runtime returns the offload policy.
	Runtime() RuntimeConfig

	// JointForward runs the forward pass. The tile may stash values in call
	// for use by the matching Backward.
	JointForward(input *tensor.RawTensor, isTest bool, call *CallState) *tensor.RawTensor
	// JointForwardIndexed is JointForward through the indexed path.
	JointForwardIndexed(input *tensor.RawTensor, isTest bool, call *CallState) *tensor.RawTensor
	// Backward propagates gradOutput to the input side.
	Backward(gradOutput *tensor.RawTensor, call *CallState) *tensor.RawTensor
	// BackwardIndexed is Backward through the indexed path.
	BackwardIndexed(gradOutput *tensor.RawTensor, call *CallState) *tensor.RawTensor

	// EnsureSharedWeights binds an external tensor as the authoritative
	// weight buffer for the current call.
	EnsureSharedWeights(weights *tensor.RawTensor)
	// SetDeltaWeights redirects Update to write the weight gradient into target.
	SetDeltaWeights(target *tensor.RawTensor)
	// ResetDeltaWeights detaches the delta-weights target.
	ResetDeltaWeights()
	// Update applies (or, with a delta-weights target, computes) the update for (input, gradOutput).
	Update(input, gradOutput *tensor.RawTensor)
	// UpdateIndexed is Update through the indexed path.
	UpdateIndexed(input, gradOutput *tensor.RawTensor)

	// Context returns the bound context.
	Context() *Context
	// SetContext binds ctx to the tile.
	SetContext(ctx *Context)

	// BriefInfo returns a one-line description for diagnostics.
	BriefInfo() string
}
