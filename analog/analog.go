// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package analog binds analog weight tensors to analog tiles and dispatches
// forward and backward calls to them.
//
// # Overview
//
// A Context ties one weight tensor to the tile that physically holds it. The
// dispatcher (Forward, Backward, Apply) runs every call through the tile and
// chooses how the weight update happens:
//
//   - Deferred mode (no shared weights): backward appends the observed
//     (input, error) pair to the context's trace. An analog optimizer later
//     consumes the whole trace with pulsed tile updates.
//   - Direct mode (shared weights): backward computes the weight gradient
//     immediately into a buffer shaped like the shared weights and hands it
//     to the autodiff engine like any other gradient.
//
// # Basic Usage
//
//	t, _ := analog.NewSimulatorTile(weights, analog.DefaultTileConfig())
//	ctx := analog.NewContext(t)
//
//	tape := autodiff.NewGradientTape()
//	tape.StartRecording()
//	y := analog.Apply(tape, ctx, t, x, nil, false)
//	grads := autodiff.Backward(tape, nn.NewMSELoss().Forward(tape, y, target))
//	// ctx.TraceLen() == 1
package analog

import (
	"github.com/Zhaoxian-Wu/aihwkit/internal/analog"
	"github.com/Zhaoxian-Wu/aihwkit/internal/autodiff/ops"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tile"
)

// Context binds one analog weight tensor to its tile.
type Context = analog.Context

// Snapshot is a plain weight value detached from any tile.
type Snapshot = analog.Snapshot

// Tile is the capability interface of an analog tile backend.
type Tile = analog.Tile

// RuntimeConfig is the offload policy a tile imposes on the dispatcher.
type RuntimeConfig = analog.RuntimeConfig

// CallState is per-call scratch space a tile may use between forward and backward.
type CallState = analog.CallState

// SavedState is what Forward keeps for the matching Backward.
type SavedState = analog.SavedState

// FunctionOp is the tape operation recorded by Apply.
type FunctionOp = analog.FunctionOp

// UpdateMode selects direct or deferred weight updates.
type UpdateMode = analog.UpdateMode

// TraceState is the occupancy of a context's trace.
type TraceState = analog.TraceState

// Update modes and trace states.
const (
	UpdateDeferred    = analog.UpdateDeferred
	UpdateDirect      = analog.UpdateDirect
	TraceIdle         = analog.TraceIdle
	TraceAccumulating = analog.TraceAccumulating
)

// Errors.
var (
	ErrNoSavedState          = analog.ErrNoSavedState
	ErrSavedStateReused      = analog.ErrSavedStateReused
	ErrSharedWeightsMismatch = analog.ErrSharedWeightsMismatch
	ErrUnbound               = analog.ErrUnbound
	ErrUnsupportedMove       = analog.ErrUnsupportedMove
	ErrNoAccelerator         = analog.ErrNoAccelerator
)

// SimulatorTile is the simulated analog tile.
type SimulatorTile = tile.SimulatorTile

// TileConfig holds the device parameters of a simulated tile.
type TileConfig = tile.Config

// NewContext reads the current weights from tile and binds a fresh context to it.
func NewContext(t Tile) *Context {
	return analog.NewContext(t)
}

// AttachContext binds tile to the storage of an existing snapshot.
func AttachContext(t Tile, snap *Snapshot) *Context {
	return analog.AttachContext(t, snap)
}

// NewSnapshot wraps weights as an unbound snapshot.
func NewSnapshot(weights *tensor.RawTensor) *Snapshot {
	return analog.NewSnapshot(weights)
}

// Forward runs the tile's forward pass and returns the output and saved state.
func Forward(ctx *Context, t Tile, input, sharedWeights *tensor.RawTensor, isTest bool) (*tensor.RawTensor, *SavedState) {
	return analog.Forward(ctx, t, input, sharedWeights, isTest)
}

// Backward runs the tile's backward pass for a call saved by Forward.
func Backward(saved *SavedState, gradOutput *tensor.RawTensor) (gradInput, sharedWeightsGrad *tensor.RawTensor) {
	return analog.Backward(saved, gradOutput)
}

// Apply runs Forward and records the call on rec so the tape runs Backward.
func Apply(rec ops.Recorder, ctx *Context, t Tile, input, sharedWeights *tensor.RawTensor, isTest bool) *tensor.RawTensor {
	return analog.Apply(rec, ctx, t, input, sharedWeights, isTest)
}

// NewSimulatorTile creates a simulated tile holding a copy of weights [out, in].
func NewSimulatorTile(weights *tensor.RawTensor, cfg TileConfig) (*SimulatorTile, error) {
	return tile.New(weights, cfg)
}

// DefaultTileConfig returns the default simulated device parameters.
func DefaultTileConfig() TileConfig {
	return tile.DefaultConfig()
}
