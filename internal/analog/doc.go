// Package analog binds simulated analog tiles to the generic autodiff engine.
//
// Two pieces live here:
//
//   - Context: one per analog weight tensor. It owns the differentiable
//     weight mirror, holds a back-reference to its Tile, carries the indexed
//     and update-mode flags, and accumulates a trace of (input, error) pairs
//     across calls until Reset.
//   - Forward/Backward: the dispatcher. It is the only code path that calls
//     the tile's numeric routines, and decides per call whether the weight
//     gradient is computed immediately (direct mode, shared weights were
//     supplied) or the observation is appended to the trace for a later
//     pulsed update (deferred mode).
//
// A typical deferred training step:
//
//	tape.StartRecording()
//	y := analog.Apply(tape, ctx, tile, x, nil, false)
//	loss := ops.MSE(tape, y, target)
//	autodiff.Backward(tape, loss) // appends (x, dL/dy) to ctx's trace
//	if ctx.HasGradient() {
//	    optimizer.Step()          // pulsed update from the trace, then ctx.Reset(nil)
//	}
//
// Callers must not use one Context from several goroutines at once.
package analog
