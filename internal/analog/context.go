package analog

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// Context binds one analog weight tensor to its tile and records the call
// history needed for deferred (pulsed) updates.
//
// The weight data held here is a best-effort mirror of the tile's physical
// state. It can be read and written for study and debugging (Data, SetData),
// but real weight changes must go through the tile's update routines.
//
// A Context is never duplicated: Snapshot returns a plain, unbound weight
// value, and a new binding is only created by NewContext or AttachContext.
type Context struct {
	data *tensor.RawTensor
	tile Tile

	indexed bool
	mode    UpdateMode

	inputTrace []*tensor.RawTensor
	errorTrace []*tensor.RawTensor
}

// NewContext reads the current weights from tile and binds a fresh context to it.
func NewContext(tile Tile) *Context {
	if tile == nil {
		panic(errors.Wrap(ErrUnbound, "NewContext: nil tile"))
	}
	return bind(tile, tile.Weights())
}

// AttachContext binds tile to the storage of an existing snapshot without
// copying it. The snapshot's weights become the context's weight data.
func AttachContext(tile Tile, snap *Snapshot) *Context {
	if tile == nil {
		panic(errors.Wrap(ErrUnbound, "AttachContext: nil tile"))
	}
	if snap == nil || snap.weights == nil {
		return NewContext(tile)
	}
	return bind(tile, snap.weights)
}

func bind(tile Tile, data *tensor.RawTensor) *Context {
	c := &Context{data: data}
	c.Reset(tile)
	return c
}

// RequiresGrad reports that the context takes part in gradient tracking. Always true.
func (c *Context) RequiresGrad() bool {
	return true
}

// Tile returns the bound tile.
func (c *Context) Tile() Tile {
	return c.tile
}

// SetIndexed selects the indexed (true) or plain (false) execution path.
func (c *Context) SetIndexed(indexed bool) {
	c.indexed = indexed
}

// Indexed reports whether the indexed execution path is selected.
func (c *Context) Indexed() bool {
	return c.indexed
}

// UpdateMode returns the update mode selected by the last forward call.
func (c *Context) UpdateMode() UpdateMode {
	return c.mode
}

// Data returns the weight data. The tensor is not tracked by the tape.
func (c *Context) Data() *tensor.RawTensor {
	return c.data
}

// SetData copies the values of data into the context's weight tensor.
//
// This changes the mirror only, not the tile. It is meant for studies and
// debugging; use the tile's update routines to change the physical weights.
func (c *Context) SetData(data *tensor.RawTensor) error {
	if err := c.data.CopyFrom(data); err != nil {
		return errors.Wrap(err, "analog context SetData")
	}
	return nil
}

// Reset clears the trace. If tile is not nil, the context is rebound to it
// in both directions.
func (c *Context) Reset(tile Tile) {
	if tile != nil {
		c.tile = tile
		tile.SetContext(c)
		klog.V(1).Infof("analog context bound to %s", tile.BriefInfo())
	}
	c.inputTrace = nil
	c.errorTrace = nil
}

// HasGradient reports whether a trace is pending for a pulsed update.
func (c *Context) HasGradient() bool {
	return len(c.inputTrace) > 0
}

// TraceState returns the trace occupancy.
func (c *Context) TraceState() TraceState {
	if c.HasGradient() {
		return TraceAccumulating
	}
	return TraceIdle
}

// TraceLen returns the number of recorded (input, error) pairs.
func (c *Context) TraceLen() int {
	return len(c.inputTrace)
}

// InputTrace returns the recorded inputs, oldest first.
func (c *Context) InputTrace() []*tensor.RawTensor {
	return append([]*tensor.RawTensor(nil), c.inputTrace...)
}

// ErrorTrace returns the recorded errors, oldest first.
func (c *Context) ErrorTrace() []*tensor.RawTensor {
	return append([]*tensor.RawTensor(nil), c.errorTrace...)
}

// Snapshot returns the current weight values as a plain unbound value.
// The snapshot has no tile and no trace; the binding is a runtime resource
// that only tile construction re-creates (see AttachContext).
func (c *Context) Snapshot() *Snapshot {
	return &Snapshot{weights: c.data.Copy()}
}

// String implements fmt.Stringer.
func (c *Context) String() string {
	if c.tile == nil {
		return "AnalogContext (unbound)"
	}
	return "AnalogContext of " + c.tile.BriefInfo()
}

// beginCall selects the update mode for the call starting now.
func (c *Context) beginCall(mode UpdateMode) {
	c.mode = mode
}

// record appends one observation pair. Idle -> Accumulating on the first pair.
func (c *Context) record(input, gradOutput *tensor.RawTensor) {
	if len(c.inputTrace) != len(c.errorTrace) {
		exceptions.Panicf("analog context trace out of sync: %d inputs, %d errors",
			len(c.inputTrace), len(c.errorTrace))
	}
	c.inputTrace = append(c.inputTrace, input)
	c.errorTrace = append(c.errorTrace, gradOutput)
}

// Snapshot is a plain weight value detached from any tile.
type Snapshot struct {
	weights *tensor.RawTensor
}

// NewSnapshot wraps weights as an unbound snapshot. The tensor is not copied.
func NewSnapshot(weights *tensor.RawTensor) *Snapshot {
	return &Snapshot{weights: weights}
}

// Weights returns the snapshot's weight tensor.
func (s *Snapshot) Weights() *tensor.RawTensor {
	return s.weights
}

// Shape returns the weight shape.
func (s *Snapshot) Shape() tensor.Shape {
	return s.weights.Shape()
}
