package optim

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Zhaoxian-Wu/aihwkit/internal/analog"
	"github.com/Zhaoxian-Wu/aihwkit/internal/nn"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// AnalogSGDConfig holds configuration for AnalogSGD.
type AnalogSGDConfig struct {
	// LR, if positive, is pushed to every tile that accepts a learning rate
	// before its pulsed update. Zero keeps the tiles' own learning rate.
	LR float32
}

// AnalogStats counts the work done by AnalogSGD.
type AnalogStats struct {
	Steps         int64 // calls to Step
	TileUpdates   int64 // contexts whose trace was consumed
	ConsumedPairs int64 // (input, error) pairs applied to tiles
}

// learningRateSetter is implemented by tiles with a configurable update rate.
type learningRateSetter interface {
	SetLearningRate(lr float32)
}

// AnalogSGD is the analog counterpart of SGD.
//
// On every Step it first steps the digital optimizer (biases, direct-mode
// shared weights), then, for every context of the model with a pending
// trace, replays the recorded (input, error) pairs through the tile's update
// routine in recording order and resets the trace. Finally the context's
// weight mirror is refreshed from the tile.
//
// Contexts are read from the model on each step, so contexts replaced by
// device moves or state loading are followed.
type AnalogSGD struct {
	model   nn.AnalogModule
	digital Optimizer
	lr      float32
	stats   AnalogStats
}

var _ nn.OptimizerState = (*AnalogSGD)(nil)

// NewAnalogSGD creates an analog optimizer for model. digital optimizes the
// model's digital parameters and may be nil.
func NewAnalogSGD(model nn.AnalogModule, digital Optimizer, config AnalogSGDConfig) *AnalogSGD {
	return &AnalogSGD{
		model:   model,
		digital: digital,
		lr:      config.LR,
	}
}

// Step applies the digital step and the pending pulsed updates.
func (a *AnalogSGD) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	if a.digital != nil {
		a.digital.Step(grads)
	}
	for _, ctx := range a.model.AnalogContexts() {
		if ctx.HasGradient() {
			a.applyTrace(ctx)
		}
		refreshMirror(ctx)
	}
	a.stats.Steps++
}

// applyTrace replays the trace of ctx on its tile and resets it.
func (a *AnalogSGD) applyTrace(ctx *analog.Context) {
	tile := ctx.Tile()
	if a.lr > 0 {
		if s, ok := tile.(learningRateSetter); ok {
			s.SetLearningRate(a.lr)
		}
	}

	device := tile.Device()
	inputs, errs := ctx.InputTrace(), ctx.ErrorTrace()
	for i, input := range inputs {
		x, d := input.To(device), errs[i].To(device)
		if ctx.Indexed() {
			tile.UpdateIndexed(x, d)
		} else {
			tile.Update(x, d)
		}
	}
	ctx.Reset(nil)

	a.stats.TileUpdates++
	a.stats.ConsumedPairs += int64(len(inputs))
	klog.V(1).Infof("analog step on %s: applied %d trace pairs", tile.BriefInfo(), len(inputs))
}

// refreshMirror copies the tile weights into the context data, keeping the
// data's dtype and device.
func refreshMirror(ctx *analog.Context) {
	data := ctx.Data()
	w, err := ctx.Tile().Weights().Cast(data.DType())
	if err == nil {
		err = ctx.SetData(w.To(data.Device()))
	}
	if err != nil {
		panic(errors.Wrapf(err, "refreshing weights of %s", ctx))
	}
}

// ZeroGrad clears the digital gradients. Pending traces are kept: only Step
// consumes them.
func (a *AnalogSGD) ZeroGrad() {
	if a.digital != nil {
		a.digital.ZeroGrad()
	}
}

// GetLR returns the analog learning rate, or the digital one when no analog
// rate is configured.
func (a *AnalogSGD) GetLR() float32 {
	if a.lr > 0 || a.digital == nil {
		return a.lr
	}
	return a.digital.GetLR()
}

// SetLR changes the analog learning rate applied on the next step.
func (a *AnalogSGD) SetLR(lr float32) {
	a.lr = lr
}

// Stats returns the work counters.
func (a *AnalogSGD) Stats() AnalogStats {
	return a.stats
}

// StateDict returns the digital optimizer's state, if it has any.
func (a *AnalogSGD) StateDict() map[string]*tensor.RawTensor {
	if s, ok := a.digital.(nn.OptimizerState); ok {
		return s.StateDict()
	}
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict restores the digital optimizer's state.
func (a *AnalogSGD) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if s, ok := a.digital.(nn.OptimizerState); ok {
		return s.LoadStateDict(stateDict)
	}
	return nil
}
