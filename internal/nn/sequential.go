package nn

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/Zhaoxian-Wu/aihwkit/internal/analog"
	"github.com/Zhaoxian-Wu/aihwkit/internal/autodiff/ops"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input.
//
// Example:
//
//	model := nn.NewSequential(hidden, nn.NewReLU(), output)
//	y := model.Forward(tape, input)
//
// This is equivalent to:
//
//	h1 := hidden.Forward(tape, input)
//	h2 := relu.Forward(tape, h1)
//	y := output.Forward(tape, h2)
type Sequential struct {
	modules []Module
}

var (
	_ Module       = (*Sequential)(nil)
	_ AnalogModule = (*Sequential)(nil)
	_ Trainable    = (*Sequential)(nil)
	_ Movable      = (*Sequential)(nil)
)

// NewSequential creates a new Sequential container.
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{
		modules: modules,
	}
}

// Forward applies all modules in sequence.
func (s *Sequential) Forward(rec ops.Recorder, input *tensor.RawTensor) *tensor.RawTensor {
	output := input
	for _, module := range s.modules {
		output = module.Forward(rec, output)
	}
	return output
}

// Parameters returns all trainable parameters from all modules.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// AnalogContexts returns the analog contexts of all modules, in order.
func (s *Sequential) AnalogContexts() []*analog.Context {
	var contexts []*analog.Context
	for _, module := range s.modules {
		if am, ok := module.(AnalogModule); ok {
			contexts = append(contexts, am.AnalogContexts()...)
		}
	}
	return contexts
}

// Train sets training mode on every module that supports it.
func (s *Sequential) Train(training bool) {
	for _, module := range s.modules {
		if tm, ok := module.(Trainable); ok {
			tm.Train(training)
		}
	}
}

// To moves every movable module to device, stopping at the first failure.
func (s *Sequential) To(device tensor.Device) error {
	for i, module := range s.modules {
		if mm, ok := module.(Movable); ok {
			if err := mm.To(device); err != nil {
				return errors.Wrapf(err, "moving module %d", i)
			}
		}
	}
	return nil
}

// Add appends a module to the sequence.
func (s *Sequential) Add(module Module) {
	s.modules = append(s.modules, module)
}

// Len returns the number of modules in the sequence.
func (s *Sequential) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential) Module(index int) Module {
	if index < 0 || index >= len(s.modules) {
		panic("Sequential.Module: index out of bounds")
	}
	return s.modules[index]
}

// StateDict returns a map of state names to raw tensors.
//
// Names are prefixed with their module index (e.g., "0.weight", "0.bias",
// "2.weight") to avoid collisions.
func (s *Sequential) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for i, module := range s.modules {
		for name, raw := range module.StateDict() {
			stateDict[fmt.Sprintf("%d.%s", i, name)] = raw
		}
	}
	return stateDict
}

// LoadStateDict loads state saved by StateDict.
func (s *Sequential) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, module := range s.modules {
		moduleStateDict := make(map[string]*tensor.RawTensor)
		prefix := fmt.Sprintf("%d.", i)
		for key, raw := range stateDict {
			if name, ok := strings.CutPrefix(key, prefix); ok && name != "" {
				moduleStateDict[name] = raw
			}
		}

		// Load into module (only if it has state)
		if len(moduleStateDict) > 0 {
			if err := module.LoadStateDict(moduleStateDict); err != nil {
				return errors.Wrapf(err, "failed to load module %d", i)
			}
		}
	}
	return nil
}

// String implements fmt.Stringer.
func (s *Sequential) String() string {
	var b strings.Builder
	b.WriteString("Sequential(")
	for i, module := range s.modules {
		fmt.Fprintf(&b, "\n  (%d): %v", i, module)
	}
	b.WriteString("\n)")
	return b.String()
}
