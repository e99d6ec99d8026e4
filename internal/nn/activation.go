package nn

import (
	"github.com/Zhaoxian-Wu/aihwkit/internal/autodiff/ops"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// ReLU is a Rectified Linear Unit activation module.
//
// Applies the element-wise function: f(x) = max(0, x)
type ReLU struct{}

// NewReLU creates a new ReLU activation module.
func NewReLU() *ReLU {
	return &ReLU{}
}

// Forward applies ReLU activation: f(x) = max(0, x).
func (r *ReLU) Forward(rec ops.Recorder, input *tensor.RawTensor) *tensor.RawTensor {
	return ops.ReLU(rec, input)
}

// Parameters returns an empty slice (ReLU has no trainable parameters).
func (r *ReLU) Parameters() []*Parameter {
	return nil
}

// StateDict returns an empty map (ReLU has no state).
func (r *ReLU) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict does nothing (ReLU has no state).
func (r *ReLU) LoadStateDict(_ map[string]*tensor.RawTensor) error {
	return nil
}

// String implements fmt.Stringer.
func (r *ReLU) String() string {
	return "ReLU()"
}
