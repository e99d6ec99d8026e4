package nn

import (
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// Parameter represents a digital trainable parameter.
//
// Gradients are looked up by the parameter's tensor in the map returned by
// autodiff.Backward, so the tensor pointer is the parameter's identity for
// the current device. Device moves replace it.
//
// Example:
//
//	bias := nn.NewParameter("bias", tensor.Zeros(tensor.Shape{8}, tensor.CPU))
//	grads := autodiff.Backward(tape, loss)
//	g := grads[bias.Tensor()]
type Parameter struct {
	name   string            // Parameter name (e.g., "weight", "bias")
	tensor *tensor.RawTensor // The parameter tensor
	grad   *tensor.RawTensor // Gradient tensor (set by the caller after backward)
}

// NewParameter creates a new trainable parameter.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.RawTensor {
	return p.tensor
}

// Grad returns the gradient tensor.
//
// Returns nil if no gradient has been set.
func (p *Parameter) Grad() *tensor.RawTensor {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter) SetGrad(grad *tensor.RawTensor) {
	p.grad = grad
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}

// moveTo places the parameter on device. The gradient is dropped.
func (p *Parameter) moveTo(device tensor.Device) {
	p.tensor = p.tensor.To(device)
	p.grad = nil
}
