package optim

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/Zhaoxian-Wu/aihwkit/internal/nn"
	"github.com/Zhaoxian-Wu/aihwkit/internal/tensor"
)

// Adam implements the Adam optimizer (Adaptive Moment Estimation).
//
// Adam combines the benefits of AdaGrad and RMSProp:
//   - Maintains per-parameter learning rates
//   - Uses first moment (mean) and second moment (variance) of gradients
//   - Includes bias correction for initialization
//
// Update rule:
//
//	m_t = β1 * m_{t-1} + (1 - β1) * g_t
//	v_t = β2 * v_{t-1} + (1 - β2) * g_t²
//	m̂_t = m_t / (1 - β1^t)
//	v̂_t = v_t / (1 - β2^t)
//	θ_t = θ_{t-1} - α * m̂_t / (√v̂_t + ε)
//
// Adam only touches digital parameters. Analog weights trained in deferred
// mode are updated by AnalogSGD through the tiles.
type Adam struct {
	params []*nn.Parameter
	lr     float32
	beta1  float32
	beta2  float32
	eps    float32
	t      int                                 // Timestep for bias correction
	m      map[*nn.Parameter]*tensor.RawTensor // First moment estimates
	v      map[*nn.Parameter]*tensor.RawTensor // Second moment estimates
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float32    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer.
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make(map[*nn.Parameter]*tensor.RawTensor),
		v:      make(map[*nn.Parameter]*tensor.RawTensor),
	}
}

// Step performs a single optimization step.
func (a *Adam) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++

	// Bias correction terms
	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		m, ok := a.m[param]
		if !ok {
			m = tensor.ZerosLike(param.Tensor())
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = tensor.ZerosLike(param.Tensor())
			a.v[param] = v
		}

		a.updateParameter(param, grad, m, v, biasCorrection1, biasCorrection2)
	}
}

// updateParameter applies the Adam update to a single parameter.
func (a *Adam) updateParameter(param *nn.Parameter, grad, m, v *tensor.RawTensor, biasCorrection1, biasCorrection2 float32) {
	gradData := grad.AsFloat32()
	mData := m.AsFloat32()
	vData := v.AsFloat32()
	paramData := param.Tensor().AsFloat32()

	for i := range paramData {
		g := gradData[i]

		// Update biased first moment estimate
		mData[i] = a.beta1*mData[i] + (1.0-a.beta1)*g

		// Update biased second raw moment estimate
		vData[i] = a.beta2*vData[i] + (1.0-a.beta2)*g*g

		mHat := mData[i] / biasCorrection1
		vHat := vData[i] / biasCorrection2

		paramData[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float32) {
	a.lr = lr
}

// GetTimestep returns the current timestep (number of steps taken).
func (a *Adam) GetTimestep() int {
	return a.t
}

// StateDict returns the optimizer state for serialization.
//
// State keys: "m.{i}", "v.{i}" per parameter and "timestep".
func (a *Adam) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for i, param := range a.params {
		if m, ok := a.m[param]; ok {
			stateDict[fmt.Sprintf("m.%d", i)] = m
		}
		if v, ok := a.v[param]; ok {
			stateDict[fmt.Sprintf("v.%d", i)] = v
		}
	}
	timestep := tensor.Zeros(tensor.Shape{1}, tensor.CPU)
	timestep.AsFloat32()[0] = float32(a.t)
	stateDict["timestep"] = timestep
	return stateDict
}

// LoadStateDict loads optimizer state from serialization.
func (a *Adam) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	m := make(map[*nn.Parameter]*tensor.RawTensor)
	v := make(map[*nn.Parameter]*tensor.RawTensor)
	for i, param := range a.params {
		for prefix, moments := range map[string]map[*nn.Parameter]*tensor.RawTensor{"m": m, "v": v} {
			raw, ok := stateDict[fmt.Sprintf("%s.%d", prefix, i)]
			if !ok {
				continue
			}
			if !raw.Shape().Equal(param.Tensor().Shape()) || raw.DType() != tensor.Float32 {
				return errors.Errorf("%s state mismatch for parameter %d: expected float32 %v, got %s %v",
					prefix, i, param.Tensor().Shape(), raw.DType(), raw.Shape())
			}
			moments[param] = raw.Copy()
		}
	}

	t := 0
	if raw, ok := stateDict["timestep"]; ok {
		t = int(raw.Float32s()[0])
	}
	a.m, a.v, a.t = m, v, t
	return nil
}
