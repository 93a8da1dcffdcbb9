package optim

import (
	"math"

	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/nn"
	"github.com/convkit/convkit/internal/tensor"
)

// Adam implements the Adam optimizer (Kingma & Ba, 2014).
//
// Update rule:
//
//	m = beta1 * m + (1 - beta1) * grad
//	v = beta2 * v + (1 - beta2) * grad^2
//	m_hat = m / (1 - beta1^t)
//	v_hat = v / (1 - beta2^t)
//	param = param - lr * m_hat / (sqrt(v_hat) + epsilon)
//
// The step count t is tracked per parameter, as PyTorch does.
type Adam[B tensor.Backend] struct {
	params  []*nn.Parameter[B]
	group   *ParamGroup
	beta1   float64
	beta2   float64
	epsilon float64

	expAvg   []*tensor.Tensor[float32, B]
	expAvgSq []*tensor.Tensor[float32, B]
	steps    []int64

	backend B
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR      float64 // Learning rate (default: 0.001)
	Betas   [2]float64
	Epsilon float64 // default: 1e-8
}

// NewAdam creates a new Adam optimizer.
// Zero fields take PyTorch's defaults: lr 1e-3, betas (0.9, 0.999), eps 1e-8.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Epsilon == 0 {
		config.Epsilon = 1e-8
	}

	return &Adam[B]{
		params:   params,
		group:    &ParamGroup{LR: config.LR, InitialLR: config.LR},
		beta1:    config.Betas[0],
		beta2:    config.Betas[1],
		epsilon:  config.Epsilon,
		expAvg:   make([]*tensor.Tensor[float32, B], len(params)),
		expAvgSq: make([]*tensor.Tensor[float32, B], len(params)),
		steps:    make([]int64, len(params)),
		backend:  backend,
	}
}

// Step performs a single optimization step.
func (a *Adam[B]) Step() error {
	for i, param := range a.params {
		grad := param.Grad()
		if grad == nil {
			continue
		}
		p := param.Tensor().Data()
		g := grad.Data()
		if len(g) != len(p) {
			return errors.Errorf("adam: parameter %d (%s): gradient has %d elements, want %d", i, param.Name(), len(g), len(p))
		}

		if a.expAvg[i] == nil {
			a.expAvg[i] = tensor.Zeros[float32](param.Tensor().Shape(), a.backend)
			a.expAvgSq[i] = tensor.Zeros[float32](param.Tensor().Shape(), a.backend)
		}
		a.steps[i]++

		t := float64(a.steps[i])
		bc1 := 1 - math.Pow(a.beta1, t)
		bc2 := 1 - math.Pow(a.beta2, t)
		stepSize := a.group.LR / bc1
		sqrtBC2 := math.Sqrt(bc2)

		m := a.expAvg[i].Data()
		v := a.expAvgSq[i].Data()
		for k := range p {
			gk := float64(g[k])
			mk := a.beta1*float64(m[k]) + (1-a.beta1)*gk
			vk := a.beta2*float64(v[k]) + (1-a.beta2)*gk*gk
			m[k] = float32(mk)
			v[k] = float32(vk)
			p[k] -= float32(stepSize * mk / (math.Sqrt(vk)/sqrtBC2 + a.epsilon))
		}
	}
	return nil
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam[B]) ZeroGrad() {
	zeroGrad(a.params)
}

// LR returns the current learning rate.
func (a *Adam[B]) LR() float64 {
	return a.group.LR
}

// SetLR updates the learning rate.
func (a *Adam[B]) SetLR(lr float64) {
	a.group.LR = lr
}

// ParamGroups returns the single parameter group.
func (a *Adam[B]) ParamGroups() []*ParamGroup {
	return []*ParamGroup{a.group}
}

// StateDict returns "param_groups.0.lr" and, per updated parameter,
// "state.<i>.exp_avg", "state.<i>.exp_avg_sq" and "state.<i>.step".
func (a *Adam[B]) StateDict() map[string]*tensor.RawTensor {
	device := a.backend.Device()
	stateDict := map[string]*tensor.RawTensor{
		groupLRKey: scalarFloat64(a.group.LR, device),
	}
	for i := range a.params {
		if a.expAvg[i] == nil {
			continue
		}
		stateDict[stateKey(i, "exp_avg")] = a.expAvg[i].Raw()
		stateDict[stateKey(i, "exp_avg_sq")] = a.expAvgSq[i].Raw()
		stateDict[stateKey(i, "step")] = scalarInt64(a.steps[i], device)
	}
	return stateDict
}

// LoadStateDict restores the learning rate, moment buffers and step counts.
func (a *Adam[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadGroupLR(a.group, stateDict); err != nil {
		return err
	}
	for key, raw := range stateDict {
		if key == groupLRKey {
			continue
		}
		i, name, ok := parseStateKey(key)
		if !ok {
			return errors.Errorf("adam: unexpected state key %q", key)
		}
		if i >= len(a.params) {
			return errors.Errorf("adam: state for parameter %d, but only %d parameters", i, len(a.params))
		}

		var err error
		switch name {
		case "exp_avg":
			a.expAvg[i], err = loadBuffer(key, raw, a.params[i], a.expAvg[i])
		case "exp_avg_sq":
			a.expAvgSq[i], err = loadBuffer(key, raw, a.params[i], a.expAvgSq[i])
		case "step":
			if raw.NumElements() != 1 {
				return errors.Errorf("%s: expected a scalar, got shape %v", key, raw.Shape())
			}
			a.steps[i] = raw.Int64s()[0]
		default:
			return errors.Errorf("adam: unexpected state key %q", key)
		}
		if err != nil {
			return err
		}
	}

	for i := range a.params {
		if (a.expAvg[i] == nil) != (a.expAvgSq[i] == nil) {
			return errors.Errorf("adam: parameter %d has only one moment buffer", i)
		}
	}
	return nil
}
