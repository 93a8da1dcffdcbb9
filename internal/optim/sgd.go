package optim

import (
	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/nn"
	"github.com/convkit/convkit/internal/tensor"
)

// SGD implements Stochastic Gradient Descent with optional momentum and
// L2 weight decay.
//
// Update rule (PyTorch convention, dampening 0):
//
//	d = grad + weight_decay * param
//	buf = d                      (first step)
//	buf = momentum * buf + d     (later steps)
//	param = param - lr * buf
//
// Example:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	}, backend)
type SGD[B tensor.Backend] struct {
	params      []*nn.Parameter[B]
	group       *ParamGroup
	momentum    float64
	weightDecay float64
	buffers     []*tensor.Tensor[float32, B] // nil until first update
	backend     B
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR          float64 // Learning rate (default: 0.01)
	Momentum    float64 // Momentum factor (default: 0.0, range: [0, 1))
	WeightDecay float64 // L2 penalty (default: 0.0)
}

// NewSGD creates a new SGD optimizer over params.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD[B]{
		params:      params,
		group:       &ParamGroup{LR: config.LR, InitialLR: config.LR},
		momentum:    config.Momentum,
		weightDecay: config.WeightDecay,
		buffers:     make([]*tensor.Tensor[float32, B], len(params)),
		backend:     backend,
	}
}

// Step performs a single optimization step.
// Parameters with no gradient are skipped.
func (s *SGD[B]) Step() error {
	lr := float32(s.group.LR)
	wd := float32(s.weightDecay)
	mom := float32(s.momentum)

	for i, param := range s.params {
		grad := param.Grad()
		if grad == nil {
			continue
		}
		p := param.Tensor().Data()
		g := grad.Data()
		if len(g) != len(p) {
			return errors.Errorf("sgd: parameter %d (%s): gradient has %d elements, want %d", i, param.Name(), len(g), len(p))
		}

		if s.momentum == 0 {
			for k := range p {
				p[k] -= lr * (g[k] + wd*p[k])
			}
			continue
		}

		first := s.buffers[i] == nil
		if first {
			s.buffers[i] = tensor.Zeros[float32](param.Tensor().Shape(), s.backend)
		}
		buf := s.buffers[i].Data()
		for k := range p {
			d := g[k] + wd*p[k]
			if first {
				buf[k] = d
			} else {
				buf[k] = mom*buf[k] + d
			}
			p[k] -= lr * buf[k]
		}
	}
	return nil
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD[B]) ZeroGrad() {
	zeroGrad(s.params)
}

// LR returns the current learning rate.
func (s *SGD[B]) LR() float64 {
	return s.group.LR
}

// SetLR updates the learning rate.
func (s *SGD[B]) SetLR(lr float64) {
	s.group.LR = lr
}

// ParamGroups returns the single parameter group.
func (s *SGD[B]) ParamGroups() []*ParamGroup {
	return []*ParamGroup{s.group}
}

// StateDict returns "param_groups.0.lr" and, for every parameter that has
// taken a momentum step, "state.<i>.momentum_buffer".
func (s *SGD[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := map[string]*tensor.RawTensor{
		groupLRKey: scalarFloat64(s.group.LR, s.backend.Device()),
	}
	for i, buf := range s.buffers {
		if buf != nil {
			stateDict[stateKey(i, "momentum_buffer")] = buf.Raw()
		}
	}
	return stateDict
}

// LoadStateDict restores the learning rate and momentum buffers.
func (s *SGD[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadGroupLR(s.group, stateDict); err != nil {
		return err
	}
	for key, raw := range stateDict {
		if key == groupLRKey {
			continue
		}
		i, name, ok := parseStateKey(key)
		if !ok || name != "momentum_buffer" {
			return errors.Errorf("sgd: unexpected state key %q", key)
		}
		if i >= len(s.params) {
			return errors.Errorf("sgd: state for parameter %d, but only %d parameters", i, len(s.params))
		}
		buf, err := loadBuffer(key, raw, s.params[i], s.buffers[i])
		if err != nil {
			return err
		}
		s.buffers[i] = buf
	}
	return nil
}
