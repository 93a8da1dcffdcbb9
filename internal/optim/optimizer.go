// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - ParamGroup: the learning-rate record schedulers adjust
//   - SGD: Stochastic Gradient Descent with momentum and weight decay
//   - Adam: Adaptive Moment Estimation
//
// Design inspired by PyTorch's torch.optim. Optimizers read gradients from
// nn.Parameter.Grad and skip parameters without one.
//
// Example usage:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.01, Momentum: 0.9}, backend)
//
//	optimizer.ZeroGrad()
//	loss, _ := lossFn(model.Forward(x), y)
//	_ = loss.Backward()
//	_ = optimizer.Step()
package optim

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/nn"
	"github.com/convkit/convkit/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies the stored parameter gradients.
	Step() error

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// LR returns the learning rate of the first parameter group.
	LR() float64

	// SetLR sets the learning rate of every parameter group.
	SetLR(lr float64)

	// ParamGroups exposes the groups so schedulers can adjust them.
	ParamGroups() []*ParamGroup

	// StateDict returns per-parameter buffers and group hyperparameters.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict restores what StateDict produced.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// ParamGroup holds the hyperparameters schedulers touch.
type ParamGroup struct {
	LR        float64
	InitialLR float64 // LR at construction; schedulers anneal from it
}

const groupLRKey = "param_groups.0.lr"

// stateKey formats "state.<index>.<name>".
func stateKey(index int, name string) string {
	return fmt.Sprintf("state.%d.%s", index, name)
}

// parseStateKey splits "state.<index>.<name>".
func parseStateKey(key string) (int, string, bool) {
	rest, ok := strings.CutPrefix(key, "state.")
	if !ok {
		return 0, "", false
	}
	idx, name, ok := strings.Cut(rest, ".")
	if !ok {
		return 0, "", false
	}
	i, err := strconv.Atoi(idx)
	if err != nil || i < 0 {
		return 0, "", false
	}
	return i, name, true
}

func scalarFloat64(v float64, device tensor.Device) *tensor.RawTensor {
	raw, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float64, device)
	if err != nil {
		panic(err)
	}
	raw.AsFloat64()[0] = v
	return raw
}

func scalarInt64(v int64, device tensor.Device) *tensor.RawTensor {
	raw, err := tensor.NewRaw(tensor.Shape{1}, tensor.Int64, device)
	if err != nil {
		panic(err)
	}
	raw.AsInt64()[0] = v
	return raw
}

// loadGroupLR reads "param_groups.0.lr" if present.
func loadGroupLR(group *ParamGroup, stateDict map[string]*tensor.RawTensor) error {
	raw, ok := stateDict[groupLRKey]
	if !ok {
		return nil
	}
	if raw.NumElements() != 1 {
		return errors.Errorf("%s: expected a scalar, got shape %v", groupLRKey, raw.Shape())
	}
	group.LR = raw.Float64s()[0]
	return nil
}

// loadBuffer copies a float32 buffer for params[index], allocating it if needed.
func loadBuffer[B tensor.Backend](
	key string,
	raw *tensor.RawTensor,
	param *nn.Parameter[B],
	buf *tensor.Tensor[float32, B],
) (*tensor.Tensor[float32, B], error) {
	if !raw.Shape().Equal(param.Tensor().Shape()) {
		return nil, errors.Errorf("%s: shape mismatch: expected %v, got %v", key, param.Tensor().Shape(), raw.Shape())
	}
	if buf == nil {
		buf = tensor.Zeros[float32](param.Tensor().Shape(), param.Tensor().Backend())
	}
	copy(buf.Data(), raw.To(buf.Device(), tensor.Float32).AsFloat32())
	return buf, nil
}

func zeroGrad[B tensor.Backend](params []*nn.Parameter[B]) {
	for _, param := range params {
		param.ZeroGrad()
	}
}
