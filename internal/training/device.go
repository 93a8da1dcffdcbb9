package training

import (
	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/nn"
	"github.com/convkit/convkit/internal/tensor"
)

// ErrNoParameters is returned when a model has no parameters to inspect.
var ErrNoParameters = errors.New("model has no parameters")

// Device returns the device of the model's first parameter.
func Device[B tensor.Backend](model nn.Module[B]) (tensor.Device, error) {
	first, err := firstParameter[B](model)
	if err != nil {
		return 0, err
	}
	return first.Tensor().Device(), nil
}

// placement returns the device and backend of the first parameter.
func placement[B tensor.Backend](model nn.Module[B]) (tensor.Device, B, error) {
	first, err := firstParameter[B](model)
	if err != nil {
		var zero B
		return 0, zero, err
	}
	t := first.Tensor()
	return t.Device(), t.Backend(), nil
}

func firstParameter[B tensor.Backend](model nn.Module[B]) (*nn.Parameter[B], error) {
	params := model.Parameters()
	if len(params) == 0 {
		return nil, errors.WithStack(ErrNoParameters)
	}
	return params[0], nil
}
