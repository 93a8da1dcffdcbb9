package nn

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input. Sequential also
// carries the training/evaluation mode for every child that has one.
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewConvBNReLU(nn.BlockConfig{InChannels: 1, OutChannels: 8}, backend),
//	    nn.NewFlatten[Backend](),
//	    nn.NewLinear(8*28*28, 10, backend),
//	)
type Sequential[B tensor.Backend] struct {
	modules  []Module[B]
	training bool
}

// NewSequential creates a new Sequential container in training mode.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{
		modules:  modules,
		training: true,
	}
}

// Forward applies all modules in sequence.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Parameters returns all trainable parameters from all modules, in order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Add appends a module to the sequence.
func (s *Sequential[B]) Add(module Module[B]) {
	s.modules = append(s.modules, module)
}

// Len returns the number of modules in the sequence.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential[B]) Module(index int) Module[B] {
	if index < 0 || index >= len(s.modules) {
		panic("Sequential.Module: index out of bounds")
	}
	return s.modules[index]
}

// SetTraining sets the mode on the container and every child that has one.
func (s *Sequential[B]) SetTraining(training bool) {
	s.training = training
	for _, module := range s.modules {
		if m, ok := module.(ModeSetter); ok {
			m.SetTraining(training)
		}
	}
}

// Training reports the container's mode.
func (s *Sequential[B]) Training() bool {
	return s.training
}

// Train switches to training mode.
func (s *Sequential[B]) Train() {
	s.SetTraining(true)
}

// Eval switches to evaluation mode.
func (s *Sequential[B]) Eval() {
	s.SetTraining(false)
}

// StateDict returns every child's state prefixed with its index
// (e.g., "0.weight", "1.running_mean").
func (s *Sequential[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for i, module := range s.modules {
		for name, raw := range module.StateDict() {
			stateDict[fmt.Sprintf("%d.%s", i, name)] = raw
		}
	}
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary keyed as StateDict
// produces them.
func (s *Sequential[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, module := range s.modules {
		prefix := fmt.Sprintf("%d.", i)
		moduleStateDict := make(map[string]*tensor.RawTensor)
		for key, raw := range stateDict {
			if name, ok := strings.CutPrefix(key, prefix); ok {
				moduleStateDict[name] = raw
			}
		}

		if len(module.StateDict()) == 0 {
			continue
		}
		if err := module.LoadStateDict(moduleStateDict); err != nil {
			return errors.Wrapf(err, "failed to load module %d", i)
		}
	}
	return nil
}
