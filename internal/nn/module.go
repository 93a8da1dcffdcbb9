// Package nn implements the neural network modules convkit builds on.
//
// This package provides:
//   - Module interface: Base interface for all NN components
//   - Parameter: Trainable parameters with gradient storage
//   - Conv2D, BatchNorm2D, ReLU, Flatten, Linear
//   - Sequential: Container for stacking layers
//   - CrossEntropyLoss: loss with a closed-form backward into a Linear head
//   - NewConvBNReLU: the conv + batchnorm + ReLU block
//
// Modules follow PyTorch's training/evaluation mode split: modules whose
// behaviour depends on the mode implement ModeSetter.
package nn

import (
	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module.
	// Returns an empty slice for modules without trainable parameters.
	Parameters() []*Parameter[B]

	// StateDict returns parameters and persistent buffers by name.
	// The returned tensors alias the module's storage.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies values from stateDict into the module.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// ModeSetter is implemented by modules that behave differently in training
// and evaluation mode.
type ModeSetter interface {
	SetTraining(training bool)
	Training() bool
}

// loadInto copies src into dst after checking shape and dtype.
func loadInto(name string, dst *tensor.RawTensor, stateDict map[string]*tensor.RawTensor) error {
	src, ok := stateDict[name]
	if !ok {
		return errors.Errorf("missing %q in state dict", name)
	}
	if !src.Shape().Equal(dst.Shape()) {
		return errors.Errorf("%s: shape mismatch: expected %v, got %v", name, dst.Shape(), src.Shape())
	}
	if src.DType() != dst.DType() {
		return errors.Errorf("%s: dtype mismatch: expected %s, got %s", name, dst.DType(), src.DType())
	}
	copy(dst.Data(), src.Data())
	return nil
}

// recording reports whether b wants gradient information recorded.
// Backends without a GradSwitch always record.
func recording[B tensor.Backend](b B) bool {
	if gs, ok := any(b).(tensor.GradSwitch); ok {
		return gs.GradEnabled()
	}
	return true
}

// NoGrad turns gradient recording off on backend and returns a function that
// restores the previous setting. It is a no-op for backends without a
// GradSwitch.
//
//	defer nn.NoGrad(backend)()
func NoGrad(backend tensor.Backend) func() {
	gs, ok := backend.(tensor.GradSwitch)
	if !ok {
		return func() {}
	}
	prev := gs.GradEnabled()
	gs.SetGradEnabled(false)
	return func() { gs.SetGradEnabled(prev) }
}
