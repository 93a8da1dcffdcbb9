package nn

import (
	"fmt"

	"github.com/convkit/convkit/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	w := weight.Tensor()
//	grad := weight.Grad() // nil until a backward pass writes one
type Parameter[B tensor.Backend] struct {
	name   string                     // Parameter name (e.g., "weight", "bias")
	tensor *tensor.Tensor[float32, B] // The parameter tensor
	grad   *tensor.Tensor[float32, B] // Gradient tensor, nil when cleared
}

// NewParameter creates a new trainable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Grad returns the gradient tensor, or nil if none has been computed.
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] {
	return p.grad
}

// SetGrad replaces the gradient tensor.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float32, B]) {
	p.grad = grad
}

// AccumulateGrad adds delta to the gradient, allocating it on first use.
func (p *Parameter[B]) AccumulateGrad(delta []float32) {
	if len(delta) != p.tensor.NumElements() {
		panic(fmt.Sprintf("parameter %s: gradient has %d elements, want %d", p.name, len(delta), p.tensor.NumElements()))
	}
	if p.grad == nil {
		p.grad = tensor.Zeros[float32](p.tensor.Shape(), p.tensor.Backend())
	}
	g := p.grad.Data()
	for i, d := range delta {
		g[i] += d
	}
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
}
