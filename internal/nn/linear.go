package nn

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/convkit/convkit/internal/tensor"
)

// Linear is a fully connected layer: y = x @ W^T + b.
//
// Input shape:  [batch, in_features]
// Output shape: [batch, out_features]
//
// Linear is the one layer here with a backward pass. In training mode with
// gradient recording on, Forward keeps its input so Backward can turn an
// output gradient into weight and bias gradients.
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	training    bool

	weight *Parameter[B] // [out_features, in_features]
	bias   *Parameter[B] // [out_features]

	lastInput *tensor.Tensor[float32, B]
	backend   B
}

// NewLinear creates a new linear layer with Xavier initialization and zero bias.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("linear: invalid features in=%d, out=%d", inFeatures, outFeatures))
	}

	weight := Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, backend)
	return &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		training:    true,
		weight:      NewParameter("weight", weight),
		bias:        NewParameter("bias", tensor.Zeros[float32](tensor.Shape{outFeatures}, backend)),
		backend:     backend,
	}
}

// Forward computes x @ W^T + b.
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 2 || shape[1] != l.inFeatures {
		panic(fmt.Sprintf("linear: expected input [N,%d], got %v", l.inFeatures, shape))
	}

	n := shape[0]
	out := tensor.Zeros[float32](tensor.Shape{n, l.outFeatures}, l.backend)
	if n == 0 {
		l.lastInput = nil
		return out
	}

	var y mat.Dense
	y.Mul(dense(input.Data(), n, l.inFeatures), dense(l.weight.Tensor().Data(), l.outFeatures, l.inFeatures).T())

	data := out.Data()
	b := l.bias.Tensor().Data()
	for i := 0; i < n; i++ {
		for o := 0; o < l.outFeatures; o++ {
			data[i*l.outFeatures+o] = float32(y.At(i, o)) + b[o]
		}
	}

	if l.training && recording(l.backend) {
		l.lastInput = input.Clone()
	} else {
		l.lastInput = nil
	}

	return out
}

// Backward accumulates dL/dW and dL/db given dL/dy for the last recorded
// forward pass. gradOutput has shape [batch, out_features], row-major.
func (l *Linear[B]) Backward(gradOutput []float32) error {
	if l.lastInput == nil {
		return errors.New("linear: backward without a recorded forward pass")
	}
	n := l.lastInput.Shape()[0]
	if len(gradOutput) != n*l.outFeatures {
		return errors.Errorf("linear: gradient has %d elements, want %d", len(gradOutput), n*l.outFeatures)
	}

	g := dense(gradOutput, n, l.outFeatures)
	var dw mat.Dense
	dw.Mul(g.T(), dense(l.lastInput.Data(), n, l.inFeatures))

	dW := make([]float32, l.outFeatures*l.inFeatures)
	for o := 0; o < l.outFeatures; o++ {
		for k := 0; k < l.inFeatures; k++ {
			dW[o*l.inFeatures+k] = float32(dw.At(o, k))
		}
	}
	dB := make([]float32, l.outFeatures)
	for o := range dB {
		dB[o] = float32(mat.Sum(g.ColView(o)))
	}

	l.weight.AccumulateGrad(dW)
	l.bias.AccumulateGrad(dB)
	return nil
}

// SetTraining switches input recording on or off.
func (l *Linear[B]) SetTraining(training bool) {
	l.training = training
}

// Training reports whether the layer is in training mode.
func (l *Linear[B]) Training() bool {
	return l.training
}

// Parameters returns [weight, bias].
func (l *Linear[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}

// StateDict returns "weight" and "bias".
func (l *Linear[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight": l.weight.Tensor().Raw(),
		"bias":   l.bias.Tensor().Raw(),
	}
}

// LoadStateDict loads "weight" and "bias".
func (l *Linear[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadInto("weight", l.weight.Tensor().Raw(), stateDict); err != nil {
		return err
	}
	return loadInto("bias", l.bias.Tensor().Raw(), stateDict)
}

// dense copies a row-major float32 matrix into a float64 mat.Dense.
func dense(data []float32, rows, cols int) *mat.Dense {
	buf := make([]float64, rows*cols)
	for i, v := range data[:rows*cols] {
		buf[i] = float64(v)
	}
	return mat.NewDense(rows, cols, buf)
}
