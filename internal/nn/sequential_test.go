package nn

import (
	"fmt"
	"testing"

	"github.com/convkit/convkit/internal/backend/cpu"
	"github.com/convkit/convkit/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClassifier(backend Backend) *Sequential[Backend] {
	return NewSequential[Backend](
		NewConvBNReLU(BlockConfig{InChannels: 1, OutChannels: 2, Stride: 2}, backend),
		NewFlatten[Backend](),
		NewLinear(2*2*2, 3, backend),
	)
}

func TestSequential_ForwardShape(t *testing.T) {
	backend := cpu.New()
	model := newClassifier(backend)

	out := model.Forward(randomInput(tensor.Shape{4, 1, 5, 5}, backend, 1))
	assert.Equal(t, tensor.Shape{4, 3}, out.Shape())
}

func TestSequential_ParametersInOrder(t *testing.T) {
	backend := cpu.New()
	model := newClassifier(backend)

	names := make([]string, 0)
	for _, p := range model.Parameters() {
		names = append(names, p.Name())
	}
	// conv weight, bn weight+bias, linear weight+bias
	assert.Equal(t, []string{"weight", "weight", "bias", "weight", "bias"}, names)
}

func TestSequential_StateDictRoundTrip(t *testing.T) {
	backend := cpu.New()
	src := newClassifier(backend)
	src.Forward(randomInput(tensor.Shape{2, 1, 5, 5}, backend, 2))

	dst := newClassifier(backend)
	require.NoError(t, dst.LoadStateDict(src.StateDict()))

	srcState := src.StateDict()
	for name, raw := range dst.StateDict() {
		assert.Equal(t, srcState[name].Data(), raw.Data(), name)
	}

	input := randomInput(tensor.Shape{3, 1, 5, 5}, backend, 3)
	src.Eval()
	dst.Eval()
	assert.Equal(t, src.Forward(input).Data(), dst.Forward(input).Data())
}

func TestSequential_LoadStateDictMissingKey(t *testing.T) {
	backend := cpu.New()
	model := newClassifier(backend)

	state := model.StateDict()
	delete(state, "2.bias")
	err := model.LoadStateDict(state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load module 2")
	assert.Contains(t, fmt.Sprintf("%+v", err), "module.go:")
}

func TestSequential_ModePropagation(t *testing.T) {
	backend := cpu.New()
	model := newClassifier(backend)
	head := model.Module(2).(*Linear[Backend])

	model.Eval()
	assert.False(t, model.Training())
	assert.False(t, head.Training())

	model.Train()
	assert.True(t, head.Training())
}
