package nn

import (
	"fmt"
	"math"
	"testing"

	"github.com/convkit/convkit/internal/backend/cpu"
	"github.com/convkit/convkit/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
)

func TestCrossEntropy_Value(t *testing.T) {
	backend := cpu.New()
	head := NewLinear(2, 3, backend)
	lossFn := CrossEntropyLoss(head)

	scores, err := tensor.FromSlice([]float32{0, 0, 0, 1, 2, 3}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)
	labels, err := tensor.FromSlice([]int64{0, 2}, tensor.Shape{2}, backend)
	require.NoError(t, err)

	loss, err := lossFn(scores, labels)
	require.NoError(t, err)

	lse := math.Log(math.Exp(1) + math.Exp(2) + math.Exp(3))
	want := (math.Log(3) + (lse - 3)) / 2
	assert.InDelta(t, want, loss.Item(), 1e-6)
}

func TestCrossEntropy_LabelOutOfRange(t *testing.T) {
	backend := cpu.New()
	lossFn := CrossEntropyLoss(NewLinear(2, 2, backend))

	scores := tensor.Zeros[float32](tensor.Shape{1, 2}, backend)
	labels, err := tensor.FromSlice([]int64{2}, tensor.Shape{1}, backend)
	require.NoError(t, err)

	_, err = lossFn(scores, labels)
	require.Error(t, err)
	assert.Contains(t, fmt.Sprintf("%+v", err), "loss.go:", "the error carries a stack trace")
}

// TestCrossEntropy_GradientMatchesFiniteDifference checks the closed-form
// head gradient against central differences of the loss.
func TestCrossEntropy_GradientMatchesFiniteDifference(t *testing.T) {
	backend := cpu.New()
	head := NewLinear(4, 3, backend)
	lossFn := CrossEntropyLoss(head)

	input := randomInput(tensor.Shape{5, 4}, backend, 9)
	labels, err := tensor.FromSlice([]int64{0, 1, 2, 1, 0}, tensor.Shape{5}, backend)
	require.NoError(t, err)

	loss, err := lossFn(head.Forward(input), labels)
	require.NoError(t, err)
	require.NoError(t, loss.Backward())

	params := head.Parameters()
	var x, analytic []float64
	for _, p := range params {
		for i, v := range p.Tensor().Data() {
			x = append(x, float64(v))
			analytic = append(analytic, float64(p.Grad().Data()[i]))
		}
	}

	// lossAt writes x back into the parameters and evaluates without recording.
	lossAt := func(x []float64) float64 {
		off := 0
		for _, p := range params {
			data := p.Tensor().Data()
			for i := range data {
				data[i] = float32(x[off+i])
			}
			off += len(data)
		}
		defer NoGrad(backend)()
		l, err := lossFn(head.Forward(input), labels)
		require.NoError(t, err)
		return l.Item()
	}

	numeric := fd.Gradient(nil, lossAt, x, &fd.Settings{Formula: fd.Central, Step: 1e-2})
	assert.InDeltaSlice(t, numeric, analytic, 1e-3)
}

func TestLinear_BackwardRequiresRecordedForward(t *testing.T) {
	backend := cpu.New()
	head := NewLinear(2, 2, backend)

	head.SetTraining(false)
	head.Forward(tensor.Zeros[float32](tensor.Shape{1, 2}, backend))
	err := head.Backward([]float32{1, 1})
	require.Error(t, err)
	assert.Contains(t, fmt.Sprintf("%+v", err), "linear.go:")

	head.SetTraining(true)
	restore := NoGrad(backend)
	head.Forward(tensor.Zeros[float32](tensor.Shape{1, 2}, backend))
	restore()
	assert.Error(t, head.Backward([]float32{1, 1}))
	assert.True(t, backend.GradEnabled(), "NoGrad restore must re-enable recording")
}

func TestParameter_AccumulateAndZeroGrad(t *testing.T) {
	backend := cpu.New()
	p := NewParameter("w", tensor.Zeros[float32](tensor.Shape{2}, backend))

	p.AccumulateGrad([]float32{1, 2})
	p.AccumulateGrad([]float32{1, 2})
	assert.Equal(t, []float32{2, 4}, p.Grad().Data())

	p.ZeroGrad()
	assert.Nil(t, p.Grad())
}
