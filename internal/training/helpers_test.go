package training

import (
	"iter"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/convkit/convkit/internal/backend/cpu"
	"github.com/convkit/convkit/internal/dataset"
	"github.com/convkit/convkit/internal/nn"
	"github.com/convkit/convkit/internal/tensor"
)

type B = *cpu.CPUBackend

// lookupModel predicts class int(x) for a [N, 1] input and records how it
// was called.
type lookupModel struct {
	classes  int
	param    *nn.Parameter[B]
	backend  B
	training bool

	forwards  int
	gradState []bool
	modes     []bool
}

func newLookupModel(classes int) *lookupModel {
	backend := cpu.New()
	return &lookupModel{
		classes:  classes,
		param:    nn.NewParameter("w", tensor.Zeros[float32](tensor.Shape{1}, backend)),
		backend:  backend,
		training: true,
	}
}

func (m *lookupModel) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	m.forwards++
	m.gradState = append(m.gradState, m.backend.GradEnabled())
	m.modes = append(m.modes, m.training)

	n := input.Shape()[0]
	out := tensor.Zeros[float32](tensor.Shape{n, m.classes}, m.backend)
	for i, x := range input.Data() {
		out.Data()[i*m.classes+int(x)] = 1
	}
	return out
}

func (m *lookupModel) Parameters() []*nn.Parameter[B] { return []*nn.Parameter[B]{m.param} }
func (m *lookupModel) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{"w": m.param.Tensor().Raw()}
}
func (m *lookupModel) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }
func (m *lookupModel) Train()                                           { m.training = true }
func (m *lookupModel) Eval()                                            { m.training = false }

// sliceLoader replays fixed batches.
type sliceLoader struct {
	batches []dataset.Batch
	passes  int
}

func (l *sliceLoader) Len() int {
	return len(l.batches)
}

func (l *sliceLoader) Batches() iter.Seq[dataset.Batch] {
	return func(yield func(dataset.Batch) bool) {
		l.passes++
		for _, b := range l.batches {
			if !yield(b) {
				return
			}
		}
	}
}

// lookupBatch builds a batch with Uint8 inputs [N, 1] and Int64 labels [N].
func lookupBatch(t *testing.T, inputs []uint8, labels []int64) dataset.Batch {
	t.Helper()
	require.Equal(t, len(inputs), len(labels))

	x, err := tensor.NewRaw(tensor.Shape{len(inputs), 1}, tensor.Uint8, tensor.CPU)
	require.NoError(t, err)
	copy(x.AsUint8(), inputs)
	y, err := tensor.NewRaw(tensor.Shape{len(labels)}, tensor.Int64, tensor.CPU)
	require.NoError(t, err)
	copy(y.AsInt64(), labels)
	return dataset.Batch{Inputs: x, Labels: y}
}

// nBatches returns a loader of n single-sample batches the lookup model
// always gets right.
func nBatches(t *testing.T, n int) *sliceLoader {
	l := &sliceLoader{}
	for i := 0; i < n; i++ {
		l.batches = append(l.batches, lookupBatch(t, []uint8{1}, []int64{1}))
	}
	return l
}

// fakeLoss is a constant loss that counts Backward calls.
type fakeLoss struct {
	value     float64
	backwards *int
}

func (l fakeLoss) Item() float64 { return l.value }
func (l fakeLoss) Backward() error {
	*l.backwards++
	return nil
}

type fakeOptimizer struct {
	lr     float64
	events []string
}

func (o *fakeOptimizer) ZeroGrad()   { o.events = append(o.events, "zero") }
func (o *fakeOptimizer) Step() error { o.events = append(o.events, "step"); return nil }
func (o *fakeOptimizer) LR() float64 { return o.lr }
func (o *fakeOptimizer) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

type fakeScheduler struct {
	progress []float64
}

func (s *fakeScheduler) Step(progress float64) {
	s.progress = append(s.progress, progress)
}
