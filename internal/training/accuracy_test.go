package training

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convkit/convkit/internal/dataset"
)

func TestCheckAccuracy_ExactRatio(t *testing.T) {
	model := newLookupModel(4)
	// Predictions equal the inputs; 5 of 7 labels agree.
	loader := &sliceLoader{batches: []dataset.Batch{
		lookupBatch(t, []uint8{0, 1, 2}, []int64{0, 1, 3}),
		lookupBatch(t, []uint8{3, 3, 2}, []int64{3, 3, 2}),
		lookupBatch(t, []uint8{1}, []int64{0}),
	}}

	acc, err := CheckAccuracy[B](model, loader)
	require.NoError(t, err)
	assert.Equal(t, 5.0/7.0, acc)
	assert.Equal(t, 3, model.forwards)
}

func TestCheckAccuracy_Bounds(t *testing.T) {
	all := &sliceLoader{batches: []dataset.Batch{lookupBatch(t, []uint8{2, 1}, []int64{2, 1})}}
	none := &sliceLoader{batches: []dataset.Batch{lookupBatch(t, []uint8{2, 1}, []int64{0, 0})}}

	acc, err := CheckAccuracy[B](newLookupModel(3), all)
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)

	acc, err = CheckAccuracy[B](newLookupModel(3), none)
	require.NoError(t, err)
	assert.Equal(t, 0.0, acc)
}

func TestCheckAccuracy_EvalModeAndNoGrad(t *testing.T) {
	model := newLookupModel(2)
	require.True(t, model.training)

	_, err := CheckAccuracy[B](model, nBatches(t, 2))
	require.NoError(t, err)

	assert.False(t, model.training, "evaluation mode is left on")
	assert.Equal(t, []bool{false, false}, model.gradState, "no gradient recording during inference")
	assert.True(t, model.backend.GradEnabled(), "recording restored afterwards")
}

func TestCheckAccuracy_EmptyLoader(t *testing.T) {
	_, err := CheckAccuracy[B](newLookupModel(2), &sliceLoader{})
	assert.Error(t, err)
}

func TestReportAccuracy_Prints(t *testing.T) {
	var out bytes.Buffer
	loader := &sliceLoader{batches: []dataset.Batch{lookupBatch(t, []uint8{0, 1, 1, 1}, []int64{0, 1, 0, 0})}}

	acc, err := ReportAccuracy[B](&out, newLookupModel(2), loader)
	require.NoError(t, err)
	assert.Equal(t, 0.5, acc)
	assert.Equal(t, 1, loader.passes, "one inference pass")
	assert.Regexp(t, `^Test accuracy is : 50\.00%\tInfer time: [0-9.e-]+\n$`, out.String())
}
