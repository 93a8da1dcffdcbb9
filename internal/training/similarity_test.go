package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convkit/convkit/internal/backend/cpu"
	"github.com/convkit/convkit/internal/tensor"
)

func TestSimilarity_SoftmaxOverChannels(t *testing.T) {
	backend := cpu.New()
	img, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 2, 2}, backend)
	require.NoError(t, err)
	acts, err := tensor.FromSlice([]float32{
		1, 2, 3, 4, // identical to img
		4, 3, 2, 1,
		-1, -2, -3, -4,
		0, 0, 0, 1,
	}, tensor.Shape{4, 2, 2}, backend)
	require.NoError(t, err)

	out, err := Similarity(acts, img)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{4}, out.Shape())

	var sum float64
	best := 0
	for c, p := range out.Data() {
		assert.GreaterOrEqual(t, p, float32(0))
		sum += float64(p)
		if p > out.Data()[best] {
			best = c
		}
	}
	assert.InDelta(t, 1, sum, 1e-6)
	assert.Equal(t, 0, best, "identical map scores highest")
}

func TestSimilarity_ScaleInvariant(t *testing.T) {
	backend := cpu.New()
	img, err := tensor.FromSlice([]float32{1, 0, 1, 0}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	acts, err := tensor.FromSlice([]float32{
		1, 0, 1, 0,
		5, 0, 5, 0,
		1, 1, 1, 1,
	}, tensor.Shape{3, 2, 2}, backend)
	require.NoError(t, err)

	out, err := Similarity(acts, img)
	require.NoError(t, err)
	assert.InDelta(t, out.Data()[0], out.Data()[1], 1e-7, "cosine ignores magnitude")
	assert.Greater(t, out.Data()[0], out.Data()[2])
}

func TestSimilarity_ZeroNorm(t *testing.T) {
	backend := cpu.New()
	acts, err := tensor.FromSlice([]float32{1, 1, 0, 0}, tensor.Shape{2, 1, 2}, backend)
	require.NoError(t, err)

	img, err := tensor.FromSlice([]float32{1, 1}, tensor.Shape{1, 1, 2}, backend)
	require.NoError(t, err)
	_, err = Similarity(acts, img)
	assert.ErrorIs(t, err, ErrZeroNorm, "second activation map is zero")

	zeroImg := tensor.Zeros[float32](tensor.Shape{1, 2}, backend)
	_, err = Similarity(acts, zeroImg)
	assert.ErrorIs(t, err, ErrZeroNorm)
}

func TestSimilarity_ShapeErrors(t *testing.T) {
	backend := cpu.New()
	img := tensor.Full[float32](tensor.Shape{2, 2}, 1, backend)

	_, err := Similarity(tensor.Full[float32](tensor.Shape{3, 4}, 1, backend), img)
	assert.Error(t, err, "activations need 3 dims")

	_, err = Similarity(tensor.Full[float32](tensor.Shape{3, 3, 3}, 1, backend), img)
	assert.Error(t, err, "map and image shapes differ")
}
