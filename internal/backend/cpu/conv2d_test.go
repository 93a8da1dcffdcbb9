package cpu

import (
	"math/rand"
	"testing"

	"github.com/convkit/convkit/internal/parallel"
	"github.com/convkit/convkit/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConv2D_BasicForward tests a 2x2 diagonal kernel over a 3x3 image.
func TestConv2D_BasicForward(t *testing.T) {
	backend := New()

	// 1 2 3
	// 4 5 6
	// 7 8 9
	input, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, tensor.Shape{1, 1, 3, 3}, backend)
	require.NoError(t, err)
	kernel, err := tensor.FromSlice([]float32{1, 0, 0, 1}, tensor.Shape{1, 1, 2, 2}, backend)
	require.NoError(t, err)

	output := backend.Conv2D(input.Raw(), kernel.Raw(), 1, tensor.Padding2D{})

	require.Equal(t, tensor.Shape{1, 1, 2, 2}, output.Shape())
	assert.Equal(t, []float32{6, 8, 12, 14}, output.AsFloat32())
}

func TestConv2D_Stride(t *testing.T) {
	backend := New()
	input := tensor.Full[float32](tensor.Shape{1, 1, 5, 5}, 1, backend)
	kernel := tensor.Full[float32](tensor.Shape{2, 1, 3, 3}, 1, backend)

	output := backend.Conv2D(input.Raw(), kernel.Raw(), 2, tensor.Padding2D{})

	require.Equal(t, tensor.Shape{1, 2, 2, 2}, output.Shape())
	for _, v := range output.AsFloat32() {
		assert.Equal(t, float32(9), v)
	}
}

// TestConv2D_MatchesReference compares against the naive mock backend,
// including asymmetric padding.
func TestConv2D_MatchesReference(t *testing.T) {
	backend := New()
	ref := tensor.NewMockBackend()
	rng := rand.New(rand.NewSource(7))

	input := tensor.Zeros[float32](tensor.Shape{2, 3, 6, 5}, backend)
	for i := range input.Data() {
		input.Data()[i] = rng.Float32()*2 - 1
	}
	kernel := tensor.Zeros[float32](tensor.Shape{4, 3, 2, 4}, backend)
	for i := range kernel.Data() {
		kernel.Data()[i] = rng.Float32()*2 - 1
	}

	for _, tc := range []struct {
		stride  int
		padding tensor.Padding2D
	}{
		{1, tensor.SamePadding(2, 4)},
		{2, tensor.Padding2D{}},
		{1, tensor.UniformPadding(1)},
	} {
		got := backend.Conv2D(input.Raw(), kernel.Raw(), tc.stride, tc.padding)
		want := ref.Conv2D(input.Raw(), kernel.Raw(), tc.stride, tc.padding)
		require.Equal(t, want.Shape(), got.Shape())
		assert.InDeltaSlice(t, toF64(want.AsFloat32()), toF64(got.AsFloat32()), 1e-5)
	}
}

func TestConv2D_ParallelMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	par := New()
	par.SetParallel(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1})
	seq := New()
	seq.SetParallel(parallel.Sequential())

	input := tensor.Zeros[float32](tensor.Shape{5, 2, 7, 7}, par)
	for i := range input.Data() {
		input.Data()[i] = rng.Float32()
	}
	kernel := tensor.Zeros[float32](tensor.Shape{6, 2, 3, 3}, par)
	for i := range kernel.Data() {
		kernel.Data()[i] = rng.Float32() - 0.5
	}

	got := par.Conv2D(input.Raw(), kernel.Raw(), 1, tensor.SamePadding(3, 3))
	want := seq.Conv2D(input.Raw(), kernel.Raw(), 1, tensor.SamePadding(3, 3))
	assert.Equal(t, want.AsFloat32(), got.AsFloat32())
}

func TestConv2D_PanicsOnChannelMismatch(t *testing.T) {
	backend := New()
	input := tensor.Zeros[float32](tensor.Shape{1, 2, 3, 3}, backend)
	kernel := tensor.Zeros[float32](tensor.Shape{1, 3, 1, 1}, backend)

	assert.Panics(t, func() { backend.Conv2D(input.Raw(), kernel.Raw(), 1, tensor.Padding2D{}) })
}

func TestReLU(t *testing.T) {
	backend := New()
	x, err := tensor.FromSlice([]float32{-1, 0, 2.5}, tensor.Shape{3}, backend)
	require.NoError(t, err)

	out := backend.ReLU(x.Raw())
	assert.Equal(t, []float32{0, 0, 2.5}, out.AsFloat32())
	assert.Equal(t, float32(-1), x.Data()[0], "input must not be modified")
}

func TestGradSwitch(t *testing.T) {
	backend := New()
	assert.True(t, backend.GradEnabled())
	backend.SetGradEnabled(false)
	assert.False(t, backend.GradEnabled())
}

func toF64(xs []float32) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = float64(v)
	}
	return out
}
