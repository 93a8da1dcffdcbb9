package dataset

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convkit/convkit/internal/tensor"
)

func sequentialDataset(t *testing.T, n int) *TensorDataset {
	t.Helper()
	inputs, err := tensor.NewRaw(tensor.Shape{n, 2}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	labels, err := tensor.NewRaw(tensor.Shape{n}, tensor.Int64, tensor.CPU)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		inputs.AsFloat32()[2*i] = float32(i)
		inputs.AsFloat32()[2*i+1] = float32(-i)
		labels.AsInt64()[i] = int64(i)
	}
	ds, err := NewTensorDataset(inputs, labels)
	require.NoError(t, err)
	return ds
}

func collectLabels(l *Loader) [][]int64 {
	var out [][]int64
	for b := range l.Batches() {
		out = append(out, append([]int64(nil), b.Labels.AsInt64()...))
	}
	return out
}

func TestNewTensorDataset_Mismatch(t *testing.T) {
	inputs, err := tensor.NewRaw(tensor.Shape{3, 2}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	labels, err := tensor.NewRaw(tensor.Shape{4}, tensor.Int64, tensor.CPU)
	require.NoError(t, err)

	_, err = NewTensorDataset(inputs, labels)
	assert.Error(t, err)
}

func TestLoader_LenIsCeil(t *testing.T) {
	ds := sequentialDataset(t, 10)

	for _, tc := range []struct {
		batch, want int
		dropLast    bool
	}{
		{3, 4, false},
		{5, 2, false},
		{10, 1, false},
		{32, 1, false},
		{3, 3, true},
	} {
		l, err := NewLoader(ds, LoaderConfig{BatchSize: tc.batch, DropLast: tc.dropLast})
		require.NoError(t, err)
		assert.Equal(t, tc.want, l.Len(), "batch %d dropLast %v", tc.batch, tc.dropLast)

		count := 0
		for range l.Batches() {
			count++
		}
		assert.Equal(t, tc.want, count)
	}
}

func TestLoader_SequentialOrderAndShapes(t *testing.T) {
	l, err := NewLoader(sequentialDataset(t, 5), LoaderConfig{BatchSize: 2})
	require.NoError(t, err)

	assert.Equal(t, [][]int64{{0, 1}, {2, 3}, {4}}, collectLabels(l))

	for b := range l.Batches() {
		assert.Equal(t, tensor.Shape{b.Size(), 2}, b.Inputs.Shape())
		first := b.Labels.AsInt64()[0]
		assert.Equal(t, float32(first), b.Inputs.AsFloat32()[0], "inputs stay paired with labels")
	}
}

func TestLoader_Restartable(t *testing.T) {
	l, err := NewLoader(sequentialDataset(t, 7), LoaderConfig{BatchSize: 3})
	require.NoError(t, err)

	assert.Equal(t, collectLabels(l), collectLabels(l))

	// Breaking early does not affect the next pass.
	for range l.Batches() {
		break
	}
	assert.Len(t, collectLabels(l), 3)
}

func TestLoader_ShuffleIsSeededPermutation(t *testing.T) {
	ds := sequentialDataset(t, 20)
	a, err := NewLoader(ds, LoaderConfig{BatchSize: 4, Shuffle: true, Seed: 7})
	require.NoError(t, err)
	b, err := NewLoader(ds, LoaderConfig{BatchSize: 4, Shuffle: true, Seed: 7})
	require.NoError(t, err)

	first := collectLabels(a)
	assert.Equal(t, first, collectLabels(b), "same seed, same order")

	seen := make(map[int64]bool)
	for _, batch := range first {
		for _, y := range batch {
			seen[y] = true
		}
	}
	assert.Len(t, seen, 20, "every sample exactly once")
	assert.NotEqual(t, first, collectLabels(a), "each pass reshuffles")
}

func TestSplit(t *testing.T) {
	ds := sequentialDataset(t, 10)

	train, val, err := ds.Split(0.8)
	require.NoError(t, err)
	assert.Equal(t, 8, train.Len())
	assert.Equal(t, 2, val.Len())
	assert.Equal(t, []int64{8, 9}, val.Labels().AsInt64())

	_, _, err = ds.Split(1)
	assert.Error(t, err)
	_, _, err = ds.Split(0.01)
	assert.Error(t, err)
}

func TestSynthetic(t *testing.T) {
	ds, err := Synthetic(SyntheticConfig{Samples: 30, Classes: 3, Height: 4, Width: 5, Seed: 1})
	require.NoError(t, err)

	assert.Equal(t, 30, ds.Len())
	assert.Equal(t, tensor.Shape{1, 4, 5}, ds.SampleShape())
	assert.Equal(t, tensor.Int32, ds.Labels().DType())
	assert.Equal(t, []int32{0, 1, 2, 0}, ds.Labels().AsInt32()[:4])

	again, err := Synthetic(SyntheticConfig{Samples: 30, Classes: 3, Height: 4, Width: 5, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, ds.Inputs().Data(), again.Inputs().Data(), "seeded generation is reproducible")

	_, err = Synthetic(SyntheticConfig{Classes: 1})
	assert.Error(t, err)
}

func idxImages(n, rows, cols int, pixels []byte) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, []uint32{idxImagesMagic, uint32(n), uint32(rows), uint32(cols)})
	buf.Write(pixels)
	return buf.Bytes()
}

func idxLabels(labels []byte) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, []uint32{idxLabelsMagic, uint32(len(labels))})
	buf.Write(labels)
	return buf.Bytes()
}

func TestReadIDXImages(t *testing.T) {
	data := idxImages(2, 2, 2, []byte{0, 255, 51, 102, 1, 2, 3, 4})

	raw, err := ReadIDXImages(bytes.NewReader(data), 0)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 1, 2, 2}, raw.Shape())
	assert.InDeltaSlice(t, []float32{0, 1, 0.2, 0.4}, raw.AsFloat32()[:4], 1e-6)

	limited, err := ReadIDXImages(bytes.NewReader(data), 1)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, limited.Shape())
}

func TestReadIDX_Errors(t *testing.T) {
	_, err := ReadIDXImages(bytes.NewReader(idxLabels([]byte{1})), 0)
	assert.Error(t, err, "label magic in an image file")

	_, err = ReadIDXImages(bytes.NewReader(idxImages(3, 2, 2, []byte{1, 2})), 0)
	assert.Error(t, err, "truncated pixels")

	_, err = ReadIDXLabels(bytes.NewReader(idxImages(1, 1, 1, []byte{1})), 0)
	assert.Error(t, err)
}

func TestLoadMNIST(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "t10k-images-idx3-ubyte"), idxImages(3, 1, 2, []byte{1, 2, 3, 4, 5, 6}), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "t10k-labels-idx1-ubyte"), idxLabels([]byte{7, 8, 9}), 0o600))

	ds, err := LoadMNIST(dir, false, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, []uint8{7, 8, 9}, ds.Labels().AsUint8())

	_, err = LoadMNIST(dir, true, 0)
	assert.Error(t, err, "train files are absent")
}
