package dataset

import (
	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/tensor"
)

// TensorDataset holds N samples as one inputs tensor [N, ...] and one labels
// tensor [N].
type TensorDataset struct {
	inputs *tensor.RawTensor
	labels *tensor.RawTensor
}

// NewTensorDataset pairs inputs and labels along their first dimension.
func NewTensorDataset(inputs, labels *tensor.RawTensor) (*TensorDataset, error) {
	if len(inputs.Shape()) < 1 {
		return nil, errors.New("dataset: inputs need a sample dimension")
	}
	if len(labels.Shape()) != 1 {
		return nil, errors.Errorf("dataset: labels must be 1-D, got shape %v", labels.Shape())
	}
	if inputs.Shape()[0] != labels.Shape()[0] {
		return nil, errors.Errorf("dataset: %d inputs but %d labels", inputs.Shape()[0], labels.Shape()[0])
	}
	if inputs.Device() != labels.Device() {
		return nil, errors.Errorf("dataset: inputs on %s, labels on %s", inputs.Device(), labels.Device())
	}
	return &TensorDataset{inputs: inputs, labels: labels}, nil
}

// Len returns the number of samples.
func (d *TensorDataset) Len() int {
	return d.inputs.Shape()[0]
}

// SampleShape returns the shape of one input sample.
func (d *TensorDataset) SampleShape() tensor.Shape {
	return d.inputs.Shape()[1:].Clone()
}

// Inputs returns the inputs tensor.
func (d *TensorDataset) Inputs() *tensor.RawTensor {
	return d.inputs
}

// Labels returns the labels tensor.
func (d *TensorDataset) Labels() *tensor.RawTensor {
	return d.labels
}

// Gather copies the samples at indices into a new batch.
func (d *TensorDataset) Gather(indices []int) Batch {
	return Batch{
		Inputs: gatherRows(d.inputs, indices),
		Labels: gatherRows(d.labels, indices),
	}
}

// Split returns the first round(frac*N) samples and the rest. Both parts
// must be non-empty.
func (d *TensorDataset) Split(frac float64) (*TensorDataset, *TensorDataset, error) {
	if frac <= 0 || frac >= 1 {
		return nil, nil, errors.Errorf("dataset: split fraction %v outside (0, 1)", frac)
	}
	n := d.Len()
	k := int(frac*float64(n) + 0.5)
	if k == 0 || k == n {
		return nil, nil, errors.Errorf("dataset: split %v of %d samples leaves an empty part", frac, n)
	}

	head := make([]int, k)
	tail := make([]int, n-k)
	for i := range head {
		head[i] = i
	}
	for i := range tail {
		tail[i] = k + i
	}
	a, b := d.Gather(head), d.Gather(tail)
	return &TensorDataset{inputs: a.Inputs, labels: a.Labels}, &TensorDataset{inputs: b.Inputs, labels: b.Labels}, nil
}

// gatherRows copies rows of src (split on the first dimension) into a new tensor.
func gatherRows(src *tensor.RawTensor, indices []int) *tensor.RawTensor {
	shape := src.Shape().Clone()
	rowBytes := src.ByteSize() / shape[0]
	shape[0] = len(indices)

	buf := make([]byte, len(indices)*rowBytes)
	data := src.Data()
	for i, idx := range indices {
		copy(buf[i*rowBytes:(i+1)*rowBytes], data[idx*rowBytes:(idx+1)*rowBytes])
	}
	raw, err := tensor.RawFromBytes(buf, shape, src.DType(), src.Device())
	if err != nil {
		panic(err)
	}
	return raw
}
