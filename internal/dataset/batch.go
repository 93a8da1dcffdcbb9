// Package dataset provides in-memory datasets, a batching loader and the
// readers that fill them (MNIST IDX files and a synthetic generator).
package dataset

import (
	"github.com/convkit/convkit/internal/tensor"
)

// Batch is one (inputs, labels) pair from a loader. Inputs are [B, ...] and
// labels [B]; either may have any dtype, consumers cast as they need.
type Batch struct {
	Inputs *tensor.RawTensor
	Labels *tensor.RawTensor
}

// Size returns the number of samples in the batch.
func (b Batch) Size() int {
	return b.Inputs.Shape()[0]
}
