package nn

import (
	"math"
	"math/rand"

	"github.com/convkit/convkit/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return uniform(math.Sqrt(6.0/float64(fanIn+fanOut)), shape, backend)
}

// KaimingUniform draws from U(-1/sqrt(fan_in), 1/sqrt(fan_in)), PyTorch's
// default for convolution weights (kaiming_uniform with a=sqrt(5)).
func KaimingUniform[B tensor.Backend](fanIn int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return uniform(1/math.Sqrt(float64(fanIn)), shape, backend)
}

func uniform[B tensor.Backend](bound float64, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	t := tensor.Zeros[float32](shape, backend)
	data := t.Data()
	for i := range data {
		//nolint:gosec // Using math/rand for weight initialization (not security-critical)
		data[i] = float32((rand.Float64()*2.0 - 1.0) * bound)
	}
	return t
}
