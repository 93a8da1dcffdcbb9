package training

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/convkit/convkit/internal/tensor"
)

// ErrZeroNorm is returned by Similarity when an activation map or the
// reference image is all zeros, where cosine similarity is undefined.
var ErrZeroNorm = errors.New("cosine similarity undefined for a zero-norm input")

// Similarity scores how closely each activation map in acts [C, ...] matches
// img, as a softmax over per-channel cosine similarities.
//
// acts must have at least 3 dimensions. An img with 3 or more dimensions has
// its size-1 dimensions squeezed first, so a [1, H, W] image matches [C, H, W]
// activations. The result is a [C] tensor of non-negative values summing
// to 1.
//
// Cosine similarity divides by both norms; a zero activation map or a zero
// image yields ErrZeroNorm rather than a NaN score.
func Similarity[B tensor.Backend](acts, img *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	shape := acts.Shape()
	if len(shape) < 3 {
		return nil, errors.Errorf("similarity: activations need at least 3 dims, got shape %v", shape)
	}
	if len(img.Shape()) >= 3 {
		img = img.Squeeze()
	}

	mapShape := shape[1:]
	if !mapShape.Squeeze().Equal(img.Shape().Squeeze()) {
		return nil, errors.Errorf("similarity: activation map shape %v does not match image shape %v", mapShape, img.Shape())
	}

	ref := toFloat64(img.Data())
	refNorm := floats.Dot(ref, ref)
	if refNorm == 0 {
		return nil, errors.Wrap(ErrZeroNorm, "similarity: reference image")
	}

	chans := shape[0]
	size := mapShape.NumElements()
	data := acts.Data()
	sims := make([]float64, chans)
	for c := range sims {
		act := toFloat64(data[c*size : (c+1)*size])
		actNorm := floats.Dot(act, act)
		if actNorm == 0 {
			return nil, errors.Wrapf(ErrZeroNorm, "similarity: activation map %d", c)
		}
		sims[c] = floats.Dot(act, ref) / math.Sqrt(actNorm*refNorm)
	}

	lse := floats.LogSumExp(sims)
	out := tensor.Zeros[float32](tensor.Shape{chans}, acts.Backend())
	probs := out.Data()
	for c, s := range sims {
		probs[c] = float32(math.Exp(s - lse))
	}
	return out, nil
}

func toFloat64(xs []float32) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}
