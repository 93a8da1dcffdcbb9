package nn

import (
	"fmt"
	"math"

	"github.com/convkit/convkit/internal/tensor"
)

// BatchNorm2D normalizes each channel of a [N, C, H, W] input.
//
// Training mode normalizes with the batch statistics (biased variance) and
// folds them into the running estimates:
//
//	running_mean = (1 - momentum) * running_mean + momentum * mean
//	running_var  = (1 - momentum) * running_var  + momentum * unbiased_var
//
// Evaluation mode normalizes with the running estimates. Either way the
// result is scaled by weight (gamma) and shifted by bias (beta).
type BatchNorm2D[B tensor.Backend] struct {
	numFeatures int
	eps         float32
	momentum    float32
	training    bool

	weight *Parameter[B] // gamma, initialized to 1
	bias   *Parameter[B] // beta, initialized to 0

	runningMean       *tensor.Tensor[float32, B]
	runningVar        *tensor.Tensor[float32, B]
	numBatchesTracked *tensor.Tensor[int64, B]

	backend B
}

// BatchNormConfig holds the BatchNorm2D hyperparameters.
type BatchNormConfig struct {
	Eps      float32 // Added to the variance (default: 1e-5)
	Momentum float32 // Running statistics momentum (default: 0.1)
}

// NewBatchNorm2D creates a BatchNorm2D over numFeatures channels with the
// default eps and momentum. The module starts in training mode.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	return NewBatchNorm2DWithConfig(numFeatures, BatchNormConfig{}, backend)
}

// NewBatchNorm2DWithConfig creates a BatchNorm2D with explicit hyperparameters.
// Zero fields take their defaults.
func NewBatchNorm2DWithConfig[B tensor.Backend](numFeatures int, cfg BatchNormConfig, backend B) *BatchNorm2D[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid num_features %d", numFeatures))
	}
	if cfg.Eps == 0 {
		cfg.Eps = 1e-5
	}
	if cfg.Momentum == 0 {
		cfg.Momentum = 0.1
	}

	shape := tensor.Shape{numFeatures}
	return &BatchNorm2D[B]{
		numFeatures:       numFeatures,
		eps:               cfg.Eps,
		momentum:          cfg.Momentum,
		training:          true,
		weight:            NewParameter("weight", tensor.Full[float32](shape, 1, backend)),
		bias:              NewParameter("bias", tensor.Zeros[float32](shape, backend)),
		runningMean:       tensor.Zeros[float32](shape, backend),
		runningVar:        tensor.Full[float32](shape, 1, backend),
		numBatchesTracked: tensor.Zeros[int64](tensor.Shape{1}, backend),
		backend:           backend,
	}
}

// Forward normalizes input [N, C, H, W] per channel.
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("batchnorm2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != bn.numFeatures {
		panic(fmt.Sprintf("batchnorm2d: input channels %d != expected %d", shape[1], bn.numFeatures))
	}

	n, c, spatial := shape[0], shape[1], shape[2]*shape[3]
	count := n * spatial
	in := input.Data()
	out := tensor.Zeros[float32](shape, bn.backend)
	dst := out.Data()

	gamma := bn.weight.Tensor().Data()
	beta := bn.bias.Tensor().Data()
	rMean := bn.runningMean.Data()
	rVar := bn.runningVar.Data()

	for ch := 0; ch < c; ch++ {
		var mean, variance float64
		if bn.training {
			for b := 0; b < n; b++ {
				base := (b*c + ch) * spatial
				for i := 0; i < spatial; i++ {
					mean += float64(in[base+i])
				}
			}
			mean /= float64(count)
			for b := 0; b < n; b++ {
				base := (b*c + ch) * spatial
				for i := 0; i < spatial; i++ {
					d := float64(in[base+i]) - mean
					variance += d * d
				}
			}
			unbiased := variance
			if count > 1 {
				unbiased /= float64(count - 1)
			}
			variance /= float64(count)

			m := float64(bn.momentum)
			rMean[ch] = float32((1-m)*float64(rMean[ch]) + m*mean)
			rVar[ch] = float32((1-m)*float64(rVar[ch]) + m*unbiased)
		} else {
			mean = float64(rMean[ch])
			variance = float64(rVar[ch])
		}

		scale := float64(gamma[ch]) / math.Sqrt(variance+float64(bn.eps))
		shift := float64(beta[ch])
		for b := 0; b < n; b++ {
			base := (b*c + ch) * spatial
			for i := 0; i < spatial; i++ {
				dst[base+i] = float32((float64(in[base+i])-mean)*scale + shift)
			}
		}
	}

	if bn.training {
		bn.numBatchesTracked.Data()[0]++
	}

	return out
}

// SetTraining switches between batch and running statistics.
func (bn *BatchNorm2D[B]) SetTraining(training bool) {
	bn.training = training
}

// Training reports whether the module is in training mode.
func (bn *BatchNorm2D[B]) Training() bool {
	return bn.training
}

// Parameters returns [weight, bias].
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.weight, bn.bias}
}

// RunningMean returns the running mean buffer.
func (bn *BatchNorm2D[B]) RunningMean() *tensor.Tensor[float32, B] {
	return bn.runningMean
}

// RunningVar returns the running variance buffer.
func (bn *BatchNorm2D[B]) RunningVar() *tensor.Tensor[float32, B] {
	return bn.runningVar
}

// StateDict returns the affine parameters and the running buffers.
func (bn *BatchNorm2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight":              bn.weight.Tensor().Raw(),
		"bias":                bn.bias.Tensor().Raw(),
		"running_mean":        bn.runningMean.Raw(),
		"running_var":         bn.runningVar.Raw(),
		"num_batches_tracked": bn.numBatchesTracked.Raw(),
	}
}

// LoadStateDict loads every entry StateDict produces.
func (bn *BatchNorm2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	own := bn.StateDict()
	for _, name := range []string{"weight", "bias", "running_mean", "running_var", "num_batches_tracked"} {
		if err := loadInto(name, own[name], stateDict); err != nil {
			return err
		}
	}
	return nil
}
