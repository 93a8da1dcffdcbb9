package nn

import (
	"github.com/convkit/convkit/internal/tensor"
)

// BlockConfig describes a conv + batchnorm + ReLU block.
type BlockConfig struct {
	InChannels  int
	OutChannels int

	// KernelSize is [kernel_h, kernel_w]. Zero means 3x3.
	KernelSize [2]int

	// Stride of the convolution. Zero means unspecified: stride 1 with
	// "same" padding, so the output keeps the input's height and width.
	// A positive stride applies no padding at all.
	Stride int
}

// NewConvBNReLU builds Sequential(Conv2D without bias, BatchNorm2D, ReLU).
//
// The block's state dict uses the keys "0.weight", "1.weight", "1.bias",
// "1.running_mean", "1.running_var" and "1.num_batches_tracked".
func NewConvBNReLU[B tensor.Backend](cfg BlockConfig, backend B) *Sequential[B] {
	kh, kw := cfg.KernelSize[0], cfg.KernelSize[1]
	if kh == 0 && kw == 0 {
		kh, kw = 3, 3
	}

	stride := cfg.Stride
	var padding tensor.Padding2D
	if stride == 0 {
		stride = 1
		padding = tensor.SamePadding(kh, kw)
	}

	return NewSequential[B](
		NewConv2D(cfg.InChannels, cfg.OutChannels, kh, kw, stride, padding, false, backend),
		NewBatchNorm2D(cfg.OutChannels, backend),
		NewReLU[B](),
	)
}
