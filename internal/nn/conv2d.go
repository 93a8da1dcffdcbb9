package nn

import (
	"fmt"

	"github.com/convkit/convkit/internal/tensor"
)

// Conv2D is a 2D convolutional layer.
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels, kernel_h, kernel_w]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + pad_top + pad_bottom - kernel_h) / stride + 1
//	out_w = (width + pad_left + pad_right - kernel_w) / stride + 1
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  [2]int
	stride      int
	padding     tensor.Padding2D

	weight *Parameter[B] // [out_channels, in_channels, kernel_h, kernel_w]
	bias   *Parameter[B] // [out_channels] or nil

	backend B
}

// NewConv2D creates a new 2D convolutional layer.
//
// Initialization:
//   - Weights: Kaiming uniform
//   - Bias: Zeros
//
// Panics on non-positive channels, kernel size or stride, or negative padding.
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelH, kernelW int,
	stride int,
	padding tensor.Padding2D,
	useBias bool,
	backend B,
) *Conv2D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelH <= 0 || kernelW <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size h=%d, w=%d", kernelH, kernelW))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}
	if padding.Top < 0 || padding.Bottom < 0 || padding.Left < 0 || padding.Right < 0 {
		panic(fmt.Sprintf("conv2d: invalid padding %+v", padding))
	}

	fanIn := inChannels * kernelH * kernelW
	weight := KaimingUniform(fanIn, tensor.Shape{outChannels, inChannels, kernelH, kernelW}, backend)

	var biasParam *Parameter[B]
	if useBias {
		biasParam = NewParameter("bias", tensor.Zeros[float32](tensor.Shape{outChannels}, backend))
	}

	return &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  [2]int{kernelH, kernelW},
		stride:      stride,
		padding:     padding,
		weight:      NewParameter("weight", weight),
		bias:        biasParam,
		backend:     backend,
	}
}

// Forward performs the forward pass.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	out := tensor.New[float32, B](c.backend.Conv2D(input.Raw(), c.weight.Tensor().Raw(), c.stride, c.padding), c.backend)

	if c.bias != nil {
		shape := out.Shape()
		spatial := shape[2] * shape[3]
		data := out.Data()
		bias := c.bias.Tensor().Data()
		for n := 0; n < shape[0]; n++ {
			for ch := 0; ch < c.outChannels; ch++ {
				base := (n*c.outChannels + ch) * spatial
				for i := 0; i < spatial; i++ {
					data[base+i] += bias[ch]
				}
			}
		}
	}

	return out
}

// Parameters returns [weight] or [weight, bias].
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.bias != nil {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// Weight returns the weight parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// Bias returns the bias parameter, or nil for a bias-free convolution.
func (c *Conv2D[B]) Bias() *Parameter[B] {
	return c.bias
}

// Stride returns the convolution stride.
func (c *Conv2D[B]) Stride() int {
	return c.stride
}

// Padding returns the per-side zero padding.
func (c *Conv2D[B]) Padding() tensor.Padding2D {
	return c.padding
}

// KernelSize returns [kernel_h, kernel_w].
func (c *Conv2D[B]) KernelSize() [2]int {
	return c.kernelSize
}

// StateDict returns "weight" and, if present, "bias".
func (c *Conv2D[B]) StateDict() map[string]*tensor.RawTensor {
	sd := map[string]*tensor.RawTensor{"weight": c.weight.Tensor().Raw()}
	if c.bias != nil {
		sd["bias"] = c.bias.Tensor().Raw()
	}
	return sd
}

// LoadStateDict loads "weight" and, if present, "bias".
func (c *Conv2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadInto("weight", c.weight.Tensor().Raw(), stateDict); err != nil {
		return err
	}
	if c.bias != nil {
		return loadInto("bias", c.bias.Tensor().Raw(), stateDict)
	}
	return nil
}
