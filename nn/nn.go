// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the neural network layers of convkit.
//
// Layers:
//   - Conv2D, BatchNorm2D, ReLU, Flatten, Linear
//   - Sequential: ordered container with dotted state-dict keys
//   - NewConvBNReLU: Conv2D (no bias) + BatchNorm2D + ReLU
//
// Example:
//
//	backend := cpu.New()
//	head := nn.NewLinear(8*13*13, 10, backend)
//	model := nn.NewSequential[*cpu.Backend](
//	    nn.NewConvBNReLU(nn.BlockConfig{InChannels: 1, OutChannels: 8, Stride: 2}, backend),
//	    nn.NewFlatten[*cpu.Backend](),
//	    head,
//	)
//	lossFn := nn.CrossEntropyLoss(head)
package nn

import (
	"github.com/convkit/convkit/internal/nn"
	"github.com/convkit/convkit/tensor"
)

// Module is the interface every layer implements.
type Module[B tensor.Backend] = nn.Module[B]

// ModeSetter is implemented by modules with training/evaluation behavior.
type ModeSetter = nn.ModeSetter

// Parameter is a trainable tensor with an optional gradient.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// Layer types.
type (
	Conv2D[B tensor.Backend]      = nn.Conv2D[B]
	BatchNorm2D[B tensor.Backend] = nn.BatchNorm2D[B]
	ReLU[B tensor.Backend]        = nn.ReLU[B]
	Flatten[B tensor.Backend]     = nn.Flatten[B]
	Linear[B tensor.Backend]      = nn.Linear[B]
	Sequential[B tensor.Backend]  = nn.Sequential[B]
)

// BlockConfig describes a conv + batchnorm + ReLU block.
type BlockConfig = nn.BlockConfig

// BatchNormConfig holds BatchNorm2D hyperparameters.
type BatchNormConfig = nn.BatchNormConfig

// Loss is a scalar loss that can back-propagate into its layer.
type Loss = nn.Loss

// LossFunc computes a Loss from scores [N, C] and labels [N].
type LossFunc[B tensor.Backend] = nn.LossFunc[B]

// NewConvBNReLU builds Sequential(Conv2D, BatchNorm2D, ReLU).
// Stride 0 means stride 1 with "same" padding; a positive stride pads nothing.
func NewConvBNReLU[B tensor.Backend](cfg BlockConfig, backend B) *Sequential[B] {
	return nn.NewConvBNReLU(cfg, backend)
}

// NewConv2D creates a 2D convolution layer.
func NewConv2D[B tensor.Backend](inChannels, outChannels, kernelH, kernelW, stride int, padding tensor.Padding2D, useBias bool, backend B) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelH, kernelW, stride, padding, useBias, backend)
}

// NewBatchNorm2D creates a BatchNorm2D layer with PyTorch defaults.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	return nn.NewBatchNorm2D(numFeatures, backend)
}

// NewReLU creates a ReLU activation.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// NewFlatten creates a layer reshaping [N, ...] to [N, prod(...)].
func NewFlatten[B tensor.Backend]() *Flatten[B] {
	return nn.NewFlatten[B]()
}

// NewLinear creates a fully connected layer.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// NewSequential chains modules in order.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential[B](modules...)
}

// CrossEntropyLoss returns mean softmax cross-entropy that back-propagates
// into head.
func CrossEntropyLoss[B tensor.Backend](head *Linear[B]) LossFunc[B] {
	return nn.CrossEntropyLoss(head)
}

// NoGrad turns gradient recording off on backend and returns the function
// restoring the previous state.
//
//	defer nn.NoGrad(backend)()
func NoGrad(backend tensor.Backend) func() {
	return nn.NoGrad(backend)
}
