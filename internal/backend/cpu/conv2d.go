package cpu

import (
	"fmt"

	"github.com/convkit/convkit/internal/parallel"
	"github.com/convkit/convkit/internal/tensor"
)

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape: [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Padding may differ per side, which "same" padding needs for even kernels.
//
// Algorithm: Im2col
//  1. Transform input patches into rows of a column buffer
//  2. Treat the kernel as a [C_out, C_in*K_h*K_w] matrix
//  3. Multiply, writing straight into [N, C_out, H_out, W_out] order,
//     one output plane per parallel work item
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride int, padding tensor.Padding2D) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", len(kernelShape)))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}

	N, CIn, H, W := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	COut, KH, KW := kernelShape[0], kernelShape[2], kernelShape[3]

	if CIn != kernelShape[1] {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", CIn, kernelShape[1]))
	}

	HOut, WOut := tensor.ConvOutputSize(H, W, KH, KW, stride, padding)
	if HOut <= 0 || WOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", HOut, WOut))
	}

	output, err := tensor.NewRaw(tensor.Shape{N, COut, HOut, WOut}, tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("conv2d: failed to create output tensor: %v", err))
	}

	g := convGeom{N: N, C: CIn, H: H, W: W, KH: KH, KW: KW, HOut: HOut, WOut: WOut, stride: stride, pad: padding}

	colWidth := CIn * KH * KW
	spatial := HOut * WOut
	colBuf := make([]float32, N*spatial*colWidth)
	im2col(colBuf, input.AsFloat32(), g)

	kernelData := kernel.AsFloat32()
	outputData := output.AsFloat32()
	// Each (n, c) pair owns one output plane.
	parallel.ForBatch(N, COut, func(n, c int) {
		krow := kernelData[c*colWidth : (c+1)*colWidth]
		dst := outputData[(n*COut+c)*spatial : (n*COut+c+1)*spatial]
		for p := 0; p < spatial; p++ {
			col := colBuf[(n*spatial+p)*colWidth : (n*spatial+p+1)*colWidth]
			var sum float32
			for k, kv := range krow {
				sum += kv * col[k]
			}
			dst[p] = sum
		}
	}, cpu.parallel)

	return output
}

type convGeom struct {
	N, C, H, W int
	KH, KW     int
	HOut, WOut int
	stride     int
	pad        tensor.Padding2D
}

// im2col transforms [N, C, H, W] into rows of [C * K_h * K_w], one row per
// output position. Positions that fall into the padding read as zero.
func im2col(colBuf, inputData []float32, g convGeom) {
	bufIdx := 0
	for n := 0; n < g.N; n++ {
		for outH := 0; outH < g.HOut; outH++ {
			for outW := 0; outW < g.WOut; outW++ {
				hStart := outH*g.stride - g.pad.Top
				wStart := outW*g.stride - g.pad.Left

				for c := 0; c < g.C; c++ {
					for kh := 0; kh < g.KH; kh++ {
						h := hStart + kh
						for kw := 0; kw < g.KW; kw++ {
							w := wStart + kw
							if h >= 0 && h < g.H && w >= 0 && w < g.W {
								colBuf[bufIdx] = inputData[((n*g.C+c)*g.H+h)*g.W+w]
							} else {
								colBuf[bufIdx] = 0
							}
							bufIdx++
						}
					}
				}
			}
		}
	}
}
