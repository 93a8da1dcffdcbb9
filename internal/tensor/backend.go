package tensor

// Backend defines the operations a compute backend provides.
//
// Everything not listed here (normalization, reductions, linear layers) is
// computed by the nn package directly over host memory.
//
// Implementations:
//   - cpu.CPUBackend: pure Go
//   - MockBackend: naive reference used in tests, configurable device
type Backend interface {
	// Conv2D convolves input [N, C_in, H, W] with kernel [C_out, C_in, K_h, K_w].
	Conv2D(input, kernel *RawTensor, stride int, padding Padding2D) *RawTensor

	// ReLU applies max(0, x) element-wise.
	ReLU(x *RawTensor) *RawTensor

	// Metadata
	Name() string
	Device() Device
}

// GradSwitch is implemented by backends that track whether gradient
// information should be recorded during forward passes.
type GradSwitch interface {
	GradEnabled() bool
	SetGradEnabled(enabled bool)
}

// Padding2D is zero padding applied around the spatial dimensions.
type Padding2D struct {
	Top, Bottom, Left, Right int
}

// UniformPadding pads every side by p.
func UniformPadding(p int) Padding2D {
	return Padding2D{Top: p, Bottom: p, Left: p, Right: p}
}

// SamePadding returns the stride-1 padding that keeps H and W unchanged.
// For even kernels the extra row and column go on the bottom and right.
func SamePadding(kernelH, kernelW int) Padding2D {
	top := (kernelH - 1) / 2
	left := (kernelW - 1) / 2
	return Padding2D{
		Top:    top,
		Bottom: kernelH - 1 - top,
		Left:   left,
		Right:  kernelW - 1 - left,
	}
}

// ConvOutputSize returns the spatial output size of a convolution.
func ConvOutputSize(h, w, kernelH, kernelW, stride int, p Padding2D) (int, int) {
	return (h+p.Top+p.Bottom-kernelH)/stride + 1, (w+p.Left+p.Right-kernelW)/stride + 1
}
