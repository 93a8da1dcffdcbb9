package tensor

import "fmt"

// Verify that MockBackend implements Backend and GradSwitch.
var (
	_ Backend    = (*MockBackend)(nil)
	_ GradSwitch = (*MockBackend)(nil)
)

// MockBackend is a simple backend for testing.
// It implements all operations naively for correctness verification and can
// report any device.
type MockBackend struct {
	device      Device
	gradEnabled bool
}

// NewMockBackend creates a new MockBackend on the CPU device.
func NewMockBackend() *MockBackend {
	return NewMockBackendOn(CPU)
}

// NewMockBackendOn creates a MockBackend that reports the given device.
func NewMockBackendOn(device Device) *MockBackend {
	return &MockBackend{device: device, gradEnabled: true}
}

// Name returns the backend name.
func (m *MockBackend) Name() string {
	return "mock"
}

// Device returns the device type.
func (m *MockBackend) Device() Device {
	return m.device
}

// GradEnabled reports whether gradient recording is on.
func (m *MockBackend) GradEnabled() bool {
	return m.gradEnabled
}

// SetGradEnabled switches gradient recording.
func (m *MockBackend) SetGradEnabled(enabled bool) {
	m.gradEnabled = enabled
}

// Conv2D performs 2D convolution (naive implementation for testing).
func (m *MockBackend) Conv2D(input, kernel *RawTensor, stride int, padding Padding2D) *RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 || len(kernelShape) != 4 {
		panic("Conv2D requires 4D tensors [N,C,H,W]")
	}

	N, CIn, H, W := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	COut, KH, KW := kernelShape[0], kernelShape[2], kernelShape[3]

	if CIn != kernelShape[1] {
		panic(fmt.Sprintf("Conv2D: input channels %d != kernel channels %d", CIn, kernelShape[1]))
	}

	HOut, WOut := ConvOutputSize(H, W, KH, KW, stride, padding)

	output, err := NewRaw(Shape{N, COut, HOut, WOut}, Float32, m.device)
	if err != nil {
		panic(err)
	}

	in := input.AsFloat32()
	k := kernel.AsFloat32()
	out := output.AsFloat32()

	for n := 0; n < N; n++ {
		for cOut := 0; cOut < COut; cOut++ {
			for oh := 0; oh < HOut; oh++ {
				for ow := 0; ow < WOut; ow++ {
					var sum float32
					for cIn := 0; cIn < CIn; cIn++ {
						for kh := 0; kh < KH; kh++ {
							for kw := 0; kw < KW; kw++ {
								h := oh*stride - padding.Top + kh
								w := ow*stride - padding.Left + kw
								if h >= 0 && h < H && w >= 0 && w < W {
									sum += in[((n*CIn+cIn)*H+h)*W+w] * k[((cOut*CIn+cIn)*KH+kh)*KW+kw]
								}
							}
						}
					}
					out[((n*COut+cOut)*HOut+oh)*WOut+ow] = sum
				}
			}
		}
	}

	return output
}

// ReLU applies max(0, x) element-wise.
func (m *MockBackend) ReLU(x *RawTensor) *RawTensor {
	out := x.Clone()
	out.device = m.device
	data := out.AsFloat32()
	for i, v := range data {
		if v < 0 {
			data[i] = 0
		}
	}
	return out
}
