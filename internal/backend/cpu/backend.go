// Package cpu implements the pure Go CPU backend.
package cpu

import (
	"github.com/convkit/convkit/internal/parallel"
	"github.com/convkit/convkit/internal/tensor"
)

// Verify that CPUBackend implements the tensor backend contracts.
var (
	_ tensor.Backend    = (*CPUBackend)(nil)
	_ tensor.GradSwitch = (*CPUBackend)(nil)
)

// CPUBackend implements tensor operations on the host CPU.
type CPUBackend struct {
	device      tensor.Device
	gradEnabled bool
	parallel    parallel.Config
}

// New creates a new CPU backend with gradient recording enabled.
// Convolutions spread their (sample, channel) work over all CPUs.
func New() *CPUBackend {
	return &CPUBackend{
		device:      tensor.CPU,
		gradEnabled: true,
		parallel:    parallel.DefaultConfig(),
	}
}

// SetParallel replaces the work-splitting configuration.
func (cpu *CPUBackend) SetParallel(cfg parallel.Config) {
	cpu.parallel = cfg
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// GradEnabled reports whether layers should record what they need for a
// backward pass.
func (cpu *CPUBackend) GradEnabled() bool {
	return cpu.gradEnabled
}

// SetGradEnabled switches gradient recording on or off.
func (cpu *CPUBackend) SetGradEnabled(enabled bool) {
	cpu.gradEnabled = enabled
}

// ReLU applies max(0, x) element-wise and returns a new tensor.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	out := x.To(cpu.device, tensor.Float32)
	data := out.AsFloat32()
	for i, v := range data {
		if v < 0 {
			data[i] = 0
		}
	}
	return out
}
