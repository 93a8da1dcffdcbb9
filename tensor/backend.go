// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/convkit/convkit/internal/tensor"

// Backend defines the operations a compute backend must implement.
//
// Implementations:
//   - backend/cpu: pure Go, im2col convolution
//   - MockBackend: naive reference with a configurable device tag
type Backend = tensor.Backend

// GradSwitch is implemented by backends that can turn gradient recording
// off, as evaluation does.
type GradSwitch = tensor.GradSwitch

// Padding2D is zero padding around the spatial dimensions.
type Padding2D = tensor.Padding2D

// MockBackend is a reference backend for tests and device-placement checks.
type MockBackend = tensor.MockBackend

// NewMockBackendOn creates a MockBackend that reports device.
func NewMockBackendOn(device Device) *MockBackend {
	return tensor.NewMockBackendOn(device)
}

// SamePadding returns the padding that keeps H and W unchanged at stride 1.
func SamePadding(kernelH, kernelW int) Padding2D {
	return tensor.SamePadding(kernelH, kernelW)
}
