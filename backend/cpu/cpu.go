// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/convkit/convkit/internal/backend/cpu"
	"github.com/convkit/convkit/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time checks.
var (
	_ tensor.Backend    = (*Backend)(nil)
	_ tensor.GradSwitch = (*Backend)(nil)
)

// New creates a new CPU backend with gradient recording enabled.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
func New() *Backend {
	return internalcpu.New()
}
