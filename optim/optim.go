// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimizers and learning-rate schedules of convkit.
//
// Example:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.05, Momentum: 0.9}, backend)
//	scheduler, err := optim.NewCosineWarmRestarts(optimizer, optim.CosineConfig{T0: 1})
package optim

import (
	"github.com/convkit/convkit/internal/nn"
	"github.com/convkit/convkit/internal/optim"
	"github.com/convkit/convkit/internal/sched"
	"github.com/convkit/convkit/tensor"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// ParamGroup holds the learning rate schedulers adjust.
type ParamGroup = optim.ParamGroup

// SGD represents the SGD optimizer with optional momentum.
type SGD[B tensor.Backend] = optim.SGD[B]

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	return optim.NewSGD(params, config, backend)
}

// Adam represents the Adam optimizer.
type Adam[B tensor.Backend] = optim.Adam[B]

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer with bias correction.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	return optim.NewAdam(params, config, backend)
}

// CosineWarmRestarts is cosine annealing with warm restarts.
type CosineWarmRestarts = sched.CosineWarmRestarts

// CosineConfig configures CosineWarmRestarts.
type CosineConfig = sched.CosineConfig

// NewCosineWarmRestarts schedules the learning rate of every group of opt.
func NewCosineWarmRestarts(opt Optimizer, cfg CosineConfig) (*CosineWarmRestarts, error) {
	return sched.NewCosineWarmRestarts(opt, cfg)
}
