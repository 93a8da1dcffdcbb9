// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package train provides the training helpers of convkit: device
// resolution, the similarity scorer, checkpointing, accuracy checks and
// the training loop.
//
// Example:
//
//	step, err := train.Train(train.TrainJob[*cpu.Backend]{
//	    Model:        model,
//	    Optimizer:    optimizer,
//	    Scheduler:    scheduler,
//	    Loss:         nn.CrossEntropyLoss(head),
//	    TrainLoader:  trainLoader,
//	    CheckLoaders: train.CheckLoaders{Train: trainCheck, Val: valLoader},
//	}, 0)
package train

import (
	"io"
	"time"

	"github.com/convkit/convkit/internal/nn"
	"github.com/convkit/convkit/internal/serialization"
	"github.com/convkit/convkit/internal/training"
	"github.com/convkit/convkit/tensor"
)

// Capabilities the helpers consume.
type (
	Model[B tensor.Backend]     = training.Model[B]
	Optimizer                   = training.Optimizer
	StatefulOptimizer           = training.StatefulOptimizer
	Scheduler                   = training.Scheduler
	DataLoader                  = training.DataLoader
	Recorder                    = training.Recorder
	CheckFunc[B tensor.Backend] = training.CheckFunc[B]
	CheckLoaders                = training.CheckLoaders
)

// Training loop types.
type (
	LoopConfig                 = training.LoopConfig
	TrainJob[B tensor.Backend] = training.TrainJob[B]
	SaveOptions                = training.SaveOptions
)

// Header is the metadata stored in a .born checkpoint.
type Header = serialization.Header

// Sentinel errors.
var (
	ErrNoParameters = training.ErrNoParameters
	ErrZeroNorm     = training.ErrZeroNorm
)

// Device returns the device of the model's first parameter.
func Device[B tensor.Backend](model nn.Module[B]) (tensor.Device, error) {
	return training.Device[B](model)
}

// Similarity scores each activation channel against img with a softmax
// over cosine similarities.
func Similarity[B tensor.Backend](acts, img *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	return training.Similarity(acts, img)
}

// CheckpointName formats the checkpoint file name for the given time.
func CheckpointName(accuracy float64, dataset, modelType string, at time.Time) string {
	return training.CheckpointName(accuracy, dataset, modelType, at)
}

// SaveCheckpoint writes model and optimizer state under saved_models/.
func SaveCheckpoint[B tensor.Backend](model nn.Module[B], optimizer Optimizer, modelType string, opts SaveOptions) (string, error) {
	return training.SaveCheckpoint[B](model, optimizer, modelType, opts)
}

// LoadCheckpoint restores a checkpoint into model and optionally optimizer.
func LoadCheckpoint[B tensor.Backend](path string, model nn.Module[B], optimizer StatefulOptimizer) (*Header, error) {
	return training.LoadCheckpoint[B](path, model, optimizer)
}

// CheckAccuracy returns the fraction of correctly classified samples.
func CheckAccuracy[B tensor.Backend](model Model[B], loader DataLoader) (float64, error) {
	return training.CheckAccuracy[B](model, loader)
}

// ReportAccuracy prints the accuracy and inference time to w and returns
// the accuracy.
func ReportAccuracy[B tensor.Backend](w io.Writer, model Model[B], loader DataLoader) (float64, error) {
	return training.ReportAccuracy[B](w, model, loader)
}

// Train runs the training loop and returns the updated batch counter.
func Train[B tensor.Backend](job TrainJob[B], batchStep int) (int, error) {
	return training.Train(job, batchStep)
}
