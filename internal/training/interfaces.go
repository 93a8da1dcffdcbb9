package training

import (
	"iter"

	"github.com/convkit/convkit/internal/dataset"
	"github.com/convkit/convkit/internal/nn"
	"github.com/convkit/convkit/internal/tensor"
)

// Model is a module with a training and an evaluation mode.
// *nn.Sequential satisfies it.
type Model[B tensor.Backend] interface {
	nn.Module[B]
	Train()
	Eval()
}

// Optimizer is what the loop and the checkpoint saver need from an optimizer.
type Optimizer interface {
	ZeroGrad()
	Step() error
	StateDict() map[string]*tensor.RawTensor

	// LR is the learning rate of the first parameter group.
	LR() float64
}

// StatefulOptimizer can also restore its state, as LoadCheckpoint requires.
type StatefulOptimizer interface {
	Optimizer
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// Scheduler adjusts the optimizer's learning rate from fractional epoch
// progress.
type Scheduler interface {
	Step(progress float64)
}

// DataLoader yields a finite, restartable sequence of batches.
type DataLoader interface {
	// Len is the number of batches one call to Batches yields.
	Len() int
	Batches() iter.Seq[dataset.Batch]
}

// Recorder receives scalar metrics keyed by the running batch counter.
type Recorder interface {
	AddScalar(tag string, value float64, step int) error
	AddScalars(tag string, values map[string]float64, step int) error
}

// CheckFunc scores a model on a loader; CheckAccuracy is the default.
type CheckFunc[B tensor.Backend] func(model Model[B], loader DataLoader) (float64, error)

// CheckLoaders are the two sources the loop checks periodically.
type CheckLoaders struct {
	Train DataLoader
	Val   DataLoader
}
