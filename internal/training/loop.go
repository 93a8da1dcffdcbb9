package training

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/nn"
	"github.com/convkit/convkit/internal/tensor"
)

// Metric tags written to the Recorder.
const (
	TagLoss = "Metric/loss"
	TagLR   = "Hpara/lr"
	TagAcc  = "Metric/acc"
)

// Values used for LoopConfig fields left at zero.
const (
	DefaultEpochs   = 2
	DefaultLogEvery = 10
)

// LoopConfig holds the loop knobs. A zero Epochs or LogEvery means the
// default, not "none": there is no way to ask Train for zero epochs.
// Negative values are rejected.
type LoopConfig struct {
	Epochs   int       // 0 means DefaultEpochs
	LogEvery int       // check and print every LogEvery batches of an epoch; 0 means DefaultLogEvery
	Out      io.Writer // progress output, default os.Stdout
}

// TrainJob bundles everything Train needs.
type TrainJob[B tensor.Backend] struct {
	Model        Model[B]
	Optimizer    Optimizer
	Scheduler    Scheduler
	Loss         nn.LossFunc[B]
	TrainLoader  DataLoader
	Check        CheckFunc[B] // default CheckAccuracy
	CheckLoaders CheckLoaders
	Recorder     Recorder // nil records nothing
	Config       LoopConfig
}

func (j *TrainJob[B]) validate() error {
	switch {
	case j.Model == nil:
		return errors.New("train: no model")
	case j.Optimizer == nil:
		return errors.New("train: no optimizer")
	case j.Scheduler == nil:
		return errors.New("train: no scheduler")
	case j.Loss == nil:
		return errors.New("train: no loss function")
	case j.TrainLoader == nil:
		return errors.New("train: no training loader")
	case j.CheckLoaders.Train == nil || j.CheckLoaders.Val == nil:
		return errors.New("train: both check loaders are required")
	}

	if j.Check == nil {
		j.Check = CheckAccuracy[B]
	}
	if j.Config.Epochs == 0 {
		j.Config.Epochs = DefaultEpochs
	}
	if j.Config.LogEvery == 0 {
		j.Config.LogEvery = DefaultLogEvery
	}
	if j.Config.Epochs < 0 || j.Config.LogEvery < 0 {
		return errors.Errorf("train: negative epochs (%d) or log interval (%d)", j.Config.Epochs, j.Config.LogEvery)
	}
	if j.Config.Out == nil {
		j.Config.Out = os.Stdout
	}
	return nil
}

// Train runs job for the configured number of epochs and returns the
// running batch counter, which starts at batchStep and grows by one per
// batch.
//
// Each batch: the model goes to training mode, inputs move to the model's
// device as Float32 and labels as Int64, the loss is computed and recorded
// along with the learning rate, gradients are zeroed, back-propagated and
// applied, and the scheduler is stepped with batchStep / TrainLoader.Len().
//
// At every batch index that is a multiple of LogEvery (index 0 included),
// the model goes to evaluation mode, Check runs on both check loaders, the
// two accuracies are recorded and a progress line is printed. The next batch
// puts the model back in training mode.
//
// Any error aborts the loop.
func Train[B tensor.Backend](job TrainJob[B], batchStep int) (int, error) {
	if err := job.validate(); err != nil {
		return batchStep, err
	}
	device, backend, err := placement[B](job.Model)
	if err != nil {
		return batchStep, err
	}

	cfg := job.Config
	iters := job.TrainLoader.Len()
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		tic := time.Now()
		batchIdx := 0
		for batch := range job.TrainLoader.Batches() {
			batchStep++
			job.Model.Train()

			x := tensor.New[float32](batch.Inputs.To(device, tensor.Float32), backend)
			y := tensor.New[int64](batch.Labels.To(device, tensor.Int64), backend)

			scores := job.Model.Forward(x)
			loss, err := job.Loss(scores, y)
			if err != nil {
				return batchStep, errors.Wrapf(err, "epoch %d batch %d", epoch, batchIdx)
			}
			if job.Recorder != nil {
				if err := job.Recorder.AddScalar(TagLoss, loss.Item(), batchStep); err != nil {
					return batchStep, err
				}
				if err := job.Recorder.AddScalar(TagLR, job.Optimizer.LR(), batchStep); err != nil {
					return batchStep, err
				}
			}

			job.Optimizer.ZeroGrad()
			if err := loss.Backward(); err != nil {
				return batchStep, errors.Wrapf(err, "epoch %d batch %d: backward", epoch, batchIdx)
			}
			if err := job.Optimizer.Step(); err != nil {
				return batchStep, errors.Wrapf(err, "epoch %d batch %d: optimizer step", epoch, batchIdx)
			}
			job.Scheduler.Step(float64(batchStep) / float64(iters))

			if batchIdx%cfg.LogEvery == 0 {
				if err := reportProgress(&job, epoch, batchIdx, iters, batchStep, loss.Item()); err != nil {
					return batchStep, err
				}
			}
			batchIdx++
		}

		if _, err := fmt.Fprintf(cfg.Out, "====> Epoch: %d\tTime: %vs\n", epoch, time.Since(tic).Seconds()); err != nil {
			return batchStep, errors.WithStack(err)
		}
	}
	return batchStep, nil
}

// reportProgress runs the periodic train/val check, records it and
// prints the progress line.
func reportProgress[B tensor.Backend](job *TrainJob[B], epoch, batchIdx, iters, batchStep int, loss float64) error {
	job.Model.Eval()
	trainAcc, err := job.Check(job.Model, job.CheckLoaders.Train)
	if err != nil {
		return errors.Wrap(err, "train check")
	}
	valAcc, err := job.Check(job.Model, job.CheckLoaders.Val)
	if err != nil {
		return errors.Wrap(err, "val check")
	}

	if job.Recorder != nil {
		accs := map[string]float64{"train": trainAcc, "val": valAcc}
		if err := job.Recorder.AddScalars(TagAcc, accs, batchStep); err != nil {
			return err
		}
	}

	_, err = fmt.Fprintf(job.Config.Out, "Epoch: %d [%d/%d]\tLoss: %.4f\tVal acc: %.1f%%\n",
		epoch, batchIdx, iters, loss, 100*valAcc)
	return errors.WithStack(err)
}
